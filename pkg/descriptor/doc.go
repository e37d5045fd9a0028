// Package descriptor implements a deploy.DescriptorLoader backed by CUE:
// a software assembly descriptor is compiled as CUE, checked to be fully
// concrete, decoded, and validated with struct tags rather than by
// hand-rolled XML unmarshaling; no separate CUE schema is applied. This
// follows how the teacher's config evaluator uses CUE for declarative
// parsing.
package descriptor
