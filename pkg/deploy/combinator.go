package deploy

// Combinator produces the cross-product of a set of components'
// implementation choices and filters to combinations whose processor and
// OS requirements are mutually compatible. Implemented iteratively per
// the design notes: "an iterative accumulator (start with [[]], fold each
// component's implementations) produces the same tuples with smaller
// stack use" than the recursive formulation the original describes.
type Combinator struct{}

// NewCombinator returns a stateless Implementation Combinator.
func NewCombinator() *Combinator { return &Combinator{} }

// Enumerate yields the cross-product of each component's implementations,
// in declaration order, as a slice of implementation tuples (one entry
// per input component, same index order).
func (c *Combinator) Enumerate(components []*ComponentSpec) [][]*ImplSpec {
	tuples := [][]*ImplSpec{{}}
	for _, comp := range components {
		if len(comp.Implementations) == 0 {
			return nil
		}
		next := make([][]*ImplSpec, 0, len(tuples)*len(comp.Implementations))
		for _, prefix := range tuples {
			for _, impl := range comp.Implementations {
				tuple := make([]*ImplSpec, len(prefix)+1)
				copy(tuple, prefix)
				tuple[len(prefix)] = impl
				next = append(next, tuple)
			}
		}
		tuples = next
	}
	return tuples
}

// FilterCompatible runs the compatibility pass over every tuple produced
// by Enumerate, keeping only those whose processor and OS requirements
// are mutually non-contradictory, in original order. Implemented
// functionally — the filter never mutates the input slices — because the
// original's erase-while-iterating equivalent is explicitly flagged as
// undefined behavior that must not be reproduced.
func (c *Combinator) FilterCompatible(tuples [][]*ImplSpec) [][]*ImplSpec {
	out := make([][]*ImplSpec, 0, len(tuples))
	for _, tuple := range tuples {
		if c.compatible(tuple) {
			out = append(out, tuple)
		}
	}
	return out
}

// compatible runs the two-axis narrowing pass described in the design:
// seed the reference set from the first implementation on each axis, then
// for every subsequent implementation require a non-empty intersection
// whenever both the running reference set and the implementation's set
// are non-empty; an axis with no opinion yet (empty reference set) is
// re-seeded rather than treated as a mismatch.
func (c *Combinator) compatible(tuple []*ImplSpec) bool {
	if len(tuple) == 0 {
		return true
	}
	procRef := append([]string(nil), tuple[0].ProcessorDeps...)
	osRef := append([]OSDependency(nil), tuple[0].OSDeps...)

	for _, impl := range tuple[1:] {
		var ok bool
		procRef, ok = narrowProcessor(procRef, impl.ProcessorDeps)
		if !ok {
			return false
		}
		osRef, ok = narrowOS(osRef, impl.OSDeps)
		if !ok {
			return false
		}
	}
	return true
}

func narrowProcessor(ref, next []string) ([]string, bool) {
	if len(ref) == 0 {
		return append([]string(nil), next...), true
	}
	if len(next) == 0 {
		return ref, true
	}
	inter := intersectStrings(ref, next)
	if len(inter) == 0 {
		return nil, false
	}
	return inter, true
}

func narrowOS(ref, next []OSDependency) ([]OSDependency, bool) {
	if len(ref) == 0 {
		return append([]OSDependency(nil), next...), true
	}
	if len(next) == 0 {
		return ref, true
	}
	inter := intersectOS(ref, next)
	if len(inter) == 0 {
		return nil, false
	}
	return inter, true
}

func intersectStrings(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

func intersectOS(a, b []OSDependency) []OSDependency {
	set := make(map[OSDependency]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []OSDependency
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

// MergeProcessorDeps computes the set intersection of every non-empty
// processor set in tuple; implementations declaring no processor
// constraint are skipped. The result is the common processor constraint
// attached to a group allocation request, or empty if no implementation
// in the tuple declares one.
func (c *Combinator) MergeProcessorDeps(tuple []*ImplSpec) []string {
	var merged []string
	seeded := false
	for _, impl := range tuple {
		if len(impl.ProcessorDeps) == 0 {
			continue
		}
		if !seeded {
			merged = append([]string(nil), impl.ProcessorDeps...)
			seeded = true
			continue
		}
		merged = intersectStrings(merged, impl.ProcessorDeps)
	}
	return merged
}

// MergeOsDeps computes the same rule as MergeProcessorDeps over
// (name,version) pairs.
func (c *Combinator) MergeOsDeps(tuple []*ImplSpec) []OSDependency {
	var merged []OSDependency
	seeded := false
	for _, impl := range tuple {
		if len(impl.OSDeps) == 0 {
			continue
		}
		if !seeded {
			merged = append([]OSDependency(nil), impl.OSDeps...)
			seeded = true
			continue
		}
		merged = intersectOS(merged, impl.OSDeps)
	}
	return merged
}
