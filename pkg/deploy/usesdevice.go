package deploy

import (
	"context"

	"github.com/google/uuid"
)

// UsesDeviceAllocator performs best-effort, batched allocation of a set
// of independent usesDevice capacity requests, grounded on
// createHelper::allocateUsesDevices/allocateUsesDeviceProperties.
type UsesDeviceAllocator struct {
	allocator AllocationManager
	math      *MathEvaluator
}

// NewUsesDeviceAllocator returns a Uses-Device Allocator bound to
// allocator.
func NewUsesDeviceAllocator(allocator AllocationManager) *UsesDeviceAllocator {
	return &UsesDeviceAllocator{allocator: allocator, math: NewMathEvaluator()}
}

// Allocate builds one AllocationRequestSequence-equivalent batch from
// specs, invokes Allocate once, reconciles responses back to each spec by
// RequestID, and records every granted allocation ID on tracker. It
// returns false if any spec went unassigned after reconciliation; the
// caller decides whether to drop the partial allocations (Deallocate) or
// transfer them onward — this function never decides that itself.
func (u *UsesDeviceAllocator) Allocate(ctx context.Context, ownerID string, specs []UsesDeviceSpec, configureProps []PropertyRef, outAssignments map[string]ComponentDeviceAssignment, tracker *ScopedAllocations) (bool, error) {
	if len(specs) == 0 {
		return true, nil
	}

	requests := make([]AllocationRequest, len(specs))
	requestIndex := make(map[string]int, len(specs))
	for i, spec := range specs {
		props := clonePropertyRefs(spec.AllocationProps)
		var err error
		props, err = u.math.EvaluateRequest(props, configureProps)
		if err != nil {
			return false, err
		}
		reqID := uuid.NewString()
		requests[i] = AllocationRequest{RequestID: reqID, AllocationProperties: props}
		requestIndex[reqID] = i
	}

	responses, err := u.allocator.Allocate(ctx, requests)
	if err != nil {
		return false, NewNoCapacityError("usesDevice allocation request failed", err).WithResource(ownerID)
	}

	satisfied := make([]bool, len(specs))
	for _, resp := range responses {
		idx, ok := requestIndex[resp.RequestID]
		if !ok || !resp.Succeeded() {
			continue
		}
		specs[idx].AssignedDeviceID = resp.AllocatedDevice.Identifier
		tracker.Push(resp.AllocationID)
		if outAssignments != nil {
			outAssignments[specs[idx].ID] = ComponentDeviceAssignment{
				ComponentID:  specs[idx].ID,
				DeviceID:     resp.AllocatedDevice.Identifier,
				RemoteHandle: resp.AllocatedDevice.RemoteHandle,
			}
		}
		satisfied[idx] = true
	}

	for _, ok := range satisfied {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func clonePropertyRefs(in []PropertyRef) []PropertyRef {
	out := make([]PropertyRef, len(in))
	for i, p := range in {
		out[i] = p
		if len(p.Members) > 0 {
			out[i].Members = clonePropertyRefs(p.Members)
		}
	}
	return out
}
