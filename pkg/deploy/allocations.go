package deploy

import "context"

// AllocationManager is the external collaborator that matches allocation
// requests against device properties. The Application Factory Core never
// implements the matching algorithm itself; pkg/allocator supplies a
// reference implementation of this contract.
type AllocationManager interface {
	// Allocate satisfies a batch of independent requests in one call,
	// returning one response per request (order-correlated by RequestID,
	// not by slice position).
	Allocate(ctx context.Context, requests []AllocationRequest) ([]AllocationResponse, error)

	// AllocateDeployment satisfies a single request, narrowing to
	// candidates and the merged processor/OS constraints of a placement
	// attempt. An empty AllocationID on the response means no candidate
	// could satisfy the request.
	AllocateDeployment(ctx context.Context, requestID string, props []PropertyRef, candidates []*DeviceNode, processorDeps []string, osDeps []OSDependency) (AllocationResponse, error)

	// Deallocate releases previously granted allocation IDs. Callers
	// treat failures here as best-effort; ScopedAllocations.Deallocate
	// discards the error without logging it.
	Deallocate(ctx context.Context, allocationIDs []string) error
}

// ScopedAllocations is a scoped container of allocation IDs acquired
// during one deployment attempt. It composes: a per-implementation
// attempt, a per-collocation attempt, and the whole deployment each get
// their own tracker, nested trackers transfer into their parent on
// success, and an abandoned tracker releases everything it still holds.
//
// Go has no destructors, so callers are responsible for calling Deallocate
// exactly once on any tracker they abandon without transferring — normally
// from a deferred rollback closure built as the transaction proceeds.
type ScopedAllocations struct {
	allocator   AllocationManager
	allocations []string
}

// NewScopedAllocations creates an empty tracker bound to allocator.
func NewScopedAllocations(allocator AllocationManager) *ScopedAllocations {
	return &ScopedAllocations{allocator: allocator}
}

// Push records one granted allocation ID as held by this scope.
func (s *ScopedAllocations) Push(allocationID string) {
	s.allocations = append(s.allocations, allocationID)
}

// Transfer moves every held allocation ID to dest, emptying this tracker.
// After Transfer, calling Deallocate on this tracker is a no-op.
func (s *ScopedAllocations) Transfer(dest *ScopedAllocations) {
	dest.allocations = append(dest.allocations, s.allocations...)
	s.allocations = nil
}

// TransferToSlice moves every held allocation ID into dest, emptying this
// tracker, the way the original's transfer(T&) template overload hands
// allocations to a plain output list (e.g. the Application Handle's final
// allocation-ID list) rather than another ScopedAllocations.
func (s *ScopedAllocations) TransferToSlice(dest *[]string) {
	*dest = append(*dest, s.allocations...)
	s.allocations = nil
}

// Deallocate releases every allocation ID still held through the
// Allocation Manager, swallowing the error — release during cleanup is
// best-effort, matching the original's destructor which cannot propagate
// a throw. It empties the tracker regardless of outcome.
func (s *ScopedAllocations) Deallocate(ctx context.Context) {
	if len(s.allocations) == 0 {
		return
	}
	_ = s.allocator.Deallocate(ctx, s.allocations)
	s.allocations = nil
}

// Len reports how many allocation IDs this scope currently holds.
func (s *ScopedAllocations) Len() int {
	return len(s.allocations)
}

// IDs returns a copy of the allocation IDs currently held.
func (s *ScopedAllocations) IDs() []string {
	out := make([]string, len(s.allocations))
	copy(out, s.allocations)
	return out
}

// rotateDeviceList rotates devices in place so the device identified by
// identifier moves to the front, biasing subsequent placement toward
// reusing the device that just succeeded. Purely a packing heuristic, not
// a correctness requirement, but kept so placement-order expectations in
// tests stay stable.
func rotateDeviceList(devices []*DeviceNode, identifier string) {
	for i, d := range devices {
		if d.Identifier == identifier {
			if i == 0 {
				return
			}
			rotated := make([]*DeviceNode, 0, len(devices))
			rotated = append(rotated, devices[i:]...)
			rotated = append(rotated, devices[:i]...)
			copy(devices, rotated)
			return
		}
	}
}
