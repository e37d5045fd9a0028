package deploy

import (
	"context"
	"testing"
)

type respondingAllocator struct {
	respond func(requests []AllocationRequest) []AllocationResponse
	allocateErr error
}

func (a *respondingAllocator) Allocate(ctx context.Context, requests []AllocationRequest) ([]AllocationResponse, error) {
	if a.allocateErr != nil {
		return nil, a.allocateErr
	}
	return a.respond(requests), nil
}

func (a *respondingAllocator) AllocateDeployment(ctx context.Context, requestID string, props []PropertyRef, candidates []*DeviceNode, processorDeps []string, osDeps []OSDependency) (AllocationResponse, error) {
	return AllocationResponse{}, nil
}

func (a *respondingAllocator) Deallocate(ctx context.Context, allocationIDs []string) error {
	return nil
}

func TestUsesDeviceAllocator_NoSpecsSucceedsTrivially(t *testing.T) {
	u := NewUsesDeviceAllocator(&respondingAllocator{})
	tracker := NewScopedAllocations(&fakeAllocator{})

	ok, err := u.Allocate(context.Background(), "comp-1", nil, nil, nil, tracker)
	if err != nil || !ok {
		t.Fatalf("expected trivial success, got ok=%v err=%v", ok, err)
	}
}

func TestUsesDeviceAllocator_AllSatisfied(t *testing.T) {
	allocator := &respondingAllocator{
		respond: func(requests []AllocationRequest) []AllocationResponse {
			resp := make([]AllocationResponse, len(requests))
			for i, req := range requests {
				resp[i] = AllocationResponse{
					RequestID:       req.RequestID,
					AllocationID:    "alloc-" + req.RequestID,
					AllocatedDevice: &DeviceNode{Identifier: "dev-1"},
				}
			}
			return resp
		},
	}
	u := NewUsesDeviceAllocator(allocator)
	tracker := NewScopedAllocations(&fakeAllocator{})
	specs := []UsesDeviceSpec{{ID: "uses-1"}, {ID: "uses-2"}}
	assignments := make(map[string]ComponentDeviceAssignment)

	ok, err := u.Allocate(context.Background(), "comp-1", specs, nil, assignments, tracker)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if !ok {
		t.Fatal("expected all specs to be satisfied")
	}
	if tracker.Len() != 2 {
		t.Errorf("expected 2 allocation ids pushed, got %d", tracker.Len())
	}
	if specs[0].AssignedDeviceID != "dev-1" || specs[1].AssignedDeviceID != "dev-1" {
		t.Errorf("expected AssignedDeviceID to be set on each spec, got %+v", specs)
	}
	if len(assignments) != 2 {
		t.Errorf("expected 2 component-device assignments recorded, got %d", len(assignments))
	}
}

func TestUsesDeviceAllocator_PartialFailureReturnsFalse(t *testing.T) {
	allocator := &respondingAllocator{
		respond: func(requests []AllocationRequest) []AllocationResponse {
			// Only satisfy the first request.
			return []AllocationResponse{
				{RequestID: requests[0].RequestID, AllocationID: "alloc-1", AllocatedDevice: &DeviceNode{Identifier: "dev-1"}},
			}
		},
	}
	u := NewUsesDeviceAllocator(allocator)
	tracker := NewScopedAllocations(&fakeAllocator{})
	specs := []UsesDeviceSpec{{ID: "uses-1"}, {ID: "uses-2"}}

	ok, err := u.Allocate(context.Background(), "comp-1", specs, nil, nil, tracker)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if ok {
		t.Fatal("expected Allocate to report false when a spec goes unsatisfied")
	}
	// The caller is responsible for deciding what to do with the partial
	// allocation still held on tracker.
	if tracker.Len() != 1 {
		t.Errorf("expected the single granted allocation id to still be tracked, got %d", tracker.Len())
	}
}

func TestUsesDeviceAllocator_AllocateErrorIsClassified(t *testing.T) {
	u := NewUsesDeviceAllocator(&respondingAllocator{allocateErr: context.DeadlineExceeded})
	tracker := NewScopedAllocations(&fakeAllocator{})
	specs := []UsesDeviceSpec{{ID: "uses-1"}}

	ok, err := u.Allocate(context.Background(), "comp-1", specs, nil, nil, tracker)
	if ok {
		t.Fatal("expected failure when the underlying allocator call errors")
	}
	if !IsNoCapacity(err) {
		t.Errorf("expected a ClassNoCapacity error, got %v", err)
	}
}

func TestUsesDeviceAllocator_MathExpressionEvaluated(t *testing.T) {
	var capturedValue interface{}
	allocator := &respondingAllocator{
		respond: func(requests []AllocationRequest) []AllocationResponse {
			capturedValue = requests[0].AllocationProperties[0].Value
			return []AllocationResponse{
				{RequestID: requests[0].RequestID, AllocationID: "alloc-1", AllocatedDevice: &DeviceNode{Identifier: "dev-1"}},
			}
		},
	}
	u := NewUsesDeviceAllocator(allocator)
	tracker := NewScopedAllocations(&fakeAllocator{})
	specs := []UsesDeviceSpec{
		{
			ID: "uses-1",
			AllocationProps: []PropertyRef{
				{ID: "cpus_needed", Kind: PropertySimple, Value: "__MATH__(1, cpu_count, +)"},
			},
		},
	}
	configureProps := []PropertyRef{{ID: "cpu_count", Kind: PropertySimple, Value: int64(3)}}

	ok, err := u.Allocate(context.Background(), "comp-1", specs, configureProps, nil, tracker)
	if err != nil || !ok {
		t.Fatalf("Allocate failed: ok=%v err=%v", ok, err)
	}
	if capturedValue != int64(4) {
		t.Errorf("expected the __MATH__ expression to be evaluated to 4, got %v", capturedValue)
	}
}
