package deploy

import (
	"context"
	"testing"
)

func TestPlacer_PlacesFirstSatisfiableImplementation(t *testing.T) {
	dev1 := &DeviceNode{Identifier: "dev-1", UsageState: UsageIdle}
	allocator := &deploymentAllocator{
		respond: func(requestID string, props []PropertyRef, candidates []*DeviceNode) AllocationResponse {
			return AllocationResponse{RequestID: requestID, AllocationID: "alloc-1", AllocatedDevice: dev1}
		},
	}
	p := NewPlacer(allocator)

	impl := &ImplSpec{ID: "impl-1"}
	component := &ComponentSpec{InstanceID: "comp-1", Implementations: []*ImplSpec{impl}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{component}, NewScopedAllocations(allocator))

	deviceID, err := p.AllocateComponent(context.Background(), component, "", []*DeviceNode{dev1}, plan)
	if err != nil {
		t.Fatalf("AllocateComponent failed: %v", err)
	}
	if deviceID != "dev-1" {
		t.Errorf("got device %q, want dev-1", deviceID)
	}
	if component.SelectedImplementation != impl || component.AssignedDevice != dev1 {
		t.Errorf("expected component to be committed to impl-1/dev-1, got %v/%v", component.SelectedImplementation, component.AssignedDevice)
	}
	if len(plan.AppUsedDevices) != 1 {
		t.Errorf("expected one device assignment recorded, got %d", len(plan.AppUsedDevices))
	}
	if plan.Allocations.Len() != 1 {
		t.Errorf("expected the allocation id transferred to the plan tracker, got %d", plan.Allocations.Len())
	}
}

func TestPlacer_PreferredDeviceNotPresentIsBadAssignment(t *testing.T) {
	dev1 := &DeviceNode{Identifier: "dev-1"}
	p := NewPlacer(&deploymentAllocator{})
	component := &ComponentSpec{InstanceID: "comp-1", Implementations: []*ImplSpec{{ID: "impl-1"}}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{component}, NewScopedAllocations(&deploymentAllocator{}))

	_, err := p.AllocateComponent(context.Background(), component, "dev-unknown", []*DeviceNode{dev1}, plan)
	if err == nil {
		t.Fatal("expected an error when the preferred device is not among the candidates")
	}
	reqErr, ok := err.(*CreateApplicationRequestError)
	if !ok {
		t.Fatalf("expected *CreateApplicationRequestError, got %T", err)
	}
	if len(reqErr.BadAssignments) != 1 || reqErr.BadAssignments[0].DeviceID != "dev-unknown" {
		t.Errorf("expected a bad assignment naming dev-unknown, got %v", reqErr.BadAssignments)
	}
}

func TestPlacer_SkipsImplementationResolverRejects(t *testing.T) {
	dev1 := &DeviceNode{Identifier: "dev-1"}
	allocator := &deploymentAllocator{
		respond: func(requestID string, props []PropertyRef, candidates []*DeviceNode) AllocationResponse {
			return AllocationResponse{RequestID: requestID, AllocationID: "alloc-1", AllocatedDevice: dev1}
		},
	}
	p := NewPlacer(allocator)

	rejected := &ImplSpec{
		ID: "impl-bad",
		SoftPkgDependencies: []*ImplSpec{
			{ID: "leaf", ProcessorDeps: []string{"arm64"}},
		},
	}
	accepted := &ImplSpec{ID: "impl-good"}
	component := &ComponentSpec{InstanceID: "comp-1", Implementations: []*ImplSpec{rejected, accepted}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{component}, NewScopedAllocations(allocator))

	deviceID, err := p.AllocateComponent(context.Background(), component, "", []*DeviceNode{dev1}, plan)
	if err != nil {
		t.Fatalf("AllocateComponent failed: %v", err)
	}
	if deviceID != "dev-1" {
		t.Errorf("got device %q, want dev-1", deviceID)
	}
	if component.SelectedImplementation != accepted {
		t.Errorf("expected the resolver-accepted implementation to win, got %v", component.SelectedImplementation)
	}
}

func TestPlacer_NoExecutableDevicesReportsSpecificReason(t *testing.T) {
	p := NewPlacer(&deploymentAllocator{
		respond: func(requestID string, props []PropertyRef, candidates []*DeviceNode) AllocationResponse {
			return AllocationResponse{RequestID: requestID}
		},
	})
	component := &ComponentSpec{InstanceID: "comp-1", Implementations: []*ImplSpec{{ID: "impl-1"}}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{component}, NewScopedAllocations(&deploymentAllocator{}))

	_, err := p.AllocateComponent(context.Background(), component, "", nil, plan)
	if err == nil {
		t.Fatal("expected an error")
	}
	class, ok := ClassOf(err)
	if !ok || class != ClassNoCapacity {
		t.Fatalf("expected ClassNoCapacity, got %v", err)
	}
}

func TestPlacer_AllDevicesBusyReportsSpecificReason(t *testing.T) {
	dev1 := &DeviceNode{Identifier: "dev-1", UsageState: UsageBusy}
	allocator := &deploymentAllocator{
		respond: func(requestID string, props []PropertyRef, candidates []*DeviceNode) AllocationResponse {
			return AllocationResponse{RequestID: requestID}
		},
	}
	p := NewPlacer(allocator)
	component := &ComponentSpec{InstanceID: "comp-1", Implementations: []*ImplSpec{{ID: "impl-1"}}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{component}, NewScopedAllocations(allocator))

	_, err := p.AllocateComponent(context.Background(), component, "", []*DeviceNode{dev1}, plan)
	if err == nil {
		t.Fatal("expected an error")
	}
	deployErr, ok := err.(*DeployError)
	if !ok {
		t.Fatalf("expected *DeployError, got %T", err)
	}
	if deployErr.Message != "all executable devices busy" {
		t.Errorf("got message %q, want %q", deployErr.Message, "all executable devices busy")
	}
}
