package deploy

import (
	"context"
	"testing"
	"time"
)

type fakeApplicationHandle struct {
	ports              map[string]bool
	registeredPorts    []ExternalPort
	registeredProps    []ExternalProperty
	getPortErr         error
	registerPortErr    error
	registerPropErr    error
}

func newFakeApplicationHandle() *fakeApplicationHandle {
	return &fakeApplicationHandle{ports: make(map[string]bool)}
}

func (f *fakeApplicationHandle) Activate(ctx context.Context, appID, waveformContext string, trustedApplication bool) (interface{}, error) {
	return nil, nil
}
func (f *fakeApplicationHandle) AddComponent(ctx context.Context, component *ComponentSpec) error {
	return nil
}
func (f *fakeApplicationHandle) SetComponentImplementation(ctx context.Context, componentID string, impl *ImplSpec) error {
	return nil
}
func (f *fakeApplicationHandle) SetComponentDevice(ctx context.Context, componentID, deviceID string) error {
	return nil
}
func (f *fakeApplicationHandle) SetComponentNamingContext(ctx context.Context, componentID, namingServiceName string) error {
	return nil
}
func (f *fakeApplicationHandle) SetComponentPID(ctx context.Context, componentID string, pid int) error {
	return nil
}
func (f *fakeApplicationHandle) WaitForRegistration(ctx context.Context, timeout time.Duration) (string, bool) {
	return "", true
}
func (f *fakeApplicationHandle) Initialize(ctx context.Context, componentID string) error { return nil }
func (f *fakeApplicationHandle) Configure(ctx context.Context, componentID string, props []PropertyRef) error {
	return nil
}
func (f *fakeApplicationHandle) Connect(ctx context.Context, conn DeclaredConnection) (ConnectionRecord, error) {
	return ConnectionRecord{}, nil
}
func (f *fakeApplicationHandle) GetPort(ctx context.Context, componentID, portID string) (bool, error) {
	if f.getPortErr != nil {
		return false, f.getPortErr
	}
	return f.ports[componentID+"/"+portID], nil
}
func (f *fakeApplicationHandle) RegisterExternalPort(ctx context.Context, port ExternalPort) error {
	if f.registerPortErr != nil {
		return f.registerPortErr
	}
	f.registeredPorts = append(f.registeredPorts, port)
	return nil
}
func (f *fakeApplicationHandle) RegisterExternalProperty(ctx context.Context, prop ExternalProperty) error {
	if f.registerPropErr != nil {
		return f.registerPropErr
	}
	f.registeredProps = append(f.registeredProps, prop)
	return nil
}
func (f *fakeApplicationHandle) Commit(ctx context.Context, allocationIDs []string, usedDevices []ComponentDeviceAssignment, startOrder []string, connections []ConnectionRecord) error {
	return nil
}
func (f *fakeApplicationHandle) ReleaseComponents(ctx context.Context) error    { return nil }
func (f *fakeApplicationHandle) TerminateComponents(ctx context.Context) error { return nil }
func (f *fakeApplicationHandle) UnloadComponents(ctx context.Context) error    { return nil }
func (f *fakeApplicationHandle) CleanupActivations(ctx context.Context) error  { return nil }

func testPlanWithComponent(id string) *DeploymentPlan {
	comp := &ComponentSpec{InstanceID: id}
	return NewDeploymentPlan("app-1", []*ComponentSpec{comp}, NewScopedAllocations(&deploymentAllocator{}))
}

func TestWirer_PublishPorts_Success(t *testing.T) {
	app := newFakeApplicationHandle()
	app.ports["comp-1/data_out"] = true
	w := NewWirer(app)
	plan := testPlanWithComponent("comp-1")

	refs := []ExternalPortRef{{Name: "output", ComponentID: "comp-1", PortID: "data_out"}}
	if err := w.PublishPorts(context.Background(), refs, plan); err != nil {
		t.Fatalf("PublishPorts failed: %v", err)
	}
	if len(plan.ExternalPorts) != 1 || plan.ExternalPorts[0].Name != "output" {
		t.Errorf("expected one external port named output recorded, got %v", plan.ExternalPorts)
	}
	if len(app.registeredPorts) != 1 {
		t.Errorf("expected the handle to see one registration call, got %d", len(app.registeredPorts))
	}
}

func TestWirer_PublishPorts_DuplicateNameFails(t *testing.T) {
	app := newFakeApplicationHandle()
	app.ports["comp-1/data_out"] = true
	w := NewWirer(app)
	plan := testPlanWithComponent("comp-1")

	refs := []ExternalPortRef{
		{Name: "output", ComponentID: "comp-1", PortID: "data_out"},
		{Name: "output", ComponentID: "comp-1", PortID: "data_out"},
	}
	err := w.PublishPorts(context.Background(), refs, plan)
	class, ok := ClassOf(err)
	if !ok || class != ClassDescriptorInvalid {
		t.Fatalf("expected a ClassDescriptorInvalid error for the duplicate name, got %v", err)
	}
}

func TestWirer_PublishPorts_UnknownComponentFails(t *testing.T) {
	app := newFakeApplicationHandle()
	w := NewWirer(app)
	plan := testPlanWithComponent("comp-1")

	refs := []ExternalPortRef{{Name: "output", ComponentID: "does-not-exist", PortID: "data_out"}}
	err := w.PublishPorts(context.Background(), refs, plan)
	if err == nil {
		t.Fatal("expected an error for an unknown component reference")
	}
}

func TestWirer_PublishPorts_MissingPortOnComponentFails(t *testing.T) {
	app := newFakeApplicationHandle()
	w := NewWirer(app)
	plan := testPlanWithComponent("comp-1")

	refs := []ExternalPortRef{{Name: "output", ComponentID: "comp-1", PortID: "data_out"}}
	err := w.PublishPorts(context.Background(), refs, plan)
	if err == nil {
		t.Fatal("expected an error when GetPort reports the port does not exist")
	}
}

func TestWirer_PublishProperties_Success(t *testing.T) {
	app := newFakeApplicationHandle()
	w := NewWirer(app)
	comp := &ComponentSpec{InstanceID: "comp-1", ConfigureProperties: []PropertyRef{{ID: "gain"}}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{comp}, NewScopedAllocations(&deploymentAllocator{}))

	refs := []ExternalPropertyRef{{Name: "rf_gain", ComponentID: "comp-1", PropertyID: "gain"}}
	if err := w.PublishProperties(context.Background(), refs, plan); err != nil {
		t.Fatalf("PublishProperties failed: %v", err)
	}
	if len(plan.ExternalProperties) != 1 {
		t.Errorf("expected one external property recorded, got %v", plan.ExternalProperties)
	}
}

func TestWirer_PublishProperties_CollidesWithAssemblyControllerProperty(t *testing.T) {
	app := newFakeApplicationHandle()
	w := NewWirer(app)
	ac := &ComponentSpec{InstanceID: "ac", ConfigureProperties: []PropertyRef{{ID: "rf_gain"}}}
	comp := &ComponentSpec{InstanceID: "comp-1", ConfigureProperties: []PropertyRef{{ID: "gain"}}}
	plan := NewDeploymentPlan("app-1", []*ComponentSpec{ac, comp}, NewScopedAllocations(&deploymentAllocator{}))
	plan.AssemblyController = ac

	refs := []ExternalPropertyRef{{Name: "rf_gain", ComponentID: "comp-1", PropertyID: "gain"}}
	err := w.PublishProperties(context.Background(), refs, plan)
	class, ok := ClassOf(err)
	if !ok || class != ClassDescriptorInvalid {
		t.Fatalf("expected a ClassDescriptorInvalid error for the alias collision, got %v", err)
	}
}

func TestWirer_PublishProperties_MissingPropertyOnComponentFails(t *testing.T) {
	app := newFakeApplicationHandle()
	w := NewWirer(app)
	plan := testPlanWithComponent("comp-1")

	refs := []ExternalPropertyRef{{Name: "rf_gain", ComponentID: "comp-1", PropertyID: "gain"}}
	err := w.PublishProperties(context.Background(), refs, plan)
	if err == nil {
		t.Fatal("expected an error when the component has no such configure property")
	}
}
