package domain

import (
	"context"
	"testing"
	"time"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/stores"
)

func setupTestStore(t *testing.T) stores.Store {
	t.Helper()
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeFileManager struct{ ior string }

func (f *fakeFileManager) IOR() string { return f.ior }

func TestManager_RegisterAndListDevices(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	ctx := context.Background()

	node := &deploy.DeviceNode{
		Identifier: "dev-1",
		Label:      "GPP 1",
		Executable: true,
		Processors: []string{"x86_64"},
		UsageState: deploy.UsageIdle,
	}
	if err := m.RegisterDevice(ctx, node); err != nil {
		t.Fatalf("RegisterDevice failed: %v", err)
	}

	devices, err := m.GetRegisteredDevices(ctx)
	if err != nil {
		t.Fatalf("GetRegisteredDevices failed: %v", err)
	}
	if len(devices) != 1 || devices[0].Identifier != "dev-1" {
		t.Fatalf("expected one registered device dev-1, got %v", devices)
	}
}

func TestManager_RegisterDevice_ReplacesExisting(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	ctx := context.Background()

	node := &deploy.DeviceNode{Identifier: "dev-1", Executable: true}
	if err := m.RegisterDevice(ctx, node); err != nil {
		t.Fatalf("RegisterDevice failed: %v", err)
	}
	node.Executable = false
	if err := m.RegisterDevice(ctx, node); err != nil {
		t.Fatalf("RegisterDevice (replace) failed: %v", err)
	}

	devices, err := m.GetRegisteredDevices(ctx)
	if err != nil {
		t.Fatalf("GetRegisteredDevices failed: %v", err)
	}
	if len(devices) != 1 || devices[0].Executable {
		t.Fatalf("expected the replacement record to stick, got %v", devices)
	}
}

func TestManager_DeregisterDevice(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	ctx := context.Background()

	node := &deploy.DeviceNode{Identifier: "dev-1", Executable: true}
	if err := m.RegisterDevice(ctx, node); err != nil {
		t.Fatalf("RegisterDevice failed: %v", err)
	}
	if err := m.DeregisterDevice(ctx, "dev-1"); err != nil {
		t.Fatalf("DeregisterDevice failed: %v", err)
	}

	devices, err := m.GetRegisteredDevices(ctx)
	if err != nil {
		t.Fatalf("GetRegisteredDevices failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected no devices after deregister, got %v", devices)
	}
}

func TestManager_DeregisterUnknownDeviceIsNoop(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	if err := m.DeregisterDevice(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("expected deregistering an unknown device to be a no-op, got %v", err)
	}
}

func TestManager_LastDeviceUsedForDeployment_RoundTrip(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	ctx := context.Background()

	_, ok, err := m.GetLastDeviceUsedForDeployment(ctx)
	if err != nil {
		t.Fatalf("GetLastDeviceUsedForDeployment failed: %v", err)
	}
	if ok {
		t.Fatal("expected no last-used device before any deployment")
	}

	if err := m.SetLastDeviceUsedForDeployment(ctx, "dev-1"); err != nil {
		t.Fatalf("SetLastDeviceUsedForDeployment failed: %v", err)
	}
	last, ok, err := m.GetLastDeviceUsedForDeployment(ctx)
	if err != nil || !ok || last != "dev-1" {
		t.Fatalf("got last=%q ok=%v err=%v, want dev-1/true", last, ok, err)
	}
}

func TestManager_GetComponentBindingTimeout_DefaultsWhenUnset(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	timeout, err := m.GetComponentBindingTimeout(context.Background())
	if err != nil {
		t.Fatalf("GetComponentBindingTimeout failed: %v", err)
	}
	if timeout != defaultBindingTimeout {
		t.Errorf("got %v, want default %v", timeout, defaultBindingTimeout)
	}
}

func TestManager_GetComponentBindingTimeout_UsesConfigured(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t), BindingTimeout: 5 * time.Second}, nil)
	timeout, err := m.GetComponentBindingTimeout(context.Background())
	if err != nil {
		t.Fatalf("GetComponentBindingTimeout failed: %v", err)
	}
	if timeout != 5*time.Second {
		t.Errorf("got %v, want 5s", timeout)
	}
}

func TestManager_DomainProperty_RoundTrip(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	ctx := context.Background()

	_, ok, err := m.GetPropertyFromID(ctx, "rf_center_freq")
	if err != nil {
		t.Fatalf("GetPropertyFromID failed: %v", err)
	}
	if ok {
		t.Fatal("expected no domain property before SetDomainProperty")
	}

	ref := deploy.PropertyRef{ID: "rf_center_freq", Kind: deploy.PropertySimple, Value: float64(100.5)}
	if err := m.SetDomainProperty(ctx, ref); err != nil {
		t.Fatalf("SetDomainProperty failed: %v", err)
	}

	got, ok, err := m.GetPropertyFromID(ctx, "rf_center_freq")
	if err != nil || !ok {
		t.Fatalf("GetPropertyFromID failed after set: ok=%v err=%v", ok, err)
	}
	if got.ID != "rf_center_freq" {
		t.Errorf("got property id %q, want rf_center_freq", got.ID)
	}
}

func TestManager_FileManager_ErrorsWhenUnconfigured(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	if _, err := m.FileManager(context.Background()); err == nil {
		t.Fatal("expected an error when no file manager is configured")
	}
}

func TestManager_FileManager_ReturnsConfigured(t *testing.T) {
	fm := &fakeFileManager{ior: "IOR:010000..."}
	m := NewManager(Config{Store: setupTestStore(t), FileManager: fm}, nil)
	got, err := m.FileManager(context.Background())
	if err != nil {
		t.Fatalf("FileManager failed: %v", err)
	}
	if got.IOR() != fm.ior {
		t.Errorf("got IOR %q, want %q", got.IOR(), fm.ior)
	}
}

func TestManager_AddApplication(t *testing.T) {
	m := NewManager(Config{Store: setupTestStore(t)}, nil)
	if err := m.AddApplication(context.Background(), nil); err != nil {
		t.Fatalf("AddApplication failed: %v", err)
	}
}
