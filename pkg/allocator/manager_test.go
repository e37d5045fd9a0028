package allocator

import (
	"context"
	"testing"

	"github.com/redhawk/appfactory/pkg/deploy"
)

func TestManager_AllocateDeployment_GrantsWhenCapacityAvailable(t *testing.T) {
	m := NewManager(nil, map[string]map[string]float64{
		"dev-1": {"cpu_cores": 4},
	})
	candidates := []*deploy.DeviceNode{{Identifier: "dev-1", Executable: true}}
	props := []deploy.PropertyRef{{ID: "cpu_cores", Kind: deploy.PropertySimple, Value: int64(2)}}

	resp, err := m.AllocateDeployment(context.Background(), "req-1", props, candidates, nil, nil)
	if err != nil {
		t.Fatalf("AllocateDeployment failed: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatal("expected the allocation to succeed")
	}
	if resp.AllocatedDevice.Identifier != "dev-1" {
		t.Errorf("got device %q, want dev-1", resp.AllocatedDevice.Identifier)
	}
	if m.OutstandingCount() != 1 {
		t.Errorf("expected one outstanding allocation, got %d", m.OutstandingCount())
	}
}

func TestManager_AllocateDeployment_InsufficientCapacityFails(t *testing.T) {
	m := NewManager(nil, map[string]map[string]float64{
		"dev-1": {"cpu_cores": 1},
	})
	candidates := []*deploy.DeviceNode{{Identifier: "dev-1", Executable: true}}
	props := []deploy.PropertyRef{{ID: "cpu_cores", Kind: deploy.PropertySimple, Value: int64(4)}}

	resp, err := m.AllocateDeployment(context.Background(), "req-1", props, candidates, nil, nil)
	if err != nil {
		t.Fatalf("AllocateDeployment failed: %v", err)
	}
	if resp.Succeeded() {
		t.Fatal("expected the allocation to fail for insufficient capacity")
	}
}

func TestManager_AllocateDeployment_FiltersByProcessorAndOS(t *testing.T) {
	m := NewManager(nil, map[string]map[string]float64{
		"dev-arm": {},
		"dev-x86": {},
	})
	candidates := []*deploy.DeviceNode{
		{Identifier: "dev-arm", Executable: true, Processors: []string{"arm64"}},
		{Identifier: "dev-x86", Executable: true, Processors: []string{"x86_64"}},
	}

	resp, err := m.AllocateDeployment(context.Background(), "req-1", nil, candidates, []string{"x86_64"}, nil)
	if err != nil {
		t.Fatalf("AllocateDeployment failed: %v", err)
	}
	if !resp.Succeeded() || resp.AllocatedDevice.Identifier != "dev-x86" {
		t.Fatalf("expected dev-x86 to be chosen, got %v", resp.AllocatedDevice)
	}
}

func TestManager_DeallocateRestoresCapacity(t *testing.T) {
	m := NewManager(nil, map[string]map[string]float64{
		"dev-1": {"cpu_cores": 4},
	})
	candidates := []*deploy.DeviceNode{{Identifier: "dev-1", Executable: true}}
	props := []deploy.PropertyRef{{ID: "cpu_cores", Kind: deploy.PropertySimple, Value: int64(4)}}

	resp, _ := m.AllocateDeployment(context.Background(), "req-1", props, candidates, nil, nil)
	if !resp.Succeeded() {
		t.Fatal("expected the first allocation to succeed")
	}

	second, _ := m.AllocateDeployment(context.Background(), "req-2", props, candidates, nil, nil)
	if second.Succeeded() {
		t.Fatal("expected the second allocation to fail while the first holds all capacity")
	}

	if err := m.Deallocate(context.Background(), []string{resp.AllocationID}); err != nil {
		t.Fatalf("Deallocate failed: %v", err)
	}
	if m.OutstandingCount() != 0 {
		t.Errorf("expected 0 outstanding after deallocate, got %d", m.OutstandingCount())
	}

	third, _ := m.AllocateDeployment(context.Background(), "req-3", props, candidates, nil, nil)
	if !third.Succeeded() {
		t.Fatal("expected capacity to be available again after deallocate")
	}
}

func TestManager_DeallocateUnknownIDIsIgnored(t *testing.T) {
	m := NewManager(nil, nil)
	if err := m.Deallocate(context.Background(), []string{"does-not-exist"}); err != nil {
		t.Fatalf("expected unknown allocation ids to be ignored, got %v", err)
	}
}

func TestManager_Allocate_Batch(t *testing.T) {
	m := NewManager(nil, map[string]map[string]float64{
		"dev-1": {"cpu_cores": 8},
	})
	requests := []deploy.AllocationRequest{
		{RequestID: "r1", AllocationProperties: []deploy.PropertyRef{{ID: "cpu_cores", Kind: deploy.PropertySimple, Value: int64(2)}}},
		{RequestID: "r2", AllocationProperties: []deploy.PropertyRef{{ID: "cpu_cores", Kind: deploy.PropertySimple, Value: int64(2)}}},
	}
	resps, err := m.Allocate(context.Background(), requests)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if len(resps) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resps))
	}
	for _, r := range resps {
		if !r.Succeeded() {
			t.Errorf("expected request %q to succeed, got %+v", r.RequestID, r)
		}
	}
	if m.OutstandingCount() != 2 {
		t.Errorf("expected 2 outstanding allocations, got %d", m.OutstandingCount())
	}
}

func TestManager_StructPropertyCapacityIsFlattened(t *testing.T) {
	m := NewManager(nil, map[string]map[string]float64{
		"dev-1": {"mem.total_mb": 1024},
	})
	candidates := []*deploy.DeviceNode{{Identifier: "dev-1", Executable: true}}
	props := []deploy.PropertyRef{
		{
			ID:   "mem",
			Kind: deploy.PropertyStruct,
			Members: []deploy.PropertyRef{
				{ID: "total_mb", Kind: deploy.PropertySimple, Value: int64(512)},
			},
		},
	}

	resp, err := m.AllocateDeployment(context.Background(), "req-1", props, candidates, nil, nil)
	if err != nil {
		t.Fatalf("AllocateDeployment failed: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatal("expected the struct-nested capacity property to be matched")
	}
}

func TestManager_RegisterDeviceReplacesLedger(t *testing.T) {
	m := NewManager(nil, nil)
	m.RegisterDevice("dev-1", map[string]float64{"cpu_cores": 2})
	candidates := []*deploy.DeviceNode{{Identifier: "dev-1", Executable: true}}
	props := []deploy.PropertyRef{{ID: "cpu_cores", Kind: deploy.PropertySimple, Value: int64(2)}}

	resp, err := m.AllocateDeployment(context.Background(), "req-1", props, candidates, nil, nil)
	if err != nil {
		t.Fatalf("AllocateDeployment failed: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatal("expected capacity registered via RegisterDevice to be usable")
	}
}
