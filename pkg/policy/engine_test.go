package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/redhawk/appfactory/pkg/deploy"
)

func TestNewEngine(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if eng == nil {
		t.Fatal("Engine is nil")
	}

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"component-naming",
		"assembly-controller-compliance",
		"kernel-module-maintenance-window",
		"collocation-size-limit",
		"device-trust",
	}

	for _, expected := range expectedPolicies {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestEvaluateComponent_NamingPolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name            string
		component       *deploy.ComponentSpec
		expectAllowed   bool
		expectViolation bool
	}{
		{
			name:            "valid instance id",
			component:       &deploy.ComponentSpec{InstanceID: "valid-component:1"},
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name:            "uppercase in instance id",
			component:       &deploy.ComponentSpec{InstanceID: "Invalid-Component"},
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "missing instance id",
			component:       &deploy.ComponentSpec{},
			expectAllowed:   false,
			expectViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateComponent(context.Background(), tt.component, nil)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v", tt.expectAllowed, result.Allowed, result.Violations)
			}

			hasViolation := len(result.Violations) > 0
			if hasViolation != tt.expectViolation {
				t.Errorf("Expected violation=%v, got %v violations: %+v", tt.expectViolation, hasViolation, result.Violations)
			}
		})
	}
}

func TestEvaluateComponent_AssemblyControllerCompliance(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name            string
		component       *deploy.ComponentSpec
		expectViolation bool
	}{
		{
			name: "compliant assembly controller",
			component: &deploy.ComponentSpec{
				InstanceID:           "controller",
				IsAssemblyController: true,
				IsScaCompliant:       true,
				IsResource:           true,
			},
			expectViolation: false,
		},
		{
			name: "non sca-compliant assembly controller",
			component: &deploy.ComponentSpec{
				InstanceID:           "controller",
				IsAssemblyController: true,
				IsScaCompliant:       false,
				IsResource:           true,
			},
			expectViolation: true,
		},
		{
			name: "not assembly controller, non-compliant, fine",
			component: &deploy.ComponentSpec{
				InstanceID:     "worker",
				IsScaCompliant: false,
			},
			expectViolation: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateComponent(context.Background(), tt.component, nil)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			hasViolation := false
			for _, v := range result.Violations {
				if v.Policy == "assembly-controller-compliance" {
					hasViolation = true
				}
			}
			if hasViolation != tt.expectViolation {
				t.Errorf("Expected violation=%v, got %v. Violations: %+v", tt.expectViolation, hasViolation, result.Violations)
			}
		})
	}
}

func TestEvaluatePlan_AssemblyControllerRequired(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	plan := &deploy.DeploymentPlan{
		AppID: "test-app",
	}

	result, err := eng.EvaluatePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected plan without an assembly controller to be rejected")
	}
}

func TestEvaluateComponent_KernelModuleMaintenanceWindow(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	component := &deploy.ComponentSpec{
		InstanceID: "driver-component",
	}
	component.Implementations = []*deploy.ImplSpec{{ID: "impl-1", CodeType: deploy.CodeKernelModule}}
	component.SelectedImplementation = component.Implementations[0]

	// Outside a maintenance window, production rejects the load.
	result, err := eng.EvaluateComponent(context.Background(), component, &PolicyContext{
		Environment:       "production",
		MaintenanceWindow: false,
	})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected kernel module load outside maintenance window to be rejected")
	}

	// Inside the maintenance window it is allowed.
	result, err = eng.EvaluateComponent(context.Background(), component, &PolicyContext{
		Environment:       "production",
		MaintenanceWindow: true,
	})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected kernel module load inside maintenance window to be allowed, violations: %+v", result.Violations)
	}
}

func TestEvaluateComponent_DeviceTrust(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	component := &deploy.ComponentSpec{
		InstanceID: "worker",
	}
	component.Implementations = []*deploy.ImplSpec{{ID: "impl-1", CodeType: deploy.CodeExecutable}}
	component.SelectedImplementation = component.Implementations[0]
	component.AssignedDevice = &deploy.DeviceNode{Identifier: "dev-1", Executable: false}

	result, err := eng.EvaluateComponent(context.Background(), component, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected placement onto a non-executable device to be rejected")
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policyName := "component-naming"

	if err := eng.DisablePolicy(policyName); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	policy, err := eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}
	if policy.Enabled {
		t.Error("Policy should be disabled")
	}

	component := &deploy.ComponentSpec{InstanceID: "INVALID_NAME"}
	result, err := eng.EvaluateComponent(context.Background(), component, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	for _, v := range result.Violations {
		if v.Policy == policyName {
			t.Error("Disabled policy should not generate violations")
		}
	}

	if err := eng.EnablePolicy(policyName); err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}
	policy, err = eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled")
	}
}

func TestReloadPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	initialCount := len(eng.ListPolicies())

	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	afterReloadCount := len(eng.ListPolicies())
	if initialCount != afterReloadCount {
		t.Errorf("Expected %d policies after reload, got %d", initialCount, afterReloadCount)
	}
}

func TestListPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No policies returned")
	}

	for _, p := range policies {
		if p.Name == "" {
			t.Error("Policy has empty name")
		}
		if p.Rego == "" {
			t.Error("Policy has empty Rego code")
		}
		if p.CreatedAt.IsZero() {
			t.Error("Policy has zero CreatedAt")
		}
	}
}

func TestEvaluatePlan_CollocationSizeLimit(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	assignments := make([]deploy.ComponentDeviceAssignment, 0, 10)
	for i := 0; i < 10; i++ {
		assignments = append(assignments, deploy.ComponentDeviceAssignment{
			ComponentID: "comp",
			DeviceID:    "dev-1",
		})
	}

	plan := &deploy.DeploymentPlan{
		AppID:          "test-app",
		AppUsedDevices: assignments,
		AssemblyController: &deploy.ComponentSpec{
			InstanceID:           "controller",
			IsAssemblyController: true,
			IsScaCompliant:       true,
			IsResource:           true,
		},
	}

	result, err := eng.EvaluatePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "collocation-size-limit" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected collocation-size-limit violation, got: %+v", result.Violations)
	}
}
