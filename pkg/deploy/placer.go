package deploy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Placer places a single component onto a device, grounded on
// createHelper::allocateComponent/allocateComponentToDevice.
type Placer struct {
	allocator    AllocationManager
	usesDevices  *UsesDeviceAllocator
	resolver     *Resolver
	math         *MathEvaluator
}

// NewPlacer returns a Device Placer bound to allocator.
func NewPlacer(allocator AllocationManager) *Placer {
	return &Placer{
		allocator:   allocator,
		usesDevices: NewUsesDeviceAllocator(allocator),
		resolver:    NewResolver(),
		math:        NewMathEvaluator(),
	}
}

// AllocateComponent places component onto one of executableDevices,
// optionally narrowed to preferredDeviceID, committing the winning
// implementation, device, and allocation into plan. On success it
// mutates executableDevices in place (rotation heuristic) and returns the
// device's identifier.
func (p *Placer) AllocateComponent(ctx context.Context, component *ComponentSpec, preferredDeviceID string, executableDevices []*DeviceNode, plan *DeploymentPlan) (string, error) {
	candidates := executableDevices
	if preferredDeviceID != "" {
		candidates = filterByID(executableDevices, preferredDeviceID)
		if len(candidates) == 0 {
			return "", &CreateApplicationRequestError{
				Message:        fmt.Sprintf("device assignment map names unknown device %q", preferredDeviceID),
				BadAssignments: []BadAssignment{{ComponentID: component.InstanceID, DeviceID: preferredDeviceID}},
			}
		}
	}

	componentTracker := NewScopedAllocations(p.allocator)
	ok, err := p.usesDevices.Allocate(ctx, component.InstanceID, component.UsesDevices, component.ConfigureProperties, plan.UsesDeviceAssignments, componentTracker)
	if err != nil {
		componentTracker.Deallocate(ctx)
		return "", err
	}
	if !ok {
		componentTracker.Deallocate(ctx)
		return "", NewNoCapacityError("component-level usesDevice request unsatisfied", nil).WithResource(component.InstanceID)
	}

	for _, impl := range component.Implementations {
		implTracker := NewScopedAllocations(p.allocator)

		implOK, err := p.usesDevices.Allocate(ctx, component.InstanceID, impl.UsesDevices, component.ConfigureProperties, plan.UsesDeviceAssignments, implTracker)
		if err != nil || !implOK {
			implTracker.Deallocate(ctx)
			continue
		}

		props, err := castDependencyProperties(impl.DependencyProperties)
		if err != nil {
			implTracker.Deallocate(ctx)
			continue
		}
		props, err = p.math.EvaluateRequest(props, component.ConfigureProperties)
		if err != nil {
			implTracker.Deallocate(ctx)
			continue
		}

		requestID := uuid.NewString()
		resp, err := p.allocator.AllocateDeployment(ctx, requestID, props, candidates, impl.ProcessorDeps, impl.OSDeps)
		if err != nil || !resp.Succeeded() {
			implTracker.Deallocate(ctx)
			continue
		}

		if !p.resolver.ResolveSoftPkg(impl, resp.AllocatedDevice) {
			// Known source issue (flagged, not silently reproduced): the
			// original continues to the next implementation here without
			// releasing the allocation it just acquired. We deallocate it
			// before continuing — holding a reservation for a rejected
			// implementation serves no later attempt.
			component.SelectedImplementation = nil
			implTracker.Push(resp.AllocationID)
			implTracker.Deallocate(ctx)
			continue
		}

		implTracker.Push(resp.AllocationID)
		rotateDeviceList(candidates, resp.AllocatedDevice.Identifier)
		rotateDeviceList(executableDevices, resp.AllocatedDevice.Identifier)

		plan.AppUsedDevices = append(plan.AppUsedDevices, ComponentDeviceAssignment{
			ComponentID:  component.InstanceID,
			DeviceID:     resp.AllocatedDevice.Identifier,
			RemoteHandle: resp.AllocatedDevice.RemoteHandle,
		})

		componentTracker.Transfer(implTracker)
		implTracker.Transfer(plan.Allocations)

		component.SelectedImplementation = impl
		component.AssignedDevice = resp.AllocatedDevice
		return resp.AllocatedDevice.Identifier, nil
	}

	componentTracker.Deallocate(ctx)
	return "", p.noCapacityReason(component, executableDevices)
}

// noCapacityReason distinguishes the three failure messages the original
// produces by inspecting device state after every implementation has
// been tried and failed.
func (p *Placer) noCapacityReason(component *ComponentSpec, executableDevices []*DeviceNode) error {
	if len(executableDevices) == 0 {
		return NewNoCapacityError("no executable devices in domain", nil).WithResource(component.InstanceID)
	}
	allBusy := true
	for _, d := range executableDevices {
		if d.UsageState != UsageBusy {
			allBusy = false
			break
		}
	}
	if allBusy {
		return NewNoCapacityError("all executable devices busy", nil).WithResource(component.InstanceID)
	}
	return NewNoCapacityError("failed to satisfy device dependencies", nil).WithResource(component.InstanceID)
}

func filterByID(devices []*DeviceNode, id string) []*DeviceNode {
	for _, d := range devices {
		if d.Identifier == id {
			return []*DeviceNode{d}
		}
	}
	return nil
}

// castDependencyProperties converts an implementation's typed dependency
// property references into the format carried on an allocation request.
// All four PropertyKind variants already share the PropertyRef shape, so
// the "cast" is a structural copy, matching the design note that the cast
// function is a single match over the tagged sum.
func castDependencyProperties(deps []PropertyRef) ([]PropertyRef, error) {
	return clonePropertyRefs(deps), nil
}
