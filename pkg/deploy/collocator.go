package deploy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Collocator places a whole collocation group onto a single device,
// grounded on createHelper::_handleHostCollocation/_placeHostCollocation.
type Collocator struct {
	allocator   AllocationManager
	combinator  *Combinator
	resolver    *Resolver
}

// NewCollocator returns a Collocation Planner bound to allocator.
func NewCollocator(allocator AllocationManager) *Collocator {
	return &Collocator{allocator: allocator, combinator: NewCombinator(), resolver: NewResolver()}
}

// PlaceCollocation places every component in group onto one device,
// mutating executableDevices (rotation) and plan on success.
func (c *Collocator) PlaceCollocation(ctx context.Context, group CollocationGroup, plan *DeploymentPlan, executableDevices []*DeviceNode) error {
	var preAssigned, pending []*ComponentSpec
	anchorDevices := make(map[string]bool)
	for _, id := range group.ComponentIDs {
		comp, ok := plan.ComponentsByID[id]
		if !ok {
			return NewDescriptorInvalidError(fmt.Sprintf("collocation group %q references unknown component %q", group.ID, id), nil)
		}
		if comp.AssignedDevice != nil {
			preAssigned = append(preAssigned, comp)
			anchorDevices[comp.AssignedDevice.Identifier] = true
		} else {
			pending = append(pending, comp)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	tuples := c.combinator.Enumerate(pending)
	tuples = c.combinator.FilterCompatible(tuples)

	candidates := executableDevices
	if len(anchorDevices) > 0 {
		candidates = filterByIDs(executableDevices, anchorDevices)
	}

	for _, tuple := range tuples {
		processorDeps := c.combinator.MergeProcessorDeps(tuple)
		osDeps := c.combinator.MergeOsDeps(tuple)

		var props []PropertyRef
		for _, impl := range tuple {
			props = append(props, impl.DependencyProperties...)
		}

		requestID := uuid.NewString()
		resp, err := c.allocator.AllocateDeployment(ctx, requestID, props, candidates, processorDeps, osDeps)
		if err != nil || !resp.Succeeded() {
			continue
		}

		groupTracker := NewScopedAllocations(c.allocator)
		ok := true
		for i, comp := range pending {
			impl := tuple[i]
			if !c.resolver.ResolveSoftPkg(impl, resp.AllocatedDevice) {
				ok = false
				break
			}
			comp.SelectedImplementation = impl
			comp.AssignedDevice = resp.AllocatedDevice
		}
		if !ok {
			groupTracker.Push(resp.AllocationID)
			groupTracker.Deallocate(ctx)
			for _, comp := range pending {
				comp.SelectedImplementation = nil
				comp.AssignedDevice = nil
			}
			continue
		}

		groupTracker.Push(resp.AllocationID)
		rotateDeviceList(executableDevices, resp.AllocatedDevice.Identifier)

		for _, comp := range pending {
			plan.AppUsedDevices = append(plan.AppUsedDevices, ComponentDeviceAssignment{
				ComponentID:  comp.InstanceID,
				DeviceID:     resp.AllocatedDevice.Identifier,
				RemoteHandle: resp.AllocatedDevice.RemoteHandle,
			})
		}
		groupTracker.Transfer(plan.Allocations)
		return nil
	}

	return &CreateApplicationRequestError{Message: fmt.Sprintf("collocation group %q could not be placed", group.ID)}
}

func filterByIDs(devices []*DeviceNode, ids map[string]bool) []*DeviceNode {
	var out []*DeviceNode
	for _, d := range devices {
		if ids[d.Identifier] {
			out = append(out, d)
		}
	}
	return out
}
