package deploy

import (
	"context"
	"fmt"
)

// Wirer validates and registers externally-visible ports and properties
// on the Application Handle, grounded on
// createHelper::setUpExternalPorts/setUpExternalProperties.
type Wirer struct {
	app ApplicationHandle
}

// NewWirer returns an External Ports/Properties Wirer bound to app.
func NewWirer(app ApplicationHandle) *Wirer {
	return &Wirer{app: app}
}

// PublishPorts validates each referenced port identifier against the
// owning component's getPort result and registers it, enforcing
// external-port name uniqueness.
func (w *Wirer) PublishPorts(ctx context.Context, refs []ExternalPortRef, plan *DeploymentPlan) error {
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		if seen[ref.Name] {
			return NewDescriptorInvalidError(fmt.Sprintf("duplicate external port name %q", ref.Name), nil)
		}
		seen[ref.Name] = true

		if _, ok := plan.ComponentsByID[ref.ComponentID]; !ok {
			return NewDescriptorInvalidError(fmt.Sprintf("external port %q references unknown component %q", ref.Name, ref.ComponentID), nil)
		}
		ok, err := w.app.GetPort(ctx, ref.ComponentID, ref.PortID)
		if err != nil {
			return NewRemoteFailureError("getPort failed while validating external port", err).WithResource(ref.ComponentID)
		}
		if !ok {
			return NewDescriptorInvalidError(fmt.Sprintf("external port %q: component %q has no port %q", ref.Name, ref.ComponentID, ref.PortID), nil)
		}

		port := ExternalPort{Name: ref.Name, ComponentID: ref.ComponentID, PortID: ref.PortID}
		if err := w.app.RegisterExternalPort(ctx, port); err != nil {
			return NewRemoteFailureError("failed to register external port", err).WithResource(ref.ComponentID)
		}
		plan.ExternalPorts = append(plan.ExternalPorts, port)
	}
	return nil
}

// PublishProperties validates each referenced external property against
// the owning component's configure properties and registers it,
// enforcing external-property name uniqueness and that no alias collides
// with the assembly controller's own property IDs.
func (w *Wirer) PublishProperties(ctx context.Context, refs []ExternalPropertyRef, plan *DeploymentPlan) error {
	seen := make(map[string]bool, len(refs))
	acPropertyIDs := acPropertyIDSet(plan.AssemblyController)

	for _, ref := range refs {
		if seen[ref.Name] {
			return NewDescriptorInvalidError(fmt.Sprintf("duplicate external property name %q", ref.Name), nil)
		}
		seen[ref.Name] = true

		if acPropertyIDs[ref.Name] {
			return NewDescriptorInvalidError(fmt.Sprintf("external property alias %q collides with an assembly controller property ID", ref.Name), nil)
		}

		comp, ok := plan.ComponentsByID[ref.ComponentID]
		if !ok {
			return NewDescriptorInvalidError(fmt.Sprintf("external property %q references unknown component %q", ref.Name, ref.ComponentID), nil)
		}
		if !componentHasProperty(comp, ref.PropertyID) {
			return NewDescriptorInvalidError(fmt.Sprintf("external property %q: component %q has no property %q", ref.Name, ref.ComponentID, ref.PropertyID), nil)
		}

		prop := ExternalProperty{Name: ref.Name, ComponentID: ref.ComponentID, PropertyID: ref.PropertyID}
		if err := w.app.RegisterExternalProperty(ctx, prop); err != nil {
			return NewRemoteFailureError("failed to register external property", err).WithResource(ref.ComponentID)
		}
		plan.ExternalProperties = append(plan.ExternalProperties, prop)
	}
	return nil
}

func acPropertyIDSet(ac *ComponentSpec) map[string]bool {
	set := make(map[string]bool)
	if ac == nil {
		return set
	}
	for _, p := range ac.ConfigureProperties {
		set[p.ID] = true
	}
	return set
}

func componentHasProperty(comp *ComponentSpec, propertyID string) bool {
	for _, p := range comp.ConfigureProperties {
		if p.ID == propertyID {
			return true
		}
	}
	return false
}
