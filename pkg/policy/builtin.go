package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		componentNamingPolicy(),
		assemblyControllerCompliancePolicy(),
		kernelModuleMaintenanceWindowPolicy(),
		collocationSizeLimitPolicy(),
		deviceTrustPolicy(),
	}
}

// componentNamingPolicy enforces instance-ID naming conventions.
func componentNamingPolicy() Policy {
	return Policy{
		Name:        "component-naming",
		Description: "Enforces component instance-ID naming conventions (lowercase letters, digits, and - _ : . only)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package appfactory.policies.naming

import rego.v1

deny contains violation if {
	input.component
	component := input.component

	not component.instanceId
	violation := {
		"message": "component must have an instanceId",
		"severity": "error",
	}
}

deny contains violation if {
	input.component
	component := input.component
	name := component.instanceId

	lower(name) != name
	violation := {
		"message": sprintf("component instanceId '%s' must be lowercase", [name]),
		"severity": "error",
		"resource": name,
	}
}

deny contains violation if {
	input.component
	component := input.component
	name := component.instanceId

	not regex.match("^[a-z0-9_:.-]+$", name)
	violation := {
		"message": sprintf("component instanceId '%s' must contain only lowercase letters, numbers, and -_:.", [name]),
		"severity": "error",
		"resource": name,
	}
}

deny contains violation if {
	input.component
	component := input.component
	name := component.instanceId

	count(name) > 255
	violation := {
		"message": sprintf("component instanceId '%s' must not exceed 255 characters", [name]),
		"severity": "error",
		"resource": name,
	}
}`,
	}
}

// assemblyControllerCompliancePolicy requires the component designated as
// assembly controller to be both SCA-compliant and a CF Resource, the two
// properties the Deploy Transaction's initialize/configure/run sequence
// depends on.
func assemblyControllerCompliancePolicy() Policy {
	return Policy{
		Name:        "assembly-controller-compliance",
		Description: "Requires the assembly controller component to be SCA-compliant and a CF Resource",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"assembly-controller", "compliance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package appfactory.policies.assemblycontroller

import rego.v1

deny contains violation if {
	input.component
	component := input.component
	component.isAssemblyController

	not component.isScaCompliant
	violation := {
		"message": sprintf("assembly controller %s must be SCA-compliant", [component.instanceId]),
		"severity": "critical",
		"resource": component.instanceId,
	}
}

deny contains violation if {
	input.component
	component := input.component
	component.isAssemblyController

	not component.isResource
	violation := {
		"message": sprintf("assembly controller %s must be a CF Resource", [component.instanceId]),
		"severity": "critical",
		"resource": component.instanceId,
	}
}

deny contains violation if {
	input.plan
	plan := input.plan

	object.get(plan, "AssemblyController", null) == null
	violation := {
		"message": "deployment plan has no assembly controller",
		"severity": "critical",
	}
}`,
	}
}

// kernelModuleMaintenanceWindowPolicy restricts loading kernel-module and
// driver implementations to an approved maintenance window, since a bad
// driver load can take the whole device down rather than just the
// component.
func kernelModuleMaintenanceWindowPolicy() Policy {
	return Policy{
		Name:        "kernel-module-maintenance-window",
		Description: "Restricts kernel module and driver loads to an approved maintenance window",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"devices", "safety", "maintenance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package appfactory.policies.maintenance

import rego.v1

restricted_code_types := {"kernel_module", "driver"}

deny contains violation if {
	input.component
	input.context
	component := input.component
	context := input.context

	impl := component.selectedImplementation
	impl.codeType in restricted_code_types

	context.environment == "production"
	not context.maintenance_window

	violation := {
		"message": sprintf("component %s selects a %s implementation outside an approved maintenance window", [component.instanceId, impl.codeType]),
		"severity": "error",
		"resource": component.instanceId,
	}
}`,
	}
}

// collocationSizeLimitPolicy warns when too many components are pinned to
// the same device via hostCollocation, since an oversized collocation
// group concentrates failure and starves capacity planning.
func collocationSizeLimitPolicy() Policy {
	return Policy{
		Name:        "collocation-size-limit",
		Description: "Warns when a single device hosts an unusually large number of collocated components",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"placement", "collocation"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package appfactory.policies.collocation

import rego.v1

max_collocated_components := 8

deny contains violation if {
	input.plan
	plan := input.plan

	some device_id, count in device_component_counts(plan)
	count > max_collocated_components

	violation := {
		"message": sprintf("device %s hosts %d collocated components, exceeding the recommended limit of %d", [device_id, count, max_collocated_components]),
		"severity": "warning",
		"resource": device_id,
	}
}

device_component_counts(plan) := {device_id: n |
	devices := {assignment.deviceId |
		some assignment in plan.AppUsedDevices
		assignment.deviceId != ""
	}
	some device_id in devices
	n := count([assignment |
		some assignment in plan.AppUsedDevices
		assignment.deviceId == device_id
	])
}`,
	}
}

// deviceTrustPolicy blocks placing an executable-code component onto a
// device that has not advertised itself as executable, and flags a
// busy device accepting new placements in production.
func deviceTrustPolicy() Policy {
	return Policy{
		Name:        "device-trust",
		Description: "Blocks placing executable components on non-executable devices and flags placements onto busy devices",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"devices", "placement", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package appfactory.policies.devicetrust

import rego.v1

deny contains violation if {
	input.component
	component := input.component

	device := component.assignedDevice
	device
	impl := component.selectedImplementation
	impl
	impl.codeType == "executable"

	not device.executable
	violation := {
		"message": sprintf("component %s assigned to non-executable device %s", [component.instanceId, device.identifier]),
		"severity": "error",
		"resource": component.instanceId,
	}
}

deny contains violation if {
	input.component
	input.context
	component := input.component
	context := input.context

	device := component.assignedDevice
	device
	device.usageState == "busy"
	context.environment == "production"

	violation := {
		"message": sprintf("component %s placed onto busy device %s in production", [component.instanceId, device.identifier]),
		"severity": "warning",
		"resource": component.instanceId,
	}
}`,
	}
}
