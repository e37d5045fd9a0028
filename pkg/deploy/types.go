// Package deploy implements the Application Factory Core: it selects
// implementations, allocates capacity on remote devices, loads and
// executes components, wires and configures them, and rolls back cleanly
// on any failure encountered along the way.
package deploy

import "time"

// CodeType enumerates the four kinds of deployable code an implementation
// may carry. Only Executable and SharedLibrary-with-entrypoint are
// eligible for an execute() call; Driver and KernelModule are loaded only.
type CodeType string

const (
	CodeExecutable     CodeType = "executable"
	CodeSharedLibrary  CodeType = "shared_library"
	CodeDriver         CodeType = "driver"
	CodeKernelModule   CodeType = "kernel_module"
)

// OSDependency names an operating-system requirement as a (name, version)
// pair, matched against a DeviceNode's property descriptor.
type OSDependency struct {
	Name    string
	Version string
}

// PropertyKind discriminates the four variants of a dependency property
// reference named in the design notes: Simple, SimpleSequence, Struct, and
// StructSequence all share a "cast to typed property" contract, modeled
// here as a tagged sum rather than an interface hierarchy.
type PropertyKind string

const (
	PropertySimple         PropertyKind = "simple"
	PropertySimpleSequence PropertyKind = "simple_sequence"
	PropertyStruct         PropertyKind = "struct"
	PropertyStructSequence PropertyKind = "struct_sequence"
)

// PropertyRef is a single typed property reference carried on an
// implementation's dependencyProperties, or inside an allocation request
// once cast. Value holds the scalar of a Simple property (or of a Struct
// field); Members holds the elements of the two sequence kinds and the
// named fields of a Struct.
type PropertyRef struct {
	ID      string        `json:"id"`
	Kind    PropertyKind  `json:"kind"`
	Value   interface{}   `json:"value,omitempty"`
	Members []PropertyRef `json:"members,omitempty"`
}

// UsesDeviceSpec is a declarative capacity dependency: its satisfying
// device is reported back to the owning component (or implementation) as
// a property once allocation succeeds.
type UsesDeviceSpec struct {
	ID                string        `json:"id"`
	AllocationProps   []PropertyRef `json:"allocationProperties"`
	AssignedDeviceID   string       `json:"assignedDeviceId,omitempty"`
}

// ImplSpec is one implementation choice for a component: its code, the
// platform it requires, and the soft-package bundles it recursively needs
// loaded onto the same device before it can run.
type ImplSpec struct {
	ID                   string         `json:"id"`
	ProcessorDeps        []string       `json:"processorDeps,omitempty"`
	OSDeps               []OSDependency `json:"osDeps,omitempty"`
	CodeType             CodeType       `json:"codeType"`
	EntryPoint           string         `json:"entryPoint,omitempty"`
	LocalFileName        string         `json:"localFileName"`
	DependencyProperties []PropertyRef  `json:"dependencyProperties,omitempty"`
	SoftPkgDependencies  []*ImplSpec    `json:"softPkgDependencies,omitempty"`
	UsesDevices          []UsesDeviceSpec `json:"usesDevices,omitempty"`

	// selectedSoftPkg records, per entry in SoftPkgDependencies, the
	// implementation chosen by the Dependency Resolver so a failed later
	// step can clear exactly what this attempt selected.
	selectedSoftPkg map[int]*ImplSpec
}

// ExecParam is an ordered execute() parameter: id and value, in the order
// the component declared them, before the five/six reserved keys are
// merged in.
type ExecParam struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// ComponentSpec is one component instantiation inside the assembly being
// deployed.
type ComponentSpec struct {
	InstanceID           string            `json:"instanceId"`
	UsageName            string            `json:"usageName"`
	SPDPath              string            `json:"spdPath"`
	IsAssemblyController bool              `json:"isAssemblyController"`
	IsScaCompliant       bool              `json:"isScaCompliant"`
	IsResource           bool              `json:"isResource"`
	UsesNamingService    bool              `json:"usesNamingService"`
	NamingServiceName    string            `json:"namingServiceName,omitempty"`
	StartOrder           *int              `json:"startOrder,omitempty"`
	OverriddenProperties map[string]interface{} `json:"overriddenProperties,omitempty"`
	ExecParameters       []ExecParam       `json:"execParameters,omitempty"`
	Implementations      []*ImplSpec       `json:"implementations"`
	UsesDevices          []UsesDeviceSpec  `json:"usesDevices,omitempty"`
	ConfigureProperties  []PropertyRef     `json:"configureProperties,omitempty"`

	// Mutable during placement.
	SelectedImplementation *ImplSpec `json:"selectedImplementation,omitempty"`
	AssignedDevice          *DeviceNode `json:"assignedDevice,omitempty"`
}

// UsageState mirrors the transient usage state a remote device reports.
type UsageState string

const (
	UsageIdle    UsageState = "idle"
	UsageActive  UsageState = "active"
	UsageBusy    UsageState = "busy"
)

// DeviceNode is one entry from the Domain Manager's registered-device
// list. RemoteHandle is opaque to this package; it is the reference the
// device transport (pkg/device) dials into.
type DeviceNode struct {
	Identifier          string        `json:"identifier"`
	Label                string        `json:"label"`
	Executable           bool         `json:"executable"`
	Processors           []string      `json:"processors"`
	OperatingSystems     []OSDependency `json:"operatingSystems"`
	RemoteHandle         interface{}   `json:"-"`
	UsageState           UsageState    `json:"usageState"`
}

// SatisfiesProcessor reports whether this device's processor list
// intersects deps; an empty deps list is trivially satisfied.
func (d *DeviceNode) SatisfiesProcessor(deps []string) bool {
	if len(deps) == 0 {
		return true
	}
	for _, want := range deps {
		for _, have := range d.Processors {
			if want == have {
				return true
			}
		}
	}
	return false
}

// SatisfiesOS reports whether this device's OS list intersects deps; an
// empty deps list is trivially satisfied.
func (d *DeviceNode) SatisfiesOS(deps []OSDependency) bool {
	if len(deps) == 0 {
		return true
	}
	for _, want := range deps {
		for _, have := range d.OperatingSystems {
			if want == have {
				return true
			}
		}
	}
	return false
}

// AllocationRequest is one capacity request sent to the Allocation
// Manager, identified by a fresh UUID so its response can be reconciled
// back to the request that produced it.
type AllocationRequest struct {
	RequestID           string         `json:"requestId"`
	AllocationProperties []PropertyRef `json:"allocationProperties"`
	ProcessorDeps        []string      `json:"processorDeps,omitempty"`
	OSDeps               []OSDependency `json:"osDeps,omitempty"`
}

// AllocationResponse is the Allocation Manager's answer to one
// AllocationRequest. An empty AllocationID signals failure to satisfy the
// request against any candidate device.
type AllocationResponse struct {
	RequestID     string     `json:"requestId"`
	AllocationID  string     `json:"allocationId"`
	AllocatedDevice *DeviceNode `json:"allocatedDevice,omitempty"`
}

// Succeeded reports whether the allocator found a device for this
// response.
func (r *AllocationResponse) Succeeded() bool {
	return r != nil && r.AllocationID != ""
}

// ComponentDeviceAssignment records which device backs one component once
// placement commits, alongside the remote handle used to drive it.
type ComponentDeviceAssignment struct {
	ComponentID  string      `json:"componentId"`
	DeviceID     string      `json:"deviceId"`
	RemoteHandle interface{} `json:"-"`
}

// SoftPkgLoad records one soft-package file staged onto a device, kept
// purely to drive best-effort unload during rollback.
type SoftPkgLoad struct {
	DeviceID string `json:"deviceId"`
	FilePath string `json:"filePath"`
}

// ConnectionRecord is one resolved connection between a uses-port and a
// provides-port, recorded in reverse declaration order as it is connected.
type ConnectionRecord struct {
	ID              string `json:"id"`
	UsesComponentID string `json:"usesComponentId"`
	UsesPortName    string `json:"usesPortName"`
	ProvidesComponentID string `json:"providesComponentId"`
	ProvidesPortName    string `json:"providesPortName"`
}

// ExternalPort is one externally-visible port alias published on the
// Application Handle.
type ExternalPort struct {
	Name        string `json:"name"`
	ComponentID string `json:"componentId"`
	PortID      string `json:"portId"`
}

// ExternalProperty is one externally-visible property alias published on
// the Application Handle.
type ExternalProperty struct {
	Name        string `json:"name"`
	ComponentID string `json:"componentId"`
	PropertyID  string `json:"propertyId"`
}

// DeviceAssignment is one user-supplied entry in the Device Assignment Map
// passed to Create: pin componentId onto deviceId.
type DeviceAssignment struct {
	ComponentID string `json:"componentId"`
	DeviceID    string `json:"deviceId"`
}

// InitProperty is one entry of the initConfiguration list passed to
// Create, before the reserved TRUSTED_APPLICATION key is stripped out.
type InitProperty struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// CreateRequest bundles the inbound arguments to Create.
type CreateRequest struct {
	Name              string              `json:"name" validate:"required"`
	InitConfiguration []InitProperty      `json:"initConfiguration,omitempty"`
	DeviceAssignments []DeviceAssignment  `json:"deviceAssignments,omitempty"`
}

// ReservedTrustedApplicationKey is the initConfiguration key stripped
// before the remainder is forwarded, defaulting to true when absent.
const ReservedTrustedApplicationKey = "TRUSTED_APPLICATION"

// Reserved exec parameter keys injected by the Deploy Transaction ahead of
// every execute() call.
const (
	ExecParamNamingContextIOR = "NAMING_CONTEXT_IOR"
	ExecParamComponentID      = "COMPONENT_IDENTIFIER"
	ExecParamNameBinding      = "NAME_BINDING"
	ExecParamDomPath          = "DOM_PATH"
	ExecParamProfileName      = "PROFILE_NAME"
	ExecParamLoggingConfigURI = "LOGGING_CONFIG_URI"
)

// DomainPropertyDefaultLoggingConfigURI is the domain-wide property id a
// Domain Manager operator sets to control the LOGGING_CONFIG_URI handed to
// components that don't declare their own.
const DomainPropertyDefaultLoggingConfigURI = "DEFAULT_LOGGING_CONFIG_URI"

// fallbackLoggingConfigURI is used when no domain-wide default has been set.
const fallbackLoggingConfigURI = "sca:/mgr/default_logging.properties"

// CollocationGroup is a set of components declared to share one host
// device, identified by instance ID.
type CollocationGroup struct {
	ID           string   `json:"id"`
	ComponentIDs []string `json:"componentIds"`
}

// DeploymentPlan is the mutable working state of one Create call: the
// component set, the order components start in, the devices each
// component and uses-device edge ended up on, the scoped allocation
// tracker, and everything needed to publish or roll back.
type DeploymentPlan struct {
	AppID              string
	WaveformContext     string
	Components          []*ComponentSpec
	ComponentsByID      map[string]*ComponentSpec
	StartOrder          []string
	AppUsedDevices      []ComponentDeviceAssignment
	UsesDeviceAssignments map[string]ComponentDeviceAssignment // usesDevice id -> assignment
	Allocations         *ScopedAllocations
	SoftPkgLoads        []SoftPkgLoad
	Connections         []ConnectionRecord
	ExternalPorts       []ExternalPort
	ExternalProperties  []ExternalProperty
	AssemblyController  *ComponentSpec
	CreatedAt           time.Time

	// DeclaredConnections and the external port/property refs are carried
	// from the parsed descriptor through to the connect/publish phases.
	DeclaredConnections   []DeclaredConnection
	ExternalPortRefs      []ExternalPortRef
	ExternalPropertyRefs  []ExternalPropertyRef

	collocationGroups []CollocationGroup
}

// NewDeploymentPlan builds an empty plan ready to accumulate placement and
// wiring decisions as the Transaction runs.
func NewDeploymentPlan(appID string, components []*ComponentSpec, allocations *ScopedAllocations) *DeploymentPlan {
	byID := make(map[string]*ComponentSpec, len(components))
	for _, c := range components {
		byID[c.InstanceID] = c
	}
	return &DeploymentPlan{
		AppID:                 appID,
		Components:            components,
		ComponentsByID:        byID,
		UsesDeviceAssignments: make(map[string]ComponentDeviceAssignment),
		Allocations:           allocations,
	}
}

// ComponentDevice returns the device ID backing componentID, the
// introspection surface the original exposed as
// lookupDeviceThatLoadedComponentInstantiationId.
func (p *DeploymentPlan) ComponentDevice(componentID string) (string, bool) {
	for _, a := range p.AppUsedDevices {
		if a.ComponentID == componentID {
			return a.DeviceID, true
		}
	}
	return "", false
}

// UsesDeviceDevice returns the device ID backing the usesDevice edge
// identified by usesID, the introspection surface the original exposed as
// lookupDeviceUsedByComponentInstantiationId.
func (p *DeploymentPlan) UsesDeviceDevice(usesID string) (string, bool) {
	a, ok := p.UsesDeviceAssignments[usesID]
	if !ok {
		return "", false
	}
	return a.DeviceID, true
}

// AppUsesDeviceDevice is an alias of UsesDeviceDevice kept for parity with
// the original's lookupDeviceUsedByApplication, which answers the same
// question for application-level (as opposed to component-level)
// usesDevice edges.
func (p *DeploymentPlan) AppUsesDeviceDevice(usesID string) (string, bool) {
	return p.UsesDeviceDevice(usesID)
}
