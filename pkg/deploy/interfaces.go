package deploy

import (
	"context"
	"time"
)

// DescriptorLoader parses assembly/implementation descriptor files into
// the typed ComponentSpec records this package operates on. The
// descriptor language itself is out of scope to redesign; pkg/descriptor
// supplies a reference implementation.
type DescriptorLoader interface {
	// LoadAssembly parses the software assembly descriptor identified by
	// sadPath into the ordered component set, along with its declared
	// connections, collocation groups, and external port/property
	// aliases.
	LoadAssembly(ctx context.Context, sadPath string) (*AssemblyDescriptor, error)
}

// AssemblyDescriptor is everything the Deploy Transaction needs from a
// parsed software assembly.
type AssemblyDescriptor struct {
	SADID               string
	Components          []*ComponentSpec
	Connections         []DeclaredConnection
	CollocationGroups   []CollocationGroup
	ExternalPortRefs    []ExternalPortRef
	ExternalPropertyRefs []ExternalPropertyRef
}

// DeclaredConnection is one connection as declared in the assembly, in
// declaration order (the Transaction connects them in reverse).
type DeclaredConnection struct {
	ID                  string
	UsesComponentID     string
	UsesPortName        string
	ProvidesComponentID string
	ProvidesPortName    string
}

// ExternalPortRef is one externally-visible port alias as declared in the
// assembly, pending validation against the target component's supported
// interfaces.
type ExternalPortRef struct {
	Name        string
	ComponentID string
	PortID      string
}

// ExternalPropertyRef is one externally-visible property alias as
// declared in the assembly, pending validation against the target
// component's configure properties.
type ExternalPropertyRef struct {
	Name        string
	ComponentID string
	PropertyID  string
}

// ApplicationHandle is the post-launch application lifecycle object. The
// Deploy Transaction populates it as components load, execute, and
// register, and hands it the allocation-ID list and used-device list on
// commit.
type ApplicationHandle interface {
	// Activate creates and registers the application under appID,
	// returning a registrar reference components use to announce
	// themselves.
	Activate(ctx context.Context, appID, waveformContext string, trustedApplication bool) (interface{}, error)

	// AddComponent records one component as part of this application,
	// ahead of load/execute.
	AddComponent(ctx context.Context, component *ComponentSpec) error

	// SetComponentImplementation records the implementation chosen for
	// component.
	SetComponentImplementation(ctx context.Context, componentID string, impl *ImplSpec) error

	// SetComponentDevice records the device a component was assigned to.
	SetComponentDevice(ctx context.Context, componentID, deviceID string) error

	// SetComponentNamingContext records the naming-service binding name
	// used for a component, if it uses the naming service.
	SetComponentNamingContext(ctx context.Context, componentID, namingServiceName string) error

	// SetComponentPID records the process id returned by a successful
	// execute() call.
	SetComponentPID(ctx context.Context, componentID string, pid int) error

	// WaitForRegistration blocks until every SCA-compliant component has
	// registered with this handle, or returns the ID of the first
	// component still missing when timeout elapses.
	WaitForRegistration(ctx context.Context, timeout time.Duration) (missingComponentID string, ok bool)

	// Initialize calls initialize() on one SCA-compliant resource
	// component.
	Initialize(ctx context.Context, componentID string) error

	// Configure applies props to one component's configurable resource
	// interface.
	Configure(ctx context.Context, componentID string, props []PropertyRef) error

	// Connect resolves and records one connection.
	Connect(ctx context.Context, conn DeclaredConnection) (ConnectionRecord, error)

	// GetPort resolves a port on a component, used to validate external
	// port publication.
	GetPort(ctx context.Context, componentID, portID string) (bool, error)

	// RegisterExternalPort publishes a validated external port alias.
	RegisterExternalPort(ctx context.Context, port ExternalPort) error

	// RegisterExternalProperty publishes a validated external property
	// alias.
	RegisterExternalProperty(ctx context.Context, prop ExternalProperty) error

	// Commit hands the final allocation-ID list, used-device list, start
	// order, and connections to the handle, marking the deployment
	// published. No partial application is ever committed.
	Commit(ctx context.Context, allocationIDs []string, usedDevices []ComponentDeviceAssignment, startOrder []string, connections []ConnectionRecord) error

	// ReleaseComponents, TerminateComponents, UnloadComponents, and
	// CleanupActivations implement the rollback sequence in the order the
	// original's _cleanupFailedCreate runs them.
	ReleaseComponents(ctx context.Context) error
	TerminateComponents(ctx context.Context) error
	UnloadComponents(ctx context.Context) error
	CleanupActivations(ctx context.Context) error
}

// DomainManager is the Domain Manager contract the Deploy Transaction
// consumes.
type DomainManager interface {
	GetRegisteredDevices(ctx context.Context) ([]*DeviceNode, error)
	GetLastDeviceUsedForDeployment(ctx context.Context) (string, bool, error)
	SetLastDeviceUsedForDeployment(ctx context.Context, deviceID string) error
	GetComponentBindingTimeout(ctx context.Context) (time.Duration, error)
	AddApplication(ctx context.Context, handle ApplicationHandle) error
	GetPropertyFromID(ctx context.Context, propertyID string) (*PropertyRef, bool, error)
	FileManager(ctx context.Context) (FileManager, error)
}

// FileManager is the opaque file-system reference a device's load() call
// is handed, and whose IOR is appended to an sca:-scheme
// LOGGING_CONFIG_URI.
type FileManager interface {
	IOR() string
}

// Device is the remote device contract consumed per assigned DeviceNode,
// satisfied concretely by pkg/device.
type Device interface {
	Load(ctx context.Context, fm FileManager, path string, codeType CodeType) error
	Unload(ctx context.Context, path string) error
	Execute(ctx context.Context, path string, options map[string]string, params []ExecParam) (pid int, err error)
	UsageState(ctx context.Context) (UsageState, error)
	GetPort(ctx context.Context, portID string) (bool, error)
	IsA(ctx context.Context, interfaceID string) (bool, error)
	Ping(ctx context.Context) bool
}
