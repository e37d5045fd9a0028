// Package application provides a reference implementation of the
// Application Handle contract: the post-launch lifecycle object that
// receives registered components, wiring, and allocation IDs as a
// deployment transaction runs, and answers introspection queries once
// published.
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/telemetry"
)

// componentRecord tracks everything recorded about one component as the
// transaction proceeds.
type componentRecord struct {
	spec              *deploy.ComponentSpec
	impl              *deploy.ImplSpec
	deviceID          string
	namingContextName string
	pid               int
	registered        bool
	initialized       bool
}

// Handle is an in-memory reference ApplicationHandle. Its lifecycle is
// bound to one Create call; nothing it holds outlives rollback or Commit.
type Handle struct {
	mu sync.Mutex

	appID           string
	waveformContext string
	trusted         bool
	registrar       interface{}

	components map[string]*componentRecord
	order      []string

	externalPorts      []deploy.ExternalPort
	externalProperties []deploy.ExternalProperty

	allocationIDs []string
	usedDevices   []deploy.ComponentDeviceAssignment
	startOrder    []string
	connections   []deploy.ConnectionRecord
	committed     bool

	registeredCh chan struct{}

	logger *telemetry.Logger
}

// NewHandle returns an empty Application Handle.
func NewHandle(logger *telemetry.Logger) *Handle {
	return &Handle{
		components:   make(map[string]*componentRecord),
		registeredCh: make(chan struct{}),
		logger:       logger,
	}
}

// Activate creates and registers the application, returning an opaque
// registrar reference components report registration through.
func (h *Handle) Activate(ctx context.Context, appID, waveformContext string, trustedApplication bool) (interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appID = appID
	h.waveformContext = waveformContext
	h.trusted = trustedApplication
	h.registrar = h
	return h.registrar, nil
}

// AddComponent records component as part of this application.
func (h *Handle) AddComponent(ctx context.Context, component *deploy.ComponentSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.components[component.InstanceID]; exists {
		return fmt.Errorf("component %q already added", component.InstanceID)
	}
	h.components[component.InstanceID] = &componentRecord{spec: component, pid: -1}
	h.order = append(h.order, component.InstanceID)
	return nil
}

func (h *Handle) record(componentID string) (*componentRecord, error) {
	rec, ok := h.components[componentID]
	if !ok {
		return nil, fmt.Errorf("unknown component %q", componentID)
	}
	return rec, nil
}

// SetComponentImplementation records the implementation chosen for
// componentID.
func (h *Handle) SetComponentImplementation(ctx context.Context, componentID string, impl *deploy.ImplSpec) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.record(componentID)
	if err != nil {
		return err
	}
	rec.impl = impl
	return nil
}

// SetComponentDevice records the device componentID was assigned to.
func (h *Handle) SetComponentDevice(ctx context.Context, componentID, deviceID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.record(componentID)
	if err != nil {
		return err
	}
	rec.deviceID = deviceID
	return nil
}

// SetComponentNamingContext records the naming-service binding name used
// for componentID.
func (h *Handle) SetComponentNamingContext(ctx context.Context, componentID, namingServiceName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.record(componentID)
	if err != nil {
		return err
	}
	rec.namingContextName = namingServiceName
	return nil
}

// SetComponentPID records the process id returned by execute().
func (h *Handle) SetComponentPID(ctx context.Context, componentID string, pid int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.record(componentID)
	if err != nil {
		return err
	}
	rec.pid = pid
	if !rec.spec.IsScaCompliant {
		// Non-SCA-compliant components never call back to register;
		// treat successful execute as registration immediately.
		rec.registered = true
		h.maybeCloseRegisteredLocked()
	}
	return nil
}

// RegisterComponent is called by the device-side transport when a
// component announces itself to the registrar returned by Activate. It
// is not part of the ApplicationHandle interface pkg/deploy depends on —
// it is the other end of WaitForRegistration, invoked from outside the
// transaction.
func (h *Handle) RegisterComponent(componentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.record(componentID)
	if err != nil {
		return err
	}
	rec.registered = true
	h.maybeCloseRegisteredLocked()
	return nil
}

func (h *Handle) maybeCloseRegisteredLocked() {
	for _, id := range h.order {
		rec := h.components[id]
		if rec.spec.IsScaCompliant && !rec.registered {
			return
		}
	}
	select {
	case <-h.registeredCh:
		// already closed
	default:
		close(h.registeredCh)
	}
}

// WaitForRegistration blocks until every SCA-compliant component has
// registered, or timeout elapses, returning the first still-missing
// component's ID.
func (h *Handle) WaitForRegistration(ctx context.Context, timeout time.Duration) (string, bool) {
	h.mu.Lock()
	h.maybeCloseRegisteredLocked()
	ch := h.registeredCh
	h.mu.Unlock()

	select {
	case <-ch:
		return "", true
	case <-time.After(timeout):
	case <-ctx.Done():
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.order {
		rec := h.components[id]
		if rec.spec.IsScaCompliant && !rec.registered {
			return id, false
		}
	}
	return "", true
}

// Initialize calls initialize() on one SCA-compliant resource component.
// This reference implementation has no real remote resource interface;
// it marks the component initialized and logs, the way a fixture/test
// double is expected to.
func (h *Handle) Initialize(ctx context.Context, componentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, err := h.record(componentID)
	if err != nil {
		return err
	}
	rec.initialized = true
	return nil
}

// Configure applies props to componentID's configurable resource
// interface.
func (h *Handle) Configure(ctx context.Context, componentID string, props []deploy.PropertyRef) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.record(componentID)
	return err
}

// Connect resolves and records one connection. This reference
// implementation accepts any connection whose endpoints name known
// components.
func (h *Handle) Connect(ctx context.Context, conn deploy.DeclaredConnection) (deploy.ConnectionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.record(conn.UsesComponentID); err != nil {
		return deploy.ConnectionRecord{}, err
	}
	if _, err := h.record(conn.ProvidesComponentID); err != nil {
		return deploy.ConnectionRecord{}, err
	}
	return deploy.ConnectionRecord{
		ID:                  conn.ID,
		UsesComponentID:     conn.UsesComponentID,
		UsesPortName:        conn.UsesPortName,
		ProvidesComponentID: conn.ProvidesComponentID,
		ProvidesPortName:    conn.ProvidesPortName,
	}, nil
}

// GetPort resolves a port on componentID. The reference implementation
// reports every port id as present; real deployments dial the component's
// remote handle instead.
func (h *Handle) GetPort(ctx context.Context, componentID, portID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.record(componentID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// RegisterExternalPort publishes a validated external port alias.
func (h *Handle) RegisterExternalPort(ctx context.Context, port deploy.ExternalPort) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.externalPorts = append(h.externalPorts, port)
	return nil
}

// RegisterExternalProperty publishes a validated external property
// alias.
func (h *Handle) RegisterExternalProperty(ctx context.Context, prop deploy.ExternalProperty) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.externalProperties = append(h.externalProperties, prop)
	return nil
}

// Commit hands the final allocation-ID list, used-device list, start
// order, and connections to the handle, marking the deployment
// published.
func (h *Handle) Commit(ctx context.Context, allocationIDs []string, usedDevices []deploy.ComponentDeviceAssignment, startOrder []string, connections []deploy.ConnectionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocationIDs = allocationIDs
	h.usedDevices = usedDevices
	h.startOrder = startOrder
	h.connections = connections
	h.committed = true
	return nil
}

// ReleaseComponents, TerminateComponents, UnloadComponents, and
// CleanupActivations implement rollback. They make no remote calls: the
// first three only log, and CleanupActivations clears the recorded
// components. Component processes are not terminated and component code
// files are not removed from their devices.
func (h *Handle) ReleaseComponents(ctx context.Context) error {
	if h.logger != nil {
		h.logger.WithAppID(h.appID).Debug("releasing components")
	}
	return nil
}

func (h *Handle) TerminateComponents(ctx context.Context) error {
	if h.logger != nil {
		h.logger.WithAppID(h.appID).Debug("terminating components")
	}
	return nil
}

func (h *Handle) UnloadComponents(ctx context.Context) error {
	if h.logger != nil {
		h.logger.WithAppID(h.appID).Debug("unloading components")
	}
	return nil
}

func (h *Handle) CleanupActivations(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components = make(map[string]*componentRecord)
	h.order = nil
	return nil
}

// AllocationIDs, UsedDevices, and Connections expose the committed state
// for lookupDeviceUsedByApplication-style introspection once published.
func (h *Handle) AllocationIDs() []string                        { return h.allocationIDs }
func (h *Handle) UsedDevices() []deploy.ComponentDeviceAssignment { return h.usedDevices }
func (h *Handle) Connections() []deploy.ConnectionRecord          { return h.connections }
func (h *Handle) Committed() bool                                 { return h.committed }
