// Package allocator provides a reference implementation of the
// Allocation Manager contract the Application Factory Core consumes:
// matching allocation requests against device capacity properties,
// tracking outstanding allocation IDs, and releasing them on deallocate.
//
// The generic matching algorithm itself is explicitly out of scope to
// redesign; this package exists only so pkg/deploy can be exercised
// end-to-end without a real domain's allocation service attached.
package allocator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/telemetry"
)

// Manager is an in-process AllocationManager backed by a capacity ledger
// keyed by device identifier, matching the simple numeric-capacity
// property model most allocation properties in this domain use.
type Manager struct {
	mu         sync.RWMutex
	capacities map[string]map[string]float64 // deviceID -> propertyID -> remaining capacity
	held       map[string]heldAllocation     // allocationID -> what it reserved
	logger     *telemetry.Logger
}

type heldAllocation struct {
	deviceID string
	usage    map[string]float64
}

// NewManager builds a Manager seeded with each device's starting
// capacity properties.
func NewManager(logger *telemetry.Logger, initialCapacities map[string]map[string]float64) *Manager {
	capacities := make(map[string]map[string]float64, len(initialCapacities))
	for device, props := range initialCapacities {
		copied := make(map[string]float64, len(props))
		for k, v := range props {
			copied[k] = v
		}
		capacities[device] = copied
	}
	return &Manager{
		capacities: capacities,
		held:       make(map[string]heldAllocation),
		logger:     logger,
	}
}

// RegisterDevice seeds or replaces the capacity ledger for one device.
func (m *Manager) RegisterDevice(deviceID string, props map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]float64, len(props))
	for k, v := range props {
		copied[k] = v
	}
	m.capacities[deviceID] = copied
}

// Allocate satisfies a batch of independent requests against every
// registered device, in requests order, recording each success.
func (m *Manager) Allocate(ctx context.Context, requests []deploy.AllocationRequest) ([]deploy.AllocationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	responses := make([]deploy.AllocationResponse, 0, len(requests))
	for _, req := range requests {
		resp := m.allocateLocked(req, m.allDevicesLocked())
		responses = append(responses, resp)
	}
	return responses, nil
}

// AllocateDeployment satisfies a single request against candidates. It
// first keeps only the candidates whose processor and OS lists satisfy
// processorDeps/osDeps (DeviceNode.SatisfiesProcessor/SatisfiesOS), then
// matches the numeric capacity properties against what remains.
func (m *Manager) AllocateDeployment(ctx context.Context, requestID string, props []deploy.PropertyRef, candidates []*deploy.DeviceNode, processorDeps []string, osDeps []deploy.OSDependency) (deploy.AllocationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]*deploy.DeviceNode, 0, len(candidates))
	for _, d := range candidates {
		if d.SatisfiesProcessor(processorDeps) && d.SatisfiesOS(osDeps) {
			filtered = append(filtered, d)
		}
	}

	req := deploy.AllocationRequest{RequestID: requestID, AllocationProperties: props}
	return m.allocateLocked(req, filtered), nil
}

func (m *Manager) allDevicesLocked() []*deploy.DeviceNode {
	out := make([]*deploy.DeviceNode, 0, len(m.capacities))
	for id := range m.capacities {
		out = append(out, &deploy.DeviceNode{Identifier: id, Executable: true})
	}
	return out
}

func (m *Manager) allocateLocked(req deploy.AllocationRequest, candidates []*deploy.DeviceNode) deploy.AllocationResponse {
	usage := flattenNumericProps(req.AllocationProperties)

	for _, dev := range candidates {
		ledger, ok := m.capacities[dev.Identifier]
		if !ok {
			continue
		}
		if !fits(ledger, usage) {
			continue
		}
		for k, v := range usage {
			ledger[k] -= v
		}
		allocationID := uuid.NewString()
		m.held[allocationID] = heldAllocation{deviceID: dev.Identifier, usage: usage}
		if m.logger != nil {
			m.logger.WithField("allocation_id", allocationID).WithDeviceID(dev.Identifier).Debug("allocation granted")
		}
		return deploy.AllocationResponse{RequestID: req.RequestID, AllocationID: allocationID, AllocatedDevice: dev}
	}
	return deploy.AllocationResponse{RequestID: req.RequestID}
}

// Deallocate releases every allocation ID, restoring capacity to its
// owning device's ledger. Unknown IDs are ignored, matching the
// best-effort release semantics callers rely on during rollback.
func (m *Manager) Deallocate(ctx context.Context, allocationIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var missing []string
	for _, id := range allocationIDs {
		held, ok := m.held[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if ledger, ok := m.capacities[held.deviceID]; ok {
			for k, v := range held.usage {
				ledger[k] += v
			}
		}
		delete(m.held, id)
	}
	if len(missing) > 0 && m.logger != nil {
		m.logger.WithField("missing", missing).Warn("deallocate requested for unknown allocation IDs")
	}
	return nil
}

// OutstandingCount reports the number of allocation IDs currently held,
// the quantity the allocation-balance testable property is checked
// against.
func (m *Manager) OutstandingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.held)
}

func flattenNumericProps(props []deploy.PropertyRef) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range props {
		switch p.Kind {
		case deploy.PropertySimple:
			if v, ok := numeric(p.Value); ok {
				out[p.ID] = v
			}
		case deploy.PropertyStruct, deploy.PropertySimpleSequence, deploy.PropertyStructSequence:
			for k, v := range flattenNumericProps(p.Members) {
				out[fmt.Sprintf("%s.%s", p.ID, k)] = v
			}
		}
	}
	return out
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func fits(ledger, usage map[string]float64) bool {
	for k, v := range usage {
		remaining, ok := ledger[k]
		if !ok {
			continue // unconstrained property: no capacity tracked for it
		}
		if remaining < v {
			return false
		}
	}
	return true
}
