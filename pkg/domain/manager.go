// Package domain provides a reference implementation of the Domain
// Manager contract the Application Factory Core depends on: the
// registered-device directory, deployment-affinity bookkeeping, the
// domain-wide property catalog, and the File Manager handle a device's
// load() call stages code through.
//
// Device and application state is persisted through pkg/stores the way
// pkg/engine's HostRegistry persists host inventory: as namespaced Facts,
// rather than a dedicated schema, so one SQLite store backs every
// reference component in this module.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/stores"
	"github.com/redhawk/appfactory/pkg/telemetry"
)

const (
	namespaceDeviceRegistry = "domain.device"
	namespaceAffinity       = "domain.affinity"
	namespaceProperty       = "domain.property"
	affinityTargetID        = "domain"
	affinityKey             = "last_device_used"
	defaultBindingTimeout   = 30 * time.Second
)

// deviceRecord is the JSON shape a DeviceNode is persisted as. RemoteHandle
// is deliberately omitted: it is a live, unserializable reference pkg/device
// resolves at dial time, not domain-manager state.
type deviceRecord struct {
	Identifier       string                `json:"identifier"`
	Label            string                `json:"label"`
	Executable       bool                  `json:"executable"`
	Processors       []string              `json:"processors"`
	OperatingSystems []deploy.OSDependency `json:"operatingSystems"`
	UsageState       deploy.UsageState     `json:"usageState"`
}

// Manager is a Store-backed reference DomainManager.
type Manager struct {
	store           stores.Store
	bindingTimeout  time.Duration
	fileManager     deploy.FileManager
	logger          *telemetry.Logger
	applications    map[string]deploy.ApplicationHandle
}

// Config configures a Manager.
type Config struct {
	Store          stores.Store
	BindingTimeout time.Duration
	FileManager    deploy.FileManager
}

// NewManager returns a domain manager backed by store.
func NewManager(cfg Config, logger *telemetry.Logger) *Manager {
	timeout := cfg.BindingTimeout
	if timeout <= 0 {
		timeout = defaultBindingTimeout
	}
	return &Manager{
		store:          cfg.Store,
		bindingTimeout: timeout,
		fileManager:    cfg.FileManager,
		logger:         logger,
		applications:   make(map[string]deploy.ApplicationHandle),
	}
}

// RegisterDevice adds or replaces node in the registered-device directory.
func (m *Manager) RegisterDevice(ctx context.Context, node *deploy.DeviceNode) error {
	rec := deviceRecord{
		Identifier:       node.Identifier,
		Label:            node.Label,
		Executable:       node.Executable,
		Processors:       node.Processors,
		OperatingSystems: node.OperatingSystems,
		UsageState:       node.UsageState,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal device record: %w", err)
	}

	now := time.Now()
	fact := &stores.Fact{
		ID:        uuid.NewString(),
		TargetID:  node.Identifier,
		Namespace: namespaceDeviceRegistry,
		Key:       "info",
		Value:     string(data),
		TTL:       0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.UpsertFact(ctx, fact); err != nil {
		return fmt.Errorf("register device %q: %w", node.Identifier, err)
	}
	return nil
}

// DeregisterDevice removes deviceID from the registered-device directory.
func (m *Manager) DeregisterDevice(ctx context.Context, deviceID string) error {
	fact, err := m.store.GetFact(ctx, deviceID, namespaceDeviceRegistry, "info")
	if err != nil {
		return nil // already absent
	}
	return m.store.DeleteFact(ctx, fact.ID)
}

// GetRegisteredDevices implements deploy.DomainManager.
func (m *Manager) GetRegisteredDevices(ctx context.Context) ([]*deploy.DeviceNode, error) {
	namespace := namespaceDeviceRegistry
	facts, err := m.store.ListFacts(ctx, nil, &namespace, 1000, 0)
	if err != nil {
		return nil, fmt.Errorf("list registered devices: %w", err)
	}

	devices := make([]*deploy.DeviceNode, 0, len(facts))
	for _, fact := range facts {
		if fact.Key != "info" {
			continue
		}
		var rec deviceRecord
		if err := json.Unmarshal([]byte(fact.Value), &rec); err != nil {
			if m.logger != nil {
				m.logger.WithDeviceID(fact.TargetID).Warn("skipping malformed device record")
			}
			continue
		}
		devices = append(devices, &deploy.DeviceNode{
			Identifier:       rec.Identifier,
			Label:            rec.Label,
			Executable:       rec.Executable,
			Processors:       rec.Processors,
			OperatingSystems: rec.OperatingSystems,
			UsageState:       rec.UsageState,
		})
	}
	return devices, nil
}

// GetLastDeviceUsedForDeployment implements deploy.DomainManager. It backs
// rotateDeviceList's device-affinity heuristic: the domain remembers which
// device last received a placement so the next deployment starts its scan
// elsewhere, spreading load across an otherwise-tied candidate set.
func (m *Manager) GetLastDeviceUsedForDeployment(ctx context.Context) (string, bool, error) {
	fact, err := m.store.GetFact(ctx, affinityTargetID, namespaceAffinity, affinityKey)
	if err != nil {
		return "", false, nil
	}
	return fact.Value, true, nil
}

// SetLastDeviceUsedForDeployment implements deploy.DomainManager.
func (m *Manager) SetLastDeviceUsedForDeployment(ctx context.Context, deviceID string) error {
	now := time.Now()
	fact := &stores.Fact{
		ID:        uuid.NewString(),
		TargetID:  affinityTargetID,
		Namespace: namespaceAffinity,
		Key:       affinityKey,
		Value:     deviceID,
		TTL:       0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.UpsertFact(ctx, fact); err != nil {
		return fmt.Errorf("record last device used: %w", err)
	}
	return nil
}

// GetComponentBindingTimeout implements deploy.DomainManager.
func (m *Manager) GetComponentBindingTimeout(ctx context.Context) (time.Duration, error) {
	return m.bindingTimeout, nil
}

// AddApplication implements deploy.DomainManager. The handle itself is
// kept in memory only: it is a live object, not state a restart needs to
// recover, the same way the teacher's in-process Run registry is backed by
// durable rows but in-flight execution state is not.
func (m *Manager) AddApplication(ctx context.Context, handle deploy.ApplicationHandle) error {
	id := uuid.NewString()
	m.applications[id] = handle

	entry := &stores.AuditEntry{
		Action:    "application.created",
		Actor:     "appfactory",
		TargetID:  &id,
		Timestamp: time.Now(),
	}
	if err := m.store.CreateAuditEntry(ctx, entry); err != nil {
		if m.logger != nil {
			m.logger.Warn("failed to record application.created audit entry")
		}
	}
	return nil
}

// GetPropertyFromID implements deploy.DomainManager: it resolves a
// domain-wide property (as opposed to a per-component property) by ID,
// the way __MATH__ expressions reference properties outside the
// component being configured.
func (m *Manager) GetPropertyFromID(ctx context.Context, propertyID string) (*deploy.PropertyRef, bool, error) {
	fact, err := m.store.GetFact(ctx, "domain", namespaceProperty, propertyID)
	if err != nil {
		return nil, false, nil
	}
	var ref deploy.PropertyRef
	if err := json.Unmarshal([]byte(fact.Value), &ref); err != nil {
		return nil, false, fmt.Errorf("decode domain property %q: %w", propertyID, err)
	}
	return &ref, true, nil
}

// SetDomainProperty seeds or replaces a domain-wide property, the
// counterpart GetPropertyFromID reads back.
func (m *Manager) SetDomainProperty(ctx context.Context, ref deploy.PropertyRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal domain property %q: %w", ref.ID, err)
	}
	now := time.Now()
	fact := &stores.Fact{
		ID:        uuid.NewString(),
		TargetID:  "domain",
		Namespace: namespaceProperty,
		Key:       ref.ID,
		Value:     string(data),
		TTL:       0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.store.UpsertFact(ctx, fact)
}

// FileManager implements deploy.DomainManager.
func (m *Manager) FileManager(ctx context.Context) (deploy.FileManager, error) {
	if m.fileManager == nil {
		return nil, fmt.Errorf("no file manager configured for this domain")
	}
	return m.fileManager, nil
}
