package stores

import (
	"context"
	"database/sql"
	"time"
)

// DeploymentStatus represents the status of a Create transaction.
type DeploymentStatus string

const (
	DeploymentStatusPending   DeploymentStatus = "pending"
	DeploymentStatusRunning   DeploymentStatus = "running"
	DeploymentStatusCompleted DeploymentStatus = "completed"
	DeploymentStatusFailed    DeploymentStatus = "failed"
	DeploymentStatusCancelled DeploymentStatus = "cancelled"
)

// ComponentPlacementStatus represents the status of one component's
// placement onto a device within a deployment.
type ComponentPlacementStatus string

const (
	ComponentPlacementStatusPending   ComponentPlacementStatus = "pending"
	ComponentPlacementStatusRunning   ComponentPlacementStatus = "running"
	ComponentPlacementStatusCompleted ComponentPlacementStatus = "completed"
	ComponentPlacementStatusFailed    ComponentPlacementStatus = "failed"
	ComponentPlacementStatusSkipped   ComponentPlacementStatus = "skipped"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Deployment is the durable record of one Create transaction, from
// preflight through publish or rollback.
type Deployment struct {
	ID          string           `json:"id"`
	AppName     string           `json:"app_name"`
	SADPath     string           `json:"sad_path"`
	Status      DeploymentStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       *string          `json:"error,omitempty"`
	Metadata    string           `json:"metadata"` // JSON blob
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ComponentPlacement is the durable record of one component's load/execute
// sequence onto the device it was assigned during a deployment.
type ComponentPlacement struct {
	ID           string                    `json:"id"`
	DeploymentID string                    `json:"deployment_id"`
	ComponentID  string                    `json:"component_id"`
	DeviceID     string                    `json:"device_id"`
	Phase        string                    `json:"phase"` // load, execute, initialize, connect, configure
	Status       ComponentPlacementStatus  `json:"status"`
	ExecParams   string                    `json:"exec_params"`         // JSON blob
	ActualState  *string                   `json:"actual_state,omitempty"` // JSON blob
	StartedAt    *time.Time                `json:"started_at,omitempty"`
	CompletedAt  *time.Time                `json:"completed_at,omitempty"`
	Error        *string                   `json:"error,omitempty"`
	Retries      int                       `json:"retries"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// Event represents an append-only log event
type Event struct {
	ID                    int64      `json:"id"`
	DeploymentID          *string    `json:"deployment_id,omitempty"`
	ComponentPlacementID  *string    `json:"component_placement_id,omitempty"`
	Level                 EventLevel `json:"level"`
	Message               string     `json:"message"`
	Details               *string    `json:"details,omitempty"` // JSON blob
	Timestamp             time.Time  `json:"timestamp"`
}

// DeviceState is the last-observed usage state of a registered device.
// Nothing in appfactoryd reads or writes it; the "devices" endpoint
// answers from the domain manager's registered-device list.
type DeviceState struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	State          string    `json:"state"` // JSON blob
	Hash           string    `json:"hash"`  // SHA256 of state for change detection
	LastDeployment string    `json:"last_deployment"`
	LastObserved   time.Time `json:"last_observed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Fact represents discovered, namespaced facts about a target (a device,
// the domain itself, or any other identifier the caller chooses). Used by
// pkg/domain for the device registry, device-affinity tracking, and
// domain-wide property storage.
type Fact struct {
	ID        string     `json:"id"`
	TargetID  string     `json:"target_id"`
	Namespace string     `json:"namespace"` // e.g., "device.registry", "device.affinity", "domain.property"
	Key       string     `json:"key"`
	Value     string     `json:"value"` // JSON blob
	TTL       int        `json:"ttl"`   // seconds, 0 = no expiry
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // e.g., "deployment.created", "application.created"
	Actor     string    `json:"actor"`               // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"` // deployment/application/device ID
	Details   *string   `json:"details,omitempty"`   // JSON blob
	IPAddress *string   `json:"ip_address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Deployment operations
	CreateDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, id string, status DeploymentStatus, err *string) error
	ListDeployments(ctx context.Context, limit, offset int) ([]*Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error

	// ComponentPlacement operations
	CreateComponentPlacement(ctx context.Context, p *ComponentPlacement) error
	GetComponentPlacement(ctx context.Context, id string) (*ComponentPlacement, error)
	UpdateComponentPlacementStatus(ctx context.Context, id string, status ComponentPlacementStatus, actualState *string, err *string) error
	ListComponentPlacementsByDeployment(ctx context.Context, deploymentID string) ([]*ComponentPlacement, error)
	DeleteComponentPlacement(ctx context.Context, id string) error
	IncrementComponentPlacementRetries(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, deploymentID *string, componentPlacementID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// DeviceState operations
	UpsertDeviceState(ctx context.Context, state *DeviceState) error
	GetDeviceState(ctx context.Context, deviceID string) (*DeviceState, error)
	ListDeviceStates(ctx context.Context, limit, offset int) ([]*DeviceState, error)
	DeleteDeviceState(ctx context.Context, id string) error

	// Facts operations
	UpsertFact(ctx context.Context, fact *Fact) error
	GetFact(ctx context.Context, targetID, namespace, key string) (*Fact, error)
	ListFacts(ctx context.Context, targetID *string, namespace *string, limit, offset int) ([]*Fact, error)
	DeleteExpiredFacts(ctx context.Context) (int64, error)
	DeleteFact(ctx context.Context, id string) error

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
	Backup(ctx context.Context, destPath string) error
}
