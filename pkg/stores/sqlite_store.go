package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// CreateDeployment creates a new deployment record
func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *Deployment) error {
	query := `
		INSERT INTO deployments (id, app_name, sad_path, status, started_at, completed_at, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		d.AppName,
		d.SADPath,
		d.Status,
		d.StartedAt,
		d.CompletedAt,
		d.Error,
		d.Metadata,
		d.CreatedAt,
		d.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}

	return nil
}

// GetDeployment retrieves a deployment by ID
func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	query := `
		SELECT id, app_name, sad_path, status, started_at, completed_at, error, metadata, created_at, updated_at
		FROM deployments
		WHERE id = ?
	`

	d := &Deployment{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.AppName,
		&d.SADPath,
		&d.Status,
		&d.StartedAt,
		&d.CompletedAt,
		&d.Error,
		&d.Metadata,
		&d.CreatedAt,
		&d.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deployment not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return d, nil
}

// UpdateDeploymentStatus updates the status of a deployment
func (s *SQLiteStore) UpdateDeploymentStatus(ctx context.Context, id string, status DeploymentStatus, errMsg *string) error {
	query := `
		UPDATE deployments
		SET status = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	var completedAt *time.Time
	if status == DeploymentStatusCompleted || status == DeploymentStatusFailed || status == DeploymentStatusCancelled {
		now := time.Now()
		completedAt = &now
	}

	result, err := s.db.ExecContext(ctx, query, status, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update deployment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deployment not found: %s", id)
	}

	return nil
}

// ListDeployments lists deployments with pagination
func (s *SQLiteStore) ListDeployments(ctx context.Context, limit, offset int) ([]*Deployment, error) {
	query := `
		SELECT id, app_name, sad_path, status, started_at, completed_at, error, metadata, created_at, updated_at
		FROM deployments
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*Deployment{}
	for rows.Next() {
		d := &Deployment{}
		err := rows.Scan(
			&d.ID,
			&d.AppName,
			&d.SADPath,
			&d.Status,
			&d.StartedAt,
			&d.CompletedAt,
			&d.Error,
			&d.Metadata,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	return deployments, nil
}

// DeleteDeployment deletes a deployment by ID
func (s *SQLiteStore) DeleteDeployment(ctx context.Context, id string) error {
	query := `DELETE FROM deployments WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("deployment not found: %s", id)
	}

	return nil
}

// CreateComponentPlacement creates a new component placement record
func (s *SQLiteStore) CreateComponentPlacement(ctx context.Context, p *ComponentPlacement) error {
	query := `
		INSERT INTO component_placements (
			id, deployment_id, component_id, device_id, phase, status,
			exec_params, actual_state,
			started_at, completed_at, error, retries, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.DeploymentID,
		p.ComponentID,
		p.DeviceID,
		p.Phase,
		p.Status,
		p.ExecParams,
		p.ActualState,
		p.StartedAt,
		p.CompletedAt,
		p.Error,
		p.Retries,
		p.CreatedAt,
		p.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create component placement: %w", err)
	}

	return nil
}

// GetComponentPlacement retrieves a component placement by ID
func (s *SQLiteStore) GetComponentPlacement(ctx context.Context, id string) (*ComponentPlacement, error) {
	query := `
		SELECT id, deployment_id, component_id, device_id, phase, status,
			   exec_params, actual_state,
			   started_at, completed_at, error, retries, created_at, updated_at
		FROM component_placements
		WHERE id = ?
	`

	p := &ComponentPlacement{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.DeploymentID,
		&p.ComponentID,
		&p.DeviceID,
		&p.Phase,
		&p.Status,
		&p.ExecParams,
		&p.ActualState,
		&p.StartedAt,
		&p.CompletedAt,
		&p.Error,
		&p.Retries,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("component placement not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component placement: %w", err)
	}

	return p, nil
}

// UpdateComponentPlacementStatus updates the status of a component placement
func (s *SQLiteStore) UpdateComponentPlacementStatus(ctx context.Context, id string, status ComponentPlacementStatus, actualState *string, errMsg *string) error {
	query := `
		UPDATE component_placements
		SET status = ?, actual_state = ?, error = ?,
			started_at = CASE WHEN started_at IS NULL AND ? = 'running' THEN CURRENT_TIMESTAMP ELSE started_at END,
			completed_at = CASE WHEN ? IN ('completed', 'failed', 'skipped') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, actualState, errMsg, status, status, id)
	if err != nil {
		return fmt.Errorf("failed to update component placement status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("component placement not found: %s", id)
	}

	return nil
}

// ListComponentPlacementsByDeployment lists all component placements for a deployment
func (s *SQLiteStore) ListComponentPlacementsByDeployment(ctx context.Context, deploymentID string) ([]*ComponentPlacement, error) {
	query := `
		SELECT id, deployment_id, component_id, device_id, phase, status,
			   exec_params, actual_state,
			   started_at, completed_at, error, retries, created_at, updated_at
		FROM component_placements
		WHERE deployment_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list component placements: %w", err)
	}
	defer rows.Close()

	placements := []*ComponentPlacement{}
	for rows.Next() {
		p := &ComponentPlacement{}
		err := rows.Scan(
			&p.ID,
			&p.DeploymentID,
			&p.ComponentID,
			&p.DeviceID,
			&p.Phase,
			&p.Status,
			&p.ExecParams,
			&p.ActualState,
			&p.StartedAt,
			&p.CompletedAt,
			&p.Error,
			&p.Retries,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component placement: %w", err)
		}
		placements = append(placements, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating component placements: %w", err)
	}

	return placements, nil
}

// DeleteComponentPlacement deletes a component placement by ID
func (s *SQLiteStore) DeleteComponentPlacement(ctx context.Context, id string) error {
	query := `DELETE FROM component_placements WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete component placement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("component placement not found: %s", id)
	}

	return nil
}

// IncrementComponentPlacementRetries increments the retry counter for a component placement
func (s *SQLiteStore) IncrementComponentPlacementRetries(ctx context.Context, id string) error {
	query := `UPDATE component_placements SET retries = retries + 1 WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("component placement not found: %s", id)
	}

	return nil
}

// AppendEvent appends a new event to the log
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO events (deployment_id, component_placement_id, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.DeploymentID,
		event.ComponentPlacementID,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetEvents retrieves events with optional filters and pagination
func (s *SQLiteStore) GetEvents(ctx context.Context, deploymentID *string, componentPlacementID *string, level *EventLevel, limit, offset int) ([]*Event, error) {
	query := `
		SELECT id, deployment_id, component_placement_id, level, message, details, timestamp
		FROM events
		WHERE (? IS NULL OR deployment_id = ?)
		  AND (? IS NULL OR component_placement_id = ?)
		  AND (? IS NULL OR level = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, deploymentID, deploymentID, componentPlacementID, componentPlacementID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.DeploymentID,
			&event.ComponentPlacementID,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// UpsertDeviceState inserts or updates a device's cached usage state
func (s *SQLiteStore) UpsertDeviceState(ctx context.Context, state *DeviceState) error {
	query := `
		INSERT INTO device_state (
			id, device_id, state, hash, last_deployment, last_observed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			state = excluded.state,
			hash = excluded.hash,
			last_deployment = excluded.last_deployment,
			last_observed = excluded.last_observed
	`

	_, err := s.db.ExecContext(ctx, query,
		state.ID,
		state.DeviceID,
		state.State,
		state.Hash,
		state.LastDeployment,
		state.LastObserved,
		state.CreatedAt,
		state.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert device state: %w", err)
	}

	return nil
}

// GetDeviceState retrieves the cached usage state for a device
func (s *SQLiteStore) GetDeviceState(ctx context.Context, deviceID string) (*DeviceState, error) {
	query := `
		SELECT id, device_id, state, hash, last_deployment, last_observed, created_at, updated_at
		FROM device_state
		WHERE device_id = ?
	`

	state := &DeviceState{}
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&state.ID,
		&state.DeviceID,
		&state.State,
		&state.Hash,
		&state.LastDeployment,
		&state.LastObserved,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device state not found: %s", deviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device state: %w", err)
	}

	return state, nil
}

// ListDeviceStates lists all cached device states with pagination
func (s *SQLiteStore) ListDeviceStates(ctx context.Context, limit, offset int) ([]*DeviceState, error) {
	query := `
		SELECT id, device_id, state, hash, last_deployment, last_observed, created_at, updated_at
		FROM device_state
		ORDER BY last_observed DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list device states: %w", err)
	}
	defer rows.Close()

	states := []*DeviceState{}
	for rows.Next() {
		state := &DeviceState{}
		err := rows.Scan(
			&state.ID,
			&state.DeviceID,
			&state.State,
			&state.Hash,
			&state.LastDeployment,
			&state.LastObserved,
			&state.CreatedAt,
			&state.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device state: %w", err)
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device states: %w", err)
	}

	return states, nil
}

// DeleteDeviceState deletes a cached device state by ID
func (s *SQLiteStore) DeleteDeviceState(ctx context.Context, id string) error {
	query := `DELETE FROM device_state WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete device state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("device state not found: %s", id)
	}

	return nil
}

// UpsertFact inserts or updates a fact
func (s *SQLiteStore) UpsertFact(ctx context.Context, fact *Fact) error {
	query := `
		INSERT INTO facts (
			id, target_id, namespace, key, value, ttl, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_id, namespace, key) DO UPDATE SET
			value = excluded.value,
			ttl = excluded.ttl,
			expires_at = excluded.expires_at
	`

	// Format expires_at to SQLite-compatible datetime string
	var expiresAtStr *string
	if fact.ExpiresAt != nil {
		formatted := fact.ExpiresAt.UTC().Format("2006-01-02 15:04:05")
		expiresAtStr = &formatted
	}

	_, err := s.db.ExecContext(ctx, query,
		fact.ID,
		fact.TargetID,
		fact.Namespace,
		fact.Key,
		fact.Value,
		fact.TTL,
		expiresAtStr,
		fact.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		fact.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert fact: %w", err)
	}

	return nil
}

// GetFact retrieves a fact by target, namespace, and key
func (s *SQLiteStore) GetFact(ctx context.Context, targetID, namespace, key string) (*Fact, error) {
	query := `
		SELECT id, target_id, namespace, key, value, ttl, expires_at, created_at, updated_at
		FROM facts
		WHERE target_id = ? AND namespace = ? AND key = ?
		  AND (expires_at IS NULL OR datetime(expires_at) > datetime('now'))
	`

	fact := &Fact{}
	err := s.db.QueryRowContext(ctx, query, targetID, namespace, key).Scan(
		&fact.ID,
		&fact.TargetID,
		&fact.Namespace,
		&fact.Key,
		&fact.Value,
		&fact.TTL,
		&fact.ExpiresAt,
		&fact.CreatedAt,
		&fact.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fact not found or expired: %s/%s/%s", targetID, namespace, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fact: %w", err)
	}

	return fact, nil
}

// ListFacts lists facts with optional filters and pagination
func (s *SQLiteStore) ListFacts(ctx context.Context, targetID *string, namespace *string, limit, offset int) ([]*Fact, error) {
	query := `
		SELECT id, target_id, namespace, key, value, ttl, expires_at, created_at, updated_at
		FROM facts
		WHERE (? IS NULL OR target_id = ?)
		  AND (? IS NULL OR namespace = ?)
		  AND (expires_at IS NULL OR datetime(expires_at) > datetime('now'))
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, targetID, targetID, namespace, namespace, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	facts := []*Fact{}
	for rows.Next() {
		fact := &Fact{}
		err := rows.Scan(
			&fact.ID,
			&fact.TargetID,
			&fact.Namespace,
			&fact.Key,
			&fact.Value,
			&fact.TTL,
			&fact.ExpiresAt,
			&fact.CreatedAt,
			&fact.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}

	return facts, nil
}

// DeleteExpiredFacts deletes all expired facts
func (s *SQLiteStore) DeleteExpiredFacts(ctx context.Context) (int64, error) {
	query := `DELETE FROM facts WHERE expires_at IS NOT NULL AND datetime(expires_at) <= datetime('now')`

	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired facts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// DeleteFact deletes a fact by ID
func (s *SQLiteStore) DeleteFact(ctx context.Context, id string) error {
	query := `DELETE FROM facts WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("fact not found: %s", id)
	}

	return nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, actor, target_id, details, ip_address, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.IPAddress,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, ip_address, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.IPAddress,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// Backup writes a consistent, hot copy of the database to destPath using
// SQLite's VACUUM INTO, which the driver serializes against concurrent
// writers without requiring callers to pause them.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backup database to %q: %w", destPath, err)
	}
	return nil
}
