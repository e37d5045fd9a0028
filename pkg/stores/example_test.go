package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redhawk/appfactory/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	// Create store configuration
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Initialize the database connection
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	// Store is now ready to use
	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateDeployment demonstrates creating a new deployment record.
func ExampleSQLiteStore_CreateDeployment() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Create a new deployment
	d := &stores.Deployment{
		ID:        "deploy-001",
		AppName:   "waveform-app-1",
		SADPath:   "/domain/waveforms/waveform.sad.cue",
		Status:    stores.DeploymentStatusPending,
		StartedAt: time.Now(),
		Metadata:  `{"user":"operator@example.com"}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := store.CreateDeployment(ctx, d); err != nil {
		log.Fatal(err)
	}

	// Retrieve the deployment
	retrieved, err := store.GetDeployment(ctx, "deploy-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Deployment ID: %s, Status: %s\n", retrieved.ID, retrieved.Status)
	// Output: Deployment ID: deploy-001, Status: pending
}

// ExampleSQLiteStore_UpsertDeviceState demonstrates caching device usage state.
func ExampleSQLiteStore_UpsertDeviceState() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Create a deployment the observation is attributed to
	d := &stores.Deployment{
		ID:        "deploy-002",
		AppName:   "test-app",
		SADPath:   "/domain/test.sad.cue",
		Status:    stores.DeploymentStatusCompleted,
		StartedAt: time.Now(),
		Metadata:  `{}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_ = store.CreateDeployment(ctx, d)

	// Cache a device's usage state (insert)
	state := &stores.DeviceState{
		ID:             "ds-001",
		DeviceID:       "dev-gpp-1",
		State:          `{"usage":"active","free_capacity":0.6}`,
		Hash:           "abc123def456",
		LastDeployment: "deploy-002",
		LastObserved:   time.Now(),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := store.UpsertDeviceState(ctx, state); err != nil {
		log.Fatal(err)
	}

	// Get the cached state
	retrieved, err := store.GetDeviceState(ctx, "dev-gpp-1")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Device: %s, Hash: %s\n", retrieved.DeviceID, retrieved.Hash)
	// Output: Device: dev-gpp-1, Hash: abc123def456
}

// ExampleSQLiteStore_AppendEvent demonstrates logging events.
func ExampleSQLiteStore_AppendEvent() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Create a deployment
	d := &stores.Deployment{
		ID:        "deploy-003",
		AppName:   "test-app",
		SADPath:   "/domain/test.sad.cue",
		Status:    stores.DeploymentStatusRunning,
		StartedAt: time.Now(),
		Metadata:  `{}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_ = store.CreateDeployment(ctx, d)

	// Log an event
	details := `{"phase":"placement"}`
	event := &stores.Event{
		DeploymentID: &d.ID,
		Level:        stores.EventLevelInfo,
		Message:      "Starting deployment",
		Details:      &details,
		Timestamp:    time.Now(),
	}

	if err := store.AppendEvent(ctx, event); err != nil {
		log.Fatal(err)
	}

	// Retrieve events
	events, err := store.GetEvents(ctx, &d.ID, nil, nil, 10, 0)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Event count: %d, Message: %s\n", len(events), events[0].Message)
	// Output: Event count: 1, Message: Starting deployment
}

// ExampleSQLiteStore_UpsertFact demonstrates storing facts with TTL, the way
// pkg/domain tracks the registered-device directory and device affinity.
func ExampleSQLiteStore_UpsertFact() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Store a fact without expiry
	fact := &stores.Fact{
		ID:        "fact-001",
		TargetID:  "dev-gpp-1",
		Namespace: "device.registry",
		Key:       "info",
		Value:     `{"label":"GPP-1","executable":true}`,
		TTL:       0, // Never expires
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := store.UpsertFact(ctx, fact); err != nil {
		log.Fatal(err)
	}

	// Retrieve the fact
	retrieved, err := store.GetFact(ctx, "dev-gpp-1", "device.registry", "info")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Fact: %s/%s/%s = %s\n",
		retrieved.TargetID, retrieved.Namespace, retrieved.Key, retrieved.Value)
	// Output: Fact: dev-gpp-1/device.registry/info = {"label":"GPP-1","executable":true}
}

// ExampleSQLiteStore_BeginTx demonstrates using transactions.
func ExampleSQLiteStore_BeginTx() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	// Begin transaction
	tx, err := store.BeginTx(ctx)
	if err != nil {
		log.Fatal(err)
	}

	// Perform operations within transaction
	query := `
		INSERT INTO deployments (id, app_name, sad_path, status, started_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err = tx.ExecContext(ctx, query, "deploy-tx-001", "test-app", "/domain/test.sad.cue",
		"pending", now, "{}", now, now)

	if err != nil {
		_ = store.RollbackTx(tx)
		log.Fatal(err)
	}

	// Commit transaction
	if err := store.CommitTx(tx); err != nil {
		log.Fatal(err)
	}

	// Verify deployment was created
	d, err := store.GetDeployment(ctx, "deploy-tx-001")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Transaction committed: Deployment %s created\n", d.ID)
	// Output: Transaction committed: Deployment deploy-tx-001 created
}
