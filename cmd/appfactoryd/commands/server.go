package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/redhawk/appfactory/pkg/allocator"
	"github.com/redhawk/appfactory/pkg/application"
	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/descriptor"
	"github.com/redhawk/appfactory/pkg/device"
	"github.com/redhawk/appfactory/pkg/domain"
	"github.com/redhawk/appfactory/pkg/policy"
	"github.com/redhawk/appfactory/pkg/stores"
	"github.com/redhawk/appfactory/pkg/telemetry"
)

// Server bundles every collaborator a running appfactoryd needs and
// exposes them over an HTTP/JSON API, the same net/http style the
// teacher's own metrics endpoint uses.
type Server struct {
	cfg *DaemonConfig

	store       stores.Store
	domain      *domain.Manager
	allocator   *allocator.Manager
	descriptors *descriptor.Loader
	dialer      *device.Dialer
	endpoints   *device.EndpointRegistry
	engine      *policy.Engine
	transaction *deploy.Transaction

	tel *telemetry.Telemetry
}

// NewServer wires every collaborator named in cfg into a running Server.
func NewServer(ctx context.Context, cfg *DaemonConfig) (*Server, error) {
	tel, err := telemetry.NewTelemetry(cfg.telemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.StorePath})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	fileManager := domain.NewLocalFileManager(cfg.FileManagerEndpoint)
	domainMgr := domain.NewManager(domain.Config{
		Store:          store,
		BindingTimeout: cfg.ComponentBindingTimeout,
		FileManager:    fileManager,
	}, tel.Logger)

	allocMgr := allocator.NewManager(tel.Logger, nil)
	endpoints := device.NewEndpointRegistry()
	dialer := device.NewDialer(endpoints, tel.Logger)

	if cfg.DeviceManifestPath != "" {
		manifest, err := device.LoadManifest(cfg.DeviceManifestPath)
		if err != nil {
			return nil, fmt.Errorf("load device manifest: %w", err)
		}
		for _, entry := range manifest.Devices {
			if err := domainMgr.RegisterDevice(ctx, entry.DeviceNode()); err != nil {
				return nil, fmt.Errorf("register device %q: %w", entry.ID, err)
			}
			allocMgr.RegisterDevice(entry.ID, entry.Capacities)
			endpoints.Register(entry.ID, entry.SSHConfig())
		}
		tel.Logger.WithField("count", len(manifest.Devices)).Info("registered devices from manifest")
	}

	policyLogger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "appfactoryd").Logger()
	engine, err := policy.NewEngine(policyLogger)
	if err != nil {
		return nil, fmt.Errorf("init policy engine: %w", err)
	}
	if len(cfg.PolicyPaths) > 0 {
		if err := engine.LoadPolicies(ctx, cfg.PolicyPaths); err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
	}
	gate := policy.NewTransactionGate(engine, func(ctx context.Context) *policy.PolicyContext {
		return &policy.PolicyContext{
			Environment: cfg.Environment,
			Operation:   "create",
			Timestamp:   time.Now(),
		}
	})

	descLoader := descriptor.NewLoader()
	naming := domain.NewNamingContext()

	txn := deploy.NewTransaction(deploy.TransactionConfig{
		Descriptors: descLoader,
		Allocator:   allocMgr,
		Domain:      domainMgr,
		Devices:     dialer,
		Naming:      naming,
		Policy:      gate,
		Logger:      tel.Logger,
		Tracer:      tel.Tracer,
		Metrics:     tel.Metrics,
	})

	return &Server{
		cfg:         cfg,
		store:       store,
		domain:      domainMgr,
		allocator:   allocMgr,
		descriptors: descLoader,
		dialer:      dialer,
		endpoints:   endpoints,
		engine:      engine,
		transaction: txn,
		tel:         tel,
	}, nil
}

// Shutdown releases the server's collaborators.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.tel.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// Handler returns the HTTP handler exposing create/devices/healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/applications", s.handleCreate)
	mux.HandleFunc("/devices", s.handleDevices)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createAPIRequest is the wire shape of a POST /applications request.
type createAPIRequest struct {
	SADPath           string                     `json:"sadPath"`
	Name              string                     `json:"name"`
	InitConfiguration []deploy.InitProperty      `json:"initConfiguration,omitempty"`
	DeviceAssignments []deploy.DeviceAssignment  `json:"deviceAssignments,omitempty"`
}

// createAPIResponse is the wire shape of a successful create response.
type createAPIResponse struct {
	AppID string `json:"appId"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var req createAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	ctx := telemetryContext(r.Context(), s.tel)
	appID := uuid.NewString()
	ctx = telemetry.WithDeploymentContext(ctx, appID, "api")

	handle := application.NewHandle(s.tel.Logger)
	_, err := s.transaction.Create(ctx, req.SADPath, deploy.CreateRequest{
		Name:              req.Name,
		InitConfiguration: req.InitConfiguration,
		DeviceAssignments: req.DeviceAssignments,
	}, handle)

	telemetry.EndDeploymentContext(ctx, appID, string(deploymentStatus(err)), err)

	if err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusCreated, createAPIResponse{AppID: appID})
}

func deploymentStatus(err error) stores.DeploymentStatus {
	if err != nil {
		return stores.DeploymentStatusFailed
	}
	return stores.DeploymentStatusCompleted
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.domain.GetRegisteredDevices(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func telemetryContext(ctx context.Context, tel *telemetry.Telemetry) context.Context {
	return tel.WithContext(ctx)
}
