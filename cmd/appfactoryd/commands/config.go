package commands

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/redhawk/appfactory/pkg/telemetry"
)

// DaemonConfig is the top-level shape of appfactoryd's YAML config file.
type DaemonConfig struct {
	// ListenAddr is the address the create/devices HTTP API binds to.
	ListenAddr string `yaml:"listenAddr"`

	// StorePath is the SQLite database path holding the domain manager's
	// device, affinity, and property records and its audit entries; backup
	// and restore operate on it. Use ":memory:" for ephemeral runs.
	StorePath string `yaml:"storePath"`

	// DeviceManifestPath points at the YAML device fleet manifest loaded
	// at startup.
	DeviceManifestPath string `yaml:"deviceManifestPath"`

	// PolicyPaths lists Rego policy files or directories loaded into the
	// policy engine in addition to the built-in policies.
	PolicyPaths []string `yaml:"policyPaths"`

	// ComponentBindingTimeout bounds how long the Transaction waits for a
	// component to register after execute().
	ComponentBindingTimeout time.Duration `yaml:"componentBindingTimeout"`

	// FileManagerEndpoint is the address advertised as the File Manager's
	// IOR-equivalent handle.
	FileManagerEndpoint string `yaml:"fileManagerEndpoint"`

	// Environment is fed into both telemetry and policy evaluation
	// context (e.g. "production", "staging").
	Environment string `yaml:"environment"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig maps onto the subset of telemetry.Config worth exposing
// from a daemon config file.
type TelemetryConfig struct {
	LogLevel       string `yaml:"logLevel"`
	LogFormat      string `yaml:"logFormat"`
	TracingEnabled bool   `yaml:"tracingEnabled"`
	TraceExporter  string `yaml:"traceExporter"`
	TraceEndpoint  string `yaml:"traceEndpoint"`
	MetricsEnabled bool   `yaml:"metricsEnabled"`
	MetricsAddr    string `yaml:"metricsAddr"`
}

// DefaultDaemonConfig returns the configuration appfactoryd runs with
// when no config file is supplied.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		ListenAddr:              ":8080",
		StorePath:               "appfactoryd.db",
		ComponentBindingTimeout: 30 * time.Second,
		FileManagerEndpoint:     "appfactoryd-filemanager",
		Environment:             "development",
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			LogFormat:      "console",
			TracingEnabled: false,
			TraceExporter:  "stdout",
			MetricsEnabled: true,
			MetricsAddr:    ":9090",
		},
	}
}

// LoadDaemonConfig reads and parses the daemon config file at path,
// filling unset fields from DefaultDaemonConfig.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	cfg := DefaultDaemonConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// telemetryConfig projects the daemon's telemetry settings onto
// telemetry.Config.
func (c *DaemonConfig) telemetryConfig() *telemetry.Config {
	tel := telemetry.DefaultConfig()
	tel.ServiceName = "appfactoryd"
	tel.Environment = c.Environment
	tel.Logging.Level = c.Telemetry.LogLevel
	tel.Logging.Format = c.Telemetry.LogFormat
	tel.Tracing.Enabled = c.Telemetry.TracingEnabled
	tel.Tracing.Exporter = c.Telemetry.TraceExporter
	tel.Tracing.Endpoint = c.Telemetry.TraceEndpoint
	tel.Metrics.Enabled = c.Telemetry.MetricsEnabled
	tel.Metrics.ListenAddress = c.Telemetry.MetricsAddr
	return tel
}
