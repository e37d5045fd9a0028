package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/transports/ssh"
)

// ManifestEntry describes one device in a YAML capability manifest: its
// identity and capability advertisement for the Domain Manager's
// registered-device directory, its capacity offering for the Allocation
// Manager, and the SSH parameters used to dial it.
type ManifestEntry struct {
	ID               string            `yaml:"id"`
	Label            string            `yaml:"label"`
	Executable       bool              `yaml:"executable"`
	Processors       []string          `yaml:"processors"`
	OperatingSystems []OSDependency    `yaml:"operatingSystems"`
	Capacities       map[string]float64 `yaml:"capacities"`
	SSH              SSHEndpoint       `yaml:"ssh"`
}

// OSDependency mirrors deploy.OSDependency in YAML-tagged form.
type OSDependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SSHEndpoint is the YAML shape of the connection parameters a device
// agent listens on.
type SSHEndpoint struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	KnownHostsPath string `yaml:"knownHostsPath"`
}

// Manifest is the top-level shape of a device fleet manifest file:
// appfactoryd's static inventory of devices to register at startup.
type Manifest struct {
	Devices []ManifestEntry `yaml:"devices"`
}

// LoadManifest reads and parses a device fleet manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device manifest %q: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse device manifest %q: %w", path, err)
	}
	return &m, nil
}

// DeviceNode projects this manifest entry into the deploy.DeviceNode the
// Domain Manager's registered-device directory stores.
func (e *ManifestEntry) DeviceNode() *deploy.DeviceNode {
	osDeps := make([]deploy.OSDependency, 0, len(e.OperatingSystems))
	for _, os := range e.OperatingSystems {
		osDeps = append(osDeps, deploy.OSDependency{Name: os.Name, Version: os.Version})
	}
	return &deploy.DeviceNode{
		Identifier:       e.ID,
		Label:            e.Label,
		Executable:       e.Executable,
		Processors:       e.Processors,
		OperatingSystems: osDeps,
		UsageState:       deploy.UsageIdle,
	}
}

// SSHConfig projects this manifest entry's endpoint into an
// ssh.Config ready for Dialer/EndpointRegistry use. keyAuth selects
// private-key authentication when privateKeyPath is non-empty, matching
// the teacher's own SSH host transport defaults.
func (e *ManifestEntry) SSHConfig() *ssh.Config {
	cfg := ssh.DefaultConfig(e.SSH.Host, e.SSH.User)
	if e.SSH.Port != 0 {
		cfg.Port = e.SSH.Port
	}
	if e.SSH.PrivateKeyPath != "" {
		cfg.AuthMethod = ssh.AuthMethodKey
		cfg.PrivateKeyPath = e.SSH.PrivateKeyPath
	}
	if e.SSH.KnownHostsPath != "" {
		cfg.KnownHostsPath = e.SSH.KnownHostsPath
		cfg.StrictHostKeyChecking = true
	}
	return cfg
}
