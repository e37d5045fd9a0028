package main

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Capability is the self-described shape of this device agent's host: the
// same identity and processor/OS advertisement the Domain Manager's
// registered-device directory stores for it, plus the usage state this
// agent currently reports for itself. A real load/execute still runs over
// the plain SSH session the controller dials directly (see
// pkg/device.SSHDevice); this manifest only answers "what can this host
// run", not "run this for me".
type Capability struct {
	ID               string         `yaml:"id"`
	Label            string         `yaml:"label"`
	Executable       bool           `yaml:"executable"`
	Processors       []string       `yaml:"processors"`
	OperatingSystems []OSDependency `yaml:"operatingSystems"`
	UsageState       string         `yaml:"usageState"`
}

// OSDependency mirrors deploy.OSDependency in YAML-tagged form.
type OSDependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ManifestStore holds the most recently loaded Capability, safe for
// concurrent reads from the status server and writes from the file
// watcher's reload goroutine.
type ManifestStore struct {
	mu   sync.RWMutex
	path string
	cap  Capability
}

// NewManifestStore loads path once and returns a store ready to serve it.
func NewManifestStore(path string) (*ManifestStore, error) {
	s := &ManifestStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the manifest file from disk, replacing the in-memory
// capability atomically.
func (s *ManifestStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read capability manifest %q: %w", s.path, err)
	}

	var c Capability
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse capability manifest %q: %w", s.path, err)
	}
	if c.UsageState == "" {
		c.UsageState = "idle"
	}

	s.mu.Lock()
	s.cap = c
	s.mu.Unlock()
	return nil
}

// Get returns the currently loaded capability.
func (s *ManifestStore) Get() Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cap
}
