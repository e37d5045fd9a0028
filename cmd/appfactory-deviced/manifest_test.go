package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testCapabilityYAML = `
id: dev-gpp-1
label: GPP-1
executable: true
processors: ["x86"]
operatingSystems:
  - name: Linux
    version: "5.15"
`

func writeCapabilityFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capability.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write capability file: %v", err)
	}
	return path
}

func TestNewManifestStoreLoadsCapability(t *testing.T) {
	path := writeCapabilityFile(t, testCapabilityYAML)

	store, err := NewManifestStore(path)
	if err != nil {
		t.Fatalf("NewManifestStore: %v", err)
	}

	c := store.Get()
	if c.ID != "dev-gpp-1" || c.Label != "GPP-1" || !c.Executable {
		t.Fatalf("unexpected capability: %+v", c)
	}
	if c.UsageState != "idle" {
		t.Fatalf("expected default usage state idle, got %q", c.UsageState)
	}
}

func TestNewManifestStoreMissingFile(t *testing.T) {
	if _, err := NewManifestStore(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing capability file")
	}
}

func TestManifestStoreReloadPicksUpChanges(t *testing.T) {
	path := writeCapabilityFile(t, testCapabilityYAML)

	store, err := NewManifestStore(path)
	if err != nil {
		t.Fatalf("NewManifestStore: %v", err)
	}
	if store.Get().UsageState != "idle" {
		t.Fatalf("expected initial usage state idle, got %q", store.Get().UsageState)
	}

	updated := testCapabilityYAML + "usageState: busy\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewrite capability file: %v", err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if store.Get().UsageState != "busy" {
		t.Fatalf("expected reloaded usage state busy, got %q", store.Get().UsageState)
	}
}
