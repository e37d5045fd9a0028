package descriptor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const validAssembly = `
sadId: "waveform-1"
components: [
	{
		instanceId: "comp-1"
		usageName: "comp1"
		isAssemblyController: true
		isScaCompliant: true
		isResource: true
		implementations: [
			{id: "impl-1", localFileName: "/comp1", codeType: "executable"},
		]
	},
]
`

const duplicateComponentAssembly = `
sadId: "waveform-1"
components: [
	{instanceId: "comp-1", implementations: [{id: "impl-1", localFileName: "/a", codeType: "executable"}]},
	{instanceId: "comp-1", implementations: [{id: "impl-2", localFileName: "/b", codeType: "executable"}]},
]
`

const unresolvedCollocationAssembly = `
sadId: "waveform-1"
components: [
	{instanceId: "comp-1", implementations: [{id: "impl-1", localFileName: "/a", codeType: "executable"}]},
]
collocationGroups: [
	{id: "group-1", componentIds: ["comp-1", "does-not-exist"]},
]
`

const missingRequiredFieldAssembly = `
components: [
	{instanceId: "comp-1", implementations: [{id: "impl-1", localFileName: "/a", codeType: "executable"}]},
]
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "assembly.cue")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestLoader_LoadAssembly_Success(t *testing.T) {
	l := NewLoader()
	path := writeFixture(t, validAssembly)

	descriptor, err := l.LoadAssembly(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadAssembly failed: %v", err)
	}
	if descriptor.SADID != "waveform-1" {
		t.Errorf("got SADID %q, want %q", descriptor.SADID, "waveform-1")
	}
	if len(descriptor.Components) != 1 || descriptor.Components[0].InstanceID != "comp-1" {
		t.Fatalf("expected one component named comp-1, got %v", descriptor.Components)
	}
	if !descriptor.Components[0].IsAssemblyController {
		t.Error("expected comp-1 to be parsed as the assembly controller")
	}
}

func TestLoader_LoadAssembly_DuplicateInstanceIDFails(t *testing.T) {
	l := NewLoader()
	path := writeFixture(t, duplicateComponentAssembly)

	_, err := l.LoadAssembly(context.Background(), path)
	if err == nil {
		t.Fatal("expected an error for a duplicate component instanceId")
	}
}

func TestLoader_LoadAssembly_UnresolvedCollocationReferenceFails(t *testing.T) {
	l := NewLoader()
	path := writeFixture(t, unresolvedCollocationAssembly)

	_, err := l.LoadAssembly(context.Background(), path)
	if err == nil {
		t.Fatal("expected an error when a collocation group references an unknown component")
	}
}

func TestLoader_LoadAssembly_MissingRequiredFieldFails(t *testing.T) {
	l := NewLoader()
	path := writeFixture(t, missingRequiredFieldAssembly)

	_, err := l.LoadAssembly(context.Background(), path)
	if err == nil {
		t.Fatal("expected validation to fail when sadId is missing")
	}
}

func TestLoader_LoadAssembly_MissingFileFails(t *testing.T) {
	l := NewLoader()
	_, err := l.LoadAssembly(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.cue"))
	if err == nil {
		t.Fatal("expected an error when the descriptor file does not exist")
	}
}
