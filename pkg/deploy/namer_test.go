package deploy

import (
	"context"
	"sync"
	"testing"
)

type fakeNamingService struct {
	mu       sync.Mutex
	resolved map[string]bool
	bound    []string
	unbound  []string
	bindErr  error
}

func newFakeNamingService(taken ...string) *fakeNamingService {
	resolved := make(map[string]bool)
	for _, name := range taken {
		resolved[name] = true
	}
	return &fakeNamingService{resolved: resolved}
}

func (f *fakeNamingService) Resolve(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved[name], nil
}

func (f *fakeNamingService) BindContext(ctx context.Context, name string) (interface{}, error) {
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bound = append(f.bound, name)
	f.resolved[name] = true
	return name, nil
}

func (f *fakeNamingService) UnbindContext(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unbound = append(f.unbound, name)
	return nil
}

func TestNamer_NextContextName(t *testing.T) {
	svc := newFakeNamingService()
	n := NewNamer(svc)

	name, handle, err := n.NextContextName(context.Background(), "my-waveform")
	if err != nil {
		t.Fatalf("NextContextName failed: %v", err)
	}
	if name != "my-waveform_1" {
		t.Errorf("got %q, want %q", name, "my-waveform_1")
	}
	if handle != "my-waveform_1" {
		t.Errorf("expected bound handle to echo the name, got %v", handle)
	}
}

func TestNamer_NextContextName_SkipsExistingCandidates(t *testing.T) {
	svc := newFakeNamingService("my-waveform_1", "my-waveform_2")
	n := NewNamer(svc)

	name, _, err := n.NextContextName(context.Background(), "my-waveform")
	if err != nil {
		t.Fatalf("NextContextName failed: %v", err)
	}
	if name != "my-waveform_3" {
		t.Errorf("got %q, want %q", name, "my-waveform_3")
	}
}

func TestNamer_NextContextName_Increments(t *testing.T) {
	svc := newFakeNamingService()
	n := NewNamer(svc)

	first, _, err := n.NextContextName(context.Background(), "app")
	if err != nil {
		t.Fatalf("NextContextName failed: %v", err)
	}
	second, _, err := n.NextContextName(context.Background(), "app")
	if err != nil {
		t.Fatalf("NextContextName failed: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct names across calls, got %q twice", first)
	}
}

func TestNamer_NextContextName_BindFailureIsAnError(t *testing.T) {
	svc := newFakeNamingService()
	svc.bindErr = context.DeadlineExceeded
	n := NewNamer(svc)

	_, _, err := n.NextContextName(context.Background(), "app")
	if err == nil {
		t.Fatal("expected an error when BindContext fails")
	}
	if !IsTimeout(err) {
		// not expected to be a timeout class specifically, just confirm it is
		// a classified DeployError rather than the raw cause.
		if _, ok := ClassOf(err); !ok {
			t.Error("expected bind failure to surface as a classified DeployError")
		}
	}
}

func TestNamer_BaseContext(t *testing.T) {
	n := NewNamer(newFakeNamingService())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no suffix", "waveform", "waveform"},
		{"double underscore numeric suffix", "waveform__42", "waveform"},
		{"single underscore is not stripped", "waveform_1", "waveform_1"},
		{"non-numeric suffix is not stripped", "waveform__abc", "waveform__abc"},
		{"trailing double underscore with no digits", "waveform__", "waveform__"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.BaseContext(tt.in); got != tt.want {
				t.Errorf("BaseContext(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
