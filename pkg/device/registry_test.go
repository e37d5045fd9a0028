package device

import (
	"testing"

	"github.com/redhawk/appfactory/pkg/transports/ssh"
)

func TestEndpointRegistry_RegisterAndLookup(t *testing.T) {
	r := NewEndpointRegistry()
	cfg := &ssh.Config{Host: "10.0.0.5", Port: 22, User: "operator"}
	r.Register("dev-1", cfg)

	got, err := r.Lookup("dev-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != cfg {
		t.Errorf("expected the registered config pointer back, got %v", got)
	}
}

func TestEndpointRegistry_LookupUnknownFails(t *testing.T) {
	r := NewEndpointRegistry()
	if _, err := r.Lookup("does-not-exist"); err == nil {
		t.Fatal("expected an error looking up an unregistered device")
	}
}

func TestEndpointRegistry_Deregister(t *testing.T) {
	r := NewEndpointRegistry()
	r.Register("dev-1", &ssh.Config{Host: "10.0.0.5"})
	r.Deregister("dev-1")

	if _, err := r.Lookup("dev-1"); err == nil {
		t.Fatal("expected lookup to fail after deregister")
	}
}

func TestEndpointRegistry_RegisterReplacesExisting(t *testing.T) {
	r := NewEndpointRegistry()
	r.Register("dev-1", &ssh.Config{Host: "10.0.0.5"})
	r.Register("dev-1", &ssh.Config{Host: "10.0.0.6"})

	got, err := r.Lookup("dev-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Host != "10.0.0.6" {
		t.Errorf("got host %q, want 10.0.0.6", got.Host)
	}
}
