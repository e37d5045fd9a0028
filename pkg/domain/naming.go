package domain

import (
	"context"
	"sync"
)

// NamingContext is an in-process reference implementation of
// deploy.NamingService: the domain-wide naming context the Namer probes
// and binds waveform context names against. A real domain would delegate
// this to a CORBA naming service or an external registry; this reference
// keeps the bound-name set in memory for the lifetime of the process,
// which is sufficient since naming contexts never need to survive a
// domain restart (a restarted domain has no running applications left to
// look them up).
type NamingContext struct {
	mu    sync.RWMutex
	bound map[string]struct{}
}

// NewNamingContext returns an empty naming context.
func NewNamingContext() *NamingContext {
	return &NamingContext{bound: make(map[string]struct{})}
}

// Resolve implements deploy.NamingService.
func (n *NamingContext) Resolve(ctx context.Context, name string) (bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.bound[name]
	return ok, nil
}

// BindContext implements deploy.NamingService.
func (n *NamingContext) BindContext(ctx context.Context, name string) (interface{}, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bound[name] = struct{}{}
	return name, nil
}

// UnbindContext implements deploy.NamingService.
func (n *NamingContext) UnbindContext(ctx context.Context, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.bound, name)
	return nil
}
