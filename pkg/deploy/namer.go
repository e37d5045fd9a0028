package deploy

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// NamingService is the external collaborator the Namer probes and binds
// against: the domain's naming context.
type NamingService interface {
	// Resolve reports whether name already resolves to something under
	// the domain naming context.
	Resolve(ctx context.Context, name string) (bool, error)

	// BindContext creates a fresh naming context named name, returning an
	// opaque handle to it.
	BindContext(ctx context.Context, name string) (interface{}, error)

	// UnbindContext removes a previously bound context, best-effort.
	UnbindContext(ctx context.Context, name string) error
}

// Namer generates a unique waveform naming context, grounded on
// ApplicationFactory_impl::getWaveformContextName. Calls on one Namer are
// serialized by its mutex, so two concurrent Create calls through the same
// Namer never observe the same candidate name; separate Namers keep
// separate counters and mutexes.
type Namer struct {
	svc NamingService

	mu      sync.Mutex
	counter uint64
}

// NewNamer returns a Waveform Namer bound to svc, with its own counter and
// mutex.
func NewNamer(svc NamingService) *Namer {
	return &Namer{svc: svc}
}

// NextContextName increments the Namer's counter (skipping zero) and
// probes candidate names "{appName}_{n}" until one resolves to nothing,
// then binds a context under that name. The whole operation runs under
// the Namer's mutex, matching the design's pendingCreateLock: held only
// across the counter bump and naming-service bind, never across remote
// execute calls.
func (n *Namer) NextContextName(ctx context.Context, appName string) (string, interface{}, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for {
		n.counter++
		if n.counter == 0 {
			continue // skip zero
		}
		candidate := fmt.Sprintf("%s_%d", appName, n.counter)
		exists, err := n.svc.Resolve(ctx, candidate)
		if err != nil {
			return "", nil, NewInternalError("naming context probe failed", err).WithResource(candidate)
		}
		if exists {
			continue
		}
		handle, err := n.svc.BindContext(ctx, candidate)
		if err != nil {
			// §9 known source issue: the original's outer try around
			// naming-context creation swallows every exception with an
			// empty catch(...). We surface it as a hard error instead of
			// letting Create silently proceed without a naming context.
			return "", nil, NewInternalError("failed to bind waveform naming context", err).WithResource(candidate)
		}
		return candidate, handle, nil
	}
}

// BaseContext strips a trailing "__N" suffix (two underscores followed by
// one or more digits) from name and returns the rest; any other name,
// including the single-underscore "{appName}_{n}" names NextContextName
// produces, is returned unchanged. Grounded on getBaseWaveformContext.
func (n *Namer) BaseContext(name string) string {
	idx := strings.LastIndex(name, "__")
	if idx < 0 {
		return name
	}
	suffix := name[idx+2:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return name
		}
	}
	if suffix == "" {
		return name
	}
	return name[:idx]
}
