package device

import (
	"fmt"
	"sync"

	"github.com/redhawk/appfactory/pkg/transports/ssh"
)

// EndpointRegistry maps a registered device's identifier to the SSH
// connection parameters its device agent listens on. DeviceNode itself
// carries no network address — RemoteHandle is resolved here, mirroring
// how pkg/allocator.Manager keeps its own capacity ledger independent of
// the Domain Manager's device directory.
type EndpointRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]*ssh.Config
}

// NewEndpointRegistry returns an empty endpoint directory.
func NewEndpointRegistry() *EndpointRegistry {
	return &EndpointRegistry{endpoints: make(map[string]*ssh.Config)}
}

// Register associates deviceID with the SSH parameters used to dial it.
func (r *EndpointRegistry) Register(deviceID string, cfg *ssh.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[deviceID] = cfg
}

// Deregister removes a device's connection parameters.
func (r *EndpointRegistry) Deregister(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, deviceID)
}

// Lookup returns the SSH parameters for deviceID.
func (r *EndpointRegistry) Lookup(deviceID string) (*ssh.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.endpoints[deviceID]
	if !ok {
		return nil, fmt.Errorf("no endpoint registered for device %q", deviceID)
	}
	return cfg, nil
}
