package device

import (
	"context"
	"fmt"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/telemetry"
	"github.com/redhawk/appfactory/pkg/transports/ssh"
)

// Dialer implements deploy.DeviceDialer by connecting over SSH to each
// device's registered endpoint.
type Dialer struct {
	endpoints *EndpointRegistry
	logger    *telemetry.Logger
}

// NewDialer returns a Dialer resolving device endpoints from endpoints.
func NewDialer(endpoints *EndpointRegistry, logger *telemetry.Logger) *Dialer {
	return &Dialer{endpoints: endpoints, logger: logger}
}

// Dial implements deploy.DeviceDialer.
func (d *Dialer) Dial(ctx context.Context, node *deploy.DeviceNode) (deploy.Device, error) {
	cfg, err := d.endpoints.Lookup(node.Identifier)
	if err != nil {
		return nil, fmt.Errorf("dial device %q: %w", node.Identifier, err)
	}

	client, err := ssh.NewSSHClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("dial device %q: %w", node.Identifier, err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("dial device %q: %w", node.Identifier, err)
	}

	if d.logger != nil {
		d.logger.WithDeviceID(node.Identifier).Debug("dialed device over ssh")
	}
	return NewSSHDevice(client, node, d.logger), nil
}
