package device

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/redhawk/appfactory/pkg/deploy"
	"github.com/redhawk/appfactory/pkg/telemetry"
	"github.com/redhawk/appfactory/pkg/transports/ssh"
)

const remoteStagingDir = "/opt/appfactory/staged"

// SSHDevice is a deploy.Device backed by an SSH+SFTP connection to the
// device's host. Code is staged by pushing it over SFTP rather than
// having the device pull from the File Manager, the controller-initiated
// direction SSH naturally supports.
type SSHDevice struct {
	mu     sync.Mutex
	client ssh.Transport
	node   *deploy.DeviceNode
	logger *telemetry.Logger

	loaded map[string]bool
}

// NewSSHDevice wraps an already-connected SSH transport as a Device for
// node.
func NewSSHDevice(client ssh.Transport, node *deploy.DeviceNode, logger *telemetry.Logger) *SSHDevice {
	return &SSHDevice{
		client: client,
		node:   node,
		logger: logger,
		loaded: make(map[string]bool),
	}
}

func remotePathFor(localPath string) string {
	return path.Join(remoteStagingDir, path.Base(localPath))
}

// Load stages the file at path onto the device. fm's IOR is logged as the
// pull-based alternative a future transport could use; this
// implementation always pushes.
func (d *SSHDevice) Load(ctx context.Context, fm deploy.FileManager, localPath string, codeType deploy.CodeType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remotePath := remotePathFor(localPath)
	mode := uint32(0644)
	if codeType == deploy.CodeExecutable {
		mode = 0755
	}

	if d.logger != nil {
		log := d.logger.WithDeviceID(d.node.Identifier)
		if fm != nil {
			log = log.WithField("file_manager_ior", fm.IOR())
		}
		log.WithField("remote_path", remotePath).Debug("staging file onto device")
	}

	if err := d.client.UploadFile(ctx, localPath, remotePath, mode); err != nil {
		return fmt.Errorf("load %q onto device %q: %w", localPath, d.node.Identifier, err)
	}
	d.loaded[remotePath] = true
	return nil
}

// Unload removes a previously staged file.
func (d *SSHDevice) Unload(ctx context.Context, localPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	remotePath := remotePathFor(localPath)
	if _, _, err := d.client.ExecuteCommand(ctx, fmt.Sprintf("rm -f %s", shellQuote(remotePath))); err != nil {
		return fmt.Errorf("unload %q from device %q: %w", localPath, d.node.Identifier, err)
	}
	delete(d.loaded, remotePath)
	return nil
}

// Execute spawns path as a detached background process on the device,
// merging options into its environment and params as positional
// arguments, and returns the spawned process's PID.
func (d *SSHDevice) Execute(ctx context.Context, localPath string, options map[string]string, params []deploy.ExecParam) (int, error) {
	remotePath := remotePathFor(localPath)

	var envPrefix strings.Builder
	for k, v := range options {
		envPrefix.WriteString(fmt.Sprintf("%s=%s ", shellQuote(k), shellQuote(v)))
	}

	var args strings.Builder
	for _, p := range params {
		args.WriteString(" ")
		args.WriteString(shellQuote(fmt.Sprintf("%s=%s", p.ID, p.Value)))
	}

	cmd := fmt.Sprintf("%snohup %s%s > /dev/null 2>&1 & echo $!", envPrefix.String(), shellQuote(remotePath), args.String())

	stdout, stderr, err := d.client.ExecuteCommand(ctx, cmd)
	if err != nil {
		return 0, fmt.Errorf("execute %q on device %q: %w (stderr: %s)", localPath, d.node.Identifier, err, stderr)
	}

	pid, perr := strconv.Atoi(strings.TrimSpace(stdout))
	if perr != nil {
		return 0, fmt.Errorf("execute %q on device %q: could not parse spawned pid from %q", localPath, d.node.Identifier, stdout)
	}
	return pid, nil
}

// UsageState reports the device's current usage state. This reference
// implementation returns the state recorded on the node when the
// transport's health check succeeds, rather than a device-reported
// property; it treats a device the health check cannot reach as busy
// rather than erroring, since a component placement decision should
// prefer a different device, not fail outright.
func (d *SSHDevice) UsageState(ctx context.Context) (deploy.UsageState, error) {
	if err := d.client.HealthCheck(ctx); err != nil {
		return deploy.UsageBusy, nil
	}
	return d.node.UsageState, nil
}

// GetPort reports whether portID is exposed on this device. Devices in
// this domain expose no ports of their own; ports belong to the
// components they execute, resolved through the Application Handle
// instead.
func (d *SSHDevice) GetPort(ctx context.Context, portID string) (bool, error) {
	return false, nil
}

// IsA reports whether this device supports interfaceID. An SSH-backed
// device advertises the two device kinds the Deploy Transaction checks
// for when filtering executable devices.
func (d *SSHDevice) IsA(ctx context.Context, interfaceID string) (bool, error) {
	switch interfaceID {
	case "IDL:CF/ExecutableDevice:1.0", "IDL:CF/LoadableDevice:1.0", "IDL:CF/Device:1.0":
		return true, nil
	default:
		return false, nil
	}
}

// Ping reports whether the device is currently reachable.
func (d *SSHDevice) Ping(ctx context.Context) bool {
	return d.client.HealthCheck(ctx) == nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
