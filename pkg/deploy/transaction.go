package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redhawk/appfactory/pkg/telemetry"
)

// Transaction drives one Create call end to end: pre-flight, planning,
// placement, construction of the Application Handle, load/execute,
// registration wait, initialize, connect, configure, and publish. It owns
// rollback — grounded on createHelper::create and _cleanupFailedCreate.
type Transaction struct {
	descriptors DescriptorLoader
	allocator   AllocationManager
	domain      DomainManager
	devices     DeviceDialer
	policy      PolicyGate
	namer       *Namer
	placer      *Placer
	collocator  *Collocator
	resolver    *Resolver
	wirer       func(ApplicationHandle) *Wirer

	logger  *telemetry.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.DeployMetrics
}

// DeviceDialer resolves a DeviceNode's opaque RemoteHandle into a usable
// Device, the seam pkg/device's SSH transport satisfies.
type DeviceDialer interface {
	Dial(ctx context.Context, node *DeviceNode) (Device, error)
}

// PolicyGate evaluates a DeploymentPlan before placement begins and
// reports whether it may proceed, the seam pkg/policy's OPA-backed Engine
// satisfies. A Transaction with no PolicyGate configured skips the check
// entirely.
type PolicyGate interface {
	EvaluatePlan(ctx context.Context, plan *DeploymentPlan) (allowed bool, reasons []string, err error)
}

// TransactionConfig bundles every external collaborator a Transaction
// needs.
type TransactionConfig struct {
	Descriptors DescriptorLoader
	Allocator   AllocationManager
	Domain      DomainManager
	Devices     DeviceDialer
	Naming      NamingService
	Policy      PolicyGate
	Logger      *telemetry.Logger
	Tracer      *telemetry.Tracer
	Metrics     *telemetry.DeployMetrics
}

// NewTransaction wires a Transaction from its collaborators.
func NewTransaction(cfg TransactionConfig) *Transaction {
	return &Transaction{
		descriptors: cfg.Descriptors,
		allocator:   cfg.Allocator,
		domain:      cfg.Domain,
		devices:     cfg.Devices,
		policy:      cfg.Policy,
		namer:       NewNamer(cfg.Naming),
		placer:      NewPlacer(cfg.Allocator),
		collocator:  NewCollocator(cfg.Allocator),
		resolver:    NewResolver(),
		wirer:       NewWirer,
		logger:      cfg.Logger,
		tracer:      cfg.Tracer,
		metrics:     cfg.Metrics,
	}
}

// rollbackStep is one entry of the explicit rollback closure stack built
// as the transaction proceeds, run in LIFO order on any abnormal exit —
// the Go substitute for destructors the design notes call for.
type rollbackStep struct {
	name string
	run  func(ctx context.Context)
}

// Create runs the full deployment described by req against sadPath,
// returning the published ApplicationHandle on success. Any failure
// triggers full rollback in LIFO order before the error is returned.
func (t *Transaction) Create(ctx context.Context, sadPath string, req CreateRequest, app ApplicationHandle) (ApplicationHandle, error) {
	start := time.Now()
	ctx, span := t.tracer.StartDeploymentSpan(ctx, req.Name)
	defer span.End()

	log := t.logger.WithField("app_name", req.Name)
	log.Info("deployment started")
	t.metrics.RecordDeploymentStarted(req.Name)

	var rollback []rollbackStep
	committed := false
	defer func() {
		status := "success"
		if !committed {
			status = "rolled_back"
			t.runRollback(ctx, rollback)
		}
		t.metrics.RecordDeploymentCompleted(status, time.Since(start).Seconds())
		log.WithField("status", status).Info("deployment finished")
	}()

	plan, trustedApplication, err := t.preflightAndPlan(ctx, sadPath, req)
	if err != nil {
		return nil, err
	}
	log = log.WithAppID(plan.AppID)

	if t.policy != nil {
		allowed, reasons, err := t.policy.EvaluatePlan(ctx, plan)
		if err != nil {
			return nil, NewInternalError("policy evaluation failed", err)
		}
		if !allowed {
			log.WithField("reasons", reasons).Warn("deployment rejected by policy")
			policyErr := NewPolicyDeniedError(reasons)
			telemetry.RecordError(span, policyErr)
			return nil, policyErr
		}
	}

	rollback = append(rollback, rollbackStep{"deallocate", func(ctx context.Context) {
		plan.Allocations.Deallocate(ctx)
	}})

	if err := t.place(ctx, plan, req.DeviceAssignments); err != nil {
		return nil, err
	}

	contextName, nsHandle, err := t.namer.NextContextName(ctx, req.Name)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	plan.WaveformContext = contextName
	plan.AppID = fmt.Sprintf("%s:%s", plan.AppID, contextName)
	rollback = append(rollback, rollbackStep{"destroy_naming_context", func(ctx context.Context) {
		_ = t.namer.svc.UnbindContext(ctx, contextName)
	}})
	rollback = append(rollback, rollbackStep{"unload_softpkgs", func(ctx context.Context) {
		for i := len(plan.SoftPkgLoads) - 1; i >= 0; i-- {
			load := plan.SoftPkgLoads[i]
			for _, comp := range plan.Components {
				if comp.AssignedDevice == nil || comp.AssignedDevice.Identifier != load.DeviceID {
					continue
				}
				if dev, err := t.devices.Dial(ctx, comp.AssignedDevice); err == nil && dev.Ping(ctx) {
					_ = dev.Unload(ctx, load.FilePath)
				}
				break
			}
		}
	}})
	_ = nsHandle

	registrar, err := app.Activate(ctx, plan.AppID, contextName, trustedApplication)
	if err != nil {
		return nil, NewInternalError("failed to activate application handle", err)
	}
	_ = registrar
	rollback = append(rollback, rollbackStep{"cleanup_activations", func(ctx context.Context) {
		_ = app.CleanupActivations(ctx)
	}})

	if err := t.loadAndExecute(ctx, plan, app, log); err != nil {
		rollback = append(rollback,
			rollbackStep{"unload_components", func(ctx context.Context) { _ = app.UnloadComponents(ctx) }},
			rollbackStep{"terminate_components", func(ctx context.Context) { _ = app.TerminateComponents(ctx) }},
			rollbackStep{"release_components", func(ctx context.Context) { _ = app.ReleaseComponents(ctx) }},
		)
		return nil, err
	}
	rollback = append(rollback,
		rollbackStep{"unload_components", func(ctx context.Context) { _ = app.UnloadComponents(ctx) }},
		rollbackStep{"terminate_components", func(ctx context.Context) { _ = app.TerminateComponents(ctx) }},
		rollbackStep{"release_components", func(ctx context.Context) { _ = app.ReleaseComponents(ctx) }},
	)

	timeout, err := t.domain.GetComponentBindingTimeout(ctx)
	if err != nil {
		timeout = 30 * time.Second
	}
	if missing, ok := app.WaitForRegistration(ctx, timeout); !ok {
		return nil, NewTimeoutError(missing)
	}

	if err := t.initialize(ctx, plan, app); err != nil {
		return nil, err
	}

	if err := t.connect(ctx, plan, app); err != nil {
		return nil, err
	}

	if err := t.configure(ctx, plan, app); err != nil {
		return nil, err
	}

	if err := t.publish(ctx, plan, app); err != nil {
		return nil, err
	}

	var allocationIDs []string
	plan.Allocations.TransferToSlice(&allocationIDs)

	if err := app.Commit(ctx, allocationIDs, plan.AppUsedDevices, plan.StartOrder, plan.Connections); err != nil {
		allocationIDs = nil
		return nil, NewInternalError("commit failed", err)
	}
	if err := t.domain.AddApplication(ctx, app); err != nil {
		return nil, NewInternalError("failed to register application with domain manager", err)
	}
	if len(plan.AppUsedDevices) > 0 {
		_ = t.domain.SetLastDeviceUsedForDeployment(ctx, plan.AppUsedDevices[0].DeviceID)
	}

	committed = true
	telemetry.RecordSuccess(span)
	return app, nil
}

// runRollback executes every accumulated rollback step in LIFO order,
// matching _cleanupFailedCreate's release/terminate/unload/cleanup
// sequence followed by naming-context teardown. Every step is
// best-effort: a panic or error in one step must not prevent the rest
// from running.
func (t *Transaction) runRollback(ctx context.Context, steps []rollbackStep) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.WithField("step", step.name).Warn("rollback step panicked, continuing")
				}
			}()
			step.run(ctx)
		}()
	}
}

// preflightAndPlan implements phases 1-2: strip TRUSTED_APPLICATION, load
// the descriptor, compute start order, identify the assembly controller,
// and apply overrides. Registered devices are snapshotted and filtered
// later, in place.
func (t *Transaction) preflightAndPlan(ctx context.Context, sadPath string, req CreateRequest) (*DeploymentPlan, bool, error) {
	trustedApplication := true
	initConfig := make([]InitProperty, 0, len(req.InitConfiguration))
	for _, p := range req.InitConfiguration {
		if p.ID == ReservedTrustedApplicationKey {
			if v, ok := p.Value.(bool); ok {
				trustedApplication = v
			}
			continue
		}
		initConfig = append(initConfig, p)
	}

	descriptor, err := t.descriptors.LoadAssembly(ctx, sadPath)
	if err != nil {
		return nil, false, NewDescriptorInvalidError("failed to load software assembly descriptor", err).WithResource(sadPath)
	}

	allocations := NewScopedAllocations(t.allocator)
	plan := NewDeploymentPlan(descriptor.SADID, descriptor.Components, allocations)
	plan.DeclaredConnections = descriptor.Connections
	plan.ExternalPortRefs = descriptor.ExternalPortRefs
	plan.ExternalPropertyRefs = descriptor.ExternalPropertyRefs
	plan.collocationGroups = descriptor.CollocationGroups

	var ac *ComponentSpec
	for _, c := range plan.Components {
		if c.IsAssemblyController {
			ac = c
			break
		}
	}
	plan.AssemblyController = ac

	startOrder, err := computeStartOrder(plan.Components, ac)
	if err != nil {
		return nil, false, err
	}
	plan.StartOrder = startOrder

	if ac != nil {
		applyOverrides(ac, initConfig)
	}

	return plan, trustedApplication, nil
}

// computeStartOrder derives a strictly ascending numeric startOrder
// sequence, excluding the assembly controller, ties broken by descriptor
// order.
func computeStartOrder(components []*ComponentSpec, ac *ComponentSpec) ([]string, error) {
	type entry struct {
		id    string
		order int
		index int
	}
	var entries []entry
	for i, c := range components {
		if ac != nil && c.InstanceID == ac.InstanceID {
			continue
		}
		if c.StartOrder == nil {
			continue
		}
		entries = append(entries, entry{id: c.InstanceID, order: *c.StartOrder, index: i})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].index < entries[j].index
	})
	prev := -1
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.order <= prev {
			return nil, NewDescriptorInvalidError(fmt.Sprintf("start order not strictly increasing at component %q", e.id), nil)
		}
		prev = e.order
		out = append(out, e.id)
	}
	return out, nil
}

// applyOverrides applies initConfiguration values onto the assembly
// controller's overridden properties.
func applyOverrides(ac *ComponentSpec, initConfig []InitProperty) {
	if ac.OverriddenProperties == nil {
		ac.OverriddenProperties = make(map[string]interface{})
	}
	for _, p := range initConfig {
		ac.OverriddenProperties[p.ID] = p.Value
	}
}

// place implements phase 3: the user-supplied device assignment map,
// collocation groups, then every remaining unassigned component.
// Application-level usesDevices are not allocated here; only the
// component- and implementation-level usesDevices the Placer handles are.
func (t *Transaction) place(ctx context.Context, plan *DeploymentPlan, assignments []DeviceAssignment) error {
	devices, err := t.domain.GetRegisteredDevices(ctx)
	if err != nil {
		return NewInternalError("failed to list registered devices", err)
	}
	executable := make([]*DeviceNode, 0, len(devices))
	for _, d := range devices {
		if d.Executable {
			executable = append(executable, d)
		}
	}
	if len(executable) == 0 {
		return NewNoCapacityError("no executable devices in domain", nil)
	}
	if lastUsed, ok, _ := t.domain.GetLastDeviceUsedForDeployment(ctx); ok {
		rotateDeviceList(executable, lastUsed)
	}

	var badAssignments []BadAssignment
	assigned := make(map[string]bool)
	for _, a := range assignments {
		comp, ok := plan.ComponentsByID[a.ComponentID]
		if !ok {
			badAssignments = append(badAssignments, BadAssignment{ComponentID: a.ComponentID, DeviceID: a.DeviceID})
			continue
		}
		if _, err := t.placer.AllocateComponent(ctx, comp, a.DeviceID, executable, plan); err != nil {
			if reqErr, ok := err.(*CreateApplicationRequestError); ok {
				badAssignments = append(badAssignments, reqErr.BadAssignments...)
				continue
			}
			return err
		}
		assigned[comp.InstanceID] = true
	}
	if len(badAssignments) > 0 {
		return &CreateApplicationRequestError{Message: "device assignment map names unknown component or device", BadAssignments: badAssignments}
	}

	for _, group := range plan.collocationGroups {
		if err := t.collocator.PlaceCollocation(ctx, group, plan, executable); err != nil {
			return err
		}
	}

	for _, comp := range plan.Components {
		if comp.AssignedDevice == nil {
			if _, err := t.placer.AllocateComponent(ctx, comp, "", executable, plan); err != nil {
				return err
			}
		}
	}

	return nil
}

// loadAndExecute implements phase 5: recursively load each soft-package
// dependency, load the component's own code, then execute Executable or
// SharedLibrary-with-entrypoint implementations with the merged
// execParameters.
func (t *Transaction) loadAndExecute(ctx context.Context, plan *DeploymentPlan, app ApplicationHandle, log *telemetry.Logger) error {
	_, span := t.tracer.StartPhaseSpan(ctx, plan.AppID, "load_execute")
	defer span.End()

	for _, comp := range plan.Components {
		if comp.AssignedDevice == nil || comp.SelectedImplementation == nil {
			return NewInternalError("component missing placement before load/execute", nil).WithResource(comp.InstanceID)
		}

		dev, err := t.devices.Dial(ctx, comp.AssignedDevice)
		if err != nil {
			return NewRemoteFailureError("failed to dial assigned device", err).WithResource(comp.InstanceID)
		}

		impl := comp.SelectedImplementation
		if err := t.loadSoftPkgChain(ctx, dev, comp.AssignedDevice.Identifier, impl, plan); err != nil {
			return err
		}

		if err := dev.Load(ctx, nil, impl.LocalFileName, impl.CodeType); err != nil {
			return NewRemoteFailureError("load failed", err).WithResource(comp.InstanceID).WithOperation("load")
		}
		if err := app.AddComponent(ctx, comp); err != nil {
			return NewInternalError("failed to register component on application handle", err).WithResource(comp.InstanceID)
		}
		if err := app.SetComponentImplementation(ctx, comp.InstanceID, impl); err != nil {
			return NewInternalError("failed to record component implementation", err).WithResource(comp.InstanceID)
		}
		if err := app.SetComponentDevice(ctx, comp.InstanceID, comp.AssignedDevice.Identifier); err != nil {
			return NewInternalError("failed to record component device", err).WithResource(comp.InstanceID)
		}
		if comp.UsesNamingService {
			if err := app.SetComponentNamingContext(ctx, comp.InstanceID, comp.NamingServiceName); err != nil {
				return NewInternalError("failed to record component naming context", err).WithResource(comp.InstanceID)
			}
		}

		executable := impl.CodeType == CodeExecutable
		sharedWithEntry := impl.CodeType == CodeSharedLibrary && impl.EntryPoint != ""
		if !executable && !sharedWithEntry {
			continue
		}

		execPath := impl.EntryPoint
		if execPath == "" {
			// Non-SCA-compliant fallback: execute the code file itself.
			execPath = impl.LocalFileName
			log.WithComponentID(comp.InstanceID).Warn("implementation has no entry point; executing code file directly (non-SCA-compliant)")
		}

		params := t.buildExecParams(comp, plan)
		pid, err := dev.Execute(ctx, execPath, nil, params)
		if err != nil || pid < 0 {
			return NewRemoteFailureError("execute failed", err).WithResource(comp.InstanceID).WithOperation("execute")
		}
		if err := app.SetComponentPID(ctx, comp.InstanceID, pid); err != nil {
			return NewInternalError("failed to record component pid", err).WithResource(comp.InstanceID)
		}
	}
	return nil
}

// loadSoftPkgChain recursively loads every soft-package dependency chosen
// by the Resolver for impl, recording each (device, filePath) pair for
// rollback before loading impl's own code file.
func (t *Transaction) loadSoftPkgChain(ctx context.Context, dev Device, deviceID string, impl *ImplSpec, plan *DeploymentPlan) error {
	for i, pkg := range impl.SoftPkgDependencies {
		selected := impl.SelectedSoftPkg(i)
		if selected == nil {
			selected = pkg
		}
		if err := t.loadSoftPkgChain(ctx, dev, deviceID, selected, plan); err != nil {
			return err
		}
		if err := dev.Load(ctx, nil, selected.LocalFileName, selected.CodeType); err != nil {
			return NewRemoteFailureError("soft-package load failed", err).WithResource(selected.ID).WithOperation("load")
		}
		plan.SoftPkgLoads = append(plan.SoftPkgLoads, SoftPkgLoad{DeviceID: deviceID, FilePath: selected.LocalFileName})
	}
	return nil
}

// buildExecParams merges the component's declared execParameters with the
// six reserved keys, deriving LOGGING_CONFIG_URI from the domain default
// when not already present and appending the file manager IOR when its
// scheme is sca:.
func (t *Transaction) buildExecParams(comp *ComponentSpec, plan *DeploymentPlan) []ExecParam {
	params := append([]ExecParam(nil), comp.ExecParameters...)

	have := make(map[string]bool, len(params))
	for _, p := range params {
		have[p.ID] = true
	}

	reserved := []ExecParam{
		{ID: ExecParamNamingContextIOR, Value: plan.WaveformContext},
		{ID: ExecParamComponentID, Value: comp.InstanceID},
		{ID: ExecParamNameBinding, Value: comp.UsageName},
		{ID: ExecParamDomPath, Value: fmt.Sprintf("/%s/%s", plan.AppID, comp.UsageName)},
		{ID: ExecParamProfileName, Value: comp.SPDPath},
	}
	for _, r := range reserved {
		if !have[r.ID] {
			params = append(params, r)
		}
	}

	if !have[ExecParamLoggingConfigURI] {
		uri := t.defaultLoggingConfigURI()
		if strings.HasPrefix(uri, "sca:") {
			if fm, err := t.domain.FileManager(context.Background()); err == nil && fm != nil {
				uri = fmt.Sprintf("%s?fs=%s", uri, fm.IOR())
			}
		}
		params = append(params, ExecParam{ID: ExecParamLoggingConfigURI, Value: uri})
	}

	return params
}

// defaultLoggingConfigURI resolves the domain-wide LOGGING_CONFIG_URI
// default, falling back to a built-in location when the domain has no
// DEFAULT_LOGGING_CONFIG_URI property set or the lookup fails.
func (t *Transaction) defaultLoggingConfigURI() string {
	ref, ok, err := t.domain.GetPropertyFromID(context.Background(), DomainPropertyDefaultLoggingConfigURI)
	if err != nil || !ok {
		return fallbackLoggingConfigURI
	}
	if uri, ok := ref.Value.(string); ok && uri != "" {
		return uri
	}
	return fallbackLoggingConfigURI
}

// initialize implements phase 7.
func (t *Transaction) initialize(ctx context.Context, plan *DeploymentPlan, app ApplicationHandle) error {
	var failures []string
	for _, comp := range plan.Components {
		if !comp.IsScaCompliant || !comp.IsResource {
			continue
		}
		if err := app.Initialize(ctx, comp.InstanceID); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", comp.InstanceID, err))
		}
	}
	if len(failures) > 0 {
		return NewRemoteFailureError("component initialization failed", nil).WithDetail("failures", failures)
	}
	return nil
}

// connect implements phase 8: iterate declared connections in reverse
// declaration order, delegating resolution to the Application Handle. A
// single resolution failure aborts the whole transaction.
func (t *Transaction) connect(ctx context.Context, plan *DeploymentPlan, app ApplicationHandle) error {
	for i := len(plan.DeclaredConnections) - 1; i >= 0; i-- {
		conn := plan.DeclaredConnections[i]
		record, err := app.Connect(ctx, conn)
		if err != nil {
			return NewRemoteFailureError("connection resolution failed", err).WithResource(conn.ID)
		}
		plan.Connections = append(plan.Connections, record)
	}
	return nil
}

// configure implements phase 9: non-AC SCA-compliant configurable
// resources first, then the assembly controller last.
func (t *Transaction) configure(ctx context.Context, plan *DeploymentPlan, app ApplicationHandle) error {
	for _, comp := range plan.Components {
		if comp.IsAssemblyController || !comp.IsScaCompliant || !comp.IsResource {
			continue
		}
		if len(comp.ConfigureProperties) == 0 {
			continue
		}
		if err := app.Configure(ctx, comp.InstanceID, comp.ConfigureProperties); err != nil {
			return mapConfigureError(err)
		}
	}
	if plan.AssemblyController != nil && plan.AssemblyController.IsScaCompliant && len(plan.AssemblyController.ConfigureProperties) > 0 {
		if err := app.Configure(ctx, plan.AssemblyController.InstanceID, plan.AssemblyController.ConfigureProperties); err != nil {
			return mapConfigureError(err)
		}
	}
	return nil
}

func mapConfigureError(err error) error {
	if invalid, ok := err.(*InvalidInitConfiguration); ok {
		return invalid
	}
	return NewRemoteFailureError("configure failed", err)
}

// publish implements phase 10.
func (t *Transaction) publish(ctx context.Context, plan *DeploymentPlan, app ApplicationHandle) error {
	wirer := t.wirer(app)
	if err := wirer.PublishPorts(ctx, plan.ExternalPortRefs, plan); err != nil {
		return err
	}
	if err := wirer.PublishProperties(ctx, plan.ExternalPropertyRefs, plan); err != nil {
		return err
	}
	return nil
}
