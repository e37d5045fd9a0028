package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events
// for the Application Factory daemon.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *DeployMetrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewDeployMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Timer measures elapsed wall-clock time for an instrumented operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new Timer, starting it immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithDeploymentContext creates a context enriched with deployment-specific telemetry,
// covering one Transaction.Create call end to end.
func WithDeploymentContext(ctx context.Context, appID, user string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartDeploymentSpan(ctx, appID)

	logger := tel.Logger.WithAppID(appID).WithField("user", user)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordDeploymentStarted(appID)
	_ = tel.Events.PublishDeploymentStarted(appID, user)

	spanCtx = context.WithValue(spanCtx, deploymentSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, deploymentTimerKey{}, NewTimer())

	return spanCtx
}

type deploymentSpanKey struct{}
type deploymentTimerKey struct{}

// EndDeploymentContext completes the deployment context, recording metrics and events.
func EndDeploymentContext(ctx context.Context, appID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(deploymentSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(deploymentTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordDeploymentCompleted(status, duration.Seconds())

	if err != nil {
		_ = tel.Events.PublishDeploymentFailed(appID, err.Error())
	} else {
		_ = tel.Events.PublishDeploymentCompleted(appID, status, duration)
	}
}

// WithComponentContext creates a context enriched with component-specific telemetry,
// covering one component's load/execute sequence onto an assigned device.
func WithComponentContext(ctx context.Context, appID, componentID, deviceID string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartComponentSpan(ctx, componentID, deviceID)

	logger := tel.Logger.
		WithAppID(appID).
		WithComponentID(componentID).
		WithDeviceID(deviceID)
	spanCtx = logger.WithContext(spanCtx)

	_ = tel.Events.PublishComponentLoadStarted(appID, componentID, deviceID)

	spanCtx = context.WithValue(spanCtx, componentSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, componentTimerKey{}, NewTimer())

	return spanCtx
}

type componentSpanKey struct{}
type componentTimerKey struct{}

// EndComponentContext completes the component context, recording metrics and events.
func EndComponentContext(ctx context.Context, appID, componentID, deviceID string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(componentSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(componentTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	if err != nil {
		_ = tel.Events.PublishComponentLoadFailed(appID, componentID, deviceID, err.Error())
	} else {
		_ = tel.Events.PublishComponentLoaded(appID, componentID, deviceID, duration)
	}
}

// RecordDeviceOperation records a single device RPC (load/unload/execute) with
// metrics and tracing, scoped to one placement attempt.
func RecordDeviceOperation(ctx context.Context, deviceID, operation string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartDeviceSpan(ctx, deviceID, operation)
		defer span.End()
	}

	timer := NewTimer()
	err := fn()

	if tel != nil {
		tel.Metrics.RecordPlacementAttempt(operation, placementStatus(err))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
	}
	_ = timer

	return err
}

func placementStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}
