package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/redhawk/appfactory/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup for the daemon.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "appfactoryd"
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("appfactoryd started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.NewComponentLogger("deploy")

	logger = logger.WithFields(map[string]interface{}{
		"app_id":       "waveform-app-1",
		"component_id": "rx_digitizer_1",
	})

	logger.Debug("starting placement")
	logger.Info("component placed")
	logger.Warn("device busy, retrying with next candidate")

	err := fmt.Errorf("ssh dial timeout")
	logger.WithError(err).Error("failed to connect to device")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ctx, span := tel.Tracer.Start(ctx, "transaction.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("app.id", "waveform-app-1"),
		attribute.Int("components", 5),
	)

	span.AddEvent("placement.complete")

	ctx, childSpan := tel.Tracer.Start(ctx, "component.load_execute")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("component.id", "rx_digitizer_1"),
		attribute.String("operation", "execute"),
	)

	time.Sleep(10 * time.Millisecond)

	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Metrics.RecordDeploymentStarted("waveform-app-1")

	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordDeploymentCompleted("success", duration.Seconds())
	tel.Metrics.RecordPlacementAttempt("single", "succeeded")
	tel.Metrics.SetAllocationBalance(3)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	tel.Events.PublishDeploymentStarted("waveform-app-1", "operator@example.com")
	tel.Events.PublishComponentLoadStarted("waveform-app-1", "rx_digitizer_1", "dev-gpp-1")
	tel.Events.PublishComponentLoaded("waveform-app-1", "rx_digitizer_1", "dev-gpp-1", 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_deploymentInstrumentation demonstrates instrumenting a complete deployment.
func Example_deploymentInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	appID := "waveform-app-1"
	ctx = telemetry.WithDeploymentContext(ctx, appID, "admin@example.com")

	deployComponent(ctx, appID)

	telemetry.EndDeploymentContext(ctx, appID, "success", nil)

	fmt.Println("Deployment instrumentation complete")
	// Output: Deployment instrumentation complete
}

func deployComponent(ctx context.Context, appID string) {
	componentID := "rx_digitizer_1"
	deviceID := "dev-gpp-1"

	ctx = telemetry.WithComponentContext(ctx, appID, componentID, deviceID)

	logger := telemetry.FromContext(ctx)
	logger.Info("loading component onto device")

	time.Sleep(10 * time.Millisecond)

	telemetry.EndComponentContext(ctx, appID, componentID, deviceID, nil)
}

// Example_deviceInstrumentation demonstrates instrumenting device RPCs.
func Example_deviceInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	err := telemetry.RecordDeviceOperation(ctx, "dev-gpp-1", "load", func() error {
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Device operation completed successfully")
	}

	// Output: Device operation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "load_assembly_descriptor",
		attribute.String("descriptor.path", "/etc/appfactory/waveform.sad.cue"),
	)
	defer ic.End(nil)

	ic.Logger.Info("parsing assembly descriptor")

	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("assembly descriptor parsed")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Device event: %s\n", event.Message)
	}, telemetry.FilterByType(telemetry.EventTypeDeviceUsageChanged))

	tel.Events.PublishDeploymentStarted("waveform-app-1", "operator") // Info - filtered by level filter
	tel.Events.PublishDeviceUsageChanged("dev-gpp-1", "idle", "busy") // Info - passes type filter
	tel.Events.PublishDeploymentFailed("waveform-app-1", "no capacity") // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	cfg.ServiceName = "appfactoryd"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "appfactory"

	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	cfg.Tracing.Exporter = "none"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ctx, span := tel.Tracer.Start(ctx, "load_soft_package")
	defer span.End()

	err := fmt.Errorf("connection timeout")

	if err != nil {
		telemetry.RecordError(span, err)
		tel.Metrics.RecordPlacementAttempt("single", "failed")

		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("operation failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry across packages.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr"
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	deployLogger := tel.Logger.NewComponentLogger("deploy")
	allocatorLogger := tel.Logger.NewComponentLogger("allocator")
	domainLogger := tel.Logger.NewComponentLogger("domain")

	deployLogger.Info("transaction started")
	allocatorLogger.Info("evaluating candidate devices")
	domainLogger.Info("registering application")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
