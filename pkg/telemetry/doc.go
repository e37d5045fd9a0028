// Package telemetry provides observability instrumentation for the Application
// Factory daemon.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring deployment transactions.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at daemon startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "appfactoryd"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("deploy")
//	logger = logger.WithAppID("waveform-app-1").WithComponentID("rx_digitizer_1")
//	logger.Info("placing component")
//	logger.WithError(err).Error("placement failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into the phases of a deployment transaction:
//
//	ctx, span := tel.Tracer.Start(ctx, "transaction.create")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("app.id", appID),
//	    attribute.String("operation", "create"),
//	)
//
//	span.AddEvent("placement.complete")
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track deployment behavior:
//
//	tel.Metrics.RecordDeploymentStarted(appID)
//	tel.Metrics.RecordDeploymentCompleted("success", duration.Seconds())
//	tel.Metrics.RecordPlacementAttempt("single", "succeeded")
//	tel.Metrics.SetAllocationBalance(outstanding)
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishDeploymentStarted(appID, user)
//	tel.Events.PublishComponentLoaded(appID, componentID, deviceID, duration)
//	tel.Events.PublishDeviceUsageChanged(deviceID, "idle", "busy")
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Event filters: FilterByLevel, FilterByType, FilterByAppID, FilterByDeviceID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	ic := telemetry.StartOperation(ctx, "load_assembly_descriptor",
//	    attribute.String("descriptor.path", path))
//	defer ic.End(err)
//
//	ctx = telemetry.WithDeploymentContext(ctx, appID, user)
//	defer telemetry.EndDeploymentContext(ctx, appID, status, err)
//
//	ctx = telemetry.WithComponentContext(ctx, appID, componentID, deviceID)
//	defer telemetry.EndComponentContext(ctx, appID, componentID, deviceID, err)
//
//	err := telemetry.RecordDeviceOperation(ctx, deviceID, "load", func() error {
//	    return device.Load(ctx, fm, path, codeType)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//  - "stdout": Print traces to stdout (development)
//  - "otlp": Export via OTLP/gRPC (production, works with collectors)
//  - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Security Considerations
//
//  - Never log sensitive data (credentials, keys, tokens)
//  - Use secure connections (TLS) for trace exporters in production
//  - Limit metrics endpoint access via network policies
package telemetry
