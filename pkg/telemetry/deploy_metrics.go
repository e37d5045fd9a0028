package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeployMetrics provides Prometheus metrics for the Application Factory
// Core: deployment, placement-attempt and allocation-balance collectors
// registered on a private registry.
type DeployMetrics struct {
	config MetricsConfig

	deploymentsStarted    *prometheus.CounterVec
	deploymentsCompleted  *prometheus.CounterVec
	deploymentDuration    *prometheus.HistogramVec
	placementAttempts     *prometheus.CounterVec
	allocationBalance     prometheus.Gauge

	registry *prometheus.Registry
}

// NewDeployMetrics creates a new deployment metrics collector.
func NewDeployMetrics(cfg MetricsConfig) (*DeployMetrics, error) {
	if !cfg.Enabled {
		return &DeployMetrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &DeployMetrics{
		config:   cfg,
		registry: registry,

		deploymentsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_started_total",
				Help:      "Total number of deployment transactions started",
			},
			[]string{"app"},
		),
		deploymentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_completed_total",
				Help:      "Total number of deployment transactions completed",
			},
			[]string{"status"},
		),
		deploymentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deployment_duration_seconds",
				Help:      "Duration of a deployment transaction in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		placementAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placement_attempts_total",
				Help:      "Total number of device placement attempts",
			},
			[]string{"phase", "status"},
		),
		allocationBalance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "allocation_balance",
				Help:      "Net outstanding allocation IDs held across active deployments",
			},
		),
	}

	registry.MustRegister(
		m.deploymentsStarted,
		m.deploymentsCompleted,
		m.deploymentDuration,
		m.placementAttempts,
		m.allocationBalance,
	)

	return m, nil
}

// RecordDeploymentStarted increments the started counter for appName.
func (m *DeployMetrics) RecordDeploymentStarted(appName string) {
	if m.deploymentsStarted == nil {
		return
	}
	m.deploymentsStarted.WithLabelValues(appName).Inc()
}

// RecordDeploymentCompleted increments the completed counter and observes
// duration for the given status ("success" or "rolled_back").
func (m *DeployMetrics) RecordDeploymentCompleted(status string, duration float64) {
	if m.deploymentsCompleted == nil {
		return
	}
	m.deploymentsCompleted.WithLabelValues(status).Inc()
	m.deploymentDuration.WithLabelValues(status).Observe(duration)
}

// RecordPlacementAttempt increments the placement attempt counter for one
// phase label and outcome. RecordDeviceOperation is the only caller in the
// package and passes the device operation name (e.g. "load") as the phase.
func (m *DeployMetrics) RecordPlacementAttempt(phase, status string) {
	if m.placementAttempts == nil {
		return
	}
	m.placementAttempts.WithLabelValues(phase, status).Inc()
}

// SetAllocationBalance reports the current net outstanding allocation
// count across active deployments.
func (m *DeployMetrics) SetAllocationBalance(count float64) {
	if m.allocationBalance == nil {
		return
	}
	m.allocationBalance.Set(count)
}

// Handler exposes the deployment metrics registry over HTTP.
func (m *DeployMetrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts an HTTP server exposing the metrics registry,
// returning immediately; the server runs until the process exits.
func (m *DeployMetrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
