// Package observability provides application metrics over the OpenTelemetry
// metric API with a Prometheus exporter.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/provisioning take
// - Traffic: Request/job throughput
// - Errors: Rate of failures
// - Saturation: left to the launcher, which owns scheduling
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Job metrics (Traffic)
	JobsSubmitted metric.Int64Counter
	JobsDeleted   metric.Int64Counter

	// Provisioning metrics (Latency, Errors)
	ProvisionDuration metric.Float64Histogram
	ProvisionFailures metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("rest-server")
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter(
		"jobs_submitted_total",
		metric.WithDescription("Total number of jobs submitted to the launcher"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsDeleted, err = meter.Int64Counter(
		"jobs_deleted_total",
		metric.WithDescription("Total number of jobs deleted"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProvisionDuration, err = meter.Float64Histogram(
		"provision_duration_seconds",
		metric.WithDescription("Job context provisioning latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ProvisionFailures, err = meter.Int64Counter(
		"provision_failures_total",
		metric.WithDescription("Total number of failed required provisioning sub-tasks"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSecs float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", statusCode),
	)
	m.HTTPRequestDuration.Record(ctx, durationSecs, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordJobSubmitted records a successful job submission.
func (m *Metrics) RecordJobSubmitted(ctx context.Context, virtualCluster string) {
	m.JobsSubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("virtual_cluster", virtualCluster),
	))
}

// RecordJobDeleted records a job deletion.
func (m *Metrics) RecordJobDeleted(ctx context.Context) {
	m.JobsDeleted.Add(ctx, 1)
}

// RecordProvision records one provisioning run.
func (m *Metrics) RecordProvision(ctx context.Context, durationSecs float64, failed bool) {
	m.ProvisionDuration.Record(ctx, durationSecs)
	if failed {
		m.ProvisionFailures.Add(ctx, 1)
	}
}
