// Package observe provides observability primitives for audioscribe:
// OpenTelemetry metrics, tracing helpers, and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all audioscribe
// metrics.
const meterName = "github.com/MrWong99/audioscribe"

// Metrics holds all OpenTelemetry metric instruments for the service.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// JobDuration tracks end-to-end job processing time inside the worker
	// (swap + inference). Use with attribute.String("status", ...)
	JobDuration metric.Float64Histogram

	// SwapDuration tracks model swap latency. Use with
	// attribute.String("status", "ok"|"aborted"|"restored"|"unrecoverable")
	SwapDuration metric.Float64Histogram

	// Jobs counts processed jobs by status.
	Jobs metric.Int64Counter

	// Swaps counts model swap attempts by status.
	Swaps metric.Int64Counter

	// QueueDepth tracks the number of jobs waiting in the admission queue.
	QueueDepth metric.Int64UpDownCounter
}

// jobLatencyBuckets defines histogram bucket boundaries (in seconds) for
// inference work, which ranges from sub-second clips to multi-minute
// podcasts with a cold model load in front.
var jobLatencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// httpLatencyBuckets covers the HTTP surface, where most requests are
// either instant (listings, health) or dominated by a queued job.
var httpLatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30, 120, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.HTTPRequestDuration, err = m.Float64Histogram("audioscribe.http.duration",
		metric.WithDescription("Latency of HTTP request processing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.JobDuration, err = m.Float64Histogram("audioscribe.job.duration",
		metric.WithDescription("End-to-end job processing latency in the worker."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SwapDuration, err = m.Float64Histogram("audioscribe.swap.duration",
		metric.WithDescription("Model swap latency (release + load)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(jobLatencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Jobs, err = m.Int64Counter("audioscribe.jobs",
		metric.WithDescription("Total processed jobs by status."),
	); err != nil {
		return nil, err
	}
	if met.Swaps, err = m.Int64Counter("audioscribe.swaps",
		metric.WithDescription("Total model swap attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("audioscribe.queue.depth",
		metric.WithDescription("Jobs currently waiting in the admission queue."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordJob records one processed job with its terminal status and
// worker-side duration.
func (m *Metrics) RecordJob(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Jobs.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSwap records one model swap attempt with its outcome.
func (m *Metrics) RecordSwap(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Swaps.Add(ctx, 1, attrs)
	m.SwapDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordQueueDepth adjusts the queue depth gauge by delta.
func (m *Metrics) RecordQueueDepth(ctx context.Context, delta int64) {
	m.QueueDepth.Add(ctx, delta)
}
