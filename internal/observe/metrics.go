// Package observe exposes OpenTelemetry metrics for pipeline runs.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped
// through the Prometheus bridge set up by [InitProvider]. A nil *Metrics is
// valid and records nothing, so components can take one unconditionally.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kikiluvv/killreel"

// Artifact outcomes
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the instruments for one process
type Metrics struct {
	// Samples counts frames that went through recognition.
	Samples metric.Int64Counter

	// OCRDuration tracks per-sample recognition latency.
	OCRDuration metric.Float64Histogram

	// Events counts accepted events. Attribute: keyword.
	Events metric.Int64Counter

	// Artifacts counts produced or failed files. Attributes: stage, status.
	Artifacts metric.Int64Counter

	// StageDuration tracks wall time per pipeline stage. Attribute: stage.
	StageDuration metric.Float64Histogram
}

var ocrBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

var stageBuckets = []float64{
	0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800,
}

// NewMetrics creates the instruments on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Samples, err = m.Int64Counter("killreel.samples",
		metric.WithDescription("Frames sampled and sent to text recognition."),
	); err != nil {
		return nil, err
	}
	if met.OCRDuration, err = m.Float64Histogram("killreel.ocr.duration",
		metric.WithDescription("Latency of one text recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(ocrBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Events, err = m.Int64Counter("killreel.events",
		metric.WithDescription("Accepted kill events by keyword."),
	); err != nil {
		return nil, err
	}
	if met.Artifacts, err = m.Int64Counter("killreel.artifacts",
		metric.WithDescription("Output files by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("killreel.stage.duration",
		metric.WithDescription("Wall time of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordSample records one recognition and how long it took
func (m *Metrics) RecordSample(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.Samples.Add(ctx, 1)
	m.OCRDuration.Record(ctx, d.Seconds())
}

// RecordEvent counts one accepted event
func (m *Metrics) RecordEvent(ctx context.Context, keyword string) {
	if m == nil {
		return
	}
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("keyword", keyword)))
}

// RecordArtifacts counts ok and failed outputs of a stage
func (m *Metrics) RecordArtifacts(ctx context.Context, stage string, ok, failed int) {
	if m == nil {
		return
	}
	if ok > 0 {
		m.Artifacts.Add(ctx, int64(ok), metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", StatusOK),
		))
	}
	if failed > 0 {
		m.Artifacts.Add(ctx, int64(failed), metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", StatusError),
		))
	}
}

// ObserveStage records the time since start against stage
func (m *Metrics) ObserveStage(ctx context.Context, stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}
