package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecordSample(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSample(ctx, 40*time.Millisecond)
	m.RecordSample(ctx, 60*time.Millisecond)

	rm := collect(t, reader)

	samples := findMetric(rm, "killreel.samples")
	if samples == nil {
		t.Fatal("killreel.samples not found")
	}
	sum, ok := samples.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
		t.Errorf("unexpected samples data %+v", samples.Data)
	}

	dur := findMetric(rm, "killreel.ocr.duration")
	if dur == nil {
		t.Fatal("killreel.ocr.duration not found")
	}
	hist, ok := dur.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 2 {
		t.Errorf("unexpected histogram %+v", dur.Data)
	}
}

func TestRecordArtifacts(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordArtifacts(ctx, "export", 3, 1)
	m.RecordArtifacts(ctx, "merge", 0, 0)

	rm := collect(t, reader)
	met := findMetric(rm, "killreel.artifacts")
	if met == nil {
		t.Fatal("killreel.artifacts not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 2 {
		t.Fatalf("expected ok and error series, got %d", len(sum.DataPoints))
	}
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		switch status.AsString() {
		case StatusOK:
			if dp.Value != 3 {
				t.Errorf("ok = %d, want 3", dp.Value)
			}
		case StatusError:
			if dp.Value != 1 {
				t.Errorf("error = %d, want 1", dp.Value)
			}
		default:
			t.Errorf("unexpected status %q", status.AsString())
		}
	}
}

func TestRecordEventAndStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvent(ctx, "ENEMY DOWNED")
	m.ObserveStage(ctx, "scan", time.Now().Add(-2*time.Second))

	rm := collect(t, reader)
	if findMetric(rm, "killreel.events") == nil {
		t.Error("killreel.events not found")
	}
	if findMetric(rm, "killreel.stage.duration") == nil {
		t.Error("killreel.stage.duration not found")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordSample(ctx, time.Second)
	m.RecordEvent(ctx, "x")
	m.RecordArtifacts(ctx, "export", 1, 1)
	m.ObserveStage(ctx, "scan", time.Now())
}
