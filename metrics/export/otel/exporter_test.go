package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goGate "github.com/MrEthical07/goGate"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goGate.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goGate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goGate.MetricsSnapshot{
		Counters:   make(map[goGate.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goGate.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestExporterPublishesLabeledCounters(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters: map[goGate.MetricID]uint64{
				goGate.MetricLoginSuccess: 3,
				goGate.MetricLoginFailure: 1,
			},
			Histograms: map[goGate.MetricID][]uint64{
				goGate.MetricGateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporter(provider.Meter("gogate-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	m, ok := findMetric(rm, "gogate_logins_total")
	if !ok {
		t.Fatal("gogate_logins_total not collected")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", m.Data)
	}
	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("result"))
		got[v.AsString()] = dp.Value
	}
	if got["success"] != 3 || got["failure"] != 1 {
		t.Fatalf("unexpected login series %v", got)
	}

	if _, ok := findMetric(rm, "gogate_gate_latency_seconds_bucket_le_inf"); !ok {
		t.Fatal("latency buckets not collected")
	}
	if _, ok := findMetric(rm, "gogate_audit_dropped_total"); !ok {
		t.Fatal("audit dropped counter not collected")
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newMeter()

	if _, err := NewExporter(provider.Meter("gogate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: goGate.MetricsSnapshot{
			Counters:   map[goGate.MetricID]uint64{goGate.MetricLoginSuccess: 1},
			Histograms: map[goGate.MetricID][]uint64{goGate.MetricGateLatency: {1}},
		},
	}

	exp, err := NewExporter(provider.Meter("gogate-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goGate.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
