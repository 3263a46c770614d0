package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authflow"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authflow.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authflow.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authflow.MetricsSnapshot{
		Counters:   make(map[authflow.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authflow.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authflow-test")

	src := &fakeSource{
		snapshot: authflow.MetricsSnapshot{
			Counters: map[authflow.MetricID]uint64{
				authflow.MetricLoginSuccess: 3,
			},
			Histograms: map[authflow.MetricID][]uint64{
				authflow.MetricOperationLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "authflow_login_success_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
				t.Fatalf("unexpected login counter data: %+v", m.Data)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("authflow_login_success_total not collected")
	}
}

func TestExporterPublishesHistogramPerBound(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authflow-test")

	src := &fakeSource{
		snapshot: authflow.MetricsSnapshot{
			Counters: map[authflow.MetricID]uint64{},
			Histograms: map[authflow.MetricID][]uint64{
				authflow.MetricOperationLatency: {2, 0, 1, 0, 0, 0, 0, 1},
			},
		},
	}
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	byBound := map[string]int64{}
	var count int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "authflow_operation_latency_seconds_bucket":
				gauge, ok := m.Data.(metricdata.Gauge[int64])
				if !ok {
					t.Fatalf("unexpected bucket data: %T", m.Data)
				}
				for _, dp := range gauge.DataPoints {
					le, _ := dp.Attributes.Value(BucketAttribute)
					byBound[le.AsString()] = dp.Value
				}
			case "authflow_operation_latency_seconds_count":
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok || len(sum.DataPoints) != 1 {
					t.Fatalf("unexpected count data: %+v", m.Data)
				}
				count = sum.DataPoints[0].Value
			}
		}
	}

	if len(byBound) != 8 {
		t.Fatalf("expected 8 bucket series, got %v", byBound)
	}
	if byBound["0.005"] != 2 || byBound["0.025"] != 3 || byBound["0.5"] != 3 || byBound["+Inf"] != 4 {
		t.Fatalf("unexpected cumulative buckets %v", byBound)
	}
	if count != 4 {
		t.Fatalf("expected count 4, got %d", count)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authflow-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("authflow-test")

	src := &fakeSource{
		snapshot: authflow.MetricsSnapshot{
			Counters: map[authflow.MetricID]uint64{
				authflow.MetricLoginSuccess: 1,
			},
			Histograms: map[authflow.MetricID][]uint64{
				authflow.MetricOperationLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authflow.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
