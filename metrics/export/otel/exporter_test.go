package otel

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	sessionkit "github.com/mindwell-app/sessionkit"
)

type stubSource struct {
	snapshot sessionkit.MetricsSnapshot
	dropped  uint64
}

func (s *stubSource) MetricsSnapshot() sessionkit.MetricsSnapshot { return s.snapshot }
func (s *stubSource) EventsDropped() uint64                       { return s.dropped }

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("sessionkit-test")

	source := &stubSource{
		snapshot: sessionkit.MetricsSnapshot{Counters: map[sessionkit.MetricID]uint64{
			sessionkit.MetricLoginSuccess: 3,
			sessionkit.MetricRoleChanged:  1,
		}},
		dropped: 2,
	}

	exporter, err := NewExporter(meter, source)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exporter.Close(); err != nil {
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

	// Every defined counter plus the dropped-events counter.
	want := len(sessionkit.MetricDefs) + 1
	if got := len(rm.ScopeMetrics[0].Metrics); got != want {
		t.Fatalf("collected %d instruments, want %d", got, want)
	}

	var loginValue, droppedValue int64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) == 0 {
			continue
		}
		switch m.Name {
		case "sessionkit_login_success_total":
			loginValue = sum.DataPoints[0].Value
		case "sessionkit_events_dropped_total":
			droppedValue = sum.DataPoints[0].Value
		}
	}
	if loginValue != 3 {
		t.Fatalf("login counter = %d, want 3", loginValue)
	}
	if droppedValue != 2 {
		t.Fatalf("dropped counter = %d, want 2", droppedValue)
	}
}

func TestExporterRejectsNilMeter(t *testing.T) {
	if _, err := NewExporter(nil, &stubSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("sessionkit-test")

	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestCloseIsSafeOnNilExporter(t *testing.T) {
	var exporter *Exporter
	if err := exporter.Close(); err != nil {
		t.Fatalf("nil Close returned %v", err)
	}
}
