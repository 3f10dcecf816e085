package observability

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func collectCounter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsCountEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	d := hooks.NewDispatcher(nil)
	m.Bind(d)

	f := risk.NewFlag(dimension.Safety, risk.LevelHigh, "unsafe output", "Safety Review Board", t0)
	d.Notify(hooks.Event{Name: hooks.EventUseCaseRegistered, UseCase: "demo"})
	d.Notify(hooks.Event{Name: hooks.EventFlagAdded, UseCase: "demo", Flag: f})
	d.Notify(hooks.Event{Name: hooks.EventFlagAdded, UseCase: "demo", Flag: f})
	d.Notify(hooks.Event{Name: hooks.EventFlagResolved, UseCase: "demo", Flag: f})
	d.Notify(hooks.Event{Name: hooks.EventEscalationApplied, UseCase: "demo", Count: 3})

	if got := collectCounter(t, reader, "caseguard.usecases.registered"); got != 1 {
		t.Fatalf("usecases counter = %d", got)
	}
	if got := collectCounter(t, reader, "caseguard.flags.raised"); got != 2 {
		t.Fatalf("flags counter = %d", got)
	}
	if got := collectCounter(t, reader, "caseguard.flags.transitions"); got != 1 {
		t.Fatalf("transitions counter = %d", got)
	}
	if got := collectCounter(t, reader, "caseguard.escalations.applied"); got != 3 {
		t.Fatalf("escalations counter = %d", got)
	}
}

func TestDashboardResetIsNotCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.OnEvent(hooks.Event{Name: hooks.EventDashboardReset}); err != nil {
		t.Fatal(err)
	}
	if got := collectCounter(t, reader, "caseguard.flags.transitions"); got != 0 {
		t.Fatalf("reset must not count as a transition, got %d", got)
	}
}
