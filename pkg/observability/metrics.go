// Package observability records governance activity as OpenTelemetry
// metrics. Metrics subscribes to the notify phase only; it can observe every
// committed mutation but never veto one.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/caseguard/caseguard/pkg/hooks"
)

// Metrics counts governance lifecycle events on an OpenTelemetry meter.
type Metrics struct {
	flagsRaised metric.Int64Counter
	transitions metric.Int64Counter
	escalations metric.Int64Counter
	useCases    metric.Int64Counter
}

// NewMetrics creates the counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.flagsRaised, err = meter.Int64Counter("caseguard.flags.raised",
		metric.WithDescription("Risk flags raised against use cases"),
		metric.WithUnit("{flag}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flag counter: %w", err)
	}

	m.transitions, err = meter.Int64Counter("caseguard.flags.transitions",
		metric.WithDescription("Committed flag status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transition counter: %w", err)
	}

	m.escalations, err = meter.Int64Counter("caseguard.escalations.applied",
		metric.WithDescription("Escalation rules applied to overdue flags"),
		metric.WithUnit("{escalation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create escalation counter: %w", err)
	}

	m.useCases, err = meter.Int64Counter("caseguard.usecases.registered",
		metric.WithDescription("Use case contexts registered on the dashboard"),
		metric.WithUnit("{usecase}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create use case counter: %w", err)
	}

	return m, nil
}

// Bind subscribes the metrics hook to every countable event.
func (m *Metrics) Bind(d *hooks.Dispatcher) {
	for _, name := range []hooks.EventName{
		hooks.EventUseCaseRegistered,
		hooks.EventFlagAdded,
		hooks.EventFlagResolved,
		hooks.EventFlagAccepted,
		hooks.EventFlagReviewStarted,
		hooks.EventEscalationApplied,
	} {
		d.Subscribe(name, m)
	}
}

// OnEvent implements hooks.Hook.
func (m *Metrics) OnEvent(e hooks.Event) error {
	ctx := context.Background()
	attrs := []attribute.KeyValue{attribute.String("event", string(e.Name))}
	if e.Flag != nil {
		attrs = append(attrs,
			attribute.String("dimension", e.Flag.Dimension.Key),
			attribute.String("level", e.Flag.Level.String()),
		)
	}
	opt := metric.WithAttributes(attrs...)

	switch e.Name {
	case hooks.EventUseCaseRegistered:
		m.useCases.Add(ctx, 1, opt)
	case hooks.EventFlagAdded:
		m.flagsRaised.Add(ctx, 1, opt)
	case hooks.EventEscalationApplied:
		n := int64(e.Count)
		if n == 0 {
			n = 1
		}
		m.escalations.Add(ctx, n, opt)
	case hooks.EventFlagResolved, hooks.EventFlagAccepted, hooks.EventFlagReviewStarted:
		m.transitions.Add(ctx, 1, opt)
	}
	return nil
}
