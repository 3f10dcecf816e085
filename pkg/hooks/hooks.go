// Package hooks publishes named governance lifecycle events to subscribed
// observers and gates.
//
// Dispatch is two-phase: gates run before a mutation is committed and may
// veto it; notify-phase hooks run after the mutation and can never abort it.
// The phase is a property of the subscription, not an accident of call order.
package hooks

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/caseguard/caseguard/pkg/risk"
)

// EventName identifies one lifecycle event. The set is closed; it is the
// contract external observers (including the presentation layer) rely on.
type EventName string

const (
	EventUseCaseRegistered EventName = "use_case_registered"
	EventFlagAdded         EventName = "flag_added"
	EventFlagResolved      EventName = "flag_resolved"
	EventFlagAccepted      EventName = "flag_accepted"
	EventFlagReviewStarted EventName = "flag_review_started"
	EventEscalationApplied EventName = "escalation_applied"
	EventDashboardReset    EventName = "dashboard_reset"
)

// Event carries the payload for one lifecycle event. Fields are populated
// per the event catalogue; absent fields hold zero values.
//
// For gated events the Event describes the proposed mutation: Flag is the
// pre-mutation flag and Note the note the caller supplied, so a gate can
// veto before anything changes.
type Event struct {
	Name      EventName
	UseCase   string
	FlagIndex int
	Flag      *risk.Flag
	Note      string
	Count     int
	Timestamp time.Time
	Metadata  map[string]any
}

// VetoError reports that a compliance gate rejected a gated operation.
// It is surfaced to the caller that attempted the mutation, never swallowed.
type VetoError struct {
	Gate     string
	Event    EventName
	Criteria []string
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("gate %q vetoed %s: failed criteria [%s]",
		e.Gate, e.Event, strings.Join(e.Criteria, ", "))
}

// Hook receives notify-phase events. Errors are isolated and logged; a
// misbehaving observer cannot break a governance state change.
type Hook interface {
	OnEvent(e Event) error
}

// Gate receives gate-phase events before the mutation commits. A returned
// error (conventionally a *VetoError) aborts the triggering operation.
type Gate interface {
	Check(e Event) error
}

type gateSub struct {
	name EventName
	gate Gate
}

type hookSub struct {
	name EventName
	hook Hook
}

// Dispatcher is an explicitly owned subscriber registry. Construct one per
// engine; there is no ambient process-wide instance. Dispatch is synchronous
// on the caller's goroutine and reentrant-unsafe: a hook must not emit the
// event it is currently handling.
type Dispatcher struct {
	mu     sync.Mutex
	gates  []gateSub
	hooks  []hookSub
	logger *slog.Logger
	clock  func() time.Time
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// Subscribe registers a notify-phase hook for an event.
func (d *Dispatcher) Subscribe(name EventName, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hookSub{name: name, hook: h})
}

// SubscribeGate registers a gate for an event's pre-mutation phase.
func (d *Dispatcher) SubscribeGate(name EventName, g Gate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gates = append(d.gates, gateSub{name: name, gate: g})
}

// Unsubscribe removes a notify-phase hook; a nil hook removes every
// subscriber for the event.
func (d *Dispatcher) Unsubscribe(name EventName, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.hooks[:0]
	for _, s := range d.hooks {
		if s.name == name && (h == nil || s.hook == h) {
			continue
		}
		kept = append(kept, s)
	}
	d.hooks = kept
}

// UnsubscribeGate removes a gate; a nil gate removes every gate for the event.
func (d *Dispatcher) UnsubscribeGate(name EventName, g Gate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.gates[:0]
	for _, s := range d.gates {
		if s.name == name && (g == nil || s.gate == g) {
			continue
		}
		kept = append(kept, s)
	}
	d.gates = kept
}

// CheckGates runs every gate subscribed to the event, in subscription order,
// before the caller commits the mutation. The first veto aborts and is
// returned; the caller must not apply the mutation.
func (d *Dispatcher) CheckGates(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.clock()
	}
	for _, s := range d.snapshotGates() {
		if s.name != e.Name {
			continue
		}
		if err := s.gate.Check(e); err != nil {
			return err
		}
	}
	return nil
}

// Notify runs every notify-phase hook subscribed to the event, in
// subscription order, after the mutation is committed. Hook errors and
// panics are isolated and logged; they never propagate.
func (d *Dispatcher) Notify(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.clock()
	}
	for _, s := range d.snapshotHooks() {
		if s.name != e.Name {
			continue
		}
		d.invoke(s.hook, e)
	}
}

func (d *Dispatcher) invoke(h Hook, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("governance hook panicked", "event", string(e.Name), "panic", r)
		}
	}()
	if err := h.OnEvent(e); err != nil {
		d.logger.Error("governance hook failed", "event", string(e.Name), "error", err)
	}
}

func (d *Dispatcher) snapshotGates() []gateSub {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gateSub, len(d.gates))
	copy(out, d.gates)
	return out
}

func (d *Dispatcher) snapshotHooks() []hookSub {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]hookSub, len(d.hooks))
	copy(out, d.hooks)
	return out
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(e Event) error

// OnEvent implements Hook.
func (f HookFunc) OnEvent(e Event) error { return f(e) }
