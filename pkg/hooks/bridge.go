package hooks

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/caseguard/caseguard/pkg/risk"
)

// Sink receives events forwarded by a NotificationBridge.
type Sink func(e Event) error

// BridgeOption configures a NotificationBridge.
type BridgeOption func(*NotificationBridge)

// WithEventFilter restricts forwarding to the named events.
func WithEventFilter(names ...EventName) BridgeOption {
	return func(b *NotificationBridge) {
		b.names = make(map[EventName]bool, len(names))
		for _, n := range names {
			b.names[n] = true
		}
	}
}

// WithMinLevel drops events whose flag level is below the threshold.
// Events without a flag payload are unaffected.
func WithMinLevel(min risk.Level) BridgeOption {
	return func(b *NotificationBridge) {
		b.minLevel = min
		b.levelFiltered = true
	}
}

// WithRateLimit caps forwarding; events over the limit are dropped, not
// queued. The bridge is purely observational and never blocks dispatch.
func WithRateLimit(limit rate.Limit, burst int) BridgeOption {
	return func(b *NotificationBridge) {
		b.limiter = rate.NewLimiter(limit, burst)
	}
}

// NotificationBridge forwards a filtered subset of events to an external
// sink (webhook, SIEM, messaging). Purely observational: it never vetoes,
// and a failing sink only surfaces through the dispatcher's error isolation.
type NotificationBridge struct {
	sink          Sink
	names         map[EventName]bool
	minLevel      risk.Level
	levelFiltered bool
	limiter       *rate.Limiter

	mu      sync.Mutex
	sent    int
	dropped int
}

// NewNotificationBridge creates a bridge around a sink.
func NewNotificationBridge(sink Sink, opts ...BridgeOption) *NotificationBridge {
	b := &NotificationBridge{sink: sink}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnEvent implements Hook.
func (b *NotificationBridge) OnEvent(e Event) error {
	if b.names != nil && !b.names[e.Name] {
		return nil
	}
	if b.levelFiltered && e.Flag != nil && e.Flag.Level < b.minLevel {
		return nil
	}
	if b.limiter != nil && !b.limiter.Allow() {
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		return nil
	}
	if err := b.sink(e); err != nil {
		return err
	}
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
	return nil
}

// SentCount returns how many events were forwarded.
func (b *NotificationBridge) SentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}

// DroppedCount returns how many events were dropped by the rate limiter.
func (b *NotificationBridge) DroppedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
