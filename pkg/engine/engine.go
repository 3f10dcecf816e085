// Package engine wires the governance components into one explicitly owned
// object: dimension registry, default routing table, hook dispatcher,
// escalation policy, and portfolio dashboard. There is no ambient global
// state; construct an Engine at startup and pass it to whatever boundary
// layer needs it.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caseguard/caseguard/pkg/dashboard"
	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/escalation"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/profile"
	"github.com/caseguard/caseguard/pkg/routing"
	"github.com/caseguard/caseguard/pkg/usecase"
)

// Config selects the engine's schema version and optional security presets.
type Config struct {
	// SchemaVersion picks the built-in dimension set. Defaults to SchemaV2.
	SchemaVersion dimension.SchemaVersion
	// Presets are security preset names applied at construction.
	Presets []string
	// PresetRegistry resolves preset names; defaults to the built-in packs.
	PresetRegistry *profile.Registry
	// EscalationRules overrides the default escalation ladder.
	EscalationRules []escalation.Rule
	// MatchMode selects the multi-rule resolution strategy.
	MatchMode escalation.MatchMode
	// Logger receives isolated hook failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine owns the shared governance state for one process.
type Engine struct {
	registry   *dimension.Registry
	routing    *routing.Table
	dispatcher *hooks.Dispatcher
	policy     *escalation.Policy
	dashboard  *dashboard.Dashboard
	clock      func() time.Time
	sealed     bool
}

// New constructs an engine. Presets merge into the default dimension set and
// routing table before any use case context exists.
func New(cfg Config) (*Engine, error) {
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = dimension.SchemaV2
	}
	e := &Engine{
		registry: dimension.NewRegistry(cfg.SchemaVersion),
		routing:  routing.DefaultTable(cfg.SchemaVersion),
		clock:    time.Now,
	}
	e.dispatcher = hooks.NewDispatcher(cfg.Logger)
	e.dashboard = dashboard.New(e.dispatcher)

	if len(cfg.Presets) > 0 {
		presets := cfg.PresetRegistry
		if presets == nil {
			presets = profile.NewRegistry()
		}
		prof, err := presets.Build(cfg.Presets...)
		if err != nil {
			return nil, err
		}
		if err := e.ApplyProfile(prof); err != nil {
			return nil, err
		}
	}

	opts := []escalation.Option{escalation.WithMatchMode(cfg.MatchMode)}
	if cfg.EscalationRules != nil {
		opts = append(opts, escalation.WithRules(cfg.EscalationRules))
	}
	e.policy = escalation.NewPolicy(e.routing, opts...)
	return e, nil
}

// WithClock overrides the clock for deterministic testing. New use cases
// inherit it.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	e.dispatcher.WithClock(clock)
	return e
}

// ApplyProfile merges a security profile's dimensions and routing entries
// into the engine defaults. Profiles only apply before the first use case is
// constructed, so every context sees the same dimension set and routes.
func (e *Engine) ApplyProfile(p profile.Profile) error {
	if e.sealed {
		return fmt.Errorf("cannot apply profile %v: use case contexts already constructed", p.Presets)
	}
	for _, d := range p.Dimensions {
		if err := e.registry.Register(d); err != nil {
			return err
		}
	}
	e.routing.Merge(p.Routing)
	return nil
}

// NewUseCase constructs a context bound to the engine's routing table and
// dispatcher, and registers it on the dashboard.
func (e *Engine) NewUseCase(name string, opts ...usecase.Option) *usecase.Context {
	e.sealed = true
	opts = append([]usecase.Option{usecase.WithClock(e.clock)}, opts...)
	ctx := usecase.New(name, e.routing, e.dispatcher, opts...)
	e.dashboard.Register(ctx)
	return ctx
}

// RunEscalations applies the escalation policy to every registered context
// and returns all results.
func (e *Engine) RunEscalations(now time.Time) []escalation.Result {
	var all []escalation.Result
	for _, ctx := range e.dashboard.UseCases() {
		all = append(all, e.policy.ApplyEscalations(ctx, now)...)
	}
	return all
}

// Dimensions returns the dimension registry.
func (e *Engine) Dimensions() *dimension.Registry { return e.registry }

// Routing returns the default routing table.
func (e *Engine) Routing() *routing.Table { return e.routing }

// Hooks returns the event dispatcher.
func (e *Engine) Hooks() *hooks.Dispatcher { return e.dispatcher }

// Escalation returns the escalation policy.
func (e *Engine) Escalation() *escalation.Policy { return e.policy }

// Dashboard returns the portfolio dashboard.
func (e *Engine) Dashboard() *dashboard.Dashboard { return e.dashboard }
