// Package dashboard aggregates many use case contexts for portfolio-level
// oversight: who is blocked, where the risk concentrates, and which
// reviewers are overloaded.
//
// The dashboard is a registry, not an owner: contexts may be mutated
// externally and every query reflects current state. Nothing is snapshotted.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/usecase"
)

// DimensionSummary aggregates one dimension across all registered contexts.
type DimensionSummary struct {
	Dimension        dimension.Dimension `json:"dimension"`
	TotalFlags       int                 `json:"total_flags"`
	OpenFlags        int                 `json:"open_flags"`
	BlockingFlags    int                 `json:"blocking_flags"`
	MaxLevel         risk.Level          `json:"max_level"`
	AffectedUseCases []string            `json:"affected_use_cases"`
}

// WorkItem is one (use case, flag) pair awaiting a reviewer's action.
type WorkItem struct {
	UseCase   string
	FlagIndex int
	Flag      *risk.Flag
}

// Dashboard registers use case contexts by unique name.
type Dashboard struct {
	contexts   map[string]*usecase.Context
	order      []string
	dispatcher *hooks.Dispatcher
}

// New creates an empty dashboard. dispatcher may be nil.
func New(dispatcher *hooks.Dispatcher) *Dashboard {
	return &Dashboard{
		contexts:   make(map[string]*usecase.Context),
		dispatcher: dispatcher,
	}
}

// Register adds or replaces a context by name and emits use_case_registered.
// A replaced context keeps its original registration position.
func (d *Dashboard) Register(ctx *usecase.Context) {
	if _, exists := d.contexts[ctx.Name]; !exists {
		d.order = append(d.order, ctx.Name)
	}
	d.contexts[ctx.Name] = ctx
	if d.dispatcher != nil {
		d.dispatcher.Notify(hooks.Event{
			Name:    hooks.EventUseCaseRegistered,
			UseCase: ctx.Name,
		})
	}
}

// Unregister removes a context by name, returning it or nil.
func (d *Dashboard) Unregister(name string) *usecase.Context {
	ctx, ok := d.contexts[name]
	if !ok {
		return nil
	}
	delete(d.contexts, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return ctx
}

// Get returns a registered context by name.
func (d *Dashboard) Get(name string) (*usecase.Context, bool) {
	ctx, ok := d.contexts[name]
	return ctx, ok
}

// UseCases returns all registered contexts in registration order.
func (d *Dashboard) UseCases() []*usecase.Context {
	out := make([]*usecase.Context, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.contexts[name])
	}
	return out
}

// BlockedUseCases returns the contexts currently blocked.
func (d *Dashboard) BlockedUseCases() []*usecase.Context {
	var out []*usecase.Context
	for _, ctx := range d.UseCases() {
		if ctx.IsBlocked() {
			out = append(out, ctx)
		}
	}
	return out
}

// ClearUseCases returns the contexts free to proceed.
func (d *Dashboard) ClearUseCases() []*usecase.Context {
	var out []*usecase.Context
	for _, ctx := range d.UseCases() {
		if !ctx.IsBlocked() {
			out = append(out, ctx)
		}
	}
	return out
}

// PortfolioRiskScores maps each use case name to its composite 0..1 score.
func (d *Dashboard) PortfolioRiskScores() map[string]float64 {
	out := make(map[string]float64, len(d.contexts))
	for name, ctx := range d.contexts {
		out[name] = ctx.CompositeScore()
	}
	return out
}

// DimensionScores maps each use case name to its per-dimension scores.
func (d *Dashboard) DimensionScores() map[string]map[string]int {
	out := make(map[string]map[string]int, len(d.contexts))
	for name, ctx := range d.contexts {
		out[name] = ctx.RiskScore()
	}
	return out
}

// AllDimensions returns every dimension flagged anywhere in the portfolio,
// in registration-then-insertion order.
func (d *Dashboard) AllDimensions() []dimension.Dimension {
	seen := make(map[string]bool)
	var out []dimension.Dimension
	for _, ctx := range d.UseCases() {
		for _, dim := range ctx.Dimensions() {
			if seen[dim.Key] {
				continue
			}
			seen[dim.Key] = true
			out = append(out, dim)
		}
	}
	return out
}

// Summarize scans all contexts' flags for one dimension in a single pass:
// counts, maximum level observed, and the affected use cases.
func (d *Dashboard) Summarize(dim dimension.Dimension) DimensionSummary {
	summary := DimensionSummary{Dimension: dim, MaxLevel: risk.LevelNone}
	for _, ctx := range d.UseCases() {
		affected := false
		for _, f := range ctx.Flags() {
			if f.Dimension.Key != dim.Key {
				continue
			}
			affected = true
			summary.TotalFlags++
			if !f.Status.Settled() {
				summary.OpenFlags++
			}
			if f.IsBlocking() {
				summary.BlockingFlags++
			}
			if f.Level > summary.MaxLevel {
				summary.MaxLevel = f.Level
			}
		}
		if affected {
			summary.AffectedUseCases = append(summary.AffectedUseCases, ctx.Name)
		}
	}
	return summary
}

// AllDimensionSummaries summarizes every flagged dimension.
func (d *Dashboard) AllDimensionSummaries() []DimensionSummary {
	dims := d.AllDimensions()
	out := make([]DimensionSummary, 0, len(dims))
	for _, dim := range dims {
		out = append(out, d.Summarize(dim))
	}
	return out
}

// ReviewerWorkload groups blocking-or-pending flags across all contexts by
// assigned reviewer, preserving (use case, flag) pairs in
// registration/insertion order. The unassigned bucket keys on "".
func (d *Dashboard) ReviewerWorkload() map[string][]WorkItem {
	workload := make(map[string][]WorkItem)
	for _, ctx := range d.UseCases() {
		for i, f := range ctx.Flags() {
			if !f.NeedsReview() && !f.IsBlocking() {
				continue
			}
			workload[f.Reviewer] = append(workload[f.Reviewer], WorkItem{
				UseCase:   ctx.Name,
				FlagIndex: i,
				Flag:      f,
			})
		}
	}
	return workload
}

// ByWorkflowPhase groups use cases by their phase label; contexts without a
// phase land under "(unassigned)".
func (d *Dashboard) ByWorkflowPhase() map[string][]*usecase.Context {
	phases := make(map[string][]*usecase.Context)
	for _, ctx := range d.UseCases() {
		phase := ctx.Phase
		if phase == "" {
			phase = "(unassigned)"
		}
		phases[phase] = append(phases[phase], ctx)
	}
	return phases
}

// Reset clears the registry and emits dashboard_reset.
func (d *Dashboard) Reset() {
	d.contexts = make(map[string]*usecase.Context)
	d.order = nil
	if d.dispatcher != nil {
		d.dispatcher.Notify(hooks.Event{Name: hooks.EventDashboardReset})
	}
}

// Summary renders a human-readable portfolio overview.
func (d *Dashboard) Summary() string {
	blocked := d.BlockedUseCases()
	var blocking, pending int
	for _, ctx := range d.UseCases() {
		blocking += len(ctx.Blockers())
		pending += len(ctx.PendingReviews())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Governance Dashboard: %d use case(s)\n", len(d.contexts))
	fmt.Fprintf(&b, "  Blocked: %d | Clear: %d\n", len(blocked), len(d.contexts)-len(blocked))
	fmt.Fprintf(&b, "  Blocking flags: %d | Pending review: %d\n", blocking, pending)
	for _, ctx := range blocked {
		fmt.Fprintf(&b, "  BLOCKED %s (%d blocker(s))\n", ctx.Name, len(ctx.Blockers()))
	}
	for _, ds := range d.AllDimensionSummaries() {
		fmt.Fprintf(&b, "  %s: %d open / %d total, max %s\n",
			ds.Dimension.Label, ds.OpenFlags, ds.TotalFlags, ds.MaxLevel)
	}
	return b.String()
}
