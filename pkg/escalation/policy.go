// Package escalation raises the severity of flags that sit unactioned past a
// time threshold. A policy is an ordered rule set evaluated against elapsed
// time; checking is advisory and read-only, applying mutates flag levels and
// reviewers through the controlled escalation path.
package escalation

import (
	"fmt"
	"time"

	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/usecase"
)

// Rule escalates a flag stuck at FromLevel for at least Threshold.
// EscalateTo equal to FromLevel means re-notify without a level change.
// When EscalateToReviewer is empty the flag is re-routed at the new level.
type Rule struct {
	FromLevel          risk.Level    `json:"from_level"`
	Threshold          time.Duration `json:"threshold"`
	EscalateTo         risk.Level    `json:"escalate_to"`
	EscalateToReviewer string        `json:"escalate_to_reviewer,omitempty"`
}

// Result records one flag/rule match.
type Result struct {
	UseCase   string
	FlagIndex int
	Flag      *risk.Flag
	Rule      Rule
	Age       time.Duration
	Message   string
}

// MatchMode decides which rule wins when several match the same flag.
type MatchMode int

const (
	// FirstMatch applies the first matching rule in policy order.
	FirstMatch MatchMode = iota
	// HighestSeverity applies the matching rule with the highest target
	// level; policy order breaks ties.
	HighestSeverity
)

// DefaultRules returns the shipped escalation ladder: LOW ages to MEDIUM in
// 7 days, MEDIUM to HIGH in 3, HIGH to CRITICAL in 1, and CRITICAL
// re-notifies leadership every 4 hours.
func DefaultRules() []Rule {
	return []Rule{
		{FromLevel: risk.LevelLow, Threshold: 7 * 24 * time.Hour, EscalateTo: risk.LevelMedium},
		{FromLevel: risk.LevelMedium, Threshold: 3 * 24 * time.Hour, EscalateTo: risk.LevelHigh},
		{FromLevel: risk.LevelHigh, Threshold: 24 * time.Hour, EscalateTo: risk.LevelCritical},
		{FromLevel: risk.LevelCritical, Threshold: 4 * time.Hour, EscalateTo: risk.LevelCritical, EscalateToReviewer: "C-Suite Escalation"},
	}
}

// Option configures a Policy.
type Option func(*Policy)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(p *Policy) { p.rules = rules }
}

// WithMatchMode selects the multi-match resolution strategy.
func WithMatchMode(m MatchMode) Option {
	return func(p *Policy) { p.mode = m }
}

// Policy is an ordered escalation rule set bound to a routing table for
// reviewer reassignment.
type Policy struct {
	rules   []Rule
	routing usecase.Router
	mode    MatchMode
}

// NewPolicy creates a policy with the default rules. routing may be nil, in
// which case escalated flags keep their reviewer unless a rule names one.
func NewPolicy(routing usecase.Router, opts ...Option) *Policy {
	p := &Policy{rules: DefaultRules(), routing: routing}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rules returns the policy's rules in evaluation order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// match finds the winning rule for a flag, or false when nothing applies.
// Only OPEN and IN_REVIEW flags are eligible, and a flag already escalated
// from its current level never re-matches.
func (p *Policy) match(f *risk.Flag, now time.Time) (Rule, time.Duration, bool) {
	if f.Status != risk.StatusOpen && f.Status != risk.StatusInReview {
		return Rule{}, 0, false
	}
	if f.EscalatedFrom(f.Level) {
		return Rule{}, 0, false
	}
	age := now.Sub(f.UpdatedAt)

	var winner Rule
	found := false
	for _, r := range p.rules {
		if r.FromLevel != f.Level || age < r.Threshold {
			continue
		}
		if !found {
			winner, found = r, true
			if p.mode == FirstMatch {
				break
			}
			continue
		}
		if p.mode == HighestSeverity && r.EscalateTo > winner.EscalateTo {
			winner = r
		}
	}
	return winner, age, found
}

// CheckUseCase evaluates every eligible flag against the policy without
// mutating anything. Results come back in flag insertion order.
func (p *Policy) CheckUseCase(ctx *usecase.Context, now time.Time) []Result {
	var results []Result
	for i, f := range ctx.Flags() {
		rule, age, ok := p.match(f, now)
		if !ok {
			continue
		}
		results = append(results, Result{
			UseCase:   ctx.Name,
			FlagIndex: i,
			Flag:      f,
			Rule:      rule,
			Age:       age,
			Message:   describeEscalation(f, rule, age),
		})
	}
	return results
}

// ApplyEscalations re-runs the matching and mutates each matched flag: the
// level moves to the rule's target (a re-notify rule leaves it unchanged),
// the reviewer is reassigned or re-routed at the new level, the flag is
// marked escalated-from-this-level, and UpdatedAt moves to now. Status is
// never touched. One escalation_applied event carries the match count.
func (p *Policy) ApplyEscalations(ctx *usecase.Context, now time.Time) []Result {
	results := p.CheckUseCase(ctx, now)
	for _, r := range results {
		reviewer := r.Rule.EscalateToReviewer
		if reviewer == "" && p.routing != nil {
			reviewer = p.routing.Route(r.Flag.Dimension, r.Rule.EscalateTo)
		}
		r.Flag.Escalate(r.Rule.EscalateTo, reviewer, now)
	}
	if len(results) > 0 && ctx.Dispatcher() != nil {
		ctx.Dispatcher().Notify(hooks.Event{
			Name:    hooks.EventEscalationApplied,
			UseCase: ctx.Name,
			Count:   len(results),
		})
	}
	return results
}

func describeEscalation(f *risk.Flag, r Rule, age time.Duration) string {
	if r.EscalateTo == f.Level {
		return fmt.Sprintf("flag %q (%s) open for %s, exceeds %s threshold, re-notifying",
			f.Description, f.Level, age.Round(time.Minute), r.Threshold)
	}
	return fmt.Sprintf("flag %q (%s) open for %s, exceeds %s threshold, escalating to %s",
		f.Description, f.Level, age.Round(time.Minute), r.Threshold, r.EscalateTo)
}
