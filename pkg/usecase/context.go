// Package usecase holds the governed unit of work: a context that owns an
// ordered collection of risk flags and answers whether the work may proceed,
// who must act next, and how risky it currently is.
package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
)

// Context is the governance wrapper for one unit of work. It exclusively
// owns its flags; flags have no existence outside their context.
//
// The design is single-caller: no internal locking. A multi-threaded host
// must serialize access per context.
type Context struct {
	Name        string
	Description string
	Phase       string
	Tags        []string

	flags      []*risk.Flag
	routing    Router
	dispatcher *hooks.Dispatcher
	clock      func() time.Time
	CreatedAt  time.Time
}

// Router resolves a reviewer for a (dimension, level) pair. It must be a
// pure function of its inputs and the table contents.
type Router interface {
	Route(d dimension.Dimension, l risk.Level) string
}

// Option configures a Context at construction.
type Option func(*Context)

// WithDescription sets the description.
func WithDescription(desc string) Option {
	return func(c *Context) { c.Description = desc }
}

// WithPhase sets the workflow phase label.
func WithPhase(phase string) Option {
	return func(c *Context) { c.Phase = phase }
}

// WithTags sets free-form taxonomy tags.
func WithTags(tags ...string) Option {
	return func(c *Context) { c.Tags = tags }
}

// WithRouting overrides the routing table wholesale. Overriding is total
// replacement, not a merge: a partial custom table loses unrelated default
// routes. That is intentional.
func WithRouting(r Router) Option {
	return func(c *Context) { c.routing = r }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(c *Context) { c.clock = clock }
}

// New creates a context. routing supplies the default reviewer table
// (overridable via WithRouting); dispatcher may be nil for a context that
// emits no events.
func New(name string, routing Router, dispatcher *hooks.Dispatcher, opts ...Option) *Context {
	c := &Context{
		Name:       name,
		routing:    routing,
		dispatcher: dispatcher,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.CreatedAt = c.clock()
	return c
}

// FlagRisk raises a flag on this use case. When reviewer is empty one is
// resolved from the routing table at (dimension, level). The created flag is
// appended in insertion order and a flag_added event is emitted.
func (c *Context) FlagRisk(dim dimension.Dimension, level risk.Level, description, reviewer string) *risk.Flag {
	if reviewer == "" && c.routing != nil {
		reviewer = c.routing.Route(dim, level)
	}
	f := risk.NewFlag(dim, level, description, reviewer, c.clock())
	c.flags = append(c.flags, f)
	c.notify(hooks.Event{
		Name:      hooks.EventFlagAdded,
		UseCase:   c.Name,
		FlagIndex: len(c.flags) - 1,
		Flag:      f,
	})
	return f
}

// AttachFlag appends an already-built flag without emitting events.
// Used by decoders reconstructing a persisted context.
func (c *Context) AttachFlag(f *risk.Flag) {
	c.flags = append(c.flags, f)
}

// Flags returns the owned flags in insertion order. The slice is shared;
// callers must not reorder it.
func (c *Context) Flags() []*risk.Flag { return c.flags }

// Dispatcher returns the hook dispatcher this context emits through.
func (c *Context) Dispatcher() *hooks.Dispatcher { return c.dispatcher }

// Flag returns the flag at the given index.
func (c *Context) Flag(i int) (*risk.Flag, error) {
	if i < 0 || i >= len(c.flags) {
		return nil, fmt.Errorf("use case %q has no flag %d", c.Name, i)
	}
	return c.flags[i], nil
}

// BeginReview moves the flag at index i into review. Gated: a subscribed
// compliance gate may veto, leaving the flag untouched.
func (c *Context) BeginReview(i int) error {
	return c.transition(i, hooks.EventFlagReviewStarted, "", func(f *risk.Flag, now time.Time) error {
		return f.BeginReview(now)
	})
}

// Resolve marks the flag at index i resolved with a note. Gated.
func (c *Context) Resolve(i int, note string) error {
	return c.transition(i, hooks.EventFlagResolved, note, func(f *risk.Flag, now time.Time) error {
		return f.Resolve(note, now)
	})
}

// AcceptRisk acknowledges the flag at index i with a note. Gated.
func (c *Context) AcceptRisk(i int, note string) error {
	return c.transition(i, hooks.EventFlagAccepted, note, func(f *risk.Flag, now time.Time) error {
		return f.AcceptRisk(note, now)
	})
}

// transition runs the two-phase emission discipline: gates first, then the
// mutation, then notify-only hooks. A veto aborts before any state changes.
func (c *Context) transition(i int, name hooks.EventName, note string, mutate func(*risk.Flag, time.Time) error) error {
	f, err := c.Flag(i)
	if err != nil {
		return err
	}
	e := hooks.Event{
		Name:      name,
		UseCase:   c.Name,
		FlagIndex: i,
		Flag:      f,
		Note:      note,
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.CheckGates(e); err != nil {
			return err
		}
	}
	if err := mutate(f, c.clock()); err != nil {
		return err
	}
	c.notify(e)
	return nil
}

func (c *Context) notify(e hooks.Event) {
	if c.dispatcher != nil {
		c.dispatcher.Notify(e)
	}
}

// IsBlocked reports whether any owned flag is blocking.
func (c *Context) IsBlocked() bool {
	for _, f := range c.flags {
		if f.IsBlocking() {
			return true
		}
	}
	return false
}

// Blockers returns the blocking flags in insertion order.
func (c *Context) Blockers() []*risk.Flag {
	var out []*risk.Flag
	for _, f := range c.flags {
		if f.IsBlocking() {
			out = append(out, f)
		}
	}
	return out
}

// PendingReviews returns flags still awaiting review, in insertion order.
func (c *Context) PendingReviews() []*risk.Flag {
	var out []*risk.Flag
	for _, f := range c.flags {
		if f.NeedsReview() {
			out = append(out, f)
		}
	}
	return out
}

// ReviewersNeeded returns the deduplicated, order-preserving list of
// non-empty reviewers across blocking and pending-review flags.
func (c *Context) ReviewersNeeded() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range c.flags {
		if !f.IsBlocking() && !f.NeedsReview() {
			continue
		}
		if f.Reviewer == "" || seen[f.Reviewer] {
			continue
		}
		seen[f.Reviewer] = true
		out = append(out, f.Reviewer)
	}
	return out
}

// Dimensions returns the distinct dimensions that have at least one flag,
// built-in or custom, in first-flagged order. This set, not a fixed
// constant, is the normalization basis for scoring, because the dimension
// space is open-ended.
func (c *Context) Dimensions() []dimension.Dimension {
	seen := make(map[string]bool)
	var out []dimension.Dimension
	for _, f := range c.flags {
		if seen[f.Dimension.Key] {
			continue
		}
		seen[f.Dimension.Key] = true
		out = append(out, f.Dimension)
	}
	return out
}

// RiskScore returns, per flagged dimension key, the maximum level among that
// dimension's unsettled flags (0 when every flag of the dimension is
// resolved or accepted). Dimensions with no flags are simply absent.
func (c *Context) RiskScore() map[string]int {
	scores := make(map[string]int)
	for _, d := range c.Dimensions() {
		scores[d.Key] = 0
	}
	for _, f := range c.flags {
		if f.Status.Settled() {
			continue
		}
		if v := int(f.Level); v > scores[f.Dimension.Key] {
			scores[f.Dimension.Key] = v
		}
	}
	return scores
}

// MaxRiskLevel returns the highest level among unsettled flags, or NONE.
func (c *Context) MaxRiskLevel() risk.Level {
	max := risk.LevelNone
	for _, f := range c.flags {
		if f.Status.Settled() {
			continue
		}
		if f.Level > max {
			max = f.Level
		}
	}
	return max
}

// CompositeScore reduces the per-dimension scores to a 0..1 figure:
// sum of per-dimension max levels over 4 × the number of active dimensions.
// The denominator scales with the flagged dimensions so scores stay
// comparable once custom dimensions enter the portfolio.
func (c *Context) CompositeScore() float64 {
	scores := c.RiskScore()
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	return float64(sum) / float64(4*len(scores))
}

// FlagsByDimension returns all flags for a dimension, in insertion order.
func (c *Context) FlagsByDimension(d dimension.Dimension) []*risk.Flag {
	var out []*risk.Flag
	for _, f := range c.flags {
		if f.Dimension.Key == d.Key {
			out = append(out, f)
		}
	}
	return out
}

// FlagsByStatus returns all flags with the given status, in insertion order.
func (c *Context) FlagsByStatus(s risk.Status) []*risk.Flag {
	var out []*risk.Flag
	for _, f := range c.flags {
		if f.Status == s {
			out = append(out, f)
		}
	}
	return out
}

// FlagsByLevel returns all flags at the given level, in insertion order.
func (c *Context) FlagsByLevel(l risk.Level) []*risk.Flag {
	var out []*risk.Flag
	for _, f := range c.flags {
		if f.Level == l {
			out = append(out, f)
		}
	}
	return out
}

// Summary renders a human-readable governance status.
func (c *Context) Summary() string {
	status := "CLEAR"
	if c.IsBlocked() {
		status = "BLOCKED"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Use Case: %s\n", c.Name)
	fmt.Fprintf(&b, "Phase:    %s\n", orUnset(c.Phase))
	fmt.Fprintf(&b, "Status:   %s\n", status)
	fmt.Fprintf(&b, "Flags:    %d total, %d blocking, %d pending review\n",
		len(c.flags), len(c.Blockers()), len(c.PendingReviews()))
	for _, f := range c.flags {
		fmt.Fprintf(&b, "  %s\n", f)
		if f.Reviewer != "" {
			fmt.Fprintf(&b, "    -> routed to %s\n", f.Reviewer)
		}
	}
	if reviewers := c.ReviewersNeeded(); len(reviewers) > 0 {
		fmt.Fprintf(&b, "Action needed from: %s\n", strings.Join(reviewers, ", "))
	}
	return b.String()
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
