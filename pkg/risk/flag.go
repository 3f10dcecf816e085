// Package risk defines the atomic unit of governance concern: the risk flag
// and its lifecycle state machine.
package risk

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caseguard/caseguard/pkg/dimension"
)

// InvalidTransitionError reports a state-machine contract violation.
type InvalidTransitionError struct {
	Op   string
	From Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a flag in status %s", e.Op, e.From)
}

// Flag is one recorded concern raised against a use case.
//
// Level and dimension are immutable after creation; escalation changes level
// only through Escalate. Status moves only through the transition methods.
// IsBlocking and NeedsReview are derived on every call, never stored.
type Flag struct {
	ID          string
	Dimension   dimension.Dimension
	Level       Level
	Description string
	Reviewer    string
	Status      Status
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// escalatedFrom records levels this flag has already been escalated
	// from, making escalation idempotent per level.
	escalatedFrom map[Level]bool
}

// NewFlag creates an OPEN flag with both timestamps set to now.
func NewFlag(dim dimension.Dimension, level Level, description, reviewer string, now time.Time) *Flag {
	return &Flag{
		ID:          uuid.New().String(),
		Dimension:   dim,
		Level:       level,
		Description: description,
		Reviewer:    reviewer,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsBlocking reports whether this flag prevents the workflow from
// proceeding: HIGH or above and not resolved or accepted.
func (f *Flag) IsBlocking() bool {
	return f.Level >= LevelHigh && !f.Status.Settled()
}

// NeedsReview reports whether this flag still awaits a reviewer:
// MEDIUM or above and still OPEN.
func (f *Flag) NeedsReview() bool {
	return f.Level >= LevelMedium && f.Status == StatusOpen
}

// BeginReview moves an OPEN flag into IN_REVIEW.
func (f *Flag) BeginReview(now time.Time) error {
	if f.Status != StatusOpen {
		return &InvalidTransitionError{Op: "begin review on", From: f.Status}
	}
	f.Status = StatusInReview
	f.UpdatedAt = now
	return nil
}

// Resolve closes the flag with a resolution note. Valid from OPEN or IN_REVIEW.
func (f *Flag) Resolve(note string, now time.Time) error {
	if f.Status != StatusOpen && f.Status != StatusInReview {
		return &InvalidTransitionError{Op: "resolve", From: f.Status}
	}
	f.Status = StatusResolved
	f.Note = note
	f.UpdatedAt = now
	return nil
}

// AcceptRisk acknowledges the risk and lets the workflow proceed.
// Valid from OPEN or IN_REVIEW.
func (f *Flag) AcceptRisk(note string, now time.Time) error {
	if f.Status != StatusOpen && f.Status != StatusInReview {
		return &InvalidTransitionError{Op: "accept", From: f.Status}
	}
	f.Status = StatusAccepted
	f.Note = note
	f.UpdatedAt = now
	return nil
}

// MarkBlocked hard-blocks the flag, signalling a structural problem distinct
// from severity-driven blocking. Valid from any non-terminal status.
func (f *Flag) MarkBlocked(now time.Time) error {
	if f.Status.Terminal() {
		return &InvalidTransitionError{Op: "block", From: f.Status}
	}
	f.Status = StatusBlocked
	f.UpdatedAt = now
	return nil
}

// Escalate raises the flag's level through the controlled escalation path and
// marks the level it came from so the same escalation never applies twice.
// Status is untouched; a flag can be escalated while IN_REVIEW (or BLOCKED)
// without losing that status. A reviewer reassignment is applied when
// non-empty.
func (f *Flag) Escalate(to Level, reviewer string, now time.Time) {
	if f.escalatedFrom == nil {
		f.escalatedFrom = make(map[Level]bool)
	}
	f.escalatedFrom[f.Level] = true
	if to > f.Level {
		f.Level = to
	}
	if reviewer != "" {
		f.Reviewer = reviewer
	}
	f.UpdatedAt = now
}

// EscalatedFrom reports whether this flag was already escalated away from the
// given level.
func (f *Flag) EscalatedFrom(l Level) bool {
	return f.escalatedFrom[l]
}

// String renders the flag for summaries and logs.
func (f *Flag) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", f.Dimension.Label, f.Level, f.Description, f.Status)
}
