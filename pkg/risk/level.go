package risk

import "fmt"

// Level is the ordered severity scale for a flag.
// Ordering drives blocking rules and escalation targets.
type Level int

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = map[Level]string{
	LevelNone:     "NONE",
	LevelLow:      "LOW",
	LevelMedium:   "MEDIUM",
	LevelHigh:     "HIGH",
	LevelCritical: "CRITICAL",
}

// String returns the canonical level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel resolves a canonical level name.
func ParseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown risk level %q", name)
}

// Status tracks where a flag is in the review lifecycle.
// Exactly one status holds at a time.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusInReview Status = "IN_REVIEW"
	StatusResolved Status = "RESOLVED"
	StatusAccepted Status = "ACCEPTED"
	StatusBlocked  Status = "BLOCKED"
)

// ParseStatus resolves a canonical status name.
func ParseStatus(name string) (Status, error) {
	switch Status(name) {
	case StatusOpen, StatusInReview, StatusResolved, StatusAccepted, StatusBlocked:
		return Status(name), nil
	}
	return "", fmt.Errorf("unknown review status %q", name)
}

// Terminal reports whether the status ends the normal review workflow.
// BLOCKED flags can still be escalated on level, just not transitioned.
func (s Status) Terminal() bool {
	switch s {
	case StatusResolved, StatusAccepted, StatusBlocked:
		return true
	}
	return false
}

// Settled reports whether the concern no longer counts against the use case
// (resolved or explicitly accepted).
func (s Status) Settled() bool {
	return s == StatusResolved || s == StatusAccepted
}
