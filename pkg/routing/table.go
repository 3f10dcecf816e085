// Package routing maps (dimension, level) pairs to the reviewer responsible
// for acting on a flag. Lookup is a pure function of the table contents: no
// hierarchical fallback, no side effects. An unrouted pair resolves to the
// empty reviewer ("unassigned").
package routing

import (
	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/risk"
)

// Entry is one routing rule.
type Entry struct {
	Dimension dimension.Dimension
	Level     risk.Level
	Reviewer  string
}

// key is the identity a lookup resolves on. Dimension identity is the key
// string, so built-in and minted dimensions route identically.
type key struct {
	dim   string
	level risk.Level
}

// Table routes flags to reviewers. A Table is immutable through Route; all
// mutation happens through Set/Merge before contexts start using it.
type Table struct {
	entries map[key]string
}

// NewTable creates an empty routing table.
func NewTable() *Table {
	return &Table{entries: make(map[key]string)}
}

// Set adds or replaces a route.
func (t *Table) Set(d dimension.Dimension, l risk.Level, reviewer string) {
	t.entries[key{dim: d.Key, level: l}] = reviewer
}

// Merge copies every entry in, with incoming entries winning on overlap.
func (t *Table) Merge(entries []Entry) {
	for _, e := range entries {
		t.Set(e.Dimension, e.Level, e.Reviewer)
	}
}

// Route returns the reviewer for a (dimension, level) pair, or the empty
// string when no entry matches.
func (t *Table) Route(d dimension.Dimension, l risk.Level) string {
	return t.entries[key{dim: d.Key, level: l}]
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.entries) }

// Clone returns an independent copy. Contexts that override routing get a
// total replacement, never a merge, so cloning keeps the default table safe
// from per-context edits.
func (t *Table) Clone() *Table {
	c := NewTable()
	for k, v := range t.entries {
		c.entries[k] = v
	}
	return c
}

// defaultRoutes returns the shipped routing rows for one dimension.
func defaultRoutes(d dimension.Dimension, low, medium, high, critical string) []Entry {
	return []Entry{
		{Dimension: d, Level: risk.LevelLow, Reviewer: low},
		{Dimension: d, Level: risk.LevelMedium, Reviewer: medium},
		{Dimension: d, Level: risk.LevelHigh, Reviewer: high},
		{Dimension: d, Level: risk.LevelCritical, Reviewer: critical},
	}
}

// DefaultTable builds the shipped routing table for a schema version:
// four reviewer tiers per built-in dimension.
func DefaultTable(v dimension.SchemaVersion) *Table {
	t := NewTable()
	t.Merge(defaultRoutes(dimension.LegalIP,
		"IP Coordinator",
		"Legal Counsel",
		"VP Legal / Business Affairs",
		"General Counsel + C-Suite"))

	if v == dimension.SchemaV1 {
		t.Merge(defaultRoutes(dimension.Ethical,
			"Ethics Analyst",
			"Ethics Review Board",
			"VP Ethics / Policy",
			"C-Suite + External Ethics Auditor"))
		t.Merge(defaultRoutes(dimension.Comms,
			"Communications Coordinator",
			"PR / Comms Manager",
			"VP Communications",
			"C-Suite + External Counsel"))
		t.Merge(defaultRoutes(dimension.Technical,
			"Tech Lead",
			"Engineering Supervisor",
			"VP Technology / CTO",
			"CTO + External Technical Review"))
		return t
	}

	t.Merge(defaultRoutes(dimension.Bias,
		"Fairness Analyst",
		"Bias Review Board",
		"VP Ethics / Policy",
		"C-Suite + External Fairness Auditor"))
	t.Merge(defaultRoutes(dimension.Safety,
		"Safety Analyst",
		"Safety Review Board",
		"VP Safety / Policy",
		"C-Suite + External Safety Advisor"))
	t.Merge(defaultRoutes(dimension.Security,
		"Security Analyst",
		"Security Engineer",
		"CISO / VP Security",
		"CISO + External Security Audit"))
	t.Merge(defaultRoutes(dimension.Feasibility,
		"Tech Lead",
		"VFX Supervisor",
		"VP Technology / CTO",
		"CTO + External Technical Review"))
	t.Merge(defaultRoutes(dimension.Quality,
		"QA Lead",
		"Department Supervisor",
		"VP Production / Post",
		"Executive Producer + Department Head"))
	return t
}
