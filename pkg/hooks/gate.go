package hooks

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"
)

// ComplianceGate evaluates named boolean criteria against gated events.
// Criteria are CEL expressions over the event's attributes; a criterion that
// evaluates to false fails. A failing evaluation signals a veto outcome
// rather than throwing: the caller of the gated mutation receives a
// *VetoError and must abort.
//
// Criterion expressions see these variables:
//
//	event       string  event name (e.g. "flag_accepted")
//	use_case    string  use case name
//	dimension   string  flag dimension key
//	level       string  flag level name (e.g. "CRITICAL")
//	status      string  flag status before the mutation
//	reviewer    string  assigned reviewer
//	description string  flag description
//	note        string  note supplied to the mutating operation
//
// Example: reject accepting a CRITICAL risk without a note:
//
//	gate.AddCriterion("critical_accept_needs_note",
//	    `event != "flag_accepted" || level != "CRITICAL" || note != ""`)
type ComplianceGate struct {
	name string

	mu       sync.Mutex
	env      *cel.Env
	order    []string
	programs map[string]cel.Program
	sources  map[string]string
}

// NewComplianceGate initializes the CEL environment for criteria.
func NewComplianceGate(name string) (*ComplianceGate, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("event", types.StringType),
			decls.NewVariable("use_case", types.StringType),
			decls.NewVariable("dimension", types.StringType),
			decls.NewVariable("level", types.StringType),
			decls.NewVariable("status", types.StringType),
			decls.NewVariable("reviewer", types.StringType),
			decls.NewVariable("description", types.StringType),
			decls.NewVariable("note", types.StringType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &ComplianceGate{
		name:     name,
		env:      env,
		programs: make(map[string]cel.Program),
		sources:  make(map[string]string),
	}, nil
}

// Name returns the gate's name as it appears in veto errors.
func (g *ComplianceGate) Name() string { return g.name }

// AddCriterion compiles and registers a named criterion.
func (g *ComplianceGate) AddCriterion(name, source string) error {
	ast, issues := g.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("criterion %q compilation failed: %w", name, issues.Err())
	}
	prg, err := g.env.Program(ast)
	if err != nil {
		return fmt.Errorf("criterion %q program construction failed: %w", name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.programs[name]; !exists {
		g.order = append(g.order, name)
	}
	g.programs[name] = prg
	g.sources[name] = source
	return nil
}

// RemoveCriterion removes a criterion by name. Returns true if it existed.
func (g *ComplianceGate) RemoveCriterion(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.programs[name]; !ok {
		return false
	}
	delete(g.programs, name)
	delete(g.sources, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// CriteriaNames returns registered criterion names in registration order.
func (g *ComplianceGate) CriteriaNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Check implements Gate. Every criterion is evaluated; any failure (or
// evaluation error, fail-closed) yields a *VetoError listing the failed
// criteria.
func (g *ComplianceGate) Check(e Event) error {
	input := map[string]any{
		"event":       string(e.Name),
		"use_case":    e.UseCase,
		"dimension":   "",
		"level":       "",
		"status":      "",
		"reviewer":    "",
		"description": "",
		"note":        e.Note,
	}
	if e.Flag != nil {
		input["dimension"] = e.Flag.Dimension.Key
		input["level"] = e.Flag.Level.String()
		input["status"] = string(e.Flag.Status)
		input["reviewer"] = e.Flag.Reviewer
		input["description"] = e.Flag.Description
	}

	g.mu.Lock()
	names := make([]string, len(g.order))
	copy(names, g.order)
	programs := make(map[string]cel.Program, len(g.programs))
	for k, v := range g.programs {
		programs[k] = v
	}
	g.mu.Unlock()

	var failed []string
	for _, name := range names {
		out, _, err := programs[name].Eval(input)
		if err != nil {
			// Fail closed: an unevaluable criterion is a failed criterion.
			failed = append(failed, name)
			continue
		}
		if passed, ok := out.Value().(bool); !ok || !passed {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return &VetoError{Gate: g.name, Event: e.Name, Criteria: failed}
	}
	return nil
}
