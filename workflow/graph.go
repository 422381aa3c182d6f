package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Terminal is the cursor value marking the end of a run.
const Terminal = "__end__"

// RunContext carries per-run metadata into step executors.
type RunContext struct {
	// RunID identifies the workflow run being executed.
	RunID string
	// Logger is scoped to the run.
	Logger *zap.Logger
}

// StepFunc is a step executor. It receives the current state and returns a
// partial state update. Side effects belong inside the step body; the
// engine merges the update and persists a checkpoint only when the step
// returns without error.
type StepFunc func(ctx context.Context, rc RunContext, state State) (State, error)

// Graph is a statically declared workflow definition: named steps, directed
// edges, a designated entry step, and a set of interrupt points. It is
// immutable once handed to an Engine.
type Graph struct {
	name       string
	steps      map[string]StepFunc
	edges      map[string]string
	entry      string
	interrupts map[string]bool
}

// NewGraph creates an empty workflow graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:       name,
		steps:      make(map[string]StepFunc),
		edges:      make(map[string]string),
		interrupts: make(map[string]bool),
	}
}

// AddStep registers a named step executor.
func (g *Graph) AddStep(name string, fn StepFunc) *Graph {
	g.steps[name] = fn
	return g
}

// AddEdge declares the successor of a step. A step without an outgoing
// edge transitions to Terminal.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// SetEntry designates the entry step.
func (g *Graph) SetEntry(name string) *Graph {
	g.entry = name
	return g
}

// InterruptAfter declares interrupt points: after executing any of the
// named steps the engine suspends the run until the next Resume. This is a
// property of the definition, not of an individual run.
func (g *Graph) InterruptAfter(names ...string) *Graph {
	for _, n := range names {
		g.interrupts[n] = true
	}
	return g
}

// Name returns the workflow name.
func (g *Graph) Name() string { return g.name }

// Entry returns the entry step name.
func (g *Graph) Entry() string { return g.entry }

// Step retrieves a step executor by name.
func (g *Graph) Step(name string) (StepFunc, bool) {
	fn, ok := g.steps[name]
	return fn, ok
}

// Successor returns the next step after name, or Terminal if none is
// declared.
func (g *Graph) Successor(name string) string {
	if to, ok := g.edges[name]; ok {
		return to
	}
	return Terminal
}

// IsInterrupt reports whether name is a declared interrupt point.
func (g *Graph) IsInterrupt(name string) bool {
	return g.interrupts[name]
}

// Validate checks that the definition is executable: an entry step exists,
// every edge references known steps, and interrupt points are real steps.
func (g *Graph) Validate() error {
	if g.entry == "" {
		return fmt.Errorf("graph %q has no entry step", g.name)
	}
	if _, ok := g.steps[g.entry]; !ok {
		return fmt.Errorf("graph %q entry step %q is not registered", g.name, g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.steps[from]; !ok {
			return fmt.Errorf("graph %q edge from unknown step %q", g.name, from)
		}
		if to == Terminal {
			continue
		}
		if _, ok := g.steps[to]; !ok {
			return fmt.Errorf("graph %q edge to unknown step %q", g.name, to)
		}
	}
	for name := range g.interrupts {
		if _, ok := g.steps[name]; !ok {
			return fmt.Errorf("graph %q interrupt on unknown step %q", g.name, name)
		}
	}
	return nil
}
