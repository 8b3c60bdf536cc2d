// Package flow implements the Flow Runner (C10): per entity, repeatedly
// invoke the step processor matching the current step's kind and resolve
// whatever step id it returns within the owning flow, until a processor
// returns none. Grounded on spec.md §4.10 directly — the original
// project's FlowManager (simulation/core/execution.py) is referenced by
// simulator.py but is not present in the original_source retrieval pack,
// so this package follows the step processors' already-established
// continuation-passing shape (internal/engine/steps) rather than a
// ported Python file.
package flow

import (
	"context"
	"strings"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/steps"
)

// ProcessorFactory is the subset of steps.Factory the runner needs.
type ProcessorFactory interface {
	ForKind(kind string) (steps.Processor, bool)
}

// Definition is one flow's immutable routing table: its declared entity
// table (for Create) / event table (for Event steps) pair and its steps
// indexed by id, resolved once at Orchestrator setup time (C12) rather
// than looked up per invocation.
type Definition struct {
	FlowID      string
	EntityTable string
	EventTable  string
	steps       map[string]schema.Step
}

// NewDefinition indexes flow's steps by id.
func NewDefinition(flow schema.Flow, entityTable, eventTable string) *Definition {
	index := make(map[string]schema.Step, len(flow.Steps))
	for _, s := range flow.Steps {
		index[s.StepID] = s
	}
	return &Definition{FlowID: flow.FlowID, EntityTable: entityTable, EventTable: eventTable, steps: index}
}

// Runner drives entities through their flow's step graph.
type Runner struct {
	factory ProcessorFactory
}

// New builds a Runner dispatching through factory.
func New(factory ProcessorFactory) *Runner {
	return &Runner{factory: factory}
}

// Start begins E's journey at startStep — the Create step's
// initial_step, or wherever a caller wants to resume a flow. Returns
// immediately; the walk itself runs entirely through scheduler
// continuations.
func (r *Runner) Start(ctx context.Context, def *Definition, entityID any, startStep string) {
	r.advance(ctx, def, entityID, startStep)
}

func (r *Runner) advance(ctx context.Context, def *Definition, entityID any, stepID string) {
	if stepID == "" {
		return
	}
	step, ok := def.steps[stepID]
	if !ok {
		return // an unresolved next_step ends the flow rather than panicking
	}

	if strings.EqualFold(step.Kind, "create") {
		// A flow graph should never route back into its own Create step;
		// if it does, treat it as a dead end rather than restarting the
		// producer loop from inside an entity's walk.
		return
	}

	processor, ok := r.factory.ForKind(step.Kind)
	if !ok {
		return
	}

	sc := steps.StepContext{
		FlowID:      def.FlowID,
		EntityID:    entityID,
		EntityTable: def.EntityTable,
		EventTable:  def.EventTable,
	}

	processor.Process(ctx, sc, step, func(next string, ok bool) {
		if !ok {
			return
		}
		r.advance(ctx, def, entityID, next)
	})
}
