package steps

import (
	"context"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// assignLanguage is gval extended with jsonpath's $.field syntax, so an
// assign_config expression can reference the current entity's
// attributes either as a bare identifier ("balance * 1.1") or via a
// JSONPath ("$.balance * 1.1"), grounded on SPEC_FULL's C9 Assign-step
// wiring note for github.com/PaesslerAG/gval + jsonpath.
var assignLanguage = gval.Full(jsonpath.PlaceholderExtension())

// AssignProcessor implements the Assign step (spec.md §4.9 Assign):
// evaluate the configured expression against the entity's current
// attribute snapshot, then write the result back via the entity
// manager.
type AssignProcessor struct {
	deps *Deps
}

// NewAssignProcessor builds an AssignProcessor over deps.
func NewAssignProcessor(deps *Deps) *AssignProcessor { return &AssignProcessor{deps: deps} }

// CanHandle reports whether kind names an Assign step.
func (p *AssignProcessor) CanHandle(kind string) bool { return strings.EqualFold(kind, "assign") }

// Process is instantaneous: evaluate, write, resume. Still routed
// through the scheduler at delta 0 to preserve FIFO ordering among
// everything runnable at this virtual instant.
func (p *AssignProcessor) Process(ctx context.Context, sc StepContext, step schema.Step, done func(string, bool)) {
	cfg := step.AssignConfig
	if cfg == nil {
		p.deps.Sched.Schedule(0, func() { done("", false) })
		return
	}

	p.deps.Sched.Schedule(0, func() {
		value, err := p.evaluate(ctx, sc, cfg)
		if err != nil {
			p.deps.Log.WithRun(ctx).WithError(err).Warn("assign step: expression evaluation failed")
			done("", false)
			return
		}
		if _, err := p.deps.Entities.UpdateAttribute(ctx, cfg.Table, sc.EntityID, cfg.Column, value); err != nil {
			p.deps.Log.WithRun(ctx).WithError(err).Warn("assign step: failed to write attribute")
			done("", false)
			return
		}
		done(step.NextStep, true)
	})
}

func (p *AssignProcessor) evaluate(ctx context.Context, sc StepContext, cfg *schema.AssignConfig) (any, error) {
	pkColumn, err := p.deps.Resolver.PrimaryKey(cfg.Table)
	if err != nil {
		return nil, err
	}
	row, ok, err := p.deps.Store.GetRow(ctx, cfg.Table, pkColumn, sc.EntityID)
	if err != nil {
		return nil, err
	}
	params := map[string]any{}
	if ok {
		for k, v := range row {
			params[k] = v
		}
	}
	return assignLanguage.Evaluate(cfg.Expression, params)
}
