package steps

import (
	"context"
	"strings"

	"github.com/dop251/goja"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// DecideProcessor implements the Decide step (spec.md §4.9 Decide),
// grounded on decide_processor.py: probability-based branching with a
// proper cumulative distribution for the N-way case (the original's
// documented fix over evaluating probabilities sequentially), plus a
// real conditional mode (SPEC_FULL §12.1) instead of the original's
// always-take-first-outcome stub.
type DecideProcessor struct {
	deps *Deps
}

// NewDecideProcessor builds a DecideProcessor over deps.
func NewDecideProcessor(deps *Deps) *DecideProcessor { return &DecideProcessor{deps: deps} }

// CanHandle reports whether kind names a Decide step.
func (p *DecideProcessor) CanHandle(kind string) bool { return strings.EqualFold(kind, "decide") }

// Process evaluates the decision instantaneously (still scheduled at
// delta 0, preserving FIFO ordering among everything runnable at this
// virtual instant) and resumes with the chosen outcome's next step.
func (p *DecideProcessor) Process(ctx context.Context, sc StepContext, step schema.Step, done func(string, bool)) {
	cfg := step.DecideConfig
	if cfg == nil || len(cfg.Outcomes) == 0 {
		p.deps.Sched.Schedule(0, func() { done("", false) })
		return
	}

	p.deps.Sched.Schedule(0, func() {
		var next string
		switch strings.ToLower(cfg.DecisionType) {
		case "condition":
			next = p.evaluateConditional(ctx, sc, cfg)
		default: // "probability" and any unrecognised type default to it, per the original's permissive dispatch
			next = p.evaluateProbability(cfg)
		}
		done(next, next != "")
	})
}

func (p *DecideProcessor) evaluateProbability(cfg *schema.DecideConfig) string {
	outcomes := cfg.Outcomes
	switch len(outcomes) {
	case 1:
		return outcomes[0].NextStepID
	case 2:
		prob := outcomeProbability(outcomes[0], 0.5)
		if p.deps.Rng.Float64() <= prob {
			return outcomes[0].NextStepID
		}
		return outcomes[1].NextStepID
	default:
		return p.evaluateNWay(outcomes)
	}
}

func outcomeProbability(outcome schema.DecideOutcome, fallback float64) float64 {
	for _, cond := range outcome.Conditions {
		if strings.EqualFold(cond.ConditionType, "probability") && cond.Probability != nil {
			return *cond.Probability
		}
	}
	return fallback
}

// evaluateNWay normalises the outcomes' probabilities to sum to 1 (a
// uniform split if all are zero) and draws against the cumulative
// distribution, matching decide_processor.py's documented bugfix over
// sequential per-outcome evaluation.
func (p *DecideProcessor) evaluateNWay(outcomes []schema.DecideOutcome) string {
	probs := make([]float64, len(outcomes))
	total := 0.0
	for i, o := range outcomes {
		probs[i] = outcomeProbability(o, 0)
		total += probs[i]
	}
	if total == 0 {
		uniform := 1.0 / float64(len(outcomes))
		for i := range probs {
			probs[i] = uniform
		}
	} else if total != 1.0 {
		for i := range probs {
			probs[i] /= total
		}
	}

	draw := p.deps.Rng.Float64()
	cumulative := 0.0
	for i, prob := range probs {
		cumulative += prob
		if draw <= cumulative {
			return outcomes[i].NextStepID
		}
	}
	return outcomes[len(outcomes)-1].NextStepID
}

// evaluateConditional compiles each outcome's expression as a goja
// boolean expression against a JS object built from the entity's
// current attribute snapshot, returning the first truthy outcome.
// Falls back to the first outcome (spec.md §4.9's documented fallback
// shape) if the snapshot can't be read or nothing matches.
func (p *DecideProcessor) evaluateConditional(ctx context.Context, sc StepContext, cfg *schema.DecideConfig) string {
	attrs, ok := p.entitySnapshot(ctx, sc)
	if !ok {
		p.deps.Log.WithRun(ctx).Warn("decide step: could not read entity snapshot for conditional evaluation, falling back to first outcome")
		return cfg.Outcomes[0].NextStepID
	}

	vm := goja.New()
	entityObj := vm.NewObject()
	for k, v := range attrs {
		_ = entityObj.Set(k, v)
	}
	_ = vm.Set("entity", entityObj)

	for _, outcome := range cfg.Outcomes {
		expr := conditionExpression(outcome)
		if expr == "" {
			continue
		}
		value, err := vm.RunString(expr)
		if err != nil {
			continue
		}
		if value.ToBoolean() {
			return outcome.NextStepID
		}
	}

	p.deps.Log.WithRun(ctx).Warn("decide step: no conditional outcome matched, falling back to first outcome")
	return cfg.Outcomes[0].NextStepID
}

func conditionExpression(outcome schema.DecideOutcome) string {
	for _, cond := range outcome.Conditions {
		if strings.EqualFold(cond.ConditionType, "condition") && cond.Expression != "" {
			return cond.Expression
		}
	}
	return ""
}

func (p *DecideProcessor) entitySnapshot(ctx context.Context, sc StepContext) (map[string]any, bool) {
	pkColumn, err := p.deps.Resolver.PrimaryKey(sc.EntityTable)
	if err != nil {
		return nil, false
	}
	row, ok, err := p.deps.Store.GetRow(ctx, sc.EntityTable, pkColumn, sc.EntityID)
	if err != nil || !ok {
		return nil, false
	}
	return map[string]any(row), true
}
