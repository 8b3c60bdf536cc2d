package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/R3E-Network/eventsim/internal/engine/resource"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// EventProcessor implements the Event step (spec.md §4.9 Event),
// grounded on event_processor.py: create the event row, acquire its
// resource requirements, hold them for the sampled duration, record the
// processing span and per-resource allocations, then release.
type EventProcessor struct {
	deps *Deps
}

// NewEventProcessor builds an EventProcessor over deps.
func NewEventProcessor(deps *Deps) *EventProcessor { return &EventProcessor{deps: deps} }

// CanHandle reports whether kind names an Event step.
func (p *EventProcessor) CanHandle(kind string) bool { return strings.EqualFold(kind, "event") }

// Process creates the event row, acquires resources, waits out the
// sampled duration, records history, releases, and resumes with
// step.NextStep. Allocation interruption aborts the step (done(_, false)),
// per spec.md §4.9 "If allocation is interrupted, abort this step".
func (p *EventProcessor) Process(ctx context.Context, sc StepContext, step schema.Step, done func(string, bool)) {
	cfg := step.EventConfig
	if cfg == nil {
		done("", false)
		return
	}

	relationshipColumn, err := p.deps.Resolver.EntityFKColumn(sc.EventTable)
	if err != nil {
		p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: no entity FK column on event table")
		done("", false)
		return
	}
	eventTypeColumn, err := p.deps.Resolver.EventTypeColumn(sc.EventTable)
	if err != nil {
		p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: no event type column on event table")
		done("", false)
		return
	}

	eventID, err := p.deps.Entities.Create(ctx, sc.EventTable, store.Row{
		relationshipColumn: sc.EntityID,
		eventTypeColumn:    cfg.Name,
	})
	if err != nil {
		p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: failed to create event row")
		done("", false)
		return
	}

	allocationKey := fmt.Sprintf("%s:%v", sc.FlowID, eventID)

	p.acquireIfNeeded(ctx, sc, cfg, allocationKey, eventID, func(acquired []*resource.Resource, err error) {
		if err != nil {
			p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: resource allocation interrupted")
			done("", false)
			return
		}
		p.runDuration(ctx, sc, step, cfg, allocationKey, eventID, acquired, done)
	})
}

// acquireIfNeeded resolves and acquires cfg's resource requirements, or
// calls onReady immediately with no resources when none are declared.
func (p *EventProcessor) acquireIfNeeded(ctx context.Context, sc StepContext, cfg *schema.EventConfig, allocationKey string, eventID any, onReady func([]*resource.Resource, error)) {
	if len(cfg.ResourceRequirements) == 0 {
		onReady(nil, nil)
		return
	}
	reqs, err := p.deps.Resources.ResolveRequirements(cfg.ResourceRequirements)
	if err != nil {
		onReady(nil, err)
		return
	}
	entityCtx := resource.EntityContext{EntityID: sc.EntityID, EntityTable: sc.EntityTable}
	p.deps.Resources.Acquire(ctx, allocationKey, reqs, entityCtx, p.deps.Queues, onReady)
}

// runDuration samples the event's duration, suspends for it, then
// completes the step.
func (p *EventProcessor) runDuration(ctx context.Context, sc StepContext, step schema.Step, cfg *schema.EventConfig, allocationKey string, eventID any, acquired []*resource.Resource, done func(string, bool)) {
	durationMinutes, err := p.sampleDuration(cfg)
	if err != nil {
		p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: could not sample duration, defaulting to 60 minutes")
		durationMinutes = 60
	}

	start := p.deps.Sched.Now()
	p.deps.Sched.Schedule(durationMinutes, func() {
		end := p.deps.Sched.Now()
		p.finish(ctx, sc, allocationKey, eventID, start, end, acquired, step, done)
	})
}

func (p *EventProcessor) sampleDuration(cfg *schema.EventConfig) (float64, error) {
	value, err := drawFormulaOrSpec(p.deps, cfg.Duration)
	if err != nil {
		return 0, err
	}
	return value * p.deps.Sim.MinutesPerUnit(), nil
}

// finish records the processing span and every resource's allocation
// span, releases the allocation, and resumes the flow.
func (p *EventProcessor) finish(ctx context.Context, sc StepContext, allocationKey string, eventID any, start, end float64, acquired []*resource.Resource, step schema.Step, done func(string, bool)) {
	if err := p.deps.Tracker.RecordEventProcessing(ctx, sc.FlowID, fmt.Sprintf("%v", eventID), sc.EntityID, sc.EntityTable, start, end); err != nil {
		p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: failed to record event processing")
	}
	for _, res := range acquired {
		release := end
		if err := p.deps.Tracker.RecordResourceAllocation(ctx, sc.FlowID, fmt.Sprintf("%v", eventID), res.Table, res.ID, start, &release, sc.EntityID, sc.EntityTable, step.EventConfig.Name); err != nil {
			p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: failed to record resource allocation")
		}
	}
	if len(acquired) > 0 {
		if _, err := p.deps.Resources.Release(allocationKey); err != nil {
			p.deps.Log.WithRun(ctx).WithError(err).Warn("event step: failed to release allocation")
		}
	}
	done(step.NextStep, true)
}
