package steps

import (
	"context"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// Router hands a freshly created entity off to its flow's initial step —
// the Go equivalent of create_processor.py's externally-set
// entity_router_callback.
type Router func(ctx context.Context, flowID string, entityTable string, entityID any, initialStep string)

// CreateDriver runs a flow's Create step: it is not a Processor (spec.md
// §4.9 notes Create drives its own population loop rather than reacting to
// an existing entity), so it lives outside the Processor dispatch table
// and is started once per flow at simulation start, grounded on
// create_processor.py's self-rescheduling entity-generation loop.
type CreateDriver struct {
	deps   *Deps
	router Router
}

// NewCreateDriver builds a CreateDriver over deps, handing every created
// entity to router.
func NewCreateDriver(deps *Deps, router Router) *CreateDriver {
	return &CreateDriver{deps: deps, router: router}
}

// Start schedules the first entity-creation attempt for flowID's Create
// step at the current virtual instant; each attempt reschedules the next
// one after drawing an interarrival sample, until a stop condition is hit.
// A MaxEntities.Count of 0 means unbounded — the Go sentinel replacing the
// original's "n/a"-string heuristic for an unlimited entity count.
func (d *CreateDriver) Start(ctx context.Context, flowID string, cfg *schema.CreateConfig) {
	if cfg == nil {
		return
	}
	d.deps.Sched.Schedule(0, func() { d.attempt(ctx, flowID, cfg, 0) })
}

func (d *CreateDriver) attempt(ctx context.Context, flowID string, cfg *schema.CreateConfig, created int) {
	if cfg.MaxEntities.Count > 0 && created >= cfg.MaxEntities.Count {
		return
	}
	if d.deps.Sim.DurationDays > 0 {
		elapsedDays := d.deps.Sched.Now() / 1440.0
		if elapsedDays >= d.deps.Sim.DurationDays {
			return
		}
	}

	entityID, err := d.deps.Entities.Create(ctx, cfg.EntityTable, store.Row{})
	if err != nil {
		d.deps.Log.WithRun(ctx).WithError(err).Warn("create step: failed to create entity, skipping this arrival")
	} else {
		d.router(ctx, flowID, cfg.EntityTable, entityID, cfg.InitialStep)
		created++
	}

	interarrival, err := drawFormulaOrSpec(d.deps, cfg.InterarrivalTime)
	if err != nil {
		d.deps.Log.WithRun(ctx).WithError(err).Warn("create step: could not sample interarrival time, defaulting to 60 minutes")
		interarrival = 60
	}
	delay := interarrival * d.deps.Sim.MinutesPerUnit()
	d.deps.Sched.Schedule(delay, func() { d.attempt(ctx, flowID, cfg, created) })
}
