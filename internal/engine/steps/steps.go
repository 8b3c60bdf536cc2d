// Package steps implements the Step Processors (C9): Create, Event,
// Decide, Assign, and Release, grounded on
// original_source/python/src/simulation/step_processors/*.py. Every
// processor is continuation-passing rather than blocking: suspension
// points (delay, resource acquire, queue wait) register a scheduler
// callback instead of parking a goroutine, matching the rest of the
// engine's single-threaded cooperative model (internal/engine/clock).
package steps

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/entity"
	"github.com/R3E-Network/eventsim/internal/engine/queue"
	"github.com/R3E-Network/eventsim/internal/engine/resource"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/internal/engine/tracker"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

// Deps bundles every already-built component a step processor needs.
// One Deps is shared by every processor in a run.
type Deps struct {
	Sched     *clock.Scheduler
	Dist      *distribution.Engine
	Resolver  *schema.ColumnResolver
	Store     *store.Store
	Entities  *entity.Manager
	Resources *resource.Pool
	Queues    *queue.Manager
	Tracker   *tracker.Tracker
	Sim       *schema.SimulationConfig
	Log       *logger.Logger
	StartDate time.Time
	Rng       *rand.Rand
}

// StepContext carries the per-invocation identity a processor needs:
// which entity, which flow, and the entity/event table pair resolved
// once for the flow (spec.md §4.9's process(entity_id, step, flow,
// entity_table, event_table)).
type StepContext struct {
	FlowID      string
	EntityID    any
	EntityTable string
	EventTable  string
}

// Processor is the common shape of Event/Decide/Assign/Release — Create
// is handled separately (see create.go) since it drives its own entity
// population loop rather than reacting to one already-created entity.
type Processor interface {
	CanHandle(kind string) bool
	Process(ctx context.Context, sc StepContext, step schema.Step, done func(nextStep string, ok bool))
}

// StatusTracker is the "per-entity status map" spec.md §4.9's Release
// step writes "Completed" into.
type StatusTracker struct {
	mu     sync.Mutex
	status map[any]string
}

// NewStatusTracker returns an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: make(map[any]string)}
}

// Set records entityID's status.
func (s *StatusTracker) Set(entityID any, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[entityID] = status
}

// Get returns entityID's recorded status, or "" if none was set.
func (s *StatusTracker) Get(entityID any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[entityID]
}

// defaultGroupID is the conventional resource-group key a Release step
// cleans up under (§12.4). Nothing in Create/Event/Decide/Assign adds
// resources to this group today — it exists so a flow that later grabs a
// resource meant to outlive a single Event step (via Pool.AddToGroup) has
// somewhere standard to release it from, mirroring the original's own
// release_processor.py persistent-allocation hook, which is wired but
// never populated either.
const defaultGroupID = "entity"
