// Package orchestrator implements the Orchestrator (C12): the
// hard-enforced component setup order, the per-flow wiring of Create
// drivers into the Flow Runner, and the run loop that drives the
// scheduler until the termination monitor halts it, grounded on
// original_source/python/src/simulation/core/simulator.py's
// EventSimulator.run.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/infrastructure/metrics"
	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/entity"
	"github.com/R3E-Network/eventsim/internal/engine/flow"
	"github.com/R3E-Network/eventsim/internal/engine/queue"
	"github.com/R3E-Network/eventsim/internal/engine/resource"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/steps"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/internal/engine/termination"
	"github.com/R3E-Network/eventsim/internal/engine/tracker"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

// Result is the §6 "Metrics output" shape the Orchestrator returns from a
// run that reaches the scheduler loop; a setup failure returns an error
// and no Result (see Run).
type Result struct {
	SimulationTimeMinutes   float64 `json:"simulation_time_minutes"`
	SimulationTimeBaseUnits float64 `json:"simulation_time_base_units"`
	BaseTimeUnit            string  `json:"base_time_unit"`
	TerminationReason       string  `json:"termination_reason"`
	EntityCount             int     `json:"entity_count"`
	EntitiesProcessed       int     `json:"entities_processed"`
	ProcessedEvents         int     `json:"processed_events"`

	ResourceUtilization ResourceUtilization    `json:"resource_utilization"`
	QueueStatistics     QueueStatisticsSummary `json:"queue_statistics"`
}

// ResourceUtilization mirrors get_utilization_stats's aggregate view.
type ResourceUtilization struct {
	ByResource        map[string]float64 `json:"by_resource"` // keyed "table:id"
	ByType            map[string]float64 `json:"by_type"`
	CurrentlyAllocated int                `json:"currently_allocated"`
	TotalAllocations   int                `json:"total_allocations"`
	TotalResources     int                `json:"total_resources"`
}

// QueueStatisticsSummary wraps the per-queue statistics rows.
type QueueStatisticsSummary struct {
	PerQueue map[string]QueueStatEntry `json:"per_queue"`
}

// QueueStatEntry mirrors one queue_manager.get_statistics row.
type QueueStatEntry struct {
	QueueType     string  `json:"queue_type"`
	TotalProcessed int    `json:"total_processed"`
	CurrentLength int     `json:"current_length"`
	MaxLength     int     `json:"max_length"`
	AvgWaitTime   float64 `json:"avg_wait_time"`
	MaxWaitTime   float64 `json:"max_wait_time"`
	TotalWaitTime float64 `json:"total_wait_time"`
}

// Run executes one complete simulation: it builds every engine component
// in the order spec.md §4.12 requires, drives the scheduler to
// completion, and returns the collected Result. A setup failure (store,
// schema, termination formula, start date, table resolution, resource
// load) returns a nil Result and the error wrapped with the failing
// stage; no structured failure record is built. Once opened, the store is
// closed on every exit path; outstanding allocations are released and
// metrics collected only when the scheduler loop has run.
func Run(ctx context.Context, db *schema.DatabaseConfig, sim *schema.SimulationConfig, storeCfg config.StoreConfig, log *logger.Logger) (*Result, error) {
	runID := logger.RunIDFromContext(ctx)
	if runID == "" {
		runID = logger.NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}

	// 1. scheduler
	sched := clock.New()

	// 2. persistence
	st, err := store.Open(ctx, storeCfg, log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open store: %w", err)
	}
	defer st.Close()

	if err := st.BuildUserSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("orchestrator: build schema: %w", err)
	}

	// 3. RNG seed — if provided, seeds both the engine's PRNG and the
	// distribution engine's, per spec.md §4.12.
	seed := time.Now().UnixNano()
	if sim.RandomSeed != nil {
		seed = *sim.RandomSeed
	}
	dist := distribution.New(seed)
	rng := rand.New(rand.NewSource(seed))

	// 4. termination parser
	formula := sim.TerminatingConditions.Formula
	if formula == "" {
		formula = termination.DefaultFormula
	}
	terminationCond, err := termination.Parse(formula)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse termination formula: %w", err)
	}

	startDate, err := parseStartDate(sim.StartDate)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse start date: %w", err)
	}

	resolver := schema.NewColumnResolver(db)

	// 5. queue manager
	queueCfg := sim.EventSimulation.Queues
	queues := queue.New(sched, st, startDate, queueCfg)

	// 6. resource pool
	resourcePool := resource.New(sched, resolver, dist)

	// 7. entity manager
	entities := entity.New(db, sim, resolver, st, dist, sched, startDate, seed)

	// 8. step-processor factory
	status := steps.NewStatusTracker()
	eventTracker := tracker.New(st, resolver, db, startDate)

	deps := &steps.Deps{
		Sched:     sched,
		Dist:      dist,
		Resolver:  resolver,
		Store:     st,
		Entities:  entities,
		Resources: resourcePool,
		Queues:    queues,
		Tracker:   eventTracker,
		Sim:       sim,
		Log:       log,
		StartDate: startDate,
		Rng:       rng,
	}
	factory := steps.NewFactory(deps, status)

	// 9. event tracker is per-flow in name only: the Tracker built above is
	// shared, but each flow gets its own Definition naming its resolved
	// entity_table/event_table pair.
	flows := sim.EventSimulation.EventFlows.Flows
	definitions := make(map[string]*flow.Definition, len(flows))
	createConfigs := make(map[string]*schema.CreateConfig, len(flows))

	// A database config with no resource-type table at all (e.g. a pure
	// Decide/Assign/Release routing flow, per S2) never needs a resource
	// pool, so only require resolution when there's something to resolve;
	// an explicit override still counts even if no table is typed
	// "resource", same as resource_manager.py's table_specification
	// precedence.
	var resourceTable string
	resourceOverride := tableOverride(sim, "resource")
	if resourceOverride != "" || anyTableOfType(db, "resource") {
		resourceTable, err = resolveTableSpec(db, resourceOverride, "resource")
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resolve resource table: %w", err)
		}
	}

	// A flow graph with no Event step (e.g. pure Decide/Assign/Release
	// routing, per S2) never consults EventTable, so only require it to
	// resolve when some flow actually declares one.
	var eventTable string
	if anyEventStep(flows) {
		eventTable, err = resolveTableSpec(db, tableOverride(sim, "event"), "event")
		if err != nil {
			return nil, fmt.Errorf("orchestrator: resolve event table: %w", err)
		}
	}

	for _, f := range flows {
		entityTable, createCfg, err := flowEntityTable(f)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: flow %s: %w", f.FlowID, err)
		}
		definitions[f.FlowID] = flow.NewDefinition(f, entityTable, eventTable)
		createConfigs[f.FlowID] = createCfg
	}

	runner := flow.New(factory)
	router := func(ctx context.Context, flowID, entityTable string, entityID any, initialStep string) {
		def, ok := definitions[flowID]
		if !ok {
			return
		}
		runner.Start(ctx, def, entityID, initialStep)
	}

	// resource_pool.load(resource_table) — skipped entirely when the
	// database config declares no resource-type table to load.
	if resourceTable != "" {
		if err := resourcePool.Load(ctx, st, resourceTable); err != nil {
			return nil, fmt.Errorf("orchestrator: load resource pool: %w", err)
		}
	}

	// spawn one Create task per configured Create step
	driver := steps.NewCreateDriver(deps, router)
	for flowID, createCfg := range createConfigs {
		driver.Start(ctx, flowID, createCfg)
	}

	// start the termination monitor
	state := termination.NewStoreState(st, db, sched, sim)
	monitor := termination.NewMonitor(sched, terminationCond, state, log)
	monitor.Start(ctx)

	// run the scheduler until the monitor resolves
	for sched.Pending() && !sched.Halted() {
		sched.Step()
	}

	result := collect(ctx, sched, sim, st, db, resourcePool, queues, monitor.Reason)
	return result, nil
}

// tableOverride returns the configured TableSpecification override for
// kind ("entity", "resource", "event"), or "" if none was given.
func tableOverride(sim *schema.SimulationConfig, kind string) string {
	spec := sim.EventSimulation.TableSpecification
	if spec == nil {
		return ""
	}
	switch kind {
	case "entity":
		return spec.EntityTable
	case "resource":
		return spec.ResourceTable
	case "event":
		return spec.EventTable
	default:
		return ""
	}
}

// resolveTableSpec returns override if set, else the sole DatabaseConfig
// table whose Type equals kind. Zero or more-than-one candidate with no
// override is a configuration error — grounded on
// resource_manager.py/entity_manager.py's table_specification
// fallback-to-type-scan behaviour, which assumes exactly one table of
// each kind exists when no override disambiguates.
func resolveTableSpec(db *schema.DatabaseConfig, override, kind string) (string, error) {
	if override != "" {
		return override, nil
	}
	var matches []string
	for _, t := range db.Entities {
		if t.Type == kind {
			matches = append(matches, t.Name)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", simerrors.AmbiguousTableSpec(kind, matches)
}

// anyTableOfType reports whether db declares any table of the given
// Type — used to decide whether a table kind needs resolving at all,
// independent of whether any flow currently exercises it.
func anyTableOfType(db *schema.DatabaseConfig, kind string) bool {
	for _, t := range db.Entities {
		if t.Type == kind {
			return true
		}
	}
	return false
}

// anyEventStep reports whether some flow declares an Event step.
func anyEventStep(flows []schema.Flow) bool {
	for _, f := range flows {
		for _, s := range f.Steps {
			if strings.EqualFold(s.Kind, "event") {
				return true
			}
		}
	}
	return false
}

// flowEntityTable finds f's Create step and returns its declared
// entity_table directly — a flow's entity table is already explicit in
// its own step graph, unlike resource_table/event_table which may need
// the TableSpecification fallback.
func flowEntityTable(f schema.Flow) (string, *schema.CreateConfig, error) {
	for _, s := range f.Steps {
		if s.CreateConfig != nil {
			return s.CreateConfig.EntityTable, s.CreateConfig, nil
		}
	}
	return "", nil, fmt.Errorf("flow has no create step")
}

// parseStartDate accepts either a date-only or a full RFC3339 ISO-8601
// start_date, per spec.md §6's "start_date (ISO-8601)".
func parseStartDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised start_date %q", s)
}

// collect performs the Orchestrator's end-of-run cleanup — release
// remaining allocations, gather metrics — which must run on every exit
// path (spec.md §4.12). It never returns an error: a cleanup failure is
// logged, not propagated, since the run itself has already finished.
func collect(ctx context.Context, sched *clock.Scheduler, sim *schema.SimulationConfig, st *store.Store, db *schema.DatabaseConfig, pool *resource.Pool, queues *queue.Manager, terminationReason string) *Result {
	released := pool.ReleaseOutstanding()
	if len(released) > 0 {
		log := logger.NewDefault("orchestrator")
		log.WithRun(ctx).WithField("count", len(released)).Info("released outstanding resource allocations at run end")
	}

	now := sched.Now()
	baseUnits := now / sim.MinutesPerUnit()

	state := termination.NewStoreState(st, db, sched, sim)
	entityCount, err := state.CountEntities(ctx, "")
	if err != nil {
		logger.NewDefault("orchestrator").WithRun(ctx).WithError(err).Warn("could not count entities at run end, reporting 0")
		entityCount = 0
	}
	processedEvents, err := state.CountEvents(ctx, "")
	if err != nil {
		logger.NewDefault("orchestrator").WithRun(ctx).WithError(err).Warn("could not count events at run end, reporting 0")
		processedEvents = 0
	}

	resourceStats := pool.Stats()
	byResource := make(map[string]float64, len(resourceStats))
	totalAllocations := 0
	currentlyAllocated := 0
	for _, s := range resourceStats {
		byResource[fmt.Sprintf("%s:%v", s.Table, s.ID)] = s.UtilizationPercent
		totalAllocations += s.AllocationCount
	}
	availableByType := pool.Available("")
	currentlyAllocated = len(resourceStats) - len(availableByType)
	if currentlyAllocated < 0 {
		currentlyAllocated = 0
	}

	perQueue := make(map[string]QueueStatEntry)
	for name, summary := range queues.Statistics() {
		perQueue[name] = QueueStatEntry{
			QueueType:      summary.Discipline,
			TotalProcessed: summary.TotalProcessed,
			CurrentLength:  summary.CurrentLength,
			MaxLength:      summary.MaxLength,
			AvgWaitTime:    summary.AvgWaitTime,
			MaxWaitTime:    summary.MaxWaitTime,
			TotalWaitTime:  summary.TotalWaitTime,
		}
	}

	result := &Result{
		SimulationTimeMinutes:   now,
		SimulationTimeBaseUnits: baseUnits,
		BaseTimeUnit:            sim.BaseTimeUnit,
		TerminationReason:       terminationReason,
		EntityCount:             entityCount,
		// entities_processed reuses the same row-count proxy as
		// entity_count rather than a separate completed-walk tally — see
		// termination.StoreState's doc comment: writes are synchronous and
		// rows are never deleted, so "created" and "processed" coincide.
		EntitiesProcessed: entityCount,
		ProcessedEvents:   processedEvents,
		ResourceUtilization: ResourceUtilization{
			ByResource:         byResource,
			ByType:             pool.TypeUtilization(),
			CurrentlyAllocated: currentlyAllocated,
			TotalAllocations:   totalAllocations,
			TotalResources:     len(resourceStats),
		},
		QueueStatistics: QueueStatisticsSummary{PerQueue: perQueue},
	}

	if m := metrics.Global(); m != nil {
		publish(m, result, resourceStats, availableByType)
	}

	return result
}

// publish mirrors result onto the process-wide Prometheus registry, for a
// CLI entry point that opted into metrics export via
// RuntimeConfig.MetricsEnabled.
func publish(m *metrics.Metrics, result *Result, resourceStats []resource.ResourceStats, available []*resource.Resource) {
	m.EntityCount.Set(float64(result.EntityCount))
	m.EntitiesProcessed.Set(float64(result.EntitiesProcessed))
	m.ProcessedEvents.Set(float64(result.ProcessedEvents))
	m.SimulationTime.Set(result.SimulationTimeBaseUnits)

	totalByTable := make(map[string]int)
	freeByTable := make(map[string]int)
	for _, s := range resourceStats {
		totalByTable[s.Table]++
	}
	for _, r := range available {
		freeByTable[r.Table]++
	}
	for table, total := range totalByTable {
		m.SetResourceStats(table, total-freeByTable[table], total)
	}

	for queueName, entry := range result.QueueStatistics.PerQueue {
		m.SetQueueStats(queueName, entry.CurrentLength, entry.AvgWaitTime, entry.MaxWaitTime, entry.TotalProcessed)
	}
}
