package steps

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/entity"
	"github.com/R3E-Network/eventsim/internal/engine/queue"
	"github.com/R3E-Network/eventsim/internal/engine/resource"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/internal/engine/tracker"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

// drain pumps the scheduler to completion, the way the orchestrator's run
// loop would — step processor continuations never run inline, only once
// Step is called.
func drain(sched *clock.Scheduler) {
	for sched.Pending() {
		sched.Step()
	}
}

func testDatabaseConfig() *schema.DatabaseConfig {
	return &schema.DatabaseConfig{
		Entities: []schema.TableConfig{
			{
				Name: "customers",
				Type: "entity",
				Attributes: []schema.AttributeConfig{
					{Name: "customer_id", Type: "pk"},
					{Name: "balance", Type: "decimal(10,2)"},
					{Name: "tier", Type: "varchar"},
				},
			},
			{
				Name: "orders",
				Type: "event",
				Attributes: []schema.AttributeConfig{
					{Name: "order_id", Type: "pk"},
					{Name: "customer_id", Type: "entity_id"},
					{Name: "event_type", Type: "event_type"},
				},
			},
			{
				Name: "agents",
				Type: "resource",
				Attributes: []schema.AttributeConfig{
					{Name: "agent_id", Type: "pk"},
					{Name: "role", Type: "varchar"},
				},
			},
		},
	}
}

// newTestDeps builds a fully wired Deps over an in-process sqlite store,
// mirroring resource.newTestPool's harness but assembling every C1-C8
// component the steps package depends on.
func newTestDeps(t *testing.T, sim *schema.SimulationConfig) (*Deps, *store.Store) {
	t.Helper()
	db := testDatabaseConfig()
	path := filepath.Join(t.TempDir(), "steps-test.db")
	cfg := config.StoreConfig{Path: path, MigrateOnStart: true, BusyTimeoutMS: 2000, MaxRetryAttempts: 3}
	log := logger.NewDefault("steps-test")

	st, err := store.Open(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.BuildUserSchema(context.Background(), db))

	resolver := schema.NewColumnResolver(db)
	sched := clock.New()
	dist := distribution.New(1)
	startDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if sim == nil {
		sim = &schema.SimulationConfig{BaseTimeUnit: "minutes"}
	}

	entities := entity.New(db, sim, resolver, st, dist, sched, startDate, 1)
	resources := resource.New(sched, resolver, dist)
	queues := queue.New(sched, st, startDate, sim.EventSimulation.Queues)
	trk := tracker.New(st, resolver, db, startDate)

	return &Deps{
		Sched:     sched,
		Dist:      dist,
		Resolver:  resolver,
		Store:     st,
		Entities:  entities,
		Resources: resources,
		Queues:    queues,
		Tracker:   trk,
		Sim:       sim,
		Log:       log,
		StartDate: startDate,
		Rng:       rand.New(rand.NewSource(1)),
	}, st
}

// formulaValue builds a FormulaOrSpec from a bare formula string, the way
// it would be parsed out of a YAML document's duration/interarrival_time
// field.
func formulaValue(t *testing.T, formula string) schema.FormulaOrSpec {
	t.Helper()
	var f schema.FormulaOrSpec
	require.NoError(t, yaml.Unmarshal([]byte(formula), &f))
	return f
}

// fixedMinutes is a deterministic duration/interarrival formula of n
// minutes, for tests that need predictable scheduling.
func fixedMinutes(t *testing.T, n int) schema.FormulaOrSpec {
	t.Helper()
	return formulaValue(t, fmt.Sprintf("FIXED(%d)", n))
}

// fixedSource is a rand.Source that always reports the same Int63 value,
// letting tests pin exactly what Rand.Float64() returns.
type fixedSource struct{ v int64 }

func (s fixedSource) Int63() int64 { return s.v }
func (s fixedSource) Seed(int64)   {}

// testRng returns a *rand.Rand whose Float64() always returns draw.
func testRng(draw float64) *rand.Rand {
	return rand.New(fixedSource{v: int64(draw * (1 << 63))})
}
