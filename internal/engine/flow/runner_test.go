package flow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/entity"
	"github.com/R3E-Network/eventsim/internal/engine/queue"
	"github.com/R3E-Network/eventsim/internal/engine/resource"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/steps"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/internal/engine/tracker"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

func drain(sched *clock.Scheduler) {
	for sched.Pending() {
		sched.Step()
	}
}

func testDB() *schema.DatabaseConfig {
	return &schema.DatabaseConfig{
		Entities: []schema.TableConfig{
			{
				Name: "customers",
				Type: "entity",
				Attributes: []schema.AttributeConfig{
					{Name: "customer_id", Type: "pk"},
					{Name: "balance", Type: "decimal(10,2)"},
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
		},
	}
}

func newTestRunner(t *testing.T, sim *schema.SimulationConfig) (*Runner, *steps.Deps, *store.Store) {
	t.Helper()
	db := testDB()
	path := filepath.Join(t.TempDir(), "flow-test.db")
	cfg := config.StoreConfig{Path: path, MigrateOnStart: true, BusyTimeoutMS: 2000, MaxRetryAttempts: 3}
	log := logger.NewDefault("flow-test")

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

	deps := &steps.Deps{
		Sched:     sched,
		Dist:      dist,
		Resolver:  resolver,
		Store:     st,
		Entities:  entity.New(db, sim, resolver, st, dist, sched, startDate, 1),
		Resources: resource.New(sched, resolver, dist),
		Queues:    queue.New(sched, st, startDate, nil),
		Tracker:   tracker.New(st, resolver, db, startDate),
		Sim:       sim,
		Log:       log,
		StartDate: startDate,
	}

	factory := steps.NewFactory(deps, steps.NewStatusTracker())
	return New(factory), deps, st
}

func formula(t *testing.T, f string) schema.FormulaOrSpec {
	t.Helper()
	var out schema.FormulaOrSpec
	require.NoError(t, yaml.Unmarshal([]byte(f), &out))
	return out
}

func TestRunnerWalksEventThenAssignThenRelease(t *testing.T) {
	r, deps, st := newTestRunner(t, nil)
	customerID, err := deps.Entities.Create(context.Background(), "customers", store.Row{"balance": 10.0})
	require.NoError(t, err)

	flow := schema.Flow{
		FlowID: "order-flow",
		Steps: []schema.Step{
			{StepID: "place_order", Kind: "event", NextStep: "update_balance", EventConfig: &schema.EventConfig{
				Name: "order_placed", Duration: formula(t, "FIXED(5)"),
			}},
			{StepID: "update_balance", Kind: "assign", NextStep: "done", AssignConfig: &schema.AssignConfig{
				Table: "customers", Column: "balance", Expression: "balance - 10",
			}},
			{StepID: "done", Kind: "release"},
		},
	}
	def := NewDefinition(flow, "customers", "orders")

	r.Start(context.Background(), def, customerID, "place_order")
	drain(deps.Sched)

	row, found, err := st.GetRow(context.Background(), "customers", "customer_id", customerID)
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.0, row["balance"], 0.0001)

	orderRows, err := st.Rows(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, orderRows, 1)
}

func TestRunnerEndsOnUnresolvedNextStep(t *testing.T) {
	r, deps, _ := newTestRunner(t, nil)
	customerID, err := deps.Entities.Create(context.Background(), "customers", store.Row{"balance": 10.0})
	require.NoError(t, err)

	flow := schema.Flow{
		FlowID: "dead-end-flow",
		Steps: []schema.Step{
			{StepID: "only", Kind: "event", NextStep: "nowhere", EventConfig: &schema.EventConfig{
				Name: "order_placed", Duration: formula(t, "FIXED(1)"),
			}},
		},
	}
	def := NewDefinition(flow, "customers", "orders")

	r.Start(context.Background(), def, customerID, "only")
	drain(deps.Sched)
	// "nowhere" doesn't resolve within the flow's steps, so the walk ends
	// quietly instead of panicking — no event left pending.
	assert.False(t, deps.Sched.Pending())
}

func TestRunnerDoesNothingForEmptyStartStep(t *testing.T) {
	r, deps, _ := newTestRunner(t, nil)
	def := NewDefinition(schema.Flow{FlowID: "f"}, "customers", "orders")
	r.Start(context.Background(), def, int64(1), "")
	drain(deps.Sched)
	assert.False(t, deps.Sched.Pending())
}
