package resource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

// drain pumps the scheduler to completion, the way the orchestrator's
// run loop would — continuations registered via ScheduleNow only run
// once Step is called, they never run inline.
func drain(sched *clock.Scheduler) {
	for sched.Pending() {
		sched.Step()
	}
}

func testAgentsConfig() *schema.DatabaseConfig {
	return &schema.DatabaseConfig{
		Entities: []schema.TableConfig{
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

func seedAgents(t *testing.T, s *store.Store, roles ...string) {
	t.Helper()
	for _, role := range roles {
		_, err := s.Insert(context.Background(), "agents", "agent_id", store.Row{"role": role}, false)
		require.NoError(t, err)
	}
}

func newTestPool(t *testing.T) (*Pool, *store.Store, *clock.Scheduler) {
	t.Helper()
	db := testAgentsConfig()
	path := filepath.Join(t.TempDir(), "resource-test.db")
	cfg := config.StoreConfig{Path: path, MigrateOnStart: true, BusyTimeoutMS: 2000, MaxRetryAttempts: 3}
	s, err := store.Open(context.Background(), cfg, logger.NewDefault("resource-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.BuildUserSchema(context.Background(), db))

	resolver := schema.NewColumnResolver(db)
	sched := clock.New()
	dist := distribution.New(1)
	return New(sched, resolver, dist), s, sched
}

func TestLoadBucketsResourcesByDiscoveredTypeColumn(t *testing.T) {
	p, s, _ := newTestPool(t)
	seedAgents(t, s, "agent", "agent", "supervisor")

	require.NoError(t, p.Load(context.Background(), s, "agents"))

	assert.Len(t, p.Available("agent"), 2)
	assert.Len(t, p.Available("supervisor"), 1)
	assert.Len(t, p.Available(""), 3)
}

func TestAcquireSatisfiesImmediatelyFromAvailablePool(t *testing.T) {
	p, s, _ := newTestPool(t)
	seedAgents(t, s, "agent")
	require.NoError(t, p.Load(context.Background(), s, "agents"))

	var got []*Resource
	var gotErr error
	cancel := p.Acquire(context.Background(), "flow:evt1", []requirementSpec{{ResourceTable: "agents", Type: "agent"}}, EntityContext{}, nil,
		func(resources []*Resource, err error) { got, gotErr = resources, err })
	_ = cancel

	require.NoError(t, gotErr)
	require.Len(t, got, 1)
	assert.Empty(t, p.Available("agent"))
}

func TestAcquireSuspendsUntilReleaseFreesAResource(t *testing.T) {
	p, s, sched := newTestPool(t)
	seedAgents(t, s, "agent")
	require.NoError(t, p.Load(context.Background(), s, "agents"))

	var first []*Resource
	p.Acquire(context.Background(), "flow:evt1", []requirementSpec{{ResourceTable: "agents", Type: "agent"}}, EntityContext{}, nil,
		func(resources []*Resource, err error) { first = resources })
	require.Len(t, first, 1)

	var second []*Resource
	resolved := false
	p.Acquire(context.Background(), "flow:evt2", []requirementSpec{{ResourceTable: "agents", Type: "agent"}}, EntityContext{}, nil,
		func(resources []*Resource, err error) { second = resources; resolved = true })
	assert.False(t, resolved, "second request should suspend while the only agent is held")

	_, err := p.Release("flow:evt1")
	require.NoError(t, err)
	drain(sched)

	assert.True(t, resolved)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestCancelUnwindsPartiallyHeldAcquisition(t *testing.T) {
	p, s, sched := newTestPool(t)
	seedAgents(t, s, "agent")
	require.NoError(t, p.Load(context.Background(), s, "agents"))

	resolved := false
	var finalErr error
	cancel := p.Acquire(context.Background(), "flow:evt1", []requirementSpec{
		{ResourceTable: "agents", Type: "agent"},
		{ResourceTable: "agents", Type: "agent"},
	}, EntityContext{}, nil, func(resources []*Resource, err error) { resolved = true; finalErr = err })

	assert.False(t, resolved, "only one of the two requested agents is available")

	cancel()
	drain(sched)

	assert.True(t, resolved)
	assert.Error(t, finalErr)
	assert.Len(t, p.Available("agent"), 1, "the one resource already grabbed must be returned on cancel")
}

func TestReleaseFallsBackToLegacyEventIDSuffixedKey(t *testing.T) {
	p, s, _ := newTestPool(t)
	seedAgents(t, s, "agent")
	require.NoError(t, p.Load(context.Background(), s, "agents"))

	p.Acquire(context.Background(), "legacyflow_evt42", []requirementSpec{{ResourceTable: "agents", Type: "agent"}}, EntityContext{}, nil,
		func(resources []*Resource, err error) {})

	resources, err := p.Release("evt42")
	require.NoError(t, err)
	assert.Len(t, resources, 1)
}

func TestGroupAllocationReleasesEverythingTogether(t *testing.T) {
	p, s, _ := newTestPool(t)
	seedAgents(t, s, "agent", "agent")
	require.NoError(t, p.Load(context.Background(), s, "agents"))

	var granted []*Resource
	p.Acquire(context.Background(), "flow:evt1", []requirementSpec{
		{ResourceTable: "agents", Type: "agent"},
		{ResourceTable: "agents", Type: "agent"},
	}, EntityContext{}, nil, func(resources []*Resource, err error) { granted = resources })
	require.Len(t, granted, 2)

	p.AddToGroup("entity-1", "shift", granted)
	assert.Len(t, p.GroupResources("entity-1", "shift"), 2)

	released := p.ReleaseGroup("entity-1", "shift")
	assert.Len(t, released, 2)
	assert.Len(t, p.Available("agent"), 2)
	assert.Empty(t, p.GroupResources("entity-1", "shift"))
}

func TestStatsReportsAllocationCountAndBusyTime(t *testing.T) {
	p, s, sched := newTestPool(t)
	seedAgents(t, s, "agent")
	require.NoError(t, p.Load(context.Background(), s, "agents"))

	p.Acquire(context.Background(), "flow:evt1", []requirementSpec{{ResourceTable: "agents", Type: "agent"}}, EntityContext{}, nil,
		func(resources []*Resource, err error) {})
	sched.Schedule(5, func() {})
	drain(sched)

	stats := p.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].AllocationCount)
	assert.InDelta(t, 5.0, stats[0].TotalBusyTime, 1e-9, "held since t=0, so 5 minutes busy at t=5")
}
