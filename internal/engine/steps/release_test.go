package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/eventsim/internal/engine/resource"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

func TestReleaseProcessorMarksEntityCompletedAndEndsFlow(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	status := NewStatusTracker()
	p := NewReleaseProcessor(deps, status)
	sc := StepContext{EntityID: int64(7), EntityTable: "customers"}

	var gotNext string
	var gotOK bool
	p.Process(context.Background(), sc, schema.Step{Kind: "release"}, func(n string, ok bool) { gotNext, gotOK = n, ok })
	drain(deps.Sched)

	assert.Equal(t, "Completed", status.Get(int64(7)))
	assert.Empty(t, gotNext)
	assert.False(t, gotOK, "Release is terminal: no next step to resolve")
}

func TestReleaseProcessorReleasesOnlyListedResourceTables(t *testing.T) {
	deps, st := newTestDeps(t, nil)
	_, err := st.Insert(context.Background(), "agents", "agent_id", store.Row{"role": "agent"}, false)
	require.NoError(t, err)
	require.NoError(t, deps.Resources.Load(context.Background(), st, "agents"))

	reqs, err := deps.Resources.ResolveRequirements([]schema.ResourceRequirement{
		{ResourceTable: "agents", Value: "agent", Count: countOf(t, 1)},
	})
	require.NoError(t, err)
	var acquired []*resource.Resource
	deps.Resources.Acquire(context.Background(), "held-by-entity-1", reqs, resource.EntityContext{EntityID: int64(1), EntityTable: "customers"}, deps.Queues, func(res []*resource.Resource, err error) {
		require.NoError(t, err)
		acquired = res
	})
	require.Len(t, acquired, 1)
	assert.Empty(t, deps.Resources.Available("agent"), "acquired resource should no longer be free")
	deps.Resources.AddToGroup(int64(1), defaultGroupID, acquired)

	status := NewStatusTracker()
	p := NewReleaseProcessor(deps, status)
	sc := StepContext{EntityID: int64(1), EntityTable: "customers"}
	step := schema.Step{
		Kind:          "release",
		ReleaseConfig: &schema.ReleaseConfig{ResourceTables: []string{"agents"}},
	}

	p.Process(context.Background(), sc, step, func(string, bool) {})
	drain(deps.Sched)

	assert.Len(t, deps.Resources.Available("agent"), 1, "listed resource table should be released back to the pool")
}

func TestReleaseProcessorCanHandle(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	p := NewReleaseProcessor(deps, NewStatusTracker())
	assert.True(t, p.CanHandle("release"))
	assert.True(t, p.CanHandle("RELEASE"))
	assert.False(t, p.CanHandle("event"))
}
