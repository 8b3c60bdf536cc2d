package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

type routedArrival struct {
	flowID      string
	entityTable string
	entityID    any
	initialStep string
}

func TestCreateDriverStopsAtMaxEntities(t *testing.T) {
	sim := &schema.SimulationConfig{BaseTimeUnit: "minutes", DurationDays: 1000}
	deps, st := newTestDeps(t, sim)

	var routed []routedArrival
	router := func(_ context.Context, flowID, entityTable string, entityID any, initialStep string) {
		routed = append(routed, routedArrival{flowID, entityTable, entityID, initialStep})
	}

	driver := NewCreateDriver(deps, router)
	cfg := &schema.CreateConfig{
		EntityTable:      "customers",
		InterarrivalTime: fixedMinutes(t, 10),
		InitialStep:      "place_order",
		MaxEntities:      schema.MaxEntities{Count: 3},
	}

	driver.Start(context.Background(), "order-flow", cfg)
	drain(deps.Sched)

	assert.Len(t, routed, 3)
	for _, r := range routed {
		assert.Equal(t, "order-flow", r.flowID)
		assert.Equal(t, "customers", r.entityTable)
		assert.Equal(t, "place_order", r.initialStep)
	}

	rows, err := st.Rows(context.Background(), "customers")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCreateDriverUnboundedWhenMaxEntitiesZero(t *testing.T) {
	sim := &schema.SimulationConfig{BaseTimeUnit: "minutes", DurationDays: 0.05} // 72 minutes
	deps, _ := newTestDeps(t, sim)

	var count int
	router := func(context.Context, string, string, any, string) { count++ }

	driver := NewCreateDriver(deps, router)
	cfg := &schema.CreateConfig{
		EntityTable:      "customers",
		InterarrivalTime: fixedMinutes(t, 20),
		InitialStep:      "place_order",
	}

	driver.Start(context.Background(), "order-flow", cfg)
	drain(deps.Sched)

	assert.Equal(t, 4, count, "72 minutes of duration at a 20-minute interarrival should produce arrivals at t=0,20,40,60 then stop")
}

func TestCreateDriverDoesNothingWithoutConfig(t *testing.T) {
	deps, _ := newTestDeps(t, nil)
	driver := NewCreateDriver(deps, func(context.Context, string, string, any, string) {
		t.Fatal("router should not be called")
	})
	driver.Start(context.Background(), "flow", nil)
	drain(deps.Sched)
}
