package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue-test.db")
	cfg := config.StoreConfig{Path: path, MigrateOnStart: true, BusyTimeoutMS: 2000, MaxRetryAttempts: 3}
	s, err := store.Open(context.Background(), cfg, logger.NewDefault("queue-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFIFODequeuesInArrivalOrder(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "tellers", Discipline: "FIFO"}})

	m.Enqueue(context.Background(), "tellers", 1, "customers", nil)
	m.Enqueue(context.Background(), "tellers", 2, "customers", nil)
	m.Enqueue(context.Background(), "tellers", 3, "customers", nil)

	first, ok := m.DequeueEntry(context.Background(), "tellers")
	require.True(t, ok)
	assert.Equal(t, 1, first.EntityID)

	second, ok := m.DequeueEntry(context.Background(), "tellers")
	require.True(t, ok)
	assert.Equal(t, 2, second.EntityID)
}

func TestLIFODequeuesInReverseArrivalOrder(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "stack", Discipline: "LIFO"}})

	for i := 0; i < 5; i++ {
		m.Enqueue(context.Background(), "stack", i, "customers", nil)
	}

	for want := 4; want >= 0; want-- {
		entry, ok := m.DequeueEntry(context.Background(), "stack")
		require.True(t, ok)
		assert.Equal(t, want, entry.EntityID)
	}
}

func TestLowAttributeDequeuesSmallestFirst(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "triage", Discipline: "LowAttribute", PriorityExpr: "severity"}})

	m.Enqueue(context.Background(), "triage", "a", "patients", store.Row{"severity": 5.0})
	m.Enqueue(context.Background(), "triage", "b", "patients", store.Row{"severity": 1.0})
	m.Enqueue(context.Background(), "triage", "c", "patients", store.Row{"severity": 10.0})

	first, ok := m.DequeueEntry(context.Background(), "triage")
	require.True(t, ok)
	assert.Equal(t, "b", first.EntityID)

	second, ok := m.DequeueEntry(context.Background(), "triage")
	require.True(t, ok)
	assert.Equal(t, "a", second.EntityID)
}

func TestHighAttributeDequeuesLargestFirst(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "vip", Discipline: "HighAttribute", PriorityExpr: "tier"}})

	m.Enqueue(context.Background(), "vip", "a", "customers", store.Row{"tier": 1.0})
	m.Enqueue(context.Background(), "vip", "b", "customers", store.Row{"tier": 100.0})
	m.Enqueue(context.Background(), "vip", "c", "customers", store.Row{"tier": 10.0})

	order := []any{}
	for {
		entry, ok := m.DequeueEntry(context.Background(), "vip")
		if !ok {
			break
		}
		order = append(order, entry.EntityID)
	}
	assert.Equal(t, []any{"b", "c", "a"}, order)
}

func TestMissingPriorityAttributeYieldsInfinityForLowAttribute(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "q", Discipline: "LowAttribute", PriorityExpr: "missing"}})

	m.Enqueue(context.Background(), "q", "has-attr", "t", store.Row{"missing": 2.0})
	m.Enqueue(context.Background(), "q", "no-attr", "t", store.Row{})

	first, ok := m.DequeueEntry(context.Background(), "q")
	require.True(t, ok)
	assert.Equal(t, "has-attr", first.EntityID, "the entity with a concrete value dequeues before +inf")
}

func TestWaitTimeStatisticsTrackTotalsAndMax(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "tellers", Discipline: "FIFO"}})

	m.Enqueue(context.Background(), "tellers", 1, "customers", nil)
	sched.Schedule(5, func() {})
	sched.Step()

	_, ok := m.DequeueEntry(context.Background(), "tellers")
	require.True(t, ok)

	summary := m.Statistics()["tellers"]
	assert.Equal(t, 1, summary.TotalProcessed)
	assert.InDelta(t, 5.0, summary.MaxWaitTime, 0.001)
}

func TestDetailedStatisticsComputesPercentiles(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), []schema.QueueConfig{{Name: "tellers", Discipline: "FIFO"}})

	for i := 0; i < 20; i++ {
		m.Enqueue(context.Background(), "tellers", i, "customers", nil)
		_, ok := m.DequeueEntry(context.Background(), "tellers")
		require.True(t, ok)
	}

	detailed := m.DetailedStatistics("tellers")
	assert.False(t, detailed.NoData)
	assert.Equal(t, 20, detailed.TotalProcessed)
}

func TestEnqueueOnUnknownQueueIsANoOp(t *testing.T) {
	sched := clock.New()
	s := openTestStore(t)
	m := New(sched, s, time.Now(), nil)

	m.Enqueue(context.Background(), "nonexistent", 1, "customers", nil)
	assert.Equal(t, 0, m.Length("nonexistent"))
}
