// Package queue implements the Queue Manager (C7): the four Arena-style
// disciplines (FIFO, LIFO, LowAttribute, HighAttribute), wait-time
// accounting, and a persisted entry/exit activity log, grounded on
// original_source/python/src/simulation/managers/queue_manager.py.
package queue

import (
	"container/heap"
	"context"
	"math"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// Entry is one entity waiting in a queue, carrying the attribute
// snapshot it entered with so priority disciplines can sort on it.
type Entry struct {
	EntityID    any
	EntityTable string
	Attributes  store.Row
	EntryTime   float64
	Priority    float64
}

type stats struct {
	totalEntries  int
	totalExits    int
	totalWaitTime float64
	maxWaitTime   float64
	maxLength     int
	waitTimes     []float64
}

// queueImpl is the per-discipline backing structure: FIFO/LIFO keep a
// plain slice, LowAttribute/HighAttribute keep a priorityHeap.
type queueImpl struct {
	cfg   schema.QueueConfig
	fifo  []*Entry // FIFO and LIFO both use this, differing only in which end Dequeue pops
	heap  *priorityHeap
	stats stats
}

func (q *queueImpl) length() int {
	if q.heap != nil {
		return q.heap.Len()
	}
	return len(q.fifo)
}

// Manager owns every declared queue by name.
type Manager struct {
	sched     *clock.Scheduler
	store     *store.Store
	startDate time.Time
	queues    map[string]*queueImpl
}

// New builds a Manager with one queueImpl per declared queue.
func New(sched *clock.Scheduler, st *store.Store, startDate time.Time, configs []schema.QueueConfig) *Manager {
	m := &Manager{sched: sched, store: st, startDate: startDate, queues: make(map[string]*queueImpl, len(configs))}
	for _, cfg := range configs {
		q := &queueImpl{cfg: cfg}
		if cfg.Discipline == "LowAttribute" || cfg.Discipline == "HighAttribute" {
			q.heap = &priorityHeap{}
			heap.Init(q.heap)
		}
		m.queues[cfg.Name] = q
	}
	return m
}

// Length reports how many entities currently wait in queueName (0 if the
// queue doesn't exist).
func (m *Manager) Length(queueName string) int {
	q, ok := m.queues[queueName]
	if !ok {
		return 0
	}
	return q.length()
}

func derivePriority(cfg schema.QueueConfig, attrs store.Row) float64 {
	value, ok := lookupAttribute(cfg.PriorityExpr, attrs)
	switch cfg.Discipline {
	case "LowAttribute":
		if !ok {
			return math.Inf(1)
		}
		return value
	case "HighAttribute":
		if !ok {
			return 0
		}
		return -value // negate: the min-heap becomes a max-heap on the raw attribute
	default:
		return 0
	}
}

// lookupAttribute resolves a (possibly nested) attribute path: a bare
// name is a direct map lookup, anything containing "$" or "." is evaluated
// as a JSONPath expression against attrs (SPEC_FULL's C7 priority-extraction
// note).
func lookupAttribute(expr string, attrs store.Row) (float64, bool) {
	if expr == "" {
		return 0, false
	}
	var raw any
	if containsJSONPath(expr) {
		v, err := jsonpath.Get(expr, map[string]any(attrs))
		if err != nil {
			return 0, false
		}
		raw = v
	} else {
		v, ok := attrs[expr]
		if !ok {
			return 0, false
		}
		raw = v
	}
	return asFloat(raw)
}

func containsJSONPath(expr string) bool {
	for _, r := range expr {
		if r == '$' || r == '.' {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Enqueue adds an entity to queueName per its declared discipline,
// recording an "entry" activity row. Unknown queue names are a no-op, per
// the Python implementation's "implicit queueing" fallback.
func (m *Manager) Enqueue(ctx context.Context, queueName string, entityID any, entityTable string, attrs store.Row) {
	q, ok := m.queues[queueName]
	if !ok {
		return
	}

	lengthBefore := q.length()
	entry := &Entry{EntityID: entityID, EntityTable: entityTable, Attributes: attrs, EntryTime: m.sched.Now()}
	entry.Priority = derivePriority(q.cfg, attrs)

	switch q.cfg.Discipline {
	case "FIFO", "LIFO":
		q.fifo = append(q.fifo, entry)
	default: // LowAttribute, HighAttribute
		heap.Push(q.heap, entry)
	}

	lengthAfter := q.length()
	q.stats.totalEntries++
	if lengthAfter > q.stats.maxLength {
		q.stats.maxLength = lengthAfter
	}

	m.logActivity(ctx, queueName, entityID, entityTable, "entry", entry.Priority, lengthBefore, lengthAfter, nil)
}

// DequeueEntry removes and returns the next entry per queueName's
// discipline, recording an "exit" activity row with the computed wait
// time. Reports false if the queue is empty or unknown.
func (m *Manager) DequeueEntry(ctx context.Context, queueName string) (*Entry, bool) {
	q, ok := m.queues[queueName]
	if !ok {
		return nil, false
	}

	lengthBefore := q.length()
	var entry *Entry

	switch q.cfg.Discipline {
	case "FIFO":
		if len(q.fifo) == 0 {
			return nil, false
		}
		entry = q.fifo[0]
		q.fifo = q.fifo[1:]
	case "LIFO":
		if len(q.fifo) == 0 {
			return nil, false
		}
		last := len(q.fifo) - 1
		entry = q.fifo[last]
		q.fifo = q.fifo[:last]
	default:
		if q.heap.Len() == 0 {
			return nil, false
		}
		entry = heap.Pop(q.heap).(*Entry)
	}

	lengthAfter := q.length()
	waitTime := m.sched.Now() - entry.EntryTime
	q.stats.totalExits++
	q.stats.totalWaitTime += waitTime
	if waitTime > q.stats.maxWaitTime {
		q.stats.maxWaitTime = waitTime
	}
	q.stats.waitTimes = append(q.stats.waitTimes, waitTime)

	m.logActivity(ctx, queueName, entry.EntityID, entry.EntityTable, "exit", entry.Priority, lengthBefore, lengthAfter, &waitTime)

	return entry, true
}

// Dequeue satisfies resource.QueueManager: it performs the same removal
// as DequeueEntry but reports only whether an entry was removed, for
// callers (the Resource Pool's Acquire) that only need the queue-side
// bookkeeping to happen, not the entry itself.
func (m *Manager) Dequeue(ctx context.Context, queueName string) bool {
	_, ok := m.DequeueEntry(ctx, queueName)
	return ok
}

func (m *Manager) logActivity(ctx context.Context, queueName string, entityID any, entityTable, action string, priority float64, lengthBefore, lengthAfter int, waitTime *float64) {
	if m.store == nil {
		return
	}
	now := m.sched.Now()
	row := store.Row{
		"queue_name":           queueName,
		"entity_id":            entityID,
		"entity_table":         entityTable,
		"action":               action,
		"simulation_time":      now,
		"simulation_datetime":  m.startDate.Add(time.Duration(now * float64(time.Minute))).UTC().Format(time.RFC3339),
		"priority":             priority,
		"queue_length_before":  lengthBefore,
		"queue_length_after":   lengthAfter,
	}
	if waitTime != nil {
		row["wait_time"] = *waitTime
	}
	_, _ = m.store.Insert(ctx, "sim_queue_activity", "id", row, false)
}
