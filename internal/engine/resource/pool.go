// Package resource implements the Resource Pool (C6): a FilterStore-style
// pool of distinguishable typed resources (§9 Open Question decision #1 —
// the FilterStore variant, not the counting-semaphore variant), with
// predicate-filtered acquisition, group retention, and utilisation
// tracking, grounded on
// original_source/python/src/simulation/managers/resource_manager.py.
package resource

import (
	"context"
	"fmt"
	"strings"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// resourceTypeCandidates mirrors _find_resource_type_column's preference
// order.
var resourceTypeCandidates = []string{"role", "type", "resource_type", "category", "skill", "position"}

// Resource is one loaded row of the resource table, carrying its
// Column-Resolver-resolved identity and the discovered type tag.
type Resource struct {
	Table      string
	ID         any
	Type       string
	Attributes store.Row
}

func (r *Resource) key() string { return fmt.Sprintf("%s_%v", r.Table, r.ID) }

// EntityContext is the snapshot a requirement's optional queue needs to
// enqueue the waiting entity.
type EntityContext struct {
	EntityID    any
	EntityTable string
	Attributes  store.Row
}

// QueueManager is the subset of the Queue Manager (C7) a queued
// requirement interacts with.
type QueueManager interface {
	Enqueue(ctx context.Context, queueName string, entityID any, entityTable string, attributes store.Row)
	Dequeue(ctx context.Context, queueName string) bool
}

type utilStats struct {
	allocationCount int
	totalBusyTime   float64
	lastAllocated   *float64
	lastReleased    *float64
}

// HistoryEntry is one allocation/release event, mirroring
// allocation_history entries.
type HistoryEntry struct {
	AllocationKey string
	Time          float64
	Resources     []Resource
	Action        string // allocate, release, release_group
}

// Pool holds every resource loaded from the configured resource table,
// bucketed by (table, type) so Acquire's predicate — equality on those
// two fields, per resource_filter in the source — reduces to a map
// lookup instead of a linear scan.
type Pool struct {
	sched    *clock.Scheduler
	resolver *schema.ColumnResolver
	dist     *distribution.Engine

	available map[string][]*Resource
	waiters   map[string]*clock.WaitQueue[*Resource]
	all       map[string]*Resource
	util      map[string]*utilStats

	allocations      map[string][]*Resource
	groupAllocations map[string][]*Resource

	history []HistoryEntry
}

// New builds an empty pool; call Load to seed it from a resource table.
func New(sched *clock.Scheduler, resolver *schema.ColumnResolver, dist *distribution.Engine) *Pool {
	return &Pool{
		sched:            sched,
		resolver:         resolver,
		dist:             dist,
		available:        make(map[string][]*Resource),
		waiters:          make(map[string]*clock.WaitQueue[*Resource]),
		all:              make(map[string]*Resource),
		util:             make(map[string]*utilStats),
		allocations:      make(map[string][]*Resource),
		groupAllocations: make(map[string][]*Resource),
	}
}

func bucketKey(table, resourceType string) string { return table + "\x00" + resourceType }

// Load reads every row of resourceTable into the pool, resolving the
// primary key via the Column Resolver and auto-discovering the type
// column by the same name-preference order as the original
// _find_resource_type_column. A read failure here is fatal (§7: resource
// pool seed load).
func (p *Pool) Load(ctx context.Context, st *store.Store, resourceTable string) error {
	table, ok := p.resolver.Table(resourceTable)
	if !ok {
		return simerrors.UnknownTable(resourceTable)
	}
	typeColumn, err := resourceTypeColumn(table)
	if err != nil {
		return err
	}
	pkColumn, err := p.resolver.PrimaryKey(resourceTable)
	if err != nil {
		return err
	}

	rows, err := st.Rows(ctx, resourceTable)
	if err != nil {
		return simerrors.StoreFatal("load resources "+resourceTable, err)
	}

	for _, row := range rows {
		res := &Resource{
			Table:      resourceTable,
			ID:         row[pkColumn],
			Type:       fmt.Sprint(row[typeColumn]),
			Attributes: row,
		}
		p.available[bucketKey(res.Table, res.Type)] = append(p.available[bucketKey(res.Table, res.Type)], res)
		p.all[res.key()] = res
		p.util[res.key()] = &utilStats{}
	}
	return nil
}

func resourceTypeColumn(table schema.TableConfig) (string, error) {
	for _, candidate := range resourceTypeCandidates {
		for _, attr := range table.Attributes {
			if strings.EqualFold(attr.Name, candidate) {
				return attr.Name, nil
			}
		}
	}
	for _, attr := range table.Attributes {
		lower := strings.ToLower(attr.Name)
		for _, candidate := range resourceTypeCandidates {
			if strings.Contains(lower, candidate) {
				return attr.Name, nil
			}
		}
	}
	return "", simerrors.ResourceTypeColumnNotFound(table.Name)
}

func (p *Pool) takeAvailable(bucket string) *Resource {
	items := p.available[bucket]
	if len(items) == 0 {
		return nil
	}
	res := items[len(items)-1]
	p.available[bucket] = items[:len(items)-1]
	return res
}

// putAvailable hands res either straight to the oldest waiter for its
// bucket, or back onto the free list if nobody is waiting.
func (p *Pool) putAvailable(res *Resource) {
	bucket := bucketKey(res.Table, res.Type)
	if wq, ok := p.waiters[bucket]; ok && wq.TryMatch(p.sched, res) {
		return
	}
	p.available[bucket] = append(p.available[bucket], res)
}

func (p *Pool) waitFor(bucket string, resume func(*Resource)) {
	wq, ok := p.waiters[bucket]
	if !ok {
		wq = &clock.WaitQueue[*Resource]{}
		p.waiters[bucket] = wq
	}
	wq.Enqueue(clock.Waiter[*Resource]{
		Match:  func(*Resource) bool { return true },
		Resume: resume,
	})
}

func (p *Pool) markAllocated(res *Resource) {
	rec := p.util[res.key()]
	now := p.sched.Now()
	rec.lastAllocated = &now
	rec.allocationCount++
}

func (p *Pool) releaseOne(res *Resource) {
	rec := p.util[res.key()]
	now := p.sched.Now()
	if rec.lastAllocated != nil {
		rec.totalBusyTime += now - *rec.lastAllocated
	}
	rec.lastReleased = &now
	p.putAvailable(res)
}

func (p *Pool) recordHistory(allocationKey string, resources []*Resource, action string) {
	snap := make([]Resource, len(resources))
	for i, r := range resources {
		snap[i] = *r
	}
	p.history = append(p.history, HistoryEntry{
		AllocationKey: allocationKey,
		Time:          p.sched.Now(),
		Resources:     snap,
		Action:        action,
	})
}

// History returns every recorded allocation/release entry, optionally
// filtered to one allocation key.
func (p *Pool) History(allocationKey string) []HistoryEntry {
	if allocationKey == "" {
		return append([]HistoryEntry(nil), p.history...)
	}
	var out []HistoryEntry
	for _, h := range p.history {
		if h.AllocationKey == allocationKey {
			out = append(out, h)
		}
	}
	return out
}

// ReleaseOutstanding returns every resource still held under a live
// allocation key to the pool and clears the allocation table — the
// Orchestrator's end-of-run cleanup for events whose Event step was
// mid-duration when the termination monitor halted the scheduler
// (spec.md §5 "the orchestrator drains holdings via release_resources
// for each remaining allocation").
func (p *Pool) ReleaseOutstanding() []*Resource {
	var released []*Resource
	for key, resources := range p.allocations {
		delete(p.allocations, key)
		for _, res := range resources {
			p.releaseOne(res)
		}
		p.recordHistory(key, resources, "release")
		released = append(released, resources...)
	}
	return released
}

// Available returns a snapshot of currently free resources, optionally
// filtered by type.
func (p *Pool) Available(resourceType string) []*Resource {
	var out []*Resource
	for _, bucket := range p.available {
		for _, r := range bucket {
			if resourceType == "" || r.Type == resourceType {
				out = append(out, r)
			}
		}
	}
	return out
}
