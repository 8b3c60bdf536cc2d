package resource

import (
	"context"
	"strings"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
)

// acquisition tracks one in-flight Acquire call so a later cancellation
// can unwind whatever has already been grabbed, per the "already-acquired
// resources in this call must be returned before propagating" rule.
type acquisition struct {
	pool          *Pool
	allocationKey string
	want          int
	held          []*Resource
	cancelled     bool
	done          func([]*Resource, error)
	finished      bool
}

func (a *acquisition) finish(resources []*Resource, err error) {
	if a.finished {
		return
	}
	a.finished = true
	a.done(resources, err)
}

// cancel returns every resource already held by this acquisition back to
// the pool and prevents any still-pending continuation from completing
// it.
func (a *acquisition) cancel() {
	if a.finished {
		return
	}
	a.cancelled = true
	for _, res := range a.held {
		a.pool.releaseOne(res)
	}
	a.held = nil
	a.finish(nil, simerrors.AllocationInterrupted(a.allocationKey, nil))
}

// Acquire requests every resource named by requirements for allocationKey
// (conventionally "<flowID>:<eventID>", per the entry in DESIGN.md on
// legacy release-key matching). Resources already available are taken
// immediately; any requirement whose type has nothing free suspends the
// request on that bucket's wait queue and, when a queue name is given,
// notifies qm so the waiting entity is visible there too.
//
// done is invoked exactly once, either synchronously (when everything is
// immediately available) or later as the scheduler drains matched
// waiters. Acquire returns a cancel function: calling it before done has
// fired unwinds any partial allocation and reports
// simerrors.AllocationInterrupted instead.
func (p *Pool) Acquire(ctx context.Context, allocationKey string, requirements []requirementSpec, entity EntityContext, qm QueueManager, done func([]*Resource, error)) func() {
	a := &acquisition{pool: p, allocationKey: allocationKey, want: len(requirements), done: done}

	remaining := len(requirements)
	if remaining == 0 {
		a.finish(nil, nil)
		return func() {}
	}

	for _, req := range requirements {
		p.acquireOne(ctx, a, req, entity, qm, &remaining)
		if a.finished {
			return func() { a.cancel() }
		}
	}
	return func() { a.cancel() }
}

// requirementSpec is the resolved (table, type, queue) a single resource
// requirement asks for, after its count formula/literal has already been
// expanded into one requirementSpec per unit.
type requirementSpec struct {
	ResourceTable string
	Type          string
	Queue         string
}

func (p *Pool) acquireOne(ctx context.Context, a *acquisition, req requirementSpec, entity EntityContext, qm QueueManager, remaining *int) {
	bucket := bucketKey(req.ResourceTable, req.Type)

	onGot := func(queued bool, res *Resource) {
		if a.cancelled || a.finished {
			p.putAvailable(res)
			return
		}
		if queued && req.Queue != "" && qm != nil {
			// Dequeue the same entry that was enqueued below, exactly once,
			// now that the first of its requirement's resources is free.
			qm.Dequeue(ctx, req.Queue)
		}
		p.markAllocated(res)
		a.held = append(a.held, res)
		p.allocations[a.allocationKey] = append(p.allocations[a.allocationKey], res)
		*remaining--
		if *remaining == 0 {
			p.recordHistory(a.allocationKey, a.held, "allocate")
			a.finish(a.held, nil)
		}
	}

	if res := p.takeAvailable(bucket); res != nil {
		onGot(false, res)
		return
	}

	if req.Queue != "" && qm != nil {
		qm.Enqueue(ctx, req.Queue, entity.EntityID, entity.EntityTable, entity.Attributes)
	}
	p.waitFor(bucket, func(res *Resource) { onGot(true, res) })
}

// Release returns every resource held under allocationKey to the pool.
// If nothing is found under that exact key, it falls back to matching
// any allocation key ending in "_<allocationKey>" — the legacy
// event-id-only key shape used before allocation keys were namespaced by
// flow (Open Question decision #4).
func (p *Pool) Release(allocationKey string) ([]*Resource, error) {
	resources, ok := p.allocations[allocationKey]
	matchedKey := allocationKey
	if !ok {
		for key, held := range p.allocations {
			if strings.HasSuffix(key, "_"+allocationKey) {
				resources, matchedKey, ok = held, key, true
				break
			}
		}
	}
	if !ok {
		return nil, simerrors.AllocationNotFound(allocationKey)
	}
	delete(p.allocations, matchedKey)
	for _, res := range resources {
		p.releaseOne(res)
	}
	p.recordHistory(matchedKey, resources, "release")
	return resources, nil
}
