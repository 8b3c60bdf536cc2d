// Package clock implements the engine's virtual clock: a single-threaded
// cooperative event scheduler keyed on (virtual_time, sequence), per §4.2
// and the Design Notes' "tagged-state step state machine + scheduler
// queue" strategy. There are no goroutines on the hot path — a suspended
// task is just a callback sitting in the heap or on a waiter list, not a
// blocked thread, so real parallelism is never observable to flows.
package clock

import "container/heap"

// Func is a scheduled continuation: the code a suspended task runs when
// it resumes.
type Func func()

type event struct {
	time float64
	seq  int64
	fn   Func
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq // FIFO tie-break at equal virtual time
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler drives the virtual clock: a min-heap of pending events,
// dispatched one at a time, each run to completion before the next is
// popped.
type Scheduler struct {
	now    float64
	pq     eventHeap
	seq    int64
	halted bool
}

// New returns a Scheduler starting at virtual time 0.
func New() *Scheduler {
	s := &Scheduler{pq: make(eventHeap, 0)}
	heap.Init(&s.pq)
	return s
}

// Now returns the current virtual time.
func (s *Scheduler) Now() float64 { return s.now }

// Schedule enqueues fn to run at now+delta. delta must be ≥ 0; this is
// the `delay(Δ)` suspension primitive from §4.2.
func (s *Scheduler) Schedule(delta float64, fn Func) {
	if s.halted {
		return
	}
	s.seq++
	heap.Push(&s.pq, &event{time: s.now + delta, seq: s.seq, fn: fn})
}

// ScheduleNow enqueues fn to run at the current instant, after anything
// already queued for "now" — used to resume a task whose wait condition
// (acquire/wait_for) has just become satisfied, preserving FIFO order
// among everything ready at this virtual time.
func (s *Scheduler) ScheduleNow(fn Func) {
	s.Schedule(0, fn)
}

// Pending reports whether any event remains queued.
func (s *Scheduler) Pending() bool { return len(s.pq) > 0 }

// PeekTime returns the virtual time of the next scheduled event.
func (s *Scheduler) PeekTime() (float64, bool) {
	if len(s.pq) == 0 {
		return 0, false
	}
	return s.pq[0].time, true
}

// Step pops and runs exactly one event, advancing Now() to its scheduled
// time first. Returns false if the scheduler is halted or has nothing
// left to run.
func (s *Scheduler) Step() bool {
	if s.halted || len(s.pq) == 0 {
		return false
	}
	next := heap.Pop(&s.pq).(*event)
	s.now = next.time
	next.fn()
	return true
}

// Halt stops all further dispatch per §4.2's cancellation contract: no
// further events run, and anything still queued (tasks suspended on
// delay or acquire) is simply abandoned. Side effects already committed
// up to each task's last suspension point are retained in the output
// store — Halt does not roll anything back, it only stops forward
// progress.
func (s *Scheduler) Halt() {
	s.halted = true
	s.pq = s.pq[:0]
}

// Halted reports whether Halt has been called.
func (s *Scheduler) Halted() bool { return s.halted }
