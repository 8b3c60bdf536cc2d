package clock

// Waiter is one task suspended on acquire(predicate, pool): Match reports
// whether item satisfies its predicate, and Resume is the continuation
// to run (at the current virtual time) once a matching item is found and
// atomically removed from the pool.
type Waiter[T any] struct {
	Match  func(item T) bool
	Resume func(item T)
}

// WaitQueue implements the `acquire(predicate, pool)` suspension
// primitive (§4.2) as a FIFO list of pending waiters, generic over the
// pool's item type so both the Resource Pool (C6) and any other
// predicate-filtered pool can embed it.
type WaitQueue[T any] struct {
	waiters []Waiter[T]
}

// Enqueue registers a new waiter at the back of the FIFO list.
func (q *WaitQueue[T]) Enqueue(w Waiter[T]) {
	q.waiters = append(q.waiters, w)
}

// Len reports how many tasks are currently suspended on this queue.
func (q *WaitQueue[T]) Len() int { return len(q.waiters) }

// TryMatch scans waiters in FIFO order and, for the first whose Match
// predicate is satisfied by item, removes it from the queue and schedules
// its Resume continuation via s at the current virtual time. Reports
// whether a waiter was matched.
func (q *WaitQueue[T]) TryMatch(s *Scheduler, item T) bool {
	for i, w := range q.waiters {
		if w.Match(item) {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			resume := w.Resume
			s.ScheduleNow(func() { resume(item) })
			return true
		}
	}
	return false
}
