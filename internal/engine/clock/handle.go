package clock

// Handle represents a task whose completion other tasks may suspend on
// via `wait_for(task)` (§4.2).
type Handle struct {
	done    bool
	waiters []Func
}

// NewHandle returns a Handle for a not-yet-finished task.
func NewHandle() *Handle {
	return &Handle{}
}

// Finish marks the task complete and schedules every waiter's
// continuation to resume at the current virtual time.
func (h *Handle) Finish(s *Scheduler) {
	if h.done {
		return
	}
	h.done = true
	waiters := h.waiters
	h.waiters = nil
	for _, w := range waiters {
		s.ScheduleNow(w)
	}
}

// Done reports whether Finish has already been called.
func (h *Handle) Done() bool { return h.done }

// WaitFor resumes continuation immediately (at the current virtual time)
// if h has already finished, otherwise registers it to run when Finish
// is called.
func (h *Handle) WaitFor(s *Scheduler, continuation Func) {
	if h.done {
		s.ScheduleNow(continuation)
		return
	}
	h.waiters = append(h.waiters, continuation)
}
