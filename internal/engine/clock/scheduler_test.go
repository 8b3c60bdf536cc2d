package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRunsInTimeOrder(t *testing.T) {
	s := New()
	var order []string

	s.Schedule(10, func() { order = append(order, "b") })
	s.Schedule(5, func() { order = append(order, "a") })
	s.Schedule(20, func() { order = append(order, "c") })

	for s.Step() {
	}

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestScheduleTieBreaksFIFO(t *testing.T) {
	s := New()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(0, func() { order = append(order, i) })
	}
	for s.Step() {
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestNowAdvancesToEventTime(t *testing.T) {
	s := New()
	var observed float64
	s.Schedule(15, func() { observed = s.Now() })
	s.Step()
	assert.Equal(t, 15.0, observed)
	assert.Equal(t, 15.0, s.Now())
}

func TestScheduleNowQueuesBehindSameInstantEvents(t *testing.T) {
	s := New()
	var order []string
	s.Schedule(5, func() {
		order = append(order, "first")
		s.ScheduleNow(func() { order = append(order, "resumed-same-instant") })
	})
	s.Schedule(5, func() { order = append(order, "second-at-same-time") })

	for s.Step() {
	}
	assert.Equal(t, []string{"first", "second-at-same-time", "resumed-same-instant"}, order)
}

func TestHaltStopsFurtherDispatch(t *testing.T) {
	s := New()
	ran := 0
	s.Schedule(1, func() {
		ran++
		s.Halt()
	})
	s.Schedule(2, func() { ran++ })

	for s.Step() {
	}
	assert.Equal(t, 1, ran)
	assert.True(t, s.Halted())
	assert.False(t, s.Pending())
}

func TestPeekTimeReflectsNextEvent(t *testing.T) {
	s := New()
	_, ok := s.PeekTime()
	assert.False(t, ok)

	s.Schedule(7, func() {})
	when, ok := s.PeekTime()
	require.True(t, ok)
	assert.Equal(t, 7.0, when)
}

func TestHandleWaitForResumesAfterFinish(t *testing.T) {
	s := New()
	h := NewHandle()
	resumed := false

	s.Schedule(0, func() {
		h.WaitFor(s, func() { resumed = true })
	})
	s.Schedule(5, func() { h.Finish(s) })

	for s.Step() {
	}
	assert.True(t, resumed)
	assert.True(t, h.Done())
}

func TestHandleWaitForAlreadyFinishedResumesImmediately(t *testing.T) {
	s := New()
	h := NewHandle()
	h.Finish(s)

	resumed := false
	h.WaitFor(s, func() { resumed = true })
	for s.Step() {
	}
	assert.True(t, resumed)
}

func TestWaitQueueMatchesFIFOFirstSatisfyingWaiter(t *testing.T) {
	s := New()
	q := &WaitQueue[int]{}
	var resumedWith []int

	q.Enqueue(Waiter[int]{
		Match:  func(item int) bool { return item > 100 },
		Resume: func(item int) { resumedWith = append(resumedWith, item) },
	})
	q.Enqueue(Waiter[int]{
		Match:  func(item int) bool { return true },
		Resume: func(item int) { resumedWith = append(resumedWith, item*10) },
	})

	matched := q.TryMatch(s, 5)
	require.True(t, matched)
	for s.Step() {
	}
	assert.Equal(t, []int{50}, resumedWith)
	assert.Equal(t, 1, q.Len())
}

func TestWaitQueueNoMatchLeavesWaitersIntact(t *testing.T) {
	s := New()
	q := &WaitQueue[int]{}
	q.Enqueue(Waiter[int]{Match: func(item int) bool { return item > 100 }, Resume: func(int) {}})

	matched := q.TryMatch(s, 5)
	assert.False(t, matched)
	assert.Equal(t, 1, q.Len())
}
