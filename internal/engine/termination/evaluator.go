package termination

import (
	"context"

	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

// PollIntervalMinutes is how often the monitor re-checks its condition,
// matching the original's 1.0-minute check_interval
// (simulation/core/lifecycle/termination.py).
const PollIntervalMinutes = 1.0

// Monitor polls a parsed Condition every PollIntervalMinutes of virtual
// time and halts the scheduler once it is satisfied. Reason holds the
// human-readable description supplied by whichever Condition fired.
type Monitor struct {
	sched     *clock.Scheduler
	condition Condition
	state     State
	log       *logger.Logger

	Reason string
}

// NewMonitor builds a Monitor; condition is typically the result of
// Parse(formula), or DefaultFormula's parse result when none is
// configured.
func NewMonitor(sched *clock.Scheduler, condition Condition, state State, log *logger.Logger) *Monitor {
	return &Monitor{sched: sched, condition: condition, state: state, log: log}
}

// Start schedules the first poll immediately; it and every subsequent
// poll run entirely through scheduler continuations, never blocking.
func (m *Monitor) Start(ctx context.Context) {
	m.sched.Schedule(0, func() { m.poll(ctx) })
}

func (m *Monitor) poll(ctx context.Context) {
	if m.sched.Halted() {
		return
	}

	met, reason, err := m.condition.Evaluate(ctx, m.state)
	if err != nil {
		m.log.WithRun(ctx).WithError(err).Warn("termination monitor: evaluation failed, will retry at the next poll")
	} else if met {
		m.Reason = reason
		m.log.WithRun(ctx).WithField("reason", reason).Info("termination condition met, halting the scheduler")
		m.sched.Halt()
		return
	}

	m.sched.Schedule(PollIntervalMinutes, func() { m.poll(ctx) })
}
