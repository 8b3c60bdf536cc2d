// Package termination implements the Termination Evaluator (C11): a
// recursive-descent parser over TIME/ENTITIES/EVENTS boolean formulas,
// and an evaluator the Orchestrator polls every virtual minute.
// Grounded on original_source/python/src/simulation/termination/formula.py.
package termination

import (
	"context"
	"fmt"
)

// State is the simulation state a Condition reads to decide whether to
// terminate. The Orchestrator (C12) is the production implementation;
// tests supply a fake.
type State interface {
	// NowInBaseUnit returns the scheduler's current virtual time
	// converted into SimulationConfig.BaseTimeUnit.
	NowInBaseUnit() float64
	// CountEntities returns how many entities exist in table, or across
	// every entity table when table is "" (the '*' form).
	CountEntities(ctx context.Context, table string) (int, error)
	// CountEvents returns how many event-processing records exist,
	// across every event table. table is retained for forward
	// compatibility with per-table filtering but is not consulted —
	// see the design note in DESIGN.md.
	CountEvents(ctx context.Context, table string) (int, error)
}

// Condition is one node of a parsed termination formula.
type Condition interface {
	// Evaluate reports whether the condition currently holds and, if
	// so, a human-readable reason describing why.
	Evaluate(ctx context.Context, s State) (bool, string, error)
}

// TimeCondition is TIME(value): true once virtual time (in the
// configured base unit) reaches value.
type TimeCondition struct {
	Value float64
}

func (c TimeCondition) Evaluate(ctx context.Context, s State) (bool, string, error) {
	now := s.NowInBaseUnit()
	if now >= c.Value {
		return true, fmt.Sprintf("max_time_reached (%.2f unit)", now), nil
	}
	return false, "", nil
}

// EntitiesCondition is ENTITIES(table|'*', n): true once the entity
// count reaches n. Table == "" means the '*' (all tables) form.
type EntitiesCondition struct {
	Table string
	Value int
}

func (c EntitiesCondition) Evaluate(ctx context.Context, s State) (bool, string, error) {
	count, err := s.CountEntities(ctx, c.Table)
	if err != nil {
		return false, "", err
	}
	desc := "total entities"
	if c.Table != "" {
		desc = c.Table + " entities"
	}
	if count >= c.Value {
		return true, fmt.Sprintf("max_entities_reached (%d %s)", count, desc), nil
	}
	return false, "", nil
}

// EventsCondition is EVENTS([table,] n): true once the processed-event
// count reaches n. Table is accepted syntactically but, per spec.md
// §4.11, compared against the global counter regardless of its value.
type EventsCondition struct {
	Table string
	Value int
}

func (c EventsCondition) Evaluate(ctx context.Context, s State) (bool, string, error) {
	count, err := s.CountEvents(ctx, c.Table)
	if err != nil {
		return false, "", err
	}
	desc := "total events"
	if c.Table != "" {
		desc = c.Table + " events"
	}
	if count >= c.Value {
		return true, fmt.Sprintf("max_events_reached (%d %s)", count, desc), nil
	}
	return false, "", nil
}

// AndCondition is true only once both sides are true in the same poll.
type AndCondition struct {
	Left, Right Condition
}

func (c AndCondition) Evaluate(ctx context.Context, s State) (bool, string, error) {
	leftOK, leftDesc, err := c.Left.Evaluate(ctx, s)
	if err != nil {
		return false, "", err
	}
	rightOK, rightDesc, err := c.Right.Evaluate(ctx, s)
	if err != nil {
		return false, "", err
	}
	if leftOK && rightOK {
		return true, leftDesc + " AND " + rightDesc, nil
	}
	return false, "", nil
}

// OrCondition is true as soon as either side is true, left first.
type OrCondition struct {
	Left, Right Condition
}

func (c OrCondition) Evaluate(ctx context.Context, s State) (bool, string, error) {
	if ok, desc, err := c.Left.Evaluate(ctx, s); err != nil {
		return false, "", err
	} else if ok {
		return true, desc, nil
	}
	return c.Right.Evaluate(ctx, s)
}
