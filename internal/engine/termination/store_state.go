package termination

import (
	"context"
	"fmt"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/internal/engine/clock"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// StoreState is the production State: it counts rows directly against
// the persistence adapter rather than keeping a separate in-memory
// counter, since every created entity and every processed event is
// already a durable row by the time the monitor polls.
type StoreState struct {
	store *store.Store
	db    *schema.DatabaseConfig
	sched *clock.Scheduler
	sim   *schema.SimulationConfig

	entityTables []string
	eventTables  []string
}

// NewStoreState indexes db's entity and event tables once at
// construction time.
func NewStoreState(st *store.Store, db *schema.DatabaseConfig, sched *clock.Scheduler, sim *schema.SimulationConfig) *StoreState {
	s := &StoreState{store: st, db: db, sched: sched, sim: sim}
	for _, t := range db.Entities {
		switch t.Type {
		case "entity":
			s.entityTables = append(s.entityTables, t.Name)
		case "event":
			s.eventTables = append(s.eventTables, t.Name)
		}
	}
	return s
}

// NowInBaseUnit converts the scheduler's virtual minutes into the
// configured base time unit (MinutesPerUnit divides, it never
// multiplies — see schema.SimulationConfig.MinutesPerUnit).
func (s *StoreState) NowInBaseUnit() float64 {
	return s.sched.Now() / s.sim.MinutesPerUnit()
}

// CountEntities counts rows in table, or sums rows across every entity
// table when table is "".
func (s *StoreState) CountEntities(ctx context.Context, table string) (int, error) {
	tables := s.entityTables
	if table != "" {
		tables = []string{table}
	}
	return s.countRows(ctx, tables)
}

// CountEvents sums rows across every event table. table is accepted by
// the State interface for forward compatibility but never consulted —
// see the design note in DESIGN.md.
func (s *StoreState) CountEvents(ctx context.Context, table string) (int, error) {
	return s.countRows(ctx, s.eventTables)
}

func (s *StoreState) countRows(ctx context.Context, tables []string) (int, error) {
	total := 0
	for _, t := range tables {
		v, err := s.store.Scalar(ctx, "SELECT COUNT(*) FROM "+t)
		if err != nil {
			return 0, simerrors.StoreReadFailed(t, err)
		}
		n, err := toInt(v)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("termination: unexpected COUNT(*) scalar type %T", v)
	}
}
