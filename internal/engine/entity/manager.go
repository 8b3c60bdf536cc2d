// Package entity implements the Entity Manager (C5): entity creation with
// per-attribute generator dispatch, and the attribute update paths used by
// Assign steps and batch updates.
package entity

import (
	"context"
	"math/rand"
	"strings"
	"time"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/internal/engine/distribution"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// Clock is the subset of the scheduler's API the manager needs to stamp
// datetime columns at the current simulation time.
type Clock interface {
	Now() float64
}

// Manager creates and mutates entity rows, dispatching per-attribute
// generators declared in a database config and skipping attributes that a
// flow's Assign steps will populate later.
type Manager struct {
	db       *schema.DatabaseConfig
	resolver *schema.ColumnResolver
	store    *store.Store
	dist     *distribution.Engine
	clock    Clock

	startDate time.Time

	assignedByEntity map[string]map[string]bool

	rng *rand.Rand
}

// New builds a Manager, pre-computing the assigned-by-flow attribute sets
// from sim's Assign steps.
func New(db *schema.DatabaseConfig, sim *schema.SimulationConfig, resolver *schema.ColumnResolver, st *store.Store, dist *distribution.Engine, clk Clock, startDate time.Time, seed int64) *Manager {
	return &Manager{
		db:               db,
		resolver:         resolver,
		store:            st,
		dist:             dist,
		clock:            clk,
		startDate:        startDate,
		assignedByEntity: computeAssignedAttributes(sim),
		rng:              rand.New(rand.NewSource(seed)),
	}
}

// computeAssignedAttributes maps entity table -> set of attribute names
// written by some Assign step in the simulation config. Unlike the
// implicit "current entity" scheme an Assign step targets its table
// explicitly, so this is a direct scan rather than a per-flow join
// through Create steps.
func computeAssignedAttributes(sim *schema.SimulationConfig) map[string]map[string]bool {
	result := make(map[string]map[string]bool)
	if sim == nil {
		return result
	}
	for _, flow := range sim.EventSimulation.EventFlows.Flows {
		for _, step := range flow.Steps {
			if !strings.EqualFold(step.Kind, "assign") || step.AssignConfig == nil {
				continue
			}
			cfg := step.AssignConfig
			if cfg.Table == "" || cfg.Column == "" {
				continue
			}
			if result[cfg.Table] == nil {
				result[cfg.Table] = make(map[string]bool)
			}
			result[cfg.Table][cfg.Column] = true
		}
	}
	return result
}

// Create inserts a new row in entityTable. initialData overrides any
// generator for the attributes it sets. Returns the resolved primary key
// (a custom-generated value, or the store's autoincrement id).
func (m *Manager) Create(ctx context.Context, entityTable string, initialData store.Row) (any, error) {
	table, ok := m.resolver.Table(entityTable)
	if !ok {
		return nil, simerrors.UnknownTable(entityTable)
	}
	pkColumn, err := m.resolver.PrimaryKey(entityTable)
	if err != nil {
		return nil, err
	}

	pkAttr, hasPK := findAttribute(table, pkColumn)

	row := make(store.Row)
	var generatedPK any

	if hasPK && pkAttr.Generator != nil {
		rowIndex := 0
		if strings.EqualFold(pkAttr.Generator.Type, "template") {
			count, err := m.store.Scalar(ctx, "SELECT COUNT(*) FROM "+entityTable)
			if err == nil {
				rowIndex = toInt(count)
			}
		}
		value, err := m.generateValue(*pkAttr.Generator, rowIndex)
		if err != nil {
			return nil, err
		}
		generatedPK = coerceToType(value, pkAttr.Type)
		row[pkColumn] = generatedPK
	}

	for k, v := range initialData {
		row[k] = v
	}

	assigned := m.assignedByEntity[entityTable]

	for _, attr := range table.Attributes {
		if attr.Name == pkColumn {
			continue
		}
		if _, set := row[attr.Name]; set {
			continue
		}

		if attr.Generator != nil && strings.EqualFold(attr.Generator.Type, "foreign_key") {
			value, err := m.resolveForeignKey(ctx, attr)
			if err != nil {
				return nil, err
			}
			row[attr.Name] = value
			continue
		}

		if attr.Generator == nil {
			continue
		}
		if assigned[attr.Name] {
			continue // populated later by an Assign step
		}

		value, err := m.generateValue(*attr.Generator, 0)
		if err != nil {
			return nil, err
		}
		row[attr.Name] = coerceToType(value, attr.Type)
	}

	m.populateDatetimeColumns(table, row)

	pk, err := m.store.Insert(ctx, entityTable, pkColumn, row, generatedPK != nil)
	if err != nil {
		return nil, err
	}
	return pk, nil
}

// UpdateAttribute writes a single column for one entity.
func (m *Manager) UpdateAttribute(ctx context.Context, table string, pk any, column string, value any) (int64, error) {
	pkColumn, err := m.resolver.PrimaryKey(table)
	if err != nil {
		return 0, err
	}
	return m.store.Update(ctx, table, pkColumn, pk, store.Row{column: value})
}

// BatchUpdateAttributes applies a per-entity set of column values in one
// statement.
func (m *Manager) BatchUpdateAttributes(ctx context.Context, table string, updates map[any]store.Row) error {
	pkColumn, err := m.resolver.PrimaryKey(table)
	if err != nil {
		return err
	}
	return m.store.BatchUpdate(ctx, table, pkColumn, updates)
}

// resolveForeignKey picks a parent id for a foreign_key-generated
// attribute: a formula draw mod len(parents) when numeric, else a
// uniform random pick, falling back to uniform random on any formula
// error so one bad formula doesn't abort entity creation.
func (m *Manager) resolveForeignKey(ctx context.Context, attr schema.AttributeConfig) (any, error) {
	if attr.Ref == "" {
		return nil, simerrors.MissingForeignKeyRef(attr.Name)
	}
	dot := strings.IndexByte(attr.Ref, '.')
	if dot < 0 {
		return nil, simerrors.MissingForeignKeyRef(attr.Name)
	}
	refTable, refColumn := attr.Ref[:dot], attr.Ref[dot+1:]

	rows, err := m.store.Rows(ctx, refTable)
	if err != nil {
		return nil, err
	}
	var parentIDs []any
	for _, r := range rows {
		if v, ok := r[refColumn]; ok {
			parentIDs = append(parentIDs, v)
		}
	}
	if len(parentIDs) == 0 {
		return nil, nil
	}

	if attr.Generator.Formula != "" {
		if sampled, err := m.dist.DrawFormula(attr.Generator.Formula); err == nil {
			if f, ok := asNumeric(sampled); ok {
				idx := int(f) % len(parentIDs)
				if idx < 0 {
					idx += len(parentIDs)
				}
				return parentIDs[idx], nil
			}
		}
	}
	return parentIDs[m.rng.Intn(len(parentIDs))], nil
}

// populateDatetimeColumns fills any unset datetime/timestamp column with
// the current simulation instant (start date + elapsed minutes).
func (m *Manager) populateDatetimeColumns(table schema.TableConfig, row store.Row) {
	for _, attr := range table.Attributes {
		base := strings.ToLower(attr.Type)
		if base != "datetime" && base != "timestamp" {
			continue
		}
		if _, set := row[attr.Name]; set {
			continue
		}
		now := m.startDate.Add(time.Duration(m.clock.Now() * float64(time.Minute)))
		row[attr.Name] = now.Format(time.RFC3339)
	}
}

func findAttribute(table schema.TableConfig, name string) (schema.AttributeConfig, bool) {
	for _, attr := range table.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return schema.AttributeConfig{}, false
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asNumeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
