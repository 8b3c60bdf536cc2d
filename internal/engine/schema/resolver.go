package schema

import (
	"strings"
	"sync"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
)

// Column roles resolved by ColumnResolver, mirroring the attribute types
// a database config may declare (pk, entity_id, event_id, resource_id,
// event_type) plus arbitrary scalar types (decimal, varchar, ...).
const (
	RolePrimaryKey = "pk"
	RoleEntityFK   = "entity_id"
	RoleEventFK    = "event_id"
	RoleResourceFK = "resource_id"
	RoleEventType  = "event_type"
)

// ColumnResolver maps (table, semantic role) pairs onto concrete column
// names declared in a DatabaseConfig. It never falls back to a default
// or guessed name — an unmapped role is a configuration error surfaced
// before the run starts. Results (including misses) are memoized for the
// lifetime of the resolver.
type ColumnResolver struct {
	tables map[string]TableConfig

	mu    sync.Mutex
	cache map[string]string // "table:role" -> column name ("" recorded via ok map below for negative hits)
	found map[string]bool   // "table:role" -> whether cache[key] is a real hit
}

// NewColumnResolver indexes a database config's tables by name.
func NewColumnResolver(db *DatabaseConfig) *ColumnResolver {
	tables := make(map[string]TableConfig, len(db.Entities))
	for _, t := range db.Entities {
		tables[t.Name] = t
	}
	return &ColumnResolver{
		tables: tables,
		cache:  make(map[string]string),
		found:  make(map[string]bool),
	}
}

func cacheKey(table, role string) string { return table + ":" + role }

// Table returns the declared configuration for table, if any.
func (r *ColumnResolver) Table(table string) (TableConfig, bool) {
	t, ok := r.tables[table]
	return t, ok
}

// ColumnByRole returns the concrete column name on table whose declared
// type matches role, matching parameterized types by their base name
// (decimal(10,2) matches a role of "decimal"). Results are memoized,
// including "no such column" misses, so repeated resolution of the same
// (table, role) pair never re-scans the attribute list.
func (r *ColumnResolver) ColumnByRole(table, role string) (string, error) {
	key := cacheKey(table, role)

	r.mu.Lock()
	if col, ok := r.cache[key]; ok {
		hit := r.found[key]
		r.mu.Unlock()
		if hit {
			return col, nil
		}
		return "", simerrors.MissingRoleColumn(table, role)
	}
	r.mu.Unlock()

	tbl, ok := r.tables[table]
	if !ok {
		return "", simerrors.UnknownTable(table)
	}

	col, found := "", false
	for _, attr := range tbl.Attributes {
		if baseType(attr.Type) == role {
			col, found = attr.Name, true
			break
		}
	}

	r.mu.Lock()
	r.cache[key] = col
	r.found[key] = found
	r.mu.Unlock()

	if !found {
		return "", simerrors.MissingRoleColumn(table, role)
	}
	return col, nil
}

// PrimaryKey resolves table's primary-key column.
func (r *ColumnResolver) PrimaryKey(table string) (string, error) {
	return r.ColumnByRole(table, RolePrimaryKey)
}

// EntityFKColumn resolves table's entity foreign-key column.
func (r *ColumnResolver) EntityFKColumn(table string) (string, error) {
	return r.ColumnByRole(table, RoleEntityFK)
}

// EventFKColumn resolves table's event foreign-key column.
func (r *ColumnResolver) EventFKColumn(table string) (string, error) {
	return r.ColumnByRole(table, RoleEventFK)
}

// ResourceFKColumn resolves table's resource foreign-key column.
func (r *ColumnResolver) ResourceFKColumn(table string) (string, error) {
	return r.ColumnByRole(table, RoleResourceFK)
}

// EventTypeColumn resolves table's event-type discriminator column.
func (r *ColumnResolver) EventTypeColumn(table string) (string, error) {
	return r.ColumnByRole(table, RoleEventType)
}

// ValidateTableTypes reports every (table, role) pair across roles that
// has no matching column, for upfront validation before a run starts.
func (r *ColumnResolver) ValidateTableTypes(roles []string) []error {
	var errs []error
	for name := range r.tables {
		for _, role := range roles {
			if _, err := r.ColumnByRole(name, role); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// baseType strips a parameterized type's argument list, so "decimal(10,2)"
// matches a role of "decimal".
func baseType(attrType string) string {
	if idx := strings.IndexByte(attrType, '('); idx >= 0 {
		return attrType[:idx]
	}
	return attrType
}
