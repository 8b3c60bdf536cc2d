package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// BuildUserSchema creates one table per entry of db.Entities, grounded on
// the same entity/attribute declarations the Column Resolver (C3)
// consults. SQLite's dynamic type affinity means the exact declared type
// mostly governs storage class rather than validation, so semantic roles
// (pk, entity_id, event_id, resource_id, event_type) are all declared
// TEXT-affinity except an auto-generated pk, which is an integer
// autoincrement rowid alias.
func (s *Store) BuildUserSchema(ctx context.Context, db *schema.DatabaseConfig) error {
	for _, table := range db.Entities {
		ddl, err := tableDDL(table)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("store: create table %s: %w", table.Name, err)
		}
	}
	return nil
}

func tableDDL(table schema.TableConfig) (string, error) {
	var cols []string
	for _, attr := range table.Attributes {
		cols = append(cols, columnDDL(attr))
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("store: table %q declares no attributes", table.Name)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", table.Name, strings.Join(cols, ",\n    ")), nil
}

func columnDDL(attr schema.AttributeConfig) string {
	base := baseSQLType(attr.Type)
	col := attr.Name + " " + base
	if strings.EqualFold(attr.Type, "pk") && attr.Generator == nil {
		col = attr.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	} else if strings.EqualFold(attr.Type, "pk") {
		col = attr.Name + " TEXT PRIMARY KEY"
	}
	if attr.Ref != "" {
		if dot := strings.IndexByte(attr.Ref, '.'); dot > 0 {
			refTable, refCol := attr.Ref[:dot], attr.Ref[dot+1:]
			col += fmt.Sprintf(" REFERENCES %s(%s)", refTable, refCol)
		}
	}
	return col
}

func baseSQLType(attrType string) string {
	base := attrType
	if idx := strings.IndexByte(attrType, '('); idx >= 0 {
		base = attrType[:idx]
	}
	switch strings.ToLower(base) {
	case "pk", "entity_id", "event_id", "resource_id", "event_type":
		return "TEXT"
	case "integer", "int", "bigint":
		return "INTEGER"
	case "decimal", "float", "real", "double", "numeric":
		return "REAL"
	case "boolean", "bool":
		return "INTEGER"
	case "date", "datetime", "timestamp":
		return "TEXT"
	case "string", "varchar", "text", "char":
		return "TEXT"
	default:
		return "TEXT"
	}
}
