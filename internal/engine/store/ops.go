package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
)

// Row is a single result row keyed by column name, the "column-resolved
// typed row map" shape prescribed by §9's design notes for heterogeneous
// per-table schemas.
type Row map[string]any

// Insert writes one row to table and returns its primary key. If
// pkProvided is true, columns already carries the PK value (the caller
// computed it from a custom generator per §4.5) and that value is
// returned unchanged; otherwise the store's autoincrement id is
// returned via the driver's last-insert-id.
func (s *Store) Insert(ctx context.Context, table, pkColumn string, columns Row, pkProvided bool) (any, error) {
	names := sortedKeys(columns)
	placeholders := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = "?"
		args[i] = columns[name]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	var generatedPK any
	err := s.withRetry(ctx, "insert "+table, func() error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		if pkProvided {
			generatedPK = columns[pkColumn]
			return nil
		}
		id, idErr := result.LastInsertId()
		if idErr != nil {
			return idErr
		}
		generatedPK = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return generatedPK, nil
}

// Update applies columns to the single row identified by pkColumn=pkValue
// and reports how many rows were affected (0 or 1 under normal use).
func (s *Store) Update(ctx context.Context, table, pkColumn string, pkValue any, columns Row) (int64, error) {
	names := sortedKeys(columns)
	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets[i] = name + " = ?"
		args = append(args, columns[name])
	}
	args = append(args, pkValue)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), pkColumn)

	var affected int64
	err := s.withRetry(ctx, "update "+table, func() error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		n, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return rowsErr
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// BatchUpdate applies a per-row set of column values to many primary keys
// in a single UPDATE statement, using one CASE expression per changed
// column keyed on the primary key. updates maps pkValue -> columns to set
// for that row; every row must set the same set of columns.
func (s *Store) BatchUpdate(ctx context.Context, table, pkColumn string, updates map[any]Row) error {
	if len(updates) == 0 {
		return nil
	}

	var pkValues []any
	for pk := range updates {
		pkValues = append(pkValues, pk)
	}

	var columnNames []string
	for _, row := range updates {
		columnNames = sortedKeys(row)
		break
	}

	var setClauses []string
	var args []any
	for _, col := range columnNames {
		var caseExpr strings.Builder
		caseExpr.WriteString(col + " = CASE " + pkColumn)
		for _, pk := range pkValues {
			caseExpr.WriteString(" WHEN ? THEN ?")
			args = append(args, pk, updates[pk][col])
		}
		caseExpr.WriteString(" ELSE " + col + " END")
		setClauses = append(setClauses, caseExpr.String())
	}

	placeholders := make([]string, len(pkValues))
	for i, pk := range pkValues {
		placeholders[i] = "?"
		args = append(args, pk)
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s IN (%s)",
		table, strings.Join(setClauses, ", "), pkColumn, strings.Join(placeholders, ", "))

	return s.withRetry(ctx, "batch_update "+table, func() error {
		_, execErr := s.db.ExecContext(ctx, query, args...)
		return execErr
	})
}

// Scalar runs sql with params and returns the first column of the first
// row, or nil if there were no rows.
func (s *Store) Scalar(ctx context.Context, sql string, params ...any) (any, error) {
	row := s.db.QueryRowxContext(ctx, sql, params...)
	cols, err := row.Columns()
	if err != nil {
		return nil, simerrors.StoreReadFailed(sql, err)
	}
	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return nil, nil
		}
		return nil, simerrors.StoreReadFailed(sql, err)
	}
	if len(dest) == 0 {
		return nil, nil
	}
	return dest[0], nil
}

// Rows returns every row of table as a column-name-keyed map.
func (s *Store) Rows(ctx context.Context, table string) ([]Row, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, simerrors.StoreReadFailed(table, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, simerrors.StoreReadFailed(table, err)
		}
		result = append(result, Row(raw))
	}
	return result, rows.Err()
}

// GetRow returns the single row of table whose pkColumn equals pk, and
// whether it was found.
func (s *Store) GetRow(ctx context.Context, table, pkColumn string, pk any) (Row, bool, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", table, pkColumn)
	rows, err := s.db.QueryxContext(ctx, query, pk)
	if err != nil {
		return nil, false, simerrors.StoreReadFailed(table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	raw := make(map[string]any)
	if err := rows.MapScan(raw); err != nil {
		return nil, false, simerrors.StoreReadFailed(table, err)
	}
	return Row(raw), true, nil
}

func sortedKeys(m Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
