package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ColumnDelta is one "column = column + delta" term of an atomic counter update
type ColumnDelta struct {
	Column string
	Delta  int64
}

// counterColumns lists the columns that may be mutated through IncrementColumns.
// Column names cannot be bound as parameters, so anything else is rejected.
var counterColumns = map[string]map[string]bool{
	campaignsTable: {
		"total_ordered_quantity":   true,
		"total_confirmed_quantity": true,
		"participant_count":        true,
	},
	offersTable: {
		"ordered_quantity":   true,
		"confirmed_quantity": true,
	},
}

// incrementStatement renders a single UPDATE that applies every delta in place,
// each clamped at zero with GREATEST. The row id is bound as $1 and the deltas
// as $2.. in order, so guard may reference them by position.
func incrementStatement(table string, deltas []ColumnDelta, guard, returning string) (string, []interface{}, error) {
	allowed, ok := counterColumns[table]
	if !ok {
		return "", nil, fmt.Errorf("table %s has no counter columns", table)
	}
	if len(deltas) == 0 {
		return "", nil, errors.New("no counter deltas to apply")
	}

	sets := make([]string, 0, len(deltas)+1)
	args := make([]interface{}, 0, len(deltas))
	for _, d := range deltas {
		if !allowed[d.Column] {
			return "", nil, fmt.Errorf("column %s is not a counter of %s", d.Column, table)
		}
		args = append(args, d.Delta)
		sets = append(sets, fmt.Sprintf("%s = GREATEST(0, %s + $%d)", d.Column, d.Column, len(args)+1))
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(sets, ", "))
	if guard != "" {
		query += " AND " + guard
	}
	if returning != "" {
		query += " RETURNING " + returning
	}
	return query, args, nil
}

// IncrementColumns atomically applies all deltas to the row identified by id.
// Counters never drop below zero; a decrement past zero is clamped rather than rejected.
func IncrementColumns(ctx context.Context, db DBExecutor, table, id string, deltas ...ColumnDelta) error {
	query, args, err := incrementStatement(table, deltas, "", "")
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to increment %s counters: %w", table, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementColumn is IncrementColumns for a single counter
func IncrementColumn(ctx context.Context, db DBExecutor, table, id, column string, delta int64) error {
	return IncrementColumns(ctx, db, table, id, ColumnDelta{Column: column, Delta: delta})
}

// nonZero drops deltas that would not change anything
func nonZero(deltas ...ColumnDelta) []ColumnDelta {
	out := deltas[:0]
	for _, d := range deltas {
		if d.Delta != 0 {
			out = append(out, d)
		}
	}
	return out
}
