package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotReadOnly is returned when ReadOnlyQuery is handed anything other
// than a SELECT or WITH statement.
var ErrNotReadOnly = errors.New("only SELECT queries are allowed")

// Row is one result row keyed by column name.
type Row map[string]any

// ReadOnlyQuery executes an ad-hoc SELECT and returns the column names in
// result order along with the rows. []byte values are returned as strings.
// The query runs on the read-only handle, so a data-modifying CTE or a
// trailing write statement fails instead of changing the store.
func (s *Store) ReadOnlyQuery(ctx context.Context, query string, args ...any) ([]string, []Row, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "WITH") {
		return nil, nil, ErrNotReadOnly
	}

	rows, err := s.ro.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("read-only query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read-only query: columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("read-only query: scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read-only query: rows: %w", err)
	}
	return cols, out, nil
}
