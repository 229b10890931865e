package codeviz

import (
	"fmt"
	"strings"

	"github.com/jward/codeviz/internal/graph"
)

// --- Common Types ---

// Pagination controls offset+limit paging on list results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"` // total matching results (before pagination)
}

// --- Enumeration Endpoints ---

// FunctionDependencies lists stored function edges ordered by caller then
// callee. A non-empty pathPrefix keeps edges whose caller lives under that
// directory.
func (q *QueryBuilder) FunctionDependencies(pathPrefix string, page Pagination) (*PagedResult[FunctionEdge], error) {
	page = page.normalize()

	where, args := pathFilter("caller", pathPrefix)

	var totalCount int
	countSQL := "SELECT COUNT(*) FROM function_dependencies " + where
	if err := q.store.DB().QueryRow(countSQL, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("function dependencies: count: %w", err)
	}

	dataSQL := "SELECT caller, callee FROM function_dependencies " + where +
		" ORDER BY caller, callee LIMIT ? OFFSET ?"
	dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)

	rows, err := q.store.DB().Query(dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("function dependencies: query: %w", err)
	}
	defer rows.Close()

	var items []FunctionEdge
	for rows.Next() {
		var caller, callee string
		if err := rows.Scan(&caller, &callee); err != nil {
			return nil, fmt.Errorf("function dependencies: scan: %w", err)
		}
		items = append(items, FunctionEdge{Caller: graph.Symbol(caller), Callee: graph.Symbol(callee)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("function dependencies: rows: %w", err)
	}
	if items == nil {
		items = []FunctionEdge{}
	}

	return &PagedResult[FunctionEdge]{Items: items, TotalCount: totalCount}, nil
}

// Functions lists stored functions ordered by file then name, optionally
// restricted to files under pathPrefix.
func (q *QueryBuilder) Functions(pathPrefix string, page Pagination) (*PagedResult[Function], error) {
	page = page.normalize()

	where, args := pathFilter("file_path", pathPrefix)

	var totalCount int
	if err := q.store.DB().QueryRow("SELECT COUNT(*) FROM functions "+where, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("functions: count: %w", err)
	}

	dataSQL := "SELECT name, file_path, symbol FROM functions " + where +
		" ORDER BY file_path, name LIMIT ? OFFSET ?"
	dataArgs := append(append([]any{}, args...), page.Limit, page.Offset)

	rows, err := q.store.DB().Query(dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("functions: query: %w", err)
	}
	defer rows.Close()

	var items []Function
	for rows.Next() {
		var f Function
		var sym string
		if err := rows.Scan(&f.Name, &f.FilePath, &sym); err != nil {
			return nil, fmt.Errorf("functions: scan: %w", err)
		}
		f.Symbol = graph.Symbol(sym)
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("functions: rows: %w", err)
	}
	if items == nil {
		items = []Function{}
	}

	return &PagedResult[Function]{Items: items, TotalCount: totalCount}, nil
}

// --- Internal Helpers ---

// pathFilter builds a WHERE clause matching column against a directory
// prefix. An empty prefix matches everything.
func pathFilter(column, prefix string) (string, []any) {
	prefix = normalizePathPrefix(prefix)
	if prefix == "" {
		return "", nil
	}
	return "WHERE " + column + " LIKE ? ESCAPE '\\'", []any{escapeLike(prefix) + "%"}
}

// normalizePathPrefix ensures a path prefix ends with "/" for correct LIKE matching.
// "pkg/core" -> "pkg/core/" to prevent matching "pkg/core_utils/".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// escapeLike escapes SQL LIKE special characters (% and _) with backslash.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
