package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jward/codeviz/internal/graph"
)

// ErrInvalidSymbol is returned for symbols without a file component.
var ErrInvalidSymbol = errors.New("symbol has no file component")

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// --- Function dependency writes ---

// UpsertFunction inserts the symbol's file and function rows if absent.
func (s *Store) UpsertFunction(sym graph.Symbol) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert function: begin: %w", err)
	}
	defer tx.Rollback()
	if err := upsertFunctionTx(tx, sym); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertFunctionEdge inserts both endpoints and the edge if absent. Edges
// are keyed by qualified symbol, so same-named functions in different files
// stay distinct.
func (s *Store) UpsertFunctionEdge(e graph.FunctionEdge) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert edge: begin: %w", err)
	}
	defer tx.Rollback()
	if err := upsertEdgeTx(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertFunctionEdges inserts every edge of the set in one transaction.
func (s *Store) UpsertFunctionEdges(edges graph.FunctionEdgeSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upsert edges: begin: %w", err)
	}
	defer tx.Rollback()
	for _, e := range edges.Sorted() {
		if err := upsertEdgeTx(tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func upsertFunctionTx(tx execer, sym graph.Symbol) error {
	file, name := sym.Split()
	if file == "" || name == "" {
		return fmt.Errorf("upsert function %q: %w", sym, ErrInvalidSymbol)
	}
	if _, err := tx.Exec("INSERT OR IGNORE INTO files (path) VALUES (?)", file); err != nil {
		return fmt.Errorf("insert file %q: %w", file, err)
	}
	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO functions (name, file_path, symbol) VALUES (?, ?, ?)",
		name, file, string(sym),
	); err != nil {
		return fmt.Errorf("insert function %q: %w", sym, err)
	}
	return nil
}

func upsertEdgeTx(tx execer, e graph.FunctionEdge) error {
	if err := upsertFunctionTx(tx, e.Caller); err != nil {
		return err
	}
	if err := upsertFunctionTx(tx, e.Callee); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO function_dependencies (caller, callee) VALUES (?, ?)",
		string(e.Caller), string(e.Callee),
	); err != nil {
		return fmt.Errorf("insert edge %s -> %s: %w", e.Caller, e.Callee, err)
	}
	return nil
}

// --- Function dependency reads ---

// Files returns every file path, sorted.
func (s *Store) Files() ([]string, error) {
	return s.queryStrings("SELECT path FROM files ORDER BY path")
}

// Functions returns every function row, ordered by file then name.
func (s *Store) Functions() ([]Function, error) {
	rows, err := s.db.Query("SELECT name, file_path, symbol FROM functions ORDER BY file_path, name")
	if err != nil {
		return nil, fmt.Errorf("functions: %w", err)
	}
	defer rows.Close()
	var fns []Function
	for rows.Next() {
		var f Function
		var sym string
		if err := rows.Scan(&f.Name, &f.FilePath, &sym); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		f.Symbol = graph.Symbol(sym)
		fns = append(fns, f)
	}
	return fns, rows.Err()
}

// FunctionsByName returns the functions with the given bare name across all
// files.
func (s *Store) FunctionsByName(name string) ([]Function, error) {
	rows, err := s.db.Query(
		"SELECT name, file_path, symbol FROM functions WHERE name = ? ORDER BY file_path", name,
	)
	if err != nil {
		return nil, fmt.Errorf("functions by name: %w", err)
	}
	defer rows.Close()
	var fns []Function
	for rows.Next() {
		var f Function
		var sym string
		if err := rows.Scan(&f.Name, &f.FilePath, &sym); err != nil {
			return nil, fmt.Errorf("scan function: %w", err)
		}
		f.Symbol = graph.Symbol(sym)
		fns = append(fns, f)
	}
	return fns, rows.Err()
}

// FunctionEdges returns the whole function dependency set.
func (s *Store) FunctionEdges() (graph.FunctionEdgeSet, error) {
	rows, err := s.db.Query("SELECT caller, callee FROM function_dependencies")
	if err != nil {
		return nil, fmt.Errorf("function edges: %w", err)
	}
	defer rows.Close()
	edges := graph.NewFunctionEdgeSet()
	for rows.Next() {
		var caller, callee string
		if err := rows.Scan(&caller, &callee); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges.Add(graph.FunctionEdge{Caller: graph.Symbol(caller), Callee: graph.Symbol(callee)})
	}
	return edges, rows.Err()
}

// Callers returns the symbols that call sym, sorted.
func (s *Store) Callers(sym graph.Symbol) ([]graph.Symbol, error) {
	return s.querySymbols(
		"SELECT caller FROM function_dependencies WHERE callee = ? ORDER BY caller", string(sym),
	)
}

// Callees returns the symbols called by sym, sorted.
func (s *Store) Callees(sym graph.Symbol) ([]graph.Symbol, error) {
	return s.querySymbols(
		"SELECT callee FROM function_dependencies WHERE caller = ? ORDER BY callee", string(sym),
	)
}

func (s *Store) querySymbols(query string, args ...any) ([]graph.Symbol, error) {
	strs, err := s.queryStrings(query, args...)
	if err != nil {
		return nil, err
	}
	syms := make([]graph.Symbol, len(strs))
	for i, str := range strs {
		syms[i] = graph.Symbol(str)
	}
	return syms, nil
}

func (s *Store) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
