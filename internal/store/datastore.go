package store

import "github.com/jward/codeviz/internal/graph"

// GraphWriter is the write side of the dependency graph. Both Store (direct
// SQLite) and EdgeBatch (in-memory buffering for parallel indexing)
// implement it.
type GraphWriter interface {
	UpsertFunction(sym graph.Symbol) error
	UpsertFunctionEdge(e graph.FunctionEdge) error
}

var _ GraphWriter = (*Store)(nil)

// WriteEdges records every edge of the set, caller and callee functions
// included, through w in sorted order.
func WriteEdges(w GraphWriter, edges graph.FunctionEdgeSet) error {
	for _, e := range edges.Sorted() {
		if err := w.UpsertFunctionEdge(e); err != nil {
			return err
		}
	}
	return nil
}
