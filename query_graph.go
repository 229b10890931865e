package codeviz

import (
	"fmt"

	"github.com/jward/codeviz/internal/graph"
)

// FileDependencies derives the file graph from the stored function
// dependencies: each endpoint is cut to its file and same-file edges are
// dropped. The result is sorted.
func (q *QueryBuilder) FileDependencies() ([]FileEdge, error) {
	edges, err := q.store.FunctionEdges()
	if err != nil {
		return nil, fmt.Errorf("file dependencies: %w", err)
	}
	return graph.Collapse(edges).Sorted(), nil
}

// FileHeat maps every node of the file graph to its normalized change
// count (see NormalizeHeat). An empty graph yields an empty map.
func (q *QueryBuilder) FileHeat() (map[string]float64, error) {
	edges, err := q.store.FunctionEdges()
	if err != nil {
		return nil, fmt.Errorf("file heat: %w", err)
	}
	nodes := graph.Collapse(edges).Nodes()
	return q.HeatFor(nodes)
}

// HeatFor normalizes the change counts of an arbitrary node list, such as
// the files of a subgraph being rendered.
func (q *QueryBuilder) HeatFor(nodes []string) (map[string]float64, error) {
	counts, err := q.store.ChangeCountsFor(nodes)
	if err != nil {
		return nil, fmt.Errorf("heat: %w", err)
	}
	return NormalizeHeat(nodes, counts), nil
}

// Callers returns the functions with an edge to sym, sorted.
func (q *QueryBuilder) Callers(sym Symbol) ([]Symbol, error) {
	out, err := q.store.Callers(sym)
	if err != nil {
		return nil, fmt.Errorf("callers %s: %w", sym, err)
	}
	if out == nil {
		out = []Symbol{}
	}
	return out, nil
}

// Callees returns the functions sym has an edge to, sorted.
func (q *QueryBuilder) Callees(sym Symbol) ([]Symbol, error) {
	out, err := q.store.Callees(sym)
	if err != nil {
		return nil, fmt.Errorf("callees %s: %w", sym, err)
	}
	if out == nil {
		out = []Symbol{}
	}
	return out, nil
}
