package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbol_SplitsOnLastSeparator(t *testing.T) {
	t.Parallel()

	file, name := Symbol("pkg/a.py.f").Split()
	assert.Equal(t, "pkg/a.py", file)
	assert.Equal(t, "f", name)

	file, name = Symbol("os.path.join").Split()
	assert.Equal(t, "os.path", file)
	assert.Equal(t, "join", name)

	file, name = Symbol("orphan").Split()
	assert.Empty(t, file)
	assert.Equal(t, "orphan", name)
}

func TestNewSymbol_RoundTrips(t *testing.T) {
	t.Parallel()

	sym := NewSymbol("b.py", "g")
	assert.Equal(t, Symbol("b.py.g"), sym)
	assert.Equal(t, "b.py", sym.File())
	assert.Equal(t, "g", sym.Name())
}

func TestFunctionEdgeSet_Deduplicates(t *testing.T) {
	t.Parallel()

	e := FunctionEdge{Caller: "a.py.f", Callee: "a.py.helper"}
	set := NewFunctionEdgeSet(e, e, e)
	assert.Equal(t, 1, set.Len())
	assert.True(t, set.Has(e))
}

func TestFunctionEdgeSet_SortedIsDeterministic(t *testing.T) {
	t.Parallel()

	set := NewFunctionEdgeSet(
		FunctionEdge{Caller: "b.py.g", Callee: "a.py.f"},
		FunctionEdge{Caller: "a.py.f", Callee: "a.py.z"},
		FunctionEdge{Caller: "a.py.f", Callee: "a.py.helper"},
	)
	assert.Equal(t, []FunctionEdge{
		{Caller: "a.py.f", Callee: "a.py.helper"},
		{Caller: "a.py.f", Callee: "a.py.z"},
		{Caller: "b.py.g", Callee: "a.py.f"},
	}, set.Sorted())
	assert.Equal(t, []Symbol{"a.py.f", "a.py.helper", "a.py.z", "b.py.g"}, set.Symbols())
}

// =============================================================================
// Collapse
// =============================================================================

func TestCollapse_DropsSelfEdges(t *testing.T) {
	t.Parallel()

	set := NewFunctionEdgeSet(
		FunctionEdge{Caller: "a.py.f", Callee: "a.py.helper"},
		FunctionEdge{Caller: "b.py.g", Callee: "a.py.f"},
	)
	files := Collapse(set)
	assert.Equal(t, []FileEdge{{Caller: "b.py", Callee: "a.py"}}, files.Sorted())
}

func TestCollapse_MergesParallelEdges(t *testing.T) {
	t.Parallel()

	set := NewFunctionEdgeSet(
		FunctionEdge{Caller: "b.py.g", Callee: "a.py.f"},
		FunctionEdge{Caller: "b.py.h", Callee: "a.py.k"},
		FunctionEdge{Caller: "b.py.h", Callee: "os.path.join"},
	)
	files := Collapse(set)
	assert.Equal(t, 2, files.Len())
	assert.True(t, files.Has(FileEdge{Caller: "b.py", Callee: "a.py"}))
	assert.True(t, files.Has(FileEdge{Caller: "b.py", Callee: "os.path"}))
	assert.Equal(t, []string{"a.py", "b.py", "os.path"}, files.Nodes())
}

func TestCollapse_NeverEmitsSelfLoops(t *testing.T) {
	t.Parallel()

	set := NewFunctionEdgeSet()
	for _, caller := range []Symbol{"x.py.a", "y.py.b", "x.py.c"} {
		for _, callee := range []Symbol{"x.py.a", "y.py.b", "z.py.d"} {
			set.Add(FunctionEdge{Caller: caller, Callee: callee})
		}
	}
	for e := range Collapse(set) {
		assert.NotEqual(t, e.Caller, e.Callee)
	}
}

func TestCollapse_Empty(t *testing.T) {
	t.Parallel()
	assert.Zero(t, Collapse(NewFunctionEdgeSet()).Len())
}
