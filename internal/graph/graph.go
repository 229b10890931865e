// Package graph holds the function-level and file-level dependency edge
// types shared by the resolver, the store, and the query layer.
package graph

import (
	"sort"
	"strings"
)

// Separator joins a file path and a function name into a Symbol.
const Separator = "."

// Symbol is a qualified callable name of the form "<file-path>.<function-name>".
type Symbol string

// NewSymbol joins file and name into a Symbol.
func NewSymbol(file, name string) Symbol {
	if file == "" {
		return Symbol(name)
	}
	return Symbol(file + Separator + name)
}

// Split splits the symbol on its last separator into (file, name). A symbol
// without a separator has an empty file component.
func (s Symbol) Split() (file, name string) {
	str := string(s)
	i := strings.LastIndex(str, Separator)
	if i < 0 {
		return "", str
	}
	return str[:i], str[i+1:]
}

// File returns the file component of the symbol.
func (s Symbol) File() string {
	file, _ := s.Split()
	return file
}

// Name returns the bare function name of the symbol.
func (s Symbol) Name() string {
	_, name := s.Split()
	return name
}

func (s Symbol) String() string { return string(s) }

// FunctionEdge is a resolved (caller, callee) call dependency.
type FunctionEdge struct {
	Caller Symbol `json:"caller"`
	Callee Symbol `json:"callee"`
}

// FileEdge is a (caller file, callee file) dependency derived from a
// FunctionEdge.
type FileEdge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// FunctionEdgeSet is a set of function edges.
type FunctionEdgeSet map[FunctionEdge]struct{}

// NewFunctionEdgeSet returns a set holding edges.
func NewFunctionEdgeSet(edges ...FunctionEdge) FunctionEdgeSet {
	set := make(FunctionEdgeSet, len(edges))
	for _, e := range edges {
		set.Add(e)
	}
	return set
}

// Add inserts e into the set.
func (s FunctionEdgeSet) Add(e FunctionEdge) { s[e] = struct{}{} }

// Has reports whether e is in the set.
func (s FunctionEdgeSet) Has(e FunctionEdge) bool {
	_, ok := s[e]
	return ok
}

// Len returns the number of edges.
func (s FunctionEdgeSet) Len() int { return len(s) }

// Merge adds every edge of other into s.
func (s FunctionEdgeSet) Merge(other FunctionEdgeSet) {
	for e := range other {
		s.Add(e)
	}
}

// Sorted returns the edges ordered by caller, then callee.
func (s FunctionEdgeSet) Sorted() []FunctionEdge {
	out := make([]FunctionEdge, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Caller != out[j].Caller {
			return out[i].Caller < out[j].Caller
		}
		return out[i].Callee < out[j].Callee
	})
	return out
}

// Symbols returns every distinct endpoint in the set, sorted.
func (s FunctionEdgeSet) Symbols() []Symbol {
	seen := make(map[Symbol]bool)
	for e := range s {
		seen[e.Caller] = true
		seen[e.Callee] = true
	}
	out := make([]Symbol, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FileEdgeSet is a set of file edges.
type FileEdgeSet map[FileEdge]struct{}

// Add inserts e into the set.
func (s FileEdgeSet) Add(e FileEdge) { s[e] = struct{}{} }

// Has reports whether e is in the set.
func (s FileEdgeSet) Has(e FileEdge) bool {
	_, ok := s[e]
	return ok
}

// Len returns the number of edges.
func (s FileEdgeSet) Len() int { return len(s) }

// Sorted returns the edges ordered by caller, then callee.
func (s FileEdgeSet) Sorted() []FileEdge {
	out := make([]FileEdge, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Caller != out[j].Caller {
			return out[i].Caller < out[j].Caller
		}
		return out[i].Callee < out[j].Callee
	})
	return out
}

// Nodes returns every distinct file that appears in the set, sorted.
func (s FileEdgeSet) Nodes() []string {
	seen := make(map[string]bool)
	for e := range s {
		seen[e.Caller] = true
		seen[e.Callee] = true
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
