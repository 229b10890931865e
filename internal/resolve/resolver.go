// Package resolve turns the raw call observations of a file into qualified
// function dependency edges using the file's import bindings.
package resolve

import (
	"fmt"
	"strings"

	"github.com/jward/codeviz/internal/graph"
	"github.com/jward/codeviz/internal/syntax"
)

// Policy selects how resolved edges are validated.
type Policy string

const (
	// Local keeps every resolved edge without validation.
	Local Policy = "local"
	// Global keeps an edge only when its callee is a function defined
	// somewhere in the analysed tree.
	Global Policy = "global"
)

// ParsePolicy parses a policy name. The empty string selects Local.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Local:
		return Local, nil
	case Global:
		return Global, nil
	}
	return "", fmt.Errorf("unknown resolution policy %q (want local|global)", s)
}

// Resolver resolves the observations of every file of one run under a
// single policy.
type Resolver struct {
	policy  Policy
	modules *ModuleIndex
	defined map[graph.Symbol]bool
}

// NewResolver builds a resolver over the walked files of a run. The module
// index and, for the Global policy, the table of defined functions are
// derived from files.
func NewResolver(policy Policy, files []*syntax.FileObservations) *Resolver {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	r := &Resolver{
		policy:  policy,
		modules: NewModuleIndex(paths),
	}
	if policy == Global {
		r.defined = DefinedSymbols(files)
	}
	return r
}

// Policy returns the policy the resolver applies.
func (r *Resolver) Policy() Policy { return r.policy }

// Modules returns the module index of the run.
func (r *Resolver) Modules() *ModuleIndex { return r.modules }

// ResolveFile resolves one file's observations.
func (r *Resolver) ResolveFile(obs *syntax.FileObservations) graph.FunctionEdgeSet {
	edges := Resolve(obs, r.modules)
	if r.policy == Global {
		return Gate(edges, r.defined)
	}
	return edges
}

// ResolveAll resolves every file and merges the results.
func (r *Resolver) ResolveAll(files []*syntax.FileObservations) graph.FunctionEdgeSet {
	all := graph.NewFunctionEdgeSet()
	for _, f := range files {
		all.Merge(r.ResolveFile(f))
	}
	return all
}

// Resolve applies the resolution order to every call observation of obs:
//
//  1. a bound bare name resolves to its binding
//  2. an unbound bare name resolves to "<path>.<name>"
//  3. an attribute on a bound receiver resolves to "<binding>.<attr>"
//  4. an attribute on an unbound receiver resolves to "<receiver>.<attr>"
//
// Bound targets whose module is part of the tree are rewritten to that
// module's file path. modules may be nil.
func Resolve(obs *syntax.FileObservations, modules *ModuleIndex) graph.FunctionEdgeSet {
	edges := graph.NewFunctionEdgeSet()
	for _, call := range obs.Calls {
		callee, ok := resolveCallee(obs, call.Callee, modules)
		if !ok {
			continue
		}
		edges.Add(graph.FunctionEdge{
			Caller: graph.NewSymbol(obs.Path, call.Caller),
			Callee: callee,
		})
	}
	return edges
}

func resolveCallee(obs *syntax.FileObservations, c syntax.Callee, modules *ModuleIndex) (graph.Symbol, bool) {
	switch c.Kind {
	case syntax.Bare:
		b, bound := obs.Bindings.Lookup(c.Name)
		if !bound {
			return graph.NewSymbol(obs.Path, c.Name), true
		}
		if b.Name == "" {
			// Calling an imported module object names no function.
			return "", false
		}
		target := boundTarget(b, obs.Path)
		module, name := graph.Symbol(target).Split()
		if module == "" {
			// A relative import of a top-level module (`from . import m`
			// in a root file) binds a module object, like `import m`.
			return "", false
		}
		return graph.NewSymbol(fileOrModule(module, modules), name), true

	case syntax.Attribute:
		b, bound := obs.Bindings.Lookup(c.Receiver)
		if !bound {
			return graph.NewSymbol(c.Receiver, c.Name), true
		}
		return graph.NewSymbol(fileOrModule(boundTarget(b, obs.Path), modules), c.Name), true
	}
	return "", false
}

// boundTarget returns the absolute dotted target of b. Relative imports that
// climb above the tree root keep their dotted form.
func boundTarget(b syntax.Binding, fromFile string) string {
	if abs, ok := absoluteModule(b, fromFile); ok {
		return abs
	}
	return b.Target()
}

func fileOrModule(module string, modules *ModuleIndex) string {
	if f, ok := modules.FileFor(module); ok {
		return f
	}
	return module
}

// DefinedSymbols returns the qualified names of every top-level function
// defined across files.
func DefinedSymbols(files []*syntax.FileObservations) map[graph.Symbol]bool {
	defined := make(map[graph.Symbol]bool)
	for _, f := range files {
		for _, fn := range f.Functions {
			defined[graph.NewSymbol(f.Path, fn)] = true
		}
	}
	return defined
}

// Gate keeps the edges whose callee is in defined. Matching is by qualified
// symbol: a callee `obj.parse` is dropped even when some file defines parse.
func Gate(edges graph.FunctionEdgeSet, defined map[graph.Symbol]bool) graph.FunctionEdgeSet {
	kept := graph.NewFunctionEdgeSet()
	for e := range edges {
		if defined[e.Callee] {
			kept.Add(e)
		}
	}
	return kept
}
