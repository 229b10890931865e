// Package syntax walks Python source with tree-sitter and records, per file,
// the import bindings and the raw calls made by each top-level function.
package syntax

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrSyntax is returned when a file does not parse as valid Python.
var ErrSyntax = errors.New("syntax error")

// Walk parses src and returns the import bindings and call observations of
// the file at path. A file with syntax errors yields an error wrapping
// ErrSyntax and no observations.
func Walk(ctx context.Context, path string, src []byte) (*FileObservations, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			p := bad.StartPoint()
			return nil, fmt.Errorf("%s:%d:%d: %w", path, p.Row+1, p.Column+1, ErrSyntax)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrSyntax)
	}

	w := &walker{
		src: src,
		obs: &FileObservations{
			Path:     path,
			Bindings: make(Bindings),
		},
		seenCalls: make(map[CallObservation]bool),
		seenFuncs: make(map[string]bool),
	}
	w.collectImports(root)
	w.collectModule(root)
	return w.obs, nil
}

type walker struct {
	src       []byte
	obs       *FileObservations
	seenCalls map[CallObservation]bool
	seenFuncs map[string]bool
}

// nodeText returns the source text of n.
func (w *walker) nodeText(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

// firstError returns the first ERROR or missing node in preorder.
func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || (!child.HasError() && !child.IsMissing()) {
			continue
		}
		if bad := firstError(child); bad != nil {
			return bad
		}
	}
	return nil
}

// collectModule visits the module's top-level statements. Top-level
// functions become callers; every other call site outside them is counted
// as dropped.
func (w *walker) collectModule(root *sitter.Node) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if fn := topLevelFunction(stmt); fn != nil {
			name := w.nodeText(fn.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			if !w.seenFuncs[name] {
				w.seenFuncs[name] = true
				w.obs.Functions = append(w.obs.Functions, name)
			}
			w.collectCalls(fn, name)
			continue
		}
		w.obs.Dropped += countCalls(stmt)
	}
}

// topLevelFunction unwraps a module-level statement into a function
// definition, looking through decorators.
func topLevelFunction(stmt *sitter.Node) *sitter.Node {
	switch stmt.Type() {
	case "function_definition":
		return stmt
	case "decorated_definition":
		def := stmt.ChildByFieldName("definition")
		if def != nil && def.Type() == "function_definition" {
			return def
		}
	}
	return nil
}

// collectCalls records every call in the subtree of n against caller.
// Nested functions, lambdas and classes are walked too.
func (w *walker) collectCalls(n *sitter.Node, caller string) {
	if n.Type() == "call" {
		if callee, ok := w.calleeOf(n); ok {
			obs := CallObservation{Caller: caller, Callee: callee}
			if !w.seenCalls[obs] {
				w.seenCalls[obs] = true
				w.obs.Calls = append(w.obs.Calls, obs)
			}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.collectCalls(n.NamedChild(i), caller)
	}
}

// calleeOf classifies the target of a call node. Only identifiers and
// attributes on identifiers are observed.
func (w *walker) calleeOf(call *sitter.Node) (Callee, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return Callee{}, false
	}
	switch fn.Type() {
	case "identifier":
		return BareCallee(w.nodeText(fn)), true
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil || obj.Type() != "identifier" {
			return Callee{}, false
		}
		return AttributeCallee(w.nodeText(obj), w.nodeText(attr)), true
	}
	return Callee{}, false
}

func countCalls(n *sitter.Node) int {
	count := 0
	if n.Type() == "call" {
		count++
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		count += countCalls(n.NamedChild(i))
	}
	return count
}
