package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// collectImports records every import statement in the file, in source
// order, so that a later import of the same alias replaces an earlier one.
func (w *walker) collectImports(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		w.importStatement(n)
		return
	case "import_from_statement":
		w.importFromStatement(n)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.collectImports(n.NamedChild(i))
	}
}

// importStatement handles "import a", "import a.b" and "import a.b as c".
// An unaliased dotted import binds only its first segment, as Python does.
func (w *walker) importStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			module := w.nodeText(child)
			head, _, _ := strings.Cut(module, ".")
			w.obs.Bindings[head] = Binding{Module: head}
		case "aliased_import":
			module := w.nodeText(child.ChildByFieldName("name"))
			alias := w.nodeText(child.ChildByFieldName("alias"))
			if module == "" || alias == "" {
				continue
			}
			w.obs.Bindings[alias] = Binding{Module: module}
		}
	}
}

// importFromStatement handles "from m import x", "from m import x as y" and
// the relative forms "from . import x" and "from ..m import x". Wildcard
// imports bind nothing.
func (w *walker) importFromStatement(n *sitter.Node) {
	var (
		module     string
		level      int
		seenImport bool
	)
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "import":
			seenImport = true
		case "relative_import":
			level, module = w.relativeImport(child)
		case "dotted_name":
			if !seenImport {
				module = w.nodeText(child)
				continue
			}
			name := w.nodeText(child)
			w.obs.Bindings[name] = Binding{Module: module, Name: name, Level: level}
		case "aliased_import":
			if !seenImport {
				continue
			}
			name := w.nodeText(child.ChildByFieldName("name"))
			alias := w.nodeText(child.ChildByFieldName("alias"))
			if name == "" || alias == "" {
				continue
			}
			w.obs.Bindings[alias] = Binding{Module: module, Name: name, Level: level}
		}
	}
}

// relativeImport splits a relative_import node into its dot level and the
// optional module that follows the dots.
func (w *walker) relativeImport(n *sitter.Node) (int, string) {
	var (
		level  int
		module string
	)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(w.nodeText(child), ".")
		case "dotted_name":
			module = w.nodeText(child)
		}
	}
	return level, module
}
