package resolve

import (
	"path"
	"strings"

	"github.com/jward/codeviz/internal/syntax"
)

// ModuleIndex maps dotted module paths to the files of the analysed tree
// that define them.
type ModuleIndex struct {
	files map[string]string // module path -> relative file path
}

// NewModuleIndex builds an index over slash-separated relative paths.
// When a module and a package share a name, the module file wins.
func NewModuleIndex(paths []string) *ModuleIndex {
	idx := &ModuleIndex{files: make(map[string]string, len(paths))}
	for _, p := range paths {
		mod := syntax.ModulePath(p)
		if mod == "" {
			continue
		}
		if existing, ok := idx.files[mod]; ok && !isPackageInit(existing) {
			continue
		}
		idx.files[mod] = p
	}
	return idx
}

// FileFor returns the file defining module, if it is part of the tree.
func (m *ModuleIndex) FileFor(module string) (string, bool) {
	if m == nil || module == "" {
		return "", false
	}
	f, ok := m.files[module]
	return f, ok
}

// Len returns the number of indexed modules.
func (m *ModuleIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.files)
}

func isPackageInit(p string) bool {
	base := path.Base(p)
	return strings.HasPrefix(base, "__init__.")
}

// absoluteModule turns a possibly relative binding into an absolute dotted
// path, given the relative path of the importing file. ok is false when the
// relative import climbs above the tree root.
func absoluteModule(b syntax.Binding, fromFile string) (string, bool) {
	if b.Level == 0 {
		return b.Target(), true
	}
	var pkg []string
	if dir := path.Dir(fromFile); dir != "." {
		pkg = strings.Split(syntax.ModulePath(dir+"/__init__.py"), ".")
	}
	up := b.Level - 1
	if up > len(pkg) {
		return "", false
	}
	parts := append([]string{}, pkg[:len(pkg)-up]...)
	if b.Module != "" {
		parts = append(parts, b.Module)
	}
	if b.Name != "" {
		parts = append(parts, b.Name)
	}
	return strings.Join(parts, "."), true
}
