package syntax

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Python is the only language the walker understands.
const Python = "python"

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".py":  Python,
	".pyi": Python,
}

var (
	pythonGrammar *sitter.Language
	grammarOnce   sync.Once
)

func grammar() *sitter.Language {
	grammarOnce.Do(func() {
		pythonGrammar = python.GetLanguage()
	})
	return pythonGrammar
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// ModulePath converts a slash-separated relative file path into the dotted
// module path Python would import it by. Package initializers map to their
// package: "pkg/__init__.py" -> "pkg".
func ModulePath(relPath string) string {
	p := filepath.ToSlash(relPath)
	p = strings.TrimSuffix(p, filepath.Ext(p))
	p = strings.TrimSuffix(p, "/__init__")
	if p == "__init__" {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}
