package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestFiles_WalkFallback(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.py":                     "",
		"pkg/__init__.py":          "",
		"pkg/b.py":                 "",
		"pkg/b.pyi":                "",
		"README.md":                "",
		".hidden.py":               "",
		".venv/lib/site.py":        "",
		"__pycache__/a.cpython.py": "",
		"generated/out.py":         "",
		"scratch.py":               "",
		".gitignore":               "generated/\nscratch.py\n",
	})

	files, err := Files(context.Background(), root, Options{NoGit: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "pkg/__init__.py", "pkg/b.py", "pkg/b.pyi"}, files)
}

func TestFiles_ExcludeDirs(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"app/main.py":            "",
		"app/tests/test_main.py": "",
		"tests/test_app.py":      "",
		"vendor/lib/x.py":        "",
		"vendor/keep/y.py":       "",
	})

	files, err := Files(context.Background(), root, Options{
		NoGit:       true,
		ExcludeDirs: []string{"tests", "vendor/lib"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app/main.py", "vendor/keep/y.py"}, files)
}

func TestFiles_NotAGitRepoFallsBackToWalk(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.py": "", "b.txt": ""})
	files, err := Files(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, files)
}

func TestFiles_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Files(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{NoGit: true})
	assert.Error(t, err)
}
