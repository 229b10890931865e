package codeviz

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/codeviz/internal/history"
	"github.com/jward/codeviz/internal/resolve"
)

// newProjectRepo builds a git repository whose Python tree lives under
// src/app, with three commits touching it and one touching docs only.
func newProjectRepo(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping git integration test in short mode")
	}
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	env := append(os.Environ(),
		"GIT_CONFIG_GLOBAL=/dev/null",
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_AUTHOR_NAME=Ann Lee",
		"GIT_AUTHOR_EMAIL=ann@example.com",
		"GIT_COMMITTER_NAME=Ann Lee",
		"GIT_COMMITTER_EMAIL=ann@example.com",
	)
	git := func(date string, args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(env, "GIT_AUTHOR_DATE="+date, "GIT_COMMITTER_DATE="+date)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	write := func(name, content string) {
		t.Helper()
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	git("2024-03-01T10:00:00+00:00", "init", "-q")
	write("src/app/a.py", "def f():\n    helper()\n\ndef helper():\n    pass\n")
	write("src/app/b.py", "import a\n\ndef g():\n    a.f()\n")
	write("src/app/c.py", "from a import helper\n\ndef h():\n    helper()\n")
	write("docs/index.md", "# docs\n")
	git("2024-03-01T10:00:00+00:00", "add", ".")
	git("2024-03-01T10:00:00+00:00", "commit", "-q", "-m", "initial")

	write("src/app/a.py", "def f():\n    helper()\n\ndef helper():\n    return 1\n")
	git("2024-03-02T10:00:00+01:00", "commit", "-q", "-am", "tweak a")

	write("src/app/a.py", "def f():\n    helper()\n\ndef helper():\n    return 2\n")
	write("src/app/b.py", "import a\n\ndef g():\n    a.f()\n    a.helper()\n")
	git("2024-03-03T10:00:00-05:00", "commit", "-q", "-am", "tweak a and b")

	write("docs/index.md", "# docs v2\n")
	git("2024-03-04T10:00:00+00:00", "commit", "-q", "-am", "docs")
	return dir
}

func TestIntegration_IndexAndHistory(t *testing.T) {
	repo := newProjectRepo(t)
	ctx := context.Background()

	e := newTestEngine(t, WithPolicy(resolve.Global))
	require.NoError(t, e.Reset())

	report, err := e.IndexDirectory(ctx, filepath.Join(repo, "src", "app"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Files)
	assert.Empty(t, report.Failed)

	hist, err := e.IngestHistory(ctx, &history.GitSource{Repo: repo, Workers: 2}, &history.Ingestor{
		Filter:     history.Filter{IncludePatterns: []string{"src/app/"}},
		TrimPrefix: "src/app/",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, hist.Commits)
	assert.Equal(t, 4, hist.Inserted)

	q := e.Query()

	deps, err := q.FileDependencies()
	require.NoError(t, err)
	assert.Equal(t, []FileEdge{
		{Caller: "b.py", Callee: "a.py"},
		{Caller: "c.py", Callee: "a.py"},
	}, deps)

	top, err := q.TopChangedFiles(3)
	require.NoError(t, err)
	assert.Equal(t, []FileCount{
		{Path: "a.py", Count: 3},
		{Path: "b.py", Count: 2},
		{Path: "c.py", Count: 1},
	}, top)

	heat, err := q.FileHeat()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a.py": 1, "b.py": 0.5, "c.py": 0}, heat)

	// The docs-only commit survives with no files.
	counts, err := e.Store().Counts()
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Commits)
	assert.Equal(t, 6, counts.CommitFiles)
}

func TestIntegration_ReindexIsIdempotent(t *testing.T) {
	repo := newProjectRepo(t)
	ctx := context.Background()
	root := filepath.Join(repo, "src", "app")
	ingestor := &history.Ingestor{
		Filter:     history.Filter{IncludePatterns: []string{"src/app/"}},
		TrimPrefix: "src/app/",
	}

	e := newTestEngine(t)
	run := func() string {
		_, err := e.IndexDirectory(ctx, root)
		require.NoError(t, err)
		_, err = e.IngestHistory(ctx, &history.GitSource{Repo: repo}, ingestor)
		require.NoError(t, err)
		fp, err := e.Store().Fingerprint()
		require.NoError(t, err)
		return fp
	}

	assert.Equal(t, run(), run())
}
