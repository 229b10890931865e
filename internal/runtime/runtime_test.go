package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/risor-io/risor/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/codeviz/internal/graph"
	"github.com/jward/codeviz/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, files := range [][]string{{"a.py", "b.py"}, {"a.py"}, {"c.py"}} {
		_, err := s.UpsertCommit(&store.Commit{
			Hash:   string(rune('x' + i)),
			Author: "ann",
			Date:   day.AddDate(0, 0, i),
			Files:  files,
		})
		require.NoError(t, err)
	}
	require.NoError(t, s.UpsertFunctionEdge(graph.FunctionEdge{Caller: "b.py.g", Callee: "a.py.f"}))
}

// =============================================================================
// Evaluation
// =============================================================================

func TestRunSource_ReturnsFinalValue(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	result, err := rt.RunSource(context.Background(), "x := 20\nx + 22", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ToGo(result))
}

func TestRunSource_ExtraGlobals(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	result, err := rt.RunSource(context.Background(), `len(items)`, map[string]any{
		"items": FromGo([]string{"a", "b", "c"}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ToGo(result))
}

func TestRunSource_ScriptError(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	_, err := rt.RunSource(context.Background(), `assert(false, "boom")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<inline>")
}

func TestRunSource_LogRoutesToSlog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt := NewRuntime(nil, "", WithRuntimeLogger(logger))

	_, err := rt.RunSource(context.Background(), `log.Warn("keeping 3 commits")`, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "keeping 3 commits")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "source=script")
}

// =============================================================================
// Store bridges
// =============================================================================

func TestDBQuery_ReturnsRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seed(t, s)
	rt := NewRuntime(s, "")

	result, err := rt.RunSource(context.Background(),
		`db_query("SELECT file_path, COUNT(*) AS n FROM commit_files WHERE file_path = ? GROUP BY file_path", "a.py")`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"file_path": "a.py", "n": int64(2)}}, ToGo(result))
}

func TestDBQuery_RejectsWrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	rt := NewRuntime(s, "")

	_, err := rt.RunSource(context.Background(), `db_query("DELETE FROM commits")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

func TestDBQuery_WriteCTEFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	rt := NewRuntime(s, "")

	_, err := rt.RunSource(context.Background(), `db_query("WITH x AS (SELECT 1) DELETE FROM commits")`, nil)
	require.Error(t, err)
}

func TestTopChangedFiles_Bridge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seed(t, s)
	rt := NewRuntime(s, "")

	result, err := rt.RunSource(context.Background(), `top_changed_files(1)`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"path": "a.py", "count": int64(2)}}, ToGo(result))
}

func TestCallersCallees_Bridge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seed(t, s)
	rt := NewRuntime(s, "")

	result, err := rt.RunSource(context.Background(), `[callers("a.py.f"), callees("a.py.f")]`, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"b.py.g"}, []any{}}, ToGo(result))
}

func TestStoreBridges_AbsentWithoutStore(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	_, err := rt.RunSource(context.Background(), `db_query("SELECT 1")`, nil)
	require.Error(t, err)
}

// =============================================================================
// Conversion
// =============================================================================

func TestConversion_RoundTrip(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"hash":  "c1",
		"n":     int64(3),
		"ratio": 0.5,
		"ok":    true,
		"none":  nil,
		"files": []any{"a.py", "b.py"},
	}
	assert.Equal(t, in, ToGo(FromGo(in)))
	assert.Equal(t, object.Nil, FromGo(nil))
}

// =============================================================================
// Script loading
// =============================================================================

func TestRunScript_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`1 + 1`), 0644))

	rt := NewRuntime(nil, dir)
	result, err := rt.RunScript(context.Background(), "test.risor", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ToGo(result))
}

func TestRunScript_MissingFile(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())
	_, err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"filters/recent.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/filters/recent.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("missing.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FallsBackToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestImport_FSImporter(t *testing.T) {
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func is_bot(author) {
	return author == "dependabot"
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

lib_helpers.is_bot("dependabot")
`
	result, err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
	assert.Equal(t, true, ToGo(result))
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import helper
helper.do_log("test message")
`
	_, err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}
