package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/codeviz/internal/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func edge(caller, callee string) graph.FunctionEdge {
	return graph.FunctionEdge{Caller: graph.Symbol(caller), Callee: graph.Symbol(callee)}
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return d
}

func fingerprint(t *testing.T, s *Store) string {
	t.Helper()
	fp, err := s.Fingerprint()
	require.NoError(t, err)
	return fp
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range append(Tables, "metadata") {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestReset_EmptiesEveryTable(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.UpsertFunctionEdge(edge("a.py.f", "a.py.g")))
	_, err := s.UpsertCommit(&Commit{Hash: "c1", Author: "ann", Date: date(t, "2024-01-01T00:00:00Z"), Files: []string{"a.py"}})
	require.NoError(t, err)
	require.NoError(t, s.SetMetadata("run_id", "abc"))

	require.NoError(t, s.Reset())

	counts, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
	v, err := s.GetMetadata("run_id")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMetadata_LastWriteWins(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.SetMetadata("policy", "local"))
	require.NoError(t, s.SetMetadata("policy", "global"))
	v, err := s.GetMetadata("policy")
	require.NoError(t, err)
	assert.Equal(t, "global", v)
}

// =============================================================================
// Function dependencies
// =============================================================================

func TestUpsertFunctionEdge_CreatesEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.UpsertFunctionEdge(edge("b.py.g", "a.py.f")))

	files, err := s.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, files)

	fns, err := s.Functions()
	require.NoError(t, err)
	assert.Equal(t, []Function{
		{Name: "f", FilePath: "a.py", Symbol: "a.py.f"},
		{Name: "g", FilePath: "b.py", Symbol: "b.py.g"},
	}, fns)
}

func TestUpsertFunctionEdges_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	edges := graph.NewFunctionEdgeSet()
	edges.Add(edge("a.py.f", "a.py.helper"))
	edges.Add(edge("b.py.g", "a.py.f"))

	require.NoError(t, s.UpsertFunctionEdges(edges))
	once := fingerprint(t, s)
	require.NoError(t, s.UpsertFunctionEdges(edges))
	assert.Equal(t, once, fingerprint(t, s))

	got, err := s.FunctionEdges()
	require.NoError(t, err)
	assert.Equal(t, edges.Sorted(), got.Sorted())
}

func TestUpsertFunction_SameNameDifferentFilesStayDistinct(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.UpsertFunctionEdge(edge("a.py.run", "a.py.parse")))
	require.NoError(t, s.UpsertFunctionEdge(edge("b.py.run", "b.py.parse")))

	fns, err := s.FunctionsByName("parse")
	require.NoError(t, err)
	require.Len(t, fns, 2)
	assert.Equal(t, "a.py", fns[0].FilePath)
	assert.Equal(t, "b.py", fns[1].FilePath)

	callers, err := s.Callers("b.py.parse")
	require.NoError(t, err)
	assert.Equal(t, []graph.Symbol{"b.py.run"}, callers)
}

func TestUpsertFunction_RejectsBareSymbol(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.UpsertFunction("helper")
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestCallersAndCallees(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	require.NoError(t, s.UpsertFunctionEdge(edge("a.py.f", "c.py.z")))
	require.NoError(t, s.UpsertFunctionEdge(edge("b.py.g", "c.py.z")))
	require.NoError(t, s.UpsertFunctionEdge(edge("a.py.f", "a.py.h")))

	callers, err := s.Callers("c.py.z")
	require.NoError(t, err)
	assert.Equal(t, []graph.Symbol{"a.py.f", "b.py.g"}, callers)

	callees, err := s.Callees("a.py.f")
	require.NoError(t, err)
	assert.Equal(t, []graph.Symbol{"a.py.h", "c.py.z"}, callees)

	none, err := s.Callees("c.py.z")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// Commits
// =============================================================================

func TestUpsertCommit_ReingestIsNoop(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	c1 := &Commit{Hash: "c1", Author: "ann", Date: date(t, "2024-03-01T10:00:00+02:00"), Files: []string{"x.py", "y.py"}}

	inserted, err := s.UpsertCommit(c1)
	require.NoError(t, err)
	assert.True(t, inserted)
	once := fingerprint(t, s)

	inserted, err = s.UpsertCommit(c1)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, once, fingerprint(t, s))

	files, err := s.CommitFiles("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.py", "y.py"}, files)
}

func TestUpsertCommit_ExistingHashIsNeverUpdated(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.UpsertCommit(&Commit{Hash: "c1", Author: "ann", Date: date(t, "2024-03-01T10:00:00Z"), Files: []string{"x.py"}})
	require.NoError(t, err)
	inserted, err := s.UpsertCommit(&Commit{Hash: "c1", Author: "bob", Date: date(t, "2025-01-01T00:00:00Z"), Files: []string{"z.py"}})
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.CommitByHash("c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ann", got.Author)
	assert.Equal(t, []string{"x.py"}, got.Files)
}

func TestCommitByHash_PreservesOffset(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	want := date(t, "2024-03-01T10:00:00-05:00")
	_, err := s.UpsertCommit(&Commit{Hash: "c1", Author: "ann", Date: want})
	require.NoError(t, err)

	got, err := s.CommitByHash("c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.Equal(got.Date))
	_, offset := got.Date.Zone()
	assert.Equal(t, -5*3600, offset)
	assert.Empty(t, got.Files)
}

func TestCommitByHash_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.CommitByHash("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertCommits_CountsNewOnly(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	commits := []Commit{
		{Hash: "c1", Author: "ann", Date: date(t, "2024-01-01T00:00:00Z"), Files: []string{"a.py"}},
		{Hash: "c2", Author: "bob", Date: date(t, "2024-01-02T00:00:00Z"), Files: []string{"b.py"}},
	}
	n, err := s.UpsertCommits(commits)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.UpsertCommits(commits)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.Commits()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].Hash, "newest first")
}

// =============================================================================
// Aggregation
// =============================================================================

func seedHistory(t *testing.T, s *Store) {
	t.Helper()
	for _, c := range []Commit{
		{Hash: "c1", Author: "ann", Date: date(t, "2024-01-01T12:00:00+05:00"), Files: []string{"x.py", "y.py"}},
		{Hash: "c2", Author: "bob", Date: date(t, "2024-01-01T09:00:00Z"), Files: []string{"x.py"}},
		{Hash: "c3", Author: "ann", Date: date(t, "2024-01-03T00:00:00Z"), Files: []string{"x.py", "z.py"}},
		{Hash: "c4", Author: "cat", Date: date(t, "2024-01-04T00:00:00Z"), Files: []string{"y.py"}},
	} {
		_, err := s.UpsertCommit(&c)
		require.NoError(t, err)
	}
}

func TestFileChangeCounts_OrderedByCountThenPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)

	counts, err := s.FileChangeCounts()
	require.NoError(t, err)
	assert.Equal(t, []FileCount{
		{Path: "x.py", Count: 3},
		{Path: "y.py", Count: 2},
		{Path: "z.py", Count: 1},
	}, counts)
}

func TestTopChangedFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)

	top, err := s.TopChangedFiles(2)
	require.NoError(t, err)
	assert.Equal(t, []FileCount{{Path: "x.py", Count: 3}, {Path: "y.py", Count: 2}}, top)

	top, err = s.TopChangedFiles(10)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	top, err = s.TopChangedFiles(0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestChangeCountsFor_MissingPathsAreZero(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)

	counts, err := s.ChangeCountsFor([]string{"x.py", "never.py"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x.py": 3, "never.py": 0}, counts)
}

func TestChangePoints_ChronologicalAcrossOffsets(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)

	points, err := s.ChangePoints([]string{"x.py"})
	require.NoError(t, err)
	require.Len(t, points, 3)
	// c1 is 07:00Z, c2 is 09:00Z even though c1's local clock reads later.
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{points[0].Hash, points[1].Hash, points[2].Hash})

	all, err := s.ChangePoints(nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)
	require.NoError(t, s.UpsertFunctionEdge(edge("x.py.f", "y.py.g")))

	c, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, Counts{Files: 3, Functions: 2, FunctionDependencies: 1, Commits: 4, CommitFiles: 6}, c)
}

// =============================================================================
// Fingerprint & read-only queries
// =============================================================================

func TestFingerprint_IndependentOfInsertionOrder(t *testing.T) {
	t.Parallel()
	a := newTestStore(t)
	b := newTestStore(t)

	require.NoError(t, a.UpsertFunctionEdge(edge("a.py.f", "b.py.g")))
	require.NoError(t, a.UpsertFunctionEdge(edge("c.py.h", "a.py.f")))

	require.NoError(t, b.UpsertFunctionEdge(edge("c.py.h", "a.py.f")))
	require.NoError(t, b.UpsertFunctionEdge(edge("a.py.f", "b.py.g")))

	assert.Equal(t, fingerprint(t, a), fingerprint(t, b))

	require.NoError(t, b.UpsertFunction("d.py.k"))
	assert.NotEqual(t, fingerprint(t, a), fingerprint(t, b))
}

func TestReadOnlyQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)

	cols, rows, err := s.ReadOnlyQuery(context.Background(),
		"SELECT hash, author FROM commits WHERE author = ? ORDER BY hash", "ann")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash", "author"}, cols)
	require.Len(t, rows, 2)
	assert.Equal(t, "c1", rows[0]["hash"])
	assert.Equal(t, "ann", rows[1]["author"])
}

func TestReadOnlyQuery_RejectsWrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, _, err := s.ReadOnlyQuery(context.Background(), "DELETE FROM commits")
	assert.ErrorIs(t, err, ErrNotReadOnly)
}

func TestReadOnlyQuery_WritesHiddenBehindSelectFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{"data-modifying CTE", "WITH x AS (SELECT 1) DELETE FROM commit_files"},
		{"trailing statement", "SELECT 1; DELETE FROM commit_files"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(t)
			seedHistory(t, s)

			_, _, err := s.ReadOnlyQuery(context.Background(), tt.query)
			assert.Error(t, err)

			counts, err := s.Counts()
			require.NoError(t, err)
			assert.Equal(t, 6, counts.CommitFiles)
		})
	}
}

func TestChangeCountsFor_ManyPaths(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedHistory(t, s)

	// More paths than SQLite accepts as bound parameters in one statement.
	paths := make([]string, 0, 40000)
	for i := range 40000 {
		paths = append(paths, fmt.Sprintf("gen/m%05d.py", i))
	}
	paths = append(paths, "x.py", "z.py")

	counts, err := s.ChangeCountsFor(paths)
	require.NoError(t, err)
	assert.Len(t, counts, 40002)
	assert.Equal(t, 3, counts["x.py"])
	assert.Equal(t, 1, counts["z.py"])
	assert.Equal(t, 0, counts["gen/m00000.py"])

	points, err := s.ChangePoints(paths)
	require.NoError(t, err)
	assert.Len(t, points, 4)
}
