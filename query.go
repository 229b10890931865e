package codeviz

import (
	"context"
	"fmt"

	"github.com/jward/codeviz/internal/store"
)

// DefaultTimelineFiles is how many of the most-changed files ChangeTimeline
// covers when asked for n <= 0.
const DefaultTimelineFiles = 25

// QueryBuilder answers read-only questions over the Store.
type QueryBuilder struct {
	store *store.Store
}

// TopChangedFiles returns the n files touched by the most commits, ties
// broken by ascending path. n <= 0 yields an empty list.
func (q *QueryBuilder) TopChangedFiles(n int) ([]FileCount, error) {
	out, err := q.store.TopChangedFiles(n)
	if err != nil {
		return nil, fmt.Errorf("top changed files: %w", err)
	}
	return out, nil
}

// FileChangeCounts returns the change count of every file any commit
// touched, in the same order as TopChangedFiles.
func (q *QueryBuilder) FileChangeCounts() ([]FileCount, error) {
	out, err := q.store.FileChangeCounts()
	if err != nil {
		return nil, fmt.Errorf("file change counts: %w", err)
	}
	return out, nil
}

// ChangeTimeline returns one point per (commit, file) for the n most
// changed files, oldest first. n <= 0 selects DefaultTimelineFiles.
func (q *QueryBuilder) ChangeTimeline(n int) ([]ChangePoint, error) {
	if n <= 0 {
		n = DefaultTimelineFiles
	}
	top, err := q.store.TopChangedFiles(n)
	if err != nil {
		return nil, fmt.Errorf("change timeline: %w", err)
	}
	if len(top) == 0 {
		return []ChangePoint{}, nil
	}
	paths := make([]string, len(top))
	for i, fc := range top {
		paths[i] = fc.Path
	}
	points, err := q.store.ChangePoints(paths)
	if err != nil {
		return nil, fmt.Errorf("change timeline: %w", err)
	}
	return points, nil
}

// Summary describes the store contents and the last runs.
type Summary struct {
	Counts
	FileEdges    int    `json:"file_dependencies"`
	Policy       string `json:"policy,omitempty"`
	RunID        string `json:"run_id,omitempty"`
	IndexedAt    string `json:"indexed_at,omitempty"`
	HistoryRunID string `json:"history_run_id,omitempty"`
}

// Summary returns row counts of every relation, the size of the derived
// file graph and the metadata of the last index and history runs.
func (q *QueryBuilder) Summary() (*Summary, error) {
	counts, err := q.store.Counts()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	fileEdges, err := q.FileDependencies()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	s := &Summary{Counts: counts, FileEdges: len(fileEdges)}

	for key, dst := range map[string]*string{
		MetaPolicy:       &s.Policy,
		MetaRunID:        &s.RunID,
		MetaIndexedAt:    &s.IndexedAt,
		MetaHistoryRunID: &s.HistoryRunID,
	} {
		v, err := q.store.GetMetadata(key)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		*dst = v
	}
	return s, nil
}

// SQL runs a read-only statement against the store and returns the column
// names and rows. Anything other than SELECT or WITH is rejected.
func (q *QueryBuilder) SQL(ctx context.Context, query string, args ...any) ([]string, []Row, error) {
	cols, rows, err := q.store.ReadOnlyQuery(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("sql: %w", err)
	}
	return cols, rows, nil
}

// NewQueryBuilder returns a QueryBuilder over an already open store, for
// readers that do not need an Engine.
func NewQueryBuilder(s *Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}
