package store

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FileChangeCounts returns the number of commits touching each file that
// appears in commit_files, most changed first and ties broken by path.
func (s *Store) FileChangeCounts() ([]FileCount, error) {
	return s.fileCounts(`
		SELECT file_path, COUNT(*) AS n
		FROM commit_files
		GROUP BY file_path
		ORDER BY n DESC, file_path ASC`)
}

// TopChangedFiles returns at most n entries of FileChangeCounts. A
// non-positive n yields an empty result.
func (s *Store) TopChangedFiles(n int) ([]FileCount, error) {
	if n <= 0 {
		return []FileCount{}, nil
	}
	return s.fileCounts(`
		SELECT file_path, COUNT(*) AS n
		FROM commit_files
		GROUP BY file_path
		ORDER BY n DESC, file_path ASC
		LIMIT ?`, n)
}

// ChangeCountsFor returns the change count of each given path. Paths no
// commit touched are present with a count of zero.
func (s *Store) ChangeCountsFor(paths []string) (map[string]int, error) {
	counts := make(map[string]int, len(paths))
	if len(paths) == 0 {
		return counts, nil
	}
	for _, p := range paths {
		counts[p] = 0
	}
	for chunk := range slices.Chunk(paths, maxQueryVars) {
		rows, err := s.fileCounts(
			"SELECT file_path, COUNT(*) FROM commit_files WHERE file_path IN ("+
				placeholderList(len(chunk))+") GROUP BY file_path",
			stringsToArgs(chunk)...,
		)
		if err != nil {
			return nil, err
		}
		for _, fc := range rows {
			counts[fc.Path] = fc.Count
		}
	}
	return counts, nil
}

func (s *Store) fileCounts(query string, args ...any) ([]FileCount, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("file counts: %w", err)
	}
	defer rows.Close()
	out := []FileCount{}
	for rows.Next() {
		var fc FileCount
		if err := rows.Scan(&fc.Path, &fc.Count); err != nil {
			return nil, fmt.Errorf("scan file count: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// ChangePoints returns one point per (commit, file) pair for the given
// files, ordered by date, then file, then hash. An empty file list selects
// every file.
func (s *Store) ChangePoints(files []string) ([]ChangePoint, error) {
	query := `
		SELECT c.hash, c.author, c.date, cf.file_path
		FROM commit_files cf
		JOIN commits c ON c.hash = cf.hash`
	out := []ChangePoint{}
	if len(files) == 0 {
		if err := s.scanChangePoints(&out, query); err != nil {
			return nil, err
		}
	}
	files = slices.Compact(slices.Sorted(slices.Values(files)))
	for chunk := range slices.Chunk(files, maxQueryVars) {
		q := query + " WHERE cf.file_path IN (" + placeholderList(len(chunk)) + ")"
		if err := s.scanChangePoints(&out, q, stringsToArgs(chunk)...); err != nil {
			return nil, err
		}
	}
	// Stored dates keep their original offsets, so text order is not
	// chronological order.
	slices.SortFunc(out, func(a, b ChangePoint) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
	return out, nil
}

func (s *Store) scanChangePoints(out *[]ChangePoint, query string, args ...any) error {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("change points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cp ChangePoint
		var date string
		if err := rows.Scan(&cp.Hash, &cp.Author, &date, &cp.File); err != nil {
			return fmt.Errorf("scan change point: %w", err)
		}
		if cp.Date, err = time.Parse(dateLayout, date); err != nil {
			return fmt.Errorf("change point %s: parse date %q: %w", cp.Hash, date, err)
		}
		*out = append(*out, cp)
	}
	return rows.Err()
}

// Counts returns the row count of every persisted relation.
func (s *Store) Counts() (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"files", &c.Files},
		{"functions", &c.Functions},
		{"function_dependencies", &c.FunctionDependencies},
		{"commits", &c.Commits},
		{"commit_files", &c.CommitFiles},
	}
	for _, t := range targets {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + t.table).Scan(t.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}
