package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint computes a deterministic hash of the persisted relations.
// Rows are hashed in primary key order, so two stores holding the same
// sets fingerprint identically regardless of insertion order. Metadata is
// excluded.
func (s *Store) Fingerprint() (string, error) {
	h := sha256.New()
	queries := []struct {
		table string
		query string
	}{
		{"files", "SELECT path FROM files ORDER BY path"},
		{"functions", "SELECT file_path || char(31) || name FROM functions ORDER BY file_path, name"},
		{"function_dependencies", "SELECT caller || char(31) || callee FROM function_dependencies ORDER BY caller, callee"},
		{"commits", "SELECT hash || char(31) || author || char(31) || date FROM commits ORDER BY hash"},
		{"commit_files", "SELECT hash || char(31) || file_path FROM commit_files ORDER BY hash, file_path"},
	}
	for _, q := range queries {
		rows, err := s.queryStrings(q.query)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", q.table, err)
		}
		fmt.Fprintf(h, "table:%s:%d\n", q.table, len(rows))
		for _, r := range rows {
			fmt.Fprintf(h, "%s\n", r)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
