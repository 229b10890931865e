package store

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"
)

// dateLayout is how commit dates are persisted: RFC 3339 with the original
// UTC offset preserved.
const dateLayout = time.RFC3339

// UpsertCommit records a commit and its touched files in one transaction.
// A commit whose hash is already present is skipped entirely, files
// included; inserted reports whether anything was written.
func (s *Store) UpsertCommit(c *Commit) (inserted bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("upsert commit: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT OR IGNORE INTO commits (hash, author, date) VALUES (?, ?, ?)",
		c.Hash, c.Author, c.Date.Format(dateLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert commit %s: %w", c.Hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert commit %s: rows affected: %w", c.Hash, err)
	}
	if n == 0 {
		return false, nil
	}

	for _, f := range c.Files {
		if _, err := tx.Exec("INSERT OR IGNORE INTO files (path) VALUES (?)", f); err != nil {
			return false, fmt.Errorf("insert file %q: %w", f, err)
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO commit_files (hash, file_path) VALUES (?, ?)", c.Hash, f,
		); err != nil {
			return false, fmt.Errorf("insert commit file %s %q: %w", c.Hash, f, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsert commit %s: commit: %w", c.Hash, err)
	}
	return true, nil
}

// UpsertCommits records each commit in its own transaction and returns how
// many were new. It stops at the first error.
func (s *Store) UpsertCommits(commits []Commit) (int, error) {
	inserted := 0
	for i := range commits {
		ok, err := s.UpsertCommit(&commits[i])
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// CommitByHash returns the commit with its files, or nil if absent.
func (s *Store) CommitByHash(hash string) (*Commit, error) {
	c := &Commit{}
	var date string
	err := s.db.QueryRow("SELECT hash, author, date FROM commits WHERE hash = ?", hash).
		Scan(&c.Hash, &c.Author, &date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commit by hash: %w", err)
	}
	if c.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("commit %s: parse date %q: %w", hash, date, err)
	}
	if c.Files, err = s.CommitFiles(hash); err != nil {
		return nil, err
	}
	return c, nil
}

// CommitFiles returns the files touched by a commit, sorted.
func (s *Store) CommitFiles(hash string) ([]string, error) {
	return s.queryStrings("SELECT file_path FROM commit_files WHERE hash = ? ORDER BY file_path", hash)
}

// Commits returns every commit with its files, newest first.
func (s *Store) Commits() ([]Commit, error) {
	rows, err := s.db.Query("SELECT hash, author, date FROM commits")
	if err != nil {
		return nil, fmt.Errorf("commits: %w", err)
	}
	var commits []Commit
	for rows.Next() {
		var c Commit
		var date string
		if err := rows.Scan(&c.Hash, &c.Author, &date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		if c.Date, err = time.Parse(dateLayout, date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("commit %s: parse date %q: %w", c.Hash, date, err)
		}
		commits = append(commits, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(commits, func(a, b Commit) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
	for i := range commits {
		files, err := s.CommitFiles(commits[i].Hash)
		if err != nil {
			return nil, err
		}
		commits[i].Files = files
	}
	return commits, nil
}
