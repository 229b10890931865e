package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the dependency graph and the
// revision history. Identity is by value: paths, symbols and hashes are the
// keys, there are no surrogate IDs.
type Store struct {
	db *sql.DB
	// ro is a second handle opened with mode=ro. Ad-hoc queries run on it
	// so no statement they contain can write.
	ro *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	ro, err := sql.Open("sqlite3", readOnlyDSN(dbPath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open read-only database: %w", err)
	}
	return &Store{db: db, ro: ro}, nil
}

// readOnlyDSN returns a file: URI for dbPath that SQLite opens read-only.
func readOnlyDSN(dbPath string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(dbPath)
	return "file:" + escaped + "?mode=ro&_busy_timeout=30000"
}

// Close closes both database handles.
func (s *Store) Close() error {
	roErr := s.ro.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return roErr
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the empty schema. Sessions start
// from a reset store; there is no other deletion path.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("reset: begin: %w", err)
	}
	defer tx.Rollback()

	// Children first so foreign keys never dangle mid-transaction.
	for _, table := range []string{
		"commit_files", "commits", "function_dependencies", "functions", "files", "metadata",
	} {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("reset: drop %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("reset: migrate: %w", err)
	}
	return tx.Commit()
}

// Tables lists the relations of the persisted format, in dependency order.
var Tables = []string{"files", "functions", "function_dependencies", "commits", "commit_files"}

const schemaDDL = `
-- Static dependency graph

CREATE TABLE IF NOT EXISTS files (
  path            TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS functions (
  name            TEXT NOT NULL,
  file_path       TEXT NOT NULL REFERENCES files(path),
  symbol          TEXT NOT NULL UNIQUE,
  PRIMARY KEY (name, file_path)
);

CREATE TABLE IF NOT EXISTS function_dependencies (
  caller          TEXT NOT NULL REFERENCES functions(symbol),
  callee          TEXT NOT NULL REFERENCES functions(symbol),
  PRIMARY KEY (caller, callee)
);

-- Revision history

CREATE TABLE IF NOT EXISTS commits (
  hash            TEXT PRIMARY KEY,
  author          TEXT NOT NULL,
  date            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commit_files (
  hash            TEXT NOT NULL REFERENCES commits(hash),
  file_path       TEXT NOT NULL REFERENCES files(path),
  PRIMARY KEY (hash, file_path)
);

-- Session bookkeeping

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file_path);
CREATE INDEX IF NOT EXISTS idx_function_dependencies_callee ON function_dependencies(callee);
CREATE INDEX IF NOT EXISTS idx_commit_files_file ON commit_files(file_path);
`

// SetMetadata records a session key/value pair, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" if absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}
