// Package history turns revision-log output into filtered commit records.
// Raw commit text comes from a Source, is parsed into Commits, has its
// file list narrowed by a Filter, and is then handed to any caller-supplied
// Transforms before it reaches the store.
package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedCommit reports a commit record missing its hash, author or
// date, or carrying a date that cannot be parsed.
var ErrMalformedCommit = errors.New("malformed commit record")

// Commit is one revision: who made it, when, and which files it touched.
// Files keeps the log's order.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Subject string    `json:"subject,omitempty"`
	Date    time.Time `json:"date"`
	Files   []string  `json:"files"`
}

// Validate returns ErrMalformedCommit when a required field is missing.
func (c Commit) Validate() error {
	switch {
	case c.Hash == "":
		return fmt.Errorf("%w: missing hash", ErrMalformedCommit)
	case c.Author == "":
		return fmt.Errorf("%w: commit %s: missing author", ErrMalformedCommit, c.Hash)
	case c.Date.IsZero():
		return fmt.Errorf("%w: commit %s: missing date", ErrMalformedCommit, c.Hash)
	}
	return nil
}
