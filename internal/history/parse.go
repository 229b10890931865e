package history

import (
	"fmt"
	"strings"
	"time"
)

// ShowFormat is the pretty format requested from git show: hash, author
// name, subject and author date, one per line, followed by the file list
// that --name-only appends.
const ShowFormat = "%H%n%an%n%s%n%ad"

// DateLayout matches git's default date format, e.g.
// "Tue Mar 5 14:03:12 2024 +0100".
const DateLayout = "Mon Jan 2 15:04:05 2006 -0700"

// ParseBlock parses one commit's ShowFormat output. Blank lines in the file
// section are skipped. A block with fewer than four header lines, an empty
// hash or author, or an unparseable date yields ErrMalformedCommit.
func ParseBlock(block string) (Commit, error) {
	lines := strings.Split(strings.TrimRight(strings.ReplaceAll(block, "\r\n", "\n"), " \t\n"), "\n")
	if len(lines) < 4 {
		return Commit{}, fmt.Errorf("%w: expected 4 header lines, got %d", ErrMalformedCommit, len(lines))
	}

	c := Commit{
		Hash:    strings.TrimSpace(lines[0]),
		Author:  strings.TrimSpace(lines[1]),
		Subject: strings.TrimSpace(lines[2]),
	}
	rawDate := strings.TrimSpace(lines[3])
	if rawDate == "" {
		return Commit{}, fmt.Errorf("%w: commit %s: missing date", ErrMalformedCommit, c.Hash)
	}
	date, err := time.Parse(DateLayout, rawDate)
	if err != nil {
		return Commit{}, fmt.Errorf("%w: commit %s: date %q: %v", ErrMalformedCommit, c.Hash, rawDate, err)
	}
	c.Date = date

	c.Files = []string{}
	for _, line := range lines[4:] {
		if f := strings.TrimSpace(line); f != "" {
			c.Files = append(c.Files, f)
		}
	}

	if err := c.Validate(); err != nil {
		return Commit{}, err
	}
	return c, nil
}
