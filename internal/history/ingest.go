package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Transform rewrites the whole commit list after parsing and filtering. It
// may drop, reorder or edit records; the result replaces the list.
type Transform func(ctx context.Context, commits []Commit) ([]Commit, error)

// Ingestor parses and filters commits from a Source.
type Ingestor struct {
	Filter Filter
	// TrimPrefix is removed from the front of every surviving path, so
	// repository-relative history paths line up with paths relative to an
	// analysed subdirectory.
	TrimPrefix string
	// PathPrefix is prepended to every surviving path after TrimPrefix.
	PathPrefix string
	Transforms []Transform
	Logger     *slog.Logger
}

// Collect drains src and returns its commits in source order. Filtering
// runs on the raw log paths; a commit left with no files is kept. Parse
// errors and transform errors abort collection.
func (in *Ingestor) Collect(ctx context.Context, src Source) ([]Commit, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	matcher, err := in.Filter.Compile()
	if err != nil {
		return nil, fmt.Errorf("history: filter: %w", err)
	}

	var commits []Commit
	for block, err := range src.Blocks(ctx) {
		if err != nil {
			return nil, fmt.Errorf("history: source: %w", err)
		}
		c, err := ParseBlock(block)
		if err != nil {
			return nil, fmt.Errorf("history: record %d: %w", len(commits), err)
		}
		c.Files = in.rewrite(matcher.Apply(c.Files))
		commits = append(commits, c)
	}
	logger.Debug("history.collected", "commits", len(commits))

	for i, t := range in.Transforms {
		commits, err = t(ctx, commits)
		if err != nil {
			return nil, fmt.Errorf("history: transform %d: %w", i, err)
		}
		for _, c := range commits {
			if err := c.Validate(); err != nil {
				return nil, fmt.Errorf("history: transform %d: %w", i, err)
			}
		}
		logger.Debug("history.transformed", "transform", i, "commits", len(commits))
	}
	return commits, nil
}

func (in *Ingestor) rewrite(files []string) []string {
	if in.TrimPrefix == "" && in.PathPrefix == "" {
		return files
	}
	for i, f := range files {
		files[i] = in.PathPrefix + strings.TrimPrefix(f, in.TrimPrefix)
	}
	return files
}
