package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source yields raw commit blocks in ShowFormat, newest first. Iteration
// stops at the first error.
type Source interface {
	Blocks(ctx context.Context) iter.Seq2[string, error]
}

// StaticSource serves pre-captured blocks, e.g. from a saved log dump.
type StaticSource []string

func (s StaticSource) Blocks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, b := range s {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
	}
}

// DefaultWorkers bounds concurrent git show processes when GitSource.Workers
// is unset.
const DefaultWorkers = 8

// GitSource reads history from a local git repository: one git log call for
// the hash list, then one git show per commit. Shows run concurrently in
// windows of Workers*4 hashes; blocks are still yielded in log order.
type GitSource struct {
	Repo    string
	Workers int
	// Git is the git executable; "git" when empty.
	Git string
}

func (g *GitSource) Blocks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		hashes, err := g.hashes(ctx)
		if err != nil {
			yield("", err)
			return
		}

		workers := g.Workers
		if workers <= 0 {
			workers = DefaultWorkers
		}
		window := workers * 4

		for start := 0; start < len(hashes); start += window {
			end := min(start+window, len(hashes))
			batch := hashes[start:end]
			blocks := make([]string, len(batch))

			eg, egCtx := errgroup.WithContext(ctx)
			eg.SetLimit(workers)
			for i, h := range batch {
				eg.Go(func() error {
					out, err := g.run(egCtx, "show", "--name-only", "--date=default", "--pretty=format:"+ShowFormat, h)
					if err != nil {
						return fmt.Errorf("git show %s: %w", h, err)
					}
					blocks[i] = out
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				yield("", err)
				return
			}

			for _, b := range blocks {
				if !yield(b, nil) {
					return
				}
			}
		}
	}
}

func (g *GitSource) hashes(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "log", "--pretty=format:%H")
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	var hashes []string
	for _, line := range strings.Split(out, "\n") {
		if h := strings.TrimSpace(line); h != "" {
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

func (g *GitSource) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Git
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Repo
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return string(out), nil
}
