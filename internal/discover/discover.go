// Package discover finds the Python sources under a directory tree.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/codeviz/internal/syntax"
)

// skipDirs are never descended into by the fallback walk.
var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"venv":          {},
	"env":           {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Options tunes discovery.
type Options struct {
	// ExcludeDirs drops files under any directory with one of these names,
	// or under one of these slash-separated paths relative to root.
	ExcludeDirs []string
	// NoGit forces the filesystem walk even inside a git work tree.
	NoGit bool
}

// Files returns the root-relative, slash-separated paths of every source
// file the walker understands, sorted. Inside a git work tree the listing
// comes from git ls-files (tracked plus untracked, minus ignored);
// otherwise the tree is walked, honoring a root .gitignore.
func Files(ctx context.Context, root string, opts Options) ([]string, error) {
	var (
		paths []string
		err   error
	)
	if !opts.NoGit {
		paths, err = gitListFiles(ctx, root)
	}
	if opts.NoGit || err != nil {
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}

	excluded := newExcluder(opts.ExcludeDirs)
	out := paths[:0]
	for _, p := range paths {
		if _, ok := syntax.LanguageForFile(p); !ok {
			continue
		}
		if excluded(p) {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// gitListFiles uses git ls-files to list tracked and untracked (but not
// ignored) files under root.
func gitListFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// walkListFiles walks root, skipping hidden entries, symlinks, skipDirs
// and anything the root .gitignore matches.
func walkListFiles(root string) ([]string, error) {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		gi = nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		name := d.Name()
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

func newExcluder(dirs []string) func(string) bool {
	names := make(map[string]struct{})
	var prefixes []string
	for _, d := range dirs {
		d = strings.Trim(filepath.ToSlash(d), "/")
		if d == "" {
			continue
		}
		if strings.Contains(d, "/") {
			prefixes = append(prefixes, d+"/")
		} else {
			names[d] = struct{}{}
		}
	}
	return func(p string) bool {
		for _, pre := range prefixes {
			if strings.HasPrefix(p, pre) {
				return true
			}
		}
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := names[path.Base(dir)]; ok {
				return true
			}
		}
		return false
	}
}
