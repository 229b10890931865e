package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/jward/codeviz"
	"github.com/jward/codeviz/internal/config"
	"github.com/jward/codeviz/internal/history"
)

var (
	flagInclude         []string
	flagExclude         []string
	flagIncludePatterns []string
	flagExcludePatterns []string
	flagPathPrefix      string
	flagTrimPrefix      string
	flagFilterScript    string
	flagWorkers         int
	flagTree            string
)

var historyCmd = &cobra.Command{
	Use:   "history [repo]",
	Short: "Ingest the git history of a repository",
	Long: "Reads every commit of repo with git log and git show, filters the changed files, and upserts the commits.\n" +
		"Commits already in the database are skipped. Patterns are regular expressions anchored at the start of the path.",
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	addHistoryFlags(historyCmd)
	historyCmd.Flags().StringVar(&flagTree, "tree", "", "analysed tree inside repo; its relative path is trimmed from history paths")
}

// addHistoryFlags registers the filter and path flags shared by index
// --history and history.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&flagInclude, "include", nil, "keep only these exact paths (repeatable)")
	cmd.Flags().StringSliceVar(&flagExclude, "exclude", nil, "drop these exact paths (repeatable)")
	cmd.Flags().StringSliceVar(&flagIncludePatterns, "include-pattern", nil, "keep only paths matching one of these patterns (repeatable)")
	cmd.Flags().StringSliceVar(&flagExcludePatterns, "exclude-pattern", nil, "drop paths matching any of these patterns (repeatable)")
	cmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "prepend this to every kept path")
	cmd.Flags().StringVar(&flagTrimPrefix, "trim-prefix", "", "remove this from the front of every kept path")
	cmd.Flags().StringVar(&flagFilterScript, "filter-script", "", "Risor script that rewrites the commit list")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "concurrent git show processes (default from config)")
}

// historyConfig returns the configured history settings with any flags the
// user set applied on top.
func historyConfig(cmd *cobra.Command) config.HistoryConfig {
	hc := cfg.History
	flags := cmd.Flags()
	if flags.Changed("include") {
		hc.Include = flagInclude
	}
	if flags.Changed("exclude") {
		hc.Exclude = flagExclude
	}
	if flags.Changed("include-pattern") {
		hc.IncludePatterns = flagIncludePatterns
	}
	if flags.Changed("exclude-pattern") {
		hc.ExcludePatterns = flagExcludePatterns
	}
	if flags.Changed("path-prefix") {
		hc.PathPrefix = flagPathPrefix
	}
	if flags.Changed("trim-prefix") {
		hc.TrimPrefix = flagTrimPrefix
	}
	if flags.Changed("filter-script") {
		hc.FilterScript = flagFilterScript
	}
	if flags.Changed("workers") {
		hc.Workers = flagWorkers
	}
	return hc
}

// buildIngestor turns history settings into an Ingestor. When no trim
// prefix is configured, treePrefix is used; if that is set and no include
// filter is configured, history is also limited to paths under it.
func buildIngestor(hc config.HistoryConfig, engine *codeviz.Engine, treePrefix string) (*history.Ingestor, error) {
	filter := history.Filter{
		IncludeExact:    hc.Include,
		ExcludeExact:    hc.Exclude,
		IncludePatterns: hc.IncludePatterns,
		ExcludePatterns: hc.ExcludePatterns,
	}

	trim := hc.TrimPrefix
	if trim == "" && treePrefix != "" {
		trim = treePrefix
		if len(filter.IncludeExact) == 0 && len(filter.IncludePatterns) == 0 {
			filter.IncludePatterns = []string{regexp.QuoteMeta(treePrefix)}
		}
	}

	in := &history.Ingestor{
		Filter:     filter,
		TrimPrefix: trim,
		PathPrefix: hc.PathPrefix,
		Logger:     logger,
	}
	if hc.FilterScript != "" {
		script, err := filepath.Abs(hc.FilterScript)
		if err != nil {
			return nil, fmt.Errorf("resolving filter script %q: %w", hc.FilterScript, err)
		}
		if _, err := os.Stat(script); err != nil {
			return nil, fmt.Errorf("filter script: %w", err)
		}
		in.Transforms = append(in.Transforms, engine.FilterScript(script))
	}
	return in, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo := cfg.History.Repo
	if len(args) > 0 {
		repo = args[0]
	}
	if repo == "" {
		repo = "."
	}
	absRepo, err := resolveTargetDir([]string{repo})
	if err != nil {
		return err
	}

	repoRoot := findRepoRoot(absRepo)
	dbPath := resolveDBPath(repoRoot)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	tree := flagTree
	if tree == "" {
		tree = cfg.Source.Root
	}
	if tree == "" {
		tree = absRepo
	}
	tree, err = filepath.Abs(tree)
	if err != nil {
		return fmt.Errorf("resolving tree %q: %w", tree, err)
	}

	engine, err := codeviz.New(dbPath, codeviz.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	report, err := ingest(cmd, engine, absRepo, tree)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Ingested %d commit(s) from %s (%d new, %d already stored)\n",
		report.Commits, absRepo, report.Inserted, report.Skipped)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}
