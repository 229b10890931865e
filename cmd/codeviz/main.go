package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/codeviz"
	"github.com/jward/codeviz/internal/config"
	"github.com/jward/codeviz/internal/history"
	"github.com/jward/codeviz/internal/resolve"
	"github.com/jward/codeviz/internal/telemetry"
)

var (
	flagDB          string
	flagFormat      string
	flagConfig      string
	flagMetricsFile string
	flagTrace       bool
	flagLogLevel    string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// Set by the root PersistentPreRunE.
var (
	cfg             *config.Config
	logger          *slog.Logger
	shutdownTracing func(context.Context) error
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	flushTelemetry()
	if err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codeviz",
	Short:         "Function dependency graphs joined with revision history",
	Long:          "Codeviz indexes a Python tree with tree-sitter and its git history, producing a SQLite database of function dependencies and change counts.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		return setup(cmd)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: store.path from config, relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./codeviz.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().BoolVar(&flagTrace, "trace", false, "write OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "log level: debug|info|warn|error")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(queryCmd)
}

// setup loads configuration and installs the logger and tracer.
func setup(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(flagLogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", flagLogLevel, err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = flagMetricsFile
	}
	if cmd.Flags().Changed("trace") {
		cfg.Telemetry.Trace = flagTrace
	}

	if cfg.Telemetry.Trace {
		shutdownTracing, err = telemetry.SetupTracing(os.Stderr)
		if err != nil {
			return err
		}
	}
	return nil
}

// flushTelemetry flushes spans and writes the metrics file, if configured.
func flushTelemetry() {
	if shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdownTracing(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: flushing traces: %s\n", err)
		}
		cancel()
	}
	if cfg != nil && cfg.Telemetry.MetricsFile != "" {
		if err := telemetry.WriteMetrics(cfg.Telemetry.MetricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s\n", err)
		}
	}
}

var (
	flagKeep        bool
	flagWithHistory bool
	flagPolicy      string
	flagExcludeDirs []string
	flagSerial      bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a Python tree and, optionally, its git history",
	Long: "Walks the Python sources under path, resolves function dependencies, and writes them to the SQLite database.\n" +
		"The database is rebuilt from scratch unless --keep is given.",
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagKeep, "keep", false, "keep existing rows instead of rebuilding the database")
	indexCmd.Flags().BoolVar(&flagWithHistory, "history", false, "also ingest the git history of the repository")
	indexCmd.Flags().StringVar(&flagPolicy, "policy", "", "resolution policy: local|global (default from config)")
	indexCmd.Flags().StringSliceVar(&flagExcludeDirs, "exclude-dir", nil, "directory name or relative path to skip (repeatable)")
	indexCmd.Flags().BoolVar(&flagSerial, "serial", false, "walk and resolve files on one goroutine")
	addHistoryFlags(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	if len(args) == 0 && cfg.Source.Root != "" {
		args = []string{cfg.Source.Root}
	}
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	policyName := cfg.Resolution.Policy
	if flagPolicy != "" {
		policyName = flagPolicy
	}
	policy, err := resolve.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	engine, err := codeviz.New(dbPath,
		codeviz.WithLogger(logger),
		codeviz.WithPolicy(policy),
		codeviz.WithParallel(!flagSerial),
		codeviz.WithExcludeDirs(cfg.Source.ExcludeDirs...),
		codeviz.WithExcludeDirs(flagExcludeDirs...),
	)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	if !flagKeep {
		if err := engine.Reset(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	report, err := engine.IndexDirectory(ctx, targetDir)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Indexed %s: %d file(s), %d function(s), %d edge(s), %d file edge(s) [%s policy]\n",
		targetDir, report.Parsed, report.Functions, report.Edges, report.FileEdges, report.Policy)
	for _, f := range report.Failed {
		fmt.Fprintf(os.Stderr, "  skipped %s: %s\n", f.Path, f.Error)
	}

	if flagWithHistory {
		repo := cfg.History.Repo
		if repo == "" {
			repo = repoRoot
		}
		hist, err := ingest(cmd, engine, repo, targetDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Ingested %d commit(s) from %s (%d new, %d already stored)\n",
			hist.Commits, repo, hist.Inserted, hist.Skipped)
	}

	fmt.Fprintf(os.Stderr, "Done in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git entry.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, or the
// configured store path. Relative paths are taken from the repo root.
func resolveDBPath(repoRoot string) string {
	p := cfg.Store.Path
	if flagDB != "" {
		p = flagDB
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// treePrefix returns the slash-separated path of tree relative to repo,
// with a trailing slash, or "" when tree is the repo itself or lies
// outside it.
func treePrefix(repo, tree string) string {
	rel, err := filepath.Rel(repo, tree)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel) + "/"
}

// historyPrefix returns the path of tree relative to the top level of the
// repository containing repo. git prints changed paths relative to the top
// level even when run from a subdirectory.
func historyPrefix(repo, tree string) string {
	return treePrefix(findRepoRoot(repo), tree)
}

// ingest runs history ingestion for repo into engine, with paths aligned
// to tree.
func ingest(cmd *cobra.Command, engine *codeviz.Engine, repo, tree string) (*codeviz.HistoryReport, error) {
	absRepo, err := filepath.Abs(repo)
	if err != nil {
		return nil, fmt.Errorf("resolving repo %q: %w", repo, err)
	}
	hc := historyConfig(cmd)
	ingestor, err := buildIngestor(hc, engine, historyPrefix(absRepo, tree))
	if err != nil {
		return nil, err
	}
	src := &history.GitSource{Repo: absRepo, Workers: hc.Workers}
	report, err := engine.IngestHistory(cmd.Context(), src, ingestor)
	if err != nil {
		return nil, fmt.Errorf("ingesting history: %w", err)
	}
	return report, nil
}
