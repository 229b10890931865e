package codeviz

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jward/codeviz/internal/discover"
	"github.com/jward/codeviz/internal/graph"
	"github.com/jward/codeviz/internal/history"
	"github.com/jward/codeviz/internal/resolve"
	"github.com/jward/codeviz/internal/runtime"
	"github.com/jward/codeviz/internal/store"
	"github.com/jward/codeviz/internal/syntax"
	"github.com/jward/codeviz/internal/telemetry"
)

// Metadata keys written by the engine.
const (
	MetaRunID        = "run_id"
	MetaPolicy       = "policy"
	MetaIndexedAt    = "indexed_at"
	MetaHistoryRunID = "history_run_id"
)

// Engine orchestrates the codeviz pipeline: source walking, symbol
// resolution, history ingestion, and query access.
type Engine struct {
	store   *store.Store
	runtime *runtime.Runtime
	logger  *slog.Logger

	policy      resolve.Policy
	excludeDirs []string
	scriptsDir  string
	scriptsFS   fs.FS

	// useParallel enables the worker pool for walking and resolution.
	useParallel bool
	// workers bounds the pool; 0 means one per CPU.
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPolicy selects the resolution policy applied to every run.
func WithPolicy(p resolve.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithParallel controls the worker pool. When true (default), files are
// walked and resolved concurrently and a single goroutine commits the
// results to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the worker pool. n <= 0 means one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExcludeDirs drops discovered files under these directory names or
// root-relative paths.
func WithExcludeDirs(dirs ...string) Option {
	return func(e *Engine) {
		e.excludeDirs = append(e.excludeDirs, dirs...)
	}
}

// WithScriptsDir sets the directory Risor filter scripts and their imports
// are loaded from.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads Risor scripts from fsys instead of the scripts
// directory on disk. This enables embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// New creates an Engine backed by a SQLite database at dbPath. The schema
// is created if missing; existing rows are kept until Reset.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("codeviz: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("codeviz: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      slog.Default(),
		policy:      resolve.Local,
		useParallel: true, // default to parallel walking
	}
	for _, opt := range opts {
		opt(e)
	}

	rtOpts := []runtime.RuntimeOption{runtime.WithRuntimeLogger(e.logger)}
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(s, e.scriptsDir, rtOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Runtime returns the Risor runtime bound to this engine's store.
func (e *Engine) Runtime() *runtime.Runtime {
	return e.runtime
}

// Policy returns the resolution policy of the engine.
func (e *Engine) Policy() resolve.Policy {
	return e.policy
}

// Reset drops and recreates every relation. By convention a session starts
// from an empty store.
func (e *Engine) Reset() error {
	if err := e.store.Reset(); err != nil {
		return fmt.Errorf("codeviz: %w", err)
	}
	e.logger.Info("store.reset")
	return nil
}

// Query returns a QueryBuilder over the engine's store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// SourceFile is one file handed to the walker: its tree-relative,
// slash-separated path and its text.
type SourceFile struct {
	Path    string
	Content []byte
}

// FileError is a per-file failure that was skipped.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	RunID     string         `json:"run_id"`
	Policy    resolve.Policy `json:"policy"`
	Files     int            `json:"files"`
	Parsed    int            `json:"parsed"`
	Failed    []FileError    `json:"failed"`
	Dropped   int            `json:"dropped_calls"`
	Functions int            `json:"functions"`
	Edges     int            `json:"edges"`
	FileEdges int            `json:"file_edges"`
	Duration  time.Duration  `json:"duration_ns"`
}

// HistoryReport summarizes one history ingestion run.
type HistoryReport struct {
	RunID    string `json:"run_id"`
	Commits  int    `json:"commits"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

// walkResult is the outcome of walking one file.
type walkResult struct {
	path string
	obs  *syntax.FileObservations
	err  error
}

// IndexSources walks, resolves and stores files. A file that fails to
// parse is logged, recorded in the report and skipped; only store errors
// and cancellation abort the run.
func (e *Engine) IndexSources(ctx context.Context, files []SourceFile) (report *IndexReport, err error) {
	start := time.Now()
	runID := telemetry.NewRunID()
	logger := e.logger.With("run_id", runID)

	ctx, span := telemetry.StartSpan(ctx, "codeviz.index", runID,
		attribute.String("codeviz.policy", string(e.policy)),
		attribute.Int("codeviz.files", len(files)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	var supported []SourceFile
	for _, f := range files {
		if _, ok := syntax.LanguageForFile(f.Path); !ok {
			logger.Debug("index.skip", "file", f.Path, "reason", "unsupported")
			continue
		}
		supported = append(supported, f)
	}
	logger.Info("index.start", "files", len(supported), "policy", e.policy, "parallel", e.useParallel)

	report = &IndexReport{
		RunID:  runID,
		Policy: e.policy,
		Files:  len(supported),
		Failed: []FileError{},
	}

	// ---- Walk ----
	walkStart := time.Now()
	var walked []walkResult
	if e.useParallel {
		walked = e.walkParallel(ctx, supported)
	} else {
		walked = e.walkSerial(ctx, supported)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("codeviz: index: %w", err)
	}
	telemetry.ObserveStage("walk", walkStart)

	var parsed []*syntax.FileObservations
	for _, w := range walked {
		telemetry.RecordFileParsed(w.err)
		if w.err != nil {
			logger.Warn("index.parse_failed", "file", w.path, "error", w.err)
			report.Failed = append(report.Failed, FileError{Path: w.path, Error: w.err.Error()})
			continue
		}
		parsed = append(parsed, w.obs)
		report.Dropped += w.obs.Dropped
	}
	report.Parsed = len(parsed)

	// ---- Resolve ----
	resolveStart := time.Now()
	resolver := resolve.NewResolver(e.policy, parsed)
	var resolved []resolvedFile
	if e.useParallel {
		resolved = e.resolveParallel(ctx, resolver, parsed)
	} else {
		resolved = e.resolveSerial(ctx, resolver, parsed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("codeviz: index: %w", err)
	}
	telemetry.ObserveStage("resolve", resolveStart)

	// ---- Store (single writer) ----
	storeStart := time.Now()
	all := graph.NewFunctionEdgeSet()
	for _, r := range resolved {
		if err := e.store.CommitEdgeBatch(r.batch); err != nil {
			return nil, fmt.Errorf("codeviz: store %s: %w", r.path, err)
		}
		all.Merge(r.edges)
	}
	telemetry.ObserveStage("store", storeStart)

	report.Functions = len(resolve.DefinedSymbols(parsed))
	report.Edges = all.Len()
	report.FileEdges = graph.Collapse(all).Len()
	telemetry.RecordEdges(string(e.policy), report.Edges)

	if err := e.writeRunMetadata(runID); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	logger.Info("index.done",
		"parsed", report.Parsed,
		"failed", len(report.Failed),
		"functions", report.Functions,
		"edges", report.Edges,
		"file_edges", report.FileEdges,
		"duration", report.Duration,
	)
	return report, nil
}

// IndexDirectory discovers the Python sources under root and indexes them
// with paths relative to root. Files that cannot be read are reported like
// parse failures.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (*IndexReport, error) {
	discoverStart := time.Now()
	paths, err := discover.Files(ctx, root, discover.Options{ExcludeDirs: e.excludeDirs})
	if err != nil {
		return nil, fmt.Errorf("codeviz: discover %s: %w", root, err)
	}
	telemetry.ObserveStage("discover", discoverStart)
	e.logger.Debug("index.discovered", "root", root, "files", len(paths))

	var (
		files      []SourceFile
		readFailed []FileError
	)
	for _, p := range paths {
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			e.logger.Warn("index.read_failed", "file", p, "error", err)
			readFailed = append(readFailed, FileError{Path: p, Error: err.Error()})
			continue
		}
		files = append(files, SourceFile{Path: p, Content: content})
	}

	report, err := e.IndexSources(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(readFailed) > 0 {
		report.Files += len(readFailed)
		report.Failed = append(report.Failed, readFailed...)
		sort.Slice(report.Failed, func(i, j int) bool {
			return report.Failed[i].Path < report.Failed[j].Path
		})
	}
	return report, nil
}

// IngestHistory collects commits from src through ingestor and upserts
// them. A hash already in the store is skipped as a whole. A malformed
// record aborts the run before anything is written.
func (e *Engine) IngestHistory(ctx context.Context, src history.Source, ingestor *history.Ingestor) (report *HistoryReport, err error) {
	start := time.Now()
	runID := telemetry.NewRunID()
	logger := e.logger.With("run_id", runID)

	ctx, span := telemetry.StartSpan(ctx, "codeviz.history", runID)
	defer func() { telemetry.EndSpan(span, err) }()

	in := history.Ingestor{}
	if ingestor != nil {
		in = *ingestor
	}
	if in.Logger == nil {
		in.Logger = logger
	}

	commits, err := in.Collect(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("codeviz: %w", err)
	}
	logger.Info("history.start", "commits", len(commits))

	report = &HistoryReport{RunID: runID, Commits: len(commits)}
	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("codeviz: history: %w", err)
		}
		inserted, err := e.store.UpsertCommit(&store.Commit{
			Hash:   c.Hash,
			Author: c.Author,
			Date:   c.Date,
			Files:  c.Files,
		})
		if err != nil {
			return nil, fmt.Errorf("codeviz: commit %s: %w", c.Hash, err)
		}
		telemetry.RecordCommit(inserted)
		if inserted {
			report.Inserted++
		} else {
			report.Skipped++
		}
	}
	if err := e.store.SetMetadata(MetaHistoryRunID, runID); err != nil {
		return nil, fmt.Errorf("codeviz: %w", err)
	}
	telemetry.ObserveStage("history", start)

	logger.Info("history.done",
		"commits", report.Commits,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"duration", time.Since(start),
	)
	return report, nil
}

// FilterScript returns a history transform running the Risor script at
// path, resolved through the engine's script loader.
func (e *Engine) FilterScript(path string) history.Transform {
	return history.ScriptFileTransform(e.runtime, path)
}

func (e *Engine) writeRunMetadata(runID string) error {
	meta := map[string]string{
		MetaRunID:     runID,
		MetaPolicy:    string(e.policy),
		MetaIndexedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := e.store.SetMetadata(k, v); err != nil {
			return fmt.Errorf("codeviz: %w", err)
		}
	}
	return nil
}

// walkSerial walks files one at a time, in order.
func (e *Engine) walkSerial(ctx context.Context, files []SourceFile) []walkResult {
	out := make([]walkResult, 0, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		out = append(out, walkFile(ctx, f))
	}
	return out
}

// resolveSerial resolves every walked file in order.
func (e *Engine) resolveSerial(ctx context.Context, r *resolve.Resolver, files []*syntax.FileObservations) []resolvedFile {
	out := make([]resolvedFile, 0, len(files))
	for _, obs := range files {
		if ctx.Err() != nil {
			break
		}
		out = append(out, resolveFile(r, obs))
	}
	return out
}

func walkFile(ctx context.Context, f SourceFile) walkResult {
	obs, err := syntax.Walk(ctx, f.Path, f.Content)
	return walkResult{path: f.Path, obs: obs, err: err}
}
