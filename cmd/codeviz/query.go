package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/codeviz"
	"github.com/jward/codeviz/internal/store"
)

var (
	flagLimit         int
	flagOffset        int
	flagTopFiles      int
	flagTimelineFiles int
	flagUnder         string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the dependency and history database",
	Long:  "Run read-only queries against an indexed tree. Symbols are written <file>.<function>, e.g. pkg/util.py.parse.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	topFilesCmd.Flags().IntVar(&flagTopFiles, "n", 10, "number of files to return")
	timelineCmd.Flags().IntVar(&flagTimelineFiles, "n", codeviz.DefaultTimelineFiles, "number of most-changed files to cover")
	depsCmd.Flags().StringVar(&flagUnder, "under", "", "only callers under this directory")
	functionsCmd.Flags().StringVar(&flagUnder, "under", "", "only functions under this directory")

	queryCmd.AddCommand(topFilesCmd)
	queryCmd.AddCommand(countsCmd)
	queryCmd.AddCommand(heatCmd)
	queryCmd.AddCommand(timelineCmd)
	queryCmd.AddCommand(depsCmd)
	queryCmd.AddCommand(fileDepsCmd)
	queryCmd.AddCommand(functionsCmd)
	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(summaryCmd)
	queryCmd.AddCommand(sqlCmd)
}

var topFilesCmd = &cobra.Command{
	Use:   "top-files",
	Short: "Files touched by the most commits",
	Args:  cobra.NoArgs,
	RunE: withQuery("top-files", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		counts, err := q.TopChangedFiles(flagTopFiles)
		if err != nil {
			return CLIResult{}, err
		}
		return CLIResult{Results: fileCountsToCLI(counts)}, nil
	}),
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Change count of every file in the history",
	Args:  cobra.NoArgs,
	RunE: withQuery("counts", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		counts, err := q.FileChangeCounts()
		if err != nil {
			return CLIResult{}, err
		}
		return CLIResult{Results: fileCountsToCLI(counts)}, nil
	}),
}

var heatCmd = &cobra.Command{
	Use:   "heat",
	Short: "Normalized change heat of every file graph node",
	Args:  cobra.NoArgs,
	RunE: withQuery("heat", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		heat, err := q.FileHeat()
		if err != nil {
			return CLIResult{}, err
		}
		return CLIResult{Results: heatToCLI(heat)}, nil
	}),
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Commit dates of the most-changed files",
	Args:  cobra.NoArgs,
	RunE: withQuery("timeline", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		points, err := q.ChangeTimeline(flagTimelineFiles)
		if err != nil {
			return CLIResult{}, err
		}
		out := make([]CLIChangePoint, len(points))
		for i, p := range points {
			out[i] = CLIChangePoint{
				Hash:   p.Hash,
				Author: p.Author,
				Date:   p.Date.Format(time.RFC3339),
				File:   p.File,
			}
		}
		return CLIResult{Results: out}, nil
	}),
}

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Function dependency edges",
	Args:  cobra.NoArgs,
	RunE: withQuery("deps", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		page, err := q.FunctionDependencies(flagUnder, buildPagination())
		if err != nil {
			return CLIResult{}, err
		}
		out := make([]CLIEdge, len(page.Items))
		for i, e := range page.Items {
			out[i] = CLIEdge{Caller: string(e.Caller), Callee: string(e.Callee)}
		}
		total := page.TotalCount
		return CLIResult{Results: out, TotalCount: &total}, nil
	}),
}

var fileDepsCmd = &cobra.Command{
	Use:   "file-deps",
	Short: "File dependency edges derived from function dependencies",
	Args:  cobra.NoArgs,
	RunE: withQuery("file-deps", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		edges, err := q.FileDependencies()
		if err != nil {
			return CLIResult{}, err
		}
		out := make([]CLIEdge, len(edges))
		for i, e := range edges {
			out[i] = CLIEdge{Caller: e.Caller, Callee: e.Callee}
		}
		return CLIResult{Results: out}, nil
	}),
}

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "Stored functions",
	Args:  cobra.NoArgs,
	RunE: withQuery("functions", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		page, err := q.Functions(flagUnder, buildPagination())
		if err != nil {
			return CLIResult{}, err
		}
		out := make([]CLIFunction, len(page.Items))
		for i, f := range page.Items {
			out[i] = CLIFunction{Name: f.Name, File: f.FilePath, Symbol: string(f.Symbol)}
		}
		total := page.TotalCount
		return CLIResult{Results: out, TotalCount: &total}, nil
	}),
}

var callersCmd = &cobra.Command{
	Use:   "callers <symbol>",
	Short: "Functions that call symbol",
	Args:  cobra.ExactArgs(1),
	RunE: withQuery("callers", func(_ *cobra.Command, args []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		syms, err := q.Callers(codeviz.Symbol(args[0]))
		if err != nil {
			return CLIResult{}, err
		}
		return CLIResult{Results: symbolsToCLI(args[0], syms)}, nil
	}),
}

var calleesCmd = &cobra.Command{
	Use:   "callees <symbol>",
	Short: "Functions that symbol calls",
	Args:  cobra.ExactArgs(1),
	RunE: withQuery("callees", func(_ *cobra.Command, args []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		syms, err := q.Callees(codeviz.Symbol(args[0]))
		if err != nil {
			return CLIResult{}, err
		}
		return CLIResult{Results: symbolsToCLI(args[0], syms)}, nil
	}),
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Row counts and last-run metadata",
	Args:  cobra.NoArgs,
	RunE: withQuery("summary", func(_ *cobra.Command, _ []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		s, err := q.Summary()
		if err != nil {
			return CLIResult{}, err
		}
		return CLIResult{Results: CLISummary{
			Files:                s.Files,
			Functions:            s.Functions,
			FunctionDependencies: s.FunctionDependencies,
			FileDependencies:     s.FileEdges,
			Commits:              s.Commits,
			CommitFiles:          s.CommitFiles,
			Policy:               s.Policy,
			RunID:                s.RunID,
			IndexedAt:            s.IndexedAt,
			HistoryRunID:         s.HistoryRunID,
		}}, nil
	}),
}

var sqlCmd = &cobra.Command{
	Use:   "sql <statement> [args...]",
	Short: "Run a read-only SQL statement",
	Long:  "Runs a SELECT (or WITH) statement against the database. Extra arguments bind to ? placeholders.",
	Args:  cobra.MinimumNArgs(1),
	RunE: withQuery("sql", func(cmd *cobra.Command, args []string, q *codeviz.QueryBuilder) (CLIResult, error) {
		binds := make([]any, len(args)-1)
		for i, a := range args[1:] {
			binds[i] = a
		}
		cols, rows, err := q.SQL(cmd.Context(), args[0], binds...)
		if err != nil {
			return CLIResult{}, err
		}
		out := CLITable{Columns: cols, Rows: make([]map[string]any, len(rows))}
		for i, r := range rows {
			out.Rows[i] = r
		}
		total := len(rows)
		return CLIResult{Results: out, TotalCount: &total}, nil
	}),
}

// --- Helpers ---

// withQuery opens the store, runs fn and writes its result in the selected
// format. Errors are reported through outputError.
func withQuery(command string, fn func(*cobra.Command, []string, *codeviz.QueryBuilder) (CLIResult, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError(command, err)
		}
		defer s.Close()

		result, err := fn(cmd, args, codeviz.NewQueryBuilder(s))
		if err != nil {
			return outputError(command, err)
		}
		result.Command = command
		return outputResult(result)
	}
}

// openStore opens the Store from the --db flag path (or configured path).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'codeviz index' first)", dbPath)
	}

	return store.NewStore(dbPath)
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() codeviz.Pagination {
	return codeviz.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

func fileCountsToCLI(counts []codeviz.FileCount) []CLIFileCount {
	out := make([]CLIFileCount, len(counts))
	for i, c := range counts {
		out[i] = CLIFileCount{Path: c.Path, Count: c.Count}
	}
	return out
}

// heatToCLI lists heat values hottest first, ties by path.
func heatToCLI(heat map[string]float64) []CLIHeat {
	out := make([]CLIHeat, 0, len(heat))
	for p, h := range heat {
		out = append(out, CLIHeat{Path: p, Heat: h})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Heat != out[j].Heat {
			return out[i].Heat > out[j].Heat
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func symbolsToCLI(sym string, related []codeviz.Symbol) CLISymbols {
	out := CLISymbols{Symbol: sym, Related: make([]string, len(related))}
	for i, s := range related {
		out.Related[i] = string(s)
	}
	return out
}

// formatHeat renders a heat value with two decimals.
func formatHeat(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}
