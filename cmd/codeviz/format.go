package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatFileCountsText formats CLIFileCount results as aligned columns.
func formatFileCountsText(w io.Writer, counts []CLIFileCount) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNT\tPATH")
	for _, c := range counts {
		fmt.Fprintf(tw, "%d\t%s\n", c.Count, c.Path)
	}
	tw.Flush()
}

// formatHeatText formats CLIHeat results as aligned columns.
func formatHeatText(w io.Writer, heat []CLIHeat) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HEAT\tPATH")
	for _, h := range heat {
		fmt.Fprintf(tw, "%s\t%s\n", formatHeat(h.Heat), h.Path)
	}
	tw.Flush()
}

// formatTimelineText formats CLIChangePoint results as aligned columns.
func formatTimelineText(w io.Writer, points []CLIChangePoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFILE\tAUTHOR\tHASH")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Date, p.File, p.Author, shortHash(p.Hash))
	}
	tw.Flush()
}

// formatEdgesText formats CLIEdge results as "caller -> callee" lines.
func formatEdgesText(w io.Writer, edges []CLIEdge) {
	for _, e := range edges {
		fmt.Fprintf(w, "%s -> %s\n", e.Caller, e.Callee)
	}
}

// formatFunctionsText formats CLIFunction results as aligned columns.
func formatFunctionsText(w io.Writer, fns []CLIFunction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tNAME")
	for _, f := range fns {
		fmt.Fprintf(tw, "%s\t%s\n", f.File, f.Name)
	}
	tw.Flush()
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Store Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files:                 %d\n", s.Files)
	fmt.Fprintf(w, "Functions:             %d\n", s.Functions)
	fmt.Fprintf(w, "Function dependencies: %d\n", s.FunctionDependencies)
	fmt.Fprintf(w, "File dependencies:     %d\n", s.FileDependencies)
	fmt.Fprintf(w, "Commits:               %d\n", s.Commits)
	fmt.Fprintf(w, "Commit files:          %d\n", s.CommitFiles)
	if s.RunID != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Last index: %s (%s policy, run %s)\n", s.IndexedAt, s.Policy, s.RunID)
	}
	if s.HistoryRunID != "" {
		fmt.Fprintf(w, "Last history run: %s\n", s.HistoryRunID)
	}
}

// formatTableText formats a raw SQL result as tab-separated columns.
func formatTableText(w io.Writer, t CLITable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.Columns, "\t")))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if v := row[c]; v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	return writeResultText(os.Stdout, result)
}

func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLIFileCount:
		formatFileCountsText(w, v)
	case []CLIHeat:
		formatHeatText(w, v)
	case []CLIChangePoint:
		formatTimelineText(w, v)
	case []CLIEdge:
		formatEdgesText(w, v)
	case []CLIFunction:
		formatFunctionsText(w, v)
	case CLISymbols:
		for _, s := range v.Related {
			fmt.Fprintln(w, s)
		}
	case CLISummary:
		formatSummaryText(w, v)
	case CLITable:
		formatTableText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}

	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIFileCount:
		return len(r)
	case []CLIHeat:
		return len(r)
	case []CLIChangePoint:
		return len(r)
	case []CLIEdge:
		return len(r)
	case []CLIFunction:
		return len(r)
	case CLISymbols:
		return len(r.Related)
	case CLITable:
		return len(r.Rows)
	case nil:
		return 0
	default:
		return 1
	}
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
