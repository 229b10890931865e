package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIFileCount is a file with the number of commits that touched it.
type CLIFileCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// CLIHeat is a file graph node with its normalized heat.
type CLIHeat struct {
	Path string  `json:"path"`
	Heat float64 `json:"heat"`
}

// CLIChangePoint is one (commit, file) point of the change timeline.
type CLIChangePoint struct {
	Hash   string `json:"hash"`
	Author string `json:"author"`
	Date   string `json:"date"`
	File   string `json:"file"`
}

// CLIEdge is a function or file dependency edge.
type CLIEdge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

// CLIFunction is a stored function.
type CLIFunction struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Symbol string `json:"symbol"`
}

// CLISymbols is the result of callers and callees.
type CLISymbols struct {
	Symbol  string   `json:"symbol"`
	Related []string `json:"related"`
}

// CLISummary is the store summary.
type CLISummary struct {
	Files                int    `json:"files"`
	Functions            int    `json:"functions"`
	FunctionDependencies int    `json:"function_dependencies"`
	FileDependencies     int    `json:"file_dependencies"`
	Commits              int    `json:"commits"`
	CommitFiles          int    `json:"commit_files"`
	Policy               string `json:"policy,omitempty"`
	RunID                string `json:"run_id,omitempty"`
	IndexedAt            string `json:"indexed_at,omitempty"`
	HistoryRunID         string `json:"history_run_id,omitempty"`
}

// CLITable is the result of a raw SQL query.
type CLITable struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}
