package store

import (
	"time"

	"github.com/jward/codeviz/internal/graph"
)

// Function is a row of the functions relation.
type Function struct {
	Name     string       `json:"name"`
	FilePath string       `json:"file_path"`
	Symbol   graph.Symbol `json:"symbol"`
}

// Commit is a commit row together with the files it touched.
type Commit struct {
	Hash   string    `json:"hash"`
	Author string    `json:"author"`
	Date   time.Time `json:"date"`
	Files  []string  `json:"files"`
}

// FileCount is the number of commits that touched a file.
type FileCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ChangePoint is one (commit, file) pair with the commit's author and date.
type ChangePoint struct {
	Hash   string    `json:"hash"`
	Author string    `json:"author"`
	Date   time.Time `json:"date"`
	File   string    `json:"file"`
}

// Counts is the row count of each relation.
type Counts struct {
	Files                int `json:"files"`
	Functions            int `json:"functions"`
	FunctionDependencies int `json:"function_dependencies"`
	Commits              int `json:"commits"`
	CommitFiles          int `json:"commit_files"`
}
