// Package codeviz builds the static dependency graph of a Python tree and
// joins it with the tree's revision history in a SQLite store that other
// tools can query directly.
//
// # Pipeline
//
// An indexing run has three stages:
//
//  1. Walk: each source file is parsed with tree-sitter. The walker records
//     the file's import bindings, its top-level functions and every call
//     made inside them.
//
//  2. Resolve: call observations become qualified function dependency
//     edges ("a.py.f" calls "a.py.helper"). Under the local policy every
//     resolved edge is kept; under the global policy an edge survives only
//     when its callee is defined somewhere in the tree.
//
//  3. Store: functions and edges are upserted by a single writer. Upserts
//     are insert-or-ignore, so re-indexing the same tree is a no-op.
//
// History ingestion is separate: commit records are read from git (or any
// [history.Source]), narrowed by include/exclude filters and optional
// transforms, and upserted by hash.
//
// # Usage
//
//	e, err := codeviz.New(".codeviz/codeviz.db", codeviz.WithPolicy(resolve.Global))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	_ = e.Reset()
//	report, err := e.IndexDirectory(ctx, "path/to/project")
//	_, err = e.IngestHistory(ctx, &history.GitSource{Repo: "path/to/project"}, &history.Ingestor{})
//
//	top, err := e.Query().TopChangedFiles(10)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] answers read-only questions:
//
//   - [QueryBuilder.TopChangedFiles] and [QueryBuilder.FileChangeCounts]
//     rank files by how many commits touched them.
//   - [QueryBuilder.FileHeat] maps every node of the file graph to a value
//     in [0,1] for coloring.
//   - [QueryBuilder.ChangeTimeline] lists (commit, file) points for the
//     most-changed files.
//   - [QueryBuilder.FunctionDependencies], [QueryBuilder.FileDependencies],
//     [QueryBuilder.Callers] and [QueryBuilder.Callees] read the graphs.
//   - [QueryBuilder.SQL] runs an arbitrary read-only statement.
package codeviz
