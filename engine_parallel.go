package codeviz

import (
	"context"
	goruntime "runtime"
	"sync"

	"github.com/jward/codeviz/internal/graph"
	"github.com/jward/codeviz/internal/resolve"
	"github.com/jward/codeviz/internal/store"
	"github.com/jward/codeviz/internal/syntax"
)

// resolvedFile holds one file's resolution output, buffered for the
// single writer.
type resolvedFile struct {
	path  string
	batch *store.EdgeBatch
	edges graph.FunctionEdgeSet
}

// resolveFile resolves one file into a fresh EdgeBatch. Every function the
// file defines is recorded, whether or not it takes part in an edge.
func resolveFile(r *resolve.Resolver, obs *syntax.FileObservations) resolvedFile {
	batch := store.NewEdgeBatch()
	for _, fn := range obs.Functions {
		// EdgeBatch never fails.
		_ = batch.UpsertFunction(graph.NewSymbol(obs.Path, fn))
	}
	edges := r.ResolveFile(obs)
	_ = store.WriteEdges(batch, edges)
	return resolvedFile{path: obs.Path, batch: batch, edges: edges}
}

// The index pipeline runs in four phases:
//
//	Phase A (parallel): Walk each file's syntax tree via the worker pool.
//	Phase B (serial):   Build the run's resolver (module index, defined symbols).
//	Phase C (parallel): Resolve each file into its own EdgeBatch.
//	Phase D (serial):   Commit batches to SQLite from the calling goroutine.
//
// Phases B and D live in IndexSources; the pool only ever reads shared
// state, so SQLite sees exactly one writer.

// walkParallel is Phase A. Results keep the input order.
func (e *Engine) walkParallel(ctx context.Context, files []SourceFile) []walkResult {
	return runPool(ctx, e.numWorkers(len(files)), files, walkFile)
}

// resolveParallel is Phase C. Results keep the input order.
func (e *Engine) resolveParallel(ctx context.Context, r *resolve.Resolver, files []*syntax.FileObservations) []resolvedFile {
	return runPool(ctx, e.numWorkers(len(files)), files,
		func(_ context.Context, obs *syntax.FileObservations) resolvedFile {
			return resolveFile(r, obs)
		})
}

func (e *Engine) numWorkers(items int) int {
	n := e.workers
	if n <= 0 {
		n = goruntime.NumCPU()
	}
	return max(1, min(n, items))
}

// runPool applies fn to every item on a bounded pool of workers. The result
// slice is indexed like items; when ctx is cancelled, remaining items are
// left at their zero value and callers are expected to check ctx.Err().
func runPool[T, R any](ctx context.Context, numWorkers int, items []T, fn func(context.Context, T) R) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}

	workCh := make(chan int, len(items))
	for i := range items {
		workCh <- i
	}
	close(workCh)

	type result struct {
		index int
		value R
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- result{index: i, value: fn(ctx, items[i])}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		results[res.index] = res.value
	}
	return results
}
