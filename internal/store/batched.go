package store

import (
	"fmt"
	"sync"

	"github.com/jward/codeviz/internal/graph"
)

// EdgeBatch buffers function dependency writes in memory. It implements
// GraphWriter so a parse worker can record its results without touching
// SQLite; the batch is flushed by Store.CommitEdgeBatch on the writer
// goroutine.
//
// Thread safety: the mutex protects the buffered slices.
type EdgeBatch struct {
	mu sync.Mutex

	Functions []graph.Symbol
	Edges     []graph.FunctionEdge
}

var _ GraphWriter = (*EdgeBatch)(nil)

// NewEdgeBatch returns an empty batch.
func NewEdgeBatch() *EdgeBatch {
	return &EdgeBatch{}
}

func (b *EdgeBatch) UpsertFunction(sym graph.Symbol) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Functions = append(b.Functions, sym)
	return nil
}

func (b *EdgeBatch) UpsertFunctionEdge(e graph.FunctionEdge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Edges = append(b.Edges, e)
	return nil
}

// Len is the number of buffered writes.
func (b *EdgeBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Functions) + len(b.Edges)
}

// CommitEdgeBatch writes every buffered function and edge in one
// transaction. Duplicates collapse through insert-or-ignore.
func (s *Store) CommitEdgeBatch(b *EdgeBatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit edge batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, sym := range b.Functions {
		if err := upsertFunctionTx(tx, sym); err != nil {
			return err
		}
	}
	for _, e := range b.Edges {
		if err := upsertEdgeTx(tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edge batch: %w", err)
	}
	return nil
}
