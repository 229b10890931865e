package codeviz

import (
	"github.com/jward/codeviz/internal/graph"
	"github.com/jward/codeviz/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// APIs. These are Go type aliases (=), identical to the internal types at
// compile time.

type Store = store.Store
type Function = store.Function
type Commit = store.Commit
type FileCount = store.FileCount
type ChangePoint = store.ChangePoint
type Counts = store.Counts
type Row = store.Row

type Symbol = graph.Symbol
type FunctionEdge = graph.FunctionEdge
type FileEdge = graph.FileEdge
