package graph

// Collapse derives the file dependency set from a function dependency set.
// Each endpoint is truncated to its file component and intra-file edges are
// dropped.
func Collapse(edges FunctionEdgeSet) FileEdgeSet {
	files := make(FileEdgeSet)
	for e := range edges {
		caller, callee := e.Caller.File(), e.Callee.File()
		if caller == callee {
			continue
		}
		files.Add(FileEdge{Caller: caller, Callee: callee})
	}
	return files
}
