package codeviz

// NeutralHeat is the value every node gets when counts do not vary.
const NeutralHeat = 0.5

// NormalizeHeat maps each node to (count-min)/(max-min) over the counts of
// nodes, so the least-changed node is 0 and the most-changed is 1. A node
// missing from counts has count 0. When every node has the same count, or
// there are no nodes, each node maps to NeutralHeat.
func NormalizeHeat(nodes []string, counts map[string]int) map[string]float64 {
	heat := make(map[string]float64, len(nodes))
	if len(nodes) == 0 {
		return heat
	}

	lo, hi := counts[nodes[0]], counts[nodes[0]]
	for _, n := range nodes[1:] {
		c := counts[n]
		lo = min(lo, c)
		hi = max(hi, c)
	}

	for _, n := range nodes {
		if hi == lo {
			heat[n] = NeutralHeat
			continue
		}
		heat[n] = float64(counts[n]-lo) / float64(hi-lo)
	}
	return heat
}
