package hnsw

// Stats summarizes the structure of the graph.
type Stats struct {
	// Count is the number of live nodes.
	Count int

	// MaxLevel is the level of the entry point.
	MaxLevel int

	// NodesPerLevel counts live nodes by their top level.
	NodesPerLevel []int

	// AvgConnections is the mean layer-0 out-degree.
	AvgConnections float64
}

// Stats computes structural statistics for the index.
func (h *Index) Stats() Stats {
	s := Stats{
		Count:         h.count,
		MaxLevel:      h.maxLevel,
		NodesPerLevel: make([]int, h.maxLevel+1),
	}

	var totalConns int
	for _, n := range h.nodes {
		if n == nil {
			continue
		}
		if n.level < len(s.NodesPerLevel) {
			s.NodesPerLevel[n.level]++
		}
		totalConns += len(n.connections[0])
	}

	if h.count > 0 {
		s.AvgConnections = float64(totalConns) / float64(h.count)
	}

	return s
}
