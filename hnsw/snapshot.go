package hnsw

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/hupe1980/fusego/metric"
)

// ErrInvalidSnapshot is the base error for malformed snapshots. Decoding
// failures wrap it so callers can decide to fall back to an empty index.
var ErrInvalidSnapshot = errors.New("hnsw: invalid snapshot")

// SnapshotConfig captures the construction parameters of an index.
type SnapshotConfig struct {
	Dimension       int
	M               int
	EFConstruction  int
	DistanceType    metric.DistanceType
	LevelMultiplier float64
}

// NodeSnapshot is the serialized form of a single graph node.
type NodeSnapshot struct {
	ID          uint32
	Vector      []float32
	Level       int
	Connections [][]uint32
}

// Snapshot is a serializable image of the index. Re-importing it
// reconstructs an index with identical search behavior.
type Snapshot struct {
	Config     SnapshotConfig
	EntryPoint uint32
	MaxLevel   int
	NextID     uint32
	Nodes      []NodeSnapshot
}

// Export returns a deep-copied snapshot of the index.
func (h *Index) Export() *Snapshot {
	s := &Snapshot{
		Config: SnapshotConfig{
			Dimension:       h.dimension,
			M:               h.mmax,
			EFConstruction:  h.opts.EFConstruction,
			DistanceType:    h.opts.DistanceType,
			LevelMultiplier: h.ml,
		},
		EntryPoint: h.entryPoint,
		MaxLevel:   h.maxLevel,
		NextID:     uint32(len(h.nodes)),
		Nodes:      make([]NodeSnapshot, 0, h.count),
	}

	for _, n := range h.nodes {
		if n == nil {
			continue
		}

		vec := make([]float32, len(n.vector))
		copy(vec, n.vector)

		conns := make([][]uint32, len(n.connections))
		for lvl, c := range n.connections {
			conns[lvl] = make([]uint32, len(c))
			copy(conns[lvl], c)
		}

		s.Nodes = append(s.Nodes, NodeSnapshot{
			ID:          n.id,
			Vector:      vec,
			Level:       n.level,
			Connections: conns,
		})
	}

	return s
}

// FromSnapshot reconstructs an index from a snapshot. Structural problems
// (bad dimensions, out-of-range ids, inconsistent layer counts) are
// surfaced as errors wrapping ErrInvalidSnapshot.
func FromSnapshot(s *Snapshot) (*Index, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if s.Config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidSnapshot, s.Config.Dimension)
	}
	if s.Config.M < minimumM {
		return nil, fmt.Errorf("%w: M %d", ErrInvalidSnapshot, s.Config.M)
	}
	if len(s.Nodes) > int(s.NextID) {
		return nil, fmt.Errorf("%w: %d nodes but nextID %d", ErrInvalidSnapshot, len(s.Nodes), s.NextID)
	}

	distanceFunc, err := metric.NewDistanceFunc(s.Config.DistanceType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	ml := s.Config.LevelMultiplier
	if ml <= 0 {
		ml = 1 / math.Ln2
	}

	h := &Index{
		dimension:    s.Config.Dimension,
		mmax:         s.Config.M,
		mmax0:        mmax0Multiplier * s.Config.M,
		ml:           ml,
		distanceFunc: distanceFunc,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		entryPoint:   s.EntryPoint,
		maxLevel:     s.MaxLevel,
		count:        len(s.Nodes),
		nodes:        make([]*node, s.NextID),
		opts: Options{
			M:               s.Config.M,
			EFConstruction:  s.Config.EFConstruction,
			DistanceType:    s.Config.DistanceType,
			LevelMultiplier: ml,
		},
	}

	for _, ns := range s.Nodes {
		if ns.ID >= s.NextID {
			return nil, fmt.Errorf("%w: node id %d out of range", ErrInvalidSnapshot, ns.ID)
		}
		if h.nodes[ns.ID] != nil {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidSnapshot, ns.ID)
		}
		if len(ns.Vector) != s.Config.Dimension {
			return nil, fmt.Errorf("%w: node %d vector dimension %d", ErrInvalidSnapshot, ns.ID, len(ns.Vector))
		}
		if ns.Level < 0 || len(ns.Connections) != ns.Level+1 {
			return nil, fmt.Errorf("%w: node %d has %d layers for level %d", ErrInvalidSnapshot, ns.ID, len(ns.Connections), ns.Level)
		}

		h.nodes[ns.ID] = &node{
			id:          ns.ID,
			vector:      ns.Vector,
			level:       ns.Level,
			connections: ns.Connections,
		}
	}

	// Validate edges and rebuild the free list from the holes.
	for _, n := range h.nodes {
		if n == nil {
			continue
		}
		for lvl, conns := range n.connections {
			for _, c := range conns {
				if !h.Contains(c) {
					return nil, fmt.Errorf("%w: node %d links to missing node %d at layer %d", ErrInvalidSnapshot, n.id, c, lvl)
				}
			}
		}
	}

	for id := uint32(0); id < s.NextID; id++ {
		if h.nodes[id] == nil {
			h.freeList = append(h.freeList, id)
		}
	}

	if h.count > 0 && !h.Contains(h.entryPoint) {
		return nil, fmt.Errorf("%w: entry point %d is not a live node", ErrInvalidSnapshot, h.entryPoint)
	}

	return h, nil
}
