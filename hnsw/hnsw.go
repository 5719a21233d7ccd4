// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The graph is approximate by construction: recall is probabilistic and
// governed by M and EFConstruction, not guaranteed. Writes must be
// serialized externally against reads; concurrent read-only searches are
// safe as long as no insert or delete is interleaved.
package hnsw

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/fusego/internal/queue"
	"github.com/hupe1980/fusego/metric"
)

const (
	// minimumM is the minimum valid value for M.
	minimumM = 2

	// mmax0Multiplier is the multiplier for maximum connections at layer 0.
	mmax0Multiplier = 2

	// DefaultM is the default number of bidirectional links per node and layer.
	DefaultM = 8

	// DefaultEFConstruction is the default size of the dynamic candidate
	// list during insertion.
	DefaultEFConstruction = 200
)

// ErrDimensionMismatch is returned when a vector does not match the
// dimension the index was built with.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension is returned when an index is constructed with a
// non-positive dimension.
type ErrInvalidDimension struct {
	Dimension int
}

// Error returns the error message for an invalid dimension.
func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// Options represents the options for configuring the index.
type Options struct {
	// M is the number of established connections for every new element
	// during construction. Layer 0 allows 2*M. The range M=12-48 works for
	// most use cases; low-dimensional data tolerates smaller M.
	M int

	// EFConstruction is the size of the dynamic candidate list used while
	// inserting. Larger values improve graph quality at build-time cost.
	EFConstruction int

	// DistanceType selects the distance function, used consistently for
	// build and query.
	DistanceType metric.DistanceType

	// LevelMultiplier normalizes the geometric level distribution. The
	// default 1/ln(2) halves the node population per layer.
	LevelMultiplier float64

	// RandomSeed fixes the level generator so tests can assert exact
	// structure. If nil, the generator is time-seeded.
	RandomSeed *int64
}

// DefaultOptions holds the default index options.
var DefaultOptions = Options{
	M:               DefaultM,
	EFConstruction:  DefaultEFConstruction,
	DistanceType:    metric.DistanceTypeCosine,
	LevelMultiplier: 1 / math.Ln2,
}

type node struct {
	id          uint32
	vector      []float32
	level       int
	connections [][]uint32 // one neighbor list per layer 0..level
}

// Result is a single nearest-neighbor hit.
type Result struct {
	// ID is the identifier assigned at insert time.
	ID uint32

	// Distance is the true distance between query and stored vector.
	Distance float32
}

// SearchOptions controls a single search call.
type SearchOptions struct {
	// EF is the beam width at layer 0. The effective beam is max(EF, k).
	EF int

	// Filter restricts results to ids for which it returns true. Filtering
	// happens during traversal so k results are still found if available.
	Filter func(id uint32) bool
}

// Index is a multi-layer proximity graph over fixed-dimension vectors.
type Index struct {
	dimension    int
	mmax         int // max connections per layer > 0
	mmax0        int // max connections at layer 0
	ml           float64
	distanceFunc metric.Func
	rng          *rand.Rand

	entryPoint uint32
	maxLevel   int
	count      int

	nodes    []*node // indexed by id; nil marks a removed node
	freeList []uint32

	opts Options
}

// New creates a new index for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	if opts.M < minimumM {
		// M == 1 would make the level multiplier degenerate
		opts.M = minimumM
	}

	if opts.EFConstruction <= 0 {
		opts.EFConstruction = DefaultEFConstruction
	}

	if opts.LevelMultiplier <= 0 {
		opts.LevelMultiplier = 1 / math.Ln2
	}

	distanceFunc, err := metric.NewDistanceFunc(opts.DistanceType)
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if opts.RandomSeed != nil {
		rng = rand.New(rand.NewSource(*opts.RandomSeed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Index{
		dimension:    dimension,
		mmax:         opts.M,
		mmax0:        mmax0Multiplier * opts.M,
		ml:           opts.LevelMultiplier,
		distanceFunc: distanceFunc,
		rng:          rng,
		opts:         opts,
	}, nil
}

// Len returns the number of live vectors in the index.
func (h *Index) Len() int { return h.count }

// Dimension returns the dimensionality of the indexed vectors.
func (h *Index) Dimension() int { return h.dimension }

// Contains reports whether the given id refers to a live node.
func (h *Index) Contains(id uint32) bool {
	return int(id) < len(h.nodes) && h.nodes[id] != nil
}

// VectorByID returns the stored vector for id. The returned slice must be
// treated as read-only.
func (h *Index) VectorByID(id uint32) ([]float32, bool) {
	if !h.Contains(id) {
		return nil, false
	}
	return h.nodes[id].vector, true
}

// randomLevel draws a level from the geometric distribution.
func (h *Index) randomLevel() int {
	r := h.rng.Float64()
	if r == 0 {
		r = math.SmallestNonzeroFloat64
	}
	return int(math.Floor(-math.Log(r) * h.ml))
}

func (h *Index) allocateID() uint32 {
	if n := len(h.freeList); n > 0 {
		id := h.freeList[n-1]
		h.freeList = h.freeList[:n-1]
		return id
	}
	h.nodes = append(h.nodes, nil)
	return uint32(len(h.nodes) - 1)
}

// Insert adds a vector to the index and returns its assigned id.
// Duplicate vectors are permitted; no deduplication is performed.
func (h *Index) Insert(v []float32) (uint32, error) {
	if len(v) != h.dimension {
		return 0, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	// Copy so later caller mutations don't reach into the graph.
	vec := make([]float32, len(v))
	copy(vec, v)

	id := h.allocateID()
	level := h.randomLevel()

	n := &node{
		id:          id,
		vector:      vec,
		level:       level,
		connections: make([][]uint32, level+1),
	}

	// First node becomes the entry point.
	if h.count == 0 {
		h.nodes[id] = n
		h.entryPoint = id
		h.maxLevel = level
		h.count++
		return id, nil
	}

	currID := h.entryPoint
	currDist := h.distanceFunc(vec, h.nodes[currID].vector)

	// Greedy descent through layers above the node's level.
	for lvl := h.maxLevel; lvl > level; lvl-- {
		currID, currDist = h.greedyStep(vec, currID, currDist, lvl)
	}

	// Beam search and linking from min(level, maxLevel) down to 0.
	for lvl := min(level, h.maxLevel); lvl >= 0; lvl-- {
		candidates := h.searchLayer(vec, currID, currDist, lvl, h.opts.EFConstruction, nil)

		if best, ok := candidates.MinItem(); ok {
			currID = best.Node
			currDist = best.Distance
		}

		maxConns := h.mmax
		if lvl == 0 {
			maxConns = h.mmax0
		}

		neighbors := h.selectNeighbors(candidates, maxConns)
		n.connections[lvl] = neighbors

		h.nodes[id] = n

		for _, neighborID := range neighbors {
			h.link(neighborID, id, lvl)
		}
	}

	h.nodes[id] = n
	h.count++

	if level > h.maxLevel {
		h.entryPoint = id
		h.maxLevel = level
	}

	return id, nil
}

// Delete removes the vector with the given id. It returns false if the id
// is unknown; absence is not an error.
func (h *Index) Delete(id uint32) bool {
	if !h.Contains(id) {
		return false
	}

	n := h.nodes[id]

	// Drop backlinks from the node's own neighbor lists. Dangling edges
	// from pruned asymmetric links are skipped during traversal.
	for lvl := 0; lvl <= n.level; lvl++ {
		for _, neighborID := range n.connections[lvl] {
			h.removeLink(neighborID, id, lvl)
		}
	}

	h.nodes[id] = nil
	h.freeList = append(h.freeList, id)
	h.count--

	if h.count == 0 {
		h.entryPoint = 0
		h.maxLevel = 0
		return true
	}

	// Re-elect the entry point if we just removed it.
	if id == h.entryPoint {
		h.electEntryPoint()
	}

	return true
}

func (h *Index) electEntryPoint() {
	bestLevel := -1
	var bestID uint32
	for _, n := range h.nodes {
		if n == nil {
			continue
		}
		if n.level > bestLevel {
			bestLevel = n.level
			bestID = n.id
		}
	}
	h.entryPoint = bestID
	h.maxLevel = bestLevel
}

func (h *Index) removeLink(id, target uint32, level int) {
	if !h.Contains(id) {
		return
	}
	n := h.nodes[id]
	if level > n.level {
		return
	}
	conns := n.connections[level]
	for i, c := range conns {
		if c == target {
			conns[i] = conns[len(conns)-1]
			n.connections[level] = conns[:len(conns)-1]
			return
		}
	}
}

// greedyStep walks to the closest neighbor at the given level until no
// improvement is found (beam width 1).
func (h *Index) greedyStep(q []float32, currID uint32, currDist float32, level int) (uint32, float32) {
	changed := true
	for changed {
		changed = false
		n := h.nodes[currID]
		if n == nil || level > n.level {
			break
		}
		for _, nextID := range n.connections[level] {
			next := h.nodes[nextID]
			if next == nil {
				continue
			}
			nextDist := h.distanceFunc(q, next.vector)
			if nextDist < currDist {
				currID = nextID
				currDist = nextDist
				changed = true
			}
		}
	}
	return currID, currDist
}

// searchLayer performs a beam search at the given level. It returns a
// max-heap of up to ef candidates; the caller consumes it best-last.
func (h *Index) searchLayer(q []float32, epID uint32, epDist float32, level, ef int, filter func(uint32) bool) *queue.PriorityQueue {
	var visited bitset.BitSet
	visited.Set(uint(epID))

	candidates := queue.NewMin(ef) // frontier: closest unvisited first
	results := queue.NewMax(ef)    // bounded result set: farthest on top

	candidates.PushItem(queue.Item{Node: epID, Distance: epDist})
	if filter == nil || filter(epID) {
		results.PushItem(queue.Item{Node: epID, Distance: epDist})
	}

	for candidates.Len() > 0 {
		curr, _ := candidates.PopItem()

		if results.Len() >= ef {
			worst, _ := results.TopItem()
			if curr.Distance > worst.Distance {
				break
			}
		}

		n := h.nodes[curr.Node]
		if n == nil || level > n.level {
			continue
		}

		for _, nextID := range n.connections[level] {
			if visited.Test(uint(nextID)) {
				continue
			}
			visited.Set(uint(nextID))

			next := h.nodes[nextID]
			if next == nil {
				continue
			}

			nextDist := h.distanceFunc(q, next.vector)

			if results.Len() < ef {
				candidates.PushItem(queue.Item{Node: nextID, Distance: nextDist})
				if filter == nil || filter(nextID) {
					results.PushItem(queue.Item{Node: nextID, Distance: nextDist})
				}
				continue
			}

			worst, _ := results.TopItem()
			if nextDist < worst.Distance {
				candidates.PushItem(queue.Item{Node: nextID, Distance: nextDist})
				if filter == nil || filter(nextID) {
					results.PushItem(queue.Item{Node: nextID, Distance: nextDist})
					if results.Len() > ef {
						_, _ = results.PopItem()
					}
				}
			}
		}
	}

	return results
}

// selectNeighbors picks up to m neighbors nearest-first, keeping a
// candidate only if it is closer to the new node than to every neighbor
// selected so far (relative neighborhood heuristic).
func (h *Index) selectNeighbors(candidates *queue.PriorityQueue, m int) []uint32 {
	// Drain the max-heap into nearest-first order.
	sorted := make([]queue.Item, candidates.Len())
	for i := len(sorted) - 1; i >= 0; i-- {
		sorted[i], _ = candidates.PopItem()
	}

	if len(sorted) <= m {
		out := make([]uint32, len(sorted))
		for i, item := range sorted {
			out[i] = item.Node
		}
		return out
	}

	selected := make([]uint32, 0, m)
	selectedVecs := make([][]float32, 0, m)
	skipped := make([]queue.Item, 0, len(sorted))

	for _, cand := range sorted {
		if len(selected) >= m {
			break
		}

		candVec := h.nodes[cand.Node].vector

		good := true
		for _, sv := range selectedVecs {
			if h.distanceFunc(candVec, sv) < cand.Distance {
				good = false
				break
			}
		}

		if good {
			selected = append(selected, cand.Node)
			selectedVecs = append(selectedVecs, candVec)
		} else {
			skipped = append(skipped, cand)
		}
	}

	// Fill up from the skipped pool, nearest first.
	for _, cand := range skipped {
		if len(selected) >= m {
			break
		}
		selected = append(selected, cand.Node)
	}

	return selected
}

// link adds a directed edge from id to target, re-pruning the neighbor
// list to the layer's capacity when it overflows.
func (h *Index) link(id, target uint32, level int) {
	n := h.nodes[id]
	if n == nil || level > n.level {
		return
	}

	for _, c := range n.connections[level] {
		if c == target {
			return
		}
	}

	maxConns := h.mmax
	if level == 0 {
		maxConns = h.mmax0
	}

	conns := append(n.connections[level], target)
	if len(conns) <= maxConns {
		n.connections[level] = conns
		return
	}

	// Over capacity: re-prune to the nearest of the current neighbor set.
	candidates := queue.NewMax(len(conns))
	for _, c := range conns {
		other := h.nodes[c]
		if other == nil {
			continue
		}
		candidates.PushItem(queue.Item{Node: c, Distance: h.distanceFunc(n.vector, other.vector)})
	}

	n.connections[level] = h.selectNeighbors(candidates, maxConns)
}

// Search returns the k nearest neighbors of q, sorted by non-decreasing
// distance. An empty index yields an empty result; k larger than the index
// returns all live nodes.
func (h *Index) Search(q []float32, k int, optFns ...func(o *SearchOptions)) ([]Result, error) {
	if len(q) != h.dimension {
		return nil, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	var opts SearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if h.count == 0 {
		return nil, nil
	}

	ef := opts.EF
	if ef < k {
		ef = k
	}

	currID := h.entryPoint
	currDist := h.distanceFunc(q, h.nodes[currID].vector)

	for lvl := h.maxLevel; lvl > 0; lvl-- {
		currID, currDist = h.greedyStep(q, currID, currDist, lvl)
	}

	results := h.searchLayer(q, currID, currDist, 0, ef, opts.Filter)

	for results.Len() > k {
		_, _ = results.PopItem()
	}

	out := make([]Result, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item, _ := results.PopItem()
		out[i] = Result{ID: item.Node, Distance: item.Distance}
	}

	return out, nil
}

// BruteSearch performs an exact linear scan. It is the recall baseline for
// the approximate search.
func (h *Index) BruteSearch(q []float32, k int, filter func(id uint32) bool) ([]Result, error) {
	if len(q) != h.dimension {
		return nil, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	pq := queue.NewMax(k)
	for _, n := range h.nodes {
		if n == nil {
			continue
		}
		if filter != nil && !filter(n.id) {
			continue
		}

		d := h.distanceFunc(q, n.vector)
		if pq.Len() < k {
			pq.PushItem(queue.Item{Node: n.id, Distance: d})
			continue
		}
		if worst, _ := pq.TopItem(); d < worst.Distance {
			_, _ = pq.PopItem()
			pq.PushItem(queue.Item{Node: n.id, Distance: d})
		}
	}

	out := make([]Result, pq.Len())
	for i := pq.Len() - 1; i >= 0; i-- {
		item, _ := pq.PopItem()
		out[i] = Result{ID: item.Node, Distance: item.Distance}
	}
	return out, nil
}
