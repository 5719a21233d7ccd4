// Package queue implements the priority queues driving HNSW beam search.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is an element of the priority queue: a node id prioritized by its
// distance to the query.
type Item struct {
	Node     uint32
	Distance float32
}

// PriorityQueue implements heap.Interface over Items.
// With Max=false it behaves as a min-heap (closest on top, used as the
// search frontier); with Max=true as a max-heap (farthest on top, used as
// the bounded result set).
type PriorityQueue struct {
	Max   bool
	items []Item
}

// NewMin creates a min-heap with the given initial capacity.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// NewMax creates a max-heap with the given initial capacity.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{Max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if pq.Max {
		return pq.items[i].Distance > pq.items[j].Distance
	}
	return pq.items[i].Distance < pq.items[j].Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

// Push adds x to the priority queue. Prefer PushItem.
func (pq *PriorityQueue) Push(x any) {
	pq.items = append(pq.items, x.(Item))
}

// Pop removes and returns the last element. Prefer PopItem.
func (pq *PriorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// PushItem pushes an item maintaining heap order.
func (pq *PriorityQueue) PushItem(item Item) {
	heap.Push(pq, item)
}

// PopItem pops the top item. ok is false if the queue is empty.
func (pq *PriorityQueue) PopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return heap.Pop(pq).(Item), true
}

// TopItem returns the top item without removing it.
func (pq *PriorityQueue) TopItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// MinItem returns the smallest-distance item without removing it. On a
// max-heap this is a linear scan; it is used to pick the next entry point
// from a bounded result set.
func (pq *PriorityQueue) MinItem() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	best := pq.items[0]
	for _, item := range pq.items[1:] {
		if item.Distance < best.Distance {
			best = item
		}
	}
	return best, true
}

// Reset empties the queue, keeping the underlying storage.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Items exposes the raw backing slice in heap order (not sorted order).
func (pq *PriorityQueue) Items() []Item {
	return pq.items
}
