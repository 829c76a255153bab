package index

import (
	"container/heap"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

// Flat is a brute-force exact-search index over dense vectors keyed by
// internal id. It exists to measure HNSW recall against exact search and
// as a correctness oracle in tests, not as a production search path.
type Flat struct {
	dim    int
	metric vector.Metric
	vecs   map[uint32][]float32
}

// NewFlat creates a brute-force index for the given dimension and metric.
func NewFlat(dim int, metric vector.Metric) *Flat {
	return &Flat{dim: dim, metric: metric, vecs: make(map[uint32][]float32)}
}

// Insert stores (or replaces) the vector for internalID.
func (f *Flat) Insert(internalID uint32, vec []float32) {
	v := make([]float32, len(vec))
	copy(v, vec)
	f.vecs[internalID] = v
}

// Delete removes internalID from the index.
func (f *Flat) Delete(internalID uint32) {
	delete(f.vecs, internalID)
}

// Search returns the exact k nearest neighbors to query, closest first.
func (f *Flat) Search(query []float32, k int) []Result {
	h := &flatHeap{higherBetter: f.metric.HigherIsBetter()}
	heap.Init(h)

	for id, vec := range f.vecs {
		score := vector.Distance(f.metric, query, vec)
		if h.Len() < k {
			heap.Push(h, Result{InternalID: id, Score: score})
			continue
		}
		worst := h.items[0].Score
		replace := score < worst
		if h.higherBetter {
			replace = score > worst
		}
		if replace {
			heap.Pop(h)
			heap.Push(h, Result{InternalID: id, Score: score})
		}
	}

	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Result)
	}
	return out
}

// Size returns the number of indexed vectors.
func (f *Flat) Size() int { return len(f.vecs) }

// flatHeap keeps the k candidates seen so far with the worst on top, so a
// single comparison decides whether a new candidate displaces it.
type flatHeap struct {
	items        []Result
	higherBetter bool
}

func (h flatHeap) Len() int { return len(h.items) }
func (h flatHeap) Less(i, j int) bool {
	if h.higherBetter {
		return h.items[i].Score < h.items[j].Score
	}
	return h.items[i].Score > h.items[j].Score
}
func (h flatHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *flatHeap) Push(x interface{}) {
	h.items = append(h.items, x.(Result))
}
func (h *flatHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
