// Package index implements the HNSW (Hierarchical Navigable Small World)
// graph, the ANN index at the core of VecStore (spec component C4).
//
// The graph is kept as parallel dense arrays indexed by internal id
// (level assignment, neighbor lists) rather than per-node heap objects, so
// a node lookup during traversal is a slice index instead of a map lookup.
// The algorithm itself — level assignment, greedy layer descent, the
// best-first expansion with a candidate/dynamic-list heap pair, and the
// neighbor-selection heuristic — is restructured from a map[string]*Node
// representation into this id-indexed one, and extended with filtered
// search and a corruption counter.
package index

import (
	"container/heap"
	"encoding/gob"
	"errors"
	"io"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// Config holds HNSW construction parameters.
type Config struct {
	M              int
	EfConstruction int
	Metric         vector.Metric
	Seed           int64
}

// DefaultConfig returns M=16, EfConstruction=200.
func DefaultConfig(metric vector.Metric) Config {
	return Config{M: 16, EfConstruction: 200, Metric: metric, Seed: 1}
}

// Result is a single search hit.
type Result struct {
	InternalID uint32
	Score      float32 // raw metric value: similarity for InnerProduct, else distance
}

// Graph is the HNSW index. Node state lives in parallel slices indexed by
// internal id; a nil vectors[i] means id i has never been inserted.
type Graph struct {
	mu sync.RWMutex

	m              int
	maxM0          int
	efConstruction int
	ml             float64
	rng            *rand.Rand
	metric         vector.Metric

	vectors   [][]float32
	levels    []uint8
	neighbors [][][]uint32 // neighbors[id][layer]
	deleted   *roaring.Bitmap

	entryPoint int64 // -1 when empty
	maxLevel   int

	corruptionCount uint64
}

// New creates an empty HNSW graph.
func New(cfg Config) *Graph {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	return &Graph{
		m:              cfg.M,
		maxM0:          cfg.M * 2,
		efConstruction: cfg.EfConstruction,
		ml:             1.0 / math.Log(float64(cfg.M)),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		metric:         cfg.Metric,
		deleted:        roaring.New(),
		entryPoint:     -1,
	}
}

// dist returns a "smaller is closer" distance between two dense vectors,
// regardless of whether the configured metric is itself a similarity
// (InnerProduct) that the public API sorts descending.
func (g *Graph) dist(a, b []float32) float32 {
	raw := vector.Distance(g.metric, a, b)
	if g.metric.HigherIsBetter() {
		return -raw
	}
	return raw
}

// selectLevel assigns a level via L = floor(-ln(U) * ml), U uniform (0,1].
func (g *Graph) selectLevel() int {
	u := g.rng.Float64()
	for u <= 0 {
		u = g.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) * g.ml))
	if level > 31 {
		level = 31
	}
	return level
}

// Insert adds internalID to the graph, or — if internalID already refers to
// a node — replaces its vector and re-splices its edges while keeping its
// level fixed (a node's level never changes once assigned, even across a
// re-upsert).
func (g *Graph) Insert(internalID uint32, vec []float32) error {
	if len(vec) == 0 {
		return verrors.ErrDimensionMismatch
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if int(internalID) < len(g.vectors) && g.vectors[internalID] != nil {
		return g.reinsertLocked(internalID, vec)
	}

	for uint32(len(g.vectors)) <= internalID {
		g.vectors = append(g.vectors, nil)
		g.levels = append(g.levels, 0)
		g.neighbors = append(g.neighbors, nil)
	}

	level := g.selectLevel()
	g.vectors[internalID] = vec
	g.levels[internalID] = uint8(level)
	g.neighbors[internalID] = make([][]uint32, level+1)

	if g.entryPoint == -1 {
		g.entryPoint = int64(internalID)
		g.maxLevel = level
		return nil
	}

	g.spliceLocked(internalID, vec, level)

	if level > g.maxLevel {
		g.entryPoint = int64(internalID)
		g.maxLevel = level
	}
	return nil
}

func (g *Graph) reinsertLocked(internalID uint32, vec []float32) error {
	level := int(g.levels[internalID])
	g.vectors[internalID] = vec
	for i := range g.neighbors[internalID] {
		g.neighbors[internalID][i] = nil
	}
	if g.entryPoint == -1 {
		g.entryPoint = int64(internalID)
		g.maxLevel = level
		return nil
	}
	g.spliceLocked(internalID, vec, level)
	return nil
}

// spliceLocked runs the standard HNSW connection procedure for a node
// already present in the parallel arrays. Caller holds g.mu.
func (g *Graph) spliceLocked(internalID uint32, vec []float32, level int) {
	entry := uint32(g.entryPoint)
	curr := []uint32{entry}

	entryLevel := int(g.levels[entry])
	for lc := entryLevel; lc > level; lc-- {
		curr = g.searchLayerClosestLocked(vec, curr, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		maxConn := g.m
		if lc == 0 {
			maxConn = g.maxM0
		}

		candidates := g.searchLayerLocked(vec, curr, g.efConstruction, lc)
		selected := g.selectNeighborsHeuristicLocked(vec, candidates, maxConn)

		g.neighbors[internalID][lc] = selected
		for _, nb := range selected {
			g.addConnectionLocked(nb, internalID, lc)
			g.pruneLocked(nb, lc, maxConn)
		}
		if len(selected) > 0 {
			curr = selected
		}
	}
}

func (g *Graph) addConnectionLocked(from, to uint32, layer int) {
	if layer >= len(g.neighbors[from]) {
		return
	}
	for _, nb := range g.neighbors[from][layer] {
		if nb == to {
			return
		}
	}
	g.neighbors[from][layer] = append(g.neighbors[from][layer], to)
}

func (g *Graph) pruneLocked(id uint32, layer int, maxConn int) {
	if layer >= len(g.neighbors[id]) || len(g.neighbors[id][layer]) <= maxConn {
		return
	}
	g.neighbors[id][layer] = g.selectNeighborsHeuristicLocked(g.vectors[id], g.neighbors[id][layer], maxConn)
}

// searchLayerLocked performs the best-first expansion at one layer,
// returning up to ef closest candidates, closest first.
func (g *Graph) searchLayerLocked(query []float32, entryPoints []uint32, ef int, layer int) []uint32 {
	visited := make(map[uint32]bool, ef*2)
	candidates := &minHeap{}
	dynamic := &maxHeap{}

	for _, p := range entryPoints {
		if visited[p] {
			continue
		}
		visited[p] = true
		d := g.dist(query, g.vectors[p])
		heap.Push(candidates, heapItem{id: p, dist: d})
		heap.Push(dynamic, heapItem{id: p, dist: d})
	}

	for candidates.Len() > 0 {
		if dynamic.Len() > 0 && (*candidates)[0].dist > (*dynamic)[0].dist {
			break
		}
		current := heap.Pop(candidates).(heapItem)
		if layer >= len(g.neighbors[current.id]) {
			continue
		}
		for _, nb := range g.neighbors[current.id][layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			if int(nb) >= len(g.vectors) || g.vectors[nb] == nil {
				atomic.AddUint64(&g.corruptionCount, 1)
				continue
			}
			d := g.dist(query, g.vectors[nb])
			if dynamic.Len() < ef || d < (*dynamic)[0].dist {
				heap.Push(candidates, heapItem{id: nb, dist: d})
				heap.Push(dynamic, heapItem{id: nb, dist: d})
				if dynamic.Len() > ef {
					heap.Pop(dynamic)
				}
			}
		}
	}

	result := make([]uint32, dynamic.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(dynamic).(heapItem).id
	}
	return result
}

func (g *Graph) searchLayerClosestLocked(query []float32, entryPoints []uint32, num, layer int) []uint32 {
	found := g.searchLayerLocked(query, entryPoints, num, layer)
	if len(found) > num {
		found = found[:num]
	}
	return found
}

// selectNeighborsHeuristicLocked greedily keeps candidates that are closer
// to the target than to any neighbor already selected, biasing toward a
// diverse, well-connected graph instead of just the m nearest points.
func (g *Graph) selectNeighborsHeuristicLocked(query []float32, candidates []uint32, m int) []uint32 {
	if len(candidates) <= m {
		out := make([]uint32, len(candidates))
		copy(out, candidates)
		return out
	}

	type pair struct {
		id   uint32
		dist float32
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = pair{id: c, dist: g.dist(query, g.vectors[c])}
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].dist < pairs[i].dist {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}

	selected := make([]uint32, 0, m)
	for _, cand := range pairs {
		if len(selected) >= m {
			break
		}
		good := true
		for _, s := range selected {
			if g.dist(g.vectors[cand.id], g.vectors[s]) < cand.dist {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, cand.id)
		}
	}
	if len(selected) < m {
		have := make(map[uint32]bool, len(selected))
		for _, s := range selected {
			have[s] = true
		}
		for _, cand := range pairs {
			if len(selected) >= m {
				break
			}
			if !have[cand.id] {
				selected = append(selected, cand.id)
			}
		}
	}
	return selected
}

// Search runs k-NN search with the given ef_search, returning up to k live
// results. accept, if non-nil, gates which candidates count toward the k
// results during expansion (the in-graph predicate strategy); nodes
// failing accept are still traversed as stepping stones, so a restrictive
// filter does not strand the search in an unrelated part of the graph.
func (g *Graph) Search(query []float32, k, ef int, accept func(uint32) bool) []Result {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.entryPoint == -1 {
		return nil
	}
	if ef < k {
		ef = k
	}

	entry := uint32(g.entryPoint)
	curr := []uint32{entry}
	for layer := int(g.levels[entry]); layer > 0; layer-- {
		curr = g.searchLayerClosestLocked(query, curr, 1, layer)
	}

	candidates := g.searchLayerLocked(query, curr, ef, 0)

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		if g.deleted.Contains(id) {
			continue
		}
		if accept != nil && !accept(id) {
			continue
		}
		score := g.dist(query, g.vectors[id])
		if g.metric.HigherIsBetter() {
			score = -score
		}
		results = append(results, Result{InternalID: id, Score: score})
	}

	sortResults(g.metric, results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func sortResults(metric vector.Metric, results []Result) {
	higherBetter := metric.HigherIsBetter()
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			swap := results[j-1].Score > results[j].Score
			if higherBetter {
				swap = results[j-1].Score < results[j].Score
			}
			if !swap {
				break
			}
			results[j-1], results[j] = results[j], results[j-1]
		}
	}
}

// Delete soft-deletes internalID: it remains a stepping stone for traversal
// but is never returned by Search.
func (g *Graph) Delete(internalID uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(internalID) >= len(g.vectors) || g.vectors[internalID] == nil {
		return errors.New("index: node not found")
	}
	g.deleted.Add(internalID)
	if g.entryPoint == int64(internalID) {
		g.reassignEntryPointLocked()
	}
	return nil
}

// Restore clears the soft-delete tombstone for internalID.
func (g *Graph) Restore(internalID uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(internalID) >= len(g.vectors) || g.vectors[internalID] == nil {
		return errors.New("index: node not found")
	}
	g.deleted.Remove(internalID)
	if g.entryPoint == -1 {
		g.entryPoint = int64(internalID)
		g.maxLevel = int(g.levels[internalID])
	}
	return nil
}

func (g *Graph) reassignEntryPointLocked() {
	for id := range g.vectors {
		if g.vectors[id] == nil || g.deleted.Contains(uint32(id)) {
			continue
		}
		g.entryPoint = int64(id)
		g.maxLevel = int(g.levels[id])
		return
	}
	g.entryPoint = -1
	g.maxLevel = 0
}

// Size returns the number of live (non-tombstoned) nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	live := 0
	for id := range g.vectors {
		if g.vectors[id] != nil && !g.deleted.Contains(uint32(id)) {
			live++
		}
	}
	return live
}

// CorruptionCount returns the number of traversal anomalies observed
// (neighbor ids pointing at a missing slot), incremented instead of
// failing the query outright.
func (g *Graph) CorruptionCount() uint64 {
	return atomic.LoadUint64(&g.corruptionCount)
}

// Stats reports graph-level diagnostics.
func (g *Graph) Stats() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()

	totalEdges := 0
	maxLevel := 0
	levelDist := make(map[int]int)
	for id := range g.vectors {
		if g.vectors[id] == nil {
			continue
		}
		lvl := int(g.levels[id])
		levelDist[lvl]++
		if lvl > maxLevel {
			maxLevel = lvl
		}
		for _, layer := range g.neighbors[id] {
			totalEdges += len(layer)
		}
	}
	return map[string]interface{}{
		"total_nodes":        len(g.vectors),
		"deleted_nodes":      int(g.deleted.GetCardinality()),
		"total_edges":        totalEdges,
		"max_level":          maxLevel,
		"level_distribution": levelDist,
		"entry_point":        g.entryPoint,
		"m":                  g.m,
		"ef_construction":    g.efConstruction,
		"corruption_count":   g.CorruptionCount(),
	}
}

// gobGraph is the on-the-wire shape for Save/Load (over io.Writer/
// io.Reader), generalized to the parallel-array representation.
type gobGraph struct {
	M              int
	MaxM0          int
	EfConstruction int
	Metric         vector.Metric
	Vectors        [][]float32
	Levels         []uint8
	Neighbors      [][][]uint32
	DeletedIDs     []uint32
	EntryPoint     int64
	MaxLevel       int
}

// Save serializes the graph via gob.
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	gg := gobGraph{
		M:              g.m,
		MaxM0:          g.maxM0,
		EfConstruction: g.efConstruction,
		Metric:         g.metric,
		Vectors:        g.vectors,
		Levels:         g.levels,
		Neighbors:      g.neighbors,
		DeletedIDs:     g.deleted.ToArray(),
		EntryPoint:     g.entryPoint,
		MaxLevel:       g.maxLevel,
	}
	return gob.NewEncoder(w).Encode(&gg)
}

// Load deserializes a graph previously written by Save.
func (g *Graph) Load(r io.Reader) error {
	var gg gobGraph
	if err := gob.NewDecoder(r).Decode(&gg); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.m = gg.M
	g.maxM0 = gg.MaxM0
	g.efConstruction = gg.EfConstruction
	g.metric = gg.Metric
	g.ml = 1.0 / math.Log(float64(g.m))
	g.vectors = gg.Vectors
	g.levels = gg.Levels
	g.neighbors = gg.Neighbors
	g.entryPoint = gg.EntryPoint
	g.maxLevel = gg.MaxLevel
	g.deleted = roaring.New()
	g.deleted.AddMany(gg.DeletedIDs)
	return nil
}

// heapItem and the two heap flavors back searchLayerLocked's candidate set
// (min-heap, pop closest first) and dynamic list (max-heap, evict farthest).

type heapItem struct {
	id   uint32
	dist float32
}

type minHeap []heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type maxHeap []heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
