package index

import (
	"encoding/gob"
	"io"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

// SparseIndex is an inverted-postings index over sparse vector dimensions:
// each dimension maps to the set of internal ids with a nonzero component
// there, the same structure pkg/text uses for term postings but keyed by
// dimension instead of token. A query gathers every id sharing at least one
// nonzero dimension as its candidate set, then scores each candidate
// exactly via vector.SparseDotProduct/SparseCosine. Unlike the dense HNSW
// graph's approximate beam search, this is exact over its candidate set —
// sparse vectors (text embeddings, TF-IDF, learned sparse retrieval) are
// typically sparse enough that the shared-dimension candidate set is small
// relative to the collection.
type SparseIndex struct {
	mu sync.RWMutex

	metric vector.Metric // only Cosine and InnerProduct are meaningful; others fall back to InnerProduct

	postings map[uint32]*roaring.Bitmap // dimension -> set of internal ids
	vectors  map[uint32]vector.Vector   // internal id -> its sparse component
	deleted  *roaring.Bitmap
}

// NewSparse creates an empty sparse index scored under metric.
func NewSparse(metric vector.Metric) *SparseIndex {
	return &SparseIndex{
		metric:   metric,
		postings: make(map[uint32]*roaring.Bitmap),
		vectors:  make(map[uint32]vector.Vector),
		deleted:  roaring.New(),
	}
}

// Insert adds or replaces internalID's sparse vector. v must be Sparse or
// Hybrid; only Indices/SparseValues are consulted.
func (s *SparseIndex) Insert(internalID uint32, v vector.Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeFromPostingsLocked(internalID)
	s.vectors[internalID] = v
	s.deleted.Remove(internalID)
	for _, idx := range v.Indices {
		bm, ok := s.postings[idx]
		if !ok {
			bm = roaring.New()
			s.postings[idx] = bm
		}
		bm.Add(internalID)
	}
}

func (s *SparseIndex) removeFromPostingsLocked(internalID uint32) {
	old, ok := s.vectors[internalID]
	if !ok {
		return
	}
	for _, idx := range old.Indices {
		if bm, ok := s.postings[idx]; ok {
			bm.Remove(internalID)
		}
	}
}

// Delete tombstones internalID: it is excluded from Search but its
// postings remain until the next Insert/physical removal, matching the
// dense graph's soft-delete convention.
func (s *SparseIndex) Delete(internalID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted.Add(internalID)
	return nil
}

// Restore clears the tombstone set by Delete.
func (s *SparseIndex) Restore(internalID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted.Remove(internalID)
	return nil
}

// Search scores every id sharing at least one nonzero dimension with q,
// returning the top-k by descending similarity. accept, if non-nil,
// additionally gates which ids are eligible (used for metadata-filtered
// search, mirroring the dense graph's predicate).
func (s *SparseIndex) Search(q vector.Vector, k int, accept func(uint32) bool) []SparseResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := roaring.New()
	for _, idx := range q.Indices {
		if bm, ok := s.postings[idx]; ok {
			candidates.Or(bm)
		}
	}

	results := make([]SparseResult, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()
		if s.deleted.Contains(id) {
			continue
		}
		if accept != nil && !accept(id) {
			continue
		}
		cand := s.vectors[id]
		results = append(results, SparseResult{InternalID: id, Score: s.scoreLocked(q, cand)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (s *SparseIndex) scoreLocked(a, b vector.Vector) float32 {
	if s.metric == vector.Cosine {
		return 1 - vector.SparseCosine(a.Indices, a.SparseValues, b.Indices, b.SparseValues)
	}
	return vector.SparseDotProduct(a.Indices, a.SparseValues, b.Indices, b.SparseValues)
}

// SparseResult is a single sparse search hit; higher Score is always
// better, regardless of the configured metric.
type SparseResult struct {
	InternalID uint32
	Score      float32
}

// Size returns the number of sparse vectors ever inserted (including
// tombstoned ones); unlike Graph.Size, it does not exclude tombstones.
func (s *SparseIndex) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// gobSparse is the on-the-wire shape for Save/Load, following the same
// convention as Graph's gobGraph.
type gobSparse struct {
	Metric     vector.Metric
	Vectors    map[uint32]vector.Vector
	DeletedIDs []uint32
}

// Save serializes the sparse index via gob. Postings are not written
// directly; Load rebuilds them from Vectors so the two can't drift apart.
func (s *SparseIndex) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs := gobSparse{Metric: s.metric, Vectors: s.vectors, DeletedIDs: s.deleted.ToArray()}
	return gob.NewEncoder(w).Encode(&gs)
}

// Load deserializes a sparse index previously written by Save.
func (s *SparseIndex) Load(r io.Reader) error {
	var gs gobSparse
	if err := gob.NewDecoder(r).Decode(&gs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metric = gs.Metric
	s.vectors = gs.Vectors
	if s.vectors == nil {
		s.vectors = make(map[uint32]vector.Vector)
	}
	s.postings = make(map[uint32]*roaring.Bitmap)
	for id, v := range s.vectors {
		for _, idx := range v.Indices {
			bm, ok := s.postings[idx]
			if !ok {
				bm = roaring.New()
				s.postings[idx] = bm
			}
			bm.Add(id)
		}
	}
	s.deleted = roaring.New()
	s.deleted.AddMany(gs.DeletedIDs)
	return nil
}
