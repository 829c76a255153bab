package index

import (
	"math/rand"
	"testing"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

func TestFlatBasic(t *testing.T) {
	f := NewFlat(4, vector.L2)

	vecs := map[uint32][]float32{
		0: {1.0, 0.0, 0.0, 0.0},
		1: {0.0, 1.0, 0.0, 0.0},
		2: {0.0, 0.0, 1.0, 0.0},
		3: {0.5, 0.5, 0.0, 0.0},
		4: {0.5, 0.0, 0.5, 0.0},
	}
	for id, v := range vecs {
		f.Insert(id, v)
	}

	if f.Size() != 5 {
		t.Errorf("expected size 5, got %d", f.Size())
	}

	results := f.Search([]float32{0.9, 0.1, 0.0, 0.0}, 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].InternalID != 0 {
		t.Errorf("expected closest result to be id 0, got %d", results[0].InternalID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Error("results not in ascending distance order")
		}
	}
}

func TestFlatCosineHigherIsNotUsed(t *testing.T) {
	f := NewFlat(4, vector.Cosine)
	f.Insert(0, []float32{1, 0, 0, 0})
	f.Insert(1, []float32{1, 1, 0, 0})
	f.Insert(2, []float32{0, 1, 0, 0})

	results := f.Search([]float32{1, 0.5, 0, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Score > results[1].Score {
		t.Error("cosine distances should ascend (smaller is closer)")
	}
}

func TestFlatInnerProductOrdering(t *testing.T) {
	f := NewFlat(2, vector.InnerProduct)
	f.Insert(0, []float32{1, 0})
	f.Insert(1, []float32{5, 0})
	f.Insert(2, []float32{-3, 0})

	results := f.Search([]float32{1, 0}, 3)
	if results[0].InternalID != 1 {
		t.Errorf("expected highest inner product (id 1) first, got %d", results[0].InternalID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("inner product results should descend (higher is better)")
		}
	}
}

func TestFlatDelete(t *testing.T) {
	f := NewFlat(2, vector.L2)
	f.Insert(0, []float32{1, 0})
	f.Insert(1, []float32{0, 1})
	f.Insert(2, []float32{1, 1})

	f.Delete(1)
	if f.Size() != 2 {
		t.Errorf("expected size 2 after delete, got %d", f.Size())
	}

	results := f.Search([]float32{0, 1}, 3)
	for _, r := range results {
		if r.InternalID == 1 {
			t.Error("deleted id 1 still appears in search results")
		}
	}
}

func TestFlatKLargerThanSize(t *testing.T) {
	f := NewFlat(3, vector.L2)
	f.Insert(0, []float32{1, 0, 0})
	f.Insert(1, []float32{0, 1, 0})

	results := f.Search([]float32{0.5, 0.5, 0}, 10)
	if len(results) != 2 {
		t.Errorf("expected 2 results (all vectors), got %d", len(results))
	}
}

func TestFlatEmptyIndex(t *testing.T) {
	f := NewFlat(3, vector.L2)
	results := f.Search([]float32{1, 0, 0}, 5)
	if len(results) != 0 {
		t.Error("empty index should return empty results")
	}
}

func BenchmarkFlatSearch(b *testing.B) {
	f := NewFlat(128, vector.L2)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := make([]float32, 128)
		for j := range v {
			v[j] = rng.Float32()
		}
		f.Insert(uint32(i), v)
	}
	query := make([]float32, 128)
	for i := range query {
		query[i] = rng.Float32()
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Search(query, 10)
	}
}
