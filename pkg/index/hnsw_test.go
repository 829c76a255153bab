package index

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

func randomVec(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func TestHNSWBasic(t *testing.T) {
	g := New(DefaultConfig(vector.L2))

	vecs := [][]float32{
		{1.0, 0.0, 0.0, 0.0},
		{0.0, 1.0, 0.0, 0.0},
		{0.0, 0.0, 1.0, 0.0},
		{0.5, 0.5, 0.0, 0.0},
		{0.5, 0.0, 0.5, 0.0},
	}
	for id, v := range vecs {
		if err := g.Insert(uint32(id), v); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}

	if g.Size() != 5 {
		t.Errorf("expected size 5, got %d", g.Size())
	}

	query := []float32{0.9, 0.1, 0.0, 0.0}
	results := g.Search(query, 3, 50, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].InternalID != 0 {
		t.Errorf("expected first result to be id 0, got %d", results[0].InternalID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Error("scores not in ascending order for L2")
		}
	}
}

func TestHNSWCosineMetric(t *testing.T) {
	g := New(DefaultConfig(vector.Cosine))

	vecs := [][]float32{
		{1.0, 0.0, 0.0, 0.0},
		{1.0, 1.0, 0.0, 0.0},
		{0.0, 1.0, 0.0, 0.0},
		{1.0, 0.0, 1.0, 0.0},
		{1.0, 1.0, 1.0, 1.0},
	}
	for id, v := range vecs {
		if err := g.Insert(uint32(id), v); err != nil {
			t.Fatalf("insert %d: %v", id, err)
		}
	}

	query := []float32{1.0, 0.5, 0.0, 0.0}
	results := g.Search(query, 3, 50, nil)
	if len(results) == 0 {
		t.Fatal("no results returned")
	}
}

func TestHNSWRecallAgainstFlat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large recall test in short mode")
	}

	rng := rand.New(rand.NewSource(7))
	dim := 32
	n := 500

	g := New(DefaultConfig(vector.L2))
	flat := NewFlat(dim, vector.L2)

	for i := 0; i < n; i++ {
		v := randomVec(rng, dim)
		if err := g.Insert(uint32(i), v); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		flat.Insert(uint32(i), v)
	}

	k := 10
	trials := 20
	var hits, total int
	for q := 0; q < trials; q++ {
		query := randomVec(rng, dim)
		approx := g.Search(query, k, 200, nil)
		exact := flat.Search(query, k)

		exactSet := make(map[uint32]bool, len(exact))
		for _, r := range exact {
			exactSet[r.InternalID] = true
		}
		for _, r := range approx {
			if exactSet[r.InternalID] {
				hits++
			}
		}
		total += len(exact)
	}

	recall := float64(hits) / float64(total)
	if recall < 0.85 {
		t.Errorf("recall too low: %.3f (hits=%d total=%d)", recall, hits, total)
	}
}

func TestHNSWDeleteRestore(t *testing.T) {
	g := New(DefaultConfig(vector.L2))
	for i := 0; i < 5; i++ {
		v := []float32{float32(i), 0, 0, 0}
		if err := g.Insert(uint32(i), v); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	if err := g.Delete(2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if g.Size() != 4 {
		t.Errorf("expected size 4 after delete, got %d", g.Size())
	}

	query := []float32{2.0, 0, 0, 0}
	results := g.Search(query, 5, 50, nil)
	for _, r := range results {
		if r.InternalID == 2 {
			t.Error("deleted node 2 appeared in search results")
		}
	}

	if err := g.Restore(2); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if g.Size() != 5 {
		t.Errorf("expected size 5 after restore, got %d", g.Size())
	}
}

func TestHNSWFilteredSearch(t *testing.T) {
	g := New(DefaultConfig(vector.L2))
	for i := 0; i < 10; i++ {
		v := []float32{float32(i), 0, 0, 0}
		if err := g.Insert(uint32(i), v); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	accept := func(id uint32) bool { return id%2 == 0 }
	results := g.Search([]float32{0, 0, 0, 0}, 3, 50, accept)
	for _, r := range results {
		if r.InternalID%2 != 0 {
			t.Errorf("accept predicate violated: got odd id %d", r.InternalID)
		}
	}
}

func TestHNSWReinsertKeepsLevel(t *testing.T) {
	g := New(DefaultConfig(vector.L2))
	for i := 0; i < 20; i++ {
		v := []float32{float32(i), float32(i), 0, 0}
		if err := g.Insert(uint32(i), v); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	levelBefore := g.levels[5]
	if err := g.Insert(5, []float32{99, 99, 0, 0}); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if g.levels[5] != levelBefore {
		t.Errorf("level changed across re-upsert: %d -> %d", levelBefore, g.levels[5])
	}

	results := g.Search([]float32{99, 99, 0, 0}, 1, 50, nil)
	if len(results) != 1 || results[0].InternalID != 5 {
		t.Errorf("expected reinserted node 5 to be nearest, got %+v", results)
	}
}

func TestHNSWEmptyIndex(t *testing.T) {
	g := New(DefaultConfig(vector.L2))
	results := g.Search([]float32{1, 0, 0, 0}, 5, 50, nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results from empty index, got %d", len(results))
	}
}

func TestHNSWSaveLoadRoundTrip(t *testing.T) {
	g := New(DefaultConfig(vector.Cosine))
	for i := 0; i < 30; i++ {
		v := []float32{float32(i % 5), float32(i % 3), 1, 0}
		if err := g.Insert(uint32(i), v); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := g.Delete(7); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := New(DefaultConfig(vector.Cosine))
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Size() != g.Size() {
		t.Errorf("size mismatch after load: got %d want %d", loaded.Size(), g.Size())
	}

	query := []float32{4, 2, 1, 0}
	before := g.Search(query, 5, 50, nil)
	after := loaded.Search(query, 5, 50, nil)
	if len(before) != len(after) {
		t.Fatalf("result count mismatch: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].InternalID != after[i].InternalID {
			t.Errorf("result %d mismatch after reload: %d vs %d", i, before[i].InternalID, after[i].InternalID)
		}
	}
}

func BenchmarkHNSWInsert(b *testing.B) {
	g := New(DefaultConfig(vector.L2))
	dim := 128
	vecs := make([][]float32, b.N)
	for i := 0; i < b.N; i++ {
		vecs[i] = randomVec(rand.New(rand.NewSource(int64(i))), dim)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := g.Insert(uint32(i), vecs[i]); err != nil {
			b.Fatalf("insert failed: %v", err)
		}
	}
}

func BenchmarkHNSWSearch(b *testing.B) {
	g := New(DefaultConfig(vector.L2))
	dim := 128
	n := 10000
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		if err := g.Insert(uint32(i), randomVec(rng, dim)); err != nil {
			b.Fatalf("insert failed: %v", err)
		}
	}
	query := randomVec(rng, dim)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Search(query, 10, 50, nil)
	}
}
