package vector

import (
	"math/rand"
	"testing"
)

func TestDistanceBasisVectors(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if got := Distance(L2, a, a); got != 0 {
		t.Fatalf("L2(a,a) = %v, want 0", got)
	}
	want := float32(1.4142135) // sqrt(2)
	if got := Distance(L2, a, b); !Agree(got, want) {
		t.Fatalf("L2(a,b) = %v, want ~%v", got, want)
	}
}

func TestFastKernelsAgreeWithScalar(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		dim := 1 + rng.Intn(300)
		a := randomVec(rng, dim)
		b := randomVec(rng, dim)

		if got, want := l2Fast(a, b), L2Scalar(a, b); !Agree(got, want) {
			t.Fatalf("l2Fast/scalar mismatch at dim %d: %v vs %v", dim, got, want)
		}
		if got, want := cosineFast(a, b), CosineScalar(a, b); !Agree(got, want) {
			t.Fatalf("cosineFast/scalar mismatch at dim %d: %v vs %v", dim, got, want)
		}
		if got, want := innerProductFast(a, b), InnerProductScalar(a, b); !Agree(got, want) {
			t.Fatalf("innerProductFast/scalar mismatch at dim %d: %v vs %v", dim, got, want)
		}
	}
}

func randomVec(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func TestSparseDotProductTwoPointer(t *testing.T) {
	aIdx := []uint32{0, 2, 5}
	aVal := []float32{1, 2, 3}
	bIdx := []uint32{1, 2, 5, 9}
	bVal := []float32{10, 20, 30, 40}

	// Overlap at index 2 (2*20=40) and index 5 (3*30=90) = 130
	got := SparseDotProduct(aIdx, aVal, bIdx, bVal)
	if got != 130 {
		t.Fatalf("SparseDotProduct = %v, want 130", got)
	}
}

func TestVectorValidate(t *testing.T) {
	dense := NewDense([]float32{1, 2, 3})
	if err := dense.Validate(3); err != nil {
		t.Fatalf("dense validate: %v", err)
	}
	if err := dense.Validate(4); err == nil {
		t.Fatalf("expected dimension mismatch")
	}

	sparse, err := NewSparse([]uint32{0, 2, 5}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	if err := sparse.Validate(6); err != nil {
		t.Fatalf("sparse validate: %v", err)
	}

	if _, err := NewSparse([]uint32{2, 1}, []float32{1, 2}); err == nil {
		t.Fatalf("expected unsorted indices error")
	}
}
