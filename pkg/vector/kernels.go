package vector

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Metric identifies a distance/similarity kernel. Lower scores are better
// "distance"; InnerProduct is a similarity (sorted descending) per spec.
type Metric int

const (
	L2 Metric = iota
	Cosine
	InnerProduct
	L1
	Hamming
	Jaccard
)

func (m Metric) String() string {
	switch m {
	case L2:
		return "l2"
	case Cosine:
		return "cosine"
	case InnerProduct:
		return "inner_product"
	case L1:
		return "l1"
	case Hamming:
		return "hamming"
	case Jaccard:
		return "jaccard"
	default:
		return "unknown"
	}
}

// HigherIsBetter reports whether larger scores rank first for this metric.
func (m Metric) HigherIsBetter() bool {
	return m == InnerProduct
}

// relativeEpsilon bounds the allowed disagreement between the SIMD and
// scalar kernels, per spec §4.1.
const relativeEpsilon = 1e-5

// Distance computes the configured metric between two dense vectors of
// equal length. It dispatches to a SIMD-backed fast path for L2/Cosine/
// InnerProduct (via vek32's runtime-CPU-dispatching dot product) and a
// scalar path for the rest.
func Distance(metric Metric, a, b []float32) float32 {
	switch metric {
	case L2:
		return l2Fast(a, b)
	case Cosine:
		return cosineFast(a, b)
	case InnerProduct:
		return innerProductFast(a, b)
	case L1:
		return l1Scalar(a, b)
	case Hamming:
		return hammingScalar(a, b)
	case Jaccard:
		return jaccardScalar(a, b)
	default:
		return float32(math.NaN())
	}
}

// The *Fast kernels reduce every pairwise computation to dot products so a
// single SIMD primitive (vek32.Dot) covers L2, Cosine, and InnerProduct:
//
//	|a-b|^2 = a.a + b.b - 2(a.b)
//	cos(a,b) = a.b / sqrt(a.a * b.b)

func l2Fast(a, b []float32) float32 {
	aa := vek32.Dot(a, a)
	bb := vek32.Dot(b, b)
	ab := vek32.Dot(a, b)
	sq := aa + bb - 2*ab
	if sq < 0 {
		sq = 0 // guard against fp cancellation for near-identical vectors
	}
	return float32(math.Sqrt(float64(sq)))
}

func cosineFast(a, b []float32) float32 {
	aa := vek32.Dot(a, a)
	bb := vek32.Dot(b, b)
	if aa == 0 || bb == 0 {
		return 1.0
	}
	ab := vek32.Dot(a, b)
	sim := float64(ab) / math.Sqrt(float64(aa)*float64(bb))
	return float32(1.0 - sim)
}

func innerProductFast(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// Scalar reference implementations, used directly for metrics vek32 has no
// primitive for, and by tests to cross-check the fast paths agree within
// relativeEpsilon.

func L2Scalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

func CosineScalar(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1.0
	}
	sim := float64(dot) / (math.Sqrt(float64(na)) * math.Sqrt(float64(nb)))
	return float32(1.0 - sim)
}

func InnerProductScalar(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func l1Scalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

func hammingScalar(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	var diff int
	for i := range a {
		if a[i] != b[i] {
			diff++
		}
	}
	return float32(diff) / float32(len(a))
}

func jaccardScalar(a, b []float32) float32 {
	var sumMin, sumMax float32
	for i := range a {
		mn, mx := a[i], b[i]
		if mn > mx {
			mn, mx = mx, mn
		}
		sumMin += mn
		sumMax += mx
	}
	if sumMax == 0 {
		return 0
	}
	return float32(1.0 - float64(sumMin)/float64(sumMax))
}

// agree reports whether two kernel results agree within the spec's
// relative-error tolerance. Exported for cross-package property tests.
func Agree(x, y float32) bool {
	if x == y {
		return true
	}
	denom := math.Abs(float64(x))
	if denom == 0 {
		denom = 1
	}
	return math.Abs(float64(x-y))/denom <= relativeEpsilon
}

// SparseDotProduct computes the dot product of two sparse vectors given as
// sorted (index, value) pairs, via a two-pointer merge: O(|A|+|B|).
func SparseDotProduct(aIdx []uint32, aVal []float32, bIdx []uint32, bVal []float32) float32 {
	var sum float32
	i, j := 0, 0
	for i < len(aIdx) && j < len(bIdx) {
		switch {
		case aIdx[i] == bIdx[j]:
			sum += aVal[i] * bVal[j]
			i++
			j++
		case aIdx[i] < bIdx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// SparseCosine computes cosine distance between two sparse vectors.
func SparseCosine(aIdx []uint32, aVal []float32, bIdx []uint32, bVal []float32) float32 {
	dot := SparseDotProduct(aIdx, aVal, bIdx, bVal)
	var na, nb float32
	for _, v := range aVal {
		na += v * v
	}
	for _, v := range bVal {
		nb += v * v
	}
	if na == 0 || nb == 0 {
		return 1.0
	}
	sim := float64(dot) / (math.Sqrt(float64(na)) * math.Sqrt(float64(nb)))
	return float32(1.0 - sim)
}
