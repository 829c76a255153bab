// Package fusion implements the hybrid/fusion engine (spec component C7):
// combining a dense ANN result list with a sparse BM25 result list into
// one ranked list under a chosen policy. It generalizes a single alpha-
// weighted dense/sparse combiner and a separate score-combination phase
// into the closed set of eight fusion policies spec §4.6 names.
package fusion

import (
	"math"
	"sort"
)

// Policy selects how dense and sparse score lists are merged.
type Policy int

const (
	WeightedSum Policy = iota
	ReciprocalRankFusion
	DBSF
	RelativeScore
	Max
	Min
	HarmonicMean
	GeometricMean
)

func (p Policy) String() string {
	switch p {
	case WeightedSum:
		return "weighted_sum"
	case ReciprocalRankFusion:
		return "rrf"
	case DBSF:
		return "dbsf"
	case RelativeScore:
		return "relative_score"
	case Max:
		return "max"
	case Min:
		return "min"
	case HarmonicMean:
		return "harmonic_mean"
	case GeometricMean:
		return "geometric_mean"
	default:
		return "unknown"
	}
}

// ScoredID is one entry of an input or output ranked list. Higher Score is
// always better in this package's inputs and outputs (callers translate
// raw metric scores, e.g. negate distances, before calling Fuse).
type ScoredID struct {
	ID    uint32
	Score float64
}

// Explanation documents how a single fused result's score was derived, per
// spec §4.6's opt-in score-explanation feature. Built on demand from the
// cheap (dense, sparse, policy, alpha) tuple — never threaded through the
// hot fusion loop itself.
type Explanation struct {
	DenseScore        float64
	SparseScore       float64
	Policy            Policy
	Alpha             float64
	Formula           string
	DenseContribution float64 // fraction of final score attributable to dense
}

// RRFDefaultK is the default k_rrf constant from spec §4.6.
const RRFDefaultK = 60

// Config holds the parameters Fuse needs beyond the two input lists.
type Config struct {
	Policy Policy
	Alpha  float64 // dense weight, in [0,1]
	RRFK   float64 // k_rrf for ReciprocalRankFusion, default 60
}

// DefaultConfig returns WeightedSum with alpha=0.5.
func DefaultConfig() Config {
	return Config{Policy: WeightedSum, Alpha: 0.5, RRFK: RRFDefaultK}
}

// Fuse merges dense and sparse ranked lists into the top-k fused result,
// highest score first.
func Fuse(dense, sparse []ScoredID, k int, cfg Config) []ScoredID {
	if cfg.RRFK <= 0 {
		cfg.RRFK = RRFDefaultK
	}

	if cfg.Policy == ReciprocalRankFusion {
		return fuseRRF(dense, sparse, k, cfg.RRFK)
	}

	ids := unionIDs(dense, sparse)
	normDense, _, _ := normalize(dense, cfg.Policy)
	normSparse, _, _ := normalize(sparse, cfg.Policy)

	out := make([]ScoredID, 0, len(ids))
	for _, id := range ids {
		d := normDense[id]
		s := normSparse[id]
		score := combine(cfg.Policy, d, s, cfg.Alpha)
		out = append(out, ScoredID{ID: id, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func fuseRRF(dense, sparse []ScoredID, k int, rrfK float64) []ScoredID {
	scores := make(map[uint32]float64)
	for rank, s := range dense {
		scores[s.ID] += 1.0 / (rrfK + float64(rank+1))
	}
	for rank, s := range sparse {
		scores[s.ID] += 1.0 / (rrfK + float64(rank+1))
	}
	out := make([]ScoredID, 0, len(scores))
	for id, score := range scores {
		out = append(out, ScoredID{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func combine(policy Policy, d, s, alpha float64) float64 {
	switch policy {
	case WeightedSum, DBSF, RelativeScore:
		return alpha*d + (1-alpha)*s
	case Max:
		if d > s {
			return d
		}
		return s
	case Min:
		if d < s {
			return d
		}
		return s
	case HarmonicMean:
		if d+s == 0 {
			return 0
		}
		return 2 * d * s / (d + s)
	case GeometricMean:
		if d < 0 {
			d = 0
		}
		if s < 0 {
			s = 0
		}
		return math.Sqrt(d * s)
	default:
		return alpha*d + (1-alpha)*s
	}
}

// normalize produces a per-id map of normalized scores in [0,1] for the
// given policy, plus the [lo, hi] range used. RelativeScore/WeightedSum/
// Max/Min/HarmonicMean/GeometricMean use plain min-max; DBSF first clamps
// to [mean-3*stddev, mean+3*stddev] per spec §4.6.
func normalize(list []ScoredID, policy Policy) (map[uint32]float64, float64, float64) {
	out := make(map[uint32]float64, len(list))
	if len(list) == 0 {
		return out, 0, 0
	}

	values := make([]float64, len(list))
	for i, s := range list {
		values[i] = s.Score
	}

	lo, hi := values[0], values[0]
	if policy == DBSF {
		mean, std := meanStd(values)
		lo, hi = mean-3*std, mean+3*std
		for i, v := range values {
			if v < lo {
				v = lo
			}
			if v > hi {
				v = hi
			}
			values[i] = v
		}
	} else {
		for _, v := range values {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}

	span := hi - lo
	for i, s := range list {
		if span == 0 {
			out[s.ID] = 1.0
			continue
		}
		out[s.ID] = (values[i] - lo) / span
	}
	return out, lo, hi
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func unionIDs(a, b []ScoredID) []uint32 {
	seen := make(map[uint32]bool, len(a)+len(b))
	var ids []uint32
	for _, s := range a {
		if !seen[s.ID] {
			seen[s.ID] = true
			ids = append(ids, s.ID)
		}
	}
	for _, s := range b {
		if !seen[s.ID] {
			seen[s.ID] = true
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Explain builds a score-explanation record from the raw component scores
// for a single id, per spec §4.6 ("opt-in per query").
func Explain(denseScore, sparseScore float64, policy Policy, alpha float64) Explanation {
	final := combine(policy, denseScore, sparseScore, alpha)
	var denseContribution float64
	switch policy {
	case WeightedSum, DBSF, RelativeScore:
		num := alpha * denseScore
		if final != 0 {
			denseContribution = num / final
		}
	default:
		if final != 0 {
			denseContribution = denseScore / (denseScore + sparseScore)
		}
	}
	return Explanation{
		DenseScore:        denseScore,
		SparseScore:       sparseScore,
		Policy:            policy,
		Alpha:             alpha,
		Formula:           formulaFor(policy),
		DenseContribution: denseContribution,
	}
}

func formulaFor(policy Policy) string {
	switch policy {
	case WeightedSum:
		return "alpha*norm(dense) + (1-alpha)*norm(sparse)"
	case ReciprocalRankFusion:
		return "sum(1/(k_rrf+rank))"
	case DBSF:
		return "alpha*clamp_norm(dense) + (1-alpha)*clamp_norm(sparse)"
	case RelativeScore:
		return "alpha*minmax(dense) + (1-alpha)*minmax(sparse)"
	case Max:
		return "max(norm(dense), norm(sparse))"
	case Min:
		return "min(norm(dense), norm(sparse))"
	case HarmonicMean:
		return "2*dense*sparse/(dense+sparse)"
	case GeometricMean:
		return "sqrt(dense*sparse)"
	default:
		return "unknown"
	}
}
