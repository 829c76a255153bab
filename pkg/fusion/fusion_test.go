package fusion

import "testing"

func TestFuseRRFSpecExample(t *testing.T) {
	dense := []ScoredID{{1, 0.9}, {2, 0.7}, {3, 0.5}} // a=1, b=2, c=3
	sparse := []ScoredID{{2, 2.0}, {4, 1.8}, {1, 1.0}} // b=2, d=4, a=1

	got := Fuse(dense, sparse, 3, Config{Policy: ReciprocalRankFusion, RRFK: 60})
	want := []uint32{2, 1, 4} // b, a, d
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("position %d: got id %d, want %d (%v)", i, got[i].ID, w, got)
		}
	}
}

func TestFuseWeightedSumAlphaOneIsDenseOrder(t *testing.T) {
	dense := []ScoredID{{1, 0.9}, {2, 0.5}, {3, 0.1}}
	sparse := []ScoredID{{2, 5.0}, {3, 4.0}, {1, 1.0}}

	got := Fuse(dense, sparse, 3, Config{Policy: WeightedSum, Alpha: 1.0})
	if got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("alpha=1 should preserve dense order, got %v", got)
	}
}

func TestFuseWeightedSumAlphaZeroIsSparseOrder(t *testing.T) {
	dense := []ScoredID{{1, 0.9}, {2, 0.5}, {3, 0.1}}
	sparse := []ScoredID{{2, 5.0}, {3, 4.0}, {1, 1.0}}

	got := Fuse(dense, sparse, 3, Config{Policy: WeightedSum, Alpha: 0.0})
	if got[0].ID != 2 || got[1].ID != 3 || got[2].ID != 1 {
		t.Fatalf("alpha=0 should preserve sparse order, got %v", got)
	}
}

func TestDBSFClampsOutliers(t *testing.T) {
	dense := []ScoredID{{1, 1.0}, {2, 1.1}, {3, 1.2}, {4, 100.0}}
	sparse := []ScoredID{{1, 1.0}, {2, 1.0}, {3, 1.0}, {4, 1.0}}
	out := Fuse(dense, sparse, 4, Config{Policy: DBSF, Alpha: 1.0})
	if len(out) != 4 {
		t.Fatalf("expected 4 results, got %d", len(out))
	}
}

func TestMaxMinHarmonicGeometric(t *testing.T) {
	dense := []ScoredID{{1, 1.0}, {2, 0.0}}
	sparse := []ScoredID{{1, 0.0}, {2, 1.0}}

	for _, p := range []Policy{Max, Min, HarmonicMean, GeometricMean} {
		out := Fuse(dense, sparse, 2, Config{Policy: p})
		if len(out) != 2 {
			t.Fatalf("policy %v: expected 2 results, got %d", p, len(out))
		}
	}
}

func TestExplainFieldsPopulated(t *testing.T) {
	e := Explain(0.8, 0.4, WeightedSum, 0.5)
	if e.Formula == "" {
		t.Fatal("expected a formula string")
	}
	if e.DenseScore != 0.8 || e.SparseScore != 0.4 {
		t.Fatalf("unexpected explanation: %+v", e)
	}
}

func TestMissingFromOneListContributesZero(t *testing.T) {
	dense := []ScoredID{{1, 1.0}}
	sparse := []ScoredID{{2, 1.0}}
	out := Fuse(dense, sparse, 2, Config{Policy: Max})
	if len(out) != 2 {
		t.Fatalf("expected both ids present, got %v", out)
	}
}
