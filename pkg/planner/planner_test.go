package planner

import "testing"

func TestEstimateQueryValidation(t *testing.T) {
	p := Params{Dimension: 3, QueryDimension: 4, K: 5, MaxResultsPerQuery: 10}
	est := EstimateQuery(p)
	if est.Valid {
		t.Fatal("expected invalid estimate for dimension mismatch")
	}
	if len(est.Errors) == 0 {
		t.Fatal("expected an error message")
	}
}

func TestEstimateQueryKLimit(t *testing.T) {
	p := Params{Dimension: 3, QueryDimension: 3, K: 50, MaxResultsPerQuery: 10}
	est := EstimateQuery(p)
	if est.Valid {
		t.Fatal("expected invalid estimate for k over limit")
	}
}

func TestEstimateQueryOverfetch(t *testing.T) {
	p := Params{
		Dimension: 4, QueryDimension: 4, K: 5, MaxResultsPerQuery: 100,
		HasFilter: true, Selectivity: 0.1, LiveCount: 100,
	}
	est := EstimateQuery(p)
	if !est.Valid {
		t.Fatalf("expected valid estimate, got errors %v", est.Errors)
	}
	if !est.WillOverfetch {
		t.Fatal("expected will_overfetch = true")
	}
	if est.OverfetchK < 20 {
		t.Fatalf("expected k' >= 20 (k/selectivity), got %d", est.OverfetchK)
	}
}

func TestEstimateQueryNoFilterNoOverfetch(t *testing.T) {
	p := Params{Dimension: 4, QueryDimension: 4, K: 10, MaxResultsPerQuery: 100, LiveCount: 1_000_000}
	est := EstimateQuery(p)
	if est.WillOverfetch {
		t.Fatal("expected no overfetch without a filter")
	}
	if est.Cost < 0.05 || est.Cost > 0.5 {
		t.Fatalf("expected cost roughly around 0.1 for cold 1M/k=10 query, got %v", est.Cost)
	}
}

func TestSelectivityEstimatorObserveForget(t *testing.T) {
	e := NewSelectivityEstimator()
	for i := 0; i < 10; i++ {
		category := "other"
		if i < 1 {
			category = "tech"
		}
		e.Observe(map[string]interface{}{"category": category})
	}
	got := e.Estimate("category", "tech")
	if got <= 0 || got > 0.2 {
		t.Fatalf("expected a selective estimate near 0.1, got %v", got)
	}

	e.Forget(map[string]interface{}{"category": "tech"})
	got = e.Estimate("category", "tech")
	if got >= 0.2 {
		t.Fatalf("expected estimate to stay below 0.2 after Forget, got %v", got)
	}
}

func TestSelectivityEstimatorUnknownFieldAssumesUnselective(t *testing.T) {
	e := NewSelectivityEstimator()
	e.Observe(map[string]interface{}{"category": "tech"})
	if got := e.Estimate("unknown_field", "x"); got != 1 {
		t.Fatalf("expected 1 for unobserved field, got %v", got)
	}
}
