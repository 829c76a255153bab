package collection

import (
	"context"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/filter"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/fusion"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/planner"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// Result is one scored hit from Query or HybridQuery.
type Result struct {
	ID          string
	Score       float32
	Metadata    record.Metadata
	Explanation *fusion.Explanation // populated only by HybridQuery
}

// QueryParams are the inputs to a single dense/sparse vector search.
type QueryParams struct {
	Vector vector.Vector
	K      int
	Ef     int // ef_search; 0 uses the collection's configured default
	Filter *filter.Expr
}

// HybridQueryParams are the inputs to a fused dense+lexical search, per
// spec §4.6. The lexical side is either Text (BM25F over the inverted
// index) or SparseVector (a pre-embedded sparse vector scored by dot
// product/cosine against the sparse index) — mutually exclusive, per spec
// §4.6's `keywords|sparse_vector` shape. Text takes precedence if both are
// set.
type HybridQueryParams struct {
	Vector       vector.Vector
	Text         string
	SparseVector vector.Vector
	K            int
	Ef           int
	Filter       *filter.Expr
	FusionCfg    fusion.Config
	Explain      bool
}

// Query runs k-NN search against the HNSW graph (or against the sparse
// index when p.Vector is a Sparse vector), applying Filter (if any) with
// the strategy selected by estimated selectivity against
// FilterSelectivityThreshold, per spec §4.3.
func (c *Collection) Query(ctx context.Context, p QueryParams) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, verrors.Wrap("collection.Query", verrors.Transient, verrors.ErrCancelled)
	}
	if err := p.Vector.Validate(c.cfg.Dimension); err != nil {
		return nil, verrors.Wrap("collection.Query", verrors.Validation, err)
	}
	if err := filter.Validate(p.Filter); err != nil {
		return nil, verrors.Wrap("collection.Query", verrors.Validation, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, verrors.Wrap("collection.Query", verrors.IO, verrors.ErrStoreClosed)
	}

	est := c.estimateLocked(p.Filter, p.K)

	var accept func(uint32) bool
	searchK := p.K
	if p.Filter != nil {
		if est.Selectivity >= c.cfg.FilterSelectivityThreshold {
			accept = c.filterAcceptLocked(p.Filter)
		} else {
			searchK = est.OverfetchK
		}
	}

	if p.Vector.Kind == vector.Sparse {
		sparseResults := c.sparse.Search(p.Vector, searchK, accept)
		out := make([]Result, 0, len(sparseResults))
		for _, r := range sparseResults {
			rec, ok := c.store.GetByInternalID(r.InternalID)
			if !ok || rec.Deleted {
				continue
			}
			if p.Filter != nil && accept == nil {
				if !filter.Eval(p.Filter, rec.Metadata) {
					continue
				}
			}
			out = append(out, Result{ID: rec.ID, Score: r.Score, Metadata: rec.Metadata})
			if len(out) >= p.K {
				break
			}
		}
		return out, nil
	}

	ef := p.Ef
	if ef <= 0 {
		ef = c.cfg.HNSW.EfSearchDefault
	}
	if ef < searchK {
		ef = searchK
	}

	graphResults := c.graph.Search(p.Vector.Values, searchK, ef, accept)

	out := make([]Result, 0, len(graphResults))
	for _, r := range graphResults {
		rec, ok := c.store.GetByInternalID(r.InternalID)
		if !ok || rec.Deleted {
			continue
		}
		if p.Filter != nil && accept == nil {
			if !filter.Eval(p.Filter, rec.Metadata) {
				continue
			}
		}
		out = append(out, Result{ID: rec.ID, Score: r.Score, Metadata: rec.Metadata})
		if len(out) >= p.K {
			break
		}
	}
	return out, nil
}

// HybridQuery fuses a dense vector search against the HNSW graph with a
// BM25F text search against the inverted index, per spec §4.6.
func (c *Collection) HybridQuery(ctx context.Context, p HybridQueryParams) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, verrors.Wrap("collection.HybridQuery", verrors.Transient, verrors.ErrCancelled)
	}
	if err := p.Vector.Validate(c.cfg.Dimension); err != nil {
		return nil, verrors.Wrap("collection.HybridQuery", verrors.Validation, err)
	}
	if p.Text == "" && p.SparseVector.Kind == vector.Sparse {
		if err := p.SparseVector.Validate(c.cfg.Dimension); err != nil {
			return nil, verrors.Wrap("collection.HybridQuery", verrors.Validation, err)
		}
	}
	if err := filter.Validate(p.Filter); err != nil {
		return nil, verrors.Wrap("collection.HybridQuery", verrors.Validation, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, verrors.Wrap("collection.HybridQuery", verrors.IO, verrors.ErrStoreClosed)
	}

	ef := p.Ef
	if ef <= 0 {
		ef = c.cfg.HNSW.EfSearchDefault
	}

	fuseK := p.K * 4
	if fuseK < p.K {
		fuseK = p.K
	}

	var accept func(uint32) bool
	if p.Filter != nil {
		accept = c.filterAcceptLocked(p.Filter)
	}

	graphResults := c.graph.Search(p.Vector.Values, fuseK, maxInt(ef, fuseK), accept)
	dense := make([]fusion.ScoredID, 0, len(graphResults))
	denseScore := make(map[uint32]float64, len(graphResults))
	for _, r := range graphResults {
		if rec, ok := c.store.GetByInternalID(r.InternalID); !ok || rec.Deleted {
			continue
		}
		score := float64(r.Score)
		if !c.cfg.Metric.HigherIsBetter() {
			score = -score // Fuse ranks higher first; L2/Cosine scores are distances
		}
		dense = append(dense, fusion.ScoredID{ID: r.InternalID, Score: score})
		denseScore[r.InternalID] = float64(r.Score)
	}

	var sparse []fusion.ScoredID
	sparseScore := make(map[uint32]float64)
	switch {
	case p.Text != "":
		textHits := c.text.Search(p.Text, fuseK, accept)
		sparse = make([]fusion.ScoredID, 0, len(textHits))
		for _, h := range textHits {
			if rec, ok := c.store.GetByInternalID(h.DocID); !ok || rec.Deleted {
				continue
			}
			sparse = append(sparse, fusion.ScoredID{ID: h.DocID, Score: h.Score})
			sparseScore[h.DocID] = h.Score
		}
	case p.SparseVector.Kind == vector.Sparse:
		vecHits := c.sparse.Search(p.SparseVector, fuseK, accept)
		sparse = make([]fusion.ScoredID, 0, len(vecHits))
		for _, h := range vecHits {
			if rec, ok := c.store.GetByInternalID(h.InternalID); !ok || rec.Deleted {
				continue
			}
			sparse = append(sparse, fusion.ScoredID{ID: h.InternalID, Score: float64(h.Score)})
			sparseScore[h.InternalID] = float64(h.Score)
		}
	}

	cfg := p.FusionCfg
	if cfg == (fusion.Config{}) {
		cfg = fusion.DefaultConfig()
	}
	fused := fusion.Fuse(dense, sparse, p.K, cfg)

	out := make([]Result, 0, len(fused))
	for _, f := range fused {
		rec, ok := c.store.GetByInternalID(f.ID)
		if !ok || rec.Deleted {
			continue
		}
		res := Result{ID: rec.ID, Score: float32(f.Score), Metadata: rec.Metadata}
		if p.Explain {
			expl := fusion.Explain(denseScore[f.ID], sparseScore[f.ID], cfg.Policy, cfg.Alpha)
			res.Explanation = &expl
		}
		out = append(out, res)
	}
	return out, nil
}

// EstimateQuery exposes the planner's cost/overfetch estimate for the given
// query shape without running it, per spec §4.10.
func (c *Collection) EstimateQuery(p QueryParams) planner.Estimate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.estimateLocked(p.Filter, p.K)
}

func (c *Collection) estimateLocked(f *filter.Expr, k int) planner.Estimate {
	selectivity := 1.0
	hasFilter := f != nil
	if hasFilter {
		selectivity = c.estimateSelectivityLocked(f)
	}
	return planner.EstimateQuery(planner.Params{
		Dimension:    c.cfg.Dimension,
		K:            k,
		HasFilter:    hasFilter,
		Selectivity:  selectivity,
		MaxOverfetch: c.cfg.MaxOverfetch,
		LiveCount:    c.store.Len(),
	})
}

// estimateSelectivityLocked averages the selectivity estimator's per-(field,
// value) estimate across the filter's Eq comparisons, falling back to an
// uninformative 0.5 for comparisons the estimator has no per-value
// breakdown for (range/membership operators). A proper joint-distribution
// estimate over And/Or/Not compositions isn't tracked; the average is a
// coarse stand-in, acceptable per spec §4.3's "a coarse estimate suffices".
func (c *Collection) estimateSelectivityLocked(f *filter.Expr) float64 {
	var estimates []float64
	var walk func(*filter.Expr)
	walk = func(e *filter.Expr) {
		if e == nil {
			return
		}
		switch e.Kind {
		case filter.KindAnd:
			for _, child := range e.And {
				walk(child)
			}
		case filter.KindOr:
			for _, child := range e.Or {
				walk(child)
			}
		case filter.KindNot:
			walk(e.Not)
		case filter.KindCmp:
			if e.Op == filter.Eq {
				estimates = append(estimates, c.selectivity.Estimate(e.Field, e.Value))
			} else {
				estimates = append(estimates, 0.5)
			}
		}
	}
	walk(f)
	if len(estimates) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, v := range estimates {
		sum += v
	}
	return sum / float64(len(estimates))
}

func (c *Collection) filterAcceptLocked(f *filter.Expr) func(uint32) bool {
	return func(internalID uint32) bool {
		rec, ok := c.store.GetByInternalID(internalID)
		if !ok || rec.Deleted {
			return false
		}
		return filter.Eval(f, rec.Metadata)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
