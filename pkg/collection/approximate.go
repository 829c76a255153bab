package collection

import (
	"context"
	"errors"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/quantization"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// errQuantizationNotConfigured is returned by the PQ-code query paths when
// the collection wasn't opened with a ProductQuantizer codec.
var errQuantizationNotConfigured = errors.New("collection: quantization not enabled with a ProductQuantizer codec")

// productQuantizer returns the collection's codec as a *ProductQuantizer, if
// quantization is enabled and configured with one.
func (c *Collection) productQuantizer() (*quantization.ProductQuantizer, bool) {
	if !c.cfg.Quantization.Enabled {
		return nil, false
	}
	pq, ok := c.cfg.Quantization.Codec.(*quantization.ProductQuantizer)
	return pq, ok
}

// ApproximateQuery runs a brute-force nearest-neighbor scan directly over
// every live record's PQ codes instead of the HNSW graph, per spec §5's "PQ
// ... cutting vector storage ... at a precision cost": this is the query
// path that actually pays that cost, trading the graph's sublinear search
// for a linear scan that never decodes a record's raw vector. Returns a
// Validation error if the collection wasn't opened with a ProductQuantizer
// codec, or if no record has been encoded yet (the codec hasn't been
// trained, or no upsert has run since it was).
func (c *Collection) ApproximateQuery(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, verrors.Wrap("collection.ApproximateQuery", verrors.Transient, verrors.ErrCancelled)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, verrors.Wrap("collection.ApproximateQuery", verrors.IO, verrors.ErrStoreClosed)
	}

	pq, ok := c.productQuantizer()
	if !ok {
		return nil, verrors.Wrap("collection.ApproximateQuery", verrors.Validation, errQuantizationNotConfigured)
	}

	var codes [][]byte
	var recs []*record.Record
	c.store.Range(func(rec *record.Record) bool {
		if len(rec.Compressed) == 0 {
			return true
		}
		codes = append(codes, rec.Compressed)
		recs = append(recs, rec)
		return true
	})
	if len(codes) == 0 {
		return nil, verrors.Wrap("collection.ApproximateQuery", verrors.Validation, errors.New("collection: no record has PQ codes yet"))
	}

	indices, distances := pq.SearchPQ(query, codes, k)
	out := make([]Result, 0, len(indices))
	for i, idx := range indices {
		out = append(out, Result{ID: recs[idx].ID, Score: distances[i], Metadata: recs[idx].Metadata})
	}
	return out, nil
}

// ApproximateDistance returns id's PQ-approximated distance to query without
// decoding id's codes back to a full vector, per spec §5's precision-cost
// tradeoff. Exposed mainly so callers can sanity-check ApproximateQuery's
// ranking against a single id of interest.
func (c *Collection) ApproximateDistance(id string, query []float32) (float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, verrors.Wrap("collection.ApproximateDistance", verrors.IO, verrors.ErrStoreClosed)
	}

	pq, ok := c.productQuantizer()
	if !ok {
		return 0, verrors.Wrap("collection.ApproximateDistance", verrors.Validation, errQuantizationNotConfigured)
	}

	rec, ok := c.store.Get(id)
	if !ok || rec.Deleted || len(rec.Compressed) == 0 {
		return 0, verrors.Wrap("collection.ApproximateDistance", verrors.NotFound, verrors.ErrIDNotFound)
	}

	dist, err := pq.ComputeDistance(rec.Compressed, query)
	if err != nil {
		return 0, verrors.Wrap("collection.ApproximateDistance", verrors.Internal, err)
	}
	return dist, nil
}
