package collection

import (
	"context"
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// OpKind tags which mutation a batch Op performs, per spec §4.9's closed
// batch-operation grammar.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpDelete
	OpSoftDelete
	OpRestore
	OpUpdateMetadata
	OpSetTTL
)

// Op is one operation within a BatchExecute call. Exactly the fields
// relevant to Kind are read.
type Op struct {
	Kind     OpKind
	ID       string
	Vector   vector.Vector
	Metadata record.Metadata
	TTLSecs  int64
}

// BatchResponse reports the outcome of a BatchExecute call, per spec §4.9:
// partial failure is allowed — one bad op does not abort the rest.
type BatchResponse struct {
	Succeeded int
	Failed    int
	Errors    []error
	Duration  time.Duration
}

// BatchExecute applies ops in order, continuing past individual failures
// and recording each one in Errors at its original index (nil for ops that
// succeeded).
func (c *Collection) BatchExecute(ctx context.Context, ops []Op) BatchResponse {
	start := time.Now()
	resp := BatchResponse{Errors: make([]error, len(ops))}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(ops); j++ {
				resp.Errors[j] = verrors.Wrap("collection.BatchExecute", verrors.Transient, verrors.ErrCancelled)
				resp.Failed++
			}
			break
		}

		var err error
		switch op.Kind {
		case OpUpsert:
			if op.TTLSecs > 0 {
				err = c.UpsertWithTTL(op.ID, op.Vector, op.Metadata, op.TTLSecs)
			} else {
				err = c.Upsert(op.ID, op.Vector, op.Metadata)
			}
		case OpDelete:
			err = c.Delete(op.ID)
		case OpSoftDelete:
			err = c.SoftDelete(op.ID)
		case OpRestore:
			err = c.Restore(op.ID)
		case OpUpdateMetadata:
			err = c.UpdateMetadata(op.ID, op.Metadata)
		case OpSetTTL:
			err = c.SetTTL(op.ID, op.TTLSecs)
		default:
			err = verrors.Wrap("collection.BatchExecute", verrors.Validation, verrors.ErrInvalidConfig)
		}

		if err != nil {
			resp.Errors[i] = err
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	resp.Duration = time.Since(start)
	return resp
}

// MaybeCompact runs Compact if the configured auto-compaction thresholds
// are met, per spec §4.11. It is a no-op (returning false, nil) when
// compaction is disabled or thresholds aren't met.
func (c *Collection) MaybeCompact() (bool, error) {
	c.mu.RLock()
	stats := c.store.Stats()
	enabled := c.cfg.Compaction.Enabled
	minRecords := c.cfg.Compaction.MinDeletedRecords
	minRatio := c.cfg.Compaction.MinDeletedRatio
	c.mu.RUnlock()

	if !enabled || stats.Total == 0 {
		return false, nil
	}

	ratio := float64(stats.Deleted) / float64(stats.Total)
	if stats.Deleted < minRecords && ratio < minRatio {
		return false, nil
	}

	if err := c.Compact(); err != nil {
		return false, err
	}
	return true, nil
}
