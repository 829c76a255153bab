package collection

import (
	"fmt"
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/index"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// Compact rebuilds the record store, HNSW graph, and inverted text index
// from the live record set only, reassigning dense internal ids starting
// at 0 so tombstoned slots are physically reclaimed, per spec §4.11
// ("hard delete or compaction" is the only way a slot is ever freed). The
// rebuilt state is swapped in atomically under the write lock, then a
// fresh snapshot is written and the WAL truncated, since compaction
// invalidates every internal id the old WAL's Restore/SoftDelete/IndexText
// records referenced.
func (c *Collection) Compact() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.Compact", verrors.IO, verrors.ErrStoreClosed)
	}

	newStore := record.New(c.cfg.Dimension)
	if c.cfg.Quantization.Enabled && c.cfg.Quantization.Codec != nil {
		newStore.SetCodec(c.cfg.Quantization.Codec)
	}
	newGraph := index.New(index.Config{M: c.cfg.HNSW.M, EfConstruction: c.cfg.HNSW.EfConstruction, Metric: c.cfg.Metric})
	newSparse := index.NewSparse(c.cfg.Metric)
	newText := newTextIndex(c.cfg)
	newTextFields := make(map[uint32]map[string]string)

	var walkErr error
	c.store.Range(func(rec *record.Record) bool {
		internalID, _, err := newStore.Upsert(rec.ID, rec.Vector, rec.Metadata)
		if err != nil {
			walkErr = err
			return false
		}
		if rec.ExpiresAt != nil {
			secs := int64(time.Until(*rec.ExpiresAt).Seconds())
			if secs < 1 {
				secs = 1
			}
			_ = newStore.SetTTL(rec.ID, secs, time.Now())
		}
		if rec.Vector.Kind != vector.Sparse {
			if err := newGraph.Insert(internalID, rec.Vector.Values); err != nil {
				walkErr = err
				return false
			}
		}
		if rec.Vector.Kind == vector.Sparse || rec.Vector.Kind == vector.Hybrid {
			newSparse.Insert(internalID, rec.Vector)
		}
		if fields, ok := c.textFields[rec.InternalID]; ok {
			newText.AddDocument(internalID, fields)
			newTextFields[internalID] = fields
		}
		return true
	})
	if walkErr != nil {
		return verrors.Wrap("collection.Compact", verrors.Internal, walkErr)
	}

	c.store = newStore
	c.graph = newGraph
	c.sparse = newSparse
	c.text = newText
	c.textFields = newTextFields
	c.rebuildSelectivityLocked()

	name := fmt.Sprintf("compact-%d", time.Now().UnixNano())
	if err := c.createSnapshotLocked(name); err != nil {
		return verrors.Wrap("collection.Compact", verrors.IO, err)
	}
	if err := c.w.Truncate(); err != nil {
		return verrors.Wrap("collection.Compact", verrors.IO, err)
	}
	return nil
}
