package collection

import (
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/wal"
)

// Upsert inserts or replaces id's vector and metadata. The mutation is
// appended to the WAL and fsynced (per the configured policy) before the
// in-memory record store and HNSW graph are updated, per spec §4.2.
func (c *Collection) Upsert(id string, v vector.Vector, md record.Metadata) error {
	return c.upsertTTL(id, v, md, 0)
}

// UpsertWithTTL is Upsert plus an expiry ttlSecs seconds from now.
func (c *Collection) UpsertWithTTL(id string, v vector.Vector, md record.Metadata, ttlSecs int64) error {
	return c.upsertTTL(id, v, md, ttlSecs)
}

func (c *Collection) upsertTTL(id string, v vector.Vector, md record.Metadata, ttlSecs int64) error {
	if err := v.Validate(c.cfg.Dimension); err != nil {
		return verrors.Wrap("collection.Upsert", verrors.Validation, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.Upsert", verrors.IO, verrors.ErrStoreClosed)
	}

	if c.cfg.StrictMode {
		if existing, ok := c.store.Get(id); ok && !existing.Deleted {
			return verrors.Wrap("collection.Upsert", verrors.Validation, verrors.ErrDuplicateID)
		}
	}

	payload, err := wal.EncodeGob(upsertPayload{ID: id, Vector: v, Metadata: md, TTLSecs: ttlSecs})
	if err != nil {
		return verrors.Wrap("collection.Upsert", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.Upsert, payload); err != nil {
		return verrors.Wrap("collection.Upsert", verrors.IO, err)
	}

	if existing, ok := c.store.Get(id); ok {
		c.selectivity.Forget(existing.Metadata)
	}
	if err := c.applyUpsertLocked(upsertPayload{ID: id, Vector: v, Metadata: md, TTLSecs: ttlSecs}); err != nil {
		return verrors.Wrap("collection.Upsert", verrors.Internal, err)
	}
	c.selectivity.Observe(md)
	return nil
}

// Delete hard-deletes id: subsequent Upsert of the same id allocates a new
// internal id. Per spec, physical reclamation of the old slot waits for
// compaction.
func (c *Collection) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.Delete", verrors.IO, verrors.ErrStoreClosed)
	}

	payload, err := wal.EncodeGob(idPayload{ID: id})
	if err != nil {
		return verrors.Wrap("collection.Delete", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.Delete, payload); err != nil {
		return verrors.Wrap("collection.Delete", verrors.IO, err)
	}

	if rec, ok := c.store.Get(id); ok {
		c.selectivity.Forget(rec.Metadata)
		_ = c.graph.Delete(rec.InternalID)
		_ = c.sparse.Delete(rec.InternalID)
	}
	if err := c.store.Delete(id); err != nil {
		return verrors.Wrap("collection.Delete", verrors.NotFound, err)
	}
	return nil
}

// SoftDelete tombstones id without removing it from the HNSW graph.
func (c *Collection) SoftDelete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.SoftDelete", verrors.IO, verrors.ErrStoreClosed)
	}

	rec, ok := c.store.Get(id)
	if !ok {
		return verrors.Wrap("collection.SoftDelete", verrors.NotFound, verrors.ErrIDNotFound)
	}

	payload, err := wal.EncodeGob(idPayload{ID: id})
	if err != nil {
		return verrors.Wrap("collection.SoftDelete", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.SoftDelete, payload); err != nil {
		return verrors.Wrap("collection.SoftDelete", verrors.IO, err)
	}

	if err := c.store.SoftDelete(id); err != nil {
		return verrors.Wrap("collection.SoftDelete", verrors.NotFound, err)
	}
	_ = c.graph.Delete(rec.InternalID)
	_ = c.sparse.Delete(rec.InternalID)
	c.selectivity.Forget(rec.Metadata)
	return nil
}

// Restore clears id's soft-delete tombstone, making it findable again with
// its original metadata.
func (c *Collection) Restore(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.Restore", verrors.IO, verrors.ErrStoreClosed)
	}

	payload, err := wal.EncodeGob(idPayload{ID: id})
	if err != nil {
		return verrors.Wrap("collection.Restore", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.Restore, payload); err != nil {
		return verrors.Wrap("collection.Restore", verrors.IO, err)
	}

	if err := c.store.Restore(id); err != nil {
		return verrors.Wrap("collection.Restore", verrors.NotFound, err)
	}
	rec, _ := c.store.Get(id)
	_ = c.graph.Restore(rec.InternalID)
	_ = c.sparse.Restore(rec.InternalID)
	c.selectivity.Observe(rec.Metadata)
	return nil
}

// UpdateMetadata replaces id's metadata without touching its vector.
func (c *Collection) UpdateMetadata(id string, md record.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.UpdateMetadata", verrors.IO, verrors.ErrStoreClosed)
	}

	existing, ok := c.store.Get(id)
	if !ok {
		return verrors.Wrap("collection.UpdateMetadata", verrors.NotFound, verrors.ErrIDNotFound)
	}

	payload, err := wal.EncodeGob(updateMetadataPayload{ID: id, Metadata: md})
	if err != nil {
		return verrors.Wrap("collection.UpdateMetadata", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.UpdateMetadata, payload); err != nil {
		return verrors.Wrap("collection.UpdateMetadata", verrors.IO, err)
	}

	if err := c.store.UpdateMetadata(id, md); err != nil {
		return verrors.Wrap("collection.UpdateMetadata", verrors.NotFound, err)
	}
	c.selectivity.Forget(existing.Metadata)
	c.selectivity.Observe(md)
	return nil
}

// SetTTL sets (secs>0) or clears (secs<=0) id's expiry.
func (c *Collection) SetTTL(id string, secs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.SetTTL", verrors.IO, verrors.ErrStoreClosed)
	}

	payload, err := wal.EncodeGob(setTTLPayload{ID: id, Secs: secs})
	if err != nil {
		return verrors.Wrap("collection.SetTTL", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.SetTTL, payload); err != nil {
		return verrors.Wrap("collection.SetTTL", verrors.IO, err)
	}

	if err := c.store.SetTTL(id, secs, time.Now()); err != nil {
		return verrors.Wrap("collection.SetTTL", verrors.NotFound, err)
	}
	return nil
}

// IndexText tokenizes and indexes fields for id's text (hybrid search
// side), per spec §4.4. id must already exist (typically via a prior
// Upsert); IndexText never creates a record on its own.
func (c *Collection) IndexText(id string, fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.IndexText", verrors.IO, verrors.ErrStoreClosed)
	}

	rec, ok := c.store.Get(id)
	if !ok {
		return verrors.Wrap("collection.IndexText", verrors.NotFound, verrors.ErrIDNotFound)
	}

	payload, err := wal.EncodeGob(indexTextPayload{ID: id, Fields: fields})
	if err != nil {
		return verrors.Wrap("collection.IndexText", verrors.IO, err)
	}
	if _, err := c.w.Append(wal.IndexText, payload); err != nil {
		return verrors.Wrap("collection.IndexText", verrors.IO, err)
	}

	c.text.AddDocument(rec.InternalID, fields)
	c.textFields[rec.InternalID] = fields
	return nil
}

// SweepExpired soft-deletes every record whose TTL has passed as of now,
// returning the count affected, per spec §4.11.
func (c *Collection) SweepExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	var expired []uint32
	c.store.Range(func(rec *record.Record) bool {
		if rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
			expired = append(expired, rec.InternalID)
		}
		return true
	})
	for _, internalID := range expired {
		rec, ok := c.store.GetByInternalID(internalID)
		if !ok || rec.Deleted {
			continue
		}
		payload, err := wal.EncodeGob(idPayload{ID: rec.ID})
		if err != nil {
			continue
		}
		if _, err := c.w.Append(wal.SoftDelete, payload); err != nil {
			continue
		}
		if err := c.store.SoftDelete(rec.ID); err != nil {
			continue
		}
		_ = c.graph.Delete(internalID)
		_ = c.sparse.Delete(internalID)
		c.selectivity.Forget(rec.Metadata)
		count++
	}
	return count
}
