// Package record implements the record store (spec §4.2, component C3):
// the mapping from caller-supplied string ids to internal state — vector,
// metadata, soft-delete flag, optional TTL — plus the dense u32 internal id
// assigned monotonically on first insert and reused on re-upsert.
package record

import (
	"encoding/gob"
	"io"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/quantization"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// Metadata is the JSON-like scalar/array value bag attached to a record.
type Metadata map[string]interface{}

// Record is the per-id state the store tracks.
type Record struct {
	ID         string
	InternalID uint32
	Vector     vector.Vector
	Metadata   Metadata
	Deleted    bool
	ExpiresAt  *time.Time

	// Compressed holds Codec.Encode's output for Vector's dense component,
	// populated only when the store has a Codec set (CollectionConfig.
	// Quantization.Enabled) and encoding succeeds. It is a storage-size
	// optimization per spec §5 ("PQ ... cutting vector storage by ~4-32x");
	// graph and sparse search read Vector directly, and only
	// Collection.ApproximateQuery reads Compressed.
	Compressed []byte
}

// Stats summarizes store occupancy, used by Collection.Stats and the planner.
type Stats struct {
	Total           int
	Live            int
	Deleted         int
	Dimension       int
	CompressedBytes int64
}

// Store owns the id -> internal_id bijection and per-record state.
//
// Thread safety matches spec §5: callers take the collection's RWMutex;
// Store itself is not independently locked so that upsert/WAL-append can be
// made atomic by the owning Collection. A private mutex still guards the
// maps for defensive use from tests and internal TTL sweeps invoked without
// the collection lock.
type Store struct {
	mu      sync.RWMutex
	dim     int
	byID    map[string]uint32
	records []*Record // indexed by internal id; slot retained until compaction
	live    *roaring.Bitmap
	deleted *roaring.Bitmap
	nextID  uint32
	codec   quantization.Codec
}

func init() {
	// Metadata values are JSON-like scalars/arrays carried through
	// interface{}; gob needs every concrete type registered up front to
	// encode/decode them inside Save/Load snapshots.
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

// New creates an empty record store for the given vector dimension.
func New(dim int) *Store {
	return &Store{
		dim:     dim,
		byID:    make(map[string]uint32),
		live:    roaring.New(),
		deleted: roaring.New(),
	}
}

// Dimension returns the fixed dimension for dense vectors in this store.
func (s *Store) Dimension() int {
	return s.dim
}

// SetCodec installs the compression codec used to populate Record.Compressed
// on future upserts of dense/hybrid vectors. Passing nil disables
// compression; existing Compressed bytes are left untouched either way.
func (s *Store) SetCodec(codec quantization.Codec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codec = codec
}

// compressLocked encodes v's dense component with the store's codec, if
// any. Encoding failure (most commonly an untrained PQ codec) is not fatal
// to the upsert: Compressed is simply left empty, and the record is then
// skipped by Collection.ApproximateQuery, the only reader of Compressed.
func (s *Store) compressLocked(v vector.Vector) []byte {
	if s.codec == nil || len(v.Values) == 0 {
		return nil
	}
	encoded, err := s.codec.Encode(v.Values)
	if err != nil {
		return nil
	}
	return encoded
}

// Upsert inserts or replaces the record for id. Returns the internal id and
// whether this is a brand new id (vs. a re-upsert of an existing one).
func (s *Store) Upsert(id string, v vector.Vector, md Metadata) (internalID uint32, isNew bool, err error) {
	if err := v.Validate(s.dim); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	compressed := s.compressLocked(v)

	if existing, ok := s.byID[id]; ok {
		rec := s.records[existing]
		rec.Vector = v
		rec.Metadata = md
		rec.Compressed = compressed
		rec.Deleted = false
		rec.ExpiresAt = nil
		s.live.Add(existing)
		s.deleted.Remove(existing)
		return existing, false, nil
	}

	internalID = s.nextID
	s.nextID++
	rec := &Record{ID: id, InternalID: internalID, Vector: v, Metadata: md, Compressed: compressed}
	s.byID[id] = internalID
	s.records = append(s.records, rec)
	s.live.Add(internalID)
	return internalID, true, nil
}

// UpsertWithTTL is Upsert plus an expires_at computed ttlSecs from now.
func (s *Store) UpsertWithTTL(id string, v vector.Vector, md Metadata, ttlSecs int64, now time.Time) (uint32, bool, error) {
	internalID, isNew, err := s.Upsert(id, v, md)
	if err != nil {
		return 0, false, err
	}
	if err := s.SetTTL(id, ttlSecs, now); err != nil {
		return internalID, isNew, err
	}
	return internalID, isNew, nil
}

// Get returns the record for id, or (nil, false) if unknown. Soft-deleted
// records are still returned (Deleted=true) so callers can distinguish
// "never existed" from "tombstoned".
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	internalID, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.records[internalID], true
}

// GetByInternalID returns the record for a dense internal id.
func (s *Store) GetByInternalID(internalID uint32) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(internalID) >= len(s.records) {
		return nil, false
	}
	rec := s.records[internalID]
	return rec, rec != nil
}

// IsLive reports whether internalID currently refers to a live (non-deleted)
// record. Used by the HNSW search hot path, so it must stay allocation-free.
func (s *Store) IsLive(internalID uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Contains(internalID)
}

// SoftDelete marks id as deleted without removing it from the graph.
func (s *Store) SoftDelete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	internalID, ok := s.byID[id]
	if !ok {
		return verrors.ErrIDNotFound
	}
	s.records[internalID].Deleted = true
	s.live.Remove(internalID)
	s.deleted.Add(internalID)
	return nil
}

// Restore clears the soft-delete tombstone for id, making it findable again
// with its original metadata.
func (s *Store) Restore(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	internalID, ok := s.byID[id]
	if !ok {
		return verrors.ErrIDNotFound
	}
	s.records[internalID].Deleted = false
	s.records[internalID].ExpiresAt = nil
	s.live.Add(internalID)
	s.deleted.Remove(internalID)
	return nil
}

// Delete hard-deletes id: it is unreachable by future Get/Upsert-of-same-id
// lookups immediately, but its internal id slot and graph node are only
// physically reclaimed at compaction (spec: "removed by hard delete or
// compaction").
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	internalID, ok := s.byID[id]
	if !ok {
		return verrors.ErrIDNotFound
	}
	delete(s.byID, id)
	s.records[internalID].Deleted = true
	s.live.Remove(internalID)
	s.deleted.Add(internalID)
	return nil
}

// UpdateMetadata replaces the metadata for id without touching its vector.
func (s *Store) UpdateMetadata(id string, md Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	internalID, ok := s.byID[id]
	if !ok {
		return verrors.ErrIDNotFound
	}
	s.records[internalID].Metadata = md
	return nil
}

// SetTTL sets (or clears, with secs<=0) the expiry for id.
func (s *Store) SetTTL(id string, secs int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	internalID, ok := s.byID[id]
	if !ok {
		return verrors.ErrIDNotFound
	}
	if secs <= 0 {
		s.records[internalID].ExpiresAt = nil
		return nil
	}
	t := now.Add(time.Duration(secs) * time.Second)
	s.records[internalID].ExpiresAt = &t
	return nil
}

// SweepExpired soft-deletes every live record whose ExpiresAt has passed and
// returns the count affected. Safe to call concurrently with reads; it only
// mutates the matched subset, per spec §4.11.
func (s *Store) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	it := s.live.Iterator()
	var toDelete []uint32
	for it.HasNext() {
		id := it.Next()
		rec := s.records[id]
		if rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
			toDelete = append(toDelete, id)
		}
	}
	for _, internalID := range toDelete {
		s.records[internalID].Deleted = true
		s.live.Remove(internalID)
		s.deleted.Add(internalID)
		count++
	}
	return count
}

// Len returns the number of live (non-deleted) records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.live.GetCardinality())
}

// Stats reports occupancy counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var compressedBytes int64
	for _, rec := range s.records {
		if rec != nil {
			compressedBytes += int64(len(rec.Compressed))
		}
	}
	return Stats{
		Total:           len(s.records),
		Live:            int(s.live.GetCardinality()),
		Deleted:         int(s.deleted.GetCardinality()),
		Dimension:       s.dim,
		CompressedBytes: compressedBytes,
	}
}

// Range calls fn for every live record in internal-id order. fn returning
// false stops iteration early. Used by compaction and brute-force recall
// checks.
func (s *Store) Range(fn func(*Record) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.live.Iterator()
	for it.HasNext() {
		id := it.Next()
		if !fn(s.records[id]) {
			return
		}
	}
}

// MaxInternalID returns the highest internal id ever assigned, or -1 if the
// store is empty. Used to size parallel arrays in the HNSW graph.
func (s *Store) MaxInternalID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) - 1
}

// gobStore is the on-the-wire shape for Save/Load, following the same
// gob-encoding convention as pkg/index's Graph.Save/Load. Live/deleted
// bitmaps are not serialized directly; Load recomputes them from each
// record's Deleted flag so a snapshot round-trip can't drift the two out
// of sync with each other.
type gobStore struct {
	Dim     int
	ByID    map[string]uint32
	Records []*Record
	NextID  uint32
}

// Save serializes the full record store, including soft-deleted and
// hard-deleted (tombstoned) slots, so a restored snapshot reproduces the
// exact internal-id bijection it was taken from (spec's round-trip
// property covers the record set, not just the live subset).
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gs := gobStore{Dim: s.dim, ByID: s.byID, Records: s.records, NextID: s.nextID}
	return gob.NewEncoder(w).Encode(&gs)
}

// Load replaces the store's contents with a previously Saved snapshot.
func (s *Store) Load(r io.Reader) error {
	var gs gobStore
	if err := gob.NewDecoder(r).Decode(&gs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dim = gs.Dim
	s.byID = gs.ByID
	s.records = gs.Records
	s.nextID = gs.NextID
	s.live = roaring.New()
	s.deleted = roaring.New()
	for _, rec := range s.records {
		if rec == nil {
			continue
		}
		if rec.Deleted {
			s.deleted.Add(rec.InternalID)
		} else {
			s.live.Add(rec.InternalID)
		}
	}
	return nil
}
