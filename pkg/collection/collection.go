package collection

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/index"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/planner"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/quantization"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/text"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/wal"
)

// Collection is one logical database: a record store, HNSW graph,
// inverted text index, and WAL bound together behind one RWMutex, per
// spec §5 ("One RwLock per collection"). Reads (Query/Stats) hold the
// read guard; mutations hold the write guard.
type Collection struct {
	mu sync.RWMutex

	dir string
	cfg Config

	store  *record.Store
	graph  *index.Graph
	sparse *index.SparseIndex
	text   *text.Index

	// textFields retains the raw (field -> text) input to IndexText, keyed
	// by internal id, since pkg/text's postings alone can't be used to
	// rebuild an equivalent index after a snapshot restore or compaction
	// without re-tokenizing the original strings.
	textFields map[uint32]map[string]string

	selectivity *planner.SelectivityEstimator

	w *wal.WAL

	closed bool
}

// Open creates (if necessary) the on-disk layout under dir — manifest,
// wal.log, snapshots/ — loads the newest snapshot if one exists, then
// replays the WAL beyond it, per spec §4.7.
func Open(dir string, cfg Config) (*Collection, error) {
	cfg.applyDefaults()
	if cfg.Dimension <= 0 {
		return nil, verrors.Wrap("collection.Open", verrors.Validation, fmt.Errorf("dimension must be positive"))
	}

	if err := os.MkdirAll(filepath.Join(dir, "snapshots"), 0o755); err != nil {
		return nil, verrors.Wrap("collection.Open", verrors.IO, err)
	}

	c := &Collection{
		dir:         dir,
		cfg:         cfg,
		store:       record.New(cfg.Dimension),
		graph:       index.New(index.Config{M: cfg.HNSW.M, EfConstruction: cfg.HNSW.EfConstruction, Metric: cfg.Metric}),
		sparse:      index.NewSparse(cfg.Metric),
		text:        newTextIndex(cfg),
		textFields:  make(map[uint32]map[string]string),
		selectivity: planner.NewSelectivityEstimator(),
	}
	if cfg.Quantization.Enabled && cfg.Quantization.Codec != nil {
		if pq, ok := cfg.Quantization.Codec.(*quantization.ProductQuantizer); ok {
			pq.SetMetric(cfg.Metric)
		}
		c.store.SetCodec(cfg.Quantization.Codec)
	}

	if name, ok := c.latestSnapshotNameLocked(); ok {
		if err := c.loadSnapshotLocked(name); err != nil {
			return nil, verrors.Wrap("collection.Open", verrors.Corruption, err)
		}
		cfg.Logger.Debug("loaded snapshot", "name", name)
	}

	walPath := filepath.Join(dir, "wal.log")
	nextLSN, err := wal.Replay(walPath, func(r wal.Record) error {
		return c.applyWALRecordLocked(r)
	})
	if err != nil {
		return nil, verrors.Wrap("collection.Open", verrors.Corruption, err)
	}

	w, err := wal.Open(walPath, cfg.WAL.FsyncPolicy)
	if err != nil {
		return nil, verrors.Wrap("collection.Open", verrors.IO, err)
	}
	w.SetNextLSN(nextLSN)
	c.w = w

	c.rebuildSelectivityLocked()

	return c, nil
}

// Close flushes and closes the WAL. It does not write a snapshot; callers
// that want a durable checkpoint on shutdown should call CreateSnapshot
// first.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.w.Close()
}

func (c *Collection) rebuildSelectivityLocked() {
	c.selectivity = planner.NewSelectivityEstimator()
	c.store.Range(func(rec *record.Record) bool {
		c.selectivity.Observe(rec.Metadata)
		return true
	})
}

// WAL payload shapes, gob-encoded. Kept as small flat structs so Replay
// can decode them without depending on collection internals.

type upsertPayload struct {
	ID       string
	Vector   vector.Vector
	Metadata record.Metadata
	TTLSecs  int64 // 0 means no TTL
}

type idPayload struct {
	ID string
}

type updateMetadataPayload struct {
	ID       string
	Metadata record.Metadata
}

type setTTLPayload struct {
	ID   string
	Secs int64
}

type indexTextPayload struct {
	ID     string
	Fields map[string]string
}

func init() {
	gob.Register(upsertPayload{})
	gob.Register(idPayload{})
	gob.Register(updateMetadataPayload{})
	gob.Register(setTTLPayload{})
	gob.Register(indexTextPayload{})
}

// applyWALRecordLocked replays a single WAL record into the in-memory
// structures during Open; it bypasses appending a new WAL record (the
// record already exists on disk) but otherwise mutates exactly as the
// live operations below do.
func (c *Collection) applyWALRecordLocked(r wal.Record) error {
	switch r.Kind {
	case wal.Upsert:
		var p upsertPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		return c.applyUpsertLocked(p)
	case wal.Delete:
		var p idPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		if rec, ok := c.store.Get(p.ID); ok {
			_ = c.graph.Delete(rec.InternalID)
			_ = c.sparse.Delete(rec.InternalID)
		}
		return c.store.Delete(p.ID)
	case wal.SoftDelete:
		var p idPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		internalID, ok := c.internalIDOf(p.ID)
		if err := c.store.SoftDelete(p.ID); err != nil {
			return err
		}
		if ok {
			_ = c.graph.Delete(internalID)
			_ = c.sparse.Delete(internalID)
		}
		return nil
	case wal.Restore:
		var p idPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		internalID, ok := c.internalIDOf(p.ID)
		if err := c.store.Restore(p.ID); err != nil {
			return err
		}
		if ok {
			_ = c.graph.Restore(internalID)
			_ = c.sparse.Restore(internalID)
		}
		return nil
	case wal.UpdateMetadata:
		var p updateMetadataPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		return c.store.UpdateMetadata(p.ID, p.Metadata)
	case wal.SetTTL:
		var p setTTLPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		return c.store.SetTTL(p.ID, p.Secs, time.Now())
	case wal.IndexText:
		var p indexTextPayload
		if err := wal.DecodeGob(r.Payload, &p); err != nil {
			return err
		}
		internalID, ok := c.internalIDOf(p.ID)
		if !ok {
			return verrors.ErrIDNotFound
		}
		c.text.AddDocument(internalID, p.Fields)
		c.textFields[internalID] = p.Fields
		return nil
	default:
		return fmt.Errorf("collection: unknown wal record kind %d", r.Kind)
	}
}

func (c *Collection) applyUpsertLocked(p upsertPayload) error {
	internalID, _, err := c.store.Upsert(p.ID, p.Vector, p.Metadata)
	if err != nil {
		return err
	}
	if p.Vector.Kind != vector.Sparse {
		if err := c.graph.Insert(internalID, p.Vector.Values); err != nil {
			return err
		}
	}
	if p.Vector.Kind == vector.Sparse || p.Vector.Kind == vector.Hybrid {
		c.sparse.Insert(internalID, p.Vector)
	}
	if p.TTLSecs > 0 {
		if err := c.store.SetTTL(p.ID, p.TTLSecs, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) internalIDOf(id string) (uint32, bool) {
	rec, ok := c.store.Get(id)
	if !ok {
		return 0, false
	}
	return rec.InternalID, true
}

// Dimension returns the collection's fixed vector dimension.
func (c *Collection) Dimension() int { return c.cfg.Dimension }

// Stats reports record-store and graph diagnostics, per spec §4.8's
// `stats` operation.
type Stats struct {
	Records record.Stats
	Graph   map[string]interface{}
}

// Stats returns a snapshot of the collection's current record and graph
// diagnostics, per spec §4.8.
func (c *Collection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Records: c.store.Stats(),
		Graph:   c.graph.Stats(),
	}
}

// Get returns the live record stored under id, if any. Soft-deleted
// records are not returned.
func (c *Collection) Get(id string) (*record.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.store.Get(id)
	if !ok || rec.Deleted {
		return nil, false
	}
	return rec, true
}

func newTextIndex(cfg Config) *text.Index {
	return text.New(text.Config{
		Tokenizer:    cfg.Tokenizer,
		K1:           cfg.BM25.K1,
		B:            cfg.BM25.B,
		FieldWeights: cfg.BM25.FieldWeights,
		PhraseBoost:  cfg.BM25.PhraseBoost,
	})
}
