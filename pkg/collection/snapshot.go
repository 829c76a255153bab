package collection

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/index"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/wal"
)

const snapshotExt = ".snap"

func (c *Collection) snapshotDir() string {
	return filepath.Join(c.dir, "snapshots")
}

func (c *Collection) snapshotPath(name string) string {
	return filepath.Join(c.snapshotDir(), name+snapshotExt)
}

// ListSnapshots returns the names (without extension) of every snapshot
// under dir/snapshots, in lexicographic name order.
func (c *Collection) ListSnapshots() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listSnapshotsLocked()
}

func (c *Collection) listSnapshotsLocked() ([]string, error) {
	entries, err := os.ReadDir(c.snapshotDir())
	if err != nil {
		return nil, verrors.Wrap("collection.ListSnapshots", verrors.IO, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), snapshotExt))
	}
	sort.Strings(names)
	return names, nil
}

// latestSnapshotNameLocked returns the lexicographically greatest snapshot
// name, if any. Snapshot names are expected to sort by recency (e.g. a
// timestamp or zero-padded sequence number), matching CreateSnapshot's
// caller-supplied naming from spec §4.8.
func (c *Collection) latestSnapshotNameLocked() (string, bool) {
	names, err := c.listSnapshotsLocked()
	if err != nil || len(names) == 0 {
		return "", false
	}
	return names[len(names)-1], true
}

// textFieldsSection is the gob shape for the inverted-index snapshot
// section: rather than serialize pkg/text's internal postings, the raw
// (field -> text) inputs are retained and AddDocument is replayed on load,
// which keeps restore and compaction on the same rebuild path.
type textFieldsSection struct {
	Fields map[uint32]map[string]string
}

// metadataSection carries state that doesn't belong in the record/graph/
// text sections. The sparse-vector index and, when quantization is enabled
// with a ProductQuantizer, its trained codebooks are folded in here rather
// than given their own top-level sections, since spec §4.7's section layout
// is fixed at four. Sparse is gob-encoded bytes from SparseIndex.Save;
// Codebooks is ProductQuantizer.SerializeCodebooks's own wire format, kept
// opaque to gob so a restore doesn't need to retrain the quantizer.
type metadataSection struct {
	Sparse    []byte
	Codebooks []byte
}

// CreateSnapshot writes a full consistent-cut snapshot named name under
// dir/snapshots, then truncates the WAL (the snapshot now covers everything
// the truncated records described), per spec §4.8. Snapshotting holds the
// write lock for its duration: a snapshot blocks writers until it reaches
// its consistent cut rather than using copy-on-write.
func (c *Collection) CreateSnapshot(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, verrors.ErrStoreClosed)
	}
	return c.createSnapshotLocked(name)
}

// createSnapshotLocked is CreateSnapshot's body, split out so Compact can
// write a post-compaction snapshot without re-entering c.mu. Caller holds
// the write lock and has already checked c.closed.
func (c *Collection) createSnapshotLocked(name string) error {
	if name == "" {
		return verrors.Wrap("collection.CreateSnapshot", verrors.Validation, fmt.Errorf("snapshot name must not be empty"))
	}
	if _, err := os.Stat(c.snapshotPath(name)); err == nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.Conflict, verrors.ErrSnapshotExists)
	}

	var recordsBuf, graphBuf, textBuf, metaBuf bytes.Buffer
	if err := c.store.Save(&recordsBuf); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}
	if err := c.graph.Save(&graphBuf); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}
	if err := gob.NewEncoder(&textBuf).Encode(&textFieldsSection{Fields: c.textFields}); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}
	var sparseBuf bytes.Buffer
	if err := c.sparse.Save(&sparseBuf); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}
	var codebooks []byte
	if pq, ok := c.productQuantizer(); ok {
		codebooks = pq.SerializeCodebooks()
	}
	if err := gob.NewEncoder(&metaBuf).Encode(&metadataSection{Sparse: sparseBuf.Bytes(), Codebooks: codebooks}); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}

	header := wal.Header{
		Dimension:      uint32(c.cfg.Dimension),
		Metric:         uint8(c.cfg.Metric),
		Tokenizer:      uint8(c.cfg.Tokenizer),
		M:              uint32(c.cfg.HNSW.M),
		MaxM0:          uint32(c.cfg.HNSW.M * 2),
		EfConstruction: uint32(c.cfg.HNSW.EfConstruction),
		Timestamp:      time.Now().Unix(),
	}

	var sections [4][]byte
	sections[wal.SectionRecords] = recordsBuf.Bytes()
	sections[wal.SectionGraph] = graphBuf.Bytes()
	sections[wal.SectionInvertedIndex] = textBuf.Bytes()
	sections[wal.SectionMetadata] = metaBuf.Bytes()

	if err := os.MkdirAll(c.snapshotDir(), 0o755); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}
	if err := wal.WriteSnapshot(c.snapshotPath(name), header, sections); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}

	if err := c.w.Truncate(); err != nil {
		return verrors.Wrap("collection.CreateSnapshot", verrors.IO, err)
	}
	return nil
}

// RestoreSnapshot replaces the collection's current in-memory state with
// the named snapshot, discarding any WAL records appended since. Existing
// writers must not hold references to the old store/graph/text after this
// returns.
func (c *Collection) RestoreSnapshot(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return verrors.Wrap("collection.RestoreSnapshot", verrors.IO, verrors.ErrStoreClosed)
	}
	if err := c.loadSnapshotLocked(name); err != nil {
		return verrors.Wrap("collection.RestoreSnapshot", verrors.Corruption, err)
	}
	if err := c.w.Truncate(); err != nil {
		return verrors.Wrap("collection.RestoreSnapshot", verrors.IO, err)
	}
	c.rebuildSelectivityLocked()
	return nil
}

// loadSnapshotLocked loads name's sections into the collection's store,
// graph, and text index in place. Caller holds c.mu.
func (c *Collection) loadSnapshotLocked(name string) error {
	path := c.snapshotPath(name)
	header, sections, err := wal.ReadSnapshot(path)
	if err != nil {
		return err
	}

	if int(header.Dimension) != c.cfg.Dimension {
		return fmt.Errorf("collection: snapshot dimension %d does not match configured dimension %d", header.Dimension, c.cfg.Dimension)
	}

	if err := c.store.Load(bytes.NewReader(sections[wal.SectionRecords])); err != nil {
		return err
	}
	if err := c.graph.Load(bytes.NewReader(sections[wal.SectionGraph])); err != nil {
		return err
	}

	var tf textFieldsSection
	if len(sections[wal.SectionInvertedIndex]) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(sections[wal.SectionInvertedIndex])).Decode(&tf); err != nil {
			return err
		}
	}
	c.textFields = tf.Fields
	if c.textFields == nil {
		c.textFields = make(map[uint32]map[string]string)
	}
	c.text = newTextIndex(c.cfg)
	for internalID, fields := range c.textFields {
		c.text.AddDocument(internalID, fields)
		if rec, ok := c.store.GetByInternalID(internalID); ok && rec.Deleted {
			c.text.SoftDelete(internalID)
		}
	}

	if uint8(c.cfg.Metric) != header.Metric {
		return fmt.Errorf("collection: snapshot metric %d does not match configured metric %d", header.Metric, uint8(c.cfg.Metric))
	}

	var meta metadataSection
	if len(sections[wal.SectionMetadata]) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(sections[wal.SectionMetadata])).Decode(&meta); err != nil {
			return err
		}
	}
	c.sparse = index.NewSparse(c.cfg.Metric)
	if len(meta.Sparse) > 0 {
		if err := c.sparse.Load(bytes.NewReader(meta.Sparse)); err != nil {
			return err
		}
	}
	if len(meta.Codebooks) > 0 {
		if pq, ok := c.productQuantizer(); ok {
			if err := pq.DeserializeCodebooks(meta.Codebooks); err != nil {
				return err
			}
		}
	}
	return nil
}
