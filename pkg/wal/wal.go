// Package wal implements the write-ahead log and snapshot persistence
// subsystem (spec component C8). The append-only log frame format
// generalizes a gob Save/Load convention and a little-endian
// binary.Write/Read framing into one scheme; no ecosystem append-log/LSN
// library fits this shape, so the frame codec itself is stdlib
// (encoding/gob, encoding/binary, hash/crc32).
package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// Kind identifies the mutation a WAL record represents, per spec §4.7.
type Kind uint8

const (
	Upsert Kind = iota
	Delete
	SoftDelete
	Restore
	UpdateMetadata
	SetTTL
	IndexText
)

// Record is one WAL entry: {lsn, kind, payload, crc32}. Payload is an
// opaque gob-encoded blob the caller (pkg/collection) interprets.
type Record struct {
	LSN     uint64
	Kind    Kind
	Payload []byte
}

// FsyncMode selects the durability policy for Append, per spec §4.2.
type FsyncMode int

const (
	// Sync fsyncs after every append.
	Sync FsyncMode = iota
	// GroupCommit batches fsyncs on a timer, trading a small durability
	// window for throughput.
	GroupCommit
	// None never fsyncs explicitly (relies on OS page cache flush).
	None
)

// FsyncPolicy configures Append's durability behavior.
type FsyncPolicy struct {
	Mode     FsyncMode
	Interval time.Duration // used only when Mode == GroupCommit
}

// DefaultFsyncPolicy fsyncs on every write.
func DefaultFsyncPolicy() FsyncPolicy { return FsyncPolicy{Mode: Sync} }

// WAL is an append-only log of mutations for one collection.
type WAL struct {
	mu       sync.Mutex
	f        *os.File
	w        *bufio.Writer
	nextLSN  uint64
	policy   FsyncPolicy
	closed   bool

	commitMu   sync.Mutex
	commitCond *sync.Cond
	generation uint64
	stopGroup  chan struct{}
}

// Open opens (creating if necessary) the WAL file at path, positioned for
// append. Callers that need to resume LSN numbering after a restart should
// call Replay first and pass its returned nextLSN to SetNextLSN.
func Open(path string, policy FsyncPolicy) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, verrors.Wrap("wal.Open", verrors.IO, err)
	}
	w := &WAL{f: f, w: bufio.NewWriter(f), policy: policy}
	w.commitCond = sync.NewCond(&w.commitMu)
	if policy.Mode == GroupCommit {
		if policy.Interval <= 0 {
			policy.Interval = 5 * time.Millisecond
			w.policy = policy
		}
		w.stopGroup = make(chan struct{})
		go w.groupCommitLoop()
	}
	return w, nil
}

func (w *WAL) groupCommitLoop() {
	ticker := time.NewTicker(w.policy.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			_ = w.w.Flush()
			_ = w.f.Sync()
			w.mu.Unlock()
			w.commitMu.Lock()
			w.generation++
			w.commitCond.Broadcast()
			w.commitMu.Unlock()
		case <-w.stopGroup:
			return
		}
	}
}

// SetNextLSN sets the LSN to assign to the next Append call; used after
// Replay to resume numbering.
func (w *WAL) SetNextLSN(n uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextLSN = n
}

// Append writes kind/payload as a new record and, per the configured
// FsyncPolicy, durably persists it before returning. A failed fsync is
// fatal for this operation and leaves the WAL file intact (the record was
// already written to the OS buffer; only the durability guarantee failed).
func (w *WAL) Append(kind Kind, payload []byte) (uint64, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, verrors.Wrap("wal.Append", verrors.IO, verrors.ErrStoreClosed)
	}
	lsn := w.nextLSN
	w.nextLSN++

	rec := Record{LSN: lsn, Kind: kind, Payload: payload}
	frame, err := encodeFrame(rec)
	if err != nil {
		w.mu.Unlock()
		return 0, verrors.Wrap("wal.Append", verrors.IO, err)
	}
	if _, err := w.w.Write(frame); err != nil {
		w.mu.Unlock()
		return 0, verrors.Wrap("wal.Append", verrors.IO, verrors.ErrWriteFailed)
	}

	switch w.policy.Mode {
	case Sync:
		if err := w.w.Flush(); err != nil {
			w.mu.Unlock()
			return 0, verrors.Wrap("wal.Append", verrors.IO, verrors.ErrFsyncFailed)
		}
		if err := w.f.Sync(); err != nil {
			w.mu.Unlock()
			return 0, verrors.Wrap("wal.Append", verrors.IO, verrors.ErrFsyncFailed)
		}
	case None:
		// no explicit fsync
	case GroupCommit:
		// fsync happens on the background ticker; fall through to wait below.
	}
	w.mu.Unlock()

	if w.policy.Mode == GroupCommit {
		w.commitMu.Lock()
		target := w.generation + 1
		for w.generation < target {
			w.commitCond.Wait()
		}
		w.commitMu.Unlock()
	}

	return lsn, nil
}

// Flush forces any buffered writes to disk regardless of policy.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return verrors.Wrap("wal.Flush", verrors.IO, verrors.ErrFsyncFailed)
	}
	return w.f.Sync()
}

// Close stops any background group-commit goroutine and closes the file.
func (w *WAL) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	_ = w.w.Flush()
	_ = w.f.Sync()
	w.mu.Unlock()
	if w.stopGroup != nil {
		close(w.stopGroup)
	}
	return w.f.Close()
}

// Truncate empties the WAL file, used after a snapshot finalizes (spec:
// "WAL segment ... truncated on snapshot finalize").
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return verrors.Wrap("wal.Truncate", verrors.IO, err)
	}
	if err := w.f.Truncate(0); err != nil {
		return verrors.Wrap("wal.Truncate", verrors.IO, err)
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return verrors.Wrap("wal.Truncate", verrors.IO, err)
	}
	w.w = bufio.NewWriter(w.f)
	return nil
}

// encodeFrame serializes a record as: lsn(u64) kind(u8) len(u32)
// payload(gob) crc32(u32), all little-endian. crc32 covers everything
// before it in the frame.
func encodeFrame(rec Record) ([]byte, error) {
	header := make([]byte, 8+1+4)
	binary.LittleEndian.PutUint64(header[0:8], rec.LSN)
	header[8] = byte(rec.Kind)
	binary.LittleEndian.PutUint32(header[9:13], uint32(len(rec.Payload)))

	buf := make([]byte, 0, len(header)+len(rec.Payload)+4)
	buf = append(buf, header...)
	buf = append(buf, rec.Payload...)

	sum := crc32.ChecksumIEEE(buf)
	crcBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBytes, sum)
	buf = append(buf, crcBytes...)
	return buf, nil
}

// Replay reads every record in path in LSN order, calling fn for each one
// whose CRC checks out. The first record with a bad CRC (or a truncated
// trailing frame, as from a crash mid-write) stops replay; the log is not
// modified. Returns the LSN to resume Append numbering at.
func Replay(path string, fn func(Record) error) (nextLSN uint64, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		if os.IsNotExist(openErr) {
			return 0, nil
		}
		return 0, verrors.Wrap("wal.Replay", verrors.IO, openErr)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		header := make([]byte, 13)
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				break
			}
			break // truncated trailing frame: stop, log stays intact
		}
		lsn := binary.LittleEndian.Uint64(header[0:8])
		kind := Kind(header[8])
		length := binary.LittleEndian.Uint32(header[9:13])

		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			break
		}
		crcBytes := make([]byte, 4)
		if _, err := io.ReadFull(r, crcBytes); err != nil {
			break
		}
		wantCRC := binary.LittleEndian.Uint32(crcBytes)

		gotCRC := crc32.ChecksumIEEE(append(append([]byte{}, header...), payload...))
		if gotCRC != wantCRC {
			break // first bad record truncates replay, per spec §4.7
		}

		if err := fn(Record{LSN: lsn, Kind: kind, Payload: payload}); err != nil {
			return lsn + 1, verrors.Wrap("wal.Replay", verrors.Corruption, err)
		}
		if lsn+1 > nextLSN {
			nextLSN = lsn + 1
		}
	}
	return nextLSN, nil
}

// EncodeGob is a small helper so callers building WAL payloads share one
// gob convention with pkg/index's Save/Load.
func EncodeGob(v interface{}) ([]byte, error) {
	var buf writerBuf
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// DecodeGob is the inverse of EncodeGob.
func DecodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(&readerBuf{data: data}).Decode(v)
}

type writerBuf struct{ data []byte }

func (b *writerBuf) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

type readerBuf struct {
	data []byte
	pos  int
}

func (r *readerBuf) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
