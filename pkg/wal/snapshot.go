package wal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/verrors"
)

// SnapshotMagic is "VECS" read as a big-endian u32, per spec §4.7.
const SnapshotMagic uint32 = 0x56454353

// SnapshotVersion is the current on-disk format version.
const SnapshotVersion uint16 = 1

// SectionName enumerates the fixed section order spec §4.7 specifies:
// records, graph, inverted index, metadata.
type SectionName int

const (
	SectionRecords SectionName = iota
	SectionGraph
	SectionInvertedIndex
	SectionMetadata
	sectionCount
)

// Header is the fixed preamble of a snapshot file, per spec §4.7.
type Header struct {
	Dimension      uint32
	Metric         uint8
	Tokenizer      uint8
	M              uint32
	MaxM0          uint32
	EfConstruction uint32
	Timestamp      int64
}

// WriteSnapshot writes header and the four sections to path atomically: it
// writes to a temp file in the same directory, then renames over path, so
// a reader never observes a partially-written snapshot (spec: "snapshot
// files are atomic — either fully valid or absent").
func WriteSnapshot(path string, header Header, sections [sectionCount][]byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snap-*.tmp")
	if err != nil {
		return verrors.Wrap("wal.WriteSnapshot", verrors.IO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	if err := writeSnapshotTo(w, header, sections); err != nil {
		tmp.Close()
		return verrors.Wrap("wal.WriteSnapshot", verrors.IO, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return verrors.Wrap("wal.WriteSnapshot", verrors.IO, verrors.ErrFsyncFailed)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return verrors.Wrap("wal.WriteSnapshot", verrors.IO, verrors.ErrFsyncFailed)
	}
	if err := tmp.Close(); err != nil {
		return verrors.Wrap("wal.WriteSnapshot", verrors.IO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return verrors.Wrap("wal.WriteSnapshot", verrors.IO, err)
	}
	return nil
}

func writeSnapshotTo(w io.Writer, header Header, sections [sectionCount][]byte) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], SnapshotMagic)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if err := writeU16(w, SnapshotVersion); err != nil {
		return err
	}
	if err := writeU16(w, 0); err != nil { // flags, unused
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, section := range sections {
		if err := writeSection(w, section); err != nil {
			return err
		}
	}
	return nil
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeSection(w io.Writer, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(payload))); err != nil {
		return err
	}
	crc := crc32.ChecksumIEEE(payload)
	if err := binary.Write(w, binary.LittleEndian, crc); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadSnapshot reads and validates a snapshot file written by WriteSnapshot.
func ReadSnapshot(path string) (Header, [sectionCount][]byte, error) {
	var sections [sectionCount][]byte
	var header Header

	f, err := os.Open(path)
	if err != nil {
		return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.IO, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magicBuf [4]byte
	if _, err := io.ReadFull(r, magicBuf[:]); err != nil {
		return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.Corruption, err)
	}
	if binary.LittleEndian.Uint32(magicBuf[:]) != SnapshotMagic {
		return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.Corruption, verrors.ErrSnapshotMagic)
	}
	if _, err := readU16(r); err != nil { // version
		return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.Corruption, err)
	}
	if _, err := readU16(r); err != nil { // flags
		return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.Corruption, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.Corruption, err)
	}

	for i := range sections {
		payload, err := readSection(r)
		if err != nil {
			return header, sections, verrors.Wrap("wal.ReadSnapshot", verrors.Corruption, err)
		}
		sections[i] = payload
	}
	return header, sections, nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readSection(r io.Reader) ([]byte, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	var wantCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &wantCRC); err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(io.LimitReader(r, int64(length)))
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != length {
		return nil, io.ErrUnexpectedEOF
	}
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, verrors.ErrWalCRC
	}
	return payload, nil
}
