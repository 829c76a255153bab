package wal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.snap")

	header := Header{Dimension: 128, Metric: 0, Tokenizer: 1, M: 16, MaxM0: 32, EfConstruction: 200, Timestamp: 1234}
	var sections [sectionCount][]byte
	sections[SectionRecords] = []byte("records-payload")
	sections[SectionGraph] = []byte("graph-payload")
	sections[SectionInvertedIndex] = []byte("inverted-payload")
	sections[SectionMetadata] = []byte("metadata-payload")

	if err := WriteSnapshot(path, header, sections); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	gotHeader, gotSections, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if gotHeader != header {
		t.Fatalf("header mismatch: got %+v want %+v", gotHeader, header)
	}
	for i := range sections {
		if string(gotSections[i]) != string(sections[i]) {
			t.Errorf("section %d mismatch: got %q want %q", i, gotSections[i], sections[i])
		}
	}
}

func TestSnapshotAtomicNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.snap")

	var sections [sectionCount][]byte
	if err := WriteSnapshot(path, Header{}, sections); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "s1.snap" {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}

func TestSnapshotBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.snap")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, err := ReadSnapshot(path); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestSnapshotCorruptedSectionCRC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s1.snap")

	var sections [sectionCount][]byte
	sections[SectionRecords] = []byte("hello world this is a long enough payload")
	if err := WriteSnapshot(path, Header{Dimension: 3}, sections); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Flip a byte inside the records section payload: the three sections
	// after it are empty, so each is only its 12-byte length+crc frame.
	data[len(data)-3*12-5] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := ReadSnapshot(path); err == nil {
		t.Fatal("expected crc mismatch error")
	}
}
