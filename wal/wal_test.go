package wal

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/kvstorage/lsmcore/base"
	"github.com/kvstorage/lsmcore/storage"
)

type recordingReporter struct {
	drops []string
}

func (r *recordingReporter) Corruption(bytes int, status base.Status) {
	r.drops = append(r.drops, fmt.Sprintf("%d:%s", bytes, status.Error()))
}

func writeRecords(t *testing.T, path string, records [][]byte) {
	t.Helper()
	f, err := storage.Default.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := NewWriter(f)
	for _, rec := range records {
		if err := w.AddRecord(rec); err != nil {
			t.Fatalf("AddRecord: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readAllRecords(t *testing.T, path string, reporter Reporter) [][]byte {
	t.Helper()
	f, err := storage.Default.OpenSequentialReader(path)
	if err != nil {
		t.Fatalf("OpenSequentialReader: %v", err)
	}
	defer f.Close()
	r := NewReader(f, reporter, true, 0)

	var got [][]byte
	for {
		rec, ok := r.ReadRecord()
		if !ok {
			break
		}
		got = append(got, append([]byte(nil), rec...))
	}
	return got
}

func TestWriteAndReadSingleRecord(t *testing.T) {
	path := t.TempDir() + "/a.log"
	writeRecords(t, path, [][]byte{[]byte("hello world")})

	got := readAllRecords(t, path, nil)
	if len(got) != 1 || !bytes.Equal(got[0], []byte("hello world")) {
		t.Fatalf("got %v, want one record \"hello world\"", got)
	}
}

func TestWriteAndReadMultipleRecords(t *testing.T) {
	path := t.TempDir() + "/a.log"
	records := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	writeRecords(t, path, records)

	got := readAllRecords(t, path, nil)
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, rec := range records {
		if !bytes.Equal(got[i], rec) {
			t.Fatalf("record %d = %q, want %q", i, got[i], rec)
		}
	}
}

// TestLargeRecordIsFragmentedAcrossBlocks writes a 40000-byte record, larger
// than BlockSize, and checks it round-trips whole, exercising First/Last
// fragmentation across two physical blocks.
func TestLargeRecordIsFragmentedAcrossBlocks(t *testing.T) {
	path := t.TempDir() + "/a.log"
	payload := bytes.Repeat([]byte{0x5a}, 40000)
	writeRecords(t, path, [][]byte{payload})

	got := readAllRecords(t, path, nil)
	if len(got) != 1 || !bytes.Equal(got[0], payload) {
		t.Fatalf("fragmented record did not round-trip: got len %d", len(got[0]))
	}
}

// TestCorruptionInMiddleRecordIsReportedAndSkipped flips a byte inside the
// payload of the second of three records and checks that reading tolerates
// the damage: the corrupted record is dropped and reported, but the
// surrounding records are still recovered.
func TestCorruptionInMiddleRecordIsReportedAndSkipped(t *testing.T) {
	path := t.TempDir() + "/a.log"
	records := [][]byte{
		bytes.Repeat([]byte("a"), 100),
		bytes.Repeat([]byte("b"), 100),
		bytes.Repeat([]byte("c"), 100),
	}
	writeRecords(t, path, records)

	raw, err := readFileBytes(path)
	if err != nil {
		t.Fatalf("readFileBytes: %v", err)
	}
	// Flip a byte inside the second record's payload, well past its header.
	secondRecordPayloadStart := HeaderSize + len(records[0]) + HeaderSize + 10
	raw[secondRecordPayloadStart] ^= 0xff
	if err := writeFileBytes(path, raw); err != nil {
		t.Fatalf("writeFileBytes: %v", err)
	}

	reporter := &recordingReporter{}
	got := readAllRecords(t, path, reporter)

	if len(reporter.drops) == 0 {
		t.Fatalf("expected at least one corruption report")
	}
	foundChecksumMismatch := false
	for _, d := range reporter.drops {
		if bytes.Contains([]byte(d), []byte("checksum mismatch")) {
			foundChecksumMismatch = true
		}
	}
	if !foundChecksumMismatch {
		t.Fatalf("drops = %v, want a checksum mismatch report", reporter.drops)
	}

	if len(got) != 2 {
		t.Fatalf("got %d surviving records, want 2 (first and third)", len(got))
	}
	if !bytes.Equal(got[0], records[0]) {
		t.Fatalf("first record corrupted by the test: got %q", got[0])
	}
	if !bytes.Equal(got[1], records[2]) {
		t.Fatalf("third record not recovered: got %q", got[1])
	}
}

func readFileBytes(path string) ([]byte, error) {
	r, err := storage.Default.OpenRandomAccessReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	size, err := r.Size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	_, err = r.ReadAt(buf, 0)
	return buf, err
}

func writeFileBytes(path string, data []byte) error {
	w, err := storage.Default.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}
