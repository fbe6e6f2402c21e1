package walmanager

import (
	"testing"

	"github.com/kvstorage/lsmcore/storage"
)

func openFileSet(t *testing.T) *storage.FileSet {
	files, _ := openFileSetAt(t, t.TempDir())
	return files
}

func openFileSetAt(t *testing.T, dir string) (*storage.FileSet, string) {
	t.Helper()
	files, err := storage.Open(storage.Default, dir)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return files, dir
}

func TestOpenStartsOnSegmentOne(t *testing.T) {
	m, err := Open(openFileSet(t), 1<<20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := m.ActiveSegment(); got != 1 {
		t.Fatalf("ActiveSegment() = %d, want 1", got)
	}
}

func TestAddRecordRotatesPastThreshold(t *testing.T) {
	m, err := Open(openFileSet(t), 20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	payload := make([]byte, 15)
	if err := m.AddRecord(payload); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if got := m.ActiveSegment(); got != 1 {
		t.Fatalf("ActiveSegment() after first record = %d, want 1", got)
	}

	if err := m.AddRecord(payload); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if got := m.ActiveSegment(); got != 2 {
		t.Fatalf("ActiveSegment() after crossing threshold = %d, want 2", got)
	}
}

func TestExplicitRotateAdvancesSegmentNumber(t *testing.T) {
	m, err := Open(openFileSet(t), 1<<20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if got := m.ActiveSegment(); got != 2 {
		t.Fatalf("ActiveSegment() after Rotate = %d, want 2", got)
	}
}

func TestRecoversNextSegmentNumberFromExistingFiles(t *testing.T) {
	files, dir := openFileSetAt(t, t.TempDir())
	m, err := Open(files, 1<<20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.AddRecord([]byte("hello")); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := storage.Open(storage.Default, dir)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	m2, err := Open(reopened, 1<<20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := m2.ActiveSegment(); got != 2 {
		t.Fatalf("ActiveSegment() on reopen = %d, want 2 (segment 1 already on disk)", got)
	}
}
