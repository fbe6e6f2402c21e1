package sstable

import (
	"fmt"
	"testing"

	"github.com/kvstorage/lsmcore/storage"
)

func buildTable(t *testing.T, path string, opts WriterOptions, keys, values []string) {
	t.Helper()
	f, err := storage.Default.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := NewWriter(f, opts)
	for i := range keys {
		if st := w.Add([]byte(keys[i]), []byte(values[i])); !st.Ok() {
			t.Fatalf("Add: %v", st.Error())
		}
	}
	if st := w.Finish(); !st.Ok() {
		t.Fatalf("Finish: %v", st.Error())
	}
}

func openTable(t *testing.T, path string, opts ReaderOptions) *Reader {
	t.Helper()
	f, err := storage.Default.OpenRandomAccessReader(path)
	if err != nil {
		t.Fatalf("OpenRandomAccessReader: %v", err)
	}
	r, st := Open(f, opts)
	if !st.Ok() {
		t.Fatalf("Open: %v", st.Error())
	}
	return r
}

func sequentialKeysAndValues(n int) (keys, values []string) {
	width := len(fmt.Sprintf("%d", n-1))
	for i := 0; i < n; i++ {
		keys = append(keys, fmt.Sprintf("k%0*d", width, i))
		values = append(values, fmt.Sprintf("v%0*d", width, i))
	}
	return keys, values
}

// TestBuildAndReadThousandKeys exercises building and reading a table with
// 1000 sequential keys, checking ApproximateOffsetOf monotonicity, a seek
// into the middle, and a full forward scan.
func TestBuildAndReadThousandKeys(t *testing.T) {
	keys, values := sequentialKeysAndValues(1000)
	path := t.TempDir() + "/t.sst"

	buildTable(t, path, WriterOptions{
		BlockSize:       256,
		RestartInterval: 4,
		Compression:     CompressionNone,
	}, keys, values)

	r := openTable(t, path, ReaderOptions{})

	offFirst, st := r.ApproximateOffsetOf([]byte(keys[0]))
	if !st.Ok() {
		t.Fatalf("ApproximateOffsetOf(first): %v", st.Error())
	}
	offMid, st := r.ApproximateOffsetOf([]byte(keys[500]))
	if !st.Ok() {
		t.Fatalf("ApproximateOffsetOf(mid): %v", st.Error())
	}
	offLast, st := r.ApproximateOffsetOf([]byte(keys[999]))
	if !st.Ok() {
		t.Fatalf("ApproximateOffsetOf(last): %v", st.Error())
	}
	if !(offFirst <= offMid && offMid <= offLast) {
		t.Fatalf("ApproximateOffsetOf not monotonic: first=%d mid=%d last=%d", offFirst, offMid, offLast)
	}

	it := r.NewIterator()
	it.Seek([]byte(keys[250]))
	if !it.Valid() {
		t.Fatalf("Seek(k250) invalid: %v", it.Error().Error())
	}
	if string(it.Key()) != keys[250] || string(it.Value()) != values[250] {
		t.Fatalf("Seek(k250) = (%q,%q), want (%q,%q)", it.Key(), it.Value(), keys[250], values[250])
	}

	it.SeekToFirst()
	count := 0
	for it.Valid() {
		if string(it.Key()) != keys[count] || string(it.Value()) != values[count] {
			t.Fatalf("entry %d = (%q,%q), want (%q,%q)", count, it.Key(), it.Value(), keys[count], values[count])
		}
		count++
		it.Next()
	}
	if !it.Error().Ok() {
		t.Fatalf("iteration ended with error: %v", it.Error().Error())
	}
	if count != len(keys) {
		t.Fatalf("visited %d entries, want %d", count, len(keys))
	}
}

func TestInternalGetFindsExactKey(t *testing.T) {
	keys, values := sequentialKeysAndValues(200)
	path := t.TempDir() + "/t.sst"
	buildTable(t, path, WriterOptions{BlockSize: 512, RestartInterval: 8}, keys, values)

	r := openTable(t, path, ReaderOptions{})

	var gotKey, gotValue []byte
	st := r.InternalGet([]byte(keys[100]), func(k, v []byte) {
		gotKey = append([]byte(nil), k...)
		gotValue = append([]byte(nil), v...)
	})
	if !st.Ok() {
		t.Fatalf("InternalGet: %v", st.Error())
	}
	if string(gotKey) != keys[100] || string(gotValue) != values[100] {
		t.Fatalf("InternalGet found (%q,%q), want (%q,%q)", gotKey, gotValue, keys[100], values[100])
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := t.TempDir() + "/bad.sst"
	w, err := storage.Default.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	buf := make([]byte, FooterSize)
	w.Write(buf)
	w.Close()

	f, err := storage.Default.OpenRandomAccessReader(path)
	if err != nil {
		t.Fatalf("OpenRandomAccessReader: %v", err)
	}
	_, st := Open(f, ReaderOptions{})
	if st.Ok() || !st.IsCorruption() {
		t.Fatalf("Open on all-zero footer = %v, want Corruption", st.Error())
	}
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	keys, values := sequentialKeysAndValues(50)
	path := t.TempDir() + "/t.sst"
	buildTable(t, path, WriterOptions{BlockSize: 256, RestartInterval: 4}, keys, values)

	raw, err := readWholeFile(t, path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	truncated := raw[:len(raw)-FooterSize/2]
	if err := writeWholeFile(path, truncated); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := storage.Default.OpenRandomAccessReader(path)
	if err != nil {
		t.Fatalf("OpenRandomAccessReader: %v", err)
	}
	_, st := Open(f, ReaderOptions{})
	if st.Ok() {
		t.Fatalf("Open on truncated file succeeded, want failure")
	}
}

func readWholeFile(t *testing.T, path string) ([]byte, error) {
	t.Helper()
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

func writeWholeFile(path string, data []byte) error {
	w, err := storage.Default.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

func TestCompressionRoundTrip(t *testing.T) {
	keys, values := sequentialKeysAndValues(300)
	path := t.TempDir() + "/t.sst"
	buildTable(t, path, WriterOptions{BlockSize: 1024, RestartInterval: 16, Compression: CompressionSnappy}, keys, values)

	r := openTable(t, path, ReaderOptions{VerifyChecksums: true})
	it := r.NewIterator()
	it.SeekToFirst()
	count := 0
	for it.Valid() {
		count++
		it.Next()
	}
	if !it.Error().Ok() {
		t.Fatalf("iteration error: %v", it.Error().Error())
	}
	if count != len(keys) {
		t.Fatalf("visited %d, want %d", count, len(keys))
	}
}
