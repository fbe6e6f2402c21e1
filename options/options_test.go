package options

import (
	"testing"

	"github.com/kvstorage/lsmcore/base"
	"github.com/kvstorage/lsmcore/sstable"
)

func TestNilOptionsReturnDefaults(t *testing.T) {
	var o *Options
	if o.GetComparer() != base.DefaultComparer {
		t.Errorf("GetComparer() on nil = %v, want DefaultComparer", o.GetComparer())
	}
	if o.GetCreateIfMissing() {
		t.Errorf("GetCreateIfMissing() on nil = true, want false")
	}
	if got, want := o.GetWriteBufferSize(), 4<<20; got != want {
		t.Errorf("GetWriteBufferSize() on nil = %d, want %d", got, want)
	}
	if got, want := o.GetMaxOpenFiles(), 1000; got != want {
		t.Errorf("GetMaxOpenFiles() on nil = %d, want %d", got, want)
	}
	if got, want := o.GetBlockSize(), 4096; got != want {
		t.Errorf("GetBlockSize() on nil = %d, want %d", got, want)
	}
	if got, want := o.GetBlockRestartInterval(), 16; got != want {
		t.Errorf("GetBlockRestartInterval() on nil = %d, want %d", got, want)
	}
	if got, want := o.GetMaxFileSize(), 2<<20; got != want {
		t.Errorf("GetMaxFileSize() on nil = %d, want %d", got, want)
	}
	if got, want := o.GetCompression(), sstable.CompressionSnappy; got != want {
		t.Errorf("GetCompression() on nil = %v, want %v", got, want)
	}
	if o.GetFilterPolicy() != nil {
		t.Errorf("GetFilterPolicy() on nil = non-nil, want nil")
	}
}

func TestZeroValueOptionsApplyDefaults(t *testing.T) {
	o := &Options{}
	if got, want := o.GetBlockSize(), 4096; got != want {
		t.Errorf("GetBlockSize() on zero value = %d, want %d", got, want)
	}
	if got, want := o.GetCompression(), sstable.CompressionSnappy; got != want {
		t.Errorf("GetCompression() on zero value = %v, want %v (CompressionSet unset)", got, want)
	}
}

func TestExplicitCompressionNoneOverridesDefault(t *testing.T) {
	o := &Options{Compression: sstable.CompressionNone, CompressionSet: true}
	if got, want := o.GetCompression(), sstable.CompressionNone; got != want {
		t.Errorf("GetCompression() = %v, want %v", got, want)
	}
}

func TestReadOptionsFillCacheDefaultsToTrue(t *testing.T) {
	var nilOpts *ReadOptions
	if !nilOpts.GetFillCache() {
		t.Errorf("GetFillCache() on nil = false, want true")
	}

	unset := &ReadOptions{}
	if !unset.GetFillCache() {
		t.Errorf("GetFillCache() on zero value = false, want true")
	}

	explicitFalse := &ReadOptions{FillCache: false, FillCacheSet: true}
	if explicitFalse.GetFillCache() {
		t.Errorf("GetFillCache() on explicit false = true, want false")
	}
}

func TestWriteOptionsSyncDefaultsFalse(t *testing.T) {
	var o *WriteOptions
	if o.GetSync() {
		t.Errorf("GetSync() on nil = true, want false")
	}
	o2 := &WriteOptions{Sync: true}
	if !o2.GetSync() {
		t.Errorf("GetSync() = false, want true")
	}
}
