// Package options holds the optional parameters shared across the engine:
// Options (comparator, cache, compression, and the other knobs an opened
// database is configured with), ReadOptions, and WriteOptions. Following
// the GetXxx() accessor pattern, every field defaults sensibly when the
// receiver is nil or the field is its zero value, so callers can pass a
// struct literal with only the fields they care about set.
package options

import (
	"github.com/kvstorage/lsmcore/base"
	"github.com/kvstorage/lsmcore/cache"
	"github.com/kvstorage/lsmcore/filter"
	"github.com/kvstorage/lsmcore/sstable"
)

// Options holds the parameters that govern how a database is opened and
// how its tables are built.
type Options struct {
	// Comparer orders user keys. The same comparator must be used across
	// the lifetime of a database; changing it is an InvalidArgument error.
	//
	// The default orders keys the same way bytes.Compare does.
	Comparer base.Comparer

	// CreateIfMissing permits Open to create a new database directory.
	//
	// The default is false.
	CreateIfMissing bool

	// ErrorIfExists makes Open fail if the database directory already
	// contains a database.
	//
	// The default is false.
	ErrorIfExists bool

	// ParanoidChecks, if true, verifies checksums on metadata block reads
	// (the index, metaindex, and filter blocks) even when a per-call
	// ReadOptions doesn't ask for it.
	//
	// The default is false.
	ParanoidChecks bool

	// WriteBufferSize is the memtable size, in bytes, at which a flush to
	// a new table file is triggered.
	//
	// The default is 4 MiB.
	WriteBufferSize int

	// MaxOpenFiles bounds how many table files may be held open
	// concurrently.
	//
	// The default is 1000.
	MaxOpenFiles int

	// BlockCache is the shared block cache new table readers are opened
	// against. A nil value disables caching.
	BlockCache *cache.Cache

	// BlockSize is the target uncompressed size, in bytes, of each table
	// data block before a new one is started.
	//
	// The default is 4 KiB.
	BlockSize int

	// BlockRestartInterval is the number of keys between restart points
	// used for prefix-delta encoding within a data block.
	//
	// The default is 16.
	BlockRestartInterval int

	// MaxFileSize is the target size, in bytes, a table file is allowed
	// to grow to before a new one is started.
	//
	// The default is 2 MiB.
	MaxFileSize int

	// Compression is the per-block compression algorithm new tables are
	// written with.
	//
	// The default is Snappy.
	Compression sstable.CompressionType

	// CompressionSet reports whether Compression was explicitly assigned;
	// distinguishing it from the zero value (CompressionNone) is what
	// lets GetCompression default to Snappy instead.
	CompressionSet bool

	// ReuseLogs permits recovery to reuse an existing WAL segment as the
	// active one rather than always rolling a fresh file.
	//
	// The default is false.
	ReuseLogs bool

	// FilterPolicy builds and consults the optional per-block membership
	// filter. A nil value disables filtering.
	FilterPolicy filter.Policy
}

func (o *Options) GetComparer() base.Comparer {
	if o == nil || o.Comparer == nil {
		return base.DefaultComparer
	}
	return o.Comparer
}

func (o *Options) GetCreateIfMissing() bool {
	return o != nil && o.CreateIfMissing
}

func (o *Options) GetErrorIfExists() bool {
	return o != nil && o.ErrorIfExists
}

func (o *Options) GetParanoidChecks() bool {
	return o != nil && o.ParanoidChecks
}

func (o *Options) GetWriteBufferSize() int {
	if o == nil || o.WriteBufferSize <= 0 {
		return 4 << 20
	}
	return o.WriteBufferSize
}

func (o *Options) GetMaxOpenFiles() int {
	if o == nil || o.MaxOpenFiles <= 0 {
		return 1000
	}
	return o.MaxOpenFiles
}

func (o *Options) GetBlockCache() *cache.Cache {
	if o == nil {
		return nil
	}
	return o.BlockCache
}

func (o *Options) GetBlockSize() int {
	if o == nil || o.BlockSize <= 0 {
		return 4096
	}
	return o.BlockSize
}

func (o *Options) GetBlockRestartInterval() int {
	if o == nil || o.BlockRestartInterval <= 0 {
		return sstable.DefaultRestartInterval
	}
	return o.BlockRestartInterval
}

func (o *Options) GetMaxFileSize() int {
	if o == nil || o.MaxFileSize <= 0 {
		return 2 << 20
	}
	return o.MaxFileSize
}

func (o *Options) GetCompression() sstable.CompressionType {
	if o == nil || !o.CompressionSet {
		return sstable.CompressionSnappy
	}
	return o.Compression
}

func (o *Options) GetReuseLogs() bool {
	return o != nil && o.ReuseLogs
}

func (o *Options) GetFilterPolicy() filter.Policy {
	if o == nil {
		return nil
	}
	return o.FilterPolicy
}

// ReadOptions holds the parameters for a single read operation.
type ReadOptions struct {
	// VerifyChecksums verifies per-block checksums for data touched by
	// this read.
	//
	// The default is false.
	VerifyChecksums bool

	// FillCache controls whether blocks read to satisfy this operation
	// are inserted into the block cache.
	//
	// The default is true.
	FillCache bool

	// FillCacheSet reports whether FillCache was explicitly assigned,
	// distinguishing "unset" from "explicitly false".
	FillCacheSet bool

	// Snapshot pins the read to a sequence number, so later writes are
	// invisible to it. A zero value means "read the most recent state".
	Snapshot uint64
}

func (o *ReadOptions) GetVerifyChecksums() bool {
	return o != nil && o.VerifyChecksums
}

func (o *ReadOptions) GetFillCache() bool {
	if o == nil || !o.FillCacheSet {
		return true
	}
	return o.FillCache
}

func (o *ReadOptions) GetSnapshot() uint64 {
	if o == nil {
		return 0
	}
	return o.Snapshot
}

// WriteOptions holds the parameters for a single write operation.
type WriteOptions struct {
	// Sync forces the WAL segment to be fsynced before the write returns.
	//
	// The default is false.
	Sync bool
}

func (o *WriteOptions) GetSync() bool {
	return o != nil && o.Sync
}
