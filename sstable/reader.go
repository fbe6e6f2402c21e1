package sstable

import (
	"encoding/binary"

	"github.com/kvstorage/lsmcore/base"
	"github.com/kvstorage/lsmcore/cache"
	"github.com/kvstorage/lsmcore/filter"
	"github.com/kvstorage/lsmcore/storage"
)

// ReaderOptions configures how a Reader opens and reads a table.
type ReaderOptions struct {
	Comparer       base.Comparer
	FilterPolicy   filter.Policy // must match what the table was built with, if any
	VerifyChecksums bool
	Cache          *cache.Cache // optional shared block cache
	CacheID        uint64       // distinguishes this file's blocks within a shared cache
	FillCache      bool
}

func (o ReaderOptions) comparer() base.Comparer {
	if o.Comparer != nil {
		return o.Comparer
	}
	return base.DefaultComparer
}

// Reader opens an immutable table file for point lookups and iteration.
type Reader struct {
	src  storage.RandomAccessReader
	opts ReaderOptions

	indexBlock  []byte
	filterData  []byte
	haveFilter  bool
}

// Open parses footer, index block, and (if a matching policy is configured)
// the filter block out of src.
func Open(src storage.RandomAccessReader, opts ReaderOptions) (*Reader, base.Status) {
	size, err := src.Size()
	if err != nil {
		return nil, base.IOError(err.Error())
	}
	if size < FooterSize {
		return nil, base.Corruption("file is too short to be an sstable")
	}

	footerBuf := make([]byte, FooterSize)
	if _, err := src.ReadAt(footerBuf, size-FooterSize); err != nil {
		return nil, base.IOError(err.Error())
	}
	footer, st := DecodeFooter(footerBuf)
	if !st.Ok() {
		return nil, st
	}

	r := &Reader{src: src, opts: opts}

	indexRaw, st := r.readBlockAt(footer.IndexHandle, true)
	if !st.Ok() {
		return nil, st
	}
	r.indexBlock = indexRaw

	if opts.FilterPolicy != nil {
		metaRaw, st := r.readBlockAt(footer.MetaindexHandle, true)
		if !st.Ok() {
			return nil, st
		}
		it, st := newBlockIter(r.opts.comparer(), metaRaw)
		if !st.Ok() {
			return nil, st
		}
		wantKey := "filter." + opts.FilterPolicy.Name()
		it.SeekToFirst()
		for it.Valid() {
			if string(it.Key()) == wantKey {
				handle, _, st := DecodeBlockHandle(it.Value())
				if !st.Ok() {
					return nil, st
				}
				filterRaw, st := r.readBlockAt(handle, true)
				if !st.Ok() {
					return nil, st
				}
				r.filterData = filterRaw
				r.haveFilter = true
				break
			}
			it.Next()
		}
	}

	return r, base.OK
}

// readBlockAt reads, checksum-verifies (if verify or VerifyChecksums), and
// decompresses the block at handle, bypassing the cache.
func (r *Reader) readBlockAt(handle BlockHandle, verify bool) ([]byte, base.Status) {
	raw := make([]byte, handle.Size+blockTrailerSize)
	if _, err := r.src.ReadAt(raw, int64(handle.Offset)); err != nil {
		return nil, base.IOError(err.Error())
	}
	return decodeBlock(raw, verify || r.opts.VerifyChecksums)
}

// cacheKey encodes the u64_le(cache_id) || u64_le(offset) key used to look
// up a data block in the shared block cache.
func (r *Reader) cacheKey(offset uint64) []byte {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[0:8], r.opts.CacheID)
	binary.LittleEndian.PutUint64(key[8:16], offset)
	return key[:]
}

// fetchDataBlock returns the decoded bytes of the data block at handle,
// consulting the block cache if one is configured and populating it when
// FillCache is set. release
// must be called when the caller is done with the returned bytes.
func (r *Reader) fetchDataBlock(handle BlockHandle) (data []byte, release func(), status base.Status) {
	if r.opts.Cache != nil {
		key := r.cacheKey(handle.Offset)
		if v, ok := r.opts.Cache.Lookup(key); ok {
			return v.Data, v.Release, base.OK
		}
		decoded, st := r.readBlockAt(handle, false)
		if !st.Ok() {
			return nil, func() {}, st
		}
		if r.opts.FillCache {
			v := r.opts.Cache.Insert(key, decoded, len(decoded))
			return v.Data, v.Release, base.OK
		}
		return decoded, func() {}, base.OK
	}

	decoded, st := r.readBlockAt(handle, false)
	if !st.Ok() {
		return nil, func() {}, st
	}
	return decoded, func() {}, base.OK
}

// mayContain consults the filter block, if any, for key against the data
// block starting at blockOffset. Returns true (fail-open) if no filter is
// configured.
func (r *Reader) mayContain(blockOffset uint64, key []byte) bool {
	if !r.haveFilter {
		return true
	}
	return r.opts.FilterPolicy.MayContain(r.filterData, blockOffset, key)
}

// ApproximateOffsetOf returns an estimate of the file offset at which data
// for key (or the key that follows it) begins — monotonically
// non-decreasing as key increases.
func (r *Reader) ApproximateOffsetOf(key []byte) (uint64, base.Status) {
	it, st := newBlockIter(r.opts.comparer(), r.indexBlock)
	if !st.Ok() {
		return 0, st
	}
	it.Seek(key)
	if it.Valid() {
		handle, _, st := DecodeBlockHandle(it.Value())
		if !st.Ok() {
			return 0, st
		}
		return handle.Offset, base.OK
	}
	// Past the last block: every key here is >= any stored key, so the file
	// size is the only meaningful upper bound.
	size, err := r.src.Size()
	if err != nil {
		return 0, base.IOError(err.Error())
	}
	return uint64(size), it.Error()
}

// InternalGet seeks to key and, if found, invokes handleResult with the
// matched internal key and value. Returns the first non-ok status
// encountered, or Ok with handleResult uncalled if key is absent.
func (r *Reader) InternalGet(key []byte, handleResult func(k, v []byte)) base.Status {
	indexIter, st := newBlockIter(r.opts.comparer(), r.indexBlock)
	if !st.Ok() {
		return st
	}
	indexIter.Seek(key)
	if !indexIter.Valid() {
		return indexIter.Error()
	}

	handle, _, st := DecodeBlockHandle(indexIter.Value())
	if !st.Ok() {
		return st
	}

	if !r.mayContain(handle.Offset, key) {
		return base.OK
	}

	data, release, st := r.fetchDataBlock(handle)
	if !st.Ok() {
		return st
	}
	defer release()

	dataIter, st := newBlockIter(r.opts.comparer(), data)
	if !st.Ok() {
		return st
	}
	dataIter.Seek(key)
	if dataIter.Valid() {
		handleResult(dataIter.Key(), dataIter.Value())
	}
	return dataIter.Error()
}

// NewIterator returns a two-level iterator over every entry in the table,
// in key order.
func (r *Reader) NewIterator() *Iterator {
	indexIter, _ := newBlockIter(r.opts.comparer(), r.indexBlock)
	return &Iterator{r: r, indexIter: indexIter}
}
