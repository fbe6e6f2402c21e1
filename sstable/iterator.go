package sstable

import "github.com/kvstorage/lsmcore/base"

// Iterator composes an index-block iterator with a lazily-fetched data
// block iterator, presenting the union as a single ordered walk over every
// entry in the table.
type Iterator struct {
	r         *Reader
	indexIter *blockIter

	dataIter        *blockIter
	dataRelease     func()
	dataBlockOffset uint64
	haveDataBlock   bool

	err base.Status
}

func (it *Iterator) Valid() bool {
	return it.dataIter != nil && it.dataIter.Valid()
}

func (it *Iterator) Key() []byte   { return it.dataIter.Key() }
func (it *Iterator) Value() []byte { return it.dataIter.Value() }

func (it *Iterator) Error() base.Status {
	if !it.err.Ok() {
		return it.err
	}
	if it.indexIter != nil && !it.indexIter.Error().Ok() {
		return it.indexIter.Error()
	}
	if it.dataIter != nil {
		return it.dataIter.Error()
	}
	return base.OK
}

// initDataBlock decodes the index iterator's current value and loads the
// corresponding data block, unless it is already the one loaded.
func (it *Iterator) initDataBlock() {
	if !it.indexIter.Valid() {
		it.releaseDataBlock()
		return
	}
	handle, _, st := DecodeBlockHandle(it.indexIter.Value())
	if !st.Ok() {
		it.err = st
		it.releaseDataBlock()
		return
	}
	if it.haveDataBlock && handle.Offset == it.dataBlockOffset {
		return
	}

	it.releaseDataBlock()
	data, release, st := it.r.fetchDataBlock(handle)
	if !st.Ok() {
		it.err = st
		return
	}
	dataIter, st := newBlockIter(it.r.opts.comparer(), data)
	if !st.Ok() {
		it.err = st
		release()
		return
	}
	it.dataIter = dataIter
	it.dataRelease = release
	it.dataBlockOffset = handle.Offset
	it.haveDataBlock = true
}

func (it *Iterator) releaseDataBlock() {
	if it.dataRelease != nil {
		it.dataRelease()
	}
	it.dataIter = nil
	it.dataRelease = nil
	it.haveDataBlock = false
}

func (it *Iterator) SeekToFirst() {
	it.indexIter.SeekToFirst()
	it.initDataBlock()
	if it.dataIter != nil {
		it.dataIter.SeekToFirst()
	}
}

func (it *Iterator) SeekToLast() {
	it.indexIter.SeekToLast()
	it.initDataBlock()
	if it.dataIter != nil {
		it.dataIter.SeekToLast()
	}
}

func (it *Iterator) Seek(target []byte) {
	it.indexIter.Seek(target)
	it.initDataBlock()
	if it.dataIter != nil {
		it.dataIter.Seek(target)
	}
	it.skipEmptyDataBlocksForward()
}

func (it *Iterator) Next() {
	if it.dataIter == nil {
		return
	}
	it.dataIter.Next()
	it.skipEmptyDataBlocksForward()
}

func (it *Iterator) Prev() {
	if it.dataIter == nil {
		return
	}
	it.dataIter.Prev()
	it.skipEmptyDataBlocksBackward()
}

func (it *Iterator) skipEmptyDataBlocksForward() {
	for it.dataIter == nil || !it.dataIter.Valid() {
		if it.dataIter != nil && !it.dataIter.Error().Ok() {
			return
		}
		it.indexIter.Next()
		if !it.indexIter.Valid() {
			it.releaseDataBlock()
			return
		}
		it.initDataBlock()
		if it.dataIter != nil {
			it.dataIter.SeekToFirst()
		}
	}
}

func (it *Iterator) skipEmptyDataBlocksBackward() {
	for it.dataIter == nil || !it.dataIter.Valid() {
		if it.dataIter != nil && !it.dataIter.Error().Ok() {
			return
		}
		it.indexIter.Prev()
		if !it.indexIter.Valid() {
			it.releaseDataBlock()
			return
		}
		it.initDataBlock()
		if it.dataIter != nil {
			it.dataIter.SeekToLast()
		}
	}
}
