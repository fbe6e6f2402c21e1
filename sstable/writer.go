package sstable

import (
	"github.com/kvstorage/lsmcore/base"
	"github.com/kvstorage/lsmcore/filter"
	"github.com/kvstorage/lsmcore/storage"
)

// WriterOptions configures a table Writer.
type WriterOptions struct {
	Comparer        base.Comparer
	BlockSize       int
	RestartInterval int
	Compression     CompressionType
	FilterPolicy    filter.Policy // nil disables the filter block
}

func (o WriterOptions) comparer() base.Comparer {
	if o.Comparer != nil {
		return o.Comparer
	}
	return base.DefaultComparer
}

func (o WriterOptions) blockSize() int {
	if o.BlockSize > 0 {
		return o.BlockSize
	}
	return 4096
}

func (o WriterOptions) restartInterval() int {
	if o.RestartInterval > 0 {
		return o.RestartInterval
	}
	return DefaultRestartInterval
}

// Writer builds one immutable table file: data blocks in key order, an
// optional filter meta block, a metaindex block, an index block, and a
// footer.
type Writer struct {
	dst  storage.SequentialWriter
	opts WriterOptions

	offset int64
	dataBB *blockBuilder
	indexBB *blockBuilder

	filterBuilder filter.Builder

	pendingIndexEntry  bool
	pendingHandle      BlockHandle
	lastKey            []byte
	numEntries         int

	closed bool
	err    base.Status
}

// NewWriter returns a Writer that appends table bytes to dst.
func NewWriter(dst storage.SequentialWriter, opts WriterOptions) *Writer {
	w := &Writer{
		dst:     dst,
		opts:    opts,
		dataBB:  newBlockBuilder(opts.restartInterval()),
		indexBB: newBlockBuilder(1), // every index entry is its own restart
	}
	if opts.FilterPolicy != nil {
		w.filterBuilder = opts.FilterPolicy.NewBuilder()
		w.filterBuilder.StartBlock(0)
	}
	return w
}

// Add appends (key, value); key must be strictly greater than the
// previously added key under the table's comparator.
func (w *Writer) Add(key, value []byte) base.Status {
	if !w.err.Ok() {
		return w.err
	}
	cmp := w.opts.comparer()

	if w.pendingIndexEntry {
		sep := cmp.AppendSeparator(nil, w.lastKey, key)
		handleEnc := w.pendingHandle.EncodeTo(nil)
		w.indexBB.add(sep, handleEnc)
		w.pendingIndexEntry = false
	}

	if w.filterBuilder != nil {
		w.filterBuilder.AddKey(key)
	}

	w.lastKey = append(w.lastKey[:0], key...)
	w.dataBB.add(key, value)
	w.numEntries++

	if w.dataBB.estimatedSize() >= w.opts.blockSize() {
		return w.flush()
	}
	return base.OK
}

func (w *Writer) flush() base.Status {
	if w.dataBB.empty() {
		return base.OK
	}
	handle, st := w.writeBlock(w.dataBB)
	if !st.Ok() {
		w.err = st
		return st
	}
	w.dataBB = newBlockBuilder(w.opts.restartInterval())
	w.pendingIndexEntry = true
	w.pendingHandle = handle
	if w.filterBuilder != nil {
		w.filterBuilder.StartBlock(uint64(w.offset))
	}
	return base.OK
}

// writeBlock finishes bb, optionally compresses it, appends the trailer,
// writes it to dst, and returns its handle.
func (w *Writer) writeBlock(bb *blockBuilder) (BlockHandle, base.Status) {
	raw := bb.finish()
	payload, ctype := compressBlock(raw, w.opts.Compression)
	out := appendTrailer(payload, ctype)

	handle := BlockHandle{Offset: uint64(w.offset), Size: uint64(len(payload))}
	if _, err := w.dst.Write(out); err != nil {
		return BlockHandle{}, base.IOError(err.Error())
	}
	w.offset += int64(len(out))
	return handle, base.OK
}

// writeRawBlock writes data (already finished, uncompressed, with no
// trailer framing applied) with compression disabled, used for the filter
// block.
func (w *Writer) writeRawBlock(data []byte) (BlockHandle, base.Status) {
	out := appendTrailer(data, CompressionNone)
	handle := BlockHandle{Offset: uint64(w.offset), Size: uint64(len(data))}
	if _, err := w.dst.Write(out); err != nil {
		return BlockHandle{}, base.IOError(err.Error())
	}
	w.offset += int64(len(out))
	return handle, base.OK
}

// Finish flushes any pending data and writes the filter, metaindex, index
// blocks and footer, completing the table.
func (w *Writer) Finish() base.Status {
	if w.closed {
		return base.InvalidArgument("writer already finished")
	}
	w.closed = true

	if st := w.flush(); !st.Ok() {
		return st
	}
	if !w.err.Ok() {
		return w.err
	}

	var filterHandle BlockHandle
	haveFilter := w.filterBuilder != nil
	if haveFilter {
		data := w.filterBuilder.Finish()
		h, st := w.writeRawBlock(data)
		if !st.Ok() {
			return st
		}
		filterHandle = h
	}

	metaBB := newBlockBuilder(1)
	if haveFilter {
		metaBB.add([]byte("filter."+w.opts.FilterPolicy.Name()), filterHandle.EncodeTo(nil))
	}
	metaHandle, st := w.writeBlock(metaBB)
	if !st.Ok() {
		return st
	}

	if w.pendingIndexEntry {
		succ := w.opts.comparer().AppendSuccessor(nil, w.lastKey)
		w.indexBB.add(succ, w.pendingHandle.EncodeTo(nil))
		w.pendingIndexEntry = false
	}
	indexHandle, st := w.writeBlock(w.indexBB)
	if !st.Ok() {
		return st
	}

	footer := Footer{MetaindexHandle: metaHandle, IndexHandle: indexHandle}
	if _, err := w.dst.Write(footer.EncodeTo()); err != nil {
		return base.IOError(err.Error())
	}
	w.offset += FooterSize

	if err := w.dst.Sync(); err != nil {
		return base.IOError(err.Error())
	}
	return base.OK
}

// NumEntries reports how many keys have been added so far.
func (w *Writer) NumEntries() int { return w.numEntries }

// FileSize reports how many bytes have been written so far.
func (w *Writer) FileSize() int64 { return w.offset }
