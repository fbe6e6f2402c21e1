// Package sstable implements the on-disk immutable sorted-string table
// format: prefix-compressed restart-interval data blocks, a filter meta
// block, a metaindex block, an index block, and a fixed 48-byte footer.
package sstable

import (
	"encoding/binary"

	"github.com/kvstorage/lsmcore/base"
)

// DefaultRestartInterval is the number of entries between restart points in
// a block, after which a key is stored in full rather than as a prefix
// delta from the previous key.
const DefaultRestartInterval = 16

// blockBuilder accumulates (key, value) pairs, keyed under the comparator
// the block will be searched with later, into one restart-interval
// prefix-compressed block payload.
type blockBuilder struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	counter         int
	lastKey         []byte
	tmp             [3 * binary.MaxVarintLen64]byte
}

func newBlockBuilder(restartInterval int) *blockBuilder {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &blockBuilder{
		restartInterval: restartInterval,
		restarts:        []uint32{0},
	}
}

func (b *blockBuilder) empty() bool { return len(b.buf) == 0 }

// add appends (key, value). key must compare greater than the previously
// added key under the block's comparator; the caller is responsible for
// that invariant (data blocks see internal keys, index blocks see
// separators).
func (b *blockBuilder) add(key, value []byte) {
	shared := 0
	if b.counter < b.restartInterval {
		shared = base.SharedPrefixLen(b.lastKey, key)
	} else {
		b.restarts = append(b.restarts, uint32(len(b.buf)))
		b.counter = 0
	}
	nonShared := len(key) - shared

	n := binary.PutUvarint(b.tmp[0:], uint64(shared))
	n += binary.PutUvarint(b.tmp[n:], uint64(nonShared))
	n += binary.PutUvarint(b.tmp[n:], uint64(len(value)))
	b.buf = append(b.buf, b.tmp[:n]...)
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)

	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
}

// estimatedSize is the payload size finish() would currently produce.
func (b *blockBuilder) estimatedSize() int {
	return len(b.buf) + 4*(len(b.restarts)+1)
}

// finish appends the restart-point trailer and returns the block payload.
// The builder must not be reused afterwards.
func (b *blockBuilder) finish() []byte {
	for _, r := range b.restarts {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], r)
		b.buf = append(b.buf, tmp[:]...)
	}
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(b.restarts)))
	b.buf = append(b.buf, tmp[:]...)
	return b.buf
}

// blockIter walks a single decoded block's entries, binary-searching
// restart points to seek.
type blockIter struct {
	cmp         base.Comparer
	data        []byte
	restartsOff int
	numRestarts int

	offset     int // byte offset of the current entry's header
	nextOffset int // byte offset just past the current entry

	key   []byte
	value []byte
	valid bool
	err   base.Status
}

// newBlockIter parses block's restart-count trailer and returns an iterator
// positioned before the first entry.
func newBlockIter(cmp base.Comparer, block []byte) (*blockIter, base.Status) {
	if len(block) < 4 {
		return nil, base.Corruption("block truncated", "no restart trailer")
	}
	numRestarts := int(binary.LittleEndian.Uint32(block[len(block)-4:]))
	restartsOff := len(block) - 4 - 4*numRestarts
	if numRestarts == 0 || restartsOff < 0 {
		return nil, base.Corruption("block truncated", "invalid restart count")
	}
	return &blockIter{
		cmp:         cmp,
		data:        block,
		restartsOff: restartsOff,
		numRestarts: numRestarts,
	}, base.OK
}

func (i *blockIter) restartOffset(idx int) int {
	return int(binary.LittleEndian.Uint32(i.data[i.restartsOff+4*idx:]))
}

// parseEntry decodes the entry at off, given the key carried over from the
// previous entry (or nil at a restart point). It returns the decoded key,
// value, and the offset just past the entry, or ok=false on corruption.
func (i *blockIter) parseEntry(off int, prevKey []byte) (key, value []byte, next int, ok bool) {
	p := i.data[off:i.restartsOff]
	shared, n1 := binary.Uvarint(p)
	if n1 <= 0 {
		return nil, nil, 0, false
	}
	p = p[n1:]
	nonShared, n2 := binary.Uvarint(p)
	if n2 <= 0 {
		return nil, nil, 0, false
	}
	p = p[n2:]
	valLen, n3 := binary.Uvarint(p)
	if n3 <= 0 {
		return nil, nil, 0, false
	}
	p = p[n3:]

	if int(shared) > len(prevKey) {
		return nil, nil, 0, false
	}
	if uint64(len(p)) < nonShared+valLen {
		return nil, nil, 0, false
	}

	key = append(append([]byte(nil), prevKey[:shared]...), p[:nonShared]...)
	value = p[nonShared : nonShared+valLen]
	next = off + n1 + n2 + n3 + int(nonShared) + int(valLen)
	return key, value, next, true
}

func (i *blockIter) setErr(reason string) {
	i.valid = false
	i.err = base.Corruption(reason)
}

func (i *blockIter) Valid() bool        { return i.valid }
func (i *blockIter) Key() []byte        { return i.key }
func (i *blockIter) Value() []byte      { return i.value }
func (i *blockIter) Error() base.Status { return i.err }

func (i *blockIter) SeekToFirst() {
	key, value, next, ok := i.parseEntry(0, nil)
	if !ok {
		i.setErr("corrupt entry at block start")
		return
	}
	i.offset, i.key, i.value, i.nextOffset = 0, key, value, next
	i.valid = true
}

func (i *blockIter) SeekToLast() {
	i.seekToRestart(i.numRestarts - 1)
	for i.nextOffset < i.restartsOff {
		i.Next()
		if !i.valid {
			return
		}
	}
}

func (i *blockIter) seekToRestart(idx int) {
	off := i.restartOffset(idx)
	key, value, next, ok := i.parseEntry(off, nil)
	if !ok {
		i.setErr("corrupt entry at restart point")
		return
	}
	i.offset, i.key, i.value, i.nextOffset = off, key, value, next
	i.valid = true
}

// Seek positions at the first entry with key >= target.
func (i *blockIter) Seek(target []byte) {
	lo, hi := 0, i.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		off := i.restartOffset(mid)
		key, _, _, ok := i.parseEntry(off, nil)
		if !ok {
			i.setErr("corrupt entry at restart point")
			return
		}
		if i.cmp.Compare(key, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	i.seekToRestart(lo)
	for i.valid && i.cmp.Compare(i.key, target) < 0 {
		i.Next()
	}
}

func (i *blockIter) Next() {
	if !i.valid {
		return
	}
	if i.nextOffset >= i.restartsOff {
		i.valid = false
		return
	}
	key, value, next, ok := i.parseEntry(i.nextOffset, i.key)
	if !ok {
		i.setErr("corrupt entry")
		return
	}
	i.offset, i.key, i.value, i.nextOffset = i.nextOffset, key, value, next
	i.valid = true
}

// Prev walks backwards to the prior restart and rescans forward to just
// before the current offset.
func (i *blockIter) Prev() {
	if !i.valid {
		return
	}
	origOffset := i.offset
	if origOffset == 0 {
		i.valid = false
		return
	}

	restartIdx := sortRestartFloor(i, origOffset)
	if i.restartOffset(restartIdx) == origOffset && restartIdx > 0 {
		restartIdx--
	}
	i.seekToRestart(restartIdx)
	if !i.valid {
		return
	}
	for i.nextOffset < origOffset {
		i.Next()
		if !i.valid {
			return
		}
	}
}

// sortRestartFloor returns the index of the last restart point at or
// before offset.
func sortRestartFloor(i *blockIter, offset int) int {
	lo, hi := 0, i.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if i.restartOffset(mid) <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
