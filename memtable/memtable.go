// Package memtable implements the in-memory mutable table: a skip-list
// façade over length-prefixed (internal_key, value) entries, backed by an
// arena allocator that lives exactly as long as the memtable itself.
package memtable

import (
	"encoding/binary"

	"github.com/kvstorage/lsmcore/arena"
	"github.com/kvstorage/lsmcore/base"
)

// LookupResult is the outcome of a Get: the requested user key was found
// with a live value, found but deleted (a tombstone shadows it), or absent
// entirely at or below the snapshot sequence.
type LookupResult int

const (
	NotFound LookupResult = iota
	Found
	Deleted
)

// entryKeyComparator compares two length-prefixed memtable entries by
// decoding their internal-key portion and delegating to an
// InternalKeyComparator. This is the Comparator the skip list itself is
// built over: its keys are whole entries, not bare internal keys.
type entryKeyComparator struct {
	icmp *base.InternalKeyComparator
}

func (c entryKeyComparator) Compare(a, b []byte) int {
	return c.icmp.Compare(extractEntryInternalKey(a), extractEntryInternalKey(b))
}

// extractEntryInternalKey strips the leading varint(internal_key_len) from a
// length-prefixed memtable entry and returns just the internal key.
func extractEntryInternalKey(entry []byte) []byte {
	klen, n := binary.Uvarint(entry)
	if n <= 0 {
		panic("memtable: malformed entry (bad internal key length varint)")
	}
	return entry[n : n+int(klen)]
}

// Memtable is a reference-counted, arena-backed ordered map from internal
// key to value. Writes must be externally serialized (by the owning
// database's mutex); reads may run concurrently with a single writer and
// with each other.
type Memtable struct {
	arena *arena.Arena
	icmp  *base.InternalKeyComparator
	skl   *SkipList
	refs  int32
}

// New returns an empty memtable ordered by userCmp.
func New(userCmp base.Comparer) *Memtable {
	icmp := base.NewInternalKeyComparator(userCmp)
	a := arena.New()
	return &Memtable{
		arena: a,
		icmp:  icmp,
		skl:   NewSkipList(a, entryKeyComparator{icmp: icmp}),
		refs:  1,
	}
}

// Ref increments the reference count. The caller must already hold a
// reference.
func (m *Memtable) Ref() { m.refs++ }

// Unref decrements the reference count and reports whether it reached zero,
// at which point the caller should drop its last reference and let the
// memtable (and its arena) be collected.
func (m *Memtable) Unref() bool {
	m.refs--
	if m.refs < 0 {
		panic("memtable: refcount underflow")
	}
	return m.refs == 0
}

// ApproximateMemoryUsage reports the arena's memory usage, used by the
// owning database to decide when to freeze this memtable.
func (m *Memtable) ApproximateMemoryUsage() uint64 {
	return m.arena.MemoryUsage()
}

// Add inserts (userKey, value) tagged with seq and typ. Entries are
// immutable once inserted; inserting the same user key again with a higher
// sequence is how overwrites and deletions are represented.
func (m *Memtable) Add(seq uint64, typ base.ValueType, userKey, value []byte) {
	ikeyLen := len(userKey) + 8
	valLen := len(value)
	if typ == base.TypeDeletion {
		valLen = 0
	}

	encodedLen := uvarintLen(uint64(ikeyLen)) + ikeyLen + uvarintLen(uint64(valLen)) + valLen
	buf := m.arena.Allocate(encodedLen)

	n := binary.PutUvarint(buf, uint64(ikeyLen))
	p := buf[n:]
	copy(p, userKey)
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], base.PackSequenceAndType(seq, typ))
	copy(p[len(userKey):], trailer[:])
	p = p[ikeyLen:]

	n = binary.PutUvarint(p, uint64(valLen))
	p = p[n:]
	if typ != base.TypeDeletion {
		copy(p, value)
	}

	m.skl.Insert(buf)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// Get looks up userKey as of snapshotSeq: the entry with the largest
// sequence number <= snapshotSeq wins, matching the ordering guarantee that
// higher sequences sort first for equal user keys.
func (m *Memtable) Get(userKey []byte, snapshotSeq uint64) ([]byte, LookupResult) {
	searchKey := newLookupKey(userKey, snapshotSeq)

	it := m.skl.Iterator()
	it.Seek(searchKey)
	if !it.Valid() {
		return nil, NotFound
	}

	entry := it.Key()
	ikey := extractEntryInternalKey(entry)
	foundUserKey := base.ExtractUserKey(ikey)
	if !bytesEqual(foundUserKey, userKey) {
		return nil, NotFound
	}

	pik, ok := base.ParseInternalKey(ikey)
	if !ok {
		return nil, NotFound
	}
	switch pik.Type {
	case base.TypeValue:
		return decodeEntryValue(entry), Found
	case base.TypeDeletion:
		return nil, Deleted
	default:
		return nil, NotFound
	}
}

func decodeEntryValue(entry []byte) []byte {
	klen, n := binary.Uvarint(entry)
	entry = entry[n+int(klen):]
	vlen, n := binary.Uvarint(entry)
	entry = entry[n:]
	return entry[:vlen]
}

// newLookupKey builds a memtable search key: varint(user_key_len+8) ||
// user_key || packed(seq, TypeValue). TypeValue is used as the seek tag
// because it is the larger of the two value types, and the internal-key
// ordering sorts higher-sequence entries first, so seeking with the
// snapshot sequence and TypeValue lands exactly at or just before any real
// entry with sequence <= snapshotSeq.
func newLookupKey(userKey []byte, seq uint64) []byte {
	ikeyLen := len(userKey) + 8
	n := uvarintLen(uint64(ikeyLen))
	buf := make([]byte, n+ikeyLen)
	m := binary.PutUvarint(buf, uint64(ikeyLen))
	copy(buf[m:], userKey)
	binary.LittleEndian.PutUint64(buf[m+len(userKey):], base.PackSequenceAndType(seq, base.TypeValue))
	return buf
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Iterator walks a memtable's entries in internal-key order, decoding each
// length-prefixed entry into its internal key and value on demand.
type Iterator struct {
	inner *SkipListIterator
}

// NewIterator returns an iterator over every entry currently in m.
func (m *Memtable) NewIterator() *Iterator {
	return &Iterator{inner: m.skl.Iterator()}
}

func (it *Iterator) Valid() bool  { return it.inner.Valid() }
func (it *Iterator) Next()        { it.inner.Next() }
func (it *Iterator) Prev()        { it.inner.Prev() }
func (it *Iterator) SeekToFirst() { it.inner.SeekToFirst() }
func (it *Iterator) SeekToLast()  { it.inner.SeekToLast() }

// InternalKey returns the current entry's internal key. Valid must be true.
func (it *Iterator) InternalKey() []byte {
	return extractEntryInternalKey(it.inner.Key())
}

// Value returns the current entry's value. Valid must be true.
func (it *Iterator) Value() []byte {
	return decodeEntryValue(it.inner.Key())
}

// Seek positions the iterator at the first entry whose internal key is >=
// internalKey.
func (it *Iterator) Seek(internalKey []byte) {
	n := uvarintLen(uint64(len(internalKey)))
	probe := make([]byte, n+len(internalKey))
	m := binary.PutUvarint(probe, uint64(len(internalKey)))
	copy(probe[m:], internalKey)
	it.inner.Seek(probe)
}
