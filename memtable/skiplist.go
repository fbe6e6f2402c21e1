package memtable

import (
	"math/rand"
	"sync/atomic"

	"github.com/kvstorage/lsmcore/arena"
)

const (
	maxHeight = 12
	branching = 4 // P = 1/branching of growing one more level
)

// Comparator is the minimal ordering contract the skip list needs: a total
// order over opaque byte-slice keys. Memtable supplies an implementation
// that decodes the length-prefixed entry format before delegating to the
// internal-key comparator.
type Comparator interface {
	Compare(a, b []byte) int
}

// node is a skip-list node. Nodes are never freed once linked in: the
// arena backing their keys, and the nodes themselves, live exactly as long
// as the memtable that owns them.
//
// next[i] is published with a release-equivalent store (sync/atomic gives
// sequential consistency, a strict superset of release/acquire) only after
// every byte of key is already final, so a reader that observes a node via
// an acquire load of some predecessor's next[i] always sees a fully formed
// node at that height.
type node struct {
	key  []byte
	next []atomic.Pointer[node]
}

func newNode(key []byte, height int) *node {
	return &node{key: key, next: make([]atomic.Pointer[node], height)}
}

func (n *node) getNext(level int) *node {
	return n.next[level].Load()
}

func (n *node) setNext(level int, x *node) {
	n.next[level].Store(x)
}

// SkipList is an arena-backed ordered set of byte-slice keys compared with a
// user-supplied comparator. One writer may call Insert at a time; any number
// of readers may iterate or call Contains/Seek concurrently with that
// writer, synchronizing purely through the atomic next pointers.
type SkipList struct {
	arena  *arena.Arena
	cmp    Comparator
	head   *node
	height atomic.Int32 // current max height in use, 1-indexed
	rnd    *rand.Rand
}

// NewSkipList returns an empty skip list whose MemoryUsage reports a, the
// arena the caller allocates inserted keys from. Nodes themselves are
// allocated on the Go heap, not from a.
func NewSkipList(a *arena.Arena, cmp Comparator) *SkipList {
	return &SkipList{
		arena:  a,
		cmp:    cmp,
		head:   newNode(nil, maxHeight),
		rnd:    rand.New(rand.NewSource(0xC0FFEE)),
	}
}

// MemoryUsage reports the bytes consumed by the arena backing this list's
// keys. Safe to call concurrently with Insert.
func (s *SkipList) MemoryUsage() uint64 {
	return s.arena.MemoryUsage()
}

func (s *SkipList) randomHeight() int {
	h := 1
	for h < maxHeight && s.rnd.Int31n(branching) == 0 {
		h++
	}
	return h
}

func (s *SkipList) curHeight() int {
	h := int(s.height.Load())
	if h == 0 {
		return 1
	}
	return h
}

// findGreaterOrEqual returns the first node whose key is >= key (or nil), and
// optionally fills prev[0:curHeight()] with, at each level, the last node whose
// key is < key.
func (s *SkipList) findGreaterOrEqual(key []byte, prev []*node) *node {
	x := s.head
	level := s.curHeight() - 1
	for {
		next := x.getNext(level)
		if next != nil && s.cmp.Compare(next.key, key) < 0 {
			x = next
			continue
		}
		if prev != nil {
			prev[level] = x
		}
		if level == 0 {
			return next
		}
		level--
	}
}

// findLessThan returns the last node whose key is strictly less than key, or
// head if none.
func (s *SkipList) findLessThan(key []byte) *node {
	x := s.head
	level := s.curHeight() - 1
	for {
		next := x.getNext(level)
		if next != nil && s.cmp.Compare(next.key, key) < 0 {
			x = next
			continue
		}
		if level == 0 {
			return x
		}
		level--
	}
}

func (s *SkipList) findLast() *node {
	x := s.head
	level := s.curHeight() - 1
	for {
		next := x.getNext(level)
		if next != nil {
			x = next
			continue
		}
		if level == 0 {
			return x
		}
		level--
	}
}

// Insert adds key to the skip list. The caller must ensure key does not
// already compare equal to an existing entry (the memtable format makes
// every inserted internal key unique via its sequence number, so duplicate
// detection is unnecessary here — unlike the teacher's generic skip list,
// which updates in place).
func (s *SkipList) Insert(key []byte) {
	var prev [maxHeight]*node
	s.findGreaterOrEqual(key, prev[:])

	height := s.randomHeight()
	if height > s.curHeight() {
		for i := s.curHeight(); i < height; i++ {
			prev[i] = s.head
		}
		s.height.Store(int32(height))
	}

	x := newNode(key, height)
	for i := 0; i < height; i++ {
		x.setNext(i, prev[i].getNext(i))
		prev[i].setNext(i, x)
	}
}

// Contains reports whether key is present.
func (s *SkipList) Contains(key []byte) bool {
	x := s.findGreaterOrEqual(key, nil)
	return x != nil && s.cmp.Compare(x.key, key) == 0
}

// Iterator returns a fresh, independent iterator over the skip list.
func (s *SkipList) Iterator() *SkipListIterator {
	return &SkipListIterator{list: s}
}

// SkipListIterator walks a SkipList forward or backward. It is not safe for
// concurrent use by multiple goroutines, though distinct Iterators over the
// same list may run concurrently with each other and with a single writer.
type SkipListIterator struct {
	list *SkipList
	node *node
}

// Valid reports whether the iterator is positioned at an entry.
func (it *SkipListIterator) Valid() bool { return it.node != nil }

// Key returns the current entry's key. Valid must be true.
func (it *SkipListIterator) Key() []byte { return it.node.key }

// Next advances to the next entry.
func (it *SkipListIterator) Next() { it.node = it.node.getNext(0) }

// Prev moves to the previous entry. O(log n): there is no backward link, so
// it re-searches from the head for the last node strictly less than the
// current key.
func (it *SkipListIterator) Prev() {
	it.node = it.list.findLessThan(it.node.key)
	if it.node == it.list.head {
		it.node = nil
	}
}

// Seek positions the iterator at the first entry with a key >= target.
func (it *SkipListIterator) Seek(target []byte) {
	it.node = it.list.findGreaterOrEqual(target, nil)
}

// SeekToFirst positions the iterator at the first entry.
func (it *SkipListIterator) SeekToFirst() {
	it.node = it.list.head.getNext(0)
}

// SeekToLast positions the iterator at the last entry, or invalid if the
// list is empty.
func (it *SkipListIterator) SeekToLast() {
	last := it.list.findLast()
	if last == it.list.head {
		it.node = nil
		return
	}
	it.node = last
}
