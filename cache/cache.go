// Package cache implements a shared-capacity block cache: a byte-keyed LRU
// keyed by opaque cache keys (the table reader's u64_le(cache_id) ||
// u64_le(offset) convention), storing reference-counted Values with a
// release callback. Eviction and charge accounting live entirely inside the
// cache; callers only ever see Lookup/Insert/Release.
package cache

import (
	"container/list"
	"sync"
)

// Value is a cache entry: the cached bytes plus how many outstanding
// handles reference it. A Value is only actually freed once its refcount
// drops to zero AND it has been evicted from the LRU list.
type Value struct {
	Data []byte

	mu     sync.Mutex
	refs   int
	key    string
	charge int
}

// Cache is an LRU block cache with a byte-budget capacity: Insert evicts
// the least-recently-used entries until the total charge of resident
// entries (that are not currently referenced) fits within capacity.
type Cache struct {
	mu       sync.Mutex
	capacity int
	usage    int
	ll       *list.List
	index    map[string]*list.Element
}

type entry struct {
	key   string
	value *Value
}

// New returns an empty cache with the given byte capacity.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Lookup returns the cached Value for key, if present, bumping its
// recency. The caller must call Release exactly once when done with it.
func (c *Cache) Lookup(key []byte) (*Value, bool) {
	k := string(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.index[k]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(ele)
	v := ele.Value.(*entry).value

	v.mu.Lock()
	v.refs++
	v.mu.Unlock()

	return v, true
}

// Insert adds data under key with the given charge (typically len(data)),
// evicting older unreferenced entries as needed to stay within capacity.
// The returned Value has one outstanding reference that the caller must
// Release.
func (c *Cache) Insert(key []byte, data []byte, charge int) *Value {
	k := string(key)
	v := &Value{Data: data, refs: 1, key: k, charge: charge}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index[k]; ok {
		c.ll.Remove(old)
		c.usage -= old.Value.(*entry).value.charge
	}

	ele := c.ll.PushFront(&entry{key: k, value: v})
	c.index[k] = ele
	c.usage += charge

	for c.usage > c.capacity && c.ll.Len() > 0 {
		back := c.ll.Back()
		if back == ele {
			break
		}
		victim := back.Value.(*entry).value
		victim.mu.Lock()
		referenced := victim.refs > 0
		victim.mu.Unlock()
		if referenced {
			// In active use: skip it for eviction purposes by moving it to
			// the front so the search can make progress against older,
			// unreferenced entries instead of looping on it forever.
			c.ll.MoveToFront(back)
			if back == c.ll.Front() && c.ll.Len() == 1 {
				break
			}
			continue
		}
		c.ll.Remove(back)
		delete(c.index, victim.key)
		c.usage -= victim.charge
	}

	return v
}

// Release drops one reference to v, obtained from Lookup or Insert.
func (v *Value) Release() {
	v.mu.Lock()
	v.refs--
	v.mu.Unlock()
}

// Len reports the number of entries currently resident, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
