package base

import "encoding/binary"

// ValueType tags an internal key as either a live value or a tombstone.
type ValueType uint8

const (
	TypeDeletion ValueType = 0
	TypeValue    ValueType = 1
)

// MaxSequenceNumber is the largest representable sequence number: a 56-bit
// unsigned counter.
const MaxSequenceNumber uint64 = (1 << 56) - 1

// trailerSize is the width of the packed (sequence, type) suffix appended to
// every user key to form an internal key.
const trailerSize = 8

// PackSequenceAndType packs a sequence number and a value type into the
// 8-byte little-endian trailer appended to a user key.
func PackSequenceAndType(seq uint64, t ValueType) uint64 {
	return seq<<8 | uint64(t)
}

// AppendInternalKey appends the internal-key encoding of (userKey, seq, t) to
// dst and returns the enlarged slice.
func AppendInternalKey(dst, userKey []byte, seq uint64, t ValueType) []byte {
	dst = append(dst, userKey...)
	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint64(trailer[:], PackSequenceAndType(seq, t))
	return append(dst, trailer[:]...)
}

// ExtractUserKey returns the user-key prefix of an encoded internal key.
func ExtractUserKey(ikey []byte) []byte {
	if len(ikey) < trailerSize {
		panic("base: internal key too short")
	}
	return ikey[:len(ikey)-trailerSize]
}

// ParsedInternalKey is the decomposed form of an internal key.
type ParsedInternalKey struct {
	UserKey  []byte
	Sequence uint64
	Type     ValueType
}

// ParseInternalKey decodes ikey into its (user_key, sequence, type) parts. It
// reports false if ikey is too short or the decoded type is not one of
// {TypeDeletion, TypeValue}.
//
// The trailer's low byte is extracted with a genuine bitwise AND — a faithful
// C++-to-Go port of the reference implementation used `num && 0xff` (logical
// AND), which collapses to 0 or 1 instead of the intended byte; this port
// preserves the *documented* (bitwise) contract that the spec requires.
func ParseInternalKey(ikey []byte) (ParsedInternalKey, bool) {
	n := len(ikey)
	if n < trailerSize {
		return ParsedInternalKey{}, false
	}
	num := binary.LittleEndian.Uint64(ikey[n-trailerSize:])
	c := ValueType(num & 0xff)
	pik := ParsedInternalKey{
		UserKey:  ikey[:n-trailerSize],
		Sequence: num >> 8,
		Type:     c,
	}
	return pik, c <= TypeValue
}

// InternalKeyComparator orders internal keys: ascending by user key under
// the wrapped user comparator, and for equal user keys, descending by the
// packed (sequence, type) trailer so that higher sequences sort first.
type InternalKeyComparator struct {
	User Comparer
}

func NewInternalKeyComparator(user Comparer) *InternalKeyComparator {
	return &InternalKeyComparator{User: user}
}

func (c *InternalKeyComparator) Name() string {
	return "leveldb.InternalKeyComparator"
}

func (c *InternalKeyComparator) Compare(akey, bkey []byte) int {
	r := c.User.Compare(ExtractUserKey(akey), ExtractUserKey(bkey))
	if r != 0 {
		return r
	}
	anum := binary.LittleEndian.Uint64(akey[len(akey)-trailerSize:])
	bnum := binary.LittleEndian.Uint64(bkey[len(bkey)-trailerSize:])
	switch {
	case anum > bnum:
		return -1
	case anum < bnum:
		return +1
	default:
		return 0
	}
}

// FindShortestSeparator behaves like Comparer.AppendSeparator, but operates
// on internal keys: it shortens start's *user-key* portion via the wrapped
// user comparator and, if that produced a separator strictly shorter than,
// and ordered strictly after, start's user key, re-tags it with (MaxSequenceNumber, TypeValue) so it
// remains a valid upper bound for any sequence that could appear under it.
func (c *InternalKeyComparator) FindShortestSeparator(start, limit []byte) []byte {
	userStart := ExtractUserKey(start)
	userLimit := ExtractUserKey(limit)

	tmp := c.User.AppendSeparator(nil, userStart, userLimit)

	if len(tmp) < len(userStart) && c.User.Compare(userStart, tmp) < 0 {
		tmp = binary.LittleEndian.AppendUint64(tmp, PackSequenceAndType(MaxSequenceNumber, TypeValue))
		return tmp
	}
	return start
}

// FindShortSuccessor behaves like FindShortestSeparator but computes a short
// successor of key's user-key portion alone.
func (c *InternalKeyComparator) FindShortSuccessor(key []byte) []byte {
	userKey := ExtractUserKey(key)

	tmp := c.User.AppendSuccessor(nil, userKey)

	if len(tmp) < len(userKey) && c.User.Compare(userKey, tmp) < 0 {
		tmp = binary.LittleEndian.AppendUint64(tmp, PackSequenceAndType(MaxSequenceNumber, TypeValue))
		return tmp
	}
	return key
}
