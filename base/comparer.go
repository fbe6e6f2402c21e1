package base

import "bytes"

// Comparer defines a total ordering over the space of user keys: a 'less
// than' relationship. The same comparator must be used for reads and writes
// over the lifetime of a database.
type Comparer interface {
	// Compare returns -1, 0, or +1 depending on whether a is 'less than',
	// 'equal to' or 'greater than' b.
	Compare(a, b []byte) int

	// AppendSeparator appends a byte sequence x to dst such that
	// a <= x && x < b, and returns the enlarged slice. The precondition is
	// a < b, or b is empty (meaning positive infinity). An implementation
	// may simply append a in full; appending fewer bytes produces smaller
	// index entries.
	AppendSeparator(dst, a, b []byte) []byte

	// AppendSuccessor appends a short byte sequence x >= a to dst and
	// returns the enlarged slice.
	AppendSuccessor(dst, a []byte) []byte

	// Name identifies the comparator so a table built with one comparator
	// is never opened with another.
	Name() string
}

// DefaultComparer orders keys the same way bytes.Compare does.
var DefaultComparer Comparer = byteWiseComparer{}

type byteWiseComparer struct{}

func (byteWiseComparer) Compare(a, b []byte) int { return bytes.Compare(a, b) }

func (byteWiseComparer) Name() string { return "leveldb.BytewiseComparator" }

func (byteWiseComparer) AppendSeparator(dst, a, b []byte) []byte {
	i, n := SharedPrefixLen(a, b), len(dst)
	dst = append(dst, a...)
	if len(b) > 0 {
		if i == len(a) {
			return dst
		}
		if i == len(b) {
			panic("base: AppendSeparator precondition a < b violated, b is a prefix of a")
		}
		if a[i] == 0xff || a[i]+1 >= b[i] {
			// Not optimal (the shortest valid separator may be shorter), but
			// matches the reference implementation and is good enough.
			return dst
		}
	}
	i += n
	for ; i < len(dst); i++ {
		if dst[i] != 0xff {
			dst[i]++
			return dst[:i+1]
		}
	}
	return dst
}

func (byteWiseComparer) AppendSuccessor(dst, a []byte) []byte {
	for i := 0; i < len(a); i++ {
		if c := a[i]; c != 0xff {
			dst = append(dst, a[:i+1]...)
			dst[len(dst)-1] = c + 1
			return dst
		}
	}
	// a is a run of 0xff bytes (or empty): no short successor exists short
	// of a itself.
	return append(dst, a...)
}

// SharedPrefixLen returns the largest i such that a[:i] equals b[:i].
func SharedPrefixLen(a, b []byte) int {
	i, n := 0, len(a)
	if n > len(b) {
		n = len(b)
	}
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
