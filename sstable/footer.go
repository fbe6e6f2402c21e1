package sstable

import (
	"encoding/binary"

	"github.com/kvstorage/lsmcore/base"
)

// FooterSize is the fixed on-disk size of the trailing footer.
const FooterSize = 48

// magic identifies a valid table file: little-endian 0xdb4775248b80fb57.
const magic uint64 = 0xdb4775248b80fb57

// blockTrailerSize is the 5-byte trailer following every block's payload:
// a 1-byte compression tag and a 4-byte masked CRC32C.
const blockTrailerSize = 5

// CompressionType tags how a block's payload was stored on disk.
type CompressionType uint8

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
)

// BlockHandle locates a block within the file: a byte offset and size, both
// varint-encoded on disk (never spanning more than 10 bytes each).
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo appends the varint encoding of h to dst.
func (h BlockHandle) EncodeTo(dst []byte) []byte {
	dst = binary.AppendUvarint(dst, h.Offset)
	dst = binary.AppendUvarint(dst, h.Size)
	return dst
}

// DecodeBlockHandle reads a varint-encoded handle from the front of src,
// returning the handle and how many bytes it consumed.
func DecodeBlockHandle(src []byte) (BlockHandle, int, base.Status) {
	off, n1 := binary.Uvarint(src)
	if n1 <= 0 {
		return BlockHandle{}, 0, base.Corruption("bad block handle", "offset")
	}
	sz, n2 := binary.Uvarint(src[n1:])
	if n2 <= 0 {
		return BlockHandle{}, 0, base.Corruption("bad block handle", "size")
	}
	return BlockHandle{Offset: off, Size: sz}, n1 + n2, base.OK
}

// Footer is the 48-byte trailer at the end of every table file.
type Footer struct {
	MetaindexHandle BlockHandle
	IndexHandle     BlockHandle
}

// EncodeTo returns the 48-byte on-disk encoding of f: the two handles,
// zero-padding out to 40 bytes, then the 8-byte magic.
func (f Footer) EncodeTo() []byte {
	buf := make([]byte, 0, FooterSize)
	buf = f.MetaindexHandle.EncodeTo(buf)
	buf = f.IndexHandle.EncodeTo(buf)
	if len(buf) > 40 {
		panic("sstable: encoded handles overflow footer padding")
	}
	padded := make([]byte, FooterSize)
	copy(padded, buf)
	binary.LittleEndian.PutUint64(padded[40:48], magic)
	return padded
}

// DecodeFooter parses the last FooterSize bytes of a table file, verifying
// the magic number.
func DecodeFooter(data []byte) (Footer, base.Status) {
	if len(data) != FooterSize {
		return Footer{}, base.Corruption("invalid footer", "wrong size")
	}
	got := binary.LittleEndian.Uint64(data[40:48])
	if got != magic {
		return Footer{}, base.Corruption("not an sstable (bad magic number)")
	}
	meta, n1, st := DecodeBlockHandle(data)
	if !st.Ok() {
		return Footer{}, st
	}
	index, _, st := DecodeBlockHandle(data[n1:])
	if !st.Ok() {
		return Footer{}, st
	}
	return Footer{MetaindexHandle: meta, IndexHandle: index}, base.OK
}
