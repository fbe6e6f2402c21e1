package wal

import (
	"encoding/binary"

	"github.com/kvstorage/lsmcore/storage"
)

// Writer packs logical records into BlockSize physical blocks, fragmenting
// any record that would otherwise cross a block boundary.
type Writer struct {
	dst      storage.SequentialWriter
	blockOff int // offset within the current block, 0..BlockSize
}

// NewWriter returns a Writer appending to dst. dst must be empty, or
// already positioned at a block boundary.
func NewWriter(dst storage.SequentialWriter) *Writer {
	return &Writer{dst: dst}
}

// AddRecord writes one logical record, fragmenting it across as many
// physical blocks as needed.
func (w *Writer) AddRecord(data []byte) error {
	begin := true
	for {
		leftover := BlockSize - w.blockOff
		if leftover < HeaderSize {
			if leftover > 0 {
				if _, err := w.dst.Write(make([]byte, leftover)); err != nil {
					return err
				}
			}
			w.blockOff = 0
			leftover = BlockSize
		}

		avail := leftover - HeaderSize
		fragLen := len(data)
		end := true
		if fragLen > avail {
			fragLen = avail
			end = false
		}

		var typ RecordType
		switch {
		case begin && end:
			typ = TypeFull
		case begin:
			typ = TypeFirst
		case end:
			typ = TypeLast
		default:
			typ = TypeMiddle
		}

		if err := w.writePhysicalRecord(typ, data[:fragLen]); err != nil {
			return err
		}
		data = data[fragLen:]
		begin = false
		if len(data) == 0 {
			break
		}
	}
	return nil
}

func (w *Writer) writePhysicalRecord(typ RecordType, payload []byte) error {
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint16(header[4:6], uint16(len(payload)))
	header[6] = byte(typ)

	crc := maskedCRC(append([]byte{byte(typ)}, payload...))
	binary.LittleEndian.PutUint32(header[0:4], crc)

	if _, err := w.dst.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.dst.Write(payload); err != nil {
		return err
	}
	w.blockOff += HeaderSize + len(payload)
	return nil
}

// Sync flushes the underlying segment to stable storage.
func (w *Writer) Sync() error { return w.dst.Sync() }

// Close closes the underlying segment.
func (w *Writer) Close() error { return w.dst.Close() }
