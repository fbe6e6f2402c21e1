package wal

import (
	"encoding/binary"

	"github.com/kvstorage/lsmcore/base"
	"github.com/kvstorage/lsmcore/storage"
)

// Reporter is notified of corrupted bytes dropped while reading. bytes is
// the approximate number of bytes skipped; status describes why.
type Reporter interface {
	Corruption(bytes int, status base.Status)
}

// physical record classifications beyond the four on-the-wire RecordTypes,
// returned internally by readPhysicalRecord to drive the reassembly state
// machine.
const (
	recEOF = iota + 100
	recBadRecord
)

// Reader reassembles logical records previously split into physical
// fragments by Writer, skipping and reporting any corrupted fragments it
// encounters rather than failing the whole read.
type Reader struct {
	src      storage.SequentialReader
	reporter Reporter
	checksum bool

	buf          []byte
	block        [BlockSize]byte
	eof          bool
	lastRecordOffset  uint64
	endOfBufferOffset uint64
	initialOffset     uint64
	resyncing         bool
}

// NewReader returns a Reader over src. If initialOffset is non-zero, the
// reader skips to the block containing it and resynchronizes to the first
// full-or-first fragment found at or after that point, suppressing
// corruption reports for bytes entirely before initialOffset.
func NewReader(src storage.SequentialReader, reporter Reporter, checksum bool, initialOffset uint64) *Reader {
	return &Reader{
		src:           src,
		reporter:      reporter,
		checksum:      checksum,
		initialOffset: initialOffset,
		resyncing:     initialOffset > 0,
	}
}

// ReadRecord returns the next logical record, or ok=false at end of file.
func (r *Reader) ReadRecord() (record []byte, ok bool) {
	if r.lastRecordOffset < r.initialOffset {
		if !r.skipToInitialBlock() {
			return nil, false
		}
	}

	var scratch []byte
	inFragmentedRecord := false
	var prospectiveOffset uint64

	for {
		fragment, recordType, physicalOffset := r.readPhysicalRecord()

		if r.resyncing {
			switch recordType {
			case int(TypeMiddle):
				continue
			case int(TypeLast):
				r.resyncing = false
				continue
			default:
				r.resyncing = false
			}
		}

		switch recordType {
		case int(TypeFull):
			if inFragmentedRecord && len(scratch) != 0 {
				r.reportCorruption(len(scratch), "partial record without end(1)")
			}
			scratch = nil
			r.lastRecordOffset = physicalOffset
			return fragment, true

		case int(TypeFirst):
			if inFragmentedRecord && len(scratch) != 0 {
				r.reportCorruption(len(scratch), "partial record without end(1)")
			}
			prospectiveOffset = physicalOffset
			scratch = append([]byte(nil), fragment...)
			inFragmentedRecord = true

		case int(TypeMiddle):
			if !inFragmentedRecord {
				r.reportCorruption(len(fragment), "missing start of fragmented record(1)")
			} else {
				scratch = append(scratch, fragment...)
			}

		case int(TypeLast):
			if !inFragmentedRecord {
				r.reportCorruption(len(fragment), "missing start of fragmented record(2)")
			} else {
				scratch = append(scratch, fragment...)
				r.lastRecordOffset = prospectiveOffset
				return scratch, true
			}

		case recEOF:
			return nil, false

		case recBadRecord:
			if inFragmentedRecord {
				r.reportCorruption(len(scratch), "error in middle of record")
				inFragmentedRecord = false
				scratch = nil
			}
		}
	}
}

func (r *Reader) skipToInitialBlock() bool {
	offsetInBlock := r.initialOffset % BlockSize
	blockStart := r.initialOffset - offsetInBlock
	if offsetInBlock > BlockSize-6 {
		blockStart += BlockSize
	}
	r.endOfBufferOffset = blockStart
	if blockStart > 0 {
		if err := r.skip(blockStart); err != nil {
			r.reportDrop(int(blockStart), base.IOError(err.Error()))
			return false
		}
	}
	return true
}

func (r *Reader) skip(n uint64) error {
	buf := make([]byte, BlockSize)
	for n > 0 {
		chunk := uint64(len(buf))
		if n < chunk {
			chunk = n
		}
		read, err := r.src.Read(buf[:chunk])
		n -= uint64(read)
		if err != nil {
			return err
		}
	}
	return nil
}

// readPhysicalRecord returns (payload, recordType, physicalOffset) for the
// next on-disk fragment, reading a fresh block when the current buffer is
// exhausted.
func (r *Reader) readPhysicalRecord() ([]byte, int, uint64) {
	for {
		if len(r.buf) < HeaderSize {
			if !r.eof {
				n, err := r.src.Read(r.block[:])
				r.buf = r.block[:n]
				r.endOfBufferOffset += uint64(n)
				if err != nil && n == 0 {
					r.buf = nil
					r.reportDrop(BlockSize, base.IOError(err.Error()))
					r.eof = true
					return nil, recEOF, 0
				}
				if n < BlockSize {
					r.eof = true
				}
				continue
			}
			r.buf = nil
			return nil, recEOF, 0
		}

		header := r.buf
		length := int(binary.LittleEndian.Uint16(header[4:6]))
		typ := RecordType(header[6])

		if HeaderSize+length > len(r.buf) {
			dropSize := len(r.buf)
			r.buf = nil
			if !r.eof {
				r.reportCorruption(dropSize, "bad record length")
				return nil, recBadRecord, 0
			}
			return nil, recEOF, 0
		}

		if typ == TypeZero && length == 0 {
			r.buf = nil
			return nil, recBadRecord, 0
		}

		if r.checksum {
			expected := binary.LittleEndian.Uint32(header[0:4])
			actual := maskedCRC(header[6 : 6+1+length])
			if actual != expected {
				dropSize := HeaderSize + length
				r.buf = r.buf[dropSize:]
				r.reportCorruption(dropSize, "checksum mismatch")
				return nil, recBadRecord, 0
			}
		}

		payload := header[HeaderSize : HeaderSize+length]
		r.buf = r.buf[HeaderSize+length:]

		physicalOffset := r.endOfBufferOffset - uint64(len(r.buf)) - uint64(HeaderSize) - uint64(length)
		if physicalOffset < r.initialOffset {
			return nil, recBadRecord, 0
		}

		return payload, int(typ), physicalOffset
	}
}

func (r *Reader) reportCorruption(bytes int, reason string) {
	r.reportDrop(bytes, base.Corruption(reason))
}

// reportDrop suppresses the report entirely if every dropped byte lies
// before initialOffset — a reader that starts mid-file from a known-good
// offset has no business complaining about bytes it was told to skip.
func (r *Reader) reportDrop(bytes int, status base.Status) {
	if r.reporter == nil {
		return
	}
	if r.endOfBufferOffset-uint64(len(r.buf))-uint64(bytes) >= r.initialOffset {
		r.reporter.Corruption(bytes, status)
	}
}
