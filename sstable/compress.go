package sstable

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/golang/snappy"
	"github.com/kvstorage/lsmcore/base"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoliTable)
	return (c>>15 | c<<17) + 0xa282ead8
}

// compressBlock returns the payload to actually write plus the compression
// tag to record: Snappy is used only if it saves more than 1/8 of the raw
// size, otherwise the block is stored uncompressed.
func compressBlock(raw []byte, typ CompressionType) ([]byte, CompressionType) {
	if typ != CompressionSnappy {
		return raw, CompressionNone
	}
	compressed := snappy.Encode(nil, raw)
	if len(compressed) < len(raw)-len(raw)/8 {
		return compressed, CompressionSnappy
	}
	return raw, CompressionNone
}

// appendTrailer appends the 5-byte trailer (compression tag + masked
// CRC32C of payload‖tag) to payload.
func appendTrailer(payload []byte, ctype CompressionType) []byte {
	out := append(append([]byte(nil), payload...), byte(ctype))
	crc := maskedCRC(out)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], crc)
	return append(out, tmp[:]...)
}

// decodeBlock verifies (if verifyChecksum) and decompresses a raw
// handle.Size+blockTrailerSize byte span read from disk into its payload.
func decodeBlock(raw []byte, verifyChecksum bool) ([]byte, base.Status) {
	if len(raw) < blockTrailerSize {
		return nil, base.Corruption("truncated block")
	}
	n := len(raw) - blockTrailerSize
	payload := raw[:n]
	ctype := CompressionType(raw[n])
	expected := binary.LittleEndian.Uint32(raw[n+1:])

	if verifyChecksum {
		actual := maskedCRC(raw[:n+1])
		if actual != expected {
			return nil, base.Corruption("block checksum mismatch")
		}
	}

	switch ctype {
	case CompressionNone:
		return payload, base.OK
	case CompressionSnappy:
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, base.Corruption("snappy decode failed", err.Error())
		}
		return decoded, base.OK
	default:
		return nil, base.Corruption("unknown block compression type")
	}
}
