// Package filter implements the table reader/writer's optional per-block
// membership filter, wrapping a Bloom filter bitset so a read path can
// usually skip fetching a data block that does not contain the sought key.
package filter

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
)

// Policy is the contract a filter implementation exposes to the table
// builder and reader: a name (persisted so a table built with one policy is
// never misread by another) plus a Builder for the write path and a
// MayContain query for the read path.
type Policy interface {
	Name() string
	NewBuilder() Builder
	// MayContain reports whether key may be present in the data block that
	// starts at blockOffset, consulting the partition of filterData that
	// covers it.
	MayContain(filterData []byte, blockOffset uint64, key []byte) bool
}

// Builder accumulates keys across many data blocks into one filter meta
// block, partitioned so that each ~2KiB of data blocks gets its own Bloom
// bitset — this bounds false-positive growth on tables with many blocks
// without paying for a filter per tiny block.
type Builder interface {
	AddKey(key []byte)
	StartBlock(blockOffset uint64)
	Finish() []byte
}

// filterBase is the log2 of the byte span of data blocks that share one
// Bloom partition (2 KiB).
const filterBase = 11

// BloomPolicy is a Policy backed by github.com/bits-and-blooms/bloom/v3,
// targeting a false-positive rate of 1% per partition.
type BloomPolicy struct{}

// NewBloomPolicy returns the default Bloom-backed filter policy.
func NewBloomPolicy() *BloomPolicy { return &BloomPolicy{} }

func (p *BloomPolicy) Name() string { return "leveldb.BuiltinBloomFilter2" }

func (p *BloomPolicy) NewBuilder() Builder {
	return &bloomBuilder{}
}

func (p *BloomPolicy) MayContain(filterData []byte, blockOffset uint64, key []byte) bool {
	partition, ok := decodePartition(filterData, blockOffset>>filterBase)
	if !ok || len(partition) == 0 {
		// Filter data missing, malformed, or empty for this partition: fail
		// open so the caller still reads the block.
		return true
	}
	bf := &bloom.BloomFilter{}
	if _, err := bf.ReadFrom(bytes.NewReader(partition)); err != nil {
		return true
	}
	return bf.Test(key)
}

// bloomBuilder accumulates keys into per-partition Bloom filters. A new
// partition starts whenever StartBlock reports an offset whose
// blockOffset>>filterBase differs from the group currently being
// accumulated.
type bloomBuilder struct {
	keys         [][]byte
	partitions   [][]byte // serialized per-partition bitsets, in order
	groups       []uint64 // group id (blockOffset>>filterBase) each partition covers
	curGroup     uint64
	haveCurGroup bool
}

func (b *bloomBuilder) AddKey(key []byte) {
	b.keys = append(b.keys, append([]byte(nil), key...))
}

func (b *bloomBuilder) StartBlock(blockOffset uint64) {
	group := blockOffset >> filterBase
	if b.haveCurGroup && group == b.curGroup {
		return
	}
	if b.haveCurGroup {
		b.flushPartition()
	}
	b.curGroup = group
	b.haveCurGroup = true
}

func (b *bloomBuilder) flushPartition() {
	var payload []byte
	if len(b.keys) > 0 {
		bf := bloom.NewWithEstimates(uint(len(b.keys)), 0.01)
		for _, k := range b.keys {
			bf.Add(k)
		}
		var buf bytes.Buffer
		if _, err := bf.WriteTo(&buf); err != nil {
			panic("filter: bloom filter serialization failed: " + err.Error())
		}
		payload = buf.Bytes()
	}
	b.partitions = append(b.partitions, payload)
	b.groups = append(b.groups, b.curGroup)
	b.keys = b.keys[:0]
}

// Finish serializes every partition plus a parallel (group id, byte offset)
// index so MayContain can locate the partition covering any given data
// block offset:
//
//	partition_0 || ... || partition_{n-1} ||
//	group_0 (u64 LE) || byte_offset_0 (u32 LE) || ... (repeated per partition) ||
//	index_offset (u32 LE) || num_partitions (u32 LE)
func (b *bloomBuilder) Finish() []byte {
	if b.haveCurGroup {
		b.flushPartition()
		b.haveCurGroup = false
	}

	var buf bytes.Buffer
	var byteOffsets []uint32
	for _, p := range b.partitions {
		byteOffsets = append(byteOffsets, uint32(buf.Len()))
		buf.Write(p)
	}
	indexOffset := uint32(buf.Len())
	for i := range b.partitions {
		var tmp [12]byte
		binary.LittleEndian.PutUint64(tmp[0:8], b.groups[i])
		binary.LittleEndian.PutUint32(tmp[8:12], byteOffsets[i])
		buf.Write(tmp[:])
	}
	var tail [8]byte
	binary.LittleEndian.PutUint32(tail[0:4], indexOffset)
	binary.LittleEndian.PutUint32(tail[4:8], uint32(len(b.partitions)))
	buf.Write(tail[:])
	return buf.Bytes()
}

// decodePartition extracts the serialized Bloom bitset covering group,
// reporting ok=false if no partition covers it (or filterData is too short
// to parse).
func decodePartition(filterData []byte, group uint64) ([]byte, bool) {
	n := len(filterData)
	if n < 8 {
		return nil, false
	}
	indexOffset := binary.LittleEndian.Uint32(filterData[n-8 : n-4])
	numPartitions := int(binary.LittleEndian.Uint32(filterData[n-4 : n]))
	if numPartitions == 0 || int(indexOffset)+numPartitions*12 > n-8 {
		return nil, false
	}
	index := filterData[indexOffset : n-8]

	pos := sort.Search(numPartitions, func(i int) bool {
		g := binary.LittleEndian.Uint64(index[i*12:])
		return g >= group
	})
	if pos >= numPartitions {
		return nil, false
	}
	g := binary.LittleEndian.Uint64(index[pos*12:])
	if g != group {
		return nil, false
	}

	start := binary.LittleEndian.Uint32(index[pos*12+8:])
	var end uint32
	if pos+1 < numPartitions {
		end = binary.LittleEndian.Uint32(index[(pos+1)*12+8:])
	} else {
		end = indexOffset
	}
	if start > end || int(end) > n {
		return nil, false
	}
	return filterData[start:end], true
}
