package filter

import "testing"

func TestBloomBuilderRoundTripSamePartition(t *testing.T) {
	p := NewBloomPolicy()
	b := p.NewBuilder()
	b.StartBlock(0)
	keys := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	for _, k := range keys {
		b.AddKey(k)
	}
	data := b.Finish()

	for _, k := range keys {
		if !p.MayContain(data, 0, k) {
			t.Fatalf("MayContain(%q) = false, want true (key was added)", k)
		}
	}
}

func TestBloomBuilderSeparatesPartitionsByBlockOffset(t *testing.T) {
	p := NewBloomPolicy()
	b := p.NewBuilder()

	b.StartBlock(0)
	b.AddKey([]byte("in-first-partition"))

	// Cross a 2KiB boundary into a new partition.
	b.StartBlock(1 << filterBase)
	b.AddKey([]byte("in-second-partition"))

	data := b.Finish()

	if !p.MayContain(data, 0, []byte("in-first-partition")) {
		t.Fatalf("expected first partition to contain its own key")
	}
	if !p.MayContain(data, 1<<filterBase, []byte("in-second-partition")) {
		t.Fatalf("expected second partition to contain its own key")
	}
}

func TestMayContainFailsOpenOnMalformedData(t *testing.T) {
	p := NewBloomPolicy()
	if !p.MayContain([]byte{1, 2, 3}, 0, []byte("k")) {
		t.Fatalf("MayContain on malformed filter data should fail open (return true)")
	}
	if !p.MayContain(nil, 0, []byte("k")) {
		t.Fatalf("MayContain on nil filter data should fail open (return true)")
	}
}

func TestMayContainUnknownGroupFailsOpen(t *testing.T) {
	p := NewBloomPolicy()
	b := p.NewBuilder()
	b.StartBlock(0)
	b.AddKey([]byte("k"))
	data := b.Finish()

	// A block offset far past any recorded partition group.
	if !p.MayContain(data, 1000<<filterBase, []byte("anything")) {
		t.Fatalf("MayContain for an unrecorded partition should fail open")
	}
}
