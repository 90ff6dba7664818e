package queue

import (
	"testing"

	"pgregory.net/rapid"
)

func TestRingSoundnessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cap := rapid.IntRange(2, 8).Draw(t, "cap")
		r := NewRing[int](cap)

		ops := rapid.SliceOfN(rapid.IntRange(0, 1), 0, 40).Draw(t, "ops")
		for _, op := range ops {
			if r.Empty() && r.Full() {
				t.Fatal("ring is simultaneously empty and full")
			}
			if r.Count() != (r.tail-r.head+cap)%cap {
				t.Fatalf("count invariant violated: Count()=%d", r.Count())
			}
			if op == 0 {
				_ = r.Enqueue(1)
			} else {
				r.DropHead()
			}
		}
	})
}

func TestRingEmptyFullBoundary(t *testing.T) {
	r := NewRing[int](3) // holds 2 elements
	if !r.Empty() {
		t.Fatal("new ring should be empty")
	}
	if err := r.Enqueue(1); err != nil {
		t.Fatal(err)
	}
	if err := r.Enqueue(2); err != nil {
		t.Fatal(err)
	}
	if !r.Full() {
		t.Fatal("ring should be full at capacity")
	}
	if err := r.Enqueue(3); err != ErrFull {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	r.DropHead()
	if r.Full() {
		t.Fatal("ring should not be full after drop")
	}
	if v := r.PeekHead(); v == nil || *v != 2 {
		t.Fatalf("unexpected head: %v", v)
	}
}

func TestTieredPriorityDominance(t *testing.T) {
	q := NewTiered()
	for i := 0; i < 3; i++ {
		_ = q.Enqueue(Packet{Payload: []byte{byte(i)}, Priority: 1})
	}
	_ = q.Enqueue(Packet{Payload: []byte{0xAA}, Priority: 0})

	for tier := 0; tier < 3; tier++ {
		if !q.IsEmpty(0) {
			head := q.PeekHead(0)
			if head.Payload[0] != 0xAA {
				t.Fatalf("expected T0 head to pre-empt, got %v", head.Payload)
			}
			break
		}
	}
}
