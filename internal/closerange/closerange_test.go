package closerange

import (
	"testing"
	"time"
)

func TestSendRejectsOversizePayload(t *testing.T) {
	d := NewMockDriver()
	tr, err := New(d, [6]byte{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Send(make([]byte, MaxPayload+1)); err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReceiveSingleSlotDropsOnOverflow(t *testing.T) {
	d := NewMockDriver()
	tr, _ := New(d, [6]byte{})
	d.Deliver([6]byte{9}, []byte{1, 2, 3})
	d.Deliver([6]byte{9}, []byte{4, 5, 6})

	if !tr.Available() {
		t.Fatal("expected a frame available")
	}
	got, ok := tr.Receive()
	if !ok || got[0] != 1 {
		t.Fatalf("expected first delivered frame retained, got %v", got)
	}
	if tr.Stats.Received != 1 {
		t.Fatalf("expected exactly 1 received count, got %d", tr.Stats.Received)
	}
}

func TestReachabilityTimeout(t *testing.T) {
	d := NewMockDriver()
	tr, _ := New(d, [6]byte{})
	d.Deliver([6]byte{9}, []byte{1})

	if !tr.IsPeerReachable() {
		t.Fatal("expected reachable after reception")
	}

	tr.Process(time.Now().Add(ReachabilityTimeout + time.Second))
	if tr.IsPeerReachable() {
		t.Fatal("expected unreachable after timeout")
	}
	if tr.Stats.PeerUnreachableCount != 1 {
		t.Fatalf("expected 1 unreachable transition, got %d", tr.Stats.PeerUnreachableCount)
	}
}

func TestSendFailureCountsStat(t *testing.T) {
	d := NewMockDriver()
	d.SendErr = ErrPayloadTooLarge
	tr, _ := New(d, [6]byte{})
	_ = tr.Send([]byte{1})
	if tr.Stats.SendFailures != 1 {
		t.Fatalf("expected 1 send failure, got %d", tr.Stats.SendFailures)
	}
}
