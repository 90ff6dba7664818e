package scheduler

import (
	"testing"
	"time"

	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/radio"
)

func TestPriorityPreemption(t *testing.T) {
	r := radio.NewMock()
	q := queue.NewTiered()
	c := classify.New()
	s := New(r, q, c, 1, nil)

	for i := 0; i < 3; i++ {
		_ = s.Enqueue(queue.Packet{Payload: []byte{byte(i)}, Dest: 0, Priority: classify.TierImportant, EnqueueTime: time.Now()})
	}
	_ = s.Enqueue(queue.Packet{Payload: []byte{0x76}, Dest: 0, Priority: classify.TierCritical, EnqueueTime: time.Now()})

	s.Step()

	if len(r.Sent) != 1 {
		t.Fatalf("expected 1 transmit, got %d", len(r.Sent))
	}
	sent := r.Sent[0]
	if sent[4] != 0x76 {
		t.Fatalf("expected T0 head transmitted, got payload byte %x", sent[4])
	}
	if q.IsEmpty(classify.TierImportant) {
		t.Fatal("T1 head should remain queued")
	}
}

func TestStalenessDrop(t *testing.T) {
	r := radio.NewMock()
	r.CADSequence = []radio.CADResult{radio.CADPreambleDetected, radio.CADPreambleDetected, radio.CADPreambleDetected}
	q := queue.NewTiered()
	c := classify.New()
	s := New(r, q, c, 1, nil)

	pastEnqueue := time.Now().Add(-6000 * time.Millisecond)
	_ = s.Enqueue(queue.Packet{Payload: []byte{1}, Dest: 0, Priority: classify.TierRoutine, EnqueueTime: pastEnqueue})

	s.Step()

	if s.Stats.DroppedStale[classify.TierRoutine] != 1 {
		t.Fatalf("expected 1 stale drop, got %d", s.Stats.DroppedStale[classify.TierRoutine])
	}
	if len(r.Sent) != 0 {
		t.Fatal("no transmit should have been issued for a stale packet")
	}
	if !q.IsEmpty(classify.TierRoutine) {
		t.Fatal("stale packet should have been dropped from the queue")
	}
}

func TestListenBeforeTalkBackoff(t *testing.T) {
	r := radio.NewMock()
	r.CADSequence = []radio.CADResult{radio.CADPreambleDetected, radio.CADPreambleDetected, radio.CADPreambleDetected}
	q := queue.NewTiered()
	c := classify.New()
	s := New(r, q, c, 1, nil)

	_ = s.Enqueue(queue.Packet{Payload: []byte{1}, Dest: 0, Priority: classify.TierRoutine, EnqueueTime: time.Now()})

	s.Step()

	if s.Stats.ChannelBusyDetections != 3 {
		t.Fatalf("expected 3 channel-busy detections, got %d", s.Stats.ChannelBusyDetections)
	}
	if s.Stats.BackoffEvents != 3 {
		t.Fatalf("expected 3 backoff events, got %d", s.Stats.BackoffEvents)
	}
	if len(r.Sent) != 0 {
		t.Fatal("packet should remain queued after exhausting retries")
	}
	if q.IsEmpty(classify.TierRoutine) {
		t.Fatal("packet should remain in the queue after a busy channel")
	}
}

func TestFairnessGateBlocksImmediateRetransmit(t *testing.T) {
	r := radio.NewMock()
	q := queue.NewTiered()
	c := classify.New()
	s := New(r, q, c, 1, nil)

	_ = s.Enqueue(queue.Packet{Payload: []byte{1}, Dest: 0, Priority: classify.TierRoutine, EnqueueTime: time.Now()})
	s.Step()
	if len(r.Sent) != 1 {
		t.Fatalf("expected first send, got %d", len(r.Sent))
	}

	_ = s.Enqueue(queue.Packet{Payload: []byte{2}, Dest: 0, Priority: classify.TierRoutine, EnqueueTime: time.Now()})
	s.Step()
	if len(r.Sent) != 1 {
		t.Fatal("fairness gate should have blocked an immediate second transmission")
	}
}
