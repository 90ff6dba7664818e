package coordinator

import (
	"testing"

	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/closerange"
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/radio"
	"github.com/Alexishere01/aerolink/internal/scheduler"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *closerange.MockDriver, *radio.Mock) {
	t.Helper()
	crDriver := closerange.NewMockDriver()
	cr, err := closerange.New(crDriver, [6]byte{})
	if err != nil {
		t.Fatal(err)
	}
	r := radio.NewMock()
	q := queue.NewTiered()
	c := classify.New()
	sc := scheduler.New(r, q, c, 1, nil)
	rv := scheduler.NewReceiver(r, c, 1, nil, &sc.Stats)
	return New(cr, sc, rv, c, 1, nil), crDriver, r
}

func mavlinkV1(seq, sys, msgID byte) []byte {
	return []byte{0xFE, 3, seq, sys, 0, msgID, 0, 0, 0, 0, 0}
}

func TestDedupAcrossLinks(t *testing.T) {
	co, crDriver, r := newTestCoordinator(t)

	frame1 := mavlinkV1(5, 1, classify.MsgHeartbeat)
	crDriver.Deliver([6]byte{2}, frame1)

	_, ok := co.Receive()
	if !ok {
		t.Fatal("expected first frame to be delivered")
	}

	// Now present the identical frame on long-range.
	airFrame, _ := aeroFrame(frame1)
	r.Deliver(airFrame)
	rv := co.receiver
	rv.Process()

	_, ok = co.Receive()
	if ok {
		t.Fatal("expected duplicate to be dropped")
	}
	if co.Stats.DuplicatePacketsDropped != 1 {
		t.Fatalf("expected 1 duplicate drop, got %d", co.Stats.DuplicatePacketsDropped)
	}
}

func TestSequenceWraparoundAllDelivered(t *testing.T) {
	co, crDriver, _ := newTestCoordinator(t)

	seqs := []byte{253, 254, 255, 0, 1, 2}
	for _, seq := range seqs {
		crDriver.Deliver([6]byte{2}, mavlinkV1(seq, 1, classify.MsgHeartbeat))
		_, ok := co.Receive()
		if !ok {
			t.Fatalf("expected delivery for seq %d", seq)
		}
	}
	if co.Stats.DuplicatePacketsDropped != 0 {
		t.Fatalf("expected 0 duplicate drops, got %d", co.Stats.DuplicatePacketsDropped)
	}
}

func TestSendFanOutEssentialGoesLongRange(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	payload := mavlinkV1(1, 1, classify.MsgHeartbeat)
	if ok := co.Send(payload, 0); !ok {
		t.Fatal("expected send to succeed")
	}
	if co.Stats.LoRaPacketsSent != 1 {
		t.Fatalf("expected heartbeat to be queued long-range, got sent=%d", co.Stats.LoRaPacketsSent)
	}
}

func TestSendFanOutNonEssentialSkipsLongRange(t *testing.T) {
	co, _, _ := newTestCoordinator(t)
	payload := mavlinkV1(1, 1, 27) // RAW_IMU: not essential
	co.Send(payload, 0)
	if co.Stats.LoRaFilteredMessages != 1 {
		t.Fatalf("expected non-essential to be filtered, got %d", co.Stats.LoRaFilteredMessages)
	}
	if co.Stats.LoRaPacketsSent != 0 {
		t.Fatal("non-essential message should not reach long-range")
	}
}

func aeroFrame(payload []byte) ([]byte, error) {
	return encodeAero(2, 1, payload)
}

func encodeAero(src, dest byte, payload []byte) ([]byte, error) {
	buf := make([]byte, 4+len(payload))
	buf[0] = 0xAE
	buf[1] = src
	buf[2] = dest
	buf[3] = byte(len(payload))
	copy(buf[4:], payload)
	return buf, nil
}
