package scheduler

import (
	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/radio"
)

// RelayHandoff is invoked by the receiver when a frame is not
// addressed to this node and relay orchestration (C9) is enabled. It
// receives the decoded frame and the RSSI it was received at.
type RelayHandoff func(f frame.Frame, rssiDBm float64)

// Receiver implements C5: it reads CRC-valid frames off a radio and
// dispatches them to local delivery, relay handoff, or the ignore
// counter.
type Receiver struct {
	radio      radio.Radio
	classifier *classify.Classifier
	myNodeID   byte
	log        *logrus.Logger

	onRelay RelayHandoff

	recvReady   bool
	recvBuffer  []byte

	Stats *Stats
}

// NewReceiver constructs a Receiver sharing a Scheduler's Stats block
// (sent/received counters live together per radio).
func NewReceiver(r radio.Radio, c *classify.Classifier, myNodeID byte, log *logrus.Logger, stats *Stats) *Receiver {
	return &Receiver{radio: r, classifier: c, myNodeID: myNodeID, log: log, Stats: stats}
}

// SetRelayHandoff installs the callback used when a frame addressed
// elsewhere arrives and relay orchestration is active.
func (rv *Receiver) SetRelayHandoff(fn RelayHandoff) {
	rv.onRelay = fn
}

// Process is called when the radio signals a packet is ready
// (§5's interrupt-driven flag). It reads, decodes, and dispatches
// exactly one frame.
func (rv *Receiver) Process() {
	n := rv.radio.PacketLength()
	if n == 0 {
		return
	}
	buf, err := rv.radio.ReadData(n)
	if err != nil || buf == nil {
		rv.Stats.CRCErrors++
		_ = rv.radio.StartReceive()
		return
	}

	f, err := frame.Decode(buf)
	if err != nil {
		rv.Stats.CRCErrors++
		_ = rv.radio.StartReceive()
		return
	}

	switch {
	case f.Dest == rv.myNodeID || f.Dest == frame.Broadcast:
		rv.deliverLocal(f)
	default:
		rv.Stats.Ignored++
		if rv.onRelay != nil {
			rv.onRelay(f, rv.radio.RSSI())
		}
	}

	_ = rv.radio.StartReceive()
}

func (rv *Receiver) deliverLocal(f frame.Frame) {
	fields, err := frame.ExtractMAVLinkFields(f.Payload)
	if err == nil && rv.classifier.IsBlacklisted(fields.MsgID) {
		rv.Stats.DroppedBlacklisted++
		return
	}
	if rv.recvReady {
		// single-slot buffer already occupied: drop, per §4.5/§5.
		return
	}
	rv.recvBuffer = f.Payload
	rv.recvReady = true
	rv.Stats.Received++
}

// Available reports whether a decoded payload is waiting in the
// single-slot receive buffer.
func (rv *Receiver) Available() bool {
	return rv.recvReady
}

// Receive drains the single-slot receive buffer, if any.
func (rv *Receiver) Receive() ([]byte, bool) {
	if !rv.recvReady {
		return nil, false
	}
	payload := rv.recvBuffer
	rv.recvBuffer = nil
	rv.recvReady = false
	return payload, true
}
