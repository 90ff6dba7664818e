// Package coordinator implements C7: the dual-band sender that fans
// outbound traffic to close-range (always) and long-range (essential
// only), and the dual-band receiver that deduplicates inbound traffic
// by (system_id, sequence). Field names mirror DualBandStats from the
// original firmware's DualBandTransport header.
package coordinator

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/closerange"
	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/scheduler"
)

// InterTransportSpacing is the delay applied between the close-range
// send and the long-range enqueue when both paths are used, per
// §4.7. It protects power-supply transients on real hardware; see
// SPEC_FULL.md open-question decision 3 for the zero-spacing variant.
var InterTransportSpacing = 5 * time.Millisecond

// Stats mirrors the original DualBandStats field set.
type Stats struct {
	ESPNowPacketsSent       uint64
	ESPNowPacketsReceived   uint64
	ESPNowSendFailures      uint64
	ESPNowPeerUnreachable   uint64
	LoRaPacketsSent         uint64
	LoRaPacketsReceived     uint64
	LoRaFilteredMessages    uint64
	DuplicatePacketsDropped uint64
	ESPNowToLoRaTransitions uint64
	LoRaToESPNowTransitions uint64
}

// Coordinator composes the close-range transport and the long-range
// scheduler/receiver pair behind one send/receive façade.
type Coordinator struct {
	closeRange *closerange.Transport
	longRange  *scheduler.Scheduler
	receiver   *scheduler.Receiver
	classifier *classify.Classifier
	myNodeID   byte
	log        *logrus.Logger

	lastSeqNum      [256]byte
	seqSeen         [256]bool
	lastCloseRangeUp bool

	Stats Stats
}

// New constructs a Coordinator over an already-initialized
// close-range transport and long-range scheduler/receiver pair.
func New(cr *closerange.Transport, lr *scheduler.Scheduler, rv *scheduler.Receiver, c *classify.Classifier, myNodeID byte, log *logrus.Logger) *Coordinator {
	return &Coordinator{closeRange: cr, longRange: lr, receiver: rv, classifier: c, myNodeID: myNodeID, log: log}
}

// Send implements the §4.7 send path: always close-range, plus
// long-range when the message is essential.
func (co *Coordinator) Send(payload []byte, dest byte) bool {
	msgID := byte(0xFF)
	if fields, err := frame.ExtractMAVLinkFields(payload); err == nil {
		msgID = fields.MsgID
	}

	closeRangeOK := co.closeRange.Send(payload) == nil
	if closeRangeOK {
		co.Stats.ESPNowPacketsSent++
	} else {
		co.Stats.ESPNowSendFailures++
	}

	longRangeOK := false
	if classify.IsEssential(msgID) {
		if closeRangeOK {
			time.Sleep(InterTransportSpacing)
		}
		decision := co.classifier.Classify(msgID, time.Now())
		if decision.Accepted() {
			err := co.longRange.Enqueue(queue.Packet{
				Payload:     payload,
				Dest:        dest,
				Priority:    decision.Tier,
				EnqueueTime: time.Now(),
			})
			longRangeOK = err == nil
			if longRangeOK {
				co.Stats.LoRaPacketsSent++
			}
		}
	} else {
		co.Stats.LoRaFilteredMessages++
	}

	return closeRangeOK || longRangeOK
}

// Receive implements the §4.7 receive path: close-range first, then
// long-range, deduplicating by (system_id, sequence) per §3.
func (co *Coordinator) Receive() ([]byte, bool) {
	if payload, ok := co.closeRange.Receive(); ok {
		co.Stats.ESPNowPacketsReceived++
		if co.isDuplicate(payload) {
			co.Stats.DuplicatePacketsDropped++
			return nil, false
		}
		return payload, true
	}
	if payload, ok := co.receiver.Receive(); ok {
		co.Stats.LoRaPacketsReceived++
		if co.isDuplicate(payload) {
			co.Stats.DuplicatePacketsDropped++
			return nil, false
		}
		return payload, true
	}
	return nil, false
}

// isDuplicate applies the dedup law of §3: first observation for a
// system id delivers unconditionally; an exact-match repeat of the
// last delivered sequence is dropped; anything else (including
// wraparound) is accepted and advances the stored sequence.
func (co *Coordinator) isDuplicate(payload []byte) bool {
	fields, err := frame.ExtractMAVLinkFields(payload)
	if err != nil {
		return false
	}
	sys := fields.SysID
	if !co.seqSeen[sys] {
		co.seqSeen[sys] = true
		co.lastSeqNum[sys] = fields.Seq
		return false
	}
	if fields.Seq == co.lastSeqNum[sys] {
		return true
	}
	co.lastSeqNum[sys] = fields.Seq
	return false
}

// Process polls close-range reachability and emits transition events,
// per §4.7's "link-state edges".
func (co *Coordinator) Process(now time.Time) {
	co.closeRange.Process(now)
	up := co.closeRange.IsPeerReachable()
	if up != co.lastCloseRangeUp {
		if up {
			co.Stats.LoRaToESPNowTransitions++
			if co.log != nil {
				co.log.Info("ESPNOW_IN_RANGE")
			}
		} else {
			co.Stats.ESPNowToLoRaTransitions++
			if co.log != nil {
				co.log.Info("ESPNOW_OUT_OF_RANGE")
			}
		}
		co.lastCloseRangeUp = up
	}
}
