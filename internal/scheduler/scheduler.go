// Package scheduler drives long-range transmission (C4) and reception
// (C5): listen-before-talk with exponential-random backoff, strict
// tier priority, staleness drop at dispatch, and frame dispatch on
// receive. Grounded on the CSMA/CA state machine in the original
// AeroLoRaProtocol firmware.
package scheduler

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/Alexishere01/aerolink/internal/classify"
	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/queue"
	"github.com/Alexishere01/aerolink/internal/radio"
	"github.com/Alexishere01/aerolink/internal/watchdog"
)

// CSMA/CA tuning constants, §4.4 exactly.
const (
	CADThresholdRSSI  = -90.0
	MaxRetries        = 3
	MinBackoffMS      = 5
	MaxBackoffMS      = 100
	FairnessMinGap    = 10 * time.Millisecond
	CooldownThreshold = 5
	CooldownGap       = 50 * time.Millisecond
	CooldownResetGap  = 100 * time.Millisecond
)

// Stats holds the monotonically increasing counters §3 requires for
// the long-range path.
type Stats struct {
	Sent                 uint64
	Received             uint64
	DroppedStale         [3]uint64
	DroppedFull          [3]uint64
	ChannelBusyDetections uint64
	BackoffEvents        uint64
	TransmissionFailures uint64
	CRCErrors            uint64
	Ignored              uint64
	DroppedBlacklisted   uint64
}

// rssiWindow is the sample size for the rolling RSSI/SNR average.
const rssiWindow = 32

// Scheduler owns the long-range queue dispatch loop. One Scheduler per
// radio; the relay orchestrator (C9) runs one per co-located radio.
type Scheduler struct {
	radio      radio.Radio
	queue      *queue.Tiered
	classifier *classify.Classifier
	myNodeID   byte
	log        *logrus.Logger

	lastTxTime       time.Time
	consecutiveSends int

	rssiSamples []float64
	snrSamples  []float64

	retryTX *watchdog.RetryTransmitter

	Stats Stats
}

// New constructs a Scheduler bound to a radio and its outbound queue.
// Every radio transmit goes through an owned watchdog.RetryTransmitter
// (§4.10), so retry/backoff/reset coverage applies uniformly without
// each caller having to wire one in separately.
func New(r radio.Radio, q *queue.Tiered, c *classify.Classifier, myNodeID byte, log *logrus.Logger) *Scheduler {
	return &Scheduler{radio: r, queue: q, classifier: c, myNodeID: myNodeID, log: log, retryTX: watchdog.NewRetryTransmitter(log)}
}

// RadioResets reports the number of driver resets the retry
// transmitter has triggered, for telemetry and metrics surfaces
// outside this package.
func (s *Scheduler) RadioResets() uint64 {
	return s.retryTX.Resets()
}

// Enqueue places an outbound packet on the tier named by
// pkt.Priority. It does not classify: C2 is applied by the caller
// before calling this, and Enqueue assumes pkt.Priority is already set.
func (s *Scheduler) Enqueue(pkt queue.Packet) error {
	if pkt.EnqueueTime.IsZero() {
		pkt.EnqueueTime = time.Now()
	}
	err := s.queue.Enqueue(pkt)
	if err == queue.ErrFull {
		s.Stats.DroppedFull[pkt.Priority]++
	}
	return err
}

// QueueDepth reports the current occupancy of tier t, for telemetry
// and metrics surfaces outside this package.
func (s *Scheduler) QueueDepth(tier classify.Tier) int {
	return s.queue.Count(tier)
}

// Step performs at most one transmission attempt and returns
// promptly, per §4.4.
func (s *Scheduler) Step() {
	now := time.Now()

	if !s.lastTxTime.IsZero() {
		since := now.Sub(s.lastTxTime)
		if since < FairnessMinGap {
			return
		}
		if s.consecutiveSends >= CooldownThreshold && since < CooldownGap {
			return
		}
		if since >= CooldownResetGap {
			s.consecutiveSends = 0
		}
	}

	for tier := classify.TierCritical; tier <= classify.TierRoutine; tier++ {
		if s.queue.IsEmpty(tier) {
			continue
		}
		head := s.queue.PeekHead(tier)
		if now.Sub(head.EnqueueTime) > queue.TTL(tier) {
			s.queue.DropHead(tier)
			s.Stats.DroppedStale[tier]++
			return
		}
		s.attemptTransmit(tier, head, now)
		return
	}
}

func (s *Scheduler) attemptTransmit(tier classify.Tier, pkt *queue.Packet, now time.Time) {
	for retry := 0; retry < MaxRetries; retry++ {
		clear := s.channelClear()
		if clear {
			buf, err := frame.Encode(s.myNodeID, pkt.Dest, pkt.Payload, pkt.RelayRequest)
			if err != nil {
				s.queue.DropHead(tier)
				s.Stats.TransmissionFailures++
				return
			}
			if err := s.retryTX.Transmit(s.radio, buf); err != nil {
				s.Stats.TransmissionFailures++
				if s.log != nil {
					s.log.WithFields(logrus.Fields{"tier": tier.String(), "err": err}).Warn("long-range transmit failed")
				}
				s.queue.DropHead(tier)
				return
			}
			_ = s.radio.StartReceive()
			s.queue.DropHead(tier)
			s.lastTxTime = now
			s.consecutiveSends++
			s.Stats.Sent++
			s.sampleRSSI()
			return
		}
		s.Stats.ChannelBusyDetections++
		s.Stats.BackoffEvents++
		// retry_index increments after each sub-attempt, so the first
		// attempt (retry=0) already backs off at 5*2^1, matching the
		// [5,10]/[5,20]/[5,40] seed scenario.
		backoffMS := minInt(MaxBackoffMS, MinBackoffMS*(1<<uint(retry+1)))
		delay := MinBackoffMS + rand.Intn(backoffMS-MinBackoffMS+1)
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}
	// all sub-attempts failed: leave head in place, retry next Step.
}

// channelClear performs CAD with an RSSI fallback, per §4.4.
func (s *Scheduler) channelClear() bool {
	_ = s.radio.Standby()
	result, err := s.radio.ScanChannel()
	_ = s.radio.StartReceive()
	if err == nil {
		switch result {
		case radio.CADClear:
			return true
		case radio.CADPreambleDetected:
			return false
		}
	}
	return s.radio.RSSI() < CADThresholdRSSI
}

func (s *Scheduler) sampleRSSI() {
	s.rssiSamples = appendWindowed(s.rssiSamples, s.radio.RSSI(), rssiWindow)
	s.snrSamples = appendWindowed(s.snrSamples, s.radio.SNR(), rssiWindow)
}

func appendWindowed(samples []float64, v float64, max int) []float64 {
	samples = append(samples, v)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}

// AverageRSSI returns the rolling mean RSSI over the sample window.
func (s *Scheduler) AverageRSSI() float64 {
	if len(s.rssiSamples) == 0 {
		return 0
	}
	return stat.Mean(s.rssiSamples, nil)
}

// AverageSNR returns the rolling mean SNR over the sample window.
func (s *Scheduler) AverageSNR() float64 {
	if len(s.snrSamples) == 0 {
		return 0
	}
	return stat.Mean(s.snrSamples, nil)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
