// Package relay implements C9: relay orchestration across two
// cooperating long-range radios, and the ground-station direct/relay
// mode hysteresis. The Mode enum and its transition-logging idiom are
// adapted from internal/redundancy's SystemMode pattern, collapsed to
// the two states this specification names.
package relay

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/interlink"
)

// Mode is which frequency a node expects its counterpart's traffic on.
type Mode int

const (
	ModeDirect Mode = iota
	ModeRelay
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeRelay:
		return "relay"
	default:
		return "unknown"
	}
}

// Thresholds and timeouts, §4.9 exactly.
const (
	DefaultRSSIThreshold    = -95.0
	RelayInactivityWatchdog = 30_000 * time.Millisecond
	GroundNoF1Timeout       = 3000 * time.Millisecond
	GroundDirectRestore     = 5
)

// Stats mirrors the original firmware's RelayStats field set.
type Stats struct {
	Overheard             uint64
	PacketsForwarded      uint64
	WeakSignalsDetected   uint64
	RelayActivations      uint64
	PacketsRelayedToQGC   uint64
	PacketsFromQGC        uint64
}

// Forwarder sends a decoded frame to the peer radio over C8.
type Forwarder func(f frame.Frame) error

// Upstream implements the "primary" side of C9: overhears traffic on
// F1 and decides whether to forward it to the downstream secondary
// over the inter-module serial link.
type Upstream struct {
	mu sync.Mutex

	rssiThreshold float64
	alwaysRelay   bool
	forward       Forwarder
	log           *logrus.Logger

	mode              Mode
	lastRelayActivity time.Time

	Stats Stats
}

// NewUpstream constructs an Upstream orchestrator in direct mode.
func NewUpstream(rssiThreshold float64, alwaysRelay bool, forward Forwarder, log *logrus.Logger) *Upstream {
	return &Upstream{rssiThreshold: rssiThreshold, alwaysRelay: alwaysRelay, forward: forward, log: log, mode: ModeDirect}
}

// HandleOverheard is invoked by the receiver (C5) when a frame
// addressed elsewhere arrives. It decides whether to forward it over
// C8 per §4.9's upstream policy.
func (u *Upstream) HandleOverheard(f frame.Frame, rssiDBm float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.Stats.Overheard++

	weak := rssiDBm < u.rssiThreshold
	shouldForward := weak || f.RelayRequest || u.alwaysRelay
	if !shouldForward {
		return
	}
	if weak {
		u.Stats.WeakSignalsDetected++
	}

	if err := u.forward(f); err != nil {
		if u.log != nil {
			u.log.WithError(err).Warn("relay forward over inter-module link failed")
		}
		return
	}
	u.Stats.PacketsForwarded++
	u.setMode(ModeRelay)
	u.lastRelayActivity = time.Now()
}

func (u *Upstream) setMode(m Mode) {
	if u.mode == m {
		return
	}
	prev := u.mode
	u.mode = m
	if u.log != nil {
		u.log.WithFields(logrus.Fields{"from": prev.String(), "to": m.String()}).Info("relay mode transition")
	}
}

// Mode returns the current upstream mode.
func (u *Upstream) Mode() Mode {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.mode
}

// Watchdog flips relay mode back to direct after 30s of inactivity,
// per §4.9.
func (u *Upstream) Watchdog(now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.mode == ModeRelay && !u.lastRelayActivity.IsZero() && now.Sub(u.lastRelayActivity) > RelayInactivityWatchdog {
		u.setMode(ModeDirect)
	}
}

// Downstream implements the "secondary" side of C9: anything arriving
// over C8 from the primary is handed to the long-range enqueue
// function for transmission to the original destination; anything
// received on F2 from the far endpoint is forwarded back to the
// primary over C8.
type Downstream struct {
	enqueueForTransmit func(f frame.Frame) error
	forwardToHost      func(f frame.Frame) error

	Stats Stats
}

// NewDownstream constructs a Downstream orchestrator.
func NewDownstream(enqueueForTransmit, forwardToHost func(f frame.Frame) error) *Downstream {
	return &Downstream{enqueueForTransmit: enqueueForTransmit, forwardToHost: forwardToHost}
}

// HandleFromPrimary processes a frame received over C8 from the
// primary: enqueue it for long-range transmission to its destination.
func (d *Downstream) HandleFromPrimary(f interlink.Frame) error {
	d.Stats.PacketsRelayedToQGC++
	return d.enqueueForTransmit(frame.Frame{Src: f.Src, Dest: f.Dest, Payload: f.Payload})
}

// HandleFromFarEndpoint processes a frame received on F2 from the far
// endpoint: forward it back to the primary for delivery to the host.
func (d *Downstream) HandleFromFarEndpoint(f frame.Frame) error {
	d.Stats.PacketsFromQGC++
	return d.forwardToHost(f)
}
