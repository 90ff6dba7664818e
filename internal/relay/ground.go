package relay

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GroundController implements the ground-station mode control of
// §4.9: it declares relay mode after 3000 ms with no F1 packet
// reported through NoteF1Packet, and restores direct mode after 5
// consecutive reported F1 packets. It does not own or listen on any
// radio itself.
type GroundController struct {
	mu sync.Mutex

	log *logrus.Logger

	mode                 Mode
	lastF1Packet         time.Time
	consecutiveDirectF1  int

	RelayActivations uint64
}

// NewGroundController constructs a GroundController in direct mode.
func NewGroundController(log *logrus.Logger) *GroundController {
	return &GroundController{log: log, mode: ModeDirect, lastF1Packet: time.Now()}
}

// NoteF1Packet records a packet received from the drone on F1,
// advancing the direct-restore counter.
func (g *GroundController) NoteF1Packet(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastF1Packet = now
	g.consecutiveDirectF1++
	if g.mode == ModeRelay && g.consecutiveDirectF1 >= GroundDirectRestore {
		g.setMode(ModeDirect)
	}
}

// Tick re-evaluates the no-F1-packet timeout and declares relay mode
// if exceeded.
func (g *GroundController) Tick(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mode == ModeDirect && now.Sub(g.lastF1Packet) > GroundNoF1Timeout {
		g.consecutiveDirectF1 = 0
		g.setMode(ModeRelay)
	}
}

func (g *GroundController) setMode(m Mode) {
	if g.mode == m {
		return
	}
	prev := g.mode
	g.mode = m
	if m == ModeRelay {
		g.RelayActivations++
	}
	if g.log != nil {
		g.log.WithFields(logrus.Fields{"from": prev.String(), "to": m.String()}).Info("ground relay mode transition")
	}
}

// Mode returns the current mode.
func (g *GroundController) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// RouteRadio reports which radio (F1="primary", F2="relay", or both
// for broadcast) an outbound packet to the drone should use, given
// the current mode.
func (g *GroundController) RouteRadio(dest byte, broadcast byte) (primary, relay bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if dest == broadcast {
		return true, true
	}
	if g.mode == ModeDirect {
		return true, false
	}
	return false, true
}
