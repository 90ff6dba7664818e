package relay

import (
	"testing"
	"time"

	"github.com/Alexishere01/aerolink/internal/frame"
)

func TestUpstreamForwardsOnWeakRSSI(t *testing.T) {
	var forwarded []frame.Frame
	u := NewUpstream(DefaultRSSIThreshold, false, func(f frame.Frame) error {
		forwarded = append(forwarded, f)
		return nil
	}, nil)

	u.HandleOverheard(frame.Frame{Src: 1, Dest: 0}, -100)

	if len(forwarded) != 1 {
		t.Fatalf("expected 1 forwarded frame, got %d", len(forwarded))
	}
	if u.Mode() != ModeRelay {
		t.Fatalf("expected relay mode, got %v", u.Mode())
	}
	if u.Stats.WeakSignalsDetected != 1 {
		t.Fatalf("expected 1 weak signal detected, got %d", u.Stats.WeakSignalsDetected)
	}
}

func TestUpstreamForwardsOnRelayRequestBit(t *testing.T) {
	var forwarded []frame.Frame
	u := NewUpstream(DefaultRSSIThreshold, false, func(f frame.Frame) error {
		forwarded = append(forwarded, f)
		return nil
	}, nil)

	u.HandleOverheard(frame.Frame{Src: 1, Dest: 0, RelayRequest: true}, -50)
	if len(forwarded) != 1 {
		t.Fatal("expected forward on relay-request bit despite strong RSSI")
	}
}

func TestUpstreamWatchdogReturnsToDirect(t *testing.T) {
	u := NewUpstream(DefaultRSSIThreshold, false, func(f frame.Frame) error { return nil }, nil)
	u.HandleOverheard(frame.Frame{Src: 1, Dest: 0}, -100)
	if u.Mode() != ModeRelay {
		t.Fatal("expected relay mode after forward")
	}

	u.Watchdog(time.Now().Add(RelayInactivityWatchdog + time.Second))
	if u.Mode() != ModeDirect {
		t.Fatal("expected watchdog to flip back to direct")
	}
}

func TestGroundHysteresis(t *testing.T) {
	g := NewGroundController(nil)
	t0 := time.Now()
	g.lastF1Packet = t0

	g.Tick(t0.Add(GroundNoF1Timeout + time.Millisecond))
	if g.Mode() != ModeRelay {
		t.Fatal("expected relay mode after 3001ms with no F1 packet")
	}
	if g.RelayActivations != 1 {
		t.Fatalf("expected exactly 1 relay activation, got %d", g.RelayActivations)
	}

	for i := 0; i < GroundDirectRestore; i++ {
		g.NoteF1Packet(t0)
	}
	if g.Mode() != ModeDirect {
		t.Fatal("expected direct mode restored after 5 consecutive F1 packets")
	}
}
