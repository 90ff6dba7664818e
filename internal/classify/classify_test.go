package classify

import (
	"testing"
	"time"
)

func TestTierTable(t *testing.T) {
	cases := map[byte]Tier{
		MsgCommandLong:       TierCritical,
		MsgSetMode:           TierCritical,
		MsgHeartbeat:         TierImportant,
		MsgGlobalPositionInt: TierImportant,
		200:                  TierRoutine,
	}
	for id, want := range cases {
		if got := TierOf(id); got != want {
			t.Errorf("TierOf(%d) = %v, want %v", id, got, want)
		}
	}
}

func TestEssentialSetIndependentOfTier(t *testing.T) {
	if !IsEssential(147) {
		t.Fatal("battery status should be essential")
	}
	if TierOf(147) != TierRoutine {
		t.Fatal("battery status should still classify as routine tier")
	}
}

func TestRateLimitBlocksWithinInterval(t *testing.T) {
	rl := DefaultRateLimits()
	t0 := time.Unix(0, 0)
	if !rl.Allow(MsgAttitude, t0) {
		t.Fatal("first send should be allowed")
	}
	if rl.Allow(MsgAttitude, t0.Add(100*time.Millisecond)) {
		t.Fatal("second send within 500ms should be rejected")
	}
	if !rl.Allow(MsgAttitude, t0.Add(600*time.Millisecond)) {
		t.Fatal("send after interval should be allowed")
	}
}

func TestClassifyOrderBlacklistBeforeRateLimit(t *testing.T) {
	c := New()
	d := c.Classify(88, time.Now())
	if !d.Blacklisted || d.Accepted() {
		t.Fatalf("expected blacklisted rejection, got %+v", d)
	}
}

func TestClassifyAccepted(t *testing.T) {
	c := New()
	d := c.Classify(MsgCommandLong, time.Now())
	if !d.Accepted() || d.Tier != TierCritical {
		t.Fatalf("unexpected decision: %+v", d)
	}
}
