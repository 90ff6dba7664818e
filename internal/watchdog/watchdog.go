// Package watchdog implements C10: three independent latching
// timeout counters, and the radio transmit retry/reset policy.
// Grounded directly on relay_uart_protocol.h's WatchdogTimers struct
// and transmitWithRetry/shouldResetRadio functions.
package watchdog

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alexishere01/aerolink/internal/radio"
)

// Timeouts, §4.10 exactly.
const (
	SerialActivityTimeout = 1000 * time.Millisecond
	RelayActivityTimeout  = 30_000 * time.Millisecond
	PeerResponseTimeout   = 5000 * time.Millisecond
)

// Timer is one latching timeout counter: it tracks the last activity
// time and a "logged" flag so each healthy<->timed-out transition
// emits exactly one log event.
type Timer struct {
	mu           sync.Mutex
	name         string
	timeout      time.Duration
	lastActivity time.Time
	logged       bool
	log          *logrus.Logger
}

// NewTimer constructs a Timer that starts "healthy" as of now.
func NewTimer(name string, timeout time.Duration, log *logrus.Logger, now time.Time) *Timer {
	return &Timer{name: name, timeout: timeout, lastActivity: now, log: log}
}

// UpdateActivity records activity at now, clearing the latched
// timeout flag (and logging the recovery, exactly once).
func (t *Timer) UpdateActivity(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = now
	if t.logged {
		t.logged = false
		if t.log != nil {
			t.log.WithField("watchdog", t.name).Info("watchdog recovered")
		}
	}
}

// Check reports whether the timer is currently timed out, latching
// and logging the transition exactly once.
func (t *Timer) Check(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	timedOut := now.Sub(t.lastActivity) > t.timeout
	if timedOut && !t.logged {
		t.logged = true
		if t.log != nil {
			t.log.WithField("watchdog", t.name).Warn("watchdog timed out")
		}
	}
	return timedOut
}

// Set bundles the three watchdog timers C10 requires.
type Set struct {
	Serial *Timer
	Relay  *Timer
	Peer   *Timer
}

// NewSet constructs all three timers starting healthy as of now.
func NewSet(log *logrus.Logger, now time.Time) *Set {
	return &Set{
		Serial: NewTimer("serial", SerialActivityTimeout, log, now),
		Relay:  NewTimer("relay", RelayActivityTimeout, log, now),
		Peer:   NewTimer("peer", PeerResponseTimeout, log, now),
	}
}

// Retry policy constants, §4.10 exactly.
const (
	MaxRetries             = 3
	InitialBackoff         = 50 * time.Millisecond
	MaxConsecutiveFailures = 5
)

// RetryTransmitter owns the process-global consecutive-failure
// counter across all transmit attempts on a radio, triggering a
// driver reset at MaxConsecutiveFailures.
type RetryTransmitter struct {
	mu                  sync.Mutex
	consecutiveFailures int
	resets              uint64
	log                 *logrus.Logger
}

// NewRetryTransmitter constructs a RetryTransmitter with a zeroed
// failure counter.
func NewRetryTransmitter(log *logrus.Logger) *RetryTransmitter {
	return &RetryTransmitter{log: log}
}

// Transmit retries r.Transmit(data) up to MaxRetries times with
// doubling backoff (50/100/200ms), resetting the radio after
// MaxConsecutiveFailures consecutive failures across calls. It
// returns nil on success.
func (rt *RetryTransmitter) Transmit(r radio.Radio, data []byte) error {
	backoff := InitialBackoff
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err := r.Transmit(data)
		if err == nil {
			rt.mu.Lock()
			rt.consecutiveFailures = 0
			rt.mu.Unlock()
			return nil
		}
		lastErr = err

		if radio.ShouldReset(err) {
			rt.resetRadio(r)
			return err
		}

		rt.mu.Lock()
		rt.consecutiveFailures++
		failures := rt.consecutiveFailures
		rt.mu.Unlock()

		if failures >= MaxConsecutiveFailures {
			rt.resetRadio(r)
			return err
		}

		if attempt < MaxRetries-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

func (rt *RetryTransmitter) resetRadio(r radio.Radio) {
	if rt.log != nil {
		rt.log.Warn("resetting radio after consecutive transmit failures")
	}
	_ = r.Reset()
	time.Sleep(100 * time.Millisecond)
	rt.mu.Lock()
	rt.consecutiveFailures = 0
	rt.resets++
	rt.mu.Unlock()
}

// Resets reports the number of driver resets triggered so far.
func (rt *RetryTransmitter) Resets() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.resets
}
