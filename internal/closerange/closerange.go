// Package closerange implements C6: a single-peer connectionless
// datagram transport (ESP-NOW-class) with peer-liveness tracking.
// Grounded on the ESPNowTransport contract named in the original
// firmware's include tree.
package closerange

import (
	"errors"
	"sync"
	"time"
)

// MaxPayload matches the on-air frame's payload ceiling.
const MaxPayload = 250

// ReachabilityTimeout is how long since the last reception a peer is
// still considered reachable, per §4.6.
const ReachabilityTimeout = 3000 * time.Millisecond

// ErrPayloadTooLarge is returned by Send when len(data) > MaxPayload.
var ErrPayloadTooLarge = errors.New("closerange: payload exceeds max length")

// Driver is the consumed close-range radio contract (§6): non-blocking
// send to a single peer MAC, with receive delivered asynchronously via
// callback, possibly from a different execution context than the main
// loop.
type Driver interface {
	Init(peerMAC [6]byte) error
	Send(data []byte) error
	RegisterReceiveCB(fn func(srcMAC [6]byte, data []byte))
	RegisterSendStatusCB(fn func(destMAC [6]byte, ok bool))
	Deinit() error
}

// Stats holds the close-range counters §3 requires.
type Stats struct {
	Sent                uint64
	Received            uint64
	SendFailures        uint64
	PeerUnreachableCount uint64
}

// Transport implements C6 over a Driver, publishing received frames
// into a single-slot cross-context receive buffer per §5's ordering
// discipline: the ready flag and the buffer are both guarded by one
// mutex, and the flag is set only after the buffer write is
// committed.
type Transport struct {
	driver Driver
	peer   [6]byte

	mu           sync.Mutex
	lastRecv     time.Time
	reachable    bool
	recvReady    bool
	recvBuffer   []byte

	Stats Stats
}

// New constructs a Transport and wires the driver's receive callback
// into the single-slot buffer.
func New(d Driver, peerMAC [6]byte) (*Transport, error) {
	t := &Transport{driver: d, peer: peerMAC}
	if err := d.Init(peerMAC); err != nil {
		return nil, err
	}
	d.RegisterReceiveCB(t.onReceive)
	d.RegisterSendStatusCB(t.onSendStatus)
	return t, nil
}

func (t *Transport) onReceive(srcMAC [6]byte, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRecv = time.Now()
	if !t.reachable {
		t.reachable = true
	}
	if t.recvReady {
		// single-slot buffer already occupied: drop the new frame.
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.recvBuffer = cp
	t.recvReady = true
	t.Stats.Received++
}

func (t *Transport) onSendStatus(destMAC [6]byte, ok bool) {
	if !ok {
		t.mu.Lock()
		t.Stats.SendFailures++
		t.mu.Unlock()
	}
}

// Send transmits data to the configured peer.
func (t *Transport) Send(data []byte) error {
	if len(data) > MaxPayload {
		return ErrPayloadTooLarge
	}
	err := t.driver.Send(data)
	t.mu.Lock()
	if err != nil {
		t.Stats.SendFailures++
	} else {
		t.Stats.Sent++
	}
	t.mu.Unlock()
	return err
}

// Available reports whether a received frame is waiting.
func (t *Transport) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recvReady
}

// Receive drains the single-slot receive buffer, if any.
func (t *Transport) Receive() ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.recvReady {
		return nil, false
	}
	data := t.recvBuffer
	t.recvBuffer = nil
	t.recvReady = false
	return data, true
}

// Process re-evaluates peer reachability against the configured
// timeout, transitioning reachable->unreachable and counting the
// transition, per §4.6.
func (t *Transport) Process(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reachable && !t.lastRecv.IsZero() && now.Sub(t.lastRecv) > ReachabilityTimeout {
		t.reachable = false
		t.Stats.PeerUnreachableCount++
	}
}

// IsPeerReachable reports the current reachability flag.
func (t *Transport) IsPeerReachable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reachable
}
