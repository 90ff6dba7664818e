// Package hostbridge scans a host byte stream for MAVLink framing and
// hands complete datagrams to the coordinator, and implements the
// operator command channel (DUMP/SIZE/CLEAR/HELP) against an
// in-process ring log buffer. Supplements a feature spec.md's
// distillation only gestures at ("status codes are
// implementation-defined"); grounded on flight_logger.h's log-buffer
// concept from the original firmware.
package hostbridge

import (
	"fmt"
	"io"
	"sync"

	"github.com/Alexishere01/aerolink/internal/frame"
	"github.com/Alexishere01/aerolink/internal/queue"
)

// Sender is the subset of the coordinator's send path the bridge
// depends on.
type Sender interface {
	Send(payload []byte, dest byte) bool
}

// Bridge reads host bytes, scans for complete MAVLink datagrams, and
// forwards them to a Sender; in the reverse direction it writes
// received payloads back out to the host stream.
type Bridge struct {
	out     io.Writer
	sender  Sender
	dest    byte
	scanner *frame.Scanner
	log     *Log
}

// New constructs a Bridge writing replies to out and forwarding
// parsed datagrams to sender addressed at dest.
func New(out io.Writer, sender Sender, dest byte, log *Log) *Bridge {
	return &Bridge{out: out, sender: sender, dest: dest, scanner: frame.NewScanner(), log: log}
}

// Feed scans chunk for complete MAVLink datagrams and forwards each
// one found, discarding skipped/garbage bytes per §4.1.
func (b *Bridge) Feed(chunk []byte) {
	b.scanner.Feed(chunk)
	for {
		res, n := b.scanner.Scan()
		switch res {
		case frame.ScanComplete:
			datagram := b.scanner.Take(n)
			b.sender.Send(datagram, b.dest)
		case frame.ScanSkip:
			continue
		default:
			return
		}
	}
}

// DeliverToHost writes a received payload back out to the host stream.
func (b *Bridge) DeliverToHost(payload []byte) error {
	_, err := b.out.Write(payload)
	return err
}

// Log is a fixed-capacity byte ring backing the operator
// DUMP/SIZE/CLEAR commands, built on the same internal/queue.Ring[T]
// abstraction the tiered packet queue uses.
type Log struct {
	mu   sync.Mutex
	ring *queue.Ring[byte]
}

// NewLog constructs a Log with room for capacity bytes.
func NewLog(capacity int) *Log {
	return &Log{ring: queue.NewRing[byte](capacity + 1)}
}

// Write appends p, discarding the oldest bytes if capacity is exceeded.
func (l *Log) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range p {
		if l.ring.Full() {
			l.ring.DropHead()
		}
		_ = l.ring.Enqueue(b)
	}
	return len(p), nil
}

// Dump returns a copy of the accumulated log, oldest byte first.
func (l *Log) Dump() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Snapshot()
}

// Size returns the current log size in bytes.
func (l *Log) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Count()
}

// Clear discards the accumulated log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring.Reset()
}

// OperatorCommand dispatches one of DUMP/SIZE/CLEAR/HELP against log,
// writing a response to w.
func OperatorCommand(cmd string, log *Log, w io.Writer) error {
	switch cmd {
	case "DUMP":
		_, err := w.Write(log.Dump())
		return err
	case "SIZE":
		_, err := fmt.Fprintf(w, "%d\n", log.Size())
		return err
	case "CLEAR":
		log.Clear()
		_, err := fmt.Fprintln(w, "OK")
		return err
	case "HELP":
		_, err := fmt.Fprintln(w, "commands: DUMP, SIZE, CLEAR, HELP")
		return err
	default:
		_, err := fmt.Fprintf(w, "unknown command: %s\n", cmd)
		return err
	}
}
