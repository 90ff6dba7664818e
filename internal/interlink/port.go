package interlink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Port wraps a physical UART carrying the C8 framed protocol between
// two co-located radio modules, the way internal/actuators opens a
// MAVLink serial connection, adapted to this package's frame format.
type Port struct {
	mu   sync.Mutex
	port serial.Port
}

// OpenPort opens the named serial port at baudRate for inter-module
// framing.
func OpenPort(name string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("interlink: failed to open serial port %s: %w", name, err)
	}
	return &Port{port: p}, nil
}

// Close closes the underlying serial port.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port.Close()
}

// WriteFrame encodes and writes a single frame in one call.
func (p *Port) WriteFrame(src, dest byte, payload []byte) error {
	buf, err := Encode(src, dest, payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.port.Write(buf)
	return err
}

// ReadLoop continuously reads bytes from the port and feeds them into
// r, invoking onFrame for every fully decoded frame, until the port is
// closed or readTimeout elapses with no data (the caller should retry
// by calling ReadLoop again to resume; a single call returns on the
// first read error).
func (p *Port) ReadLoop(r *Receiver, readTimeout time.Duration, onFrame func(Frame)) error {
	p.mu.Lock()
	_ = p.port.SetReadTimeout(readTimeout)
	p.mu.Unlock()

	buf := make([]byte, 64)
	for {
		n, err := p.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil // readTimeout elapsed with no data
		}
		now := time.Now()
		for _, f := range r.FeedBytes(buf[:n], now) {
			onFrame(f)
		}
	}
}
