package hostbridge

import (
	"bytes"
	"testing"
)

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(payload []byte, dest byte) bool {
	f.sent = append(f.sent, payload)
	return true
}

func TestBridgeForwardsCompleteDatagram(t *testing.T) {
	s := &fakeSender{}
	b := New(&bytes.Buffer{}, s, 0, NewLog(1024))

	datagram := []byte{0xFE, 2, 0, 1, 30, 0, 9, 9, 0, 0}
	b.Feed(datagram)

	if len(s.sent) != 1 {
		t.Fatalf("expected 1 forwarded datagram, got %d", len(s.sent))
	}
}

func TestLogRingDiscardsOldest(t *testing.T) {
	l := NewLog(4)
	l.Write([]byte("abcdef"))
	if got := l.Dump(); string(got) != "cdef" {
		t.Fatalf("expected ring to keep last 4 bytes, got %q", got)
	}
}

func TestOperatorCommands(t *testing.T) {
	l := NewLog(16)
	l.Write([]byte("hi"))

	var out bytes.Buffer
	if err := OperatorCommand("SIZE", l, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "2\n" {
		t.Fatalf("unexpected SIZE output: %q", out.String())
	}

	out.Reset()
	if err := OperatorCommand("CLEAR", l, &out); err != nil {
		t.Fatal(err)
	}
	if l.Size() != 0 {
		t.Fatal("expected log cleared")
	}
}
