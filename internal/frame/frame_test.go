package frame

import (
	"testing"

	"pgregory.net/rapid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := byte(rapid.IntRange(0, 255).Draw(t, "src"))
		dest := byte(rapid.IntRange(0, 255).Draw(t, "dest"))
		relay := rapid.Bool().Draw(t, "relay")
		n := rapid.IntRange(0, MaxPayload).Draw(t, "len")
		payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "payload")

		buf, err := Encode(src, dest, payload, relay)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Src != src || got.Dest != dest || got.RelayRequest != relay {
			t.Fatalf("header mismatch: got %+v", got)
		}
		if len(got.Payload) != len(payload) {
			t.Fatalf("payload length mismatch: got %d want %d", len(got.Payload), len(payload))
		}
		for i := range payload {
			if got.Payload[i] != payload[i] {
				t.Fatalf("payload mismatch at %d", i)
			}
		}
	})
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	if _, err := Encode(0, 1, make([]byte, MaxPayload+1), false); err == nil {
		t.Fatal("expected error for oversize payload")
	}
}

func TestDecodeRejectsBadHeader(t *testing.T) {
	if _, err := Decode([]byte{0x00, 1, 2, 0}); err != ErrInvalidFrame {
		t.Fatalf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestExtractMAVLinkFieldsV1(t *testing.T) {
	buf := []byte{0xFE, 9, 5, 1, 7, 30, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	f, err := ExtractMAVLinkFields(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Seq != 5 || f.SysID != 1 || f.MsgID != 30 {
		t.Fatalf("unexpected fields: %+v", f)
	}
}

func TestExtractMAVLinkFieldsV2(t *testing.T) {
	buf := make([]byte, 12)
	buf[0] = 0xFD
	buf[4] = 42 // seq
	buf[5] = 3  // sys id
	buf[9] = 33 // msg id
	f, err := ExtractMAVLinkFields(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Seq != 42 || f.SysID != 3 || f.MsgID != 33 {
		t.Fatalf("unexpected fields: %+v", f)
	}
}

func TestScannerFindsCompleteV1Frame(t *testing.T) {
	s := NewScanner()
	frame := []byte{0xFE, 3, 0, 1, 30, 0, 9, 9, 9, 0, 0}
	s.Feed(frame)
	res, n := s.Scan()
	if res != ScanComplete {
		t.Fatalf("expected ScanComplete, got %v", res)
	}
	got := s.Take(n)
	if len(got) != len(frame) {
		t.Fatalf("expected full frame length %d, got %d", len(frame), len(got))
	}
}

func TestScannerSkipsGarbagePrefix(t *testing.T) {
	s := NewScanner()
	s.Feed([]byte{0x00, 0x01, 0xFE, 3, 0, 1, 30, 0, 9, 9, 9, 0, 0})
	res, _ := s.Scan()
	if res != ScanSkip {
		t.Fatalf("expected ScanSkip, got %v", res)
	}
	res, n := s.Scan()
	if res != ScanComplete {
		t.Fatalf("expected ScanComplete after skip, got %v", res)
	}
	if n != 11 {
		t.Fatalf("unexpected length %d", n)
	}
}

func TestScannerNeedsMoreOnTruncatedFrame(t *testing.T) {
	s := NewScanner()
	s.Feed([]byte{0xFE, 9, 0, 1, 30, 0})
	res, _ := s.Scan()
	if res != ScanIncompleteNeedMore {
		t.Fatalf("expected ScanIncompleteNeedMore, got %v", res)
	}
}
