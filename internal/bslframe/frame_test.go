package bslframe

import (
	"bytes"
	"errors"
	"testing"
)

func TestSelfCheck(t *testing.T) {
	if err := SelfCheck(); err != nil {
		t.Fatalf("SelfCheck() = %v", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		header  byte
		cmd     byte
		payload []byte
	}{
		{"empty payload", 0x80, 0x12, nil},
		{"unlock payload", 0x80, 0x21, bytes.Repeat([]byte{0xFF}, 32)},
		{"one byte", 0x80, 0x20, []byte{0x01}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			encoded := EncodeCommand(c.header, c.cmd, c.payload)
			var buf bytes.Buffer
			buf.Write(encoded)
			var got Command
			var n int
			DecodeCommandStream(&buf, func(cmd Command) { got = cmd; n++ }, nil)
			if n != 1 {
				t.Fatalf("expected exactly 1 decoded frame, got %d", n)
			}
			if got.Header != c.header || got.Cmd != c.cmd {
				t.Fatalf("got header=%x cmd=%x, want header=%x cmd=%x", got.Header, got.Cmd, c.header, c.cmd)
			}
			if !bytes.Equal(got.Payload, c.payload) && !(len(got.Payload) == 0 && len(c.payload) == 0) {
				t.Fatalf("payload mismatch: got % X want % X", got.Payload, c.payload)
			}
		})
	}
}

func TestDecodeCommandStream_ChunkedAndResync(t *testing.T) {
	f1 := EncodeCommand(0x80, 0x12, nil)
	f2 := EncodeCommand(0x80, 0x19, nil)
	stream := append(append([]byte{0xAA, 0xBB}, f1...), f2...) // garbage prefix must be skipped

	var buf bytes.Buffer
	var got []Command
	malformed := 0
	chunks := []int{1, 3, 2, 100}
	i := 0
	for pos := 0; pos < len(stream); {
		n := chunks[i%len(chunks)]
		i++
		if pos+n > len(stream) {
			n = len(stream) - pos
		}
		buf.Write(stream[pos : pos+n])
		pos += n
		DecodeCommandStream(&buf, func(c Command) { got = append(got, c) }, func() { malformed++ })
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d (malformed=%d)", len(got), malformed)
	}
	if got[0].Cmd != 0x12 || got[1].Cmd != 0x19 {
		t.Fatalf("unexpected command order: %+v", got)
	}
}

func TestDecodeCommandStream_BadCRCDiscarded(t *testing.T) {
	f := EncodeCommand(0x80, 0x12, nil)
	f[len(f)-1] ^= 0xFF // flip last CRC byte
	var buf bytes.Buffer
	buf.Write(f)
	malformed := 0
	var got []Command
	DecodeCommandStream(&buf, func(c Command) { got = append(got, c) }, func() { malformed++ })
	if len(got) != 0 {
		t.Fatalf("expected no frames decoded from corrupted CRC, got %d", len(got))
	}
	if malformed != 1 {
		t.Fatalf("expected 1 malformed callback, got %d", malformed)
	}
}

func TestDecodeResponse_Ack(t *testing.T) {
	r, err := DecodeResponse(EncodeAck())
	if err != nil {
		t.Fatalf("DecodeResponse(ack) = %v", err)
	}
	if r.Kind != KindAck {
		t.Fatalf("got kind %v, want KindAck", r.Kind)
	}
}

func TestDecodeResponse_CoreMessage(t *testing.T) {
	encoded := EncodeStructured(RespCoreMessage, []byte{0x00})
	total, ok := StructuredLength(encoded)
	if !ok || total != len(encoded) {
		t.Fatalf("StructuredLength = %d,%v want %d,true", total, ok, len(encoded))
	}
	r, err := DecodeResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeResponse = %v", err)
	}
	status, ok := r.CoreStatus()
	if !ok || status != 0x00 {
		t.Fatalf("CoreStatus = %v,%v want 0,true", status, ok)
	}
}

func TestDecodeResponse_CrcMismatch(t *testing.T) {
	encoded := EncodeStructured(RespCoreMessage, []byte{0x00})
	encoded[len(encoded)-1] ^= 0xFF
	_, err := DecodeResponse(encoded)
	if !errors.Is(err, ErrCrcMismatch) {
		t.Fatalf("got %v, want ErrCrcMismatch", err)
	}
}

func TestDecodeResponse_TooShort(t *testing.T) {
	_, err := DecodeResponse(nil)
	if !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("got %v, want ErrFrameTooShort", err)
	}
}

func TestDecodeResponse_Verify(t *testing.T) {
	crc := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	encoded := EncodeStructured(RespVerify, crc)
	r, err := DecodeResponse(encoded)
	if err != nil {
		t.Fatalf("DecodeResponse = %v", err)
	}
	got, ok := r.VerifyCRC()
	if !ok || !bytes.Equal(got[:], crc) {
		t.Fatalf("VerifyCRC = % X,%v want % X,true", got, ok, crc)
	}
}
