package bslcrc

import "testing"

func TestSum_SanityVector(t *testing.T) {
	// From the original implementation's own self-test: CRC over
	// command(0x21) || 32 bytes of 0xFF must equal 02 AA F0 3D (LE).
	payload := append([]byte{0x21}, make([]byte, 32)...)
	for i := 1; i < len(payload); i++ {
		payload[i] = 0xFF
	}
	got := Sum(payload)
	want := [4]byte{0x02, 0xAA, 0xF0, 0x3D}
	if got != want {
		t.Fatalf("Sum() = % X, want % X", got, want)
	}
}

func TestSum_Empty(t *testing.T) {
	// CRC32 of empty input with this variant is 0 (init XOR final XOR cancel).
	got := Sum(nil)
	want := [4]byte{0x00, 0x00, 0x00, 0x00}
	if got != want {
		t.Fatalf("Sum(nil) = % X, want % X", got, want)
	}
}

func TestAppend(t *testing.T) {
	span := []byte{0x12, 0x34}
	out := Append(append([]byte{}, span...))
	if len(out) != len(span)+4 {
		t.Fatalf("Append length = %d, want %d", len(out), len(span)+4)
	}
	c := Sum(span)
	for i, b := range c {
		if out[len(span)+i] != b {
			t.Fatalf("Append trailing CRC mismatch at %d: got %x want %x", i, out[len(span)+i], b)
		}
	}
}
