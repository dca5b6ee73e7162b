package bslframe

import (
	"bytes"
	"fmt"
)

// SelfCheck reproduces the literal sanity vector from the original
// implementation's own startup self-test: building an unlock command
// (header 0x80, command 0x21, 32 bytes of 0xFF) must reproduce an
// exact, hand-verified byte sequence. It exists to catch a broken CRC
// engine or frame layout before any serial I/O is attempted.
func SelfCheck() error {
	payload := bytes.Repeat([]byte{0xFF}, 32)
	got := BuildCommand(CmdUnlock, payload)

	want := make([]byte, 0, 40)
	want = append(want, 0x80, 0x21, 0x00, 0x21)
	want = append(want, payload...)
	want = append(want, 0x02, 0xAA, 0xF0, 0x3D)

	if !bytes.Equal(got, want) {
		return fmt.Errorf("bslframe: sanity check failed: got % X, want % X", got, want)
	}
	return nil
}
