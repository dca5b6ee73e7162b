package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/mspm0bsl/mspm0boot/internal/bslframe"
)

// verifyTransport is the minimal surface verify-sim needs; both
// *serialport.Port and net.Conn satisfy it.
type verifyTransport interface {
	io.Writer
	io.Reader
	SetReadDeadline(t time.Time) error
}

const verifyTimeout = 2 * time.Second

// requestStandaloneVerify sends a 0x26 standalone-verification request
// against a running simulator and returns the CRC-32 it reports. This
// only ever talks to mspm0boot sim; real hardware is out of scope.
func requestStandaloneVerify(tr verifyTransport, addr, length uint32) ([4]byte, error) {
	var zero [4]byte
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[:4], addr)
	binary.LittleEndian.PutUint32(payload[4:], length)

	frame := bslframe.BuildCommand(bslframe.CmdStandaloneVfy, payload)
	if _, err := tr.Write(frame); err != nil {
		return zero, fmt.Errorf("writing verify request: %w", err)
	}

	deadline := time.Now().Add(verifyTimeout)
	if err := tr.SetReadDeadline(deadline); err != nil {
		return zero, fmt.Errorf("setting read deadline: %w", err)
	}
	header, err := readFullN(tr, 4, deadline)
	if err != nil {
		return zero, fmt.Errorf("reading verify response header: %w", err)
	}
	total, ok := bslframe.StructuredLength(header)
	if !ok {
		return zero, fmt.Errorf("short verify response header")
	}
	rest, err := readFullN(tr, total-4, deadline)
	if err != nil {
		return zero, fmt.Errorf("reading verify response body: %w", err)
	}
	resp, err := bslframe.DecodeResponse(append(header, rest...))
	if err != nil {
		return zero, fmt.Errorf("decoding verify response: %w", err)
	}
	crc, ok := resp.VerifyCRC()
	if !ok {
		return zero, fmt.Errorf("response was not a verify result")
	}
	return crc, nil
}

func readFullN(tr verifyTransport, n int, deadline time.Time) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := tr.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(tr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
