package bslclient

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/mspm0bsl/mspm0boot/internal/bslframe"
	"github.com/mspm0bsl/mspm0boot/internal/metrics"
)

// Transport is the byte-level channel a Client drives. It is
// satisfied by a serial port wrapper, a net.Conn (used by the TCP
// simulator host and tests), or an in-process pipe.
type Transport interface {
	io.Writer
	io.Reader
	SetReadDeadline(t time.Time) error
}

const (
	connectTimeout  = 2 * time.Second
	identifyTimeout = 2 * time.Second
	unlockTimeout   = 2 * time.Second
	eraseTimeout    = 2 * time.Second
	programTimeout  = 2 * time.Second
	startTimeout    = 1 * time.Second
)

// sendCommand writes a single command frame to tr.
func sendCommand(tr Transport, cmd byte, payload []byte) error {
	frame := bslframe.BuildCommand(cmd, payload)
	if _, err := tr.Write(frame); err != nil {
		metrics.IncError(metrics.ErrSerialWrite)
		return fmt.Errorf("bslclient: write cmd 0x%02x: %w", cmd, err)
	}
	metrics.IncCommandSent()
	return nil
}

// recvAck reads exactly the 1-byte ACK expected for 0x12/0x40.
func recvAck(tr Transport, timeout time.Duration) error {
	buf, err := readFull(tr, 1, timeout)
	if err != nil {
		return err
	}
	if buf[0] != 0x00 {
		return fmt.Errorf("%w: ack byte = 0x%02x", ErrProtocolSequence, buf[0])
	}
	metrics.IncResponseReceived()
	return nil
}

// recvStructured reads a complete structured response frame, per the
// length-driven completion rule of spec §5: header+length (4 bytes)
// first, then exactly length+4 more bytes.
func recvStructured(tr Transport, timeout time.Duration) (bslframe.Response, error) {
	deadline := time.Now().Add(timeout)

	head, err := readFullDeadline(tr, 4, deadline)
	if err != nil {
		return bslframe.Response{}, err
	}
	total, ok := bslframe.StructuredLength(head)
	if !ok {
		return bslframe.Response{}, ErrProtocolSequence
	}
	rest, err := readFullDeadline(tr, total-4, deadline)
	if err != nil {
		return bslframe.Response{}, err
	}
	full := append(append([]byte(nil), head...), rest...)
	resp, err := bslframe.DecodeResponse(full)
	if err != nil {
		if errors.Is(err, bslframe.ErrCrcMismatch) {
			metrics.IncCrcFailure()
		}
		return bslframe.Response{}, err
	}
	metrics.IncResponseReceived()
	return resp, nil
}

func readFull(tr Transport, n int, timeout time.Duration) ([]byte, error) {
	return readFullDeadline(tr, n, time.Now().Add(timeout))
}

func readFullDeadline(tr Transport, n int, deadline time.Time) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := tr.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("bslclient: set read deadline: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(tr, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrResponseTimeout
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrResponseTimeout
		}
		return nil, fmt.Errorf("bslclient: read: %w", err)
	}
	return buf, nil
}

func le32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}
