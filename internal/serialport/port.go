// Package serialport opens the USB-UART line the BSL speaks over and
// adapts it to bslclient.Transport's deadline-bounded read contract,
// plus optional RTS/DTR control-line pulsing for boot-mode entry.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tarm/serial"
)

// byteReadTimeout bounds each underlying Read call. The Port loops
// short reads internally until data arrives or the caller's deadline
// (set via SetReadDeadline) passes, rather than relying on a single
// long blocking read.
const byteReadTimeout = 100 * time.Millisecond

// Port is a live connection to the BSL device's USB-UART.
type Port struct {
	sp       *serial.Port
	dev      *os.File // second handle on the same path, used only for RTS/DTR ioctls
	path     string
	deadline time.Time
}

// Open opens path at baud, matching the device's fixed-rate ROM BSL
// protocol. baud is typically 9600 for the MSPM0 ROM bootloader.
func Open(path string, baud int) (*Port, error) {
	cfg := &serial.Config{Name: path, Baud: baud, ReadTimeout: byteReadTimeout}
	sp, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerialOpen, path, err)
	}
	dev, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		// RTS/DTR control is best-effort: a device that can't be
		// reopened for ioctl access still works for data transfer.
		dev = nil
	}
	return &Port{sp: sp, dev: dev, path: path}, nil
}

// Write sends b on the line.
func (p *Port) Write(b []byte) (int, error) {
	n, err := p.sp.Write(b)
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %v", ErrSerialIO, p.path, err)
	}
	return n, nil
}

// SetReadDeadline records the absolute time by which Read must return
// something or give up with io.EOF, per bslclient.Transport.
func (p *Port) SetReadDeadline(t time.Time) error {
	p.deadline = t
	return nil
}

// Read blocks, polling the underlying port in byteReadTimeout slices,
// until data arrives or the deadline set by SetReadDeadline passes.
func (p *Port) Read(b []byte) (int, error) {
	for {
		n, err := p.sp.Read(b)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("%w: read %s: %v", ErrSerialIO, p.path, err)
		}
		if n > 0 {
			return n, nil
		}
		if !p.deadline.IsZero() && time.Now().After(p.deadline) {
			return 0, io.EOF
		}
	}
}

// Close releases both handles on the device.
func (p *Port) Close() error {
	if p.dev != nil {
		_ = p.dev.Close()
	}
	return p.sp.Close()
}
