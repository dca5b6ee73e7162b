//go:build !windows

package serialport

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ControlPort is implemented by a Port whose device supports RTS/DTR
// line control. Callers type-assert for it rather than assuming every
// Transport exposes boot-mode control — e.g. a loopback or TCP
// transport never does.
type ControlPort interface {
	SetRTS(high bool) error
	SetDTR(high bool) error
}

// dtrBootDeassertDelay is the gap the source leaves between asserting
// BOOT and releasing it, long enough for the reset pulse to land
// first.
const dtrBootDeassertDelay = 10 * time.Millisecond

// SetRTS drives the RTS line. On the reference CH340K adapter this
// line is wired through an inverting stage, so "high" here means the
// weak-pullup released state and "low" means pulled to 0V — matching
// the source's set_rts_high/set_rts_low naming, not raw RS-232
// polarity.
func (p *Port) SetRTS(high bool) error {
	if p.dev == nil {
		return fmt.Errorf("%w: no control handle for %s", ErrSerialIO, p.path)
	}
	return setModemBit(p.dev.Fd(), unix.TIOCM_RTS, !high)
}

// SetDTR drives the DTR line, inverted the same way as SetRTS: "high"
// deasserts BOOT, "low" asserts it.
func (p *Port) SetDTR(high bool) error {
	if p.dev == nil {
		return fmt.Errorf("%w: no control handle for %s", ErrSerialIO, p.path)
	}
	return setModemBit(p.dev.Fd(), unix.TIOCM_DTR, !high)
}

func setModemBit(fd uintptr, bit int, assert bool) error {
	req := uint(unix.TIOCMBIC)
	if assert {
		req = unix.TIOCMBIS
	}
	if err := unix.IoctlSetPointerInt(int(fd), req, bit); err != nil {
		return fmt.Errorf("%w: modem control ioctl: %v", ErrSerialIO, err)
	}
	return nil
}

// EnterBootMode pulses BOOT and RESET in the sequence the source uses
// to drop a freshly reset MSPM0 into its ROM bootloader: assert BOOT,
// pulse RESET, then release BOOT once RESET is back high.
func EnterBootMode(p ControlPort) error {
	if err := p.SetDTR(false); err != nil {
		return err
	}
	if err := p.SetRTS(false); err != nil {
		return err
	}
	if err := p.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(dtrBootDeassertDelay)
	if err := p.SetDTR(true); err != nil {
		return err
	}
	return nil
}
