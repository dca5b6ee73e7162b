// Package bslclient drives a connected BSL device through its fixed
// command sequence: Connect, GetDeviceInfo, Unlock, Erase, Program,
// Start. Every error inside a session is fatal; nothing is retried.
package bslclient

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrConnectFailed       = errors.New("bslclient: connect failed")
	ErrInfoFailed          = errors.New("bslclient: get-device-info failed")
	ErrUnlockFailed        = errors.New("bslclient: unlock failed")
	ErrEraseFailed         = errors.New("bslclient: erase failed")
	ErrProgramFailed       = errors.New("bslclient: program failed")
	ErrStartFailed         = errors.New("bslclient: start failed")
	ErrUnexpectedDevice    = errors.New("bslclient: unexpected device info")
	ErrProtocolSequence    = errors.New("bslclient: response out of sequence")
	ErrResponseTimeout     = errors.New("bslclient: response timeout")
)

// CoreError reports a non-success core-message status returned during
// Unlock, Erase or Program, carrying the command byte, target address
// (zero for Unlock), and status code for diagnosis.
type CoreError struct {
	Cmd    byte
	Addr   uint32
	Status byte
}

func (e *CoreError) Error() string {
	return "bslclient: core status " + statusName(e.Status) + " for cmd 0x" + hexByte(e.Cmd) + " at addr 0x" + hexAddr(e.Addr)
}

// statusName resolves a core-message status byte to spec §4.6's table.
func statusName(status byte) string {
	switch status {
	case 0x00:
		return "success(0x00)"
	case 0x01:
		return "lock_error(0x01)"
	case 0x02:
		return "password_error(0x02)"
	case 0x05:
		return "invalid_memory_range(0x05)"
	case 0x0A:
		return "invalid_alignment(0x0A)"
	default:
		return "unknown(0x" + hexByte(status) + ")"
	}
}

const hexDigits = "0123456789abcdef"

func hexByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0xF]})
}

func hexAddr(a uint32) string {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[a&0xF]
		a >>= 4
	}
	return string(buf)
}
