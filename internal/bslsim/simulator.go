// Package bslsim implements the device side of the BSL wire protocol:
// a loopback mirror good enough to exercise bslclient end to end
// without hardware.
package bslsim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/mspm0bsl/mspm0boot/internal/bslcrc"
	"github.com/mspm0bsl/mspm0boot/internal/bslframe"
	"github.com/mspm0bsl/mspm0boot/internal/logging"
	"github.com/mspm0bsl/mspm0boot/internal/metrics"
)

// Fixed DeviceInfo constants the simulator reports, per spec §6.2.
// max_buffer_size is the simulator's own value, distinct from the
// ≥0x0400 floor a real device must merely satisfy.
const (
	simCmdInterpVersion   uint16 = 0x0100
	simBuildID            uint16 = 0x0100
	simAppVersion         uint32 = 0x00000000
	simPluginVersion      uint16 = 0x0001
	simMaxBufferSize      uint16 = 0x06C0
	simBufferStartAddress uint32 = 0x20000160
	simBcrID              uint32 = 0x00000001
	simBslID              uint32 = 0x00000001
)

// Simulator holds the single piece of mutable state a session can
// observe: the bytes programmed so far, used to answer standalone
// verification (0x26) without retransmitting data.
type Simulator struct {
	mu         sync.Mutex
	programmed []byte
	log        *slog.Logger
}

// New returns an empty Simulator.
func New() *Simulator {
	return &Simulator{log: logging.L()}
}

// ProgrammedBytes returns a copy of the bytes accepted so far via 0x20.
func (s *Simulator) ProgrammedBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.programmed...)
}

// Serve reads command frames from conn and writes responses back on
// it until conn.Read returns an error. A CRC-invalid or otherwise
// malformed frame is logged and discarded with no reply, per spec
// §4.7's framing recovery rule. io.EOF ends the loop without error.
func (s *Simulator) Serve(conn io.ReadWriter) error {
	buf := &bytes.Buffer{}
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			bslframe.DecodeCommandStream(buf, func(cmd bslframe.Command) {
				resp := s.dispatch(cmd)
				if resp == nil {
					return
				}
				if _, werr := conn.Write(resp); werr != nil {
					s.log.Error("bslsim_write_failed", "error", werr)
				}
			}, func() {
				metrics.IncMalformedSimFrame()
				s.log.Warn("bslsim_frame_discarded")
			})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// dispatch handles one accepted command frame and returns the bytes
// to write back, or nil for "no reply".
func (s *Simulator) dispatch(cmd bslframe.Command) []byte {
	switch cmd.Cmd {
	case bslframe.CmdConnect:
		return bslframe.EncodeAck()
	case bslframe.CmdGetDeviceInfo:
		return bslframe.EncodeStructured(bslframe.RespDeviceInfo, s.deviceInfoPayload())
	case bslframe.CmdUnlock:
		return coreMessage(0x00)
	case bslframe.CmdErasePage:
		return coreMessage(0x00)
	case bslframe.CmdProgramData:
		return s.handleProgram(cmd.Payload)
	case bslframe.CmdStandaloneVfy:
		return s.handleVerify(cmd.Payload)
	case bslframe.CmdStartApp:
		return bslframe.EncodeAck()
	default:
		s.log.Warn("bslsim_unhandled_command", "cmd", cmd.Cmd, "payload", logging.TruncateHex(cmd.Payload, 32))
		return nil
	}
}

func (s *Simulator) deviceInfoPayload() []byte {
	buf := make([]byte, 0, 24)
	buf = appendLE16(buf, simCmdInterpVersion)
	buf = appendLE16(buf, simBuildID)
	buf = appendLE32(buf, simAppVersion)
	buf = appendLE16(buf, simPluginVersion)
	buf = appendLE16(buf, simMaxBufferSize)
	buf = appendLE32(buf, simBufferStartAddress)
	buf = appendLE32(buf, simBcrID)
	buf = appendLE32(buf, simBslID)
	return buf
}

// handleProgram implements 0x20: append payload[4:] to programmed
// bytes, rejecting a misaligned address or a non-multiple-of-8 data
// length with a log and no reply.
func (s *Simulator) handleProgram(payload []byte) []byte {
	if len(payload) < 4 {
		s.log.Warn("bslsim_program_short_payload", "len", len(payload))
		return nil
	}
	addr := binary.LittleEndian.Uint32(payload[:4])
	data := payload[4:]
	if addr%8 != 0 {
		s.log.Warn("bslsim_program_misaligned_addr", "addr", addr)
		return nil
	}
	if len(data)%8 != 0 {
		s.log.Warn("bslsim_program_bad_length", "len", len(data))
		return nil
	}
	s.mu.Lock()
	s.programmed = append(s.programmed, data...)
	s.mu.Unlock()
	return coreMessage(0x00)
}

// handleVerify implements 0x26: CRC-32 over the first length bytes of
// programmed_bytes starting at offset 0. The request's address field
// is accepted but unused, matching the source's own verify semantics.
func (s *Simulator) handleVerify(payload []byte) []byte {
	if len(payload) < 8 {
		s.log.Warn("bslsim_verify_short_payload", "len", len(payload))
		return nil
	}
	length := binary.LittleEndian.Uint32(payload[4:8])
	s.mu.Lock()
	n := uint32(len(s.programmed))
	if length > n {
		length = n
	}
	span := append([]byte(nil), s.programmed[:length]...)
	s.mu.Unlock()
	crc := bslcrc.Sum(span)
	return bslframe.EncodeStructured(bslframe.RespVerify, crc[:])
}

func coreMessage(status byte) []byte {
	return bslframe.EncodeStructured(bslframe.RespCoreMessage, []byte{status})
}

func appendLE16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendLE32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
