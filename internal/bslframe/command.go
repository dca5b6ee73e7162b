// Package bslframe implements the framed, CRC-protected wire protocol
// shared by the BSL client and the simulator: building outbound
// command frames, parsing inbound command frames off a growing byte
// buffer, and building/parsing response frames.
package bslframe

import (
	"bytes"
	"encoding/binary"

	"github.com/mspm0bsl/mspm0boot/internal/bslcrc"
)

// Command commands, per spec's wire protocol table.
const (
	CmdConnect        byte = 0x12
	CmdGetDeviceInfo  byte = 0x19
	CmdProgramData    byte = 0x20
	CmdUnlock         byte = 0x21
	CmdErasePage      byte = 0x23
	CmdStandaloneVfy  byte = 0x26
	CmdStartApp       byte = 0x40
	defaultHeaderByte byte = 0x80
)

// Command is a decoded outbound/inbound "command" frame (host -> device).
type Command struct {
	Header  byte
	Cmd     byte
	Payload []byte
}

// EncodeCommand builds a command frame:
// header || le16(len(payload)+1) || cmd || payload || crc32(cmd||payload).
func EncodeCommand(header, cmd byte, payload []byte) []byte {
	length := len(payload) + 1
	buf := make([]byte, 0, 3+length+4)
	buf = append(buf, header)
	buf = appendLE16(buf, uint16(length))
	buf = append(buf, cmd)
	buf = append(buf, payload...)
	crc := bslcrc.Sum(buf[3:])
	return append(buf, crc[:]...)
}

// BuildCommand is a thin convenience wrapper using the protocol's fixed
// 0x80 header byte, matching every client-issued command in spec §4.6.
func BuildCommand(cmd byte, payload []byte) []byte {
	return EncodeCommand(defaultHeaderByte, cmd, payload)
}

// DecodeCommandStream reads complete command frames out of in, invoking
// onFrame for each. Frames whose trailing CRC doesn't match the
// recomputed CRC over cmd||payload are discarded; onMalformed (if
// non-nil) is invoked once per discarded candidate. Bytes that can't
// start a frame (wrong header byte) are dropped one at a time to
// resynchronize, mirroring a preamble-aligned streaming decoder.
func DecodeCommandStream(in *bytes.Buffer, onFrame func(Command), onMalformed func()) {
	const minHeaderBytes = 3 // header + 2-byte length
	for {
		data := in.Bytes()
		if len(data) < minHeaderBytes {
			return
		}
		if data[0] != defaultHeaderByte {
			in.Next(1)
			continue
		}
		length := int(binary.LittleEndian.Uint16(data[1:3]))
		if length < 1 {
			if onMalformed != nil {
				onMalformed()
			}
			in.Next(1)
			continue
		}
		total := minHeaderBytes + length + 4
		if len(data) < total {
			return
		}
		crcSpan := data[3 : 3+length]
		trailing := data[3+length : total]
		calc := bslcrc.Sum(crcSpan)
		if !bytes.Equal(calc[:], trailing) {
			if onMalformed != nil {
				onMalformed()
			}
			in.Next(total)
			continue
		}
		cmd := Command{
			Header:  data[0],
			Cmd:     crcSpan[0],
			Payload: append([]byte(nil), crcSpan[1:]...),
		}
		onFrame(cmd)
		in.Next(total)
	}
}

func appendLE16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendLE32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
