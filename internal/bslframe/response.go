package bslframe

import (
	"bytes"
	"encoding/binary"

	"github.com/mspm0bsl/mspm0boot/internal/bslcrc"
)

// Response types, per spec's wire protocol table.
const (
	RespDeviceInfo  byte = 0x19
	RespVerify      byte = 0x32
	RespCoreMessage byte = 0x3B
)

// ResponseKind tags the variant held by a Response. Responses are a
// tagged union over {Ack, DeviceInfo, CoreMessage, Verify} keyed by
// the wire response-type byte; this is modeled as a flat struct with
// a kind discriminant rather than an interface hierarchy.
type ResponseKind int

const (
	KindAck ResponseKind = iota
	KindDeviceInfo
	KindCoreMessage
	KindVerify
)

// Response is a decoded inbound response frame (device -> host).
type Response struct {
	Kind     ResponseKind
	RespType byte
	Payload  []byte
}

// CoreStatus returns the status byte of a CoreMessage response.
func (r Response) CoreStatus() (byte, bool) {
	if r.Kind != KindCoreMessage || len(r.Payload) < 1 {
		return 0, false
	}
	return r.Payload[0], true
}

// VerifyCRC returns the 4-byte CRC carried by a Verify response.
func (r Response) VerifyCRC() ([4]byte, bool) {
	var crc [4]byte
	if r.Kind != KindVerify || len(r.Payload) < 4 {
		return crc, false
	}
	copy(crc[:], r.Payload[:4])
	return crc, true
}

// EncodeAck builds the single-byte ACK response sent for 0x12/0x40.
func EncodeAck() []byte { return []byte{0x00} }

// EncodeStructured builds a structured response frame:
// 0x00 || 0x08 || le16(len(payload)+1) || respType || payload || crc32(respType||payload).
func EncodeStructured(respType byte, payload []byte) []byte {
	length := len(payload) + 1
	buf := make([]byte, 0, 4+length+4)
	buf = append(buf, 0x00, 0x08)
	buf = appendLE16(buf, uint16(length))
	buf = append(buf, respType)
	buf = append(buf, payload...)
	crc := bslcrc.Sum(buf[4:])
	return append(buf, crc[:]...)
}

// StructuredLength inspects the first 4 bytes of a buffered structured
// response and returns the total frame length (header through CRC). ok
// is false if fewer than 4 bytes are available yet.
func StructuredLength(data []byte) (total int, ok bool) {
	if len(data) < 4 {
		return 0, false
	}
	length := int(binary.LittleEndian.Uint16(data[2:4]))
	return 8 + length, true
}

// DecodeResponse parses a single, already fully-buffered response: either
// the 1-byte ACK or a complete structured frame. Callers are expected to
// have already determined frame completeness (ACK = 1 byte, structured =
// StructuredLength(data) bytes) before calling this, per spec §5's
// length-driven completion rule.
func DecodeResponse(data []byte) (Response, error) {
	if len(data) == 0 {
		return Response{}, ErrFrameTooShort
	}
	if len(data) == 1 {
		if data[0] == 0x00 {
			return Response{Kind: KindAck}, nil
		}
		return Response{}, ErrBadLength
	}
	if len(data) < 8 || data[0] != 0x00 || data[1] != 0x08 {
		return Response{}, ErrBadLength
	}
	length := int(binary.LittleEndian.Uint16(data[2:4]))
	total := 8 + length
	if len(data) != total {
		return Response{}, ErrBadLength
	}
	crcSpan := data[4 : 4+length]
	trailing := data[4+length:]
	calc := bslcrc.Sum(crcSpan)
	if !bytes.Equal(calc[:], trailing) {
		return Response{}, ErrCrcMismatch
	}
	respType := crcSpan[0]
	payload := append([]byte(nil), crcSpan[1:]...)
	resp := Response{RespType: respType, Payload: payload}
	switch respType {
	case RespDeviceInfo:
		resp.Kind = KindDeviceInfo
	case RespVerify:
		resp.Kind = KindVerify
	case RespCoreMessage:
		resp.Kind = KindCoreMessage
	default:
		resp.Kind = KindCoreMessage // unknown types surface like a core message; status byte, if any, is verbatim
	}
	return resp, nil
}
