package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	interimHeaderSize = 256
	tagAddr           = "ADDR"
	tagData           = "DATA"
)

var errInterimTag = errors.New("image: interim file missing expected tag")

// EncodeInterim writes img in the §6.4 interim .flash layout: a
// zero-filled reserved header, an "ADDR" directory of (addr, length)
// pairs, and a "DATA" section holding each segment's payload in
// order.
func EncodeInterim(w io.Writer, img Image) error {
	header := make([]byte, interimHeaderSize)
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := io.WriteString(w, tagAddr); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(img.Segments))); err != nil {
		return err
	}
	for _, seg := range img.Segments {
		if err := binary.Write(w, binary.LittleEndian, seg.Start); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(seg.Bytes))); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, tagData); err != nil {
		return err
	}
	for _, seg := range img.Segments {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(seg.Bytes))); err != nil {
			return err
		}
		if _, err := w.Write(seg.Bytes); err != nil {
			return err
		}
	}
	return nil
}

// DecodeInterim parses the §6.4 interim .flash layout back into an
// Image, discarding the reserved header.
func DecodeInterim(r io.Reader) (Image, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return Image{}, err
	}
	if len(buf) < interimHeaderSize+len(tagAddr) {
		return Image{}, errInterimTag
	}
	pos := interimHeaderSize
	if string(buf[pos:pos+len(tagAddr)]) != tagAddr {
		return Image{}, errInterimTag
	}
	pos += len(tagAddr)

	if len(buf) < pos+2 {
		return Image{}, errInterimTag
	}
	count := binary.LittleEndian.Uint16(buf[pos:])
	pos += 2

	type dirEntry struct {
		start  uint32
		length uint16
	}
	dir := make([]dirEntry, count)
	for i := range dir {
		if len(buf) < pos+6 {
			return Image{}, errInterimTag
		}
		dir[i].start = binary.LittleEndian.Uint32(buf[pos:])
		dir[i].length = binary.LittleEndian.Uint16(buf[pos+4:])
		pos += 6
	}

	if len(buf) < pos+len(tagData) {
		return Image{}, errInterimTag
	}
	if string(buf[pos:pos+len(tagData)]) != tagData {
		return Image{}, errInterimTag
	}
	pos += len(tagData)

	img := Image{Segments: make([]Segment, 0, count)}
	for _, e := range dir {
		if len(buf) < pos+2 {
			return Image{}, errInterimTag
		}
		length := binary.LittleEndian.Uint16(buf[pos:])
		pos += 2
		if int(length) != int(e.length) {
			return Image{}, errInterimTag
		}
		if len(buf) < pos+int(length) {
			return Image{}, errInterimTag
		}
		data := append([]byte(nil), buf[pos:pos+int(length)]...)
		pos += int(length)
		img.Segments = append(img.Segments, Segment{Start: e.start, Bytes: data})
	}
	return img, nil
}

// reservedHeaderIsZero reports whether buf looks like a well-formed
// interim file's reserved header (used only by tests to assert the
// encoder zero-fills it rather than leaving garbage).
func reservedHeaderIsZero(buf []byte) bool {
	return bytes.Equal(buf[:interimHeaderSize], make([]byte, interimHeaderSize))
}
