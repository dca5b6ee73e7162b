package image

import "fmt"

// MisalignedSegmentError is returned when a parsed segment's start
// address is not 8-byte aligned.
type MisalignedSegmentError struct {
	Addr uint32
}

func (e *MisalignedSegmentError) Error() string {
	return fmt.Sprintf("image: segment at %#010x is not 8-byte aligned", e.Addr)
}

// EmptySegmentError is returned for a parsed segment carrying no bytes.
type EmptySegmentError struct {
	Addr uint32
}

func (e *EmptySegmentError) Error() string {
	return fmt.Sprintf("image: segment at %#010x is empty", e.Addr)
}

// OverlapError is returned when two segments in an Image overlap.
type OverlapError struct {
	A, B Segment
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("image: segment [%#010x,%#010x) overlaps [%#010x,%#010x)",
		e.A.Start, e.A.End(), e.B.Start, e.B.End())
}
