// Package image holds the normalized firmware image representation:
// 8-byte-aligned, length-bounded Segments in parse order, the erase
// planner that derives the flash pages covering them, and the interim
// .flash persisted-image format.
package image

// Segment is a contiguous, aligned block of firmware bytes with a
// start address. Invariants: Start is 8-byte aligned; len(Bytes) > 0;
// len(Bytes) % 8 == 0 (these three enforced by Normalize); len(Bytes)
// <= 1024 (guaranteed by hexfile.Parse's segment cap; Normalize does
// not check it).
type Segment struct {
	Start uint32
	Bytes []byte
}

// End returns the address one past the last byte of the segment.
func (s Segment) End() uint32 { return s.Start + uint32(len(s.Bytes)) }

// Image is an ordered sequence of Segments in the order they were
// produced by parsing. Segments need not be globally sorted and may
// be non-contiguous, but must never overlap.
type Image struct {
	Segments []Segment
}

// TotalBytes sums the payload length across all segments.
func (img Image) TotalBytes() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Bytes)
	}
	return n
}
