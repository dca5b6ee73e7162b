package image

import "github.com/mspm0bsl/mspm0boot/internal/hexfile"

const alignment = 8

// Normalize converts raw parser segments into the Image model,
// enforcing the Segment invariants of spec §3: it rejects a
// misaligned start address, rejects an empty segment, and pads the
// tail of any segment whose length isn't a multiple of 8 with 0xFF up
// to the next multiple of 8. It does not sort, merge, or reorder
// segments — their parse order is the order used for programming.
func Normalize(raw []hexfile.RawSegment) (Image, error) {
	segs := make([]Segment, 0, len(raw))
	for _, r := range raw {
		if r.Start%alignment != 0 {
			return Image{}, &MisalignedSegmentError{Addr: r.Start}
		}
		if len(r.Bytes) == 0 {
			return Image{}, &EmptySegmentError{Addr: r.Start}
		}
		data := r.Bytes
		if rem := len(data) % alignment; rem != 0 {
			pad := alignment - rem
			padded := make([]byte, len(data)+pad)
			copy(padded, data)
			for i := len(data); i < len(padded); i++ {
				padded[i] = 0xFF
			}
			data = padded
		}
		segs = append(segs, Segment{Start: r.Start, Bytes: data})
	}
	return Image{Segments: segs}, nil
}

// CheckNoOverlap validates the non-overlap invariant across all
// segments of img, independent of their relative order.
func CheckNoOverlap(img Image) error {
	for i := 0; i < len(img.Segments); i++ {
		a := img.Segments[i]
		for j := i + 1; j < len(img.Segments); j++ {
			b := img.Segments[j]
			if a.Start < b.End() && b.Start < a.End() {
				return &OverlapError{A: a, B: b}
			}
		}
	}
	return nil
}
