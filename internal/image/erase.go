package image

// PageSize is the MSPM0 flash erase granularity in bytes.
const PageSize = 1024

// pageOf returns the page index containing addr.
func pageOf(addr uint32) uint32 { return addr / PageSize }

// ErasePlan returns the set of flash page base addresses that must be
// erased to cover img, de-duplicated while preserving first-seen order
// (matching the original's erase_block_list construction).
//
// The original programmer only erased the first and last page touched
// by each segment, silently skipping any pages in between; a segment
// spanning more than two pages left its interior pages unerased. This
// planner enumerates every page from the segment's first to its last,
// inclusive, fixing that gap.
func ErasePlan(img Image) []uint32 {
	seen := make(map[uint32]bool)
	var pages []uint32
	for _, seg := range img.Segments {
		if len(seg.Bytes) == 0 {
			continue
		}
		first := pageOf(seg.Start)
		last := pageOf(seg.End() - 1)
		for p := first; p <= last; p++ {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p*PageSize)
			}
		}
	}
	return pages
}
