package hexfile

import (
	"bytes"
	"strings"
	"testing"
)

func TestParse_MinimalProgram(t *testing.T) {
	src := ":0800000000010203040506077C\n:00000001FF\n"
	segs, err := Parse(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Start != 0 {
		t.Fatalf("start = %#x, want 0", segs[0].Start)
	}
	want := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	if !bytes.Equal(segs[0].Bytes, want) {
		t.Fatalf("bytes = % X, want % X", segs[0].Bytes, want)
	}
}

func TestParse_NonContiguousSplit(t *testing.T) {
	var b strings.Builder
	b.WriteString(":08000000" + strings.Repeat("11", 8) + "00\n")
	b.WriteString(":08010000" + strings.Repeat("22", 8) + "00\n")
	b.WriteString(":00000001FF\n")
	segs, err := Parse(strings.NewReader(b.String()), nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Start != 0x0000 || segs[1].Start != 0x0100 {
		t.Fatalf("unexpected starts: %#x %#x", segs[0].Start, segs[1].Start)
	}
}

func TestParse_SegmentCappedAt1KiB(t *testing.T) {
	var b strings.Builder
	total := 1032
	written := 0
	addr := 0
	for written < total {
		n := 16
		if total-written < n {
			n = total - written
		}
		b.WriteString(":" + hexByte(n) + hexWord(addr) + "00" + strings.Repeat("A5", n) + "00\n")
		addr += n
		written += n
	}
	b.WriteString(":00000001FF\n")
	segs, err := Parse(strings.NewReader(b.String()), nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if len(segs[0].Bytes) != 1024 {
		t.Fatalf("segment 0 length = %d, want 1024", len(segs[0].Bytes))
	}
	if segs[1].Start != 0x400 || len(segs[1].Bytes) != 8 {
		t.Fatalf("segment 1 = start %#x len %d, want start 0x400 len 8", segs[1].Start, len(segs[1].Bytes))
	}
}

func TestParse_ExactMultipleOf1KiBYieldsNoEmptyTrailingSegment(t *testing.T) {
	var b strings.Builder
	total := 1024
	written := 0
	addr := 0
	for written < total {
		n := 16
		if total-written < n {
			n = total - written
		}
		b.WriteString(":" + hexByte(n) + hexWord(addr) + "00" + strings.Repeat("A5", n) + "00\n")
		addr += n
		written += n
	}
	b.WriteString(":00000001FF\n")
	segs, err := Parse(strings.NewReader(b.String()), nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if len(segs[0].Bytes) != 1024 {
		t.Fatalf("segment 0 length = %d, want 1024", len(segs[0].Bytes))
	}
}

func TestParse_ExtendedLinearAddress(t *testing.T) {
	src := ":020000040800F2\n:0800000011223344556677881E\n:00000001FF\n"
	segs, err := Parse(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Start != 0x08000000 {
		t.Fatalf("start = %#010x, want 0x08000000", segs[0].Start)
	}
}

func TestParse_SkipsNonColonLines(t *testing.T) {
	var diags []string
	src := "; a comment\n\n:0800000000010203040506077C\n:00000001FF\n"
	segs, err := Parse(strings.NewReader(src), func(s string) { diags = append(diags, s) })
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if len(diags) == 0 {
		t.Fatalf("expected diagnostics for skipped lines")
	}
}

func TestParse_UnknownRecordTypeWarns(t *testing.T) {
	var diags []string
	src := ":00000002FE\n:0800000000010203040506077C\n:00000001FF\n"
	segs, err := Parse(strings.NewReader(src), func(s string) { diags = append(diags, s) })
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for the unknown record type")
	}
}

// hexByte/hexWord are tiny test-only helpers to build record headers
// without hand-writing each hex digit.
func hexByte(v int) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[(v>>4)&0xF], digits[v&0xF]})
}

func hexWord(v int) string {
	return hexByte((v >> 8) & 0xFF) + hexByte(v&0xFF)
}
