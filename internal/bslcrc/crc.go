// Package bslcrc computes the CRC-32 checksum used to trail every BSL
// wire frame and to answer the simulator's standalone verification
// command.
package bslcrc

import "hash/crc32"

// Sum returns the CRC-32 (reflected input/output, polynomial
// 0xEDB88320, initial value 0xFFFFFFFF, final XOR 0xFFFFFFFF) of span,
// encoded little-endian. This is the IEEE 802.3 CRC-32 variant, which
// hash/crc32's IEEETable implements exactly.
func Sum(span []byte) [4]byte {
	v := crc32.ChecksumIEEE(span)
	return [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Append computes Sum(span) and returns span with the 4 CRC bytes appended.
func Append(span []byte) []byte {
	c := Sum(span)
	return append(span, c[:]...)
}
