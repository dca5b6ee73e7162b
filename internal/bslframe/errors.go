package bslframe

import "errors"

// Sentinel errors for frame decoding, classified via errors.Is at call sites.
var (
	ErrFrameTooShort = errors.New("bslframe: frame too short")
	ErrBadLength     = errors.New("bslframe: bad length field")
	ErrCrcMismatch   = errors.New("bslframe: crc mismatch")
)
