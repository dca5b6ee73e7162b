package simserver

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen = errors.New("simserver: listen")
	ErrAccept = errors.New("simserver: accept")
)
