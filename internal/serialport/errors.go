package serialport

import "errors"

var (
	ErrSerialOpen = errors.New("serialport: open failed")
	ErrSerialIO   = errors.New("serialport: i/o failed")
)
