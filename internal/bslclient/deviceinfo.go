package bslclient

import "encoding/binary"

// DeviceInfo is the decoded result of the GetDeviceInfo exchange, per
// spec §3.
type DeviceInfo struct {
	CmdInterpVersion    uint16
	BuildID             uint16
	AppVersion          uint32
	PluginVersion       uint16
	MaxBufferSize       uint16
	BufferStartAddress  uint32
	BcrID               uint32
	BslID               uint32
}

const deviceInfoMinLen = 24

// Expected DeviceInfo constants per spec §6.2. MaxBufferSize has a
// floor rather than an exact match; the simulator reports 0x06C0.
const (
	expectedCmdInterpVersion   uint16 = 0x0100
	expectedBuildID            uint16 = 0x0100
	expectedAppVersion         uint32 = 0x00000000
	expectedPluginVersion      uint16 = 0x0001
	minMaxBufferSize           uint16 = 0x0400
	expectedBufferStartAddress uint32 = 0x20000160
	expectedBcrID              uint32 = 0x00000001
	expectedBslID              uint32 = 0x00000001
)

// DecodeDeviceInfo decodes a GetDeviceInfo response payload. The
// payload must be at least 24 bytes; trailing bytes are ignored.
func DecodeDeviceInfo(payload []byte) (DeviceInfo, bool) {
	if len(payload) < deviceInfoMinLen {
		return DeviceInfo{}, false
	}
	return DeviceInfo{
		CmdInterpVersion:   binary.LittleEndian.Uint16(payload[0:2]),
		BuildID:            binary.LittleEndian.Uint16(payload[2:4]),
		AppVersion:         binary.LittleEndian.Uint32(payload[4:8]),
		PluginVersion:      binary.LittleEndian.Uint16(payload[8:10]),
		MaxBufferSize:      binary.LittleEndian.Uint16(payload[10:12]),
		BufferStartAddress: binary.LittleEndian.Uint32(payload[12:16]),
		BcrID:              binary.LittleEndian.Uint32(payload[16:20]),
		BslID:              binary.LittleEndian.Uint32(payload[20:24]),
	}, true
}

// Validate checks di against the expected constants of spec §6.2,
// returning a descriptive error naming the first mismatched field.
func (di DeviceInfo) Validate() error {
	switch {
	case di.CmdInterpVersion != expectedCmdInterpVersion:
		return fieldMismatch("cmd_interp_version", uint32(expectedCmdInterpVersion), uint32(di.CmdInterpVersion))
	case di.BuildID != expectedBuildID:
		return fieldMismatch("build_id", uint32(expectedBuildID), uint32(di.BuildID))
	case di.AppVersion != expectedAppVersion:
		return fieldMismatch("app_version", expectedAppVersion, di.AppVersion)
	case di.PluginVersion != expectedPluginVersion:
		return fieldMismatch("plugin_version", uint32(expectedPluginVersion), uint32(di.PluginVersion))
	case di.MaxBufferSize < minMaxBufferSize:
		return fieldMismatch("max_buffer_size(min)", uint32(minMaxBufferSize), uint32(di.MaxBufferSize))
	case di.BufferStartAddress != expectedBufferStartAddress:
		return fieldMismatch("buffer_start_address", expectedBufferStartAddress, di.BufferStartAddress)
	case di.BcrID != expectedBcrID:
		return fieldMismatch("bcr_id", expectedBcrID, di.BcrID)
	case di.BslID != expectedBslID:
		return fieldMismatch("bsl_id", expectedBslID, di.BslID)
	}
	return nil
}

func fieldMismatch(field string, want, got uint32) error {
	return &deviceInfoFieldError{field: field, want: want, got: got}
}

type deviceInfoFieldError struct {
	field    string
	want, got uint32
}

func (e *deviceInfoFieldError) Error() string {
	return "bslclient: " + e.field + " = 0x" + hexAddr(e.got) + ", want 0x" + hexAddr(e.want)
}

func (e *deviceInfoFieldError) Unwrap() error { return ErrUnexpectedDevice }
