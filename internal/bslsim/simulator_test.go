package bslsim

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/mspm0bsl/mspm0boot/internal/bslcrc"
	"github.com/mspm0bsl/mspm0boot/internal/bslframe"
)

// decodeOne feeds a single built command frame through the streaming
// decoder and returns the decoded Command, for dispatch-level tests
// that don't need a live connection.
func decodeOne(t *testing.T, frame []byte) bslframe.Command {
	t.Helper()
	var got bslframe.Command
	ok := false
	buf := bytes.NewBuffer(frame)
	bslframe.DecodeCommandStream(buf, func(c bslframe.Command) { got = c; ok = true }, nil)
	if !ok {
		t.Fatalf("frame did not decode")
	}
	return got
}

func TestSimulator_ConnectAndStartAck(t *testing.T) {
	sim := New()
	for _, cmd := range []byte{bslframe.CmdConnect, bslframe.CmdStartApp} {
		got := decodeOne(t, bslframe.BuildCommand(cmd, nil))
		resp := sim.dispatch(got)
		if !bytes.Equal(resp, bslframe.EncodeAck()) {
			t.Fatalf("cmd 0x%02x reply = % X, want ack", cmd, resp)
		}
	}
}

func TestSimulator_DeviceInfoReportsFixedConstants(t *testing.T) {
	sim := New()
	cmd := decodeOne(t, bslframe.BuildCommand(bslframe.CmdGetDeviceInfo, nil))
	resp := sim.dispatch(cmd)
	decoded, err := bslframe.DecodeResponse(resp)
	if err != nil {
		t.Fatalf("DecodeResponse() = %v", err)
	}
	if decoded.Kind != bslframe.KindDeviceInfo {
		t.Fatalf("kind = %v, want KindDeviceInfo", decoded.Kind)
	}
	if len(decoded.Payload) != 24 {
		t.Fatalf("payload len = %d, want 24", len(decoded.Payload))
	}
}

func TestSimulator_ProgramAndVerifyRoundTrip(t *testing.T) {
	sim := New()
	segs := [][]byte{
		bytes.Repeat([]byte{0x00}, 8),
		bytes.Repeat([]byte{0x01}, 8),
		bytes.Repeat([]byte{0x02}, 8),
	}
	addr := uint32(0)
	for _, data := range segs {
		payload := append(le32(addr), data...)
		cmd := decodeOne(t, bslframe.BuildCommand(bslframe.CmdProgramData, payload))
		resp := sim.dispatch(cmd)
		decoded, err := bslframe.DecodeResponse(resp)
		if err != nil {
			t.Fatalf("DecodeResponse() = %v", err)
		}
		status, ok := decoded.CoreStatus()
		if !ok || status != 0x00 {
			t.Fatalf("program status = %v ok=%v, want 0x00 true", status, ok)
		}
		addr += uint32(len(data))
	}

	verifyPayload := append(le32(0), le32(24)...)
	cmd := decodeOne(t, bslframe.BuildCommand(bslframe.CmdStandaloneVfy, verifyPayload))
	resp := sim.dispatch(cmd)
	decoded, err := bslframe.DecodeResponse(resp)
	if err != nil {
		t.Fatalf("DecodeResponse() = %v", err)
	}
	gotCRC, ok := decoded.VerifyCRC()
	if !ok {
		t.Fatalf("VerifyCRC() ok = false")
	}
	want := bslcrc.Sum(append(append(append([]byte{}, segs[0]...), segs[1]...), segs[2]...))
	if gotCRC != want {
		t.Fatalf("verify crc = % X, want % X", gotCRC, want)
	}
}

func TestSimulator_RejectsMisalignedProgramAddress(t *testing.T) {
	sim := New()
	payload := append(le32(3), bytes.Repeat([]byte{0xAA}, 8)...)
	cmd := decodeOne(t, bslframe.BuildCommand(bslframe.CmdProgramData, payload))
	resp := sim.dispatch(cmd)
	if resp != nil {
		t.Fatalf("dispatch() = % X, want nil (no reply)", resp)
	}
	if len(sim.ProgrammedBytes()) != 0 {
		t.Fatalf("programmed bytes should be untouched")
	}
}

func TestSimulator_RejectsUnalignedProgramLength(t *testing.T) {
	sim := New()
	payload := append(le32(0), bytes.Repeat([]byte{0xAA}, 5)...)
	cmd := decodeOne(t, bslframe.BuildCommand(bslframe.CmdProgramData, payload))
	resp := sim.dispatch(cmd)
	if resp != nil {
		t.Fatalf("dispatch() = % X, want nil (no reply)", resp)
	}
}

func TestSimulator_IdempotentConnect(t *testing.T) {
	sim := New()
	cmd := decodeOne(t, bslframe.BuildCommand(bslframe.CmdConnect, nil))
	first := sim.dispatch(cmd)
	second := sim.dispatch(cmd)
	if !bytes.Equal(first, second) {
		t.Fatalf("repeated connect replies differ: % X vs % X", first, second)
	}
}

func TestSimulator_Serve_BadCrcGetsNoReply(t *testing.T) {
	sim := New()
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		_ = sim.Serve(server)
		close(done)
	}()

	frame := bslframe.BuildCommand(bslframe.CmdUnlock, bytes.Repeat([]byte{0xFF}, 32))
	frame[len(frame)-1] ^= 0xFF // flip last CRC byte

	go func() {
		_, _ = client.Write(frame)
		_ = client.Close()
	}()

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	if err == nil && n > 0 {
		t.Fatalf("got a reply for a bad-CRC frame: % X", buf[:n])
	}
	<-done
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
