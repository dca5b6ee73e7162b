package loopback

import (
	"strings"
	"testing"

	"github.com/mspm0bsl/mspm0boot/internal/bslclient"
	"github.com/mspm0bsl/mspm0boot/internal/bslsim"
	"github.com/mspm0bsl/mspm0boot/internal/hexfile"
	"github.com/mspm0bsl/mspm0boot/internal/image"
)

func TestLoopback_FullProgramSequence(t *testing.T) {
	pair, err := Open()
	if err != nil {
		t.Skipf("pty unavailable in this environment: %v", err)
	}
	defer pair.Close()

	sim := bslsim.New()
	go func() { _ = pair.Serve(sim) }()

	src := ":0800000000010203040506077C\n:00000001FF\n"
	raw, err := hexfile.Parse(strings.NewReader(src), nil)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	img, err := image.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() = %v", err)
	}

	client, err := bslclient.Run(pair.Master, img)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if client.State() != bslclient.StateStarted {
		t.Fatalf("state = %v, want StateStarted", client.State())
	}
	if got := sim.ProgrammedBytes(); len(got) != 8 {
		t.Fatalf("programmed %d bytes, want 8", len(got))
	}
}
