// Package loopback wires a Simulator to a pseudo-terminal pair so the
// client state machine can drive it exactly as it would a real USB
// serial port, without any hardware.
package loopback

import (
	"fmt"
	"os"

	"github.com/creack/pty"

	"github.com/mspm0bsl/mspm0boot/internal/bslsim"
)

// Pair is a master/slave pty pair. Master satisfies bslclient.Transport
// directly (os.File implements Read, Write, and SetReadDeadline);
// Slave is handed to a Simulator.
type Pair struct {
	Master *os.File
	Slave  *os.File
}

// Open allocates a new pty pair.
func Open() (*Pair, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("loopback: open pty: %w", err)
	}
	return &Pair{Master: master, Slave: slave}, nil
}

// Serve runs sim against the slave end until the pair is closed. It
// blocks; callers typically run it in its own goroutine.
func (p *Pair) Serve(sim *bslsim.Simulator) error {
	return sim.Serve(p.Slave)
}

// Close releases both ends of the pty pair.
func (p *Pair) Close() error {
	slaveErr := p.Slave.Close()
	masterErr := p.Master.Close()
	if masterErr != nil {
		return masterErr
	}
	return slaveErr
}
