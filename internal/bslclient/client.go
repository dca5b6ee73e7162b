package bslclient

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mspm0bsl/mspm0boot/internal/bslframe"
	"github.com/mspm0bsl/mspm0boot/internal/image"
	"github.com/mspm0bsl/mspm0boot/internal/logging"
	"github.com/mspm0bsl/mspm0boot/internal/metrics"
)

// State is a position in the fixed Connect -> Identified -> Unlocked
// -> Erased -> Programmed -> Started sequence of spec §4.6. There is
// no retry and no backward transition; any error is fatal to the
// session.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateIdentified
	StateUnlocked
	StateErased
	StateProgrammed
	StateStarted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	case StateUnlocked:
		return "unlocked"
	case StateErased:
		return "erased"
	case StateProgrammed:
		return "programmed"
	case StateStarted:
		return "started"
	default:
		return "unknown"
	}
}

// Client drives a single BSL session over a Transport. A Client is
// single-use: once a step fails or Start succeeds, it must be
// discarded.
type Client struct {
	tr     Transport
	state  State
	info   DeviceInfo
	log    *slog.Logger
}

// New returns a Client ready to drive tr, starting at StateIdle.
func New(tr Transport) *Client {
	return &Client{tr: tr, state: StateIdle, log: logging.L()}
}

// State reports the client's current position in the sequence.
func (c *Client) State() State { return c.state }

// Info returns the DeviceInfo collected during GetDeviceInfo. It is
// only meaningful once State() >= StateIdentified.
func (c *Client) Info() DeviceInfo { return c.info }

func (c *Client) requireState(want State) error {
	if c.state != want {
		return fmt.Errorf("%w: want state %s, have %s", ErrProtocolSequence, want, c.state)
	}
	return nil
}

// Connect issues cmd 0x12 and awaits the single-byte ACK.
func (c *Client) Connect() error {
	if err := c.requireState(StateIdle); err != nil {
		return err
	}
	if err := sendCommand(c.tr, bslframe.CmdConnect, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if err := recvAck(c.tr, connectTimeout); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	c.state = StateConnected
	c.log.Info("bsl_connected")
	return nil
}

// GetDeviceInfo issues cmd 0x19, decodes the response into a
// DeviceInfo, and validates it against the expected constants of spec
// §6.2. A validation failure is fatal, per spec §4.6.
func (c *Client) GetDeviceInfo() error {
	if err := c.requireState(StateConnected); err != nil {
		return err
	}
	if err := sendCommand(c.tr, bslframe.CmdGetDeviceInfo, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrInfoFailed, err)
	}
	resp, err := recvStructured(c.tr, identifyTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInfoFailed, err)
	}
	if resp.Kind != bslframe.KindDeviceInfo {
		return fmt.Errorf("%w: response type 0x%02x", ErrInfoFailed, resp.RespType)
	}
	info, ok := DecodeDeviceInfo(resp.Payload)
	if !ok {
		return fmt.Errorf("%w: payload too short (%d bytes)", ErrInfoFailed, len(resp.Payload))
	}
	if err := info.Validate(); err != nil {
		return err
	}
	c.info = info
	c.state = StateIdentified
	c.log.Info("bsl_identified", "bsl_id", info.BslID, "max_buffer_size", info.MaxBufferSize)
	return nil
}

// unlockPayload is the fixed 32 x 0xFF "blank password" of spec §4.6.
// The client does not implement any secure/password-protected unlock.
var unlockPayload = func() []byte {
	p := make([]byte, 32)
	for i := range p {
		p[i] = 0xFF
	}
	return p
}()

// Unlock issues cmd 0x21 with the blank-password payload and expects a
// core message with status 0x00.
func (c *Client) Unlock() error {
	if err := c.requireState(StateIdentified); err != nil {
		return err
	}
	status, err := c.coreExchange(bslframe.CmdUnlock, unlockPayload, unlockTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnlockFailed, err)
	}
	if status != 0x00 {
		return fmt.Errorf("%w: %v", ErrUnlockFailed, &CoreError{Cmd: bslframe.CmdUnlock, Status: status})
	}
	c.state = StateUnlocked
	c.log.Info("bsl_unlocked")
	return nil
}

// Erase walks plan (flash page base addresses, in the order given; Run
// passes image.ErasePlan's first-seen order) and issues one 0x23 erase-page command per page, each covering a
// fixed 1024-byte length.
func (c *Client) Erase(plan []uint32) error {
	if err := c.requireState(StateUnlocked); err != nil {
		return err
	}
	for _, page := range plan {
		payload := append(le32(page), le32(image.PageSize)...)
		status, err := c.coreExchange(bslframe.CmdErasePage, payload, eraseTimeout)
		if err != nil {
			return fmt.Errorf("%w: addr 0x%08x: %v", ErrEraseFailed, page, err)
		}
		if status != 0x00 {
			return fmt.Errorf("%w: %v", ErrEraseFailed, &CoreError{Cmd: bslframe.CmdErasePage, Addr: page, Status: status})
		}
		metrics.IncPagesErased(1)
		c.log.Debug("bsl_erased_page", "addr", fmt.Sprintf("0x%08x", page))
	}
	c.state = StateErased
	c.log.Info("bsl_erase_complete", "pages", len(plan))
	return nil
}

// Program walks img's segments in parse order and issues one 0x20
// program-data command per segment.
func (c *Client) Program(img image.Image) error {
	if err := c.requireState(StateErased); err != nil {
		return err
	}
	for _, seg := range img.Segments {
		payload := append(le32(seg.Start), seg.Bytes...)
		status, err := c.coreExchange(bslframe.CmdProgramData, payload, programTimeout)
		if err != nil {
			return fmt.Errorf("%w: addr 0x%08x: %v", ErrProgramFailed, seg.Start, err)
		}
		if status != 0x00 {
			return fmt.Errorf("%w: %v", ErrProgramFailed, &CoreError{Cmd: bslframe.CmdProgramData, Addr: seg.Start, Status: status})
		}
		metrics.AddBytesProgrammed(len(seg.Bytes))
		c.log.Debug("bsl_programmed_segment", "addr", fmt.Sprintf("0x%08x", seg.Start), "len", len(seg.Bytes))
	}
	c.state = StateProgrammed
	c.log.Info("bsl_program_complete", "segments", len(img.Segments))
	return nil
}

// Start issues cmd 0x40 and awaits the single-byte ACK, handing
// control to the loaded application.
func (c *Client) Start() error {
	if err := c.requireState(StateProgrammed); err != nil {
		return err
	}
	if err := sendCommand(c.tr, bslframe.CmdStartApp, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	if err := recvAck(c.tr, startTimeout); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	c.state = StateStarted
	c.log.Info("bsl_started")
	return nil
}

// coreExchange sends a command expecting a 0x3B core-message response
// and returns its status byte.
func (c *Client) coreExchange(cmd byte, payload []byte, timeout time.Duration) (byte, error) {
	if err := sendCommand(c.tr, cmd, payload); err != nil {
		return 0, err
	}
	resp, err := recvStructured(c.tr, timeout)
	if err != nil {
		return 0, err
	}
	status, ok := resp.CoreStatus()
	if !ok {
		return 0, fmt.Errorf("%w: response type 0x%02x is not a core message", ErrProtocolSequence, resp.RespType)
	}
	return status, nil
}

// Run drives a full session end to end: Connect, GetDeviceInfo,
// Unlock, erase every page in image.ErasePlan(img), program every
// segment of img, then Start. It returns on the first error, leaving
// the device in whatever state it reached, per spec §5's cancellation
// rule.
func Run(tr Transport, img image.Image) (*Client, error) {
	c := New(tr)
	if err := c.Connect(); err != nil {
		return c, err
	}
	if err := c.GetDeviceInfo(); err != nil {
		return c, err
	}
	if err := c.Unlock(); err != nil {
		return c, err
	}
	if err := c.Erase(image.ErasePlan(img)); err != nil {
		return c, err
	}
	if err := c.Program(img); err != nil {
		return c, err
	}
	if err := c.Start(); err != nil {
		return c, err
	}
	return c, nil
}
