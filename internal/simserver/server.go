// Package simserver hosts a bslsim.Simulator over a TCP listener so a
// lab bench can point mspm0boot at a host:port instead of a local
// serial device. Unlike the teacher's hub-based CAN server, it serves
// exactly one session at a time: the BSL protocol has no notion of
// more than one client talking to a device simultaneously.
package simserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mspm0bsl/mspm0boot/internal/bslsim"
	"github.com/mspm0bsl/mspm0boot/internal/logging"
	"github.com/mspm0bsl/mspm0boot/internal/metrics"
)

// Server owns the TCP listener and serves one bslsim.Simulator session
// at a time.
type Server struct {
	mu        sync.Mutex
	addr      string
	listener  net.Listener
	logger    *slog.Logger
	readyOnce sync.Once
	readyCh   chan struct{}
	lastErrMu sync.Mutex
	lastErr   error
}

type ServerOption func(*Server)

func WithListenAddr(a string) ServerOption { return func(s *Server) { s.addr = a } }
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer returns a Server ready to Serve once an address is set.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		readyCh: make(chan struct{}),
		logger:  logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	return s
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Ready() <-chan struct{} { return s.readyCh }

func (s *Server) setError(err error) {
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
}

func (s *Server) LastError() error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr
}

// Serve accepts connections on s.addr and runs a simulator session to
// completion on each before accepting the next. It returns when ctx
// is cancelled or the listener fails fatally.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	addr := s.addr
	s.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(metrics.ErrSerialOpen)
		s.setError(wrap)
		return wrap
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("sim_listen", "addr", s.Addr())

	go func() { <-ctx.Done(); _ = ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			wrap := fmt.Errorf("%w: %v", ErrAccept, err)
			s.setError(wrap)
			return wrap
		}
		s.handleSession(conn)
	}
}

// handleSession blocks until the simulator session on conn ends.
func (s *Server) handleSession(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	s.logger.Info("sim_session_start", "remote", remote)
	metrics.IncSimSession()
	metrics.SetSimSessionActive(true)
	defer metrics.SetSimSessionActive(false)

	sim := bslsim.New()
	if err := sim.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("sim_session_error", "remote", remote, "error", err)
	}
	s.logger.Info("sim_session_end", "remote", remote, "programmed_bytes", len(sim.ProgrammedBytes()))
}
