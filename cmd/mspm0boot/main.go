package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/mspm0bsl/mspm0boot/internal/bslclient"
	"github.com/mspm0bsl/mspm0boot/internal/bslframe"
	"github.com/mspm0bsl/mspm0boot/internal/bslsim"
	"github.com/mspm0bsl/mspm0boot/internal/hexfile"
	"github.com/mspm0bsl/mspm0boot/internal/image"
	"github.com/mspm0bsl/mspm0boot/internal/loopback"
	"github.com/mspm0bsl/mspm0boot/internal/metrics"
	"github.com/mspm0bsl/mspm0boot/internal/serialport"
	"github.com/mspm0bsl/mspm0boot/internal/simserver"
)

func main() {
	cfg, showVersion, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "mspm0boot:", err)
		os.Exit(2)
	}
	if showVersion {
		fmt.Printf("mspm0boot %s (commit %s, built %s)\n", version, commit, date)
		return
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)
	printBanner(cfg.quiet)
	if err := bslframe.SelfCheck(); err != nil {
		l.Error("selfcheck_failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
	}()

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	var runErr error
	switch cfg.subcommand {
	case "program":
		runErr = runProgram(ctx, cfg, l)
	case "sim":
		runErr = runSim(ctx, cfg, l)
	case "verify-sim":
		runErr = runVerifySim(cfg, l)
	default:
		runErr = fmt.Errorf("unknown subcommand %q: want program|sim|verify-sim", cfg.subcommand)
	}
	cancel()
	wg.Wait()
	if runErr != nil {
		l.Error("command_failed", "subcommand", cfg.subcommand, "error", runErr)
		os.Exit(1)
	}
}

// runProgram implements `mspm0boot program`: parse, normalize, optionally
// persist a .flash file, then (unless --port none) drive a real device
// through the full connect/unlock/erase/program/start sequence.
func runProgram(ctx context.Context, cfg *appConfig, l *slog.Logger) error {
	f, err := os.Open(cfg.firmware)
	if err != nil {
		return fmt.Errorf("opening firmware file: %w", err)
	}
	defer f.Close()

	raw, err := hexfile.Parse(f, func(msg string) { l.Warn("hexfile_diagnostic", "msg", msg) })
	if err != nil {
		return fmt.Errorf("parsing hex file: %w", err)
	}
	img, err := image.Normalize(raw)
	if err != nil {
		return fmt.Errorf("normalizing image: %w", err)
	}
	if err := image.CheckNoOverlap(img); err != nil {
		return fmt.Errorf("checking image: %w", err)
	}
	l.Info("image_ready", "segments", len(img.Segments), "bytes", img.TotalBytes())

	if cfg.saveFlash {
		flashPath := strings.TrimSuffix(cfg.firmware, ".hex") + ".flash"
		out, err := os.Create(flashPath)
		if err != nil {
			return fmt.Errorf("creating flash file: %w", err)
		}
		err = image.EncodeInterim(out, img)
		closeErr := out.Close()
		if err != nil {
			return fmt.Errorf("encoding flash file: %w", err)
		}
		if closeErr != nil {
			return fmt.Errorf("closing flash file: %w", closeErr)
		}
		l.Info("flash_file_saved", "path", flashPath)
	}

	if cfg.port == "none" {
		l.Info("dry_run_complete")
		return nil
	}

	tr, closeTr, err := openTransport(cfg.port, cfg.baud)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer closeTr()

	if err := enterBootModeOrPrompt(tr, cfg.auto, l); err != nil {
		return err
	}

	client, err := bslclient.Run(tr, img)
	if err != nil {
		if client != nil {
			l.Error("program_sequence_failed", "state", client.State(), "error", err)
		}
		return err
	}
	l.Info("program_sequence_complete", "state", client.State())
	return nil
}

// enterBootModeOrPrompt automatically pulses BOOT/RESET when --auto is
// set and the transport exposes RTS/DTR control, falling back to the
// interactive prompt otherwise.
func enterBootModeOrPrompt(tr bslclient.Transport, auto bool, l *slog.Logger) error {
	if auto {
		if cp, ok := tr.(serialport.ControlPort); ok {
			if err := serialport.EnterBootMode(cp); err == nil {
				l.Info("boot_mode_entered_automatically")
				return nil
			} else {
				l.Warn("auto_boot_mode_failed_falling_back", "error", err)
			}
		} else {
			l.Warn("auto_requested_but_no_control_port_falling_back")
		}
	}
	return confirmBootReset(os.Stdin, os.Stdout)
}

// runSim implements `mspm0boot sim`: host a bslsim.Simulator over a
// loopback pty pair, a TCP listener, or a real serial device, blocking
// until ctx is cancelled.
func runSim(ctx context.Context, cfg *appConfig, l *slog.Logger) error {
	switch {
	case cfg.loopback:
		pair, err := loopback.Open()
		if err != nil {
			return fmt.Errorf("opening loopback pair: %w", err)
		}
		defer pair.Close()
		l.Info("sim_loopback_ready", "master", pair.Master.Name(), "slave", pair.Slave.Name())
		errCh := make(chan error, 1)
		go func() { errCh <- pair.Serve(bslsim.New()) }()
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}

	case cfg.listenAddr != "":
		srv := simserver.NewServer(simserver.WithListenAddr(cfg.listenAddr), simserver.WithLogger(l))
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(ctx) }()

		go func() {
			if !cfg.mdnsEnable {
				return
			}
			select {
			case <-srv.Ready():
			case <-ctx.Done():
				return
			}
			port := portOf(srv.Addr())
			cleanup, err := startMDNS(ctx, cfg, port)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
				return
			}
			l.Info("mdns_started", "service", mdnsServiceType, "port", port)
			go func() { <-ctx.Done(); cleanup() }()
		}()

		metrics.SetReadinessFunc(func() bool {
			select {
			case <-srv.Ready():
			default:
				return false
			}
			return ctx.Err() == nil
		})
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}

	default:
		port, err := serialport.Open(cfg.port, cfg.baud)
		if err != nil {
			return fmt.Errorf("opening serial port: %w", err)
		}
		defer port.Close()
		l.Info("sim_serial_ready", "port", cfg.port, "baud", cfg.baud)
		errCh := make(chan error, 1)
		go func() { errCh <- bslsim.New().Serve(port) }()
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	}
}

// runVerifySim implements `mspm0boot verify-sim`: a standalone-verify
// request sent only to a running simulator, never to real hardware.
func runVerifySim(cfg *appConfig, l *slog.Logger) error {
	tr, closeTr, err := openTransport(cfg.port, cfg.baud)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer closeTr()

	crc, err := requestStandaloneVerify(tr, uint32(cfg.verifyAddr), uint32(cfg.verifyLength))
	if err != nil {
		return fmt.Errorf("verify-sim request: %w", err)
	}
	l.Info("verify_sim_result", "addr", cfg.verifyAddr, "length", cfg.verifyLength,
		"crc32", fmt.Sprintf("%02x%02x%02x%02x", crc[0], crc[1], crc[2], crc[3]))
	return nil
}

// openTransport opens cfg.port as a TCP connection when it looks like
// host:port, otherwise as a local serial device.
func openTransport(port string, baud int) (bslclient.Transport, func(), error) {
	if looksLikeHostPort(port) {
		conn, err := net.Dial("tcp", port)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() { _ = conn.Close() }, nil
	}
	p, err := serialport.Open(port, baud)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

func looksLikeHostPort(s string) bool {
	_, _, err := net.SplitHostPort(s)
	return err == nil
}

func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}
