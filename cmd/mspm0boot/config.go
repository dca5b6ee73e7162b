package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// appConfig holds every flag/env value across mspm0boot's subcommands.
// Only the fields relevant to the chosen subcommand are validated.
type appConfig struct {
	subcommand string

	port       string
	baud       int
	auto       bool
	quiet      bool
	saveFlash  bool
	firmware   string
	logFormat  string
	logLevel   string
	metricsAddr     string
	logMetricsEvery time.Duration

	loopback   bool
	listenAddr string
	mdnsEnable bool
	mdnsName   string

	verifyAddr   uint
	verifyLength uint
}

const defaultBaud = 9600

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.subcommand {
	case "program":
		if c.firmware == "" {
			return errors.New("program requires a firmware .hex path")
		}
		if c.port == "" {
			return errors.New("program requires --port (or \"none\" for a dry run)")
		}
		if c.baud <= 0 {
			return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
		}
	case "sim":
		if !c.loopback && c.listenAddr == "" && c.port == "" {
			return errors.New("sim requires one of --loopback, --listen, or --port")
		}
	case "verify-sim":
		if c.port == "" {
			return errors.New("verify-sim requires --port")
		}
	}
	return nil
}

// parseFlags parses os.Args[1:], dispatching on the first positional
// argument as the subcommand, matching the teacher's single flat
// flag.Parse() call but split per verb since this CLI has subcommands.
func parseFlags(args []string) (*appConfig, bool, error) {
	if len(args) == 0 {
		return nil, false, errors.New("missing subcommand: program|sim|verify-sim|--version")
	}
	if args[0] == "--version" || args[0] == "-version" {
		return nil, true, nil
	}

	cfg := &appConfig{subcommand: args[0]}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	port := fs.String("port", "", "Serial device path, \"none\" for a dry run, or a host:port for a TCP simulator")
	baud := fs.Int("baud", defaultBaud, "Serial baud rate")
	auto := fs.Bool("auto", false, "Skip the interactive BOOT/RESET prompt; requires RTS and DTR capability")
	quiet := fs.Bool("quiet", false, "Suppress the startup banner")
	saveFlash := fs.Bool("save-flash-file", false, "Persist the normalized image as a .flash interim file next to the input")
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := fs.Duration("log-metrics-every", 0, "Log a metrics snapshot at this interval; 0 disables")
	loopback := fs.Bool("loopback", false, "Run an in-process simulator over a pty pair instead of a real port")
	listenAddr := fs.String("listen", "", "Host a simulator on this TCP address instead of a serial port")
	mdnsEnable := fs.Bool("mdns-enable", false, "Advertise a TCP-hosted simulator via mDNS")
	mdnsName := fs.String("mdns-name", "", "mDNS instance name (default mspm0boot-sim-<hostname>)")
	verifyAddr := fs.Uint("addr", 0, "Start address for verify-sim's standalone-verification request")
	verifyLength := fs.Uint("length", 0, "Byte length for verify-sim's standalone-verification request")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, false, err
	}
	if fs.NArg() > 0 {
		cfg.firmware = fs.Arg(0)
	}

	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.port = *port
	cfg.baud = *baud
	cfg.auto = *auto
	cfg.quiet = *quiet
	cfg.saveFlash = *saveFlash
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.loopback = *loopback
	cfg.listenAddr = *listenAddr
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName
	cfg.verifyAddr = *verifyAddr
	cfg.verifyLength = *verifyLength

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, false, err
	}
	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// applyEnvOverrides maps MSPM0BOOT_* environment variables onto cfg,
// skipping any field whose flag was explicitly set (flag wins).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) {
		v, ok := os.LookupEnv(k)
		return strings.TrimSpace(v), ok
	}
	if _, ok := set["port"]; !ok {
		if v, ok := get("MSPM0BOOT_PORT"); ok && v != "" {
			c.port = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("MSPM0BOOT_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid MSPM0BOOT_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("MSPM0BOOT_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("MSPM0BOOT_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("MSPM0BOOT_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-every"]; !ok {
		if v, ok := get("MSPM0BOOT_LOG_METRICS_EVERY"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.logMetricsEvery = d
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid MSPM0BOOT_LOG_METRICS_EVERY: %w", err)
			}
		}
	}
	if _, ok := set["listen"]; !ok {
		if v, ok := get("MSPM0BOOT_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("MSPM0BOOT_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("MSPM0BOOT_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	if _, ok := set["auto"]; !ok {
		if v, ok := get("MSPM0BOOT_AUTO"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.auto = true
			case "0", "false", "no", "off":
				c.auto = false
			}
		}
	}
	return firstErr
}
