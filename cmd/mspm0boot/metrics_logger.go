package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mspm0bsl/mspm0boot/internal/metrics"
)

// startMetricsLogger periodically logs a metrics.Snap() snapshot, a
// lighter-weight alternative to scraping /metrics for operators who
// aren't running a Prometheus server against a lab bench.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"commands_sent", snap.CommandsSent,
					"responses_received", snap.ResponsesReceived,
					"crc_failures", snap.CrcFailures,
					"malformed_sim_frames", snap.MalformedSimFrames,
					"bytes_programmed", snap.BytesProgrammed,
					"pages_erased", snap.PagesErased,
					"sim_sessions", snap.SimSessions,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
