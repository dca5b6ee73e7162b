package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/mspm0bsl/mspm0boot/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	CommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_sent_total",
		Help: "Total command frames sent to the device or simulator.",
	})
	ResponsesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "responses_received_total",
		Help: "Total response frames received and successfully decoded.",
	})
	CrcFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crc_failures_total",
		Help: "Total response frames the client rejected for a CRC mismatch.",
	})
	MalformedSimFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_sim_frames_total",
		Help: "Total frames the simulator discarded as malformed.",
	})
	BytesProgrammed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bytes_programmed_total",
		Help: "Total firmware bytes accepted by a 0x20 program-data exchange.",
	})
	PagesErased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pages_erased_total",
		Help: "Total flash pages erased across all sessions.",
	})
	SimSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_sessions_total",
		Help: "Total TCP sessions accepted by the hosted simulator.",
	})
	SimSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_sessions_active",
		Help: "Simulator sessions currently being served (0 or 1; one session at a time).",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSerialOpen  = "serial_open"
	ErrSerialRead  = "serial_read"
	ErrSerialWrite = "serial_write"
	ErrResponse    = "response_timeout"
	ErrSequence    = "protocol_sequence"
	ErrCore        = "bsl_core_error"
)

// StartHTTP serves Prometheus metrics at /metrics on a fresh mux, plus
// a /ready endpoint gated on SetReadinessFunc.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging without scraping Prometheus in-process.
var (
	localCommandsSent  uint64
	localResponses     uint64
	localCrcFailures   uint64
	localMalformedSim  uint64
	localBytesProgram  uint64
	localPagesErased   uint64
	localSimSessions   uint64
	localErrors        uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	CommandsSent       uint64
	ResponsesReceived  uint64
	CrcFailures        uint64
	MalformedSimFrames uint64
	BytesProgrammed    uint64
	PagesErased        uint64
	SimSessions        uint64
	Errors             uint64
}

func Snap() Snapshot {
	return Snapshot{
		CommandsSent:       atomic.LoadUint64(&localCommandsSent),
		ResponsesReceived:  atomic.LoadUint64(&localResponses),
		CrcFailures:        atomic.LoadUint64(&localCrcFailures),
		MalformedSimFrames: atomic.LoadUint64(&localMalformedSim),
		BytesProgrammed:    atomic.LoadUint64(&localBytesProgram),
		PagesErased:        atomic.LoadUint64(&localPagesErased),
		SimSessions:        atomic.LoadUint64(&localSimSessions),
		Errors:             atomic.LoadUint64(&localErrors),
	}
}

func IncCommandSent() {
	CommandsSent.Inc()
	atomic.AddUint64(&localCommandsSent, 1)
}

func IncResponseReceived() {
	ResponsesReceived.Inc()
	atomic.AddUint64(&localResponses, 1)
}

func IncCrcFailure() {
	CrcFailures.Inc()
	atomic.AddUint64(&localCrcFailures, 1)
}

func IncMalformedSimFrame() {
	MalformedSimFrames.Inc()
	atomic.AddUint64(&localMalformedSim, 1)
}

func AddBytesProgrammed(n int) {
	BytesProgrammed.Add(float64(n))
	atomic.AddUint64(&localBytesProgram, uint64(n))
}

func IncPagesErased(n int) {
	PagesErased.Add(float64(n))
	atomic.AddUint64(&localPagesErased, uint64(n))
}

func IncSimSession() {
	SimSessions.Inc()
	atomic.AddUint64(&localSimSessions, 1)
}

func SetSimSessionActive(active bool) {
	if active {
		SimSessionsActive.Set(1)
		return
	}
	SimSessionsActive.Set(0)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrSerialOpen, ErrSerialRead, ErrSerialWrite, ErrResponse, ErrSequence, ErrCore} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
