package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"siactl/internal/logging"
	"siactl/internal/siad"
)

const namespace = "siactl"

var _ siad.Hooks = (*Recorder)(nil)

var allStates = []siad.State{
	siad.StateNotStarted,
	siad.StateStarting,
	siad.StateReady,
	siad.StateStopped,
}

// Recorder collects controller metrics in its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	calls         *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	probes        *prometheus.CounterVec
	probeDuration prometheus.Histogram
	state         *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
}

// New builds a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "siad API calls by method, endpoint and status code.",
		}, []string{"method", "endpoint", "code"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "siad API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Liveness probes by result.",
		}, []string{"result"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Liveness probe latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_state",
			Help:      "1 for the controller's current lifecycle state, 0 otherwise.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Lifecycle transitions by target state.",
		}, []string{"state"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.calls,
		r.callDuration,
		r.probes,
		r.probeDuration,
		r.state,
		r.transitions,
	)
	r.setState(siad.StateNotStarted)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// CallCompleted implements siad.Hooks.
func (r *Recorder) CallCompleted(method, path string, status int, elapsed time.Duration, err error) {
	endpoint := Endpoint(path)
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.calls.WithLabelValues(method, endpoint, code).Inc()
	r.callDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ProbeCompleted implements siad.Hooks.
func (r *Recorder) ProbeCompleted(ok bool, elapsed time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	r.probes.WithLabelValues(result).Inc()
	r.probeDuration.Observe(elapsed.Seconds())
}

// StateChanged implements siad.Hooks.
func (r *Recorder) StateChanged(state siad.State) {
	r.transitions.WithLabelValues(state.String()).Inc()
	r.setState(state)
}

func (r *Recorder) setState(current siad.State) {
	for _, s := range allStates {
		value := 0.0
		if s == current {
			value = 1
		}
		r.state.WithLabelValues(s.String()).Set(value)
	}
}

// Endpoint collapses a request path to its first two segments so ids and
// addresses in the path do not become label values.
func Endpoint(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return "/" + strings.Join(parts, "/")
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve listens on bind and serves /metrics until ctx is done. The bound
// address is sent on ready, if non-nil, once the listener is open.
func (r *Recorder) Serve(ctx context.Context, bind string, logger *slog.Logger, ready chan<- string) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", bind, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("metrics endpoint listening", logging.String("address", ln.Addr().String()))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	}
}
