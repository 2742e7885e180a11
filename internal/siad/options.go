package siad

import (
	"log/slog"
	"time"

	"siactl/internal/logging"
)

// Hooks receives instrumentation callbacks. Implementations must be safe for
// concurrent use and must not block.
type Hooks interface {
	CallCompleted(method, path string, status int, elapsed time.Duration, err error)
	ProbeCompleted(ok bool, elapsed time.Duration)
	StateChanged(state State)
}

type nopHooks struct{}

func (nopHooks) CallCompleted(string, string, int, time.Duration, error) {}
func (nopHooks) ProbeCompleted(bool, time.Duration)                      {}
func (nopHooks) StateChanged(State)                                      {}

// DefaultPollInterval is the delay between readiness probes.
const DefaultPollInterval = time.Second

// Option configures a Client or Controller.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	hooks        Hooks
	pollInterval time.Duration
	runID        string
}

func buildOptions(opts []Option) options {
	o := options{
		logger:       logging.NewNop(),
		hooks:        nopHooks{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger used for lifecycle and debug call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks installs instrumentation callbacks.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		if h != nil {
			o.hooks = h
		}
	}
}

// WithPollInterval overrides the readiness poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRunID fixes the controller's run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.runID = id
		}
	}
}
