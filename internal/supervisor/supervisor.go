package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"siactl/internal/config"
	"siactl/internal/deps"
	"siactl/internal/journal"
	"siactl/internal/logging"
	"siactl/internal/metrics"
	"siactl/internal/services"
	"siactl/internal/siad"
)

// ErrAlreadySupervised is returned when another siactl holds the state lock.
var ErrAlreadySupervised = errors.New("another siactl launch is already supervising siad")

const (
	// journalRetention bounds how many runs the journal keeps.
	journalRetention = 500
	exitRecordWait   = 2 * time.Second
)

// Options configures a supervised run.
type Options struct {
	LogLevel string
	// Logger overrides the default stderr plus log file logger.
	Logger *slog.Logger
	// MetricsReady receives the bound metrics address when metrics are enabled.
	MetricsReady chan<- string
	// OnReady is called once siad answers the liveness probe.
	OnReady func(runID string)
}

// ClientSettings maps the [client] config section onto connection settings.
func ClientSettings(cfg *config.Config) siad.ConnectionSettings {
	return siad.ConnectionSettings{
		Address:      cfg.Client.Address,
		UserAgent:    cfg.Client.UserAgent,
		Password:     cfg.Client.APIPassword,
		CallTimeout:  cfg.CallTimeout(),
		ProbeTimeout: cfg.ProbeTimeout(),
		ProbePath:    cfg.Client.ProbePath,
		MaxSockets:   cfg.Client.MaxSockets,
		RateLimit:    cfg.Client.RateLimit,
		RateBurst:    cfg.Client.RateBurst,
	}
}

// Run launches siad and supervises it until it exits or the process receives
// SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "supervisor", "ensure directories", "", err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w (lock %s)", ErrAlreadySupervised, cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.NewSupervisorLogger(cfg, opts.LogLevel)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	logger = logging.NewComponentLogger(logger, "supervisor")
	logDependencySnapshot(logger, cfg)

	store, err := journal.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run journal unavailable", "journal_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "this run will not appear in siactl history"),
		)
		store = nil
	} else {
		defer store.Close()
		if removed, err := store.Prune(signalCtx, journalRetention); err == nil && removed > 0 {
			logger.Debug("pruned run journal", logging.Int64("removed", removed))
		}
	}

	recorder := metrics.New()
	ctrl := siad.NewController(ClientSettings(cfg),
		siad.WithLogger(logger),
		siad.WithHooks(recorder),
		siad.WithPollInterval(cfg.PollInterval()),
	)
	defer ctrl.Client().Close()

	metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(cmdCtx))
	defer stopMetrics()
	var g errgroup.Group
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			if err := recorder.Serve(metricsCtx, cfg.Metrics.Bind, logger, opts.MetricsReady); err != nil {
				logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_serve_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check metrics.bind is a free address"),
					logging.String(logging.FieldImpact, "metrics are not exported for this run"),
				)
			}
			return nil
		})
	}

	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	settings := siad.Settings(cfg.LaunchSettings())
	proc, err := ctrl.Launch(signalCtx, cfg.Siad.Binary, settings)
	if err != nil {
		stopMetrics()
		_ = g.Wait()
		return services.Wrap(services.ErrProcessSpawn, "supervisor", "launch", "", err)
	}
	runID := ctrl.RunID()
	if store != nil {
		run := journal.Run{
			ID:        runID,
			Binary:    proc.Path,
			Args:      proc.Args,
			APIAddr:   cfg.Client.Address,
			LogPath:   proc.LogPath,
			PID:       proc.PID(),
			StartedAt: proc.StartedAt(),
		}
		if err := store.StartRun(signalCtx, run); err != nil {
			logging.WarnWithContext(logger, "record run failed", "journal_write_failed",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err),
			)
			store = nil
		}
	}

	exitRecorded := make(chan struct{})
	g.Go(func() error {
		consumeEvents(logger, store, events, exitRecorded)
		return nil
	})

	s := &supervision{cfg: cfg, logger: logger, ctrl: ctrl, proc: proc, store: store, runID: runID}
	runErr := s.supervise(signalCtx, opts.OnReady)

	select {
	case <-exitRecorded:
	case <-time.After(exitRecordWait):
		logger.Warn("siad exit not recorded before shutdown",
			logging.String(logging.FieldRunID, runID),
			logging.String(logging.FieldEventType, "journal_exit_missing"),
		)
	}
	unsubscribe()
	stopMetrics()
	_ = g.Wait()
	return runErr
}

type supervision struct {
	cfg    *config.Config
	logger *slog.Logger
	ctrl   *siad.Controller
	proc   *siad.Process
	store  *journal.Store
	runID  string
}

func (s *supervision) supervise(ctx context.Context, onReady func(string)) error {
	if err := s.ctrl.WaitUntilReady(ctx); err != nil {
		if errors.Is(err, siad.ErrProcessExited) {
			return s.exitError("siad exited before becoming ready")
		}
		s.logger.Info("shutdown requested before siad became ready",
			logging.String(logging.FieldRunID, s.runID))
		s.shutdown()
		return nil
	}

	s.logger.Info("siad ready",
		logging.String(logging.FieldRunID, s.runID),
		logging.String(logging.FieldEventType, "siad_ready"),
		logging.String("address", s.ctrl.Client().Address()),
	)
	if onReady != nil {
		onReady(s.runID)
	}

	select {
	case <-ctx.Done():
		s.logger.Info("siactl shutting down", logging.String(logging.FieldRunID, s.runID))
		s.shutdown()
		return nil
	case <-s.proc.Done():
		return s.exitError("siad exited unexpectedly")
	}
}

func (s *supervision) exitError(message string) error {
	status := s.proc.Status()
	s.setStopReason("exited on its own")
	cause := fmt.Errorf("exit code %d", status.Code)
	if status.Err != nil {
		cause = fmt.Errorf("exit code %d: %w", status.Code, status.Err)
	}
	logging.ErrorWithContext(s.logger, message, "siad_exited",
		logging.String(logging.FieldRunID, s.runID),
		logging.Int("exit_code", status.Code),
		logging.String("output_log", s.proc.LogPath),
		logging.String(logging.FieldErrorHint, "inspect the siad output log"),
	)
	return services.Wrap(services.ErrProcessSpawn, "supervisor", "supervise", message, cause)
}

// shutdown stops siad through the API, then escalates to SIGTERM if the API
// call fails and to SIGKILL once the grace period has passed.
func (s *supervision) shutdown() {
	if s.proc.Exited() {
		return
	}
	s.setStopReason("shutdown requested")

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout())
	err := s.ctrl.Stop(stopCtx)
	cancel()
	if err != nil {
		logging.WarnWithContext(s.logger, "api stop failed; sending SIGTERM", "siad_stop_failed",
			logging.String(logging.FieldRunID, s.runID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "siad is terminated by signal instead"),
		)
		s.setStopReason("terminated after api stop failed")
		if err := s.proc.Signal(syscall.SIGTERM); err != nil {
			s.logger.Warn("send SIGTERM failed", logging.Error(err))
		}
	}

	grace := s.cfg.StopGrace()
	waitCtx, cancelWait := context.WithTimeout(context.Background(), grace)
	_, err = s.proc.Wait(waitCtx)
	cancelWait()
	if err == nil {
		return
	}

	logging.WarnWithContext(s.logger, "siad did not exit in time; killing", "siad_killed",
		logging.String(logging.FieldRunID, s.runID),
		logging.Duration("grace", grace),
		logging.String(logging.FieldImpact, "siad may need to rescan on next start"),
	)
	s.setStopReason("killed after grace period")
	if err := s.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Error("kill siad failed", logging.Error(err))
	}
	<-s.proc.Done()
}

func (s *supervision) setStopReason(reason string) {
	if s.store == nil {
		return
	}
	if err := s.store.SetStopReason(context.Background(), s.runID, reason); err != nil {
		s.logger.Debug("record stop reason failed", logging.Error(err))
	}
}

// consumeEvents journals lifecycle events until the exit event arrives or the
// subscription closes. exitRecorded is closed on return.
func consumeEvents(logger *slog.Logger, store *journal.Store, events <-chan siad.Event, exitRecorded chan<- struct{}) {
	defer close(exitRecorded)
	for ev := range events {
		logger.Debug("siad lifecycle event",
			logging.String(logging.FieldRunID, ev.RunID),
			logging.String("kind", string(ev.Kind)),
			logging.String("state", ev.State.String()),
		)
		if store != nil {
			if err := store.RecordEvent(context.Background(), ev); err != nil {
				logger.Warn("record lifecycle event failed",
					logging.String("kind", string(ev.Kind)),
					logging.Error(err),
					logging.String(logging.FieldEventType, "journal_write_failed"),
				)
			}
		}
		if ev.Kind == siad.EventExited {
			return
		}
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	attrs = append(attrs,
		logging.Bool("api_password_present", cfg.Client.APIPassword != ""),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
