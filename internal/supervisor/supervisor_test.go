//go:build unix

package supervisor_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"siactl/internal/config"
	"siactl/internal/journal"
	"siactl/internal/logging"
	"siactl/internal/services"
	"siactl/internal/supervisor"
	"siactl/internal/testsupport"
)

// fakeSiad answers the liveness probe and, when killOnStop is set, kills the
// stub process named in pidFile on /daemon/stop.
type fakeSiad struct {
	pidFile    string
	killOnStop bool
	stopStatus int
	stops      atomic.Int32
}

func (f *fakeSiad) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/gateway":
		_, _ = io.WriteString(w, `{"netaddress":"127.0.0.1:9981","peers":[]}`)
	case "/daemon/stop":
		f.stops.Add(1)
		if f.stopStatus != 0 {
			w.WriteHeader(f.stopStatus)
			_, _ = io.WriteString(w, `{"message":"stop failed"}`)
			return
		}
		if f.killOnStop {
			// siad replies before it shuts down.
			go func() {
				time.Sleep(100 * time.Millisecond)
				if data, err := os.ReadFile(f.pidFile); err == nil {
					if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
						_ = syscall.Kill(pid, syscall.SIGTERM)
					}
				}
			}()
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newHarness(t *testing.T, daemon *fakeSiad, script string) *config.Config {
	t.Helper()
	server := httptest.NewServer(daemon)
	t.Cleanup(server.Close)
	addr := strings.TrimPrefix(server.URL, "http://")
	return testsupport.NewConfig(t,
		testsupport.WithAddress(addr),
		testsupport.WithSiadScript(script),
	)
}

type runResult struct {
	runID string
	err   error
}

// startRun runs the supervisor in the background, returning once siad is
// ready along with a func that cancels the run and returns its result.
func startRun(t *testing.T, cfg *config.Config) (string, func() runResult) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- supervisor.Run(ctx, cfg, supervisor.Options{
			Logger:  logging.NewNop(),
			OnReady: func(runID string) { ready <- runID },
		})
	}()

	var runID string
	select {
	case runID = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("supervisor returned before ready: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatalf("timed out waiting for siad to become ready")
	}
	return runID, func() runResult {
		cancel()
		select {
		case err := <-done:
			return runResult{runID: runID, err: err}
		case <-time.After(15 * time.Second):
			t.Fatalf("supervisor did not return after cancel")
			return runResult{}
		}
	}
}

func loadRun(t *testing.T, cfg *config.Config, id string) *journal.Run {
	t.Helper()
	store := testsupport.MustOpenJournal(t, cfg)
	run, err := store.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	return run
}

func TestRunStopsThroughAPI(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "siad.pid")
	daemon := &fakeSiad{pidFile: pidFile, killOnStop: true}
	cfg := newHarness(t, daemon, "echo $$ > "+pidFile+"\nexec sleep 30")

	runID, stop := startRun(t, cfg)
	result := stop()
	if result.err != nil {
		t.Fatalf("Run returned error: %v", result.err)
	}
	if daemon.stops.Load() != 1 {
		t.Fatalf("expected one /daemon/stop call, got %d", daemon.stops.Load())
	}

	run := loadRun(t, cfg, runID)
	if run.State != "stopped" || run.StopReason != "shutdown requested" {
		t.Fatalf("unexpected run %#v", run)
	}
	if run.ReadyAt == nil || run.StoppedAt == nil || run.ExitedAt == nil || run.ExitCode == nil {
		t.Fatalf("expected ready, stopped and exit timestamps, got %#v", run)
	}
	if run.APIAddr != cfg.Client.Address {
		t.Fatalf("unexpected api addr %q", run.APIAddr)
	}

	store := testsupport.MustOpenJournal(t, cfg)
	events, err := store.Events(context.Background(), runID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	if got := strings.Join(kinds, ","); got != "starting,ready,stopped,exited" {
		t.Fatalf("unexpected event sequence %s", got)
	}

	if _, err := os.Stat(filepath.Join(cfg.Siad.SiaDirectory, "siad-output.log")); err != nil {
		t.Fatalf("expected siad output log in sia directory: %v", err)
	}
}

func TestRunKillsAfterGracePeriod(t *testing.T) {
	daemon := &fakeSiad{}
	cfg := newHarness(t, daemon, "exec sleep 30")
	cfg.Siad.StopGraceSeconds = 1

	runID, stop := startRun(t, cfg)
	started := time.Now()
	result := stop()
	if result.err != nil {
		t.Fatalf("Run returned error: %v", result.err)
	}
	if elapsed := time.Since(started); elapsed < time.Second {
		t.Fatalf("expected supervisor to wait out the grace period, returned after %s", elapsed)
	}

	run := loadRun(t, cfg, runID)
	if run.StopReason != "killed after grace period" {
		t.Fatalf("unexpected stop reason %q", run.StopReason)
	}
	if run.ExitCode == nil || *run.ExitCode != -1 {
		t.Fatalf("expected signal exit code -1, got %v", run.ExitCode)
	}
}

func TestRunFallsBackToSignalWhenStopFails(t *testing.T) {
	daemon := &fakeSiad{stopStatus: http.StatusInternalServerError}
	cfg := newHarness(t, daemon, "exec sleep 30")

	runID, stop := startRun(t, cfg)
	if result := stop(); result.err != nil {
		t.Fatalf("Run returned error: %v", result.err)
	}
	run := loadRun(t, cfg, runID)
	if run.StopReason != "terminated after api stop failed" {
		t.Fatalf("unexpected stop reason %q", run.StopReason)
	}
	if run.ExitedAt == nil {
		t.Fatalf("expected exit to be recorded")
	}
}

func TestRunReportsEarlyExit(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithAddress(unusedAddress(t)),
		testsupport.WithSiadScript("exit 3"),
	)
	err := supervisor.Run(context.Background(), cfg, supervisor.Options{Logger: logging.NewNop()})
	if !errors.Is(err, services.ErrProcessSpawn) {
		t.Fatalf("expected process error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exit code 3") {
		t.Fatalf("expected exit code in error, got %v", err)
	}

	store := testsupport.MustOpenJournal(t, cfg)
	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ExitCode == nil || *runs[0].ExitCode != 3 {
		t.Fatalf("unexpected runs %#v", runs)
	}
	if runs[0].StopReason != "exited on its own" || runs[0].ReadyAt != nil {
		t.Fatalf("unexpected run %#v", runs[0])
	}
}

func TestRunMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Siad.Binary = filepath.Join(t.TempDir(), "no-such-siad")
	err := supervisor.Run(context.Background(), cfg, supervisor.Options{Logger: logging.NewNop()})
	if !errors.Is(err, services.ErrProcessSpawn) {
		t.Fatalf("expected spawn error, got %v", err)
	}
	if services.ExitCode(err) != services.ExitProcess {
		t.Fatalf("unexpected exit code %d", services.ExitCode(err))
	}
}

func TestRunRefusesWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSiadScript("exit 0"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	held := flock.New(cfg.LockPath())
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	err := supervisor.Run(context.Background(), cfg, supervisor.Options{Logger: logging.NewNop()})
	if !errors.Is(err, supervisor.ErrAlreadySupervised) {
		t.Fatalf("expected ErrAlreadySupervised, got %v", err)
	}
}

func TestRunServesMetrics(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "siad.pid")
	daemon := &fakeSiad{pidFile: pidFile, killOnStop: true}
	cfg := newHarness(t, daemon, "echo $$ > "+pidFile+"\nexec sleep 30")
	cfg.Metrics.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	metricsAddr := make(chan string, 1)
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- supervisor.Run(ctx, cfg, supervisor.Options{
			Logger:       logging.NewNop(),
			MetricsReady: metricsAddr,
			OnReady:      func(id string) { ready <- id },
		})
	}()

	var addr string
	select {
	case addr = <-metricsAddr:
	case err := <-done:
		t.Fatalf("supervisor returned early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatalf("metrics endpoint never came up")
	}
	select {
	case <-ready:
	case <-time.After(10 * time.Second):
		t.Fatalf("siad never became ready")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("scrape metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `siactl_daemon_state{state="ready"} 1`) {
		t.Fatalf("expected ready state gauge, got:\n%s", body)
	}
	if !strings.Contains(string(body), `siactl_probes_total{result="success"}`) {
		t.Fatalf("expected probe counter in metrics output")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("supervisor did not return after cancel")
	}
}

func TestClientSettingsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAddress("127.0.0.1:7777"))
	cfg.Client.APIPassword = "hunter2"
	cfg.Client.RateLimit = 5

	settings := supervisor.ClientSettings(cfg)
	if settings.Address != "127.0.0.1:7777" || settings.Password != "hunter2" {
		t.Fatalf("unexpected settings %#v", settings)
	}
	if settings.CallTimeout != cfg.CallTimeout() || settings.ProbeTimeout != cfg.ProbeTimeout() {
		t.Fatalf("timeouts not carried over: %#v", settings)
	}
	if settings.ProbePath != "/gateway" || settings.MaxSockets != 20 || settings.RateLimit != 5 {
		t.Fatalf("unexpected settings %#v", settings)
	}
}

func unusedAddress(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(server.URL, "http://")
	server.Close()
	return addr
}
