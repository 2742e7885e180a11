package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"siactl/internal/config"
	"siactl/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	daemon     *fakeDaemon
}

// setupCLITestEnv writes a config pointing at a fake siad API and isolates
// HOME so no real configuration is picked up.
func setupCLITestEnv(t *testing.T, routes map[string]string) *cliTestEnv {
	t.Helper()

	daemon := &fakeDaemon{routes: routes}
	server := httptest.NewServer(daemon)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithAddress(strings.TrimPrefix(server.URL, "http://")))
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "siactl.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, daemon: daemon}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", env.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type fakeDaemon struct {
	mu       sync.Mutex
	routes   map[string]string
	requests []*http.Request
	bodies   []string
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	resp, ok := f.routes[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"no such endpoint"}`)
		return
	}
	_, _ = io.WriteString(w, resp)
}

func (f *fakeDaemon) last(t *testing.T) (*http.Request, string) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("no requests reached the fake daemon")
	}
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}
