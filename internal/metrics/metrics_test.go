package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"siactl/internal/siad"
)

// sample returns the value of the series name{labels}, or -1 if absent.
func sample(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return -1
}

func TestEndpoint(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/":                           "/",
		"/consensus":                  "/consensus",
		"/daemon/updates/check":       "/daemon/updates",
		"/wallet/transaction/abc123":  "/wallet/transaction",
		"wallet/transactions/0a1b2c3": "/wallet/transactions",
	}
	for in, want := range cases {
		if got := Endpoint(in); got != want {
			t.Fatalf("Endpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecorderCountsCallsAndProbes(t *testing.T) {
	r := New()
	r.CallCompleted("GET", "/wallet/transaction/abc", 200, 10*time.Millisecond, nil)
	r.CallCompleted("GET", "/wallet/transaction/def", 200, 10*time.Millisecond, nil)
	r.CallCompleted("POST", "/wallet/unlock", 0, time.Millisecond, errors.New("refused"))
	r.ProbeCompleted(false, time.Millisecond)
	r.ProbeCompleted(true, time.Millisecond)
	r.ProbeCompleted(true, time.Millisecond)

	if got := sample(t, r, "siactl_api_calls_total", map[string]string{"method": "GET", "endpoint": "/wallet/transaction", "code": "200"}); got != 2 {
		t.Fatalf("expected 2 transaction calls, got %v", got)
	}
	if got := sample(t, r, "siactl_api_calls_total", map[string]string{"method": "POST", "endpoint": "/wallet/unlock", "code": "error"}); got != 1 {
		t.Fatalf("expected 1 failed unlock, got %v", got)
	}
	if got := sample(t, r, "siactl_probes_total", map[string]string{"result": "success"}); got != 2 {
		t.Fatalf("expected 2 successful probes, got %v", got)
	}
	if got := sample(t, r, "siactl_api_call_duration_seconds", map[string]string{"method": "GET", "endpoint": "/wallet/transaction"}); got != 2 {
		t.Fatalf("expected 2 observed durations, got %v", got)
	}
}

func TestRecorderTracksState(t *testing.T) {
	r := New()
	if got := sample(t, r, "siactl_daemon_state", map[string]string{"state": "not_started"}); got != 1 {
		t.Fatalf("expected initial not_started gauge, got %v", got)
	}
	r.StateChanged(siad.StateStarting)
	r.StateChanged(siad.StateReady)

	if got := sample(t, r, "siactl_daemon_state", map[string]string{"state": "ready"}); got != 1 {
		t.Fatalf("expected ready gauge set, got %v", got)
	}
	if got := sample(t, r, "siactl_daemon_state", map[string]string{"state": "starting"}); got != 0 {
		t.Fatalf("expected starting gauge cleared, got %v", got)
	}
	if got := sample(t, r, "siactl_state_transitions_total", map[string]string{"state": "ready"}); got != 1 {
		t.Fatalf("expected one ready transition, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ProbeCompleted(true, time.Millisecond)

	server := httptest.NewServer(r.Handler())
	defer server.Close()
	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	for _, want := range []string{"siactl_probes_total", "siactl_daemon_state", "go_goroutines"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in exposition", want)
		}
	}
}

func TestServeStopsWithContext(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- r.Serve(ctx, "127.0.0.1:0", nil, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("metrics server did not start")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
