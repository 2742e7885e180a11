package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"siactl/internal/config"
	"siactl/internal/logging"
	"siactl/internal/services"
)

func newFileLogger(t *testing.T, format, level string) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	logger, err := logging.New(logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "siad").Info("daemon ready", logging.Int("pid", 42), logging.String("note", "two words"))
	logger.Debug("debug detail")
	return logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerFormatsComponentAndAttrs(t *testing.T) {
	path := newFileLogger(t, "console", "info")
	content := readLog(t, path)

	for _, fragment := range []string{"INFO ", "siad daemon ready", "pid=42", `note="two words"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, "component=") {
		t.Fatalf("component should render as a prefix, got %q", content)
	}
	if strings.Contains(content, "debug detail") {
		t.Fatalf("debug line should be filtered at info level: %q", content)
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	path := newFileLogger(t, "console", "debug")
	content := readLog(t, path)
	if !strings.Contains(content, "debug detail") || !strings.Contains(content, ".go:") {
		t.Fatalf("expected debug line with caller, got %q", content)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	path := newFileLogger(t, "json", "info")
	line := strings.TrimSpace(strings.Split(readLog(t, path), "\n")[0])

	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if record["level"] != "info" || record["msg"] != "daemon ready" || record["component"] != "siad" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "0123456789abcdef")
	ctx = services.WithOperation(ctx, "probe")
	logging.WithContext(ctx, logger).Info("probing")

	content := readLog(t, logPath)
	if !strings.Contains(content, "[run 01234567] probing") {
		t.Fatalf("expected shortened run id prefix, got %q", content)
	}
	if !strings.Contains(content, "operation=probe") {
		t.Fatalf("expected operation field, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "probe failed", "probe_failed", logging.Error(errors.New("refused")))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected %s in %v", key, record)
		}
	}
	if record["error"] != "refused" {
		t.Fatalf("unexpected error field: %v", record["error"])
	}
}

func TestNewSupervisorLoggerWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	logger, err := logging.NewSupervisorLogger(&cfg, "")
	if err != nil {
		t.Fatalf("NewSupervisorLogger: %v", err)
	}
	logger.Info("supervisor started")
	if content := readLog(t, cfg.LogPath()); !strings.Contains(content, "supervisor started") {
		t.Fatalf("expected log file content, got %q", content)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
}
