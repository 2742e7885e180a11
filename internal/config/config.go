package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directories owned by siactl itself.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Siad contains the settings used to launch the daemon binary.
type Siad struct {
	Binary           string         `toml:"binary"`
	SiaDirectory     string         `toml:"sia_directory"`
	APIAddr          string         `toml:"api_addr"`
	RPCAddr          string         `toml:"rpc_addr"`
	HostAddr         string         `toml:"host_addr"`
	Flags            map[string]any `toml:"flags"`
	StopGraceSeconds int            `toml:"stop_grace_seconds"`
}

// Client contains settings for talking to a running daemon.
type Client struct {
	Address             string  `toml:"address"`
	UserAgent           string  `toml:"user_agent"`
	APIPassword         string  `toml:"api_password"`
	CallTimeoutSeconds  int     `toml:"call_timeout_seconds"`
	ProbeTimeoutSeconds int     `toml:"probe_timeout_seconds"`
	ProbePath           string  `toml:"probe_path"`
	PollIntervalMillis  int     `toml:"poll_interval_ms"`
	MaxSockets          int     `toml:"max_sockets"`
	RateLimit           float64 `toml:"rate_limit"`
	RateBurst           int     `toml:"rate_burst"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics contains configuration for the Prometheus endpoint served while a
// daemon is supervised.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Config encapsulates all configuration values for siactl.
//
// Configuration sections by subsystem:
//   - Paths: state (journal, lock) and log directories
//   - Siad: daemon binary, data directory, listen addresses, extra flags
//   - Client: API address, timeouts, probe path, connection pool size
//   - Logging: log format and level
//   - Metrics: optional Prometheus endpoint
type Config struct {
	Paths   Paths   `toml:"paths"`
	Siad    Siad    `toml:"siad"`
	Client  Client  `toml:"client"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("siactl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories siactl writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the supervisor lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "siactl.lock")
}

// LogPath returns the supervisor's own log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "siactl.log")
}

// CallTimeout returns the default per-call timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Client.CallTimeoutSeconds) * time.Second
}

// ProbeTimeout returns the liveness probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Client.ProbeTimeoutSeconds) * time.Second
}

// PollInterval returns the delay between readiness probes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Client.PollIntervalMillis) * time.Millisecond
}

// StopGrace returns how long the supervisor waits for siad to exit after a
// stop request before killing it.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Siad.StopGraceSeconds) * time.Second
}

// LaunchSettings returns the flag settings passed to siad. Addresses and the
// data directory come from their dedicated keys; [siad.flags] entries are
// layered on top and win on conflict.
func (c *Config) LaunchSettings() map[string]any {
	settings := map[string]any{
		"api-addr":  c.Siad.APIAddr,
		"rpc-addr":  c.Siad.RPCAddr,
		"host-addr": c.Siad.HostAddr,
	}
	if c.Siad.SiaDirectory != "" {
		settings["sia-directory"] = c.Siad.SiaDirectory
	}
	for key, value := range c.Siad.Flags {
		settings[key] = value
	}
	return settings
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
