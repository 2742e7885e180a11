package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSiad(); err != nil {
		return err
	}
	c.normalizeClient()
	c.normalizeLogging()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSiad() error {
	c.Siad.Binary = strings.TrimSpace(c.Siad.Binary)
	if c.Siad.Binary == "" {
		c.Siad.Binary = defaultSiadBinary
	}
	// Bare command names are resolved through PATH at launch time.
	if strings.ContainsRune(c.Siad.Binary, '/') || strings.HasPrefix(c.Siad.Binary, "~") {
		expanded, err := expandPath(c.Siad.Binary)
		if err != nil {
			return fmt.Errorf("siad.binary: %w", err)
		}
		c.Siad.Binary = expanded
	}
	if dir := strings.TrimSpace(c.Siad.SiaDirectory); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("siad.sia_directory: %w", err)
		}
		c.Siad.SiaDirectory = expanded
	}
	c.Siad.APIAddr = trimOr(c.Siad.APIAddr, defaultAPIAddr)
	c.Siad.RPCAddr = trimOr(c.Siad.RPCAddr, defaultRPCAddr)
	c.Siad.HostAddr = trimOr(c.Siad.HostAddr, defaultHostAddr)
	if c.Siad.StopGraceSeconds <= 0 {
		c.Siad.StopGraceSeconds = defaultStopGraceSeconds
	}
	if len(c.Siad.Flags) > 0 {
		flags := make(map[string]any, len(c.Siad.Flags))
		for key, value := range c.Siad.Flags {
			key = strings.TrimPrefix(strings.TrimSpace(key), "--")
			if key == "" {
				continue
			}
			flags[key] = value
		}
		c.Siad.Flags = flags
	}
	return nil
}

func (c *Config) normalizeClient() {
	c.Client.Address = strings.TrimSpace(c.Client.Address)
	if c.Client.Address == "" {
		c.Client.Address = c.Siad.APIAddr
	}
	c.Client.UserAgent = trimOr(c.Client.UserAgent, defaultUserAgent)
	if c.Client.APIPassword == "" {
		if value, ok := os.LookupEnv(apiPasswordEnv); ok {
			c.Client.APIPassword = value
		}
	}
	if c.Client.CallTimeoutSeconds == 0 {
		c.Client.CallTimeoutSeconds = defaultCallTimeoutSeconds
	}
	if c.Client.ProbeTimeoutSeconds == 0 {
		c.Client.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	c.Client.ProbePath = trimOr(c.Client.ProbePath, defaultProbePath)
	if !strings.HasPrefix(c.Client.ProbePath, "/") {
		c.Client.ProbePath = "/" + c.Client.ProbePath
	}
	if c.Client.PollIntervalMillis == 0 {
		c.Client.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Client.MaxSockets == 0 {
		c.Client.MaxSockets = defaultMaxSockets
	}
	if c.Client.RateBurst == 0 {
		c.Client.RateBurst = defaultRateBurst
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(trimOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(trimOr(c.Logging.Level, defaultLogLevel))
}

func trimOr(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
