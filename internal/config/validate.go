package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSiad(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSiad() error {
	if c.Siad.Binary == "" {
		return errors.New("siad.binary must be set")
	}
	for name, addr := range map[string]string{
		"siad.api_addr":  c.Siad.APIAddr,
		"siad.rpc_addr":  c.Siad.RPCAddr,
		"siad.host_addr": c.Siad.HostAddr,
	} {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%s: invalid address %q: %w", name, addr, err)
		}
	}
	for key, value := range c.Siad.Flags {
		switch value.(type) {
		case bool, string, int64, float64:
		default:
			return fmt.Errorf("siad.flags.%s: unsupported value type %T", key, value)
		}
	}
	return nil
}

func (c *Config) validateClient() error {
	if _, _, err := net.SplitHostPort(c.Client.Address); err != nil {
		return fmt.Errorf("client.address: invalid address %q: %w", c.Client.Address, err)
	}
	if c.Client.CallTimeoutSeconds < 0 {
		return errors.New("client.call_timeout_seconds must be positive")
	}
	if c.Client.ProbeTimeoutSeconds < 0 {
		return errors.New("client.probe_timeout_seconds must be positive")
	}
	if c.Client.PollIntervalMillis < 0 {
		return errors.New("client.poll_interval_ms must be positive")
	}
	if c.Client.MaxSockets < 0 {
		return errors.New("client.max_sockets must be positive")
	}
	if c.Client.RateLimit < 0 {
		return errors.New("client.rate_limit must be zero (disabled) or positive")
	}
	if c.Client.RateBurst < 0 {
		return errors.New("client.rate_burst must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Bind); err != nil {
		return fmt.Errorf("metrics.bind: invalid address %q: %w", c.Metrics.Bind, err)
	}
	return nil
}
