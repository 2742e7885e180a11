package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"siactl/internal/config"
	"siactl/internal/logging"
	"siactl/internal/services"
	"siactl/internal/siad"
	"siactl/internal/supervisor"
)

type globalFlags struct {
	config  string
	address string
	json    bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if addr := strings.TrimSpace(c.flags.address); addr != "" {
			cfg.Client.Address = addr
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	// CLI commands log only warnings and above so regular output stays clean.
	logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withClient builds a client for the configured address and tags ctx with a
// request id for log correlation.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(context.Context, *siad.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client := siad.NewClient(supervisor.ClientSettings(cfg), siad.WithLogger(c.logger()))
	defer client.Close()
	ctx := services.WithRequestID(cmd.Context(), uuid.NewString())
	return fn(ctx, client)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
