package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"siactl/internal/supervisor"
)

func newLaunchCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch siad and supervise it in the foreground",
		Long: "Launch siad with the configured flags, wait until its API answers, and keep it\n" +
			"running until interrupted. SIGINT or SIGTERM stops siad through /daemon/stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return supervisor.Run(cmd.Context(), cfg, supervisor.Options{
				LogLevel: logLevel,
				OnReady: func(runID string) {
					if ctx.jsonOutput() {
						_ = writeJSON(cmd, map[string]string{"run_id": runID, "address": cfg.Client.Address, "state": "ready"})
						return
					}
					fmt.Fprintf(out, "siad ready at %s (run %s)\n", cfg.Client.Address, runID)
				},
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}
