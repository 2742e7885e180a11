package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"siactl/internal/deps"
	"siactl/internal/services"
	"siactl/internal/siad"
)

type doctorCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, state directories and the siad API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var checks []doctorCheck
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			for _, status := range statuses {
				check := doctorCheck{Name: status.Name, Optional: status.Optional, Status: "ok", Detail: status.Resolved}
				if !status.Available {
					check.Status = "missing"
					check.Detail = status.Detail
				} else if version, err := deps.Version(cmd.Context(), status.Resolved, 5*time.Second); err == nil && version != "" {
					check.Detail = fmt.Sprintf("%s (%s)", status.Resolved, version)
				}
				checks = append(checks, check)
			}

			dirs := doctorCheck{Name: "state directories", Status: "ok", Detail: cfg.Paths.StateDir}
			if err := cfg.EnsureDirectories(); err != nil {
				dirs.Status, dirs.Detail = "error", err.Error()
			}
			checks = append(checks, dirs)

			api := doctorCheck{Name: "siad api", Optional: true, Status: "ok", Detail: cfg.Client.Address}
			_ = ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				probeCtx, cancel := context.WithTimeout(callCtx, cfg.CallTimeout())
				defer cancel()
				if !client.IsRunning(probeCtx) {
					api.Status = "down"
					api.Detail = "not answering at " + cfg.Client.Address
				}
				return nil
			})
			checks = append(checks, api)

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				printDoctor(cmd, checks)
			}

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return services.Wrap(services.ErrProcessSpawn, "doctor", "", fmt.Sprintf("required binaries missing: %v", missing), nil)
			}
			if dirs.Status != "ok" {
				return services.Wrap(services.ErrConfiguration, "doctor", "", "state directories unavailable", nil)
			}
			return nil
		},
	}
}

func printDoctor(cmd *cobra.Command, checks []doctorCheck) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, check := range checks {
		kind := statusOK
		switch {
		case check.Status == "ok":
		case check.Optional:
			kind = statusWarn
		default:
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
}
