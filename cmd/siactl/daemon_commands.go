package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"siactl/internal/journal"
	"siactl/internal/services"
	"siactl/internal/siad"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(ctx),
		newWaitCommand(ctx),
		newStopCommand(ctx),
	}
}

type statusReport struct {
	Address   string              `json:"address"`
	Running   bool                `json:"running"`
	Version   *siad.VersionInfo   `json:"version,omitempty"`
	Consensus *siad.ConsensusInfo `json:"consensus,omitempty"`
	Peers     *int                `json:"peers,omitempty"`
	LastRun   *lastRunSummary     `json:"last_run,omitempty"`
	Errors    map[string]string   `json:"errors,omitempty"`
}

type lastRunSummary struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether siad is answering and summarize its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{Address: cfg.Client.Address}
			err = ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				probeCtx, cancel := context.WithTimeout(callCtx, cfg.CallTimeout())
				report.Running = client.IsRunning(probeCtx)
				cancel()
				if report.Running {
					collectStatus(callCtx, client, &report)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if store, err := journal.Open(cfg); err == nil {
				if runs, err := store.ListRuns(cmd.Context(), 1); err == nil && len(runs) > 0 {
					report.LastRun = &lastRunSummary{ID: runs[0].ID, State: runs[0].State, PID: runs[0].PID, StartedAt: runs[0].StartedAt}
				}
				store.Close()
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
}

// collectStatus fetches version, consensus and gateway details concurrently.
// Individual failures are recorded in report.Errors.
func collectStatus(ctx context.Context, client *siad.Client, report *statusReport) {
	var (
		g         errgroup.Group
		version   siad.VersionInfo
		consensus siad.ConsensusInfo
		gateway   siad.GatewayInfo
		errs      [3]error
	)
	g.Go(func() error {
		version, errs[0] = client.DaemonVersion(ctx)
		return nil
	})
	g.Go(func() error {
		consensus, errs[1] = client.Consensus(ctx)
		return nil
	})
	g.Go(func() error {
		gateway, errs[2] = client.Gateway(ctx)
		return nil
	})
	_ = g.Wait()

	record := func(name string, err error) {
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors[name] = err.Error()
	}
	if errs[0] == nil {
		report.Version = &version
	} else {
		record("version", errs[0])
	}
	if errs[1] == nil {
		report.Consensus = &consensus
	} else {
		record("consensus", errs[1])
	}
	if errs[2] == nil {
		peers := len(gateway.Peers)
		report.Peers = &peers
	} else {
		record("gateway", errs[2])
	}
}

func printStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	if !report.Running {
		fmt.Fprintln(out, renderStatusLine("siad", statusError, "not answering at "+report.Address, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("siad", statusOK, "answering at "+report.Address, colorize))
	}
	if report.Version != nil {
		fmt.Fprintln(out, renderStatusLine("Version", statusInfo, report.Version.Version, colorize))
	}
	if report.Consensus != nil {
		kind := statusWarn
		label := "syncing"
		if report.Consensus.Synced {
			kind, label = statusOK, "synced"
		}
		fmt.Fprintln(out, renderStatusLine("Consensus", kind, fmt.Sprintf("%s at height %d", label, report.Consensus.Height), colorize))
	}
	if report.Peers != nil {
		kind := statusOK
		if *report.Peers == 0 {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Peers", kind, fmt.Sprintf("%d", *report.Peers), colorize))
	}
	for _, name := range slices.Sorted(maps.Keys(report.Errors)) {
		fmt.Fprintln(out, renderStatusLine(name, statusError, report.Errors[name], colorize))
	}
	if report.LastRun != nil {
		msg := fmt.Sprintf("%s (pid %d, %s)", stateLabel(report.LastRun.State), report.LastRun.PID, report.LastRun.ID)
		fmt.Fprintln(out, renderStatusLine("Last run", statusInfo, msg, colorize))
	}
}

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until siad answers its liveness probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				if timeout > 0 {
					var cancel context.CancelFunc
					callCtx, cancel = context.WithTimeout(callCtx, timeout)
					defer cancel()
				}
				started := time.Now()
				if err := client.WaitUntilReady(callCtx, cfg.PollInterval()); err != nil {
					return services.Wrap(services.ErrConnection, "siactl", "wait", "siad did not become ready at "+client.Address(), err)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"address": client.Address(), "ready": true, "waited_ms": time.Since(started).Milliseconds()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "siad is ready at %s\n", client.Address())
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits indefinitely)")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask siad to shut down via /daemon/stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				if err := client.DaemonStop(callCtx); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"address": client.Address(), "stopped": true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for siad at %s\n", client.Address())
				return nil
			})
		},
	}
}
