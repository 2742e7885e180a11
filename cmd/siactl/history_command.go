package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"siactl/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		events bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List supervised siad runs, or the events of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, ctx, store, args[0], events)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run))
				}
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					stateLabel(run.State),
					strconv.Itoa(run.PID),
					run.StartedAt.Local().Format(time.DateTime),
					run.Duration(now).Round(time.Second).String(),
					exitCodeText(run.ExitCode),
					run.StopReason,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "State", "PID", "Started", "Duration", "Exit", "Reason"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&events, "events", false, "Include lifecycle events when showing a single run")
	return cmd
}

type runView struct {
	ID           string     `json:"id"`
	Binary       string     `json:"binary"`
	Args         []string   `json:"args"`
	APIAddr      string     `json:"api_addr"`
	LogPath      string     `json:"log_path"`
	PID          int        `json:"pid"`
	State        string     `json:"state"`
	StartedAt    time.Time  `json:"started_at"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
	ExitedAt     *time.Time `json:"exited_at,omitempty"`
	ExitCode     *int       `json:"exit_code,omitempty"`
	StopReason   string     `json:"stop_reason,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
}

func newRunView(run journal.Run) runView {
	return runView{
		ID:           run.ID,
		Binary:       run.Binary,
		Args:         run.Args,
		APIAddr:      run.APIAddr,
		LogPath:      run.LogPath,
		PID:          run.PID,
		State:        run.State,
		StartedAt:    run.StartedAt,
		ReadyAt:      run.ReadyAt,
		StoppedAt:    run.StoppedAt,
		ExitedAt:     run.ExitedAt,
		ExitCode:     run.ExitCode,
		StopReason:   run.StopReason,
		ErrorMessage: run.ErrorMessage,
	}
}

func showRun(cmd *cobra.Command, ctx *commandContext, store *journal.Store, id string, withEvents bool) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	var records []journal.EventRecord
	if withEvents {
		if records, err = store.Events(cmd.Context(), id); err != nil {
			return err
		}
	}

	if ctx.jsonOutput() {
		payload := map[string]any{"run": newRunView(*run)}
		if withEvents {
			payload["events"] = records
		}
		return writeJSON(cmd, payload)
	}

	out := cmd.OutOrStdout()
	pairs := [][2]string{
		{"Run", run.ID},
		{"State", stateLabel(run.State)},
		{"Binary", run.Binary},
		{"API address", run.APIAddr},
		{"PID", strconv.Itoa(run.PID)},
		{"Started", run.StartedAt.Local().Format(time.DateTime)},
		{"Ready", timeText(run.ReadyAt)},
		{"Stopped", timeText(run.StoppedAt)},
		{"Exited", timeText(run.ExitedAt)},
		{"Exit code", exitCodeText(run.ExitCode)},
		{"Stop reason", run.StopReason},
		{"Output log", run.LogPath},
	}
	if run.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", run.ErrorMessage})
	}
	fmt.Fprintln(out, renderKeyValues(pairs))

	if withEvents {
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.CreatedAt.Local().Format("15:04:05.000"),
				rec.Kind,
				stateLabel(rec.State),
				exitCodeText(rec.ExitCode),
				rec.ErrorMessage,
			})
		}
		fmt.Fprintln(out, renderTable([]string{"Time", "Event", "State", "Exit", "Error"}, rows, nil))
	}
	return nil
}

func timeText(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func exitCodeText(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}
