package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"siactl/internal/siad"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one supervised launch of siad.
type Run struct {
	ID           string
	Binary       string
	Args         []string
	APIAddr      string
	LogPath      string
	PID          int
	State        string
	StartedAt    time.Time
	ReadyAt      *time.Time
	StoppedAt    *time.Time
	ExitedAt     *time.Time
	ExitCode     *int
	StopReason   string
	ErrorMessage string
}

// Duration returns how long the run lasted, or has lasted so far.
func (r Run) Duration(now time.Time) time.Duration {
	end := now
	if r.ExitedAt != nil {
		end = *r.ExitedAt
	}
	if end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}

// EventRecord is a persisted lifecycle event.
type EventRecord struct {
	ID           int64
	RunID        string
	Kind         string
	State        string
	PID          int
	ExitCode     *int
	ErrorMessage string
	CreatedAt    time.Time
}

const runColumns = "id, binary_path, args_json, api_addr, log_path, pid, state, started_at, ready_at, stopped_at, exited_at, exit_code, stop_reason, error_message"

// StartRun inserts a row for a freshly launched process.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("start run: id is required")
	}
	args := run.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.State == "" {
		run.State = siad.StateStarting.String()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, binary_path, args_json, api_addr, log_path, pid, state, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Binary, string(argsJSON), run.APIAddr, run.LogPath, run.PID, run.State,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordEvent appends ev to the run's history and updates the run row to
// match. Events for unknown runs are rejected.
func (s *Store) RecordEvent(ctx context.Context, ev siad.Event) error {
	if ev.RunID == "" {
		return errors.New("record event: run id is required")
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	stamp := formatTime(at)
	errMessage := ""
	if ev.Err != nil {
		errMessage = ev.Err.Error()
	}
	var exitCode any
	if ev.Kind == siad.EventExited {
		exitCode = ev.ExitCode
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var update string
	var args []any
	switch ev.Kind {
	case siad.EventReady:
		update = "UPDATE runs SET state = ?, ready_at = COALESCE(ready_at, ?) WHERE id = ?"
		args = []any{ev.State.String(), stamp, ev.RunID}
	case siad.EventStopped:
		update = "UPDATE runs SET state = ?, stopped_at = COALESCE(stopped_at, ?), stop_reason = CASE WHEN stop_reason = '' THEN 'stop requested' ELSE stop_reason END WHERE id = ?"
		args = []any{ev.State.String(), stamp, ev.RunID}
	case siad.EventExited:
		update = "UPDATE runs SET state = ?, exited_at = ?, exit_code = ?, error_message = ? WHERE id = ?"
		args = []any{ev.State.String(), stamp, exitCode, errMessage, ev.RunID}
	default:
		update = "UPDATE runs SET state = ? WHERE id = ?"
		args = []any{ev.State.String(), ev.RunID}
	}
	res, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, ev.RunID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, kind, state, pid, exit_code, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, string(ev.Kind), ev.State.String(), ev.PID, exitCode, errMessage, stamp,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// SetStopReason annotates why a run ended, for example "signal: terminated"
// or "killed after grace period".
func (s *Store) SetStopReason(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE runs SET stop_reason = ? WHERE id = ?", reason, id)
	if err != nil {
		return fmt.Errorf("update stop reason: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Events returns a run's events in the order they were recorded.
func (s *Store) Events(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, kind, state, pid, exit_code, error_message, created_at FROM run_events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var (
			rec        EventRecord
			exitCode   sql.NullInt64
			createdRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Kind, &rec.State, &rec.PID, &exitCode, &rec.ErrorMessage, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			rec.ExitCode = &code
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			rec.CreatedAt = created
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were
// removed. Their events go with them.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)",
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run        Run
		argsJSON   string
		startedRaw string
		readyRaw   sql.NullString
		stoppedRaw sql.NullString
		exitedRaw  sql.NullString
		exitCode   sql.NullInt64
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Binary,
		&argsJSON,
		&run.APIAddr,
		&run.LogPath,
		&run.PID,
		&run.State,
		&startedRaw,
		&readyRaw,
		&stoppedRaw,
		&exitedRaw,
		&exitCode,
		&run.StopReason,
		&run.ErrorMessage,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	run.ReadyAt = parseNullableTime(readyRaw)
	run.StoppedAt = parseNullableTime(stoppedRaw)
	run.ExitedAt = parseNullableTime(exitedRaw)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	return &run, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
