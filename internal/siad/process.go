package siad

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ExitStatus describes how the child process ended.
type ExitStatus struct {
	Code int
	Err  error
	At   time.Time
}

// Process is a running (or finished) siad child.
type Process struct {
	Path    string
	Args    []string
	LogPath string

	cmd     *exec.Cmd
	logFile *os.File
	started time.Time

	done   chan struct{}
	mu     sync.Mutex
	status ExitStatus
}

// startProcess spawns path with flags derived from settings merged over the
// defaults. Output goes to OutputLogPath. Errors are returned synchronously;
// exit is observed by a goroutine that closes Done.
func startProcess(path string, settings Settings) (*Process, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, &ProcessError{Op: "launch", Path: path, Err: errors.New("binary path is empty")}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, &ProcessError{Op: "launch", Path: path, Err: err}
	}

	merged := MergeSettings(settings)
	args := BuildFlags(merged)
	logPath := OutputLogPath(merged)

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, &ProcessError{Op: "create output log dir", Path: filepath.Dir(logPath), Err: err}
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &ProcessError{Op: "open output log", Path: logPath, Err: err}
	}

	cmd := exec.Command(resolved, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, &ProcessError{Op: "launch", Path: path, Err: err}
	}

	proc := &Process{
		Path:    path,
		Args:    args,
		LogPath: logPath,
		cmd:     cmd,
		logFile: logFile,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go proc.watch()
	return proc, nil
}

func (p *Process) watch() {
	err := p.cmd.Wait()
	status := ExitStatus{Code: -1, At: time.Now()}
	if p.cmd.ProcessState != nil {
		status.Code = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		status.Err = err
	} else if err != nil {
		status.Err = fmt.Errorf("siad exited: %s", p.cmd.ProcessState)
	}
	_ = p.logFile.Close()

	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	close(p.done)
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// StartedAt returns when the process was spawned.
func (p *Process) StartedAt() time.Time {
	return p.started
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Status returns the exit status. It is the zero value until Done is closed.
func (p *Process) Status() ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-p.done:
		return p.Status(), nil
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

// Signal delivers sig to the process. Signalling an exited process is a no-op.
func (p *Process) Signal(sig os.Signal) error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal siad: %w", err)
	}
	return nil
}

// Kill terminates the process immediately.
func (p *Process) Kill() error {
	return p.Signal(os.Kill)
}
