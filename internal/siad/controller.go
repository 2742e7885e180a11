package siad

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"siactl/internal/logging"
)

// Controller owns one siad child process and tracks its lifecycle.
//
// State changes only in response to probe results and exit notifications.
// Transitions are serialized by mu, so an exit that lands while a probe is in
// flight cannot be undone by the probe's late success.
type Controller struct {
	client       *Client
	logger       *slog.Logger
	hooks        Hooks
	pollInterval time.Duration
	fixedRunID   string

	mu     sync.Mutex
	state  State
	proc   *Process
	runID  string
	subs   map[int]chan Event
	nextID int
}

// NewController returns a controller that talks to siad using settings.
func NewController(settings ConnectionSettings, opts ...Option) *Controller {
	o := buildOptions(opts)
	return &Controller{
		client:       newClient(settings, o),
		logger:       logging.NewComponentLogger(o.logger, "siad"),
		hooks:        o.hooks,
		pollInterval: o.pollInterval,
		fixedRunID:   o.runID,
		runID:        o.runID,
		state:        StateNotStarted,
		subs:         make(map[int]chan Event),
	}
}

// Client returns the API client bound to the controller's address.
func (c *Controller) Client() *Client {
	return c.client
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Process returns the most recently launched child, or nil.
func (c *Controller) Process() *Process {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proc
}

// RunID identifies the current launch. It is empty before the first Launch
// unless WithRunID was supplied.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Launch starts siad at path with settings merged over the defaults. Spawn
// failures are returned immediately and leave the state unchanged.
func (c *Controller) Launch(ctx context.Context, path string, settings Settings) (*Process, error) {
	c.mu.Lock()
	if c.proc != nil && !c.proc.Exited() {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	proc, err := startProcess(path, settings)
	if err != nil {
		event := c.eventLocked(EventSpawnFailed, 0)
		event.Err = err
		c.publishLocked(event)
		c.mu.Unlock()
		logging.ErrorWithContext(c.logger, "siad launch failed", "siad_spawn_failed",
			logging.String("binary", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check siad.binary points at an executable siad"),
		)
		return nil, err
	}

	c.proc = proc
	if c.fixedRunID != "" {
		c.runID = c.fixedRunID
	} else {
		c.runID = uuid.NewString()
	}
	c.transitionLocked(StateStarting, EventStarting, 0)
	runID := c.runID
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "siad launched",
		logging.String(logging.FieldRunID, runID),
		logging.Int("pid", proc.PID()),
		logging.String("log_path", proc.LogPath),
		logging.Any("args", proc.Args),
	)
	go c.watchExit(proc)
	return proc, nil
}

func (c *Controller) watchExit(proc *Process) {
	<-proc.Done()
	status := proc.Status()

	c.mu.Lock()
	current := c.proc == proc
	if current {
		event := c.eventLocked(EventExited, proc.PID())
		event.ExitCode = status.Code
		event.Err = status.Err
		c.setStateLocked(StateStopped)
		event.State = c.state
		c.publishLocked(event)
	}
	runID := c.runID
	c.mu.Unlock()

	if !current {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldRunID, runID),
		logging.Int("pid", proc.PID()),
		logging.Int("exit_code", status.Code),
	}
	if status.Err != nil {
		attrs = append(attrs, logging.Error(status.Err))
	}
	c.logger.Info("siad exited", logging.Args(attrs...)...)
}

// IsRunning probes the daemon once. A success moves a starting controller to
// Ready.
func (c *Controller) IsRunning(ctx context.Context) bool {
	ok := c.client.IsRunning(ctx)
	if ok {
		c.markReady()
	}
	return ok
}

// WaitUntilReady polls until the daemon answers, ctx is done, or the launched
// process exits (ErrProcessExited).
func (c *Controller) WaitUntilReady(ctx context.Context) error {
	var exited <-chan struct{}
	if proc := c.Process(); proc != nil {
		exited = proc.Done()
	}
	if err := waitUntilReady(ctx, c.client, c.pollInterval, exited); err != nil {
		return err
	}
	c.markReady()
	return nil
}

// Connect probes once and fails with ErrCouldNotConnect if siad does not
// answer.
func (c *Controller) Connect(ctx context.Context) (*Client, error) {
	if !c.IsRunning(ctx) {
		return nil, ErrCouldNotConnect
	}
	return c.client, nil
}

// Call relays spec through the controller's client.
func (c *Controller) Call(ctx context.Context, spec CallSpec) (json.RawMessage, error) {
	return c.client.Call(ctx, spec)
}

// Stop asks siad to shut down. On success the state becomes Stopped without
// waiting for the process to exit.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.client.DaemonStop(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	pid := 0
	if c.proc != nil {
		pid = c.proc.PID()
	}
	if c.state != StateStopped {
		c.transitionLocked(StateStopped, EventStopped, pid)
	}
	runID := c.runID
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "siad stop requested", logging.String(logging.FieldRunID, runID))
	return nil
}

// Subscribe registers for lifecycle events. Events are dropped for a
// subscriber whose buffer is full. The returned func unsubscribes and closes
// the channel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) markReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateStarting {
		return
	}
	if c.proc != nil && c.proc.Exited() {
		return
	}
	pid := 0
	if c.proc != nil {
		pid = c.proc.PID()
	}
	c.transitionLocked(StateReady, EventReady, pid)
	c.logger.Info("siad ready", logging.String(logging.FieldRunID, c.runID), logging.Int("pid", pid))
}

func (c *Controller) transitionLocked(state State, kind EventKind, pid int) {
	c.setStateLocked(state)
	c.publishLocked(c.eventLocked(kind, pid))
}

func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.hooks.StateChanged(state)
}

func (c *Controller) eventLocked(kind EventKind, pid int) Event {
	return Event{
		RunID: c.runID,
		Kind:  kind,
		State: c.state,
		PID:   pid,
		At:    time.Now(),
	}
}

func (c *Controller) publishLocked(event Event) {
	for _, ch := range c.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
