package siad

import (
	"context"
	"time"
)

// IsRunning issues one liveness probe and reports whether siad answered with
// a 2xx status. Every failure, including a cancelled ctx, reports false.
func (c *Client) IsRunning(ctx context.Context) bool {
	start := time.Now()
	_, err := c.Call(ctx, Request{
		Path:    c.settings.ProbePath,
		Timeout: c.settings.ProbeTimeout,
	})
	ok := err == nil
	c.hooks.ProbeCompleted(ok, time.Since(start))
	return ok
}

// WaitUntilReady probes every interval until siad answers. It has no deadline
// of its own and returns only on success or when ctx is done.
func (c *Client) WaitUntilReady(ctx context.Context, interval time.Duration) error {
	return waitUntilReady(ctx, c, interval, nil)
}

// Connect probes address once and returns a client for it. It fails with
// ErrCouldNotConnect instead of retrying.
func Connect(ctx context.Context, settings ConnectionSettings, opts ...Option) (*Client, error) {
	client := NewClient(settings, opts...)
	if !client.IsRunning(ctx) {
		client.Close()
		return nil, ErrCouldNotConnect
	}
	return client, nil
}

// waitUntilReady runs at most one probe at a time. When exited is non-nil its
// closing aborts the in-flight probe and ends the wait with ErrProcessExited.
func waitUntilReady(ctx context.Context, c *Client, interval time.Duration, exited <-chan struct{}) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if exited != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-exited:
				cancel()
			case <-stop:
			}
		}()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return ErrProcessExited
		case <-timer.C:
		}

		if c.IsRunning(probeCtx) {
			return nil
		}
		select {
		case <-exited:
			return ErrProcessExited
		default:
		}
		timer.Reset(interval)
	}
}
