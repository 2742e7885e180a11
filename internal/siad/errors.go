package siad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"siactl/internal/services"
)

var (
	// ErrCouldNotConnect is returned by Connect when the daemon does not
	// answer the liveness probe.
	ErrCouldNotConnect = fmt.Errorf("%w: could not connect to the Sia daemon", services.ErrConnection)
	// ErrProcessExited is returned while waiting for readiness if the child
	// process exits first.
	ErrProcessExited = errors.New("siad process exited")
	// ErrAlreadyRunning is returned by Launch when the controller's child is
	// still alive.
	ErrAlreadyRunning = errors.New("siad is already running")
	// ErrNotLaunched is returned by operations that need a child process when
	// none has been launched.
	ErrNotLaunched = errors.New("siad has not been launched")
)

// ProcessError reports a failure to start the siad binary.
type ProcessError struct {
	Path string
	Op   string
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("siad %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ProcessError) Unwrap() []error {
	return []error{services.ErrProcessSpawn, e.Err}
}

// ConnectionError reports a transport failure: refused connection, timeout,
// or a reset before the response completed.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("siad %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{services.ErrConnection, e.Err}
}

// Timeout reports whether the request ran out of time.
func (e *ConnectionError) Timeout() bool {
	var timeout interface{ Timeout() bool }
	if errors.As(e.Err, &timeout) && timeout.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// APIError is a non-2xx response from siad. Body holds the raw response so
// callers can inspect fields beyond the message.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("siad api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("siad api: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return services.ErrAPI
}

// newAPIError decodes siad's {"message": "..."} error body. Older daemons
// reply with plain text, which is used verbatim.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}
	var decoded struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		apiErr.Message = decoded.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
