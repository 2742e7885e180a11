package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProcessSpawn  = errors.New("process spawn error")
	ErrConnection    = errors.New("connection error")
	ErrAPI           = errors.New("api error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Exit codes reported by the CLI for each failure class.
const (
	ExitGeneric    = 1
	ExitProcess    = 2
	ExitConnection = 3
	ExitAPI        = 4
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps an error to the process exit status the CLI returns.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrProcessSpawn):
		return ExitProcess
	case errors.Is(err, ErrConnection):
		return ExitConnection
	case errors.Is(err, ErrAPI):
		return ExitAPI
	default:
		return ExitGeneric
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
