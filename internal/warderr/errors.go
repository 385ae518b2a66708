package warderr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrValidation   = errors.New("invalid command input")
	ErrUnauthorized = errors.New("admin role required")
	ErrExternalCall = errors.New("platform call failed")
	ErrFatalConfig  = errors.New("invalid configuration")
)

type Class string

const (
	ClassNone          Class = ""
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassExternalCall  Class = "external_call"
	ClassFatalConfig   Class = "fatal_config"
	ClassInternal      Class = "internal"
)

// ExternalCallError wraps a failed platform API call. It matches both
// ErrExternalCall and the underlying cause with errors.Is.
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + ErrExternalCall.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExternalCallError) Unwrap() []error {
	return []error{ErrExternalCall, e.Err}
}

func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalCallError{Op: strings.TrimSpace(op), Err: err}
}

// ConfigError lists every problem found while validating startup configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return ErrFatalConfig.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Unwrap() error {
	return ErrFatalConfig
}

func Config(problems ...string) error {
	filtered := make([]string, 0, len(problems))
	for _, problem := range problems {
		if trimmed := strings.TrimSpace(problem); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &ConfigError{Problems: filtered}
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Classify is the single place that maps an error onto the moderation error
// taxonomy. Context cancellation and deadline errors count as external call
// failures because they only ever surface from platform calls.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrFatalConfig):
		return ClassFatalConfig
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrUnauthorized):
		return ClassAuthorization
	case errors.Is(err, ErrExternalCall),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ClassExternalCall
	default:
		return ClassInternal
	}
}

// Swallow reports whether an error of this class stays inside the bot
// (logged only) instead of being surfaced to the caller.
func Swallow(err error) bool {
	switch Classify(err) {
	case ClassNone, ClassExternalCall, ClassAuthorization:
		return true
	default:
		return false
	}
}

// Log records err under op and returns true when the error was swallowed.
func Log(logger *slog.Logger, op string, err error, attrs ...any) bool {
	if err == nil {
		return true
	}
	class := Classify(err)
	swallowed := Swallow(err)
	if logger != nil {
		args := append([]any{"op", op, "class", string(class), "error", err}, attrs...)
		if swallowed {
			logger.Warn("operation failed", args...)
		} else {
			logger.Error("operation failed", args...)
		}
	}
	return swallowed
}
