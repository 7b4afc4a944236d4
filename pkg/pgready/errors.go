package pgready

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	err := checker.Require(ctx)
//	if errors.Is(err, pgready.ErrConnectionFailed) {
//	    // database was unreachable
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrCircuitOpen indicates a call was rejected because the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrStartupFailed indicates one or more startup checks failed.
	ErrStartupFailed = errors.New("startup checks failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	invalid := errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrUnsupportedAuthMethod)
	connection := errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrCircuitOpen)

	switch {
	case invalid && connection:
		return ExitStartupFailed
	case invalid:
		return ExitConfigError
	case connection:
		return ExitConnectionError
	case errors.Is(err, ErrStartupFailed):
		return ExitStartupFailed
	}

	if isUsageError(err) {
		return ExitUsageError
	}

	return ExitGeneralError
}

// isUsageError recognizes the messages cobra produces for bad invocations.
func isUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"unknown flag",
		"unknown shorthand flag",
		"unknown command",
		"accepts ",
		"requires at least",
		"required flag",
		"invalid argument",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
