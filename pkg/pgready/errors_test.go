package pgready_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vvka-141/pgready/pkg/pgready"
)

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, pgready.ExitSuccess},
		{"unknown flag", errors.New("unknown flag --foo"), pgready.ExitUsageError},
		{"unknown shorthand flag", errors.New("unknown shorthand flag: 'x'"), pgready.ExitUsageError},
		{"accepts args", errors.New("accepts 1 arg(s), received 0"), pgready.ExitUsageError},
		{"required flag", errors.New("required flag \"config\" not set"), pgready.ExitUsageError},
		{"general error", errors.New("something went wrong"), pgready.ExitGeneralError},
		{"connection failed", pgready.ErrConnectionFailed, pgready.ExitConnectionError},
		{"circuit open", fmt.Errorf("query: %w", pgready.ErrCircuitOpen), pgready.ExitConnectionError},
		{"invalid config", fmt.Errorf("DATABASE_URL: %w", pgready.ErrInvalidConfig), pgready.ExitConfigError},
		{"unsupported auth", pgready.ErrUnsupportedAuthMethod, pgready.ExitConfigError},
		{"startup failed", pgready.ErrStartupFailed, pgready.ExitStartupFailed},
		{
			"config and connection together",
			errors.Join(pgready.ErrInvalidConfig, pgready.ErrConnectionFailed),
			pgready.ExitStartupFailed,
		},
		{
			"startup wrapping connection",
			fmt.Errorf("%w: %w", pgready.ErrStartupFailed, pgready.ErrConnectionFailed),
			pgready.ExitConnectionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pgready.ExitCodeForError(tt.err); got != tt.want {
				t.Errorf("ExitCodeForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
