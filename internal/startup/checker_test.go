package startup

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/logging"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/pkg/pgready"
)

func validEnv() map[string]string {
	return map[string]string{
		envcheck.KeyDatabaseURL: "postgresql://app:pw@localhost:5432/app",
		envcheck.KeyAuthSecret:  "Zq8vN2xLp4Rt7Wy1Ks5Hd3Fg6Jm9Bc0Qa",
		envcheck.KeyAuthURL:     "http://localhost:3000",
	}
}

// countingProbe fails the first failures calls with err.
type countingProbe struct {
	failures int
	err      error
	calls    int
}

func (p *countingProbe) probe(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return p.err
	}
	return nil
}

func newTestChecker(t *testing.T, env map[string]string, production bool, probe Probe, opts ...Option) (*Checker, *logging.Logger) {
	t.Helper()
	logger := logging.New(logging.WithConsole(nil))
	executor := retry.NewExecutor(logger, retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	base := []Option{
		WithExecutor(executor),
		WithPolicy(retry.NewPolicy(3, retry.WithBaseDelay(time.Millisecond), retry.WithJitter(false))),
		WithRunID(func() string { return "run-1" }),
	}
	checker := NewChecker(envcheck.New(envcheck.MapLookup(env), production), probe, logger, append(base, opts...)...)
	return checker, logger
}

func TestChecker_Ready(t *testing.T) {
	probe := &countingProbe{}
	checker, logger := newTestChecker(t, validEnv(), false, probe.probe)

	report, err := checker.Require(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Ready())
	assert.True(t, report.Success)
	assert.True(t, report.EnvironmentValid)
	assert.True(t, report.DatabaseConnected)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, report.ProbeAttempts)
	assert.Empty(t, report.Errors)

	for _, e := range logger.ByCategory(pgready.CategoryValidation, 0) {
		if e.Message == "startup checks started" {
			assert.Equal(t, "run-1", e.Context["run_id"])
		}
	}
	assert.Empty(t, logger.ErrorsOnly(0))
}

func TestChecker_RetriesTransientProbeFailures(t *testing.T) {
	probe := &countingProbe{failures: 2, err: errors.New("dial tcp: connection refused")}
	checker, _ := newTestChecker(t, validEnv(), false, probe.probe)

	report := checker.Run(context.Background())
	assert.True(t, report.Ready())
	assert.Equal(t, 3, probe.calls)
	assert.Equal(t, 3, report.ProbeAttempts)
}

func TestChecker_InvalidEnvironmentSkipsProbe(t *testing.T) {
	env := validEnv()
	delete(env, envcheck.KeyDatabaseURL)
	probe := &countingProbe{}
	checker, logger := newTestChecker(t, env, false, probe.probe)

	report, err := checker.Require(context.Background())

	assert.Zero(t, probe.calls)
	assert.False(t, report.Success)
	assert.False(t, report.EnvironmentValid)
	assert.True(t, report.ProbeSkipped)
	assert.False(t, report.DatabaseConnected)
	assert.Contains(t, report.Warnings, SkippedProbeWarning)
	assert.ErrorIs(t, err, pgready.ErrStartupFailed)
	assert.ErrorIs(t, err, pgready.ErrInvalidConfig)
	assert.NotErrorIs(t, err, pgready.ErrConnectionFailed)
	assert.Equal(t, pgready.ExitConfigError, pgready.ExitCodeForError(err))

	skipped := false
	for _, e := range logger.Recent(0, pgready.LevelWarn) {
		if e.Message == SkippedProbeWarning {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestChecker_AuthenticationFailureIsNotRetried(t *testing.T) {
	probe := &countingProbe{failures: 10, err: errors.New(`FATAL: password authentication failed for user "app"`)}

	tests := []struct {
		name        string
		production  bool
		wantMessage string
	}{
		{"development shows technical message", false, "password authentication failed"},
		{"production hides details", true, "temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe.calls = 0
			env := validEnv()
			if tt.production {
				env[envcheck.KeyDatabaseURL] = "postgresql://app:pw@db.internal:5432/app?sslmode=require&connection_limit=10"
				env[envcheck.KeyAuthURL] = "https://shop.io"
			}
			checker, _ := newTestChecker(t, env, tt.production, probe.probe)

			report, err := checker.Require(context.Background())
			require.Error(t, err)
			assert.Equal(t, 1, probe.calls)
			assert.Equal(t, "authentication", report.ErrorCategory)
			assert.Contains(t, report.UserMessage, tt.wantMessage)
			assert.ErrorIs(t, err, pgready.ErrConnectionFailed)
			assert.Equal(t, pgready.ExitConnectionError, pgready.ExitCodeForError(err))
		})
	}
}

func TestChecker_ProbeTimeout(t *testing.T) {
	blocking := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	checker, _ := newTestChecker(t, validEnv(), false, blocking,
		WithProbeTimeout(20*time.Millisecond),
		WithPolicy(retry.NewPolicy(0)))

	report := checker.Run(context.Background())
	assert.False(t, report.DatabaseConnected)
	assert.Equal(t, "timeout", report.ErrorCategory)
}

func TestChecker_NilProbe(t *testing.T) {
	checker, _ := newTestChecker(t, validEnv(), false, nil)

	report, err := checker.Require(context.Background())
	assert.True(t, report.ProbeSkipped)
	assert.ErrorIs(t, err, pgready.ErrStartupFailed)
}

func TestChecker_ReportHook(t *testing.T) {
	var got []Report
	probe := &countingProbe{}
	checker, _ := newTestChecker(t, validEnv(), false, probe.probe, WithReportHook(func(r Report) {
		got = append(got, r)
	}))

	checker.Run(context.Background())
	require.Len(t, got, 1)
	assert.True(t, got[0].Ready())
}

func TestReport_JSONCarriesTopLevelStatus(t *testing.T) {
	probe := &countingProbe{failures: 10, err: errors.New("dial tcp: connection refused")}
	checker, _ := newTestChecker(t, validEnv(), false, probe.probe, WithPolicy(retry.NewPolicy(0)))

	report := checker.Run(context.Background())
	assert.False(t, report.Success)
	assert.True(t, report.EnvironmentValid)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, true, decoded["environmentValid"])
}
