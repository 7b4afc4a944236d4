package startup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// SkippedProbeWarning is recorded when environment errors prevent the probe.
const SkippedProbeWarning = "database connectivity check skipped: environment invalid"

// Report is the aggregated outcome of a startup run.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Production bool      `json:"production"`

	// Success and EnvironmentValid are set once Run finishes.
	Success          bool `json:"success"`
	EnvironmentValid bool `json:"environmentValid"`

	Environment envcheck.Report `json:"environment"`

	DatabaseConnected bool   `json:"databaseConnected"`
	ProbeSkipped      bool   `json:"probeSkipped"`
	ProbeAttempts     int    `json:"probeAttempts"`
	ErrorCategory     string `json:"errorCategory,omitempty"`
	UserMessage       string `json:"userMessage,omitempty"`

	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	// probeErr keeps the unwrapped failure for Require.
	probeErr error
}

// Ready reports whether every check passed.
func (r Report) Ready() bool {
	return r.Environment.IsValid && r.DatabaseConnected
}

// Err aggregates the failures into one error wrapping pgready.ErrStartupFailed,
// or returns nil when the report is ready.
func (r Report) Err() error {
	if r.Ready() {
		return nil
	}
	var causes []error
	if err := r.Environment.Err(); err != nil {
		causes = append(causes, err)
	}
	switch {
	case r.probeErr != nil && errors.Is(r.probeErr, pgready.ErrConnectionFailed):
		causes = append(causes, r.probeErr)
	case r.probeErr != nil:
		causes = append(causes, fmt.Errorf("%w: %w", pgready.ErrConnectionFailed, r.probeErr))
	}
	if len(causes) == 0 {
		causes = append(causes, errors.New("database connectivity was not confirmed"))
	}
	return fmt.Errorf("%w: %w", pgready.ErrStartupFailed, errors.Join(causes...))
}

// Checker runs the startup sequence.
type Checker struct {
	env          *envcheck.Validator
	probe        Probe
	logger       pgready.Logger
	executor     *retry.Executor
	classifier   *retry.Classifier
	policy       retry.Policy
	probeTimeout time.Duration
	newRunID     func() string
	now          func() time.Time
	onReport     func(Report)
}

// Option configures a Checker.
type Option func(*Checker)

// WithPolicy replaces retry.ConnectionPolicy for the probe.
func WithPolicy(p retry.Policy) Option {
	return func(c *Checker) {
		c.policy = p
	}
}

// WithExecutor replaces the default executor. The classifier is attached to it.
func WithExecutor(e *retry.Executor) Option {
	return func(c *Checker) {
		c.executor = e
	}
}

// WithProbeTimeout bounds the whole probe, retries included.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithRunID replaces the UUID generator, mostly for tests.
func WithRunID(fn func() string) Option {
	return func(c *Checker) {
		c.newRunID = fn
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// WithReportHook is called with every finished report, e.g. to record metrics.
func WithReportHook(fn func(Report)) Option {
	return func(c *Checker) {
		c.onReport = fn
	}
}

// NewChecker creates a Checker. probe may be nil, in which case connectivity
// is reported as not checked and the run cannot be ready.
func NewChecker(env *envcheck.Validator, probe Probe, logger pgready.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = discardLogger{}
	}
	c := &Checker{
		env:          env,
		probe:        probe,
		logger:       logger,
		classifier:   retry.NewClassifier(),
		policy:       retry.ConnectionPolicy(),
		probeTimeout: pgready.DefaultProbeTimeout,
		newRunID:     uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = retry.NewExecutor(logger)
	}
	c.executor = c.executor.WithClassifier(c.classifier)
	return c
}

// Run executes the startup sequence and returns its report. It never returns an error.
func (c *Checker) Run(ctx context.Context) Report {
	start := c.now()
	report := Report{
		RunID:      c.newRunID(),
		StartedAt:  start,
		Production: c.env.Production(),
		Errors:     []string{},
		Warnings:   []string{},
	}
	runField := pgready.WithField("run_id", report.RunID)

	c.logger.Log(pgready.LevelInfo, pgready.CategoryValidation, "startup checks started", runField,
		pgready.WithField("production", report.Production))

	report.Environment = c.env.Validate()
	report.EnvironmentValid = report.Environment.IsValid
	report.Errors = append(report.Errors, report.Environment.Errors...)
	report.Warnings = append(report.Warnings, report.Environment.Warnings...)
	for _, msg := range report.Environment.Errors {
		c.logger.Log(pgready.LevelError, pgready.CategoryValidation, msg, runField)
	}
	for _, msg := range report.Environment.Warnings {
		c.logger.Log(pgready.LevelWarn, pgready.CategoryValidation, msg, runField)
	}

	switch {
	case !report.Environment.IsValid:
		report.ProbeSkipped = true
		report.Warnings = append(report.Warnings, SkippedProbeWarning)
		c.logger.Log(pgready.LevelWarn, pgready.CategoryConnection, SkippedProbeWarning, runField)
	case c.probe == nil:
		report.ProbeSkipped = true
		report.Warnings = append(report.Warnings, "database connectivity check skipped: no probe configured")
	default:
		c.runProbe(ctx, &report)
	}

	report.DurationMs = c.now().Sub(start).Milliseconds()
	report.Success = report.Ready()

	level := pgready.LevelInfo
	message := "startup checks passed"
	if !report.Ready() {
		level = pgready.LevelError
		message = "startup checks failed"
	}
	c.logger.Log(level, pgready.CategoryValidation, message, runField,
		pgready.WithDuration(c.now().Sub(start)),
		pgready.WithContext(map[string]any{
			"errors":   len(report.Errors),
			"warnings": len(report.Warnings),
		}))

	if c.onReport != nil {
		c.onReport(report)
	}
	return report
}

func (c *Checker) runProbe(ctx context.Context, report *Report) {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	outcome := c.executor.Execute(probeCtx, c.policy, "startup probe", c.probe)
	report.ProbeAttempts = outcome.Attempts

	if outcome.Success {
		report.DatabaseConnected = true
		c.logger.Log(pgready.LevelInfo, pgready.CategoryConnection, "database connectivity confirmed",
			pgready.WithField("run_id", report.RunID),
			pgready.WithField("attempts", outcome.Attempts),
			pgready.WithDuration(outcome.Elapsed))
		return
	}

	classified := outcome.Classified
	if classified == nil {
		classified = c.classifier.Classify(outcome.Err, nil)
	}
	report.probeErr = outcome.Err
	report.ErrorCategory = classified.Category.String()
	report.UserMessage = retry.UserMessage(classified, report.Production)
	report.Errors = append(report.Errors, "database connectivity check failed: "+report.UserMessage)

	c.logger.Log(pgready.LevelError, pgready.CategoryConnection, "database connectivity check failed",
		pgready.WithField("run_id", report.RunID),
		pgready.WithField("category", report.ErrorCategory),
		pgready.WithField("attempts", outcome.Attempts),
		pgready.WithError(outcome.Err))
}

// Require runs the checks and returns Report.Err. The report is returned too
// so callers can print it before exiting.
func (c *Checker) Require(ctx context.Context) (Report, error) {
	report := c.Run(ctx)
	return report, report.Err()
}

type discardLogger struct{}

func (discardLogger) Log(pgready.Level, pgready.Category, string, ...pgready.LogOption) {}
