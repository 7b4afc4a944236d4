package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// Observer receives attempt and outcome notifications, e.g. for metrics.
type Observer interface {
	// OnAttempt is called after every failed attempt that will be retried.
	OnAttempt(label string, attempt int, err error, delay time.Duration)

	// OnOutcome is called once per Do call.
	OnOutcome(label string, success bool, attempts int, elapsed time.Duration)
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs operations under a retry Policy. Attempts are strictly
// sequential: attempt N+1 never starts before attempt N has failed and its
// backoff has elapsed.
//
// Thread Safety:
// The Executor itself is safe for concurrent use. WithClassifier() and
// WithObserver() return NEW instances; the receiver remains unchanged.
type Executor struct {
	logger     pgready.Logger
	classifier *Classifier
	observer   Observer
	sleep      Sleeper
	now        func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSleeper replaces the backoff wait, mostly for tests.
func WithSleeper(s Sleeper) ExecutorOption {
	return func(e *Executor) {
		e.sleep = s
	}
}

// WithClock replaces the time source used for elapsed time.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates a retry executor that reports attempts to logger.
// A nil logger discards everything.
func NewExecutor(logger pgready.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = discardLogger{}
	}
	e := &Executor{
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithClassifier returns a new Executor that stops retrying as soon as an error
// classifies as non-retryable (authentication and validation failures).
//
// This method does NOT modify the receiver; it returns a new instance.
func (e *Executor) WithClassifier(c *Classifier) *Executor {
	clone := *e
	clone.classifier = c
	return &clone
}

// WithObserver returns a new Executor with the observer attached.
//
// This method does NOT modify the receiver; it returns a new instance.
func (e *Executor) WithObserver(o Observer) *Executor {
	clone := *e
	clone.observer = o
	return &clone
}

// Execute is Do for operations without a result value.
func (e *Executor) Execute(ctx context.Context, policy Policy, label string, operation func(ctx context.Context) error) Outcome[struct{}] {
	return Do(ctx, e, policy, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
}

// PanicError is the failure recorded when an operation panics. A panic ends the
// retry loop.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panicked: %v", e.Value)
}

// Do runs operation up to policy.MaxAttempts() times and never returns an error
// directly: every failure is captured in the Outcome. One log entry is written per
// attempt plus one summary entry. Cancelling ctx ends a pending backoff wait; the
// outcome then carries the context error joined with the last operation error.
//
// An invalid policy fails the call without running operation; the rejection counts
// as the single attempt. A panicking operation is recovered into a *PanicError.
func Do[T any](ctx context.Context, e *Executor, policy Policy, label string, operation func(ctx context.Context) (T, error)) Outcome[T] {
	start := e.now()
	category := policy.Category()

	if err := policy.Validate(); err != nil {
		err = fmt.Errorf("%s: invalid retry policy: %w", label, err)
		elapsed := e.now().Sub(start)
		e.logger.Log(pgready.LevelError, category, err.Error(),
			pgready.WithField("label", label), pgready.WithError(err))
		e.notifyOutcome(label, false, 1, elapsed)
		return Outcome[T]{Err: err, Attempts: 1, Elapsed: elapsed}
	}
	maxAttempts := policy.MaxAttempts()

	var (
		lastErr    error
		classified *ClassifiedError
		attempts   int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		attemptStart := e.now()
		value, err := callOperation(ctx, operation)
		took := e.now().Sub(attemptStart)

		fields := map[string]any{
			"label":        label,
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}

		if err == nil {
			e.logger.Log(pgready.LevelDebug, category,
				fmt.Sprintf("%s: attempt %d/%d succeeded", label, attempt, maxAttempts),
				pgready.WithContext(fields), pgready.WithDuration(took))
			elapsed := e.now().Sub(start)
			e.logger.Log(pgready.LevelInfo, category,
				fmt.Sprintf("%s succeeded after %d attempt(s)", label, attempt),
				pgready.WithField("label", label), pgready.WithField("attempts", attempt), pgready.WithDuration(elapsed))
			e.notifyOutcome(label, true, attempt, elapsed)
			return Outcome[T]{Success: true, Value: value, Attempts: attempt, Elapsed: elapsed}
		}

		lastErr = err
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			e.logger.Log(pgready.LevelError, category,
				fmt.Sprintf("%s: attempt %d/%d panicked", label, attempt, maxAttempts),
				pgready.WithContext(fields), pgready.WithDuration(took), pgready.WithError(err))
			break
		}
		if e.classifier != nil {
			classified = e.classifier.Classify(err, fields)
			fields["category"] = classified.Category.String()
			if !classified.Retryable {
				e.logger.Log(pgready.LevelWarn, category,
					fmt.Sprintf("%s: attempt %d/%d failed with non-retryable %s error", label, attempt, maxAttempts, classified.Category),
					pgready.WithContext(fields), pgready.WithDuration(took), pgready.WithError(err))
				break
			}
		}

		if attempt == maxAttempts {
			e.logger.Log(pgready.LevelWarn, category,
				fmt.Sprintf("%s: attempt %d/%d failed", label, attempt, maxAttempts),
				pgready.WithContext(fields), pgready.WithDuration(took), pgready.WithError(err))
			break
		}

		delay := policy.Delay(attempt)
		fields["retry_in_ms"] = delay.Milliseconds()
		e.logger.Log(pgready.LevelWarn, category,
			fmt.Sprintf("%s: attempt %d/%d failed, retrying in %v", label, attempt, maxAttempts, delay),
			pgready.WithContext(fields), pgready.WithDuration(took), pgready.WithError(err))

		if e.observer != nil {
			e.observer.OnAttempt(label, attempt, err, delay)
		}

		if waitErr := e.sleep(ctx, delay); waitErr != nil {
			lastErr = errors.Join(waitErr, lastErr)
			break
		}
	}

	elapsed := e.now().Sub(start)
	e.logger.Log(pgready.LevelError, category,
		fmt.Sprintf("%s failed after %d attempt(s)", label, attempts),
		pgready.WithField("label", label), pgready.WithField("attempts", attempts),
		pgready.WithDuration(elapsed), pgready.WithError(lastErr))
	e.notifyOutcome(label, false, attempts, elapsed)

	return Outcome[T]{
		Err:        lastErr,
		Attempts:   attempts,
		Elapsed:    elapsed,
		Classified: classified,
	}
}

func callOperation[T any](ctx context.Context, operation func(ctx context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, err = zero, &PanicError{Value: r}
		}
	}()
	return operation(ctx)
}

func (e *Executor) notifyOutcome(label string, success bool, attempts int, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.OnOutcome(label, success, attempts, elapsed)
	}
}

// sleepContext waits for the backoff period, respecting context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type discardLogger struct{}

func (discardLogger) Log(pgready.Level, pgready.Category, string, ...pgready.LogOption) {}
