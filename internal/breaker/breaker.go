package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; calls pass through.
	StateOpen                  // Failing; calls are rejected immediately.
	StateHalfOpen              // Probing; a single trial call is allowed.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the breaker thresholds.
type Config struct {
	// FailureThreshold is the number of failures that opens the circuit.
	FailureThreshold int

	// ResetTimeout is how long after the last failure an open circuit admits a trial call.
	ResetTimeout time.Duration

	// MonitoringPeriod is how long a closed circuit remembers failures.
	MonitoringPeriod time.Duration
}

// DefaultConfig returns threshold 5, reset timeout 60s, monitoring period 120s.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: pgready.DefaultBreakerFailureThreshold,
		ResetTimeout:     pgready.DefaultBreakerResetTimeout,
		MonitoringPeriod: pgready.DefaultBreakerMonitoringPeriod,
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("failure threshold must be >= 1, got %d: %w", c.FailureThreshold, pgready.ErrInvalidConfig))
	}
	if c.ResetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reset timeout must be > 0, got %v: %w", c.ResetTimeout, pgready.ErrInvalidConfig))
	}
	if c.MonitoringPeriod <= 0 {
		errs = append(errs, fmt.Errorf("monitoring period must be > 0, got %v: %w", c.MonitoringPeriod, pgready.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// OpenError is returned instead of running the operation while the circuit rejects calls.
type OpenError struct {
	Name string

	// RetryAfter is the remaining cooldown. Zero when a half-open trial is in flight.
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("circuit breaker %q is half-open: trial call in progress", e.Name)
	}
	return fmt.Sprintf("circuit breaker %q is open: retry in %v", e.Name, e.RetryAfter.Round(time.Millisecond))
}

func (e *OpenError) Unwrap() error {
	return pgready.ErrCircuitOpen
}

// IsOpen reports whether err was produced by a rejecting breaker.
func IsOpen(err error) bool {
	return errors.Is(err, pgready.ErrCircuitOpen)
}

// Snapshot is a point-in-time copy of the breaker state.
type Snapshot struct {
	Name          string
	State         State
	Failures      int
	LastFailureAt time.Time
}

// StateChangeFunc is called after every transition, outside the breaker lock.
type StateChangeFunc func(name string, from, to State)

// Breaker guards calls to a single dependency.
type Breaker struct {
	name          string
	cfg           Config
	logger        pgready.Logger
	now           func() time.Time
	onStateChange StateChangeFunc

	mu            sync.Mutex
	state         State
	failures      int
	lastFailureAt time.Time
	trialInFlight bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger records state transitions as connection log entries.
func WithLogger(l pgready.Logger) Option {
	return func(b *Breaker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithOnStateChange registers a transition callback.
func WithOnStateChange(fn StateChangeFunc) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// New creates a closed breaker. The config is validated.
func New(name string, cfg Config, opts ...Option) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker %q: %w", name, err)
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: nopLogger{},
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the stored state. An open circuit whose cooldown has passed
// still reports open until the next call starts the trial.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a consistent copy of the breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:          b.name,
		State:         b.state,
		Failures:      b.failures,
		LastFailureAt: b.lastFailureAt,
	}
}

// Reset forces the breaker back to the closed state with no recorded failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.lastFailureAt = time.Time{}
	b.trialInFlight = false
	b.mu.Unlock()

	b.notify(from, StateClosed, "circuit breaker reset")
}

// Execute runs operation unless the circuit rejects it. The operation's own
// error is returned unchanged; rejections return *OpenError.
func (b *Breaker) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// Call is the value-returning form of Execute.
func Call[T any](ctx context.Context, b *Breaker, operation func(ctx context.Context) (T, error)) (result T, err error) {
	if err := ctx.Err(); err != nil {
		return result, err
	}

	trial, err := b.acquire()
	if err != nil {
		return result, err
	}

	completed := false
	defer func() {
		if !completed {
			// operation panicked; release the trial slot before propagating.
			b.record(trial, errors.New("operation panicked"))
		}
	}()

	result, err = operation(ctx)
	completed = true
	b.record(trial, err)
	return result, err
}

// acquire decides whether a call may proceed and reports whether it is the half-open trial.
func (b *Breaker) acquire() (bool, error) {
	b.mu.Lock()
	now := b.now()

	switch b.state {
	case StateOpen:
		elapsed := now.Sub(b.lastFailureAt)
		if elapsed < b.cfg.ResetTimeout {
			b.mu.Unlock()
			return false, &OpenError{Name: b.name, RetryAfter: b.cfg.ResetTimeout - elapsed}
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		b.mu.Unlock()
		b.notify(StateOpen, StateHalfOpen, "circuit breaker half-open: admitting trial call")
		return true, nil

	case StateHalfOpen:
		if b.trialInFlight {
			b.mu.Unlock()
			return false, &OpenError{Name: b.name}
		}
		b.trialInFlight = true
		b.mu.Unlock()
		return true, nil

	default:
		if b.failures > 0 && now.Sub(b.lastFailureAt) >= b.cfg.MonitoringPeriod {
			b.failures = 0
		}
		b.mu.Unlock()
		return false, nil
	}
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	from := b.state
	if trial {
		b.trialInFlight = false
	}

	if err == nil {
		// A late success from a call admitted before the circuit opened does not close it.
		if trial || b.state == StateClosed {
			b.failures = 0
			b.state = StateClosed
		}
		to := b.state
		b.mu.Unlock()
		if from != to {
			b.notify(from, to, "circuit breaker closed after successful call")
		}
		return
	}

	b.failures++
	b.lastFailureAt = b.now()
	failures := b.failures

	switch {
	case b.state == StateHalfOpen && trial:
		b.state = StateOpen
	case b.state == StateClosed && b.failures >= b.cfg.FailureThreshold:
		b.state = StateOpen
	}
	to := b.state
	b.mu.Unlock()

	if from != to {
		b.notify(from, to, fmt.Sprintf("circuit breaker opened after %d failure(s)", failures))
	}
}

func (b *Breaker) notify(from, to State, message string) {
	if from == to {
		return
	}
	level := pgready.LevelInfo
	if to == StateOpen {
		level = pgready.LevelWarn
	}
	b.logger.Log(level, pgready.CategoryConnection, message,
		pgready.WithContext(map[string]any{
			"breaker": b.name,
			"from":    from.String(),
			"to":      to.String(),
		}))
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

type nopLogger struct{}

func (nopLogger) Log(pgready.Level, pgready.Category, string, ...pgready.LogOption) {}
