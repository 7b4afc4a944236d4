package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// jitterFraction is the maximum relative offset applied when jitter is enabled.
const jitterFraction = 0.25

// Policy describes bounded exponential backoff. A Policy is immutable once built;
// derive variants with With.
type Policy struct {
	// maxRetries is the number of retries after the first attempt (0 = single attempt)
	maxRetries int

	// baseDelay is the delay before the first retry
	baseDelay time.Duration

	// maxDelay caps every computed delay
	maxDelay time.Duration

	// multiplier is the factor by which delay grows per attempt
	multiplier float64

	// jitter perturbs each delay by up to +/-25%
	jitter bool

	// jitterFunc provides random values [0, 1) for jitter calculation (defaults to rand.Float64)
	jitterFunc func() float64

	// category is the log category attempts are recorded under
	category pgready.Category
}

// PolicyOption is a functional option for configuring a Policy.
type PolicyOption func(*Policy)

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) PolicyOption {
	return func(p *Policy) {
		p.baseDelay = d
	}
}

// WithMaxDelay sets the maximum delay between attempts.
func WithMaxDelay(d time.Duration) PolicyOption {
	return func(p *Policy) {
		p.maxDelay = d
	}
}

// WithMultiplier sets the factor by which delay increases between attempts.
func WithMultiplier(m float64) PolicyOption {
	return func(p *Policy) {
		p.multiplier = m
	}
}

// WithJitter enables or disables +/-25% randomization of each delay.
func WithJitter(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.jitter = enabled
	}
}

// WithJitterFunc sets a custom function for generating random jitter values in [0, 1).
func WithJitterFunc(f func() float64) PolicyOption {
	return func(p *Policy) {
		p.jitterFunc = f
	}
}

// WithCategory sets the log category attempts are recorded under.
func WithCategory(c pgready.Category) PolicyOption {
	return func(p *Policy) {
		p.category = c
	}
}

// WithMaxRetries overrides the retry count. Mostly useful with Policy.With.
func WithMaxRetries(n int) PolicyOption {
	return func(p *Policy) {
		p.maxRetries = n
	}
}

// NewPolicy creates a backoff policy with sensible defaults.
// Additional configuration can be provided via functional options.
//
// Example:
//
//	policy := retry.NewPolicy(3,
//	    retry.WithBaseDelay(200 * time.Millisecond),
//	    retry.WithMaxDelay(5 * time.Second),
//	    retry.WithJitter(false),
//	)
func NewPolicy(maxRetries int, opts ...PolicyOption) Policy {
	p := Policy{
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
		multiplier: 2.0,
		jitter:     true,
		category:   pgready.CategoryConnection,
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// DefaultPolicy is the general-purpose preset.
func DefaultPolicy() Policy {
	return NewPolicy(3)
}

// ConnectionPolicy is the preset for establishing connections: more retries,
// longer waits and a gentler growth rate, since servers take a while to come up.
func ConnectionPolicy() Policy {
	return NewPolicy(5,
		WithBaseDelay(1*time.Second),
		WithMaxDelay(30*time.Second),
		WithMultiplier(1.5),
		WithCategory(pgready.CategoryConnection),
	)
}

// QueryPolicy is the preset for individual queries: few retries, short waits.
func QueryPolicy() Policy {
	return NewPolicy(2,
		WithBaseDelay(100*time.Millisecond),
		WithMaxDelay(2*time.Second),
		WithMultiplier(2.0),
		WithCategory(pgready.CategoryQuery),
	)
}

// With returns a copy of the policy with the options applied.
func (p Policy) With(opts ...PolicyOption) Policy {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Validate reports every violated constraint.
func (p Policy) Validate() error {
	var errs []error
	if p.maxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must be >= 0, got %d: %w", p.maxRetries, pgready.ErrInvalidConfig))
	}
	if p.baseDelay <= 0 {
		errs = append(errs, fmt.Errorf("baseDelay must be > 0, got %v: %w", p.baseDelay, pgready.ErrInvalidConfig))
	}
	if p.maxDelay < p.baseDelay {
		errs = append(errs, fmt.Errorf("maxDelay (%v) must be >= baseDelay (%v): %w", p.maxDelay, p.baseDelay, pgready.ErrInvalidConfig))
	}
	if p.multiplier <= 1 {
		errs = append(errs, fmt.Errorf("multiplier must be > 1, got %v: %w", p.multiplier, pgready.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// BaseDelayFor returns the unjittered delay before retry number attempt (1-based):
// min(maxDelay, baseDelay * multiplier^(attempt-1)).
func (p Policy) BaseDelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(p.multiplier, float64(attempt-1))
	if delay > float64(p.maxDelay) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}

// Delay returns the wait after failed attempt number attempt (1-based). With jitter
// the result is within +/-25% of BaseDelayFor, never negative, never above maxDelay,
// and rounded to the nearest millisecond.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelayFor(attempt)
	if !p.jitter {
		return delay
	}

	jitterFunc := p.jitterFunc
	if jitterFunc == nil {
		// Tests should explicitly set jitterFunc to a deterministic function.
		jitterFunc = rand.Float64
	}

	// Map [0,1) to [-1,1) and scale to +/-25% of the delay.
	offset := (jitterFunc()*2 - 1) * jitterFraction * float64(delay)
	jittered := float64(delay) + offset
	if jittered < 0 {
		jittered = 0
	}

	rounded := time.Duration(math.Round(jittered/float64(time.Millisecond))) * time.Millisecond
	if rounded > p.maxDelay {
		rounded = p.maxDelay
	}
	return rounded
}

// MaxRetries returns the number of retries after the first attempt.
func (p Policy) MaxRetries() int {
	return p.maxRetries
}

// MaxAttempts returns maxRetries+1.
func (p Policy) MaxAttempts() int {
	return p.maxRetries + 1
}

// BaseDelay returns the delay before the first retry.
func (p Policy) BaseDelay() time.Duration {
	return p.baseDelay
}

// MaxDelay returns the delay cap.
func (p Policy) MaxDelay() time.Duration {
	return p.maxDelay
}

// Multiplier returns the backoff multiplier.
func (p Policy) Multiplier() float64 {
	return p.multiplier
}

// Jitter reports whether delays are randomized.
func (p Policy) Jitter() bool {
	return p.jitter
}

// Category returns the log category used for attempts.
func (p Policy) Category() pgready.Category {
	return p.category
}
