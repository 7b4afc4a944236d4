// Package metrics exports retry, circuit breaker, error classification and
// startup measurements as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/vvka-141/pgready/internal/breaker"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/internal/startup"
)

const namespace = "pgready"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector records measurements on an injected registry.
// It implements retry.Observer.
type Collector struct {
	// RetryAttempts counts attempts per operation label and result
	RetryAttempts *prometheus.CounterVec

	// RetryOutcomes counts finished retry sequences per label and result
	RetryOutcomes *prometheus.CounterVec

	// RetryBackoff accumulates time spent waiting between attempts
	RetryBackoff *prometheus.CounterVec

	// BreakerState is 0 closed, 1 half-open, 2 open
	BreakerState *prometheus.GaugeVec

	// BreakerTransitions counts state changes per breaker and target state
	BreakerTransitions *prometheus.CounterVec

	// ErrorsClassified counts classified failures per category
	ErrorsClassified *prometheus.CounterVec

	// StartupDuration tracks how long startup runs take
	StartupDuration prometheus.Histogram

	// StartupReady is 1 when the last startup run passed
	StartupReady prometheus.Gauge
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of attempts made by the retry executor",
			},
			[]string{"label", "result"},
		),
		RetryOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_outcomes_total",
				Help:      "Total number of retried operations by final result",
			},
			[]string{"label", "result"},
		),
		RetryBackoff: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_backoff_seconds_total",
				Help:      "Total time spent waiting between retry attempts",
			},
			[]string{"label"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"name", "to"},
		),
		ErrorsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_classified_total",
				Help:      "Total number of classified database errors",
			},
			[]string{"category"},
		),
		StartupDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "startup_duration_seconds",
				Help:      "Duration of startup check runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		StartupReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "startup_ready",
				Help:      "Whether the last startup check run passed",
			},
		),
	}
}

// OnAttempt implements retry.Observer.
func (c *Collector) OnAttempt(label string, attempt int, err error, delay time.Duration) {
	c.RetryBackoff.WithLabelValues(label).Add(delay.Seconds())
}

// OnOutcome implements retry.Observer. Every attempt but a final success is a failure.
func (c *Collector) OnOutcome(label string, success bool, attempts int, elapsed time.Duration) {
	failed := attempts
	if success {
		failed--
		c.RetryAttempts.WithLabelValues(label, ResultSuccess).Inc()
		c.RetryOutcomes.WithLabelValues(label, ResultSuccess).Inc()
	} else {
		c.RetryOutcomes.WithLabelValues(label, ResultFailure).Inc()
	}
	if failed > 0 {
		c.RetryAttempts.WithLabelValues(label, ResultFailure).Add(float64(failed))
	}
}

// OnBreakerStateChange matches breaker.StateChangeFunc.
func (c *Collector) OnBreakerStateChange(name string, from, to breaker.State) {
	c.BreakerState.WithLabelValues(name).Set(stateValue(to))
	c.BreakerTransitions.WithLabelValues(name, to.String()).Inc()
}

// TrackBreaker publishes the current state of b.
func (c *Collector) TrackBreaker(b *breaker.Breaker) {
	c.BreakerState.WithLabelValues(b.Name()).Set(stateValue(b.State()))
}

// ObserveStartup records a finished startup run. It fits startup.WithReportHook.
func (c *Collector) ObserveStartup(report startup.Report) {
	c.StartupDuration.Observe(float64(report.DurationMs) / 1000)
	if report.Ready() {
		c.StartupReady.Set(1)
	} else {
		c.StartupReady.Set(0)
	}
	if report.ErrorCategory != "" {
		c.ErrorsClassified.WithLabelValues(report.ErrorCategory).Inc()
	}
}

func stateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateHalfOpen:
		return 1
	case breaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Push sends everything gathered from g to a Pushgateway under job.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

var _ retry.Observer = (*Collector)(nil)
