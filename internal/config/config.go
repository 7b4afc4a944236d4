package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/pgready/internal/breaker"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/pkg/pgready"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// RetryConfig overrides fields of a retry preset. Unset fields keep the preset value.
type RetryConfig struct {
	MaxRetries *int    `yaml:"max_retries,omitempty"`
	BaseDelay  string  `yaml:"base_delay,omitempty"`
	MaxDelay   string  `yaml:"max_delay,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
	Jitter     *bool   `yaml:"jitter,omitempty"`
}

type RetrySection struct {
	Connection RetryConfig `yaml:"connection"`
	Query      RetryConfig `yaml:"query"`
}

type BreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold,omitempty"`
	ResetTimeout     string `yaml:"reset_timeout,omitempty"`
	MonitoringPeriod string `yaml:"monitoring_period,omitempty"`
}

type LoggingConfig struct {
	Capacity int    `yaml:"capacity,omitempty"`
	Level    string `yaml:"level,omitempty"`
}

type ProbeConfig struct {
	Timeout string `yaml:"timeout,omitempty"`
	Query   bool   `yaml:"query,omitempty"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	Job            string `yaml:"job,omitempty"`
}

type ProjectConfig struct {
	AuthMethod  string        `yaml:"auth_method,omitempty"`
	Environment string        `yaml:"environment,omitempty"`
	Required    []string      `yaml:"required,omitempty"`
	Retry       RetrySection  `yaml:"retry"`
	Breaker     BreakerConfig `yaml:"breaker"`
	Logging     LoggingConfig `yaml:"logging"`
	Probe       ProbeConfig   `yaml:"probe"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

const ConfigFileName = "pgready.yaml"

// Load reads pgready.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a config file. ${VAR} references are expanded from the
// environment before parsing.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ConnectionPolicy returns retry.ConnectionPolicy with the file's overrides.
func (c *ProjectConfig) ConnectionPolicy() (retry.Policy, error) {
	if c == nil {
		return retry.ConnectionPolicy(), nil
	}
	return c.Retry.Connection.apply("retry.connection", retry.ConnectionPolicy())
}

// QueryPolicy returns retry.QueryPolicy with the file's overrides.
func (c *ProjectConfig) QueryPolicy() (retry.Policy, error) {
	if c == nil {
		return retry.QueryPolicy(), nil
	}
	return c.Retry.Query.apply("retry.query", retry.QueryPolicy())
}

// BreakerSettings returns breaker.DefaultConfig with the file's overrides.
func (c *ProjectConfig) BreakerSettings() (breaker.Config, error) {
	cfg := breaker.DefaultConfig()
	if c == nil {
		return cfg, nil
	}
	if c.Breaker.FailureThreshold != 0 {
		cfg.FailureThreshold = c.Breaker.FailureThreshold
	}
	var err error
	if cfg.ResetTimeout, err = durationOr("breaker.reset_timeout", c.Breaker.ResetTimeout, cfg.ResetTimeout); err != nil {
		return cfg, err
	}
	if cfg.MonitoringPeriod, err = durationOr("breaker.monitoring_period", c.Breaker.MonitoringPeriod, cfg.MonitoringPeriod); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ProbeTimeout returns probe.timeout or pgready.DefaultProbeTimeout.
func (c *ProjectConfig) ProbeTimeout() (time.Duration, error) {
	if c == nil {
		return pgready.DefaultProbeTimeout, nil
	}
	return durationOr("probe.timeout", c.Probe.Timeout, pgready.DefaultProbeTimeout)
}

func (r RetryConfig) apply(section string, p retry.Policy) (retry.Policy, error) {
	var opts []retry.PolicyOption
	if r.MaxRetries != nil {
		opts = append(opts, retry.WithMaxRetries(*r.MaxRetries))
	}
	if r.BaseDelay != "" {
		d, err := durationOr(section+".base_delay", r.BaseDelay, 0)
		if err != nil {
			return p, err
		}
		opts = append(opts, retry.WithBaseDelay(d))
	}
	if r.MaxDelay != "" {
		d, err := durationOr(section+".max_delay", r.MaxDelay, 0)
		if err != nil {
			return p, err
		}
		opts = append(opts, retry.WithMaxDelay(d))
	}
	if r.Multiplier != 0 {
		opts = append(opts, retry.WithMultiplier(r.Multiplier))
	}
	if r.Jitter != nil {
		opts = append(opts, retry.WithJitter(*r.Jitter))
	}

	p = p.With(opts...)
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%s: %w", section, err)
	}
	return p, nil
}

func durationOr(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, pgready.ErrInvalidConfig)
	}
	return d, nil
}
