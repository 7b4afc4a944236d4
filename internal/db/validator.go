package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// Parameters injected by AddEnvironmentParams.
const (
	ParamSSLMode         = "sslmode"
	ParamConnectionLimit = "connection_limit"
	ParamPoolTimeout     = "pool_timeout"
	ParamConnectTimeout  = "connect_timeout"

	productionSSLMode         = "require"
	productionConnectionLimit = "10"
	productionPoolTimeout     = "20"
	developmentConnectTimeout = "10"
)

// insecureSSLModes do not guarantee an encrypted connection.
var insecureSSLModes = map[string]bool{
	"disable": true,
	"allow":   true,
	"prefer":  true,
}

// ValidationResult lists everything wrong with a connection string.
// Warnings never affect IsValid.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns the errors joined into a single error wrapping
// pgready.ErrInvalidConfig, or nil when the result is valid.
func (r ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, msg := range r.Errors {
		errs = append(errs, fmt.Errorf("%s: %w", msg, pgready.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) finish() ValidationResult {
	r.IsValid = len(r.Errors) == 0
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	return *r
}

// Validate checks that every required component is present and well formed.
// An unencoded special character in the password is a warning, not an error.
func Validate(raw string) ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(raw) == "" {
		result.addError("connection string is empty")
		return result.finish()
	}

	u, err := ParseURL(raw)
	if err != nil {
		result.addError("connection string must start with %s:// or %s://", SchemePostgreSQL, SchemePostgres)
		return result.finish()
	}

	if u.Username == "" {
		result.addError("username is missing")
	}
	if u.Password == "" {
		result.addError("password is missing")
	}
	if u.Host == "" {
		result.addError("host is missing")
	}
	if u.Port == "" {
		result.addError("port is missing")
	} else if _, err := u.PortNumber(); err != nil {
		result.addError("port %q must be a number between 1 and 65535", u.Port)
	}
	if u.Database == "" {
		result.addError("database name is missing")
	}

	if u.PasswordNeedsEncoding() {
		result.addWarning("password contains special characters that should be percent-encoded")
	}

	return result.finish()
}

// Sanitize re-serializes the connection string with the credentials
// percent-encoded. Input that cannot be parsed is returned unchanged.
// Sanitize is idempotent.
func Sanitize(raw string) string {
	u, err := ParseURL(raw)
	if err != nil {
		return raw
	}
	return u.String()
}

// AddEnvironmentParams injects environment-specific parameters. Production
// forces TLS and pool limits, overwriting existing values; development adds a
// connect timeout only when none is set. Unparseable input is returned unchanged.
func AddEnvironmentParams(raw string, production bool) string {
	u, err := ParseURL(raw)
	if err != nil {
		return raw
	}

	if production {
		u.Set(ParamSSLMode, productionSSLMode)
		u.Set(ParamConnectionLimit, productionConnectionLimit)
		u.Set(ParamPoolTimeout, productionPoolTimeout)
	} else if !u.Has(ParamConnectTimeout) {
		u.Set(ParamConnectTimeout, developmentConnectTimeout)
	}

	return u.String()
}

// ValidateForEnvironment runs Validate and, for production, also warns about
// missing or weak TLS and pooling parameters.
func ValidateForEnvironment(raw string, env string) ValidationResult {
	result := Validate(raw)
	if !IsProductionEnv(env) {
		return result
	}

	u, err := ParseURL(raw)
	if err != nil {
		return result
	}

	sslmode, ok := u.Get(ParamSSLMode)
	switch {
	case !ok:
		result.addWarning("sslmode is not set; production connections should use sslmode=%s", productionSSLMode)
	case insecureSSLModes[strings.ToLower(sslmode)]:
		result.addWarning("sslmode=%s does not enforce TLS; use sslmode=%s or stricter in production", sslmode, productionSSLMode)
	}

	if !u.Has(ParamConnectionLimit) {
		result.addWarning("connection_limit is not set; production deployments should bound the pool size")
	}

	return result.finish()
}

// IsProductionEnv reports whether env names the production environment.
func IsProductionEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	}
	return false
}
