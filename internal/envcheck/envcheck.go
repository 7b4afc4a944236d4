package envcheck

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// Keys inspected by the validator.
const (
	KeyDatabaseURL   = "DATABASE_URL"
	KeyAuthSecret    = "NEXTAUTH_SECRET"
	KeyAuthURL       = "NEXTAUTH_URL"
	KeyGoogleID      = "GOOGLE_CLIENT_ID"
	KeyGoogleSecret  = "GOOGLE_CLIENT_SECRET"
	KeyEmailAPIKey   = "RESEND_API_KEY"
	KeyEmailFrom     = "EMAIL_FROM"
	KeyMediaURL      = "CLOUDINARY_URL"
	KeyStripeSecret  = "STRIPE_SECRET_KEY"
	KeyStripePublic  = "STRIPE_PUBLISHABLE_KEY"
	KeyStripeWebhook = "STRIPE_WEBHOOK_SECRET"
)

// Secret strength thresholds.
const (
	MinSecretLength           = 32
	MinProductionSecretLength = 16
)

// RequiredKeys must be present and non-empty.
var RequiredKeys = []string{KeyDatabaseURL, KeyAuthSecret, KeyAuthURL}

// optionalKeys are reported when absent, with the feature they enable.
var optionalKeys = []struct {
	key     string
	feature string
}{
	{KeyGoogleID, "Google sign-in"},
	{KeyGoogleSecret, "Google sign-in"},
	{KeyEmailAPIKey, "transactional email"},
	{KeyMediaURL, "media uploads"},
	{KeyStripeSecret, "payments"},
	{KeyStripePublic, "payments"},
	{KeyStripeWebhook, "payment webhooks"},
}

// defaultSecrets are values copied from templates and tutorials.
var defaultSecrets = map[string]bool{
	"secret":           true,
	"changeme":         true,
	"change-me":        true,
	"your-secret-here": true,
	"your-secret":      true,
	"supersecret":      true,
	"mysecret":         true,
	"password":         true,
	"default":          true,
	"nextauth-secret":  true,
	"replace-me":       true,
}

// devMarkers flag secrets generated for local development.
var devMarkers = map[string]bool{
	"dev":         true,
	"development": true,
	"test":        true,
	"local":       true,
}

// placeholderPatterns are matched case-insensitively against every known value.
var placeholderPatterns = []string{"your-", "changeme", "xxx", "example.com", "<", "todo"}

// Report is the outcome of Validate.
type Report struct {
	IsValid    bool     `json:"isValid"`
	Production bool     `json:"production"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	Missing    []string `json:"missing,omitempty"`
}

// Err joins the hard errors, each wrapping pgready.ErrInvalidConfig.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, msg := range r.Errors {
		errs[i] = fmt.Errorf("%s: %w", msg, pgready.ErrInvalidConfig)
	}
	return errors.Join(errs...)
}

func (r *Report) addError(key, format string, args ...any) {
	r.Errors = append(r.Errors, key+": "+fmt.Sprintf(format, args...))
}

func (r *Report) addWarning(key, format string, args ...any) {
	r.Warnings = append(r.Warnings, key+": "+fmt.Sprintf(format, args...))
}

// Validator checks one environment.
type Validator struct {
	lookup     Lookup
	production bool
	required   []string
}

// Option configures a Validator.
type Option func(*Validator)

// WithRequired adds keys that must be present on top of RequiredKeys.
func WithRequired(keys ...string) Option {
	return func(v *Validator) {
		v.required = append(v.required, keys...)
	}
}

// New creates a Validator reading values through lookup.
func New(lookup Lookup, production bool, opts ...Option) *Validator {
	v := &Validator{
		lookup:     lookup,
		production: production,
		required:   append([]string(nil), RequiredKeys...),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Production reports whether production rules apply.
func (v *Validator) Production() bool {
	return v.production
}

// Validate runs every check. Missing required keys and malformed values are
// errors; weak but usable values are warnings.
func (v *Validator) Validate() Report {
	r := Report{
		Production: v.production,
		Errors:     []string{},
		Warnings:   []string{},
	}

	for _, key := range v.required {
		if _, ok := v.get(key); !ok {
			r.Missing = append(r.Missing, key)
			r.addError(key, "required variable is not set")
		}
	}

	if raw, ok := v.get(KeyDatabaseURL); ok {
		v.checkDatabaseURL(&r, raw)
	}
	if secret, ok := v.get(KeyAuthSecret); ok {
		v.checkSecret(&r, KeyAuthSecret, secret)
	}
	if raw, ok := v.get(KeyAuthURL); ok {
		v.checkBaseURL(&r, KeyAuthURL, raw)
	}

	v.checkOptional(&r)
	v.scanPlaceholders(&r)

	r.IsValid = len(r.Errors) == 0
	return r
}

// get treats blank values as unset.
func (v *Validator) get(key string) (string, bool) {
	value, ok := v.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func (v *Validator) checkDatabaseURL(r *Report, raw string) {
	env := "development"
	if v.production {
		env = "production"
	}
	result := db.ValidateForEnvironment(raw, env)
	for _, e := range result.Errors {
		r.addError(KeyDatabaseURL, "%s", e)
	}
	for _, w := range result.Warnings {
		r.addWarning(KeyDatabaseURL, "%s", w)
	}
}

func (v *Validator) checkSecret(r *Report, key, secret string) {
	if isDefaultSecret(secret) {
		if v.production {
			r.addError(key, "uses a default or development value")
		} else {
			r.addWarning(key, "uses a default or development value; generate one with `openssl rand -base64 32`")
		}
	}

	switch n := len(secret); {
	case v.production && n < MinProductionSecretLength:
		r.addError(key, "must be at least %d characters in production (got %d)", MinProductionSecretLength, n)
	case n < MinSecretLength:
		r.addWarning(key, "should be at least %d characters (got %d)", MinSecretLength, n)
	}
}

func (v *Validator) checkBaseURL(r *Report, key, raw string) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		r.addError(key, "must be an absolute http or https URL, got %q", raw)
		return
	}
	if !v.production {
		return
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		r.addError(key, "points at %s in production", u.Hostname())
	}
	if u.Scheme == "http" {
		r.addWarning(key, "uses http in production; prefer https")
	}
}

func (v *Validator) checkOptional(r *Report) {
	for _, opt := range optionalKeys {
		if _, ok := v.get(opt.key); !ok {
			r.addWarning(opt.key, "not set; %s is disabled", opt.feature)
		}
	}
	if !v.production {
		return
	}

	_, hasStripeSecret := v.get(KeyStripeSecret)
	_, hasStripePublic := v.get(KeyStripePublic)
	_, hasStripeWebhook := v.get(KeyStripeWebhook)
	if hasStripeSecret && !hasStripePublic {
		r.addWarning(KeyStripePublic, "must be set when %s is set", KeyStripeSecret)
	}
	if hasStripeSecret && !hasStripeWebhook {
		r.addWarning(KeyStripeWebhook, "must be set when %s is set", KeyStripeSecret)
	}
	if secret, ok := v.get(KeyStripeSecret); ok && strings.HasPrefix(secret, "sk_test_") {
		r.addWarning(KeyStripeSecret, "is a test-mode key in production")
	}

	_, hasEmailKey := v.get(KeyEmailAPIKey)
	_, hasEmailFrom := v.get(KeyEmailFrom)
	if hasEmailKey && !hasEmailFrom {
		r.addWarning(KeyEmailFrom, "must be set when %s is set", KeyEmailAPIKey)
	}
}

func (v *Validator) scanPlaceholders(r *Report) {
	keys := append([]string(nil), v.required...)
	for _, opt := range optionalKeys {
		keys = append(keys, opt.key)
	}
	keys = append(keys, KeyEmailFrom)

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true

		value, ok := v.get(key)
		if !ok {
			continue
		}
		if pattern, found := placeholderIn(value); found {
			r.addWarning(key, "looks like a placeholder (contains %q)", pattern)
		}
	}
}

func placeholderIn(value string) (string, bool) {
	lower := strings.ToLower(value)
	for _, p := range placeholderPatterns {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// isDefaultSecret matches known template values and secrets containing a
// development marker as a separate word (dev-secret, test_key).
func isDefaultSecret(secret string) bool {
	lower := strings.ToLower(strings.TrimSpace(secret))
	if defaultSecrets[lower] {
		return true
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if devMarkers[w] {
			return true
		}
	}
	return false
}

// DetectProduction reports whether PGREADY_ENV, APP_ENV or NODE_ENV (first set
// wins) selects production.
func DetectProduction(lookup Lookup) bool {
	for _, key := range []string{pgready.EnvProductionKey, "APP_ENV", "NODE_ENV"} {
		if value, ok := lookup(key); ok && value != "" {
			return db.IsProductionEnv(value)
		}
	}
	return false
}
