package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// ErrorCategory is the coarse failure class a ClassifiedError belongs to.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryConnection
	CategoryAuthentication
	CategoryTimeout
	CategoryValidation
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryConnection:
		return "connection"
	case CategoryAuthentication:
		return "authentication"
	case CategoryTimeout:
		return "timeout"
	case CategoryValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Code returns the fallback error code used when the driver supplies none.
func (c ErrorCategory) Code() string {
	return strings.ToUpper(c.String()) + "_ERROR"
}

// Recoverable reports whether the system can get past this class of failure
// without operator action.
func (c ErrorCategory) Recoverable() bool {
	return c != CategoryAuthentication && c != CategoryValidation
}

// Retryable reports whether repeating the operation can succeed.
// Unknown errors are treated as retryable; see DESIGN.md.
func (c ErrorCategory) Retryable() bool {
	return c != CategoryAuthentication && c != CategoryValidation
}

// PostgreSQL error codes consulted before message matching.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnectionException  = "08"
	pgClassInvalidAuthorization = "28"
	pgClassDataException        = "22"
	pgClassSyntaxOrAccessRule   = "42"

	pgCodeTooManyConnections = "53300"
	pgCodeQueryCanceled      = "57014"
	pgCodeAdminShutdown      = "57P01"
	pgCodeCrashShutdown      = "57P02"
	pgCodeCannotConnectNow   = "57P03"
	pgCodeInvalidCatalogName = "3D000"
	pgCodeInvalidPassword    = "28P01"
)

// ClassifiedError is an error annotated with its category and retry semantics.
// It is created once by the Classifier and never mutated afterwards.
type ClassifiedError struct {
	Category    ErrorCategory
	Code        string
	Message     string
	OccurredAt  time.Time
	Context     map[string]any
	Recoverable bool
	Retryable   bool
	Cause       error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Category, e.Code, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Rule maps case-insensitive message fragments to a category.
type Rule struct {
	Category ErrorCategory
	Patterns []string
}

// DefaultRules is the ordered pattern table. The first group with a matching
// fragment wins, so broader groups must come later.
var DefaultRules = []Rule{
	{
		Category: CategoryConnection,
		Patterns: []string{
			"econnrefused",
			"connection refused",
			"actively refused",
			"enotfound",
			"no such host",
			"econnreset",
			"connection reset",
			"connection terminated",
			"connection closed",
			"server closed the connection",
			"could not connect",
			"can't reach database server",
			"p1001",
			"network is unreachable",
			"host is unreachable",
			"broken pipe",
			"unexpected eof",
			"too many connections",
			"connection pool exhausted",
			"the database system is starting up",
			"the database system is shutting down",
			"connection timeout",
		},
	},
	{
		Category: CategoryAuthentication,
		Patterns: []string{
			"password authentication failed",
			"authentication failed",
			"invalid password",
			"no pg_hba.conf entry",
			"failed sasl auth",
			"permission denied",
			"access denied",
			"p1000",
		},
	},
	{
		Category: CategoryValidation,
		Patterns: []string{
			"invalid connection string",
			"invalid database string",
			"invalid dsn",
			"cannot parse",
			"malformed",
			"invalid port",
			"invalid input syntax",
			"syntax error",
			"violates",
			"p1012",
			"p1013",
		},
	},
	{
		Category: CategoryTimeout,
		Patterns: []string{
			"timeout",
			"timed out",
			"deadline exceeded",
			"etimedout",
			"canceling statement due to statement timeout",
			"p1002",
			"p1008",
		},
	},
}

// malformedURLPatterns identify client initialization failures caused by a
// structurally invalid connection string.
var malformedURLPatterns = []string{
	"invalid connection string",
	"invalid database string",
	"invalid dsn",
	"cannot parse",
	"malformed",
	"invalid port",
	"missing scheme",
	"must start with the protocol",
	"p1012",
	"p1013",
}

// Classifier assigns a category to errors. The zero value is not usable; use
// NewClassifier.
type Classifier struct {
	rules []Rule
	now   func() time.Time
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRules replaces the pattern table.
func WithRules(rules []Rule) ClassifierOption {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// WithClassifierClock overrides the OccurredAt timestamp source.
func WithClassifierClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		c.now = now
	}
}

// NewClassifier creates a classifier using DefaultRules.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		rules: DefaultRules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify inspects err and returns its classification. It never returns nil.
func (c *Classifier) Classify(err error, ctx map[string]any) *ClassifiedError {
	if err == nil {
		return c.build(CategoryUnknown, "", "no error", nil, ctx)
	}

	var existing *ClassifiedError
	if errors.As(err, &existing) {
		return existing
	}

	category, code := c.structuredCategory(err)
	if category == CategoryUnknown {
		category = c.matchRules(err.Error())
	}

	return c.build(category, code, err.Error(), err, ctx)
}

// ClassifyInitError classifies a failure raised while constructing a database
// client. A malformed connection string is always Validation, whatever else the
// message mentions, because retrying structurally invalid input cannot succeed.
func (c *Classifier) ClassifyInitError(err error, ctx map[string]any) *ClassifiedError {
	if err == nil {
		return c.Classify(nil, ctx)
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) || errors.Is(err, pgready.ErrInvalidConfig) || containsAny(strings.ToLower(err.Error()), malformedURLPatterns) {
		return c.build(CategoryValidation, "INVALID_CONNECTION_STRING", err.Error(), err, ctx)
	}

	return c.Classify(err, ctx)
}

// IsRetryable adapts the classifier for the executor's short-circuit check.
func (c *Classifier) IsRetryable(err error) bool {
	return c.Classify(err, nil).Retryable
}

func (c *Classifier) build(category ErrorCategory, code, message string, cause error, ctx map[string]any) *ClassifiedError {
	if code == "" {
		code = category.Code()
	}
	var copied map[string]any
	if len(ctx) > 0 {
		copied = make(map[string]any, len(ctx))
		for k, v := range ctx {
			copied[k] = v
		}
	}
	return &ClassifiedError{
		Category:    category,
		Code:        code,
		Message:     message,
		OccurredAt:  c.now(),
		Context:     copied,
		Recoverable: category.Recoverable(),
		Retryable:   category.Retryable(),
		Cause:       cause,
	}
}

// structuredCategory looks at typed errors before falling back to text.
func (c *Classifier) structuredCategory(err error) (ErrorCategory, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErrorCategory(pgErr), pgErr.Code
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) || errors.Is(err, pgready.ErrInvalidConfig) {
		return CategoryValidation, ""
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return CategoryTimeout, ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout, ""
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return CategoryConnection, ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryConnection, ""
	}

	return CategoryUnknown, ""
}

func pgErrorCategory(pgErr *pgconn.PgError) ErrorCategory {
	code := pgErr.Code
	switch code {
	case pgCodeTooManyConnections, pgCodeAdminShutdown, pgCodeCrashShutdown, pgCodeCannotConnectNow:
		return CategoryConnection
	case pgCodeQueryCanceled:
		return CategoryTimeout
	case pgCodeInvalidCatalogName:
		return CategoryValidation
	case pgCodeInvalidPassword:
		return CategoryAuthentication
	}

	switch {
	case strings.HasPrefix(code, pgClassInvalidAuthorization):
		return CategoryAuthentication
	case strings.HasPrefix(code, pgClassConnectionException):
		return CategoryConnection
	case strings.HasPrefix(code, pgClassDataException), strings.HasPrefix(code, pgClassSyntaxOrAccessRule):
		return CategoryValidation
	}
	return CategoryUnknown
}

func (c *Classifier) matchRules(message string) ErrorCategory {
	lower := strings.ToLower(message)
	for _, rule := range c.rules {
		if containsAny(lower, rule.Patterns) {
			return rule.Category
		}
	}
	return CategoryUnknown
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
