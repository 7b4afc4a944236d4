package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// Connection pool configuration constants
const (
	// DefaultMaxConns bounds the pool when connection_limit is not set.
	DefaultMaxConns = 5

	// DefaultMinConns maintains at least one connection in the pool.
	DefaultMinConns = 1

	// DefaultMaxConnIdleTime closes connections that have been idle this long.
	DefaultMaxConnIdleTime = 30 * time.Minute

	// tokenExpiryWarning is the remaining token lifetime below which a warning is logged.
	tokenExpiryWarning = 5 * time.Minute
)

// ConnectorOption configures how a connector retries and reports.
type ConnectorOption func(*connectorSettings)

type connectorSettings struct {
	logger   pgready.Logger
	executor *retry.Executor
	policy   retry.Policy
}

// WithConnectorLogger sets the logger for attempts, notices and token warnings.
func WithConnectorLogger(l pgready.Logger) ConnectorOption {
	return func(s *connectorSettings) {
		s.logger = l
	}
}

// WithRetryExecutor replaces the default classifying executor.
func WithRetryExecutor(e *retry.Executor) ConnectorOption {
	return func(s *connectorSettings) {
		s.executor = e
	}
}

// WithRetryPolicy replaces retry.ConnectionPolicy. Use retry.NewPolicy(0) when
// the caller already retries around Connect.
func WithRetryPolicy(p retry.Policy) ConnectorOption {
	return func(s *connectorSettings) {
		s.policy = p
	}
}

func newConnectorSettings(opts []ConnectorOption) connectorSettings {
	s := connectorSettings{
		logger: discardLogger{},
		policy: retry.ConnectionPolicy(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = discardLogger{}
	}
	if s.executor == nil {
		s.executor = retry.NewExecutor(s.logger).WithClassifier(retry.NewClassifier())
	}
	return s
}

func configurePool(poolConfig *pgxpool.Config, config *pgready.ConnectionConfig, logger pgready.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	poolConfig.MinConns = DefaultMinConns
	if poolConfig.MinConns > poolConfig.MaxConns {
		poolConfig.MinConns = poolConfig.MaxConns
	}
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Log(pgready.LevelInfo, pgready.CategoryQuery, notice.Message,
			pgready.WithField("severity", notice.Severity))
	}
}

// openPool parses dsn, creates the pool and pings it once. A dsn that does not
// parse is returned as a Validation *retry.ClassifiedError so it is never retried.
func openPool(ctx context.Context, dsn string, config *pgready.ConnectionConfig, logger pgready.Logger, customize func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, retry.NewClassifier().ClassifyInitError(
			fmt.Errorf("failed to parse connection config: %w", err),
			map[string]any{"host": config.Host, "database": config.Database})
	}

	configurePool(poolConfig, config, logger)
	if customize != nil {
		customize(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}

	return pool, nil
}

// connectWithRetry runs dial under the connector's retry policy and converts a
// failed outcome into an error chained to pgready.ErrConnectionFailed.
func connectWithRetry(ctx context.Context, s connectorSettings, label string, dial func(ctx context.Context) (*pgxpool.Pool, error)) (*pgxpool.Pool, error) {
	outcome := retry.Do(ctx, s.executor, s.policy, label, dial)
	if outcome.Success {
		return outcome.Value, nil
	}
	if errors.Is(outcome.Err, pgready.ErrConnectionFailed) {
		return nil, outcome.Err
	}
	return nil, fmt.Errorf("%w after %d attempt(s): %w", pgready.ErrConnectionFailed, outcome.Attempts, outcome.Err)
}

// StandardConnector implements the Connector interface for standard
// username/password authentication with automatic retry on transient failures.
type StandardConnector struct {
	config   *pgready.ConnectionConfig
	settings connectorSettings
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
// Retry behavior defaults to retry.ConnectionPolicy with the classifier short-circuit,
// so authentication and validation failures are not retried.
func NewStandardConnector(config *pgready.ConnectionConfig, opts ...ConnectorOption) *StandardConnector {
	return &StandardConnector{
		config:   config,
		settings: newConnectorSettings(opts),
	}
}

// Connect establishes a connection pool using standard authentication with automatic retry.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)
	return connectWithRetry(ctx, c.settings, "connect", func(ctx context.Context) (*pgxpool.Pool, error) {
		return openPool(ctx, connStr, c.config, c.settings.logger, nil)
	})
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *pgready.ConnectionConfig, opts ...ConnectorOption) (pgready.Connector, error) {
	switch config.AuthMethod {
	case pgready.AuthMethodStandard:
		return NewStandardConnector(config, opts...), nil
	case pgready.AuthMethodAWSIAM:
		return newAWSConnector(config, opts)
	case pgready.AuthMethodGoogleIAM:
		return newGoogleConnector(config, opts)
	case pgready.AuthMethodAzureEntraID:
		return newAzureConnector(config, opts)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, pgready.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError wraps raw pgx connection errors with actionable guidance.
// The original error stays in the chain so it can still be classified.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`%w: connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port in DATABASE_URL
  - Firewall blocking the connection

Original error: %w`, pgready.ErrConnectionFailed, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`%w: cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable
  - Network connection issue

Original error: %w`, pgready.ErrConnectionFailed, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`%w: password authentication failed for database "%s"

Possible causes:
  - Wrong password in DATABASE_URL (special characters must be percent-encoded)
  - Wrong username
  - User does not have access to the database

Original error: %w`, pgready.ErrConnectionFailed, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`%w: database "%s" does not exist

To create it:
  createdb %s

Original error: %w`, pgready.ErrConnectionFailed, database, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`%w: connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Network latency or packet loss
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)

Original error: %w`, pgready.ErrConnectionFailed, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`%w: SSL/TLS connection error

Possible causes:
  - Server requires SSL but sslmode in DATABASE_URL is wrong
  - Certificate verification failed (try sslmode=require)
  - Server does not support SSL (sslmode=disable only outside production)

Original error: %w`, pgready.ErrConnectionFailed, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`%w: too many connections to database "%s"

Possible causes:
  - Connection pool exhausted on server
  - max_connections limit reached in postgresql.conf
  - connection_limit in DATABASE_URL set too high for the number of instances

Try: SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s';

Original error: %w`, pgready.ErrConnectionFailed, database, database, err)

	default:
		return fmt.Errorf("%w: %w", pgready.ErrConnectionFailed, err)
	}
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *pgready.ConnectionConfig, opts []ConnectorOption) (pgready.Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
	}

	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", opts...), nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *pgready.ConnectionConfig, opts []ConnectorOption) (pgready.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires PGREADY_GOOGLE_INSTANCE (project:region:instance): %w", pgready.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username in DATABASE_URL: %w", pgready.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, opts...), nil
}

// newAzureConnector creates a token-based connector with the Azure Entra ID token provider.
// If explicit credentials (tenant, client, secret) are provided, uses Service Principal auth.
// Otherwise, falls back to DefaultAzureCredential chain.
func newAzureConnector(config *pgready.ConnectionConfig, opts []ConnectorOption) (pgready.Connector, error) {
	var tokenProvider TokenProvider
	var err error

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
	}

	return NewTokenBasedConnector(config, tokenProvider, "Azure", opts...), nil
}

type discardLogger struct{}

func (discardLogger) Log(pgready.Level, pgready.Category, string, ...pgready.LogOption) {}
