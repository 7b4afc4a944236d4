package db

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// GoogleCloudSQLConnector implements the Connector interface for Google Cloud SQL
// using IAM database authentication via the Cloud SQL Go Connector.
//
// Implements io.Closer: call Close() after the pool is closed to release the
// Cloud SQL dialer resources.
type GoogleCloudSQLConnector struct {
	config   *pgready.ConnectionConfig
	instance string
	settings connectorSettings

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

// NewGoogleCloudSQLConnector creates a connector for Google Cloud SQL IAM authentication.
// instance is the instance connection name in format: project:region:instance
func NewGoogleCloudSQLConnector(config *pgready.ConnectionConfig, instance string, opts ...ConnectorOption) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{
		config:   config,
		instance: instance,
		settings: newConnectorSettings(opts),
	}
}

// Connect establishes a connection pool using Google Cloud SQL IAM authentication.
// The dialer is created once and reused across retry attempts.
func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := c.ensureDialer(ctx)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s dbname=%s sslmode=disable",
		c.instance,
		c.config.Username,
		c.config.Database,
	)

	pool, err := connectWithRetry(ctx, c.settings, "connect (Google Cloud SQL)", func(ctx context.Context) (*pgxpool.Pool, error) {
		return openPool(ctx, dsn, c.config, c.settings.logger, func(poolConfig *pgxpool.Config) {
			poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dialer.Dial(ctx, c.instance)
			}
		})
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return pool, nil
}

func (c *GoogleCloudSQLConnector) ensureDialer(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer != nil {
		return c.dialer, nil
	}
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Cloud SQL dialer: %w", pgready.ErrConnectionFailed, err)
	}
	c.dialer = dialer
	return dialer, nil
}

// Close releases the Cloud SQL dialer resources.
// Must be called after the connection pool returned by Connect() is closed.
func (c *GoogleCloudSQLConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer != nil {
		err := c.dialer.Close()
		c.dialer = nil
		return err
	}
	return nil
}
