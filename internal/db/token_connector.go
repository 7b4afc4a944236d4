package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// TokenBasedConnector implements the Connector interface for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
// The token is acquired from a TokenProvider and used as the PostgreSQL password.
type TokenBasedConnector struct {
	config        *pgready.ConnectionConfig
	tokenProvider TokenProvider
	providerName  string
	settings      connectorSettings
	now           func() time.Time
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error/warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(config *pgready.ConnectionConfig, tokenProvider TokenProvider, providerName string, opts ...ConnectorOption) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		providerName:  providerName,
		settings:      newConnectorSettings(opts),
		now:           time.Now,
	}
}

// Connect acquires a fresh token for every attempt and opens a pool with it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return connectWithRetry(ctx, c.settings, "connect ("+c.providerName+")", func(ctx context.Context) (*pgxpool.Pool, error) {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}

		if remaining := expiresOn.Sub(c.now()); remaining < tokenExpiryWarning {
			c.settings.logger.Log(pgready.LevelWarn, pgready.CategoryConnection,
				fmt.Sprintf("%s token expires in %v", c.providerName, remaining.Round(time.Second)),
				pgready.WithField("provider", c.tokenProvider.String()))
		}

		configWithToken := *c.config
		configWithToken.Password = token

		return openPool(ctx, BuildConnectionString(&configWithToken), c.config, c.settings.logger, nil)
	})
}
