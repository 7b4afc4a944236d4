//go:build conntest

package conntest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/logging"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/internal/startup"
	"github.com/vvka-141/pgready/pkg/pgready"
)

func TestStandardConnection_UserPassword(t *testing.T) {
	requireHealthy(t, parseStdConnString(t))
}

func TestStandardConnection_WrongPasswordIsNotRetried(t *testing.T) {
	config := parseStdConnString(t)
	config.Password = "definitely-wrong-password"

	sleeps := 0
	executor := retry.NewExecutor(nil, retry.WithSleeper(func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}))

	connector, err := db.NewConnector(config,
		db.WithRetryExecutor(executor),
		db.WithRetryPolicy(retry.NewPolicy(3)))
	require.NoError(t, err)

	_, err = connector.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pgready.ErrConnectionFailed)
	assert.Contains(t, err.Error(), "authentication failed")
	assert.Zero(t, sleeps, "authentication failures must not be retried")
}

func TestStandardConnection_StartupChecker(t *testing.T) {
	config := parseStdConnString(t)
	logger := logging.New(logging.WithConsole(nil))

	connector, err := db.NewConnector(config,
		db.WithConnectorLogger(logger),
		db.WithRetryPolicy(retry.NewPolicy(0)))
	require.NoError(t, err)
	defer startup.CloseConnector(connector) //nolint:errcheck

	env := envcheck.MapLookup(map[string]string{
		envcheck.KeyDatabaseURL: stdContainer.ConnString,
		envcheck.KeyAuthSecret:  "Zq8vN2xLp4Rt7Wy1Ks5Hd3Fg6Jm9Bc0Qa",
		envcheck.KeyAuthURL:     "http://localhost:3000",
	})
	checker := startup.NewChecker(envcheck.New(env, false), startup.ConnectorProbe(connector), logger,
		startup.WithPolicy(retry.NewPolicy(2)))

	report, err := checker.Require(context.Background())
	require.NoError(t, err, "errors: %v", report.Errors)
	assert.True(t, report.DatabaseConnected)
	assert.Equal(t, 1, report.ProbeAttempts)
	assert.NotEmpty(t, logger.ByCategory(pgready.CategoryConnection, 0))
}

func TestStandardConnection_UnknownDatabase(t *testing.T) {
	config := parseStdConnString(t)
	config.Database = "pgready_missing_db"

	connector, err := db.NewConnector(config, db.WithRetryPolicy(retry.NewPolicy(0)))
	require.NoError(t, err)

	_, err = connector.Connect(context.Background())
	require.Error(t, err)

	var classified *retry.ClassifiedError
	if errors.As(err, &classified) {
		assert.False(t, classified.Retryable)
	}
	assert.Contains(t, err.Error(), "pgready_missing_db")
}
