//go:build conntest || azure

package conntest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgready/internal/breaker"
	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// requireHealthy connects through the factory and runs SELECT version()
// through a QueryGuard.
func requireHealthy(t *testing.T, config *pgready.ConnectionConfig) {
	t.Helper()
	ctx := context.Background()

	connector, err := db.NewConnector(config, db.WithRetryPolicy(retry.NewPolicy(2)))
	require.NoError(t, err)

	pool, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer pool.Close()

	b, err := breaker.New("conntest", breaker.DefaultConfig())
	require.NoError(t, err)
	guard := db.NewQueryGuard(db.NewPoolAdapter(pool), b)

	require.NoError(t, guard.Ping(ctx))

	var version string
	require.NoError(t, guard.QueryRowScan(ctx, []any{&version}, "SELECT version()"))
	assert.Contains(t, version, "PostgreSQL")
	assert.Equal(t, breaker.StateClosed, b.State())
}
