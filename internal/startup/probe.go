package startup

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// Probe performs one live connectivity attempt. The Checker retries it.
type Probe func(ctx context.Context) error

// PoolCheck runs against a freshly connected pool, e.g. a health query.
type PoolCheck func(ctx context.Context, pool *pgxpool.Pool) error

// ConnectorProbe connects through connector, runs checks and closes the pool.
// The connector itself stays open; release it with CloseConnector.
func ConnectorProbe(connector pgready.Connector, checks ...PoolCheck) Probe {
	return func(ctx context.Context) error {
		pool, err := connector.Connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		for _, check := range checks {
			if err := check(ctx, pool); err != nil {
				return err
			}
		}
		return nil
	}
}

// CloseConnector releases connector resources when it implements io.Closer.
func CloseConnector(connector pgready.Connector) error {
	if c, ok := connector.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
