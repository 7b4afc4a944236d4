// Package testinfra starts PostgreSQL containers and TLS material for the
// connection integration tests.
package testinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	containerCertDir  = "/tmp/testcontainers-go/postgres"
	sslEntrypointPath = "/usr/local/bin/docker-entrypoint-ssl.bash"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

type containerSettings struct {
	certs      *CertPaths
	clientCert bool
	sslMode    string
}

// ContainerOption configures StartPostgres.
type ContainerOption func(*containerSettings)

// WithTLS enables server TLS using the bundle's CA and server certificate.
func WithTLS(certs *CertPaths) ContainerOption {
	return func(s *containerSettings) {
		s.certs = certs
	}
}

// WithClientCertAuth replaces password authentication over TCP with
// certificate authentication. Requires WithTLS.
func WithClientCertAuth() ContainerOption {
	return func(s *containerSettings) {
		s.clientCert = true
		s.sslMode = "verify-ca"
	}
}

// StartPostgres runs a PostgreSQL container and waits until it accepts
// connections. ConnString uses sslmode=disable unless client certificate
// authentication is on.
func StartPostgres(ctx context.Context, opts ...ContainerOption) (*PostgresContainer, error) {
	s := containerSettings{sslMode: "disable"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.clientCert && s.certs == nil {
		return nil, fmt.Errorf("client certificate authentication requires TLS")
	}

	customizers := []testcontainers.ContainerCustomizer{
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
	}

	if s.certs != nil {
		dir := filepath.Dir(s.certs.CACert)
		confPath, err := writeSSLConfig(dir)
		if err != nil {
			return nil, err
		}
		customizers = append(customizers,
			postgres.WithSSLCert(s.certs.CACert, s.certs.ServerCert, s.certs.ServerKey),
			postgres.WithConfigFile(confPath),
			// WithSSLCert sets entrypoint to "sh" which fails on Debian (dash doesn't support pipefail).
			testcontainers.WithEntrypoint("bash", sslEntrypointPath))

		if s.clientCert {
			initScript, err := writeClientCertInitScript(dir)
			if err != nil {
				return nil, err
			}
			customizers = append(customizers, postgres.WithInitScripts(initScript))
		}
	}

	customizers = append(customizers, testcontainers.WithWaitStrategy(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60*time.Second),
	))

	ctr, err := postgres.Run(ctx, PostgresImage, customizers...)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode="+s.sslMode)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

func writeSSLConfig(dir string) (string, error) {
	conf := fmt.Sprintf(`listen_addresses = '*'
ssl = on
ssl_cert_file = '%s/server.cert'
ssl_key_file = '%s/server.key'
ssl_ca_file = '%s/ca_cert.pem'
`, containerCertDir, containerCertDir, containerCertDir)

	path := filepath.Join(dir, "postgresql.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		return "", fmt.Errorf("write postgresql.conf: %w", err)
	}
	return path, nil
}

func writeClientCertInitScript(dir string) (string, error) {
	script := `#!/bin/bash
cat > "$PGDATA/pg_hba.conf" << 'PGEOF'
local   all all                trust
hostssl all all 0.0.0.0/0      cert clientcert=verify-full
hostssl all all ::/0            cert clientcert=verify-full
PGEOF
`
	path := filepath.Join(dir, "init-client-cert.sh")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("write init script: %w", err)
	}
	return path, nil
}
