package db

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// ignoredParams are understood by other PostgreSQL clients but rejected by the
// server when pgx forwards them as runtime parameters.
var ignoredParams = map[string]bool{
	"schema":               true,
	"pgbouncer":            true,
	"socket_timeout":       true,
	"statement_cache_size": true,
}

// ParseConnectionString parses a connection URI and returns the ConnectionConfig
// a Connector dials with. A password is not required here because IAM
// connectors supply a token instead; use Validate for the full check.
func ParseConnectionString(connStr string) (*pgready.ConnectionConfig, error) {
	if connStr == "" {
		return nil, fmt.Errorf("connection string is empty: %w", pgready.ErrInvalidConfig)
	}

	u, err := ParseURL(connStr)
	if err != nil {
		return nil, err
	}
	return ConfigFromURL(u)
}

// ConfigFromURL converts parsed components into a ConnectionConfig.
// Host, port and database defaults mirror libpq.
func ConfigFromURL(u *ConnectionURL) (*pgready.ConnectionConfig, error) {
	config := &pgready.ConnectionConfig{
		Host:             "localhost",
		Port:             5432,
		Database:         "postgres",
		Username:         u.Username,
		Password:         u.Password,
		AuthMethod:       pgready.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	if u.Host != "" {
		config.Host = strings.Trim(u.Host, "[]")
	}
	if u.Port != "" {
		port, err := u.PortNumber()
		if err != nil {
			return nil, err
		}
		config.Port = port
	}
	if u.Database != "" {
		config.Database = u.Database
	}

	for _, p := range u.Params {
		switch strings.ToLower(p.Key) {
		case ParamSSLMode:
			config.SSLMode = p.Value
		case "application_name", "applicationname":
			config.AppName = p.Value
		case ParamConnectTimeout, "connecttimeout":
			if seconds, err := strconv.Atoi(p.Value); err == nil {
				config.ConnectTimeout = time.Duration(seconds) * time.Second
			}
		case ParamConnectionLimit:
			n, err := strconv.ParseInt(p.Value, 10, 32)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("connection_limit %q must be an integer between 1 and %d: %w", p.Value, math.MaxInt32, pgready.ErrInvalidConfig)
			}
			config.MaxConns = int32(n)
		case ParamPoolTimeout:
			seconds, err := strconv.Atoi(p.Value)
			if err != nil || seconds < 0 {
				return nil, fmt.Errorf("pool_timeout %q must be a non-negative integer: %w", p.Value, pgready.ErrInvalidConfig)
			}
			config.PoolTimeout = time.Duration(seconds) * time.Second
		default:
			if !ignoredParams[strings.ToLower(p.Key)] {
				config.AdditionalParams[p.Key] = p.Value
			}
		}
	}

	return config, nil
}

// BuildConnectionString converts a ConnectionConfig back to a PostgreSQL URI format.
// Pool-only settings are not included; this is the DSN handed to pgx.
func BuildConnectionString(config *pgready.ConnectionConfig) string {
	host := config.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u := &url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", host, config.Port),
		Path:   "/" + config.Database,
	}

	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}

	query := url.Values{}
	if config.SSLMode != "" {
		query.Set("sslmode", config.SSLMode)
	}
	if config.AppName != "" {
		query.Set("application_name", config.AppName)
	}
	if config.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(config.ConnectTimeout.Seconds())))
	}

	for key, value := range config.AdditionalParams {
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()
	return u.String()
}
