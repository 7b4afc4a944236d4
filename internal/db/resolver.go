package db

import (
	"fmt"
	"os"

	"github.com/vvka-141/pgready/pkg/pgready"
)

// AuthFlags represents cloud authentication CLI flags.
// These override the corresponding environment variables.
// Note: Client secret is NOT included as a CLI flag for security reasons.
// Use AZURE_CLIENT_SECRET environment variable instead.
type AuthFlags struct {
	Method         string // Overrides PGREADY_AUTH_METHOD
	AWSRegion      string // Overrides AWS_REGION
	GoogleInstance string // Overrides PGREADY_GOOGLE_INSTANCE
	AzureTenantID  string // Overrides AZURE_TENANT_ID
	AzureClientID  string // Overrides AZURE_CLIENT_ID
}

// EnvVars represents the environment variables that shape the live probe.
type EnvVars struct {
	DATABASE_URL string // Full connection string
	PGSSLMODE    string // SSL mode fallback when the URL has none

	PGREADY_AUTH_METHOD     string // standard | aws | google | azure
	PGREADY_GOOGLE_INSTANCE string // Cloud SQL instance connection name
	AWS_REGION              string // Region for RDS IAM tokens

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string // Azure AD tenant/directory ID
	AZURE_CLIENT_ID     string // Azure AD application/client ID
	AZURE_CLIENT_SECRET string // Azure AD client secret (for Service Principal auth)
}

// LoadFromEnvironment loads the probe-related variables from the process environment.
func LoadFromEnvironment() *EnvVars {
	return LoadFromLookup(os.LookupEnv)
}

// LoadFromLookup loads the probe-related variables through lookup.
func LoadFromLookup(lookup func(string) (string, bool)) *EnvVars {
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	return &EnvVars{
		DATABASE_URL:            get("DATABASE_URL"),
		PGSSLMODE:               get("PGSSLMODE"),
		PGREADY_AUTH_METHOD:     get("PGREADY_AUTH_METHOD"),
		PGREADY_GOOGLE_INSTANCE: get("PGREADY_GOOGLE_INSTANCE"),
		AWS_REGION:              get("AWS_REGION"),
		AZURE_TENANT_ID:         get("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:         get("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:     get("AZURE_CLIENT_SECRET"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ResolveConnectionConfig builds the probe's ConnectionConfig.
//
// Connection string: connStringFlag > $DATABASE_URL.
// Auth method: flags.Method > $PGREADY_AUTH_METHOD > projectAuthMethod > standard.
//
// Azure Entra ID Authentication:
// If no auth method is chosen explicitly and Azure tenant or client IDs are present
// (flags or environment), the AuthMethod is set to AzureEntraID.
func ResolveConnectionConfig(
	connStringFlag string,
	flags *AuthFlags,
	envVars *EnvVars,
	projectAuthMethod string,
) (*pgready.ConnectionConfig, error) {
	if flags == nil {
		flags = &AuthFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	connStr := firstNonEmpty(connStringFlag, envVars.DATABASE_URL)
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set: %w", pgready.ErrInvalidConfig)
	}

	config, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	// Apply PGSSLMODE from environment if not specified in connection string
	if config.SSLMode == "" {
		config.SSLMode = firstNonEmpty(envVars.PGSSLMODE, "prefer")
	}

	methodName := firstNonEmpty(flags.Method, envVars.PGREADY_AUTH_METHOD, projectAuthMethod)
	method, err := pgready.ParseAuthMethod(methodName)
	if err != nil {
		return nil, err
	}
	config.AuthMethod = method

	config.AWSRegion = firstNonEmpty(flags.AWSRegion, envVars.AWS_REGION)
	config.GoogleInstance = firstNonEmpty(flags.GoogleInstance, envVars.PGREADY_GOOGLE_INSTANCE)

	if methodName == "" || method == pgready.AuthMethodAzureEntraID {
		applyAzureAuth(config, flags, envVars)
	}

	return config, nil
}

// applyAzureAuth sets Azure Entra ID authentication on the config if credentials are available.
// CLI flags take precedence over environment variables.
func applyAzureAuth(config *pgready.ConnectionConfig, flags *AuthFlags, env *EnvVars) {
	tenantID := firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID)
	clientID := firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID)

	// Client secret only comes from env var (no flag for security)
	clientSecret := env.AZURE_CLIENT_SECRET

	// If any Azure credentials are present, switch to Azure auth
	if tenantID != "" || clientID != "" {
		config.AuthMethod = pgready.AuthMethodAzureEntraID
		config.AzureTenantID = tenantID
		config.AzureClientID = clientID
		config.AzureClientSecret = clientSecret
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
