//go:build azure

package conntest

import (
	"os"
	"testing"

	"github.com/vvka-141/pgready/pkg/pgready"
)

func requireAzureEnv(t *testing.T) (host, user, database string) {
	t.Helper()
	host = os.Getenv("PGREADY_AZURE_TEST_HOST")
	user = os.Getenv("PGREADY_AZURE_TEST_USER")
	database = os.Getenv("PGREADY_AZURE_TEST_DB")
	if host == "" || user == "" || database == "" {
		t.Skip("Azure test env vars not set (PGREADY_AZURE_TEST_HOST, PGREADY_AZURE_TEST_USER, PGREADY_AZURE_TEST_DB)")
	}
	return
}

func TestAzure_ServicePrincipal(t *testing.T) {
	host, user, database := requireAzureEnv(t)

	if os.Getenv("AZURE_TENANT_ID") == "" || os.Getenv("AZURE_CLIENT_ID") == "" || os.Getenv("AZURE_CLIENT_SECRET") == "" {
		t.Skip("Azure Service Principal env vars not set")
	}

	requireHealthy(t, &pgready.ConnectionConfig{
		Host:              host,
		Port:              5432,
		Username:          user,
		Database:          database,
		SSLMode:           "require",
		AuthMethod:        pgready.AuthMethodAzureEntraID,
		AzureTenantID:     os.Getenv("AZURE_TENANT_ID"),
		AzureClientID:     os.Getenv("AZURE_CLIENT_ID"),
		AzureClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
	})
}

func TestAzure_ManagedIdentity(t *testing.T) {
	if os.Getenv("PGREADY_AZURE_MANAGED_IDENTITY") != "true" {
		t.Skip("PGREADY_AZURE_MANAGED_IDENTITY not set to true")
	}

	host, user, database := requireAzureEnv(t)

	requireHealthy(t, &pgready.ConnectionConfig{
		Host:       host,
		Port:       5432,
		Username:   user,
		Database:   database,
		SSLMode:    "require",
		AuthMethod: pgready.AuthMethodAzureEntraID,
	})
}
