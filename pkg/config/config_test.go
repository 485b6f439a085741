package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KEYVAULT_ENDPOINT", "https://nickoftime.vault.azure.net/")
	t.Setenv("SITE_URL", "https://contoso.sharepoint.com/sites/projects")
	t.Setenv("CLIENT_ID", "00000000-0000-0000-0000-000000000001")
	t.Setenv("TENANT", "contoso.onmicrosoft.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSecretName, cfg.SecretName)
	assert.Equal(t, DefaultListName, cfg.ListName)
	assert.Equal(t, "0.0.0.0:8090", cfg.Addr())
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
		want  string
	}{
		{"vault endpoint", "KEYVAULT_ENDPOINT", "KEYVAULT_ENDPOINT is required"},
		{"site url", "SITE_URL", "SITE_URL is required"},
		{"client id", "CLIENT_ID", "CLIENT_ID is required"},
		{"tenant", "TENANT", "TENANT is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadRejectsPlainHTTP(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SITE_URL", "http://contoso.sharepoint.com/sites/projects")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SITE_URL must be an absolute https URL")
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "portal.yaml")
	content := []byte("list_name: Gigs\nweb_port: 9000\nrequest_timeout: 15s\nsecret_name: other-cert\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CERT_SECRET_NAME", "env-cert")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Gigs", cfg.ListName)
	assert.Equal(t, 9000, cfg.WebPort)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "env-cert", cfg.SecretName)
}

func TestLoadConfigFileMissing(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestInvalidNumericEnvFallsBack(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-port")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg := LoadWithDefaults()
	assert.Equal(t, 8090, cfg.WebPort)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}
