package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "walletify.yaml", `
app_domain: https://app.example.com
hub_url: https://hub.example.com
scopes:
  - store_write
  - email
session_dir: /tmp/walletify
timeouts:
  http: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com", cfg.AppDomain)
	assert.Equal(t, "https://hub.example.com", cfg.HubURL)
	assert.Equal(t, []string{"store_write", "email"}, cfg.Scopes)
	assert.Equal(t, "/tmp/walletify", cfg.SessionDir)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.HTTP)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.Upload)
	assert.Equal(t, Mainnet, cfg.Network)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "walletify.json", `{"app_domain": "https://app.example.com", "hub_url": "https://file.example.com"}`)
	t.Setenv("WALLETIFY_HUB_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.HubURL)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("WALLETIFY_APP_DOMAIN", "https://env-app.example.com")
	t.Setenv("WALLETIFY_TIMEOUTS_LOOKUP", "3s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env-app.example.com", cfg.AppDomain)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Lookup)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeFile(t, "empty.yaml", "debug: true\n")
	_, err = Load(path)
	require.Error(t, err)
}
