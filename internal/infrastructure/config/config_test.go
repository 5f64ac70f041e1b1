package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_REVOLUT_TOKEN", "secret-token")

	path := writeConfig(t, `
banks:
  revolut:
    enabled: true
    base_url: https://b2b.revolut.com
    api_token: ${TEST_REVOLUT_TOKEN}
    currency: USD
    main_account_marker: Main
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Banks.Revolut.APIToken)
	assert.True(t, cfg.Banks.Revolut.Enabled)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: /tmp/test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.80, cfg.Policy.ScoreThreshold)
	assert.Equal(t, 0.05, cfg.Policy.ComboTolerance)
	assert.Equal(t, 1000.0, cfg.Policy.MinBalanceUSD)
	assert.Equal(t, 3000.0, cfg.Policy.TopupAmountUSD)
	assert.Equal(t, 5, cfg.Policy.PendingTransferDays)
	assert.Equal(t, []string{"revolut", "mercury"}, cfg.Policy.SourcePriority)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Contains(t, cfg.Policy.Platforms, "apex")
	assert.Equal(t, "/tmp/test.db", cfg.Storage.DatabasePath)
}

func TestLoadCounterparties(t *testing.T) {
	path := writeConfig(t, `
banks:
  revolut:
    enabled: true
    counterparties:
      mercury: rev-cp-mercury
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rev-cp-mercury", cfg.Banks.Revolut.Counterparties["mercury"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadOrEnvFallsBack(t *testing.T) {
	t.Setenv("TREASURY_DB_PATH", "/tmp/env.db")

	cfg := LoadOrEnvWithPath("/nonexistent/config.yaml")

	assert.Equal(t, "/tmp/env.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 0.80, cfg.Policy.ScoreThreshold)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, ``)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	cfg.Policy.ScoreThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Policy.ScoreThreshold = 0.8
	cfg.Policy.Platforms["bad"] = PlatformFeeConfig{Share: 1.5}
	assert.Error(t, cfg.Validate())
}

func TestGetAPIKey(t *testing.T) {
	cfg := &Config{}

	// Config value wins
	assert.Equal(t, "from-config", cfg.GetAPIKey("from-config", "SOME_ENV"))

	t.Setenv("TEST_FALLBACK_TOKEN", "from-env")
	assert.Equal(t, "from-env", cfg.GetAPIKey("", "MISSING_VAR", "TEST_FALLBACK_TOKEN"))

	assert.Equal(t, "", cfg.GetAPIKey("", "MISSING_VAR"))
}
