package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TAXENGINE_CONFIG", "")
	t.Setenv("TAXENGINE_PORT", "")
	t.Setenv("TAXENGINE_TAX_YEAR", "")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "taxengine.db", cfg.DatabasePath)
	assert.Equal(t, "2024/25", cfg.TaxYear)
	assert.Empty(t, cfg.Elections)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	// GIVEN: a TOML file and an environment override for the port
	path := filepath.Join(t.TempDir(), "taxengine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090
database = ":memory:"
log_level = "debug"
log_pretty = true

[engine]
tax_year = "2023/24"

[engine.elections]
property_income = "expenses"
`), 0o600))
	t.Setenv("TAXENGINE_CONFIG", path)
	t.Setenv("TAXENGINE_PORT", "7070")
	t.Setenv("TAXENGINE_TAX_YEAR", "")

	// WHEN
	cfg, err := config.Load()

	// THEN: environment beats file, file beats defaults
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "2023/24", cfg.TaxYear)
	assert.Equal(t, "expenses", cfg.Elections["property_income"])
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = "), 0o600))
	t.Setenv("TAXENGINE_CONFIG", path)

	_, err := config.Load()

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"port":      "[server]\nport = 70000",
		"log level": "[server]\nlog_level = \"loud\"",
		"tax year":  "[engine]\ntax_year = \"2019/20\"",
		"election":  "[engine.elections]\nproperty_income = \"both\"",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			require.NoError(t, cfg.ApplyString(doc))
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, config.Default().Validate())
}

func TestLoad_IgnoresUnparsableEnv(t *testing.T) {
	t.Setenv("TAXENGINE_CONFIG", "")
	t.Setenv("TAXENGINE_PORT", "not-a-number")
	t.Setenv("TAXENGINE_LOG_PRETTY", "maybe")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.LogPretty)
}
