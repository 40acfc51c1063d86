package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WQB_USERNAME", "WQB_PASSWORD", "ALPHAFORGE_BASE_URL", "ALPHAFORGE_LEDGER"} {
		t.Setenv(k, "")
	}
}

func TestEnvOverrides_Credentials(t *testing.T) {
	t.Run("env fills empty credentials", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WQB_USERNAME", "alice@example.com")
		t.Setenv("WQB_PASSWORD", "hunter2")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "alice@example.com", cfg.Brain.Username)
		assert.Equal(t, "hunter2", cfg.Brain.Password)
	})

	t.Run("empty env keeps file values", func(t *testing.T) {
		clearEnv(t)

		cfg := &Config{Brain: BrainConfig{Username: "file-user"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "file-user", cfg.Brain.Username)
	})
}

func TestEnvOverrides_BaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALPHAFORGE_BASE_URL", "http://localhost:9999")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://localhost:9999", cfg.Brain.BaseURL)
}

func TestEnvOverrides_Ledger(t *testing.T) {
	t.Run("json path", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALPHAFORGE_LEDGER", "/tmp/out.json")

		cfg := DefaultConfig()
		cfg.Ledger.Backend = "sqlite"
		cfg.applyEnvOverrides()

		assert.Equal(t, "json", cfg.Ledger.Backend)
		assert.Equal(t, "/tmp/out.json", cfg.Ledger.Location())
	})

	t.Run("db path switches to sqlite", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ALPHAFORGE_LEDGER", "/tmp/out.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "sqlite", cfg.Ledger.Backend)
		assert.Equal(t, "/tmp/out.db", cfg.Ledger.Location())
		assert.Equal(t, "submission_results.json", cfg.Ledger.Path)
	})
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	cfg := LoggingConfig{}
	assert.True(t, cfg.IsCategoryEnabled("simulate"))

	cfg.Categories = map[string]bool{"simulate": false, "fetch": true}
	assert.False(t, cfg.IsCategoryEnabled("simulate"))
	assert.True(t, cfg.IsCategoryEnabled("fetch"))
	assert.True(t, cfg.IsCategoryEnabled("ledger"))
}
