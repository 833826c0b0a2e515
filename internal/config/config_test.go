package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CREDIT_LEDGER_CONFIG", "POSTGRES_ADDRESS", "POSTGRES_PORT", "STORE_DRIVER",
		"HTTP_PORT", "OPERATOR_WORKERS", "MAX_COMMIT_ATTEMPTS", "SWEEP_INTERVAL",
		"LAZY_LAPSE", "DEFAULT_PAGE_SIZE", "MAX_PAGE_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestProcessEnvironmentVariables_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := ProcessEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.PostgresAddress)
	assert.Equal(t, "5433", cfg.PostgresPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 9446, cfg.HTTPPort)
	assert.Equal(t, 5, cfg.MaxCommitAttempts)
	assert.Equal(t, time.Minute, cfg.SweepInterval.Duration)
	assert.True(t, cfg.LazyLapse)
	assert.Equal(t, 10, cfg.DefaultPageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
}

func TestProcessEnvironmentVariables_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "ledger.toml")
	contents := `
store_driver = "memory"
http_port = 8080
sweep_interval = "30s"
lazy_lapse = false
max_commit_attempts = 3
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv("CREDIT_LEDGER_CONFIG", path)
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := ProcessEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval.Duration)
	assert.False(t, cfg.LazyLapse)
	assert.Equal(t, 3, cfg.MaxCommitAttempts)
	assert.Equal(t, 8, cfg.OperatorWorkers)
}

func TestProcessEnvironmentVariables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "STORE_DRIVER", "sqlite"},
		{"non numeric port", "HTTP_PORT", "abc"},
		{"bad interval", "SWEEP_INTERVAL", "soon"},
		{"bad bool", "LAZY_LAPSE", "maybe"},
		{"zero attempts", "MAX_COMMIT_ATTEMPTS", "0"},
		{"max below default", "MAX_PAGE_SIZE", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := ProcessEnvironmentVariables()
			assert.Error(t, err)
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := &Config{
		PostgresAddress:  "db",
		PostgresPort:     "5432",
		PostgresDB:       "ledger",
		PostgresUsername: "user",
		PostgresPassword: "pw",
	}
	assert.Equal(t, "postgres://user:pw@db:5432/ledger?sslmode=disable", cfg.ConnectionString())
}
