package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	PostgresAddress  string `toml:"postgres_address"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDB       string `toml:"postgres_db"`
	PostgresUsername string `toml:"postgres_username"`
	PostgresPassword string `toml:"postgres_password"`

	StoreDriver string `toml:"store_driver"`
	HTTPPort    int    `toml:"http_port"`
	LogLevel    string `toml:"log_level"`

	OperatorWorkers   int `toml:"operator_workers"`
	OperatorQueueSize int `toml:"operator_queue_size"`
	MaxCommitAttempts int `toml:"max_commit_attempts"`

	SweepInterval  Duration `toml:"sweep_interval"`
	SweepBatchSize int      `toml:"sweep_batch_size"`
	LazyLapse      bool     `toml:"lazy_lapse"`

	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// Duration lets TOML files spell intervals as "30s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ConnectionString is the lib/pq DSN for the configured database.
func (c *Config) ConnectionString() string {
	return "postgres://" + c.PostgresUsername + ":" +
		c.PostgresPassword + "@" + c.PostgresAddress + ":" +
		c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func defaults() Config {
	// In all cases the default behavior should be for the docker compose setup
	return Config{
		PostgresAddress:  "localhost",
		PostgresPort:     "5433",
		PostgresDB:       "postgres",
		PostgresUsername: "postgres",
		PostgresPassword: "testpassword",

		StoreDriver: StoreDriverPostgres,
		HTTPPort:    9446,
		LogLevel:    "info",

		OperatorWorkers:   8,
		OperatorQueueSize: 1000,
		MaxCommitAttempts: 5,

		SweepInterval:  Duration{time.Minute},
		SweepBatchSize: 100,
		LazyLapse:      true,

		DefaultPageSize: 10,
		MaxPageSize:     100,
	}
}

// ProcessEnvironmentVariables builds the configuration from defaults, then the
// TOML file named by CREDIT_LEDGER_CONFIG if set, then environment variables.
func ProcessEnvironmentVariables() (*Config, error) {
	env := defaults()

	if path := os.Getenv("CREDIT_LEDGER_CONFIG"); len(path) != 0 {
		if _, err := toml.DecodeFile(path, &env); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	stringVar(&env.PostgresAddress, "POSTGRES_ADDRESS")
	stringVar(&env.PostgresPort, "POSTGRES_PORT")
	stringVar(&env.PostgresDB, "POSTGRES_DB")
	stringVar(&env.PostgresUsername, "POSTGRES_USERNAME")
	stringVar(&env.PostgresPassword, "POSTGRES_PASSWORD")
	stringVar(&env.StoreDriver, "STORE_DRIVER")
	stringVar(&env.LogLevel, "LOG_LEVEL")

	intVars := []struct {
		dst *int
		key string
	}{
		{&env.HTTPPort, "HTTP_PORT"},
		{&env.OperatorWorkers, "OPERATOR_WORKERS"},
		{&env.OperatorQueueSize, "OPERATOR_QUEUE_SIZE"},
		{&env.MaxCommitAttempts, "MAX_COMMIT_ATTEMPTS"},
		{&env.SweepBatchSize, "SWEEP_BATCH_SIZE"},
		{&env.DefaultPageSize, "DEFAULT_PAGE_SIZE"},
		{&env.MaxPageSize, "MAX_PAGE_SIZE"},
	}
	for _, v := range intVars {
		if err := intVar(v.dst, v.key); err != nil {
			return nil, err
		}
	}

	if raw := os.Getenv("SWEEP_INTERVAL"); len(raw) != 0 {
		if err := env.SweepInterval.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("config: SWEEP_INTERVAL: %w", err)
		}
	}
	if raw := os.Getenv("LAZY_LAPSE"); len(raw) != 0 {
		lazy, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config: LAZY_LAPSE: %w", err)
		}
		env.LazyLapse = lazy
	}

	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.OperatorWorkers < 1 {
		return fmt.Errorf("config: OPERATOR_WORKERS must be positive, got %d", c.OperatorWorkers)
	}
	if c.MaxCommitAttempts < 1 {
		return fmt.Errorf("config: MAX_COMMIT_ATTEMPTS must be positive, got %d", c.MaxCommitAttempts)
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("config: page sizes out of range (default %d, max %d)", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.SweepInterval.Duration <= 0 {
		return fmt.Errorf("config: SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}

func stringVar(dst *string, key string) {
	if v := os.Getenv(key); len(v) != 0 {
		*dst = v
	}
}

func intVar(dst *int, key string) error {
	v := os.Getenv(key)
	if len(v) == 0 {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}
