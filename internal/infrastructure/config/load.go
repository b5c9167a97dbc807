package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbalance/internal/domain/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURLs are the public endpoints of the known price sources.
var DefaultBaseURLs = map[string]string{
	"coingecko":     "https://api.coingecko.com/api/v3",
	"coincap":       "https://api.coincap.io/v2",
	"binance":       "https://api.binance.com/api/v3",
	"cryptocompare": "https://min-api.cryptocompare.com/data",
	"nomics":        "https://api.nomics.com/v1",
}

// Default returns the configuration used when the file leaves a value out.
func Default() *Config {
	var cfg Config

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeoutStr = "10s"
	cfg.Server.WriteTimeoutStr = "10s"
	cfg.Server.ShutdownTimeoutStr = "15s"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLitePath = "bitbalance.db"
	cfg.Storage.PostgreSQL.Host = "localhost"
	cfg.Storage.PostgreSQL.Port = 5432
	cfg.Storage.PostgreSQL.User = "bitbalance"
	cfg.Storage.PostgreSQL.Database = "bitbalance"
	cfg.Storage.PostgreSQL.SSLMode = "disable"

	cfg.Redis.Host = "localhost"
	cfg.Redis.Port = 6379

	cfg.Cache.TTLStr = "5m"

	cfg.Providers.Order = []string{"coingecko", "coincap", "binance", "cryptocompare"}

	cfg.Resilience.RetryCount = 3
	cfg.Resilience.InitialDelayStr = "2s"
	cfg.Resilience.ExponentialBackoff = true
	cfg.Resilience.MaxDelayStr = "30s"
	cfg.Resilience.AttemptTimeoutStr = "2s"
	cfg.Resilience.BreakerFailureThreshold = 5
	cfg.Resilience.BreakerOpenTimeoutStr = "1m"

	cfg.Poller.IntervalStr = "10s"
	cfg.Poller.MaxSymbolsPerCycle = 20
	cfg.Poller.Workers = 4

	cfg.Notifier.Kind = "log"
	cfg.Notifier.TimeoutStr = "5s"

	cfg.Mode.Initial = "live"

	return &cfg
}

// LoadConfig reads .env from the working directory when present, then the
// YAML file at path (skipped when path is empty), then the environment.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	cfg.fillSources()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeoutStr, &c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeoutStr, &c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeoutStr, &c.Server.ShutdownTimeout},
		{"cache.ttl", c.Cache.TTLStr, &c.Cache.TTL},
		{"resilience.initial_delay", c.Resilience.InitialDelayStr, &c.Resilience.InitialDelay},
		{"resilience.max_delay", c.Resilience.MaxDelayStr, &c.Resilience.MaxDelay},
		{"resilience.attempt_timeout", c.Resilience.AttemptTimeoutStr, &c.Resilience.AttemptTimeout},
		{"resilience.breaker_open_timeout", c.Resilience.BreakerOpenTimeoutStr, &c.Resilience.BreakerOpenTimeout},
		{"poller.interval", c.Poller.IntervalStr, &c.Poller.Interval},
		{"notifier.timeout", c.Notifier.TimeoutStr, &c.Notifier.Timeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			*f.dst = 0
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = d
	}

	for name, src := range c.Providers.Sources {
		if src.TimeoutStr == "" {
			continue
		}
		d, err := time.ParseDuration(src.TimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid providers.sources.%s.timeout: %w", name, err)
		}
		src.Timeout = d
		c.Providers.Sources[name] = src
	}
	return nil
}

// fillSources gives every ordered provider an entry, with the public base
// URL when the file did not set one.
func (c *Config) fillSources() {
	if c.Providers.Sources == nil {
		c.Providers.Sources = make(map[string]ProviderConfig)
	}
	for i, name := range c.Providers.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		c.Providers.Order[i] = name

		src := c.Providers.Sources[name]
		if src.BaseURL == "" {
			src.BaseURL = DefaultBaseURLs[name]
		}
		c.Providers.Sources[name] = src
	}
}

// Source returns the settings of one provider.
func (c *Config) Source(name string) ProviderConfig {
	return c.Providers.Sources[name]
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.DSN == "" && c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite"))
		}
	case "postgres":
		if c.Storage.DSN == "" && c.Storage.PostgreSQL.Host == "" {
			errs = append(errs, errors.New("storage.postgresql.host is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be postgres or sqlite", c.Storage.Driver))
	}

	if len(c.Providers.Order) == 0 {
		errs = append(errs, errors.New("providers.order must name at least one source"))
	}
	seen := make(map[string]bool)
	for _, name := range c.Providers.Order {
		if seen[name] {
			errs = append(errs, fmt.Errorf("provider %q listed twice", name))
		}
		seen[name] = true
		if c.Providers.Sources[name].BaseURL == "" {
			errs = append(errs, fmt.Errorf("provider %q has no base_url", name))
		}
	}

	if c.Resilience.RetryCount < 0 {
		errs = append(errs, errors.New("resilience.retry_count must not be negative"))
	}
	if r := c.Resilience; r.RetryCount > 0 && r.InitialDelay > 0 && r.AttemptTimeout > r.InitialDelay {
		errs = append(errs, fmt.Errorf("resilience.attempt_timeout %v must not exceed initial_delay %v", r.AttemptTimeout, r.InitialDelay))
	}
	if c.Resilience.BreakerFailureThreshold < 0 {
		errs = append(errs, errors.New("resilience.breaker_failure_threshold must not be negative"))
	}
	if c.Poller.MaxSymbolsPerCycle < 0 || c.Poller.Workers < 0 {
		errs = append(errs, errors.New("poller limits must not be negative"))
	}

	switch c.Notifier.Kind {
	case "log":
	case "webhook":
		if c.Notifier.WebhookURL == "" {
			errs = append(errs, errors.New("notifier.webhook_url is required for the webhook notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("notifier.kind %q must be log or webhook", c.Notifier.Kind))
	}

	if _, err := model.ParseDataMode(c.Mode.Initial); err != nil {
		errs = append(errs, fmt.Errorf("mode.initial: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Storage
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	// PostgreSQL
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Storage.PostgreSQL.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.PostgreSQL.Port = port
		}
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Storage.PostgreSQL.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Storage.PostgreSQL.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Storage.PostgreSQL.Database = v
	}

	// Redis
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Providers: COINGECKO_API_KEY, COINCAP_API_KEY, ...
	for name := range DefaultBaseURLs {
		v := os.Getenv(strings.ToUpper(name) + "_API_KEY")
		if v == "" {
			continue
		}
		if cfg.Providers.Sources == nil {
			cfg.Providers.Sources = make(map[string]ProviderConfig)
		}
		src := cfg.Providers.Sources[name]
		src.APIKey = v
		cfg.Providers.Sources[name] = src
	}

	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notifier.WebhookURL = v
	}
	if v := os.Getenv("BITBALANCE_MODE"); v != "" {
		cfg.Mode.Initial = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Server
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// StorageDSN is the connection string handed to the SQL driver.
func (c *Config) StorageDSN() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	if c.Storage.Driver == "sqlite" {
		return c.Storage.SQLitePath
	}
	return c.PostgresDSN()
}

func (c *Config) PostgresDSN() string {
	pg := c.Storage.PostgreSQL
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.User, pg.Password, pg.Database, pg.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
