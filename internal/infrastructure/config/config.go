package config

import "time"

type ProviderConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutStr string `yaml:"timeout"`

	Timeout time.Duration `yaml:"-"`
}

type Config struct {
	Server struct {
		Port               int    `yaml:"port"`
		ReadTimeoutStr     string `yaml:"read_timeout"`
		WriteTimeoutStr    string `yaml:"write_timeout"`
		ShutdownTimeoutStr string `yaml:"shutdown_timeout"`

		ReadTimeout     time.Duration `yaml:"-"`
		WriteTimeout    time.Duration `yaml:"-"`
		ShutdownTimeout time.Duration `yaml:"-"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Storage struct {
		Driver     string `yaml:"driver"`
		DSN        string `yaml:"dsn"`
		SQLitePath string `yaml:"sqlite_path"`

		PostgreSQL struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Database string `yaml:"database"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgresql"`
	} `yaml:"storage"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTLStr string        `yaml:"ttl"`
		TTL    time.Duration `yaml:"-"`
	} `yaml:"cache"`

	Providers struct {
		Order   []string                  `yaml:"order"`
		Sources map[string]ProviderConfig `yaml:"sources"`
	} `yaml:"providers"`

	Resilience struct {
		RetryCount              int    `yaml:"retry_count"`
		InitialDelayStr         string `yaml:"initial_delay"`
		ExponentialBackoff      bool   `yaml:"exponential_backoff"`
		MaxDelayStr             string `yaml:"max_delay"`
		AttemptTimeoutStr       string `yaml:"attempt_timeout"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerOpenTimeoutStr   string `yaml:"breaker_open_timeout"`

		InitialDelay       time.Duration `yaml:"-"`
		MaxDelay           time.Duration `yaml:"-"`
		AttemptTimeout     time.Duration `yaml:"-"`
		BreakerOpenTimeout time.Duration `yaml:"-"`
	} `yaml:"resilience"`

	Poller struct {
		IntervalStr        string `yaml:"interval"`
		MaxSymbolsPerCycle int    `yaml:"max_symbols_per_cycle"`
		Workers            int    `yaml:"workers"`

		Interval time.Duration `yaml:"-"`
	} `yaml:"poller"`

	Notifier struct {
		Kind       string `yaml:"kind"`
		WebhookURL string `yaml:"webhook_url"`
		TimeoutStr string `yaml:"timeout"`

		Timeout time.Duration `yaml:"-"`
	} `yaml:"notifier"`

	Mode struct {
		Initial string `yaml:"initial"`
	} `yaml:"mode"`
}
