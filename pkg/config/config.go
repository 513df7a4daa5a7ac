package config

import "time"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Session    SessionConfig    `mapstructure:"session"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Enabled  bool   `mapstructure:"enabled"`
	PoolSize int    `mapstructure:"pool_size"`
}

// QueueConfig selects the command/event broker. Driver is "rabbitmq" or
// "nats"; with Enabled false the dispatcher runs direct-call only.
type QueueConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	URL     string `mapstructure:"url"`
}

// GatewayConfig is the synchronous device-control endpoint used as the
// dispatch fallback.
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	SystemCustomerID      string        `mapstructure:"system_customer_id"`
	AllowResumeOwnSession bool          `mapstructure:"allow_resume_own_session"`
	MinBillableDuration   time.Duration `mapstructure:"min_billable_duration"`
	MeterPollRetries      int           `mapstructure:"meter_poll_retries"`
	MeterPollInterval     time.Duration `mapstructure:"meter_poll_interval"`
}

// PricingConfig is the fallback applied when a charging point has no tariff
// row.
type PricingConfig struct {
	BaseRatePerKWh float64 `mapstructure:"base_rate_per_kwh"`
	TaxPercent     float64 `mapstructure:"tax_percent"`
	Currency       string  `mapstructure:"currency"`
}

type CacheConfig struct {
	StatusTTL      time.Duration `mapstructure:"status_ttl"`
	SessionListTTL time.Duration `mapstructure:"session_list_ttl"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}
