package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	viper.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	viper.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	viper.BindEnv("queue.url", "QUEUE_URL", "APP_QUEUE_URL")
	viper.BindEnv("gateway.base_url", "GATEWAY_BASE_URL", "APP_GATEWAY_BASE_URL")
	viper.BindEnv("gateway.api_key", "GATEWAY_API_KEY", "APP_GATEWAY_API_KEY")
	viper.BindEnv("session.system_customer_id", "SYSTEM_CUSTOMER_ID")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "csms")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("queue.driver", "rabbitmq")
	viper.SetDefault("gateway.timeout", "60s")
	viper.SetDefault("session.system_customer_id", "system")
	viper.SetDefault("session.allow_resume_own_session", true)
	viper.SetDefault("session.min_billable_duration", "30s")
	viper.SetDefault("session.meter_poll_retries", 5)
	viper.SetDefault("session.meter_poll_interval", "2s")
	viper.SetDefault("pricing.base_rate_per_kwh", 10.0)
	viper.SetDefault("pricing.tax_percent", 18.0)
	viper.SetDefault("pricing.currency", "EUR")
	viper.SetDefault("cache.status_ttl", "5m")
	viper.SetDefault("cache.session_list_ttl", "2m")
	viper.SetDefault("prometheus.path", "/metrics")
	viper.SetDefault("logging.level", "info")
}
