package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/autoscaler")
	}

	// Environment variable settings
	v.SetEnvPrefix("AUTOSCALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "predictops-autoscaler")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "autoscaler")
	v.SetDefault("database.user", "admin")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")

	// Metrics source defaults
	v.SetDefault("metrics_source.type", "prometheus")
	v.SetDefault("metrics_source.endpoint", "http://localhost:9090")
	v.SetDefault("metrics_source.timeout", "10s")
	v.SetDefault("metrics_source.retry_attempts", 5)

	// Predictor defaults
	v.SetDefault("predictor.endpoint", "http://localhost:8501")
	v.SetDefault("predictor.model_name", "workload_forecast")
	v.SetDefault("predictor.window_length", 10)
	v.SetDefault("predictor.timeout", "10s")

	// Scaler defaults
	v.SetDefault("scaler.endpoint", "http://localhost:9000")
	v.SetDefault("scaler.namespace", "default")
	v.SetDefault("scaler.timeout", "10s")
	v.SetDefault("scaler.circuit_breaker.max_failures", 5)
	v.SetDefault("scaler.circuit_breaker.timeout", "30s")

	// Policy source defaults
	v.SetDefault("policy_source.endpoint", "http://localhost:9000")
	v.SetDefault("policy_source.namespace", "default")
	v.SetDefault("policy_source.timeout", "10s")

	// Loop defaults
	v.SetDefault("loop.interval", "60s")
	v.SetDefault("loop.reload_interval", "10m")
	v.SetDefault("loop.error_threshold", 10)
	v.SetDefault("loop.target_timeout", "45s")
	v.SetDefault("loop.max_concurrent", 1)

	// Recorder defaults
	v.SetDefault("recorder.enabled", true)
	v.SetDefault("recorder.dir", ".")

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.jwt_secret", "change-me-in-production")

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")

	// Prometheus defaults
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9091)

	// Events defaults
	v.SetDefault("events.buffer_size", 100)
}
