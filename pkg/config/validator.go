package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, errors.New("database.port must be between 1 and 65535"))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Database.MaxConnections <= 0 {
		errs = append(errs, errors.New("database.max_connections must be positive"))
	}

	// Metrics source validation
	if c.MetricsSource.Endpoint == "" {
		errs = append(errs, errors.New("metrics_source.endpoint is required"))
	}
	if c.MetricsSource.Timeout <= 0 {
		errs = append(errs, errors.New("metrics_source.timeout must be positive"))
	}
	if c.MetricsSource.RetryAttempts <= 0 {
		errs = append(errs, errors.New("metrics_source.retry_attempts must be positive"))
	}

	// Predictor validation
	if c.Predictor.Endpoint == "" {
		errs = append(errs, errors.New("predictor.endpoint is required"))
	}
	if c.Predictor.ModelName == "" {
		errs = append(errs, errors.New("predictor.model_name is required"))
	}
	if c.Predictor.WindowLength <= 0 {
		errs = append(errs, errors.New("predictor.window_length must be positive"))
	}

	// Scaler validation
	if c.Scaler.Endpoint == "" {
		errs = append(errs, errors.New("scaler.endpoint is required"))
	}
	if c.Scaler.Timeout <= 0 {
		errs = append(errs, errors.New("scaler.timeout must be positive"))
	}

	// Policy source validation
	if c.PolicySource.Endpoint == "" {
		errs = append(errs, errors.New("policy_source.endpoint is required"))
	}

	// Loop validation
	if c.Loop.Interval <= 0 {
		errs = append(errs, errors.New("loop.interval must be positive"))
	}
	if c.Loop.ReloadInterval < c.Loop.Interval {
		errs = append(errs, errors.New("loop.reload_interval must be >= loop.interval"))
	}
	if c.Loop.ErrorThreshold <= 0 {
		errs = append(errs, errors.New("loop.error_threshold must be positive"))
	}
	if c.Loop.TargetTimeout <= 0 || c.Loop.TargetTimeout >= c.Loop.Interval {
		errs = append(errs, errors.New("loop.target_timeout must be positive and less than loop.interval"))
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.App.Mode == "production" && c.API.JWTSecret == "change-me-in-production" {
		errs = append(errs, errors.New("api.jwt_secret must be changed in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
