package config

import (
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	MetricsSource MetricsSourceConfig `mapstructure:"metrics_source"`
	Predictor     PredictorConfig     `mapstructure:"predictor"`
	Scaler        ScalerConfig        `mapstructure:"scaler"`
	PolicySource  PolicySourceConfig  `mapstructure:"policy_source"`
	Loop          LoopConfig          `mapstructure:"loop"`
	Recorder      RecorderConfig      `mapstructure:"recorder"`
	API           APIConfig           `mapstructure:"api"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Prometheus    PrometheusConfig    `mapstructure:"prometheus"`
	Events        EventsConfig        `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Name             string        `mapstructure:"name"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	MaxConnections   int           `mapstructure:"max_connections"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout"`
	MigrationTimeout time.Duration `mapstructure:"migration_timeout"`
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

type MetricsSourceConfig struct {
	Type          string        `mapstructure:"type"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
}

type PredictorConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	ModelName    string        `mapstructure:"model_name"`
	WindowLength int           `mapstructure:"window_length"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ScalerConfig struct {
	Endpoint       string               `mapstructure:"endpoint"`
	Namespace      string               `mapstructure:"namespace"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PolicySourceConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Namespace string        `mapstructure:"namespace"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LoopConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
	ErrorThreshold int           `mapstructure:"error_threshold"`
	TargetTimeout  time.Duration `mapstructure:"target_timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
}

type RecorderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type APIConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTDuration    time.Duration `mapstructure:"jwt_duration"`
	JWTIssuer      string        `mapstructure:"jwt_issuer"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieMaxAge   int           `mapstructure:"cookie_max_age"`
	CookiePath     string        `mapstructure:"cookie_path"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	CookieHTTPOnly bool          `mapstructure:"cookie_http_only"`
	DefaultLimit   int           `mapstructure:"default_limit"`
	MaxLimit       int           `mapstructure:"max_limit"`
	CORS           CORSConfig    `mapstructure:"cors"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
