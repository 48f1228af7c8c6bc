package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Redis    RedisConfig    `json:"redis"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Upstream UpstreamConfig `json:"upstream"`
	QoS      QoSConfig      `json:"qos"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type LoggingConfig struct {
	Level string `json:"level"` // "debug" "info" "warn" "error"
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

type AuthConfig struct {
	// Empty secret disables bearer token identity extraction
	JWTSecret        string `json:"jwt_secret"`
	TokenExpiryHours int    `json:"token_expiry_hours"`
}

func (a AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(a.TokenExpiryHours) * time.Hour
}

type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
	// Stored QoS events older than this are deleted
	EventRetentionDays int `json:"event_retention_days"`
	MaxIdleConns       int `json:"max_idle_conns"`
	MaxOpenConns       int `json:"max_open_conns"`
	SlowQueryMs        int `json:"slow_query_ms"`
}

func (d DatabaseConfig) SlowQueryThreshold() time.Duration {
	return time.Duration(d.SlowQueryMs) * time.Millisecond
}

func (d DatabaseConfig) EventRetention() time.Duration {
	return time.Duration(d.EventRetentionDays) * 24 * time.Hour
}

type UpstreamConfig struct {
	Target     string `json:"target"`
	PathPrefix string `json:"path_prefix"`
	// Empty disables upstream health checks
	HealthEndpoint        string `json:"health_endpoint"`
	HealthIntervalSeconds int    `json:"health_interval_seconds"`
}

func (u UpstreamConfig) HealthInterval() time.Duration {
	return time.Duration(u.HealthIntervalSeconds) * time.Second
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
		},
		Logging: LoggingConfig{Level: "info"},
		Database: DatabaseConfig{
			EventRetentionDays: 30,
			MaxIdleConns:       5,
			MaxOpenConns:       20,
			SlowQueryMs:        200,
		},
		Auth: AuthConfig{
			TokenExpiryHours: 24,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Upstream: UpstreamConfig{
			Target:                "http://localhost:3001",
			PathPrefix:            "/v1",
			HealthEndpoint:        "/health",
			HealthIntervalSeconds: 10,
		},
		QoS: DefaultQoSConfig(),
	}
}

// Load reads a JSON config file on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Decoding into the default slice would merge fields into its elements
		cfg.QoS.SLOTargets = nil
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if cfg.QoS.SLOTargets == nil {
			cfg.QoS.SLOTargets = DefaultQoSConfig().SLOTargets
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.QoS.ApplyDefaults()
	if err := cfg.QoS.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
		}
		*dst = n
		return nil
	}

	setString("PORT", &cfg.Server.Port)
	setString("ENVIRONMENT", &cfg.Server.Environment)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("UPSTREAM_TARGET", &cfg.Upstream.Target)

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
		cfg.Redis.Enabled = true
	}
	setString("REDIS_PORT", &cfg.Redis.Port)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)

	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}

	if err := setInt("QOS_MAX_CONCURRENT_SESSIONS", &cfg.QoS.MaxConcurrentSessions); err != nil {
		return err
	}
	return setInt("QOS_MAX_REQUESTS_PER_MINUTE", &cfg.QoS.MaxRequestsPerMinute)
}
