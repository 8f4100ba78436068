package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Platform struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"platform"`

	Gateway struct {
		URL               string        `yaml:"url"`
		Token             string        `yaml:"token"`
		ReconnectInterval time.Duration `yaml:"reconnect_interval"`
		MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
		PingInterval      time.Duration `yaml:"ping_interval"`
	} `yaml:"gateway"`

	Sweeper struct {
		Interval            time.Duration `yaml:"interval"`
		InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	} `yaml:"sweeper"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled        bool   `yaml:"enabled"`
		JaegerEndpoint string `yaml:"jaeger_endpoint"`
		ServiceName    string `yaml:"service_name"`
	} `yaml:"tracing"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with working defaults for a
// single-node, in-memory deployment.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second

	cfg.Platform.BaseURL = "http://localhost:9090"

	cfg.Gateway.ReconnectInterval = 2 * time.Second
	cfg.Gateway.MaxReconnectDelay = 30 * time.Second
	cfg.Gateway.PingInterval = 20 * time.Second

	cfg.Sweeper.Interval = 60 * time.Second
	cfg.Sweeper.InactivityThreshold = time.Minute

	cfg.Redis.PoolSize = 10

	cfg.Auth.AccessTokenTTL = time.Hour

	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.RequestsPerSecond = 20
	cfg.RateLimiting.Burst = 40

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Tracing.ServiceName = "tempvox-steward"

	return cfg
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Platform
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url must not be empty")
	}

	// Gateway
	if c.Gateway.ReconnectInterval <= 0 {
		return fmt.Errorf("gateway.reconnect_interval must be > 0")
	}
	if c.Gateway.MaxReconnectDelay < c.Gateway.ReconnectInterval {
		return fmt.Errorf("gateway.max_reconnect_delay must be >= gateway.reconnect_interval")
	}
	if c.Gateway.PingInterval <= 0 {
		return fmt.Errorf("gateway.ping_interval must be > 0")
	}

	// Sweeper
	if c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be > 0")
	}
	if c.Sweeper.InactivityThreshold <= 0 {
		return fmt.Errorf("sweeper.inactivity_threshold must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0")
		}
	}

	// Auth
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0")
		}
	}

	// Logging
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}

	// Tracing
	if c.Tracing.Enabled && c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
	}

	return nil
}
