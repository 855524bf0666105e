package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// CameraSource describes a camera published by the bridge. The bridge has no
// listing endpoint, so discovery synthesizes cameras from these entries.
type CameraSource struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Model      string `yaml:"model"`
	MACAddress string `yaml:"mac_address"`
	Location   string `yaml:"location"`
	PTZ        bool   `yaml:"ptz"`
	Audio      bool   `yaml:"audio"`
}

type Config struct {
	Bridge struct {
		Host           string         `yaml:"host"`
		Port           int            `yaml:"port"`
		ProbePath      string         `yaml:"probe_path"`
		SnapshotPath   string         `yaml:"snapshot_path"`
		StreamPath     string         `yaml:"stream_path"`
		StreamProtocol string         `yaml:"stream_protocol"`
		ProbeSource    string         `yaml:"probe_source"`
		Timeout        time.Duration  `yaml:"timeout"`
		Sources        []CameraSource `yaml:"sources"`
	} `yaml:"bridge"`

	API struct {
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`

		Retry struct {
			Enabled      bool          `yaml:"enabled"`
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
		} `yaml:"retry"`

		CircuitBreaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			SuccessThreshold int           `yaml:"success_threshold"`
			Timeout          time.Duration `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"api"`

	Health struct {
		Interval         time.Duration `yaml:"interval"`
		InitialBackoff   time.Duration `yaml:"initial_backoff"`
		MaxBackoff       time.Duration `yaml:"max_backoff"`
		Multiplier       float64       `yaml:"multiplier"`
		MaxJitter        time.Duration `yaml:"max_jitter"`
		FailureThreshold int           `yaml:"failure_threshold"`
	} `yaml:"health"`

	Streams struct {
		MetricsInterval time.Duration `yaml:"metrics_interval"`
		MaxActive       int           `yaml:"max_active"`
		DefaultQuality  string        `yaml:"default_quality"`
	} `yaml:"streams"`

	Snapshot struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"snapshot"`

	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		MaxTenants      int           `yaml:"max_tenants"`
	} `yaml:"server"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		// ServiceKey lets the dashboard backend mint tenant tokens; empty disables issuing.
		ServiceKey string `yaml:"service_key"`
	} `yaml:"auth"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
		QoS         byte   `yaml:"qos"`
	} `yaml:"mqtt"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		MaxConcurrent     int     `yaml:"max_concurrent"`
	} `yaml:"rate_limiting"`
}

// BridgeBaseURL returns http://host:port of the local bridge process.
func (c *Config) BridgeBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Bridge.Host, c.Bridge.Port)
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Bridge
	if c.Bridge.Host == "" {
		return fmt.Errorf("bridge.host must not be empty")
	}
	if c.Bridge.Port <= 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be in 1..65535")
	}
	if c.Bridge.Timeout <= 0 || c.Bridge.Timeout > 10*time.Second {
		return fmt.Errorf("bridge.timeout must be > 0 and <= 10s")
	}
	if c.Bridge.ProbePath == "" {
		return fmt.Errorf("bridge.probe_path must not be empty")
	}
	for i, src := range c.Bridge.Sources {
		if src.ID == "" {
			return fmt.Errorf("bridge.sources[%d].id must not be empty", i)
		}
	}

	// API
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.API.Retry.Enabled && c.API.Retry.MaxAttempts < 0 {
		return fmt.Errorf("api.retry.max_attempts must be >= 0")
	}
	if c.API.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("api.circuit_breaker.failure_threshold must be > 0")
	}

	// Health
	if c.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be > 0")
	}
	if c.Health.InitialBackoff <= 0 {
		return fmt.Errorf("health.initial_backoff must be > 0")
	}
	if c.Health.MaxBackoff < c.Health.InitialBackoff {
		return fmt.Errorf("health.max_backoff must be >= initial_backoff")
	}
	if c.Health.Multiplier < 1 {
		return fmt.Errorf("health.multiplier must be >= 1")
	}
	if c.Health.MaxJitter < 0 {
		return fmt.Errorf("health.max_jitter must be >= 0")
	}
	if c.Health.FailureThreshold <= 0 {
		return fmt.Errorf("health.failure_threshold must be > 0")
	}

	// Streams
	if c.Streams.MetricsInterval <= 0 {
		return fmt.Errorf("streams.metrics_interval must be > 0")
	}
	if c.Streams.MaxActive <= 0 {
		return fmt.Errorf("streams.max_active must be > 0")
	}

	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Server.MaxTenants <= 0 {
		return fmt.Errorf("server.max_tenants must be > 0")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// MQTT
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker must not be empty when mqtt.enabled=true")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Bridge.Host = "localhost"
	cfg.Bridge.Port = 1984
	cfg.Bridge.ProbePath = "/api/frame.jpeg"
	cfg.Bridge.SnapshotPath = "/api/frame.jpeg"
	cfg.Bridge.StreamPath = "/stream"
	cfg.Bridge.StreamProtocol = "hls"
	cfg.Bridge.ProbeSource = "barn-cam-1"
	cfg.Bridge.Timeout = 5 * time.Second
	cfg.Bridge.Sources = []CameraSource{
		{ID: "barn-cam-1", Name: "Barn Camera 1", Model: "Bridge RTSP Source", Location: "Main barn"},
	}

	cfg.API.BaseURL = "http://localhost:8000/api"
	cfg.API.Timeout = 30 * time.Second
	cfg.API.Retry.Enabled = true
	cfg.API.Retry.MaxAttempts = 2
	cfg.API.Retry.InitialDelay = 200 * time.Millisecond
	cfg.API.Retry.MaxDelay = 2 * time.Second
	cfg.API.CircuitBreaker.FailureThreshold = 5
	cfg.API.CircuitBreaker.SuccessThreshold = 1
	cfg.API.CircuitBreaker.Timeout = 30 * time.Second

	cfg.Health.Interval = 30 * time.Second
	cfg.Health.InitialBackoff = time.Second
	cfg.Health.MaxBackoff = 30 * time.Second
	cfg.Health.Multiplier = 2.0
	cfg.Health.MaxJitter = 500 * time.Millisecond
	cfg.Health.FailureThreshold = 5

	cfg.Streams.MetricsInterval = 5 * time.Second
	cfg.Streams.MaxActive = 16
	cfg.Streams.DefaultQuality = "medium"

	cfg.Snapshot.CacheTTL = 2 * time.Second

	cfg.Server.Address = ":8090"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Server.PingInterval = 30 * time.Second
	cfg.Server.MaxTenants = 64

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 12 * time.Hour
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "onebarn-camera-bridge"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 10
	cfg.Redis.Channel = "onebarn:events"

	cfg.MQTT.Enabled = false
	cfg.MQTT.Broker = "localhost:1883"
	cfg.MQTT.ClientID = "onebarn-camera-bridge"
	cfg.MQTT.TopicPrefix = "onebarn"
	cfg.MQTT.QoS = 1

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 20
	cfg.RateLimiting.Burst = 40

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("ONEBARN_BRIDGE_HOST"); host != "" {
		c.Bridge.Host = host
	}
	if port := os.Getenv("ONEBARN_BRIDGE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Bridge.Port = p
		}
	}
	if url := os.Getenv("ONEBARN_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if addr := os.Getenv("ONEBARN_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("ONEBARN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("ONEBARN_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if key := os.Getenv("ONEBARN_SERVICE_KEY"); key != "" {
		c.Auth.ServiceKey = key
	}
}
