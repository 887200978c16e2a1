package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the installer console.
// Values come from hard-coded defaults, then YAML, then environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
}

// SiteConfig identifies the installation business running the console.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains the SQLite replica settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains broker settings for commit announcements.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the placement-change push channel.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains occupancy telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication and rate-limit settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains bearer token settings. An empty secret disables auth.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Snapshot provider kinds.
const (
	ProviderHTTP   = "http"
	ProviderFile   = "file"
	ProviderSQLite = "sqlite"
)

// SnapshotConfig selects where hardware snapshots are read from.
type SnapshotConfig struct {
	Provider string `yaml:"provider"`

	// BaseURL of the backend REST API (http provider).
	BaseURL string `yaml:"base_url"`
	// Shape of the backend document: "index" or "menu" (http provider).
	Shape string `yaml:"shape"`
	// Token sent as a bearer token to the backend (http provider).
	Token string `yaml:"token"`
	// Timeout per fetch, in seconds.
	Timeout int `yaml:"timeout"`

	// FilePath of a YAML/TOML/JSON fixture (file provider).
	FilePath string `yaml:"file_path"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// CacheConfig controls the snapshot cache.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	TTL     int    `yaml:"ttl"` // seconds
}

// RedisConfig contains the shared cache connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// An empty path skips the file and uses defaults plus environment.
// Environment variables follow GRAYLOGIC_SECTION_KEY, for example
// GRAYLOGIC_SNAPSHOT_BASE_URL or GRAYLOGIC_API_PORT.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "installer-001",
			Name: "Gray Logic Installer",
		},
		Database: DatabaseConfig{
			Path:        "./data/hardware.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "glconsole",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{AccessTokenTTL: 60},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
		Snapshot: SnapshotConfig{
			Provider: ProviderHTTP,
			BaseURL:  "http://localhost:3000/api",
			Shape:    "index",
			Timeout:  5,
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     30,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "graylogic:snapshot",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("GRAYLOGIC_DATABASE_PATH", &cfg.Database.Path)

	setBool("GRAYLOGIC_MQTT_ENABLED", &cfg.MQTT.Enabled)
	setString("GRAYLOGIC_MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("GRAYLOGIC_MQTT_PORT", &cfg.MQTT.Broker.Port)
	setString("GRAYLOGIC_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("GRAYLOGIC_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	setString("GRAYLOGIC_API_HOST", &cfg.API.Host)
	setInt("GRAYLOGIC_API_PORT", &cfg.API.Port)

	setString("GRAYLOGIC_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	setString("GRAYLOGIC_LOG_LEVEL", &cfg.Logging.Level)

	setString("GRAYLOGIC_JWT_SECRET", &cfg.Security.JWT.Secret)

	setString("GRAYLOGIC_SNAPSHOT_PROVIDER", &cfg.Snapshot.Provider)
	setString("GRAYLOGIC_SNAPSHOT_BASE_URL", &cfg.Snapshot.BaseURL)
	setString("GRAYLOGIC_SNAPSHOT_TOKEN", &cfg.Snapshot.Token)
	setString("GRAYLOGIC_SNAPSHOT_FILE_PATH", &cfg.Snapshot.FilePath)

	setString("GRAYLOGIC_CACHE_BACKEND", &cfg.Cache.Backend)
	setString("GRAYLOGIC_REDIS_ADDR", &cfg.Redis.Addr)
	setString("GRAYLOGIC_REDIS_PASSWORD", &cfg.Redis.Password)
}

// minJWTSecretLength guards against trivially guessable secrets.
const minJWTSecretLength = 32

// Validate checks the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if rl := c.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute <= 0 {
		errs = append(errs, "security.rate_limit.requests_per_minute must be positive")
	}

	switch c.Snapshot.Provider {
	case ProviderHTTP:
		if c.Snapshot.BaseURL == "" {
			errs = append(errs, "snapshot.base_url is required for the http provider")
		}
		if c.Snapshot.Shape != "index" && c.Snapshot.Shape != "menu" {
			errs = append(errs, "snapshot.shape must be index or menu")
		}
	case ProviderFile:
		if c.Snapshot.FilePath == "" {
			errs = append(errs, "snapshot.file_path is required for the file provider")
		}
	case ProviderSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("snapshot.provider %q must be http, file, or sqlite", c.Snapshot.Provider))
	}
	if c.Snapshot.Timeout < 0 {
		errs = append(errs, "snapshot.timeout must not be negative")
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required for the redis cache")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.backend %q must be memory, redis, or none", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// SnapshotTimeout returns the per-fetch timeout.
func (c *Config) SnapshotTimeout() time.Duration {
	return time.Duration(c.Snapshot.Timeout) * time.Second
}

// CacheTTL returns the snapshot cache expiry.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

// AccessTokenTTL returns the lifetime of issued bearer tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
