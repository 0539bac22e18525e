package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Sunseeker Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud     CloudConfig     `yaml:"cloud"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Sync      SyncConfig      `yaml:"sync"`
	Map       MapConfig       `yaml:"map"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CloudConfig contains vendor cloud account and endpoint settings.
type CloudConfig struct {
	// Variant selects the protocol generation: "legacy" (bluetooth-era
	// mowers) or "wireless" (RTK/vision mowers). The two variants use
	// different endpoints and incompatible command payload shapes.
	Variant string `yaml:"variant"`

	// Region selects the wireless-variant server cluster: "EU" or "US".
	// Ignored for the legacy variant, which has a single cluster.
	Region string `yaml:"region"`

	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// Language is sent as Accept-Language on every request; fault texts
	// come back localised.
	Language string `yaml:"language"`

	// BaseURL overrides the variant/region derived API endpoint. Mainly
	// for tests and self-hosted relays.
	BaseURL string `yaml:"base_url"`

	Timeout    int `yaml:"timeout"`     // seconds per request
	Retries    int `yaml:"retries"`     // attempts per request
	RetryDelay int `yaml:"retry_delay"` // seconds between attempts
}

// MQTTConfig contains push channel settings. Host and credentials are
// normally derived from the cloud session; overrides exist for testing
// against a local broker.
type MQTTConfig struct {
	HostOverride string              `yaml:"host_override"`
	PortOverride int                 `yaml:"port_override"`
	TLS          bool                `yaml:"tls"`
	QoS          int                 `yaml:"qos"`
	Reconnect    MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SyncConfig contains poll and refresh timing settings.
type SyncConfig struct {
	// PollInterval is the periodic device poll cadence in seconds.
	PollInterval int `yaml:"poll_interval"`

	// CommandRepollDelay is how long after a state-changing command the
	// device is re-polled, in seconds. The device converges to a command
	// asynchronously; this picks up the settled state.
	CommandRepollDelay int `yaml:"command_repoll_delay"`

	// AuthRefreshDelay is how long after a 401 the token refresh runs,
	// in seconds.
	AuthRefreshDelay int `yaml:"auth_refresh_delay"`
}

// MapConfig contains map rendering settings.
type MapConfig struct {
	// PixelsPerUnit scales geometry units to canvas pixels so different
	// properties render at comparable density.
	PixelsPerUnit float64 `yaml:"pixels_per_unit"`

	// MarkerURLOverride replaces the per-device robot marker URL.
	MarkerURLOverride string `yaml:"marker_url_override"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Cloud protocol variants.
const (
	VariantLegacy   = "legacy"
	VariantWireless = "wireless"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SUNSEEKER_SECTION_KEY
// For example: SUNSEEKER_CLOUD_EMAIL, SUNSEEKER_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			Variant:    VariantWireless,
			Region:     "EU",
			Language:   "en",
			Timeout:    10,
			Retries:    3,
			RetryDelay: 1,
		},
		MQTT: MQTTConfig{
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Sync: SyncConfig{
			PollInterval:       3600,
			CommandRepollDelay: 10,
			AuthRefreshDelay:   60,
		},
		Map: MapConfig{
			PixelsPerUnit: 25,
		},
		Database: DatabaseConfig{
			Path:        "./data/sunseeker.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SUNSEEKER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("SUNSEEKER_CLOUD_EMAIL"); v != "" {
		cfg.Cloud.Email = v
	}
	if v := os.Getenv("SUNSEEKER_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Password = v
	}
	if v := os.Getenv("SUNSEEKER_CLOUD_VARIANT"); v != "" {
		cfg.Cloud.Variant = v
	}
	if v := os.Getenv("SUNSEEKER_CLOUD_REGION"); v != "" {
		cfg.Cloud.Region = v
	}
	if v := os.Getenv("SUNSEEKER_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}

	// Database
	if v := os.Getenv("SUNSEEKER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("SUNSEEKER_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SUNSEEKER_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SUNSEEKER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SUNSEEKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for required fields and sane values.
//
// Returns:
//   - error: Describing the first validation failure, or nil if valid
func (c *Config) Validate() error {
	switch c.Cloud.Variant {
	case VariantLegacy, VariantWireless:
	default:
		return fmt.Errorf("cloud.variant must be %q or %q, got %q",
			VariantLegacy, VariantWireless, c.Cloud.Variant)
	}

	if c.Cloud.Variant == VariantWireless {
		region := strings.ToUpper(c.Cloud.Region)
		if region != "EU" && region != "US" {
			return fmt.Errorf("cloud.region must be EU or US, got %q", c.Cloud.Region)
		}
		c.Cloud.Region = region
	}

	if c.Cloud.Email == "" {
		return fmt.Errorf("cloud.email is required")
	}
	if c.Cloud.Password == "" {
		return fmt.Errorf("cloud.password is required")
	}
	if c.Cloud.Timeout <= 0 {
		return fmt.Errorf("cloud.timeout must be positive, got %d", c.Cloud.Timeout)
	}
	if c.Cloud.Retries <= 0 {
		return fmt.Errorf("cloud.retries must be positive, got %d", c.Cloud.Retries)
	}

	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll_interval must be positive, got %d", c.Sync.PollInterval)
	}
	if c.Sync.CommandRepollDelay <= 0 {
		return fmt.Errorf("sync.command_repoll_delay must be positive, got %d", c.Sync.CommandRepollDelay)
	}

	if c.Map.PixelsPerUnit <= 0 {
		return fmt.Errorf("map.pixels_per_unit must be positive, got %v", c.Map.PixelsPerUnit)
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", c.API.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.bucket is required when influxdb is enabled")
		}
	}

	return nil
}
