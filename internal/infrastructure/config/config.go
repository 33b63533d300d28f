package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Hono Bridge Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Cumulocity CumulocityConfig `yaml:"cumulocity"`
	Hono       HonoConfig       `yaml:"hono"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// AgentConfig identifies this bridge instance in the downstream registry.
// The agent managed object acts as hierarchy parent for all bridged devices.
type AgentConfig struct {
	Name       string `yaml:"name"`
	ExternalID string `yaml:"external_id"`
}

// CumulocityConfig contains downstream backend connection settings.
type CumulocityConfig struct {
	BaseURL string                  `yaml:"base_url"`
	Tenants []TenantCredentialsConf `yaml:"tenants"`

	// Timeout is the per-request HTTP timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// TenantCredentialsConf holds the backend credentials for one tenant.
// The bridge acts as each tenant using these credentials when a broker
// callback needs to write to the backend.
type TenantCredentialsConf struct {
	TenantID string `yaml:"tenant_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// HonoConfig contains per-deployment defaults for upstream broker
// connection parameters. Tenant options (category "hono") override these
// per tenant; any key absent from the tenant options falls back here.
type HonoConfig struct {
	TenantID string `yaml:"tenantid"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTConfig contains transport settings for the upstream broker connection.
// Host, port and credentials come from the resolved tenant configuration;
// this section only carries transport-level knobs.
type MQTTConfig struct {
	ClientIDPrefix string `yaml:"client_id_prefix"`
	TLS            bool   `yaml:"tls"`
	QoS            int    `yaml:"qos"`
}

// DatabaseConfig contains SQLite database settings for the local audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains settings for the optional local telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP admin/status API settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings for the admin API.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token verification settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HONOBRIDGE_SECTION_KEY
// For example: HONOBRIDGE_DATABASE_PATH, HONOBRIDGE_HONO_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultHonoPort is the default broker port used when neither tenant
// options nor the configuration file provide one. Port is never a blocking
// field during credential resolution.
const DefaultHonoPort = 8883

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:       "Hono Bridge Agent",
			ExternalID: "hono-bridge-agent",
		},
		Cumulocity: CumulocityConfig{
			BaseURL: "http://localhost:8111",
			Timeout: 30,
		},
		Hono: HonoConfig{
			Port: DefaultHonoPort,
		},
		MQTT: MQTTConfig{
			ClientIDPrefix: "honobridge",
			QoS:            1,
		},
		Database: DatabaseConfig{
			Path:        "./data/honobridge.db",
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
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HONOBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cumulocity
	if v := os.Getenv("HONOBRIDGE_C8Y_BASEURL"); v != "" {
		cfg.Cumulocity.BaseURL = v
	}

	// Hono defaults
	if v := os.Getenv("HONOBRIDGE_HONO_HOST"); v != "" {
		cfg.Hono.Host = v
	}
	if v := os.Getenv("HONOBRIDGE_HONO_USERNAME"); v != "" {
		cfg.Hono.Username = v
	}
	if v := os.Getenv("HONOBRIDGE_HONO_PASSWORD"); v != "" {
		cfg.Hono.Password = v
	}

	// Database
	if v := os.Getenv("HONOBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("HONOBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HONOBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("HONOBRIDGE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Agent validation
	if c.Agent.Name == "" {
		errs = append(errs, "agent.name is required")
	}
	if c.Agent.ExternalID == "" {
		errs = append(errs, "agent.external_id is required")
	}

	// Cumulocity validation
	if c.Cumulocity.BaseURL == "" {
		errs = append(errs, "cumulocity.base_url is required")
	}
	for i, t := range c.Cumulocity.Tenants {
		if t.TenantID == "" {
			errs = append(errs, fmt.Sprintf("cumulocity.tenants[%d].tenant_id is required", i))
		}
		if t.Username == "" {
			errs = append(errs, fmt.Sprintf("cumulocity.tenants[%d].username is required", i))
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED.
	// The admin API exposes tenant connection state and the audit trail;
	// a forgeable token would leak operational data across tenants.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HONOBRIDGE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TenantCredentials returns the backend credentials for the given tenant,
// or false if the tenant is not configured.
func (c *Config) TenantCredentials(tenantID string) (TenantCredentialsConf, bool) {
	for _, t := range c.Cumulocity.Tenants {
		if t.TenantID == tenantID {
			return t, true
		}
	}
	return TenantCredentialsConf{}, false
}

// GetRequestTimeout returns the Cumulocity per-request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Cumulocity.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
