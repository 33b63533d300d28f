package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testSecret is long enough to pass JWT secret validation.
const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hono.Port != DefaultHonoPort {
		t.Errorf("Hono.Port = %d, want %d", cfg.Hono.Port, DefaultHonoPort)
	}
	if cfg.Agent.ExternalID != "hono-bridge-agent" {
		t.Errorf("Agent.ExternalID = %q, want default", cfg.Agent.ExternalID)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  name: "Factory Bridge"
  external_id: "factory-bridge"
hono:
  host: "hono.example.com"
  port: 5671
  username: "consumer@HONO"
cumulocity:
  base_url: "https://tenant.example.com"
security:
  jwt:
    secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hono.Host != "hono.example.com" {
		t.Errorf("Hono.Host = %q, want hono.example.com", cfg.Hono.Host)
	}
	if cfg.Hono.Port != 5671 {
		t.Errorf("Hono.Port = %d, want 5671", cfg.Hono.Port)
	}
	if cfg.Agent.Name != "Factory Bridge" {
		t.Errorf("Agent.Name = %q, want Factory Bridge", cfg.Agent.Name)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HONOBRIDGE_HONO_HOST", "env-host")
	t.Setenv("HONOBRIDGE_JWT_SECRET", testSecret)

	path := writeConfig(t, `
hono:
  host: "file-host"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hono.Host != "env-host" {
		t.Errorf("Hono.Host = %q, want env-host (env should override file)", cfg.Hono.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(_ *Config) {},
			wantErr: "",
		},
		{
			name:    "missing agent name",
			mutate:  func(c *Config) { c.Agent.Name = "" },
			wantErr: "agent.name",
		},
		{
			name:    "missing agent external id",
			mutate:  func(c *Config) { c.Agent.ExternalID = "" },
			wantErr: "agent.external_id",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name: "tenant missing username",
			mutate: func(c *Config) {
				c.Cumulocity.Tenants = []TenantCredentialsConf{{TenantID: "t1"}}
			},
			wantErr: "tenants[0].username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTenantCredentials(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cumulocity.Tenants = []TenantCredentialsConf{
		{TenantID: "t100", Username: "bridge", Password: "secret"},
	}

	creds, ok := cfg.TenantCredentials("t100")
	if !ok {
		t.Fatal("TenantCredentials(t100) not found")
	}
	if creds.Username != "bridge" {
		t.Errorf("Username = %q, want bridge", creds.Username)
	}

	if _, ok := cfg.TenantCredentials("t999"); ok {
		t.Error("TenantCredentials(t999) found, want missing")
	}
}
