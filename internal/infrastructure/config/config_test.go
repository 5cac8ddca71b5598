package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// validConfig returns a config that passes Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.OAuth.ClientID = "skill-client"
	cfg.OAuth.ClientSecret = "skill-secret"
	cfg.OAuth.JWT.Secret = validJWTSecret
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
oauth:
  client_id: "skill-client"
  client_secret: "skill-secret"
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
gateway:
  public_url: "https://home.example.com"
  report_delay: 5
stream:
  idle_timeout: 15
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Gateway.PublicURL != "https://home.example.com" {
		t.Errorf("Gateway.PublicURL = %q, want %q", cfg.Gateway.PublicURL, "https://home.example.com")
	}
	if cfg.ReportDelay() != 5*time.Second {
		t.Errorf("ReportDelay() = %v, want 5s", cfg.ReportDelay())
	}
	if cfg.Stream.IdleTimeout != 15 {
		t.Errorf("Stream.IdleTimeout = %d, want 15", cfg.Stream.IdleTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Stream.MaxDuration != 60 {
		t.Errorf("Stream.MaxDuration = %d, want 60", cfg.Stream.MaxDuration)
	}
	if cfg.OAuth.Scope != "iobroker" {
		t.Errorf("OAuth.Scope = %q, want %q", cfg.OAuth.Scope, "iobroker")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
oauth:
  client_id: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "oauth.client_id is required") {
		t.Errorf("error = %v, want mention of oauth.client_id", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.OAuth.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.OAuth.JWT.Secret = "short" }, wantErr: true},
		{name: "missing client secret", mutate: func(c *Config) { c.OAuth.ClientSecret = "" }, wantErr: true},
		{name: "no redirect prefixes", mutate: func(c *Config) { c.OAuth.RedirectPrefixes = nil }, wantErr: true},
		{name: "zero access TTL", mutate: func(c *Config) { c.OAuth.JWT.AccessTokenTTL = 0 }, wantErr: true},
		{name: "zero stream duration", mutate: func(c *Config) { c.Stream.MaxDuration = 0 }, wantErr: true},
		{name: "zero idle timeout", mutate: func(c *Config) { c.Stream.IdleTimeout = 0 }, wantErr: true},
		{name: "wildcard topic prefix", mutate: func(c *Config) { c.MQTT.TopicPrefix = "home/#" }, wantErr: true},
		{name: "missing catalog", mutate: func(c *Config) { c.Devices.Catalog = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Path = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"database.path", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ALEXAGW_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ALEXAGW_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ALEXAGW_MQTT_USERNAME", "testuser")
	t.Setenv("ALEXAGW_MQTT_PASSWORD", "testpass")
	t.Setenv("ALEXAGW_API_HOST", "192.168.1.1")
	t.Setenv("ALEXAGW_PUBLIC_URL", "https://gw.example.com")
	t.Setenv("ALEXAGW_JWT_SECRET", "jwt-secret")
	t.Setenv("ALEXAGW_OAUTH_CLIENT_SECRET", "oauth-secret")
	t.Setenv("ALEXAGW_PROVIDER_CLIENT_SECRET", "provider-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		name, got, want string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"Gateway.PublicURL", cfg.Gateway.PublicURL, "https://gw.example.com"},
		{"OAuth.JWT.Secret", cfg.OAuth.JWT.Secret, "jwt-secret"},
		{"OAuth.ClientSecret", cfg.OAuth.ClientSecret, "oauth-secret"},
		{"Provider.ClientSecret", cfg.Provider.ClientSecret, "provider-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.OAuth.JWT.AccessTokenTTL != 60 {
		t.Errorf("defaultConfig AccessTokenTTL = %d, want 60", cfg.OAuth.JWT.AccessTokenTTL)
	}
	if len(cfg.OAuth.RedirectPrefixes) == 0 {
		t.Error("defaultConfig should list provider redirect prefixes")
	}
	if cfg.Stream.MaxDuration != 60 {
		t.Errorf("defaultConfig Stream.MaxDuration = %d, want 60", cfg.Stream.MaxDuration)
	}
}
