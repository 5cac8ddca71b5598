package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Alexa gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Provider  ProviderConfig  `yaml:"provider"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Stream    StreamConfig    `yaml:"stream"`
	Devices   DevicesConfig   `yaml:"devices"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	// TopicPrefix roots every gateway topic, e.g. "alexagw/state/<point>".
	TopicPrefix string `yaml:"topic_prefix"`

	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
// Write is applied to everything except the stream endpoint, which is bounded
// by stream.max_duration instead.
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

// WebSocketConfig contains settings for the local event feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OAuthConfig configures the local OAuth2 endpoint the skill links against.
type OAuthConfig struct {
	// ClientID and ClientSecret are the credentials entered in the skill's
	// account linking settings.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// Scope is the only scope the authorize endpoint accepts.
	Scope string `yaml:"scope"`

	// RedirectPrefixes lists the allowed redirect_uri prefixes
	// (the provider's account linking callback URLs).
	RedirectPrefixes []string `yaml:"redirect_prefixes"`

	// CodeTTL is how long an authorization code stays redeemable (seconds).
	CodeTTL int `yaml:"code_ttl"`

	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains token signing settings.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`  // minutes
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"` // minutes
}

// ProviderConfig configures the voice-assistant provider side: the token
// endpoint used to exchange AcceptGrant codes and refresh the provider token,
// and the event gateway proactive events are posted to.
type ProviderConfig struct {
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	TokenURL        string `yaml:"token_url"`
	EventGatewayURL string `yaml:"event_gateway_url"`
	Timeout         int    `yaml:"timeout"` // seconds
}

// GatewayConfig contains directive gateway behaviour settings.
type GatewayConfig struct {
	// PublicURL is the externally reachable base URL used to build camera
	// stream and snapshot URIs, e.g. "https://home.example.com".
	PublicURL string `yaml:"public_url"`

	// ReportDelay coalesces state changes per endpoint before a ChangeReport
	// is sent (seconds).
	ReportDelay int `yaml:"report_delay"`

	// ValidateSchema enables JSON Schema validation of inbound directives.
	ValidateSchema bool `yaml:"validate_schema"`
}

// StreamConfig contains camera transcoding settings.
type StreamConfig struct {
	FFmpegPath      string `yaml:"ffmpeg_path"`
	MaxDuration     int    `yaml:"max_duration"`     // seconds a transcode may run
	IdleTimeout     int    `yaml:"idle_timeout"`     // seconds to wait for a client to attach
	GracefulTimeout int    `yaml:"graceful_timeout"` // seconds between SIGTERM and SIGKILL
	ChunkSize       int    `yaml:"chunk_size"`       // bytes per flushed chunk
}

// DevicesConfig locates the device catalog.
type DevicesConfig struct {
	Catalog string `yaml:"catalog"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ALEXAGW_SECTION_KEY
// For example: ALEXAGW_DATABASE_PATH, ALEXAGW_JWT_SECRET
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
		Database: DatabaseConfig{
			Path:        "./data/alexagw.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			TopicPrefix: "alexagw",
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "alexa-gateway",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8443,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		OAuth: OAuthConfig{
			Scope: "iobroker",
			RedirectPrefixes: []string{
				"https://layla.amazon.com/api/skill/link/",
				"https://pitangui.amazon.com/api/skill/link/",
				"https://alexa.amazon.co.jp/api/skill/link/",
			},
			CodeTTL: 300,
			JWT: JWTConfig{
				AccessTokenTTL:  60,
				RefreshTokenTTL: 525600,
			},
		},
		Provider: ProviderConfig{
			TokenURL:        "https://api.amazon.com/auth/o2/token",
			EventGatewayURL: "https://api.eu.amazonalexa.com/v3/events",
			Timeout:         10,
		},
		Gateway: GatewayConfig{
			ReportDelay:    2,
			ValidateSchema: true,
		},
		Stream: StreamConfig{
			FFmpegPath:      "/usr/bin/ffmpeg",
			MaxDuration:     60,
			IdleTimeout:     10,
			GracefulTimeout: 2,
			ChunkSize:       32 * 1024,
		},
		Devices: DevicesConfig{
			Catalog: "configs/devices.yaml",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ALEXAGW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALEXAGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ALEXAGW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ALEXAGW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ALEXAGW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("ALEXAGW_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ALEXAGW_PUBLIC_URL"); v != "" {
		cfg.Gateway.PublicURL = v
	}

	// Secrets (IMPORTANT: always set these from the environment in production)
	if v := os.Getenv("ALEXAGW_JWT_SECRET"); v != "" {
		cfg.OAuth.JWT.Secret = v
	}
	if v := os.Getenv("ALEXAGW_OAUTH_CLIENT_SECRET"); v != "" {
		cfg.OAuth.ClientSecret = v
	}
	if v := os.Getenv("ALEXAGW_PROVIDER_CLIENT_SECRET"); v != "" {
		cfg.Provider.ClientSecret = v
	}
}

// minJWTSecretLength is the shortest accepted token signing secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, "mqtt.topic_prefix must be non-empty and free of wildcards")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Anyone holding the signing secret can mint bearer tokens that unlock
	// every linked device, so an empty or short secret is refused.
	if c.OAuth.JWT.Secret == "" {
		errs = append(errs, "oauth.jwt.secret is required (set ALEXAGW_JWT_SECRET environment variable)")
	} else if len(c.OAuth.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "oauth.jwt.secret must be at least 32 characters")
	}
	if c.OAuth.ClientID == "" {
		errs = append(errs, "oauth.client_id is required")
	}
	if c.OAuth.ClientSecret == "" {
		errs = append(errs, "oauth.client_secret is required (set ALEXAGW_OAUTH_CLIENT_SECRET environment variable)")
	}
	if len(c.OAuth.RedirectPrefixes) == 0 {
		errs = append(errs, "oauth.redirect_prefixes must list at least one callback prefix")
	}
	if c.OAuth.JWT.AccessTokenTTL <= 0 || c.OAuth.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, "oauth.jwt token TTLs must be positive")
	}

	if c.Stream.MaxDuration <= 0 {
		errs = append(errs, "stream.max_duration must be positive")
	}
	if c.Stream.IdleTimeout <= 0 {
		errs = append(errs, "stream.idle_timeout must be positive")
	}

	if c.Devices.Catalog == "" {
		errs = append(errs, "devices.catalog is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// ReportDelay returns the ChangeReport coalescing window.
func (c *Config) ReportDelay() time.Duration {
	return time.Duration(c.Gateway.ReportDelay) * time.Second
}
