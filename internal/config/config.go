package config

import (
	"strings"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// PathPrefix is prepended to every route, HTTP and websocket alike,
	// e.g. "/.proxy" when running behind the activity proxy.
	PathPrefix string `mapstructure:"path_prefix" yaml:"path_prefix"`

	ClientID         string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret     string `mapstructure:"client_secret" yaml:"client_secret"`
	ProviderTokenURL string `mapstructure:"provider_token_url" yaml:"provider_token_url"`
	ProviderUserURL  string `mapstructure:"provider_user_url" yaml:"provider_user_url"`

	JWTSecret     string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience   string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	CredentialTTL time.Duration `mapstructure:"credential_ttl" yaml:"credential_ttl"`

	ActionVariants int `mapstructure:"action_variants" yaml:"action_variants"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3001",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		MaxMessageBytes:   1 << 16,
		LogLevel:          "info",
		LogFormat:         "console",
		ProviderTokenURL:  "https://discord.com/api/oauth2/token",
		ProviderUserURL:   "https://discord.com/api/users/@me",
		JWTIssuer:         "oinkroom",
		JWTAudience:       "oinkroom",
		ActionVariants:    4,
	}
}

// Route joins the configured prefix with path.
func (c Config) Route(path string) string {
	prefix := strings.TrimRight(c.PathPrefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix + path
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.HandshakeTimeout != 0 {
		c.HandshakeTimeout = other.HandshakeTimeout
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.PathPrefix != "" {
		c.PathPrefix = other.PathPrefix
	}
	if other.ClientID != "" {
		c.ClientID = other.ClientID
	}
	if other.ClientSecret != "" {
		c.ClientSecret = other.ClientSecret
	}
	if other.ProviderTokenURL != "" {
		c.ProviderTokenURL = other.ProviderTokenURL
	}
	if other.ProviderUserURL != "" {
		c.ProviderUserURL = other.ProviderUserURL
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.CredentialTTL != 0 {
		c.CredentialTTL = other.CredentialTTL
	}
	if other.ActionVariants != 0 {
		c.ActionVariants = other.ActionVariants
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "jwt_secret")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}
	return nil
}

// MissingError lists required settings that were left empty.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required config: " + strings.Join(e.Keys, ", ")
}
