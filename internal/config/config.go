// Package config loads process configuration for the oauth-pkce binaries
// from flags, OAUTH_PKCE_* environment variables, .env files and an
// optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable, e.g. OAUTH_PKCE_AUTHSERVER_ISSUER
const EnvPrefix = "OAUTH_PKCE"

// Config is the full process configuration
type Config struct {
	Log        Log        `mapstructure:"log"`
	AuthServer AuthServer `mapstructure:"authserver"`
	Client     Client     `mapstructure:"client"`
}

// Log configures the process logger
type Log struct {
	Format string `mapstructure:"format" validate:"oneof=json text"`
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// AuthServer configures the authorization server binary
type AuthServer struct {
	Addr              string        `mapstructure:"addr" validate:"required"`
	Issuer            string        `mapstructure:"issuer" validate:"required,url"`
	ClientsFile       string        `mapstructure:"clients_file" validate:"required"`
	RateLimit         int           `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst         int           `mapstructure:"rate_burst" validate:"gte=0"`
	TrustProxy        bool          `mapstructure:"trust_proxy"`
	TrustedProxyCount int           `mapstructure:"trusted_proxy_count" validate:"gte=1"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
	AuditLogging      bool          `mapstructure:"audit_logging"`
	Telemetry         bool          `mapstructure:"telemetry"`
	CORSOrigins       []string      `mapstructure:"cors_origins" validate:"dive,required"`
}

// Client configures the client application binary
type Client struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	AuthServerURL   string        `mapstructure:"auth_server_url" validate:"required,url"`
	ClientID        string        `mapstructure:"client_id" validate:"required"`
	ClientSecret    string        `mapstructure:"client_secret" validate:"required"`
	RedirectURI     string        `mapstructure:"redirect_uri" validate:"required,url"`
	Scope           string        `mapstructure:"scope" validate:"required"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gte=0"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gte=0"`
	Telemetry       bool          `mapstructure:"telemetry"`
}

var defaults = map[string]any{
	"log.format": "text",
	"log.level":  "info",

	"authserver.addr":                ":3001",
	"authserver.issuer":              "http://localhost:3001",
	"authserver.clients_file":        "clients.yaml",
	"authserver.rate_limit":          0,
	"authserver.rate_burst":          0,
	"authserver.trust_proxy":         false,
	"authserver.trusted_proxy_count": 1,
	"authserver.cleanup_interval":    time.Duration(0),
	"authserver.audit_logging":       true,
	"authserver.telemetry":           false,
	"authserver.cors_origins":        []string{},

	"client.addr":             ":3000",
	"client.auth_server_url":  "http://localhost:3001",
	"client.client_id":        "demo-client",
	"client.client_secret":    "",
	"client.redirect_uri":     "http://localhost:3000/callback",
	"client.scope":            "read",
	"client.http_timeout":     10 * time.Second,
	"client.cleanup_interval": time.Duration(0),
	"client.session_ttl":      10 * time.Minute,
	"client.telemetry":        false,
}

// NewViper returns a viper instance with every default registered and
// environment lookup enabled. authserver.issuer is read from
// OAUTH_PKCE_AUTHSERVER_ISSUER.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// LoadEnvFiles loads .env style files into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(expandHome(file)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes every setting of v
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(expandHome(configFile))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := newValidator().Struct(cfg.Log); err != nil {
		return nil, fmt.Errorf("invalid log config: %w", err)
	}
	return &cfg, nil
}

// ValidateAuthServer checks the authorization server settings
func (c *Config) ValidateAuthServer() error {
	if err := newValidator().Struct(c.AuthServer); err != nil {
		return fmt.Errorf("invalid authserver config: %w", err)
	}
	return nil
}

// ValidateClient checks the client application settings
func (c *Config) ValidateClient() error {
	if err := newValidator().Struct(c.Client); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}

// newValidator reports field names by their mapstructure key
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return validate
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	return path
}
