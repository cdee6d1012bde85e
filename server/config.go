package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/giantswarm/oauth-pkce/internal/util"
)

const (
	// DefaultAuthorizationCodeTTL is how long an issued code can be redeemed
	DefaultAuthorizationCodeTTL = 10 * time.Minute

	// DefaultAccessTokenTTL is how long an issued access token is valid
	DefaultAccessTokenTTL = time.Hour

	// DefaultScope is used when an authorization request names no scope
	DefaultScope = "read"

	// DefaultChallengePreviewLength is how many characters of the code
	// challenge the consent prompt shows
	DefaultChallengePreviewLength = 20
)

// User is the fixed resource owner every approved request is issued for
type User struct {
	Subject string
	Name    string
	Email   string
}

// DefaultUser is the demo resource owner
var DefaultUser = User{
	Subject: "1234567890",
	Name:    "Demo User",
	Email:   "demo@example.com",
}

// Config holds OAuth server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL)
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	// Default: 10 minutes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is how long access tokens are valid
	// Default: 1 hour
	AccessTokenTTL time.Duration

	// DefaultScope is the effective scope when a request omits scope
	// Default: "read"
	DefaultScope string

	// SupportedScopes is advertised in the discovery document.
	// Scopes are echoed, not enforced.
	// Default: ["read", "write"]
	SupportedScopes []string

	// ChallengePreviewLength is the length of the code challenge preview
	// shown on the consent prompt. Default: 20
	ChallengePreviewLength int

	// User is the resource owner codes and tokens are issued for.
	// Default: DefaultUser
	User User

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers
	// WARNING: Only enable if behind a trusted reverse proxy
	// Default: false
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of this server
	// Default: 1
	TrustedProxyCount int

	// Clock drives code and token expiry. Default: real clock.
	Clock clockwork.Clock
}

// applySecureDefaults applies secure-by-default configuration values
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)

	if config.DefaultScope == "" {
		config.DefaultScope = DefaultScope
	}
	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = []string{"read", "write"}
	}
	if config.ChallengePreviewLength <= 0 {
		config.ChallengePreviewLength = DefaultChallengePreviewLength
	}
	if config.User.Subject == "" {
		config.User = DefaultUser
	}
	if config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	logSecurityWarnings(config, logger)

	return config
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL <= 0 {
		config.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.TrustProxy {
		logger.Warn("⚠️  SECURITY NOTICE: Trusting proxy headers",
			"risk", "IP spoofing if proxy is not properly configured",
			"recommendation", "Only enable behind trusted reverse proxies",
			"config", "TrustedProxyCount should match your proxy chain length")
	}
	if config.AuthorizationCodeTTL > DefaultAuthorizationCodeTTL {
		logger.Warn("⚠️  SECURITY WARNING: Long-lived authorization codes",
			"ttl", config.AuthorizationCodeTTL.String(),
			"recommendation", "Keep AuthorizationCodeTTL at or below 10 minutes",
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.2")
	}
	if config.Issuer != "" && strings.HasPrefix(config.Issuer, "http://") && !util.IsLoopbackURL(config.Issuer) {
		logger.Warn("⚠️  SECURITY WARNING: Issuer is not served over HTTPS",
			"issuer", config.Issuer,
			"risk", "Codes and tokens can be intercepted in transit")
	}
}
