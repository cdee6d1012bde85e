package oauth

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/giantswarm/oauth-pkce/instrumentation"
)

// Endpoint paths served by the Handler
const (
	AuthorizationPath = "/authorize"
	ApprovalPath      = "/authorize/approve"
	TokenPath         = "/token"
	UserInfoPath      = "/userinfo"
	MetadataPath      = "/.well-known/oauth-authorization-server"
)

// Config holds the authorization server configuration
// Structured using composition for better organization and maintainability
type Config struct {
	// Issuer is the base URL of the authorization server, e.g. http://localhost:3001
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	// Default: 10 minutes
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is how long access tokens are valid
	// Default: 1 hour
	AccessTokenTTL time.Duration

	// SupportedScopes are advertised in the discovery document
	// Default: ["read", "write"]
	SupportedScopes []string

	// CleanupInterval enables the background sweep of expired codes and
	// tokens. Zero means expired records are only removed when accessed.
	CleanupInterval time.Duration

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// Security settings (secure by default)
	Security SecurityConfig

	// CORS settings for browser-based clients
	CORS CORSConfig

	// Clock drives every expiry decision. Default: real clock.
	Clock clockwork.Clock

	// Instrumentation enables spans and metrics (optional)
	Instrumentation *instrumentation.Instrumentation

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP on /authorize,
	// /authorize/approve and /token. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// MaxEntries bounds the number of tracked IPs. Default: 10000
	MaxEntries int
}

// SecurityConfig holds OAuth security settings (secure by default)
type SecurityConfig struct {
	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool

	// TrustedProxyCount is the number of proxies in front of the server.
	TrustedProxyCount int

	// EnableAuditLogging enables security audit logging.
	// Logs auth events, token operations, and violations (sensitive data hashed).
	EnableAuditLogging bool
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the endpoints from a
	// browser. "*" allows every origin. Empty disables CORS headers.
	AllowedOrigins []string

	// MaxAge is the preflight cache duration in seconds. Default: 3600
	MaxAge int
}
