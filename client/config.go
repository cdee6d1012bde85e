package client

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/giantswarm/oauth-pkce/instrumentation"
)

const (
	// DefaultHTTPTimeout bounds every call to the authorization server
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultScope is requested when Config.Scope is empty
	DefaultScope = "read"
)

// Config configures a Client
type Config struct {
	// AuthServerURL is the base URL of the authorization server, e.g. http://localhost:3001
	AuthServerURL string

	// ClientID and ClientSecret identify the client at the token endpoint
	ClientID     string
	ClientSecret string

	// RedirectURI must exactly match a URI registered for ClientID
	RedirectURI string

	// Scope is the space-delimited scope requested. Default: "read"
	Scope string

	// HTTPTimeout bounds each outbound call. Default: 10 seconds
	HTTPTimeout time.Duration

	// HTTPClient overrides the client used for outbound calls (optional)
	HTTPClient *http.Client

	// Clock stamps session creation times. Default: real clock.
	Clock clockwork.Clock

	// Instrumentation enables spans and metrics (optional)
	Instrumentation *instrumentation.Instrumentation

	// Logger for flow events. Default: slog.Default().
	Logger *slog.Logger
}

func applyDefaults(config *Config) {
	if config.Scope == "" {
		config.Scope = DefaultScope
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = DefaultHTTPTimeout
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.HTTPTimeout}
	}
}
