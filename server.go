package oauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/giantswarm/oauth-pkce/security"
	"github.com/giantswarm/oauth-pkce/server"
	"github.com/giantswarm/oauth-pkce/storage"
	"github.com/giantswarm/oauth-pkce/storage/memory"
)

// Server assembles the authorization server: the protocol engines, the
// in-memory code and token store, auditing and per-IP rate limiting.
type Server struct {
	Engine      *server.Server
	Store       *memory.Store
	Auditor     *security.Auditor
	RateLimiter *security.RateLimiter
	Config      *Config

	logger *slog.Logger
}

// NewServer creates a new authorization server for the clients in registry
func NewServer(registry storage.ClientRegistry, config *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("client registry is required")
	}
	if config == nil {
		config = &Config{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	store := memory.NewWithConfig(memory.Config{
		Clock:           clock,
		Logger:          logger,
		CleanupInterval: config.CleanupInterval,
	})
	if config.Instrumentation != nil {
		store.SetInstrumentation(config.Instrumentation)
	}

	engine, err := server.New(registry, store, store, &server.Config{
		Issuer:               config.Issuer,
		AuthorizationCodeTTL: config.AuthorizationCodeTTL,
		AccessTokenTTL:       config.AccessTokenTTL,
		SupportedScopes:      config.SupportedScopes,
		TrustProxy:           config.Security.TrustProxy,
		TrustedProxyCount:    config.Security.TrustedProxyCount,
		Clock:                clock,
	}, logger)
	if err != nil {
		store.Stop()
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	auditor := security.NewAuditor(logger, config.Security.EnableAuditLogging)
	auditor.SetClock(clock)
	if config.Instrumentation != nil {
		auditor.SetInstrumentation(config.Instrumentation)
		engine.SetInstrumentation(config.Instrumentation)
	}
	engine.SetAuditor(auditor)

	s := &Server{
		Engine:  engine,
		Store:   store,
		Auditor: auditor,
		Config:  config,
		logger:  logger,
	}

	if config.RateLimit.Rate > 0 {
		burst := config.RateLimit.Burst
		if burst <= 0 {
			burst = config.RateLimit.Rate
		}
		maxEntries := config.RateLimit.MaxEntries
		if maxEntries == 0 {
			maxEntries = security.DefaultRateLimitMaxEntries
		}
		s.RateLimiter = security.NewRateLimiterWithConfig(config.RateLimit.Rate, burst, maxEntries, logger, clock)
	}

	return s, nil
}

// Shutdown stops background goroutines. Safe to call more than once.
func (s *Server) Shutdown(_ context.Context) error {
	s.Store.Stop()
	if s.RateLimiter != nil {
		s.RateLimiter.Stop()
	}
	return nil
}
