package server

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/security"
	"github.com/giantswarm/oauth-pkce/storage"
)

// tokenIDLogLength is the number of characters of a code or token included in logs
const tokenIDLogLength = 8

// Server implements the OAuth 2.1 authorization code flow with mandatory PKCE.
type Server struct {
	registry   storage.ClientRegistry
	codeStore  storage.CodeStore
	tokenStore storage.TokenStore

	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation
	Logger          *slog.Logger
	Config          *Config

	tracer  trace.Tracer
	metrics *instrumentation.Metrics
}

// New creates a new OAuth server
func New(
	registry storage.ClientRegistry,
	codeStore storage.CodeStore,
	tokenStore storage.TokenStore,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("client registry is required")
	}
	if codeStore == nil {
		return nil, fmt.Errorf("code store is required")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applySecureDefaults(config, logger)

	return &Server{
		registry:   registry,
		codeStore:  codeStore,
		tokenStore: tokenStore,
		Config:     config,
		Logger:     logger,
		tracer:     noop.NewTracerProvider().Tracer(""),
	}, nil
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetInstrumentation enables engine spans and metrics
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.Instrumentation = inst
	if inst == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
		s.metrics = nil
		return
	}
	s.tracer = inst.Tracer("server")
	s.metrics = inst.Metrics()
}

// Registry returns the client registry the server authenticates against
func (s *Server) Registry() storage.ClientRegistry {
	return s.registry
}

func (s *Server) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

// generateRandomToken generates a cryptographically secure random token.
// oauth2.GenerateVerifier reads 32 bytes from crypto/rand and panics if the
// system randomness source fails.
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}
