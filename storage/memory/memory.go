package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/internal/util"
	"github.com/giantswarm/oauth-pkce/security"
	"github.com/giantswarm/oauth-pkce/storage"
)

const (
	// tokenIDLogLength is the number of characters of a code, token or state
	// included in log lines
	tokenIDLogLength = 8

	storageType = "memory"
)

// Config configures a Store
type Config struct {
	// Clock drives every expiry decision. Default: real clock.
	Clock clockwork.Clock

	// Logger for store events. Default: slog.Default().
	Logger *slog.Logger

	// CleanupInterval enables the background sweeper when > 0.
	// Default: 0 (lazy expiry only).
	CleanupInterval time.Duration

	// SessionTTL is the age after which the sweeper evicts client sessions.
	// Ignored when CleanupInterval is 0; 0 keeps sessions until consumed.
	SessionTTL time.Duration
}

// Store is an in-memory implementation of the code, token and session stores.
type Store struct {
	mu sync.Mutex

	authCodes    map[string]*storage.AuthorizationCode
	accessTokens map[string]*storage.AccessToken
	sessions     map[string]*storage.Session

	clock      clockwork.Clock
	sessionTTL time.Duration
	logger     *slog.Logger

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// read lock-free by the storage size gauges
	codesCount    atomic.Int64
	tokensCount   atomic.Int64
	sessionsCount atomic.Int64

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

var (
	_ storage.CodeStore    = (*Store)(nil)
	_ storage.TokenStore   = (*Store)(nil)
	_ storage.SessionStore = (*Store)(nil)
)

// New creates a store with the real clock and lazy expiry only
func New() *Store {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a store. If cfg.CleanupInterval > 0 the sweeper
// goroutine is started and must be stopped with Stop.
func NewWithConfig(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		authCodes:       make(map[string]*storage.AuthorizationCode),
		accessTokens:    make(map[string]*storage.AccessToken),
		sessions:        make(map[string]*storage.Session),
		clock:           cfg.Clock,
		sessionTTL:      cfg.SessionTTL,
		logger:          cfg.Logger,
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	}

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation enables storage spans, operation metrics and size gauges.
// The gauges are registered once per call, so call it once before serving.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	logger := s.logger
	s.mu.Unlock()

	if inst == nil {
		return
	}

	err := inst.RegisterStorageSizeCallbacks(
		func() int64 { return s.codesCount.Load() },
		func() int64 { return s.tokensCount.Load() },
		func() int64 { return s.sessionsCount.Load() },
	)
	if err != nil {
		logger.Warn("Failed to register storage size callbacks", "error", err)
	}
}

// Stop stops the sweeper goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveAuthorizationCode saves an issued authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()
	defer s.recordStorageOperation(ctx, span, "save_authorization_code", &err, time.Now())

	if code == nil || code.Code == "" {
		return fmt.Errorf("%w: authorization code", storage.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	codeCopy := *code
	s.authCodes[code.Code] = &codeCopy
	s.codesCount.Store(int64(len(s.authCodes)))

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code.Code, tokenIDLogLength),
		"client_id", code.ClientID)
	return nil
}

// GetAuthorizationCode returns a copy of a code record without modifying it.
// Expired and used codes are returned as stored; use RedeemAuthorizationCode
// for exchange.
func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrCodeNotFound
	}

	codeCopy := *authCode
	return &codeCopy, nil
}

// RedeemAuthorizationCode atomically checks and marks a code as used.
// See storage.CodeStore for the exact outcome of each case.
//
// SECURITY: only ONE concurrent caller can observe Used == false; every other
// caller sees the used record (and deletes it) or finds it already deleted.
func (s *Store) RedeemAuthorizationCode(ctx context.Context, code string, check storage.RedeemCheck) (redeemed *storage.AuthorizationCode, err error) {
	ctx, span := s.startStorageSpan(ctx, "redeem_authorization_code")
	defer span.End()
	defer s.recordStorageOperation(ctx, span, "redeem_authorization_code", &err, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		return nil, storage.ErrCodeNotFound
	}

	if authCode.Used {
		s.deleteCodeLocked(code)
		s.logger.Warn("Authorization code reuse detected, record deleted",
			"code_prefix", util.SafeTruncate(code, tokenIDLogLength),
			"client_id", authCode.ClientID)
		// returned so the caller can attribute the reuse attempt
		reused := *authCode
		return &reused, storage.ErrCodeUsed
	}

	if security.IsExpired(s.clock, authCode.ExpiresAt) {
		s.deleteCodeLocked(code)
		s.logger.Debug("Expired authorization code presented, record deleted",
			"code_prefix", util.SafeTruncate(code, tokenIDLogLength))
		return nil, storage.ErrCodeExpired
	}

	if check != nil {
		candidate := *authCode
		if err := check(&candidate); err != nil {
			return nil, err
		}
	}

	authCode.Used = true
	s.logger.Debug("Marked authorization code as used",
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength))

	codeCopy := *authCode
	return &codeCopy, nil
}

func (s *Store) deleteCodeLocked(code string) {
	delete(s.authCodes, code)
	s.codesCount.Store(int64(len(s.authCodes)))
}

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveAccessToken saves an issued access token
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_access_token")
	defer span.End()
	defer s.recordStorageOperation(ctx, span, "save_access_token", &err, time.Now())

	if token == nil || token.Token == "" {
		return fmt.Errorf("%w: access token", storage.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCopy := *token
	s.accessTokens[token.Token] = &tokenCopy
	s.tokensCount.Store(int64(len(s.accessTokens)))

	s.logger.Debug("Saved access token",
		"token_prefix", util.SafeTruncate(token.Token, tokenIDLogLength),
		"client_id", token.ClientID,
		"expires_at", token.ExpiresAt)
	return nil
}

// ValidateAccessToken returns a copy of the token record, deleting it if expired
func (s *Store) ValidateAccessToken(ctx context.Context, token string) (validated *storage.AccessToken, err error) {
	ctx, span := s.startStorageSpan(ctx, "validate_access_token")
	defer span.End()
	defer s.recordStorageOperation(ctx, span, "validate_access_token", &err, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.accessTokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}

	if security.IsExpired(s.clock, record.ExpiresAt) {
		delete(s.accessTokens, token)
		s.tokensCount.Store(int64(len(s.accessTokens)))
		s.logger.Debug("Expired access token presented, record deleted",
			"token_prefix", util.SafeTruncate(token, tokenIDLogLength))
		return nil, storage.ErrTokenExpired
	}

	tokenCopy := *record
	return &tokenCopy, nil
}

// ============================================================
// SessionStore Implementation
// ============================================================

// SaveSession saves a client session under its state value
func (s *Store) SaveSession(ctx context.Context, session *storage.Session) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_session")
	defer span.End()
	defer s.recordStorageOperation(ctx, span, "save_session", &err, time.Now())

	if session == nil || session.State == "" {
		return fmt.Errorf("%w: session", storage.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessionCopy := *session
	if sessionCopy.CreatedAt.IsZero() {
		sessionCopy.CreatedAt = s.clock.Now()
	}
	s.sessions[session.State] = &sessionCopy
	s.sessionsCount.Store(int64(len(s.sessions)))

	s.logger.Debug("Saved session", "state_prefix", util.SafeTruncate(session.State, tokenIDLogLength))
	return nil
}

// ConsumeSession atomically retrieves and deletes a session
func (s *Store) ConsumeSession(ctx context.Context, state string) (consumed *storage.Session, err error) {
	ctx, span := s.startStorageSpan(ctx, "consume_session")
	defer span.End()
	defer s.recordStorageOperation(ctx, span, "consume_session", &err, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[state]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}

	delete(s.sessions, state)
	s.sessionsCount.Store(int64(len(s.sessions)))

	return session, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := s.clock.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.Chan():
			s.cleanup()
		}
	}
}

// cleanup evicts expired codes, expired tokens and stale sessions
func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	codes, tokens, sessions := 0, 0, 0

	for code, authCode := range s.authCodes {
		if security.IsExpired(s.clock, authCode.ExpiresAt) {
			delete(s.authCodes, code)
			codes++
		}
	}

	for token, record := range s.accessTokens {
		if security.IsExpired(s.clock, record.ExpiresAt) {
			delete(s.accessTokens, token)
			tokens++
		}
	}

	if s.sessionTTL > 0 {
		for state, session := range s.sessions {
			if now.Sub(session.CreatedAt) >= s.sessionTTL {
				delete(s.sessions, state)
				sessions++
			}
		}
	}

	s.codesCount.Store(int64(len(s.authCodes)))
	s.tokensCount.Store(int64(len(s.accessTokens)))
	s.sessionsCount.Store(int64(len(s.sessions)))

	if codes+tokens+sessions > 0 {
		s.logger.Debug("Cleaned up expired entries",
			"codes", codes,
			"tokens", tokens,
			"sessions", sessions)
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// telemetry returns the instrumentation and tracer set by SetInstrumentation
func (s *Store) telemetry() (*instrumentation.Instrumentation, trace.Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrumentation, s.tracer
}

// startStorageSpan starts a span for a storage operation. Without
// instrumentation it returns a non-recording span that is safe to End.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	_, tracer := s.telemetry()
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}

	ctx, span := tracer.Start(ctx, "storage."+operation)
	instrumentation.AddStorageAttributes(span, operation, storageType)
	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status.
// errp is read when the deferred call runs so named results are observed.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, errp *error, startTime time.Time) {
	inst, _ := s.telemetry()
	if inst == nil {
		return
	}

	var err error
	if errp != nil {
		err = *errp
	}

	result := "success"
	if err != nil {
		result = "error"
		instrumentation.RecordError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrStorageResult, result))

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000.0
	inst.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
