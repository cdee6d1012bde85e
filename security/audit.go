package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth-pkce/instrumentation"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger          *slog.Logger
	enabled         bool
	clock           clockwork.Clock
	instrumentation *instrumentation.Instrumentation
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
		clock:   clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock used to timestamp events
func (a *Auditor) SetClock(clock clockwork.Clock) {
	if clock != nil {
		a.clock = clock
	}
}

// SetInstrumentation enables the oauth.audit.events.total counter
func (a *Auditor) SetInstrumentation(inst *instrumentation.Instrumentation) {
	a.instrumentation = inst
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	ClientID  string
	IPAddress string
	RequestID string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII. The request ID is taken
// from ctx when the event does not carry one, and the event is added to the
// span in ctx.
func (a *Auditor) LogEvent(ctx context.Context, event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = a.clock.Now()
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"request_id", event.RequestID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)

	trace.SpanFromContext(ctx).AddEvent("security_audit",
		trace.WithAttributes(attribute.String(instrumentation.AttrAuditEventType, event.Type)))

	if a.instrumentation != nil {
		a.instrumentation.Metrics().RecordAuditEvent(ctx, event.Type)
	}
}

// LogAuthorizationRequested logs a consent prompt being shown
func (a *Auditor) LogAuthorizationRequested(ctx context.Context, clientID, ipAddress, scope string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationRequested,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogAuthorizationRejected logs an /authorize request failing validation
func (a *Auditor) LogAuthorizationRejected(ctx context.Context, clientID, ipAddress, errorCode string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationRejected,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"error": errorCode,
		},
	})
}

// LogAuthorizationDenied logs the resource owner denying consent
func (a *Auditor) LogAuthorizationDenied(ctx context.Context, clientID, ipAddress string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationDenied,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogAuthorizationCodeIssued logs a newly minted authorization code
func (a *Auditor) LogAuthorizationCodeIssued(ctx context.Context, userID, clientID, ipAddress, scope string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationCodeIssued,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogInvalidRedirect logs a redirect_uri that is not registered for the client
func (a *Auditor) LogInvalidRedirect(ctx context.Context, clientID, ipAddress, redirectURI string) {
	a.LogEvent(ctx, Event{
		Type:      EventInvalidRedirect,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"redirect_uri": redirectURI,
		},
	})
}

// LogTokenIssued logs when a token is issued
func (a *Auditor) LogTokenIssued(ctx context.Context, userID, clientID, ipAddress, scope string) {
	a.LogEvent(ctx, Event{
		Type:      EventTokenIssued,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"scope": scope,
		},
	})
}

// LogCodeReuse logs a redemption attempt on an already used authorization code
func (a *Auditor) LogCodeReuse(ctx context.Context, clientID, ipAddress string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationCodeReuseDetected,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"severity": "high",
		},
	})
}

// LogCodeExpired logs a redemption attempt on an expired authorization code
func (a *Auditor) LogCodeExpired(ctx context.Context, clientID, ipAddress string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationCodeExpired,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogCodeBindingMismatch logs a code presented with a different client_id or redirect_uri
func (a *Auditor) LogCodeBindingMismatch(ctx context.Context, clientID, ipAddress, field string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthorizationCodeBindingMismatch,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"field": field,
		},
	})
}

// LogPKCEFailure logs a missing or mismatching code_verifier
func (a *Auditor) LogPKCEFailure(ctx context.Context, clientID, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Type:      EventPKCEValidationFailed,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogAuthFailure logs an authentication failure
func (a *Auditor) LogAuthFailure(ctx context.Context, userID, clientID, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Type:      EventAuthFailure,
		UserID:    userID,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogInvalidBearerToken logs a rejected bearer token
func (a *Auditor) LogInvalidBearerToken(ctx context.Context, ipAddress, reason string) {
	a.LogEvent(ctx, Event{
		Type:      EventInvalidBearerToken,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ctx context.Context, ipAddress, endpoint string) {
	a.LogEvent(ctx, Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details: map[string]any{
			"endpoint": endpoint,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
