package security

// Event type constants for security audit logging.
const (
	// Authorization endpoint events

	// EventAuthorizationRequested is logged when a valid authorization request renders a consent prompt
	EventAuthorizationRequested = "authorization_requested"

	// EventAuthorizationRejected is logged when /authorize rejects a request before consent
	EventAuthorizationRejected = "authorization_rejected"

	// EventAuthorizationDenied is logged when the resource owner denies consent
	EventAuthorizationDenied = "authorization_denied"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventInvalidRedirect is logged when a redirect_uri is not registered for the client
	EventInvalidRedirect = "invalid_redirect"

	// Token endpoint events

	// EventTokenIssued is logged when a new access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventAuthorizationCodeReuseDetected is logged when a used authorization code is presented again
	EventAuthorizationCodeReuseDetected = "authorization_code_reuse_detected"

	// EventAuthorizationCodeExpired is logged when an expired authorization code is presented
	EventAuthorizationCodeExpired = "authorization_code_expired"

	// EventAuthorizationCodeBindingMismatch is logged when client_id or redirect_uri differ from issuance
	EventAuthorizationCodeBindingMismatch = "authorization_code_binding_mismatch"

	// EventPKCEValidationFailed is logged when code_verifier is missing or does not match
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventAuthFailure is logged when client authentication fails
	EventAuthFailure = "auth_failure"

	// Resource events

	// EventInvalidBearerToken is logged when a protected resource rejects a bearer token
	EventInvalidBearerToken = "invalid_bearer_token" //nolint:gosec // G101: event type name, not a credential

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
