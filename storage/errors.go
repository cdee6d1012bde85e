package storage

import "errors"

// Sentinel errors returned by store implementations. Callers match them with errors.Is.
var (
	// ErrClientNotFound is returned when no client is registered under the given ID
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientSecret is returned when a client secret does not match the registration
	ErrInvalidClientSecret = errors.New("invalid client secret")

	// ErrCodeNotFound is returned when an authorization code is unknown or was deleted
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrCodeUsed is returned when an authorization code has already been redeemed
	ErrCodeUsed = errors.New("authorization code already used")

	// ErrCodeExpired is returned when an authorization code is past its expiry
	ErrCodeExpired = errors.New("authorization code expired")

	// ErrTokenNotFound is returned when an access token is unknown or was deleted
	ErrTokenNotFound = errors.New("access token not found")

	// ErrTokenExpired is returned when an access token is past its expiry
	ErrTokenExpired = errors.New("access token expired")

	// ErrSessionNotFound is returned when no client session exists for a state value
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRecord is returned when a record is nil or missing its key
	ErrInvalidRecord = errors.New("invalid record")
)
