package storage

import (
	"context"
	"slices"
	"time"
)

// ClientRegistry resolves registered OAuth clients. Registrations are
// immutable for the lifetime of the process.
type ClientRegistry interface {
	// GetClient returns the registration for clientID or ErrClientNotFound
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret checks clientSecret against the registration in
	// constant time. Returns ErrClientNotFound or ErrInvalidClientSecret.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error
}

// RedeemCheck runs inside RedeemAuthorizationCode while the store lock is
// held, after the unused and unexpired checks passed. Returning an error
// aborts the redemption and leaves the record untouched.
type RedeemCheck func(code *AuthorizationCode) error

// CodeStore holds issued authorization codes.
type CodeStore interface {
	// SaveAuthorizationCode stores a newly issued code
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// GetAuthorizationCode returns a copy of a code record without modifying it
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// RedeemAuthorizationCode atomically redeems a code:
	//   - unknown code: ErrCodeNotFound
	//   - already used: record deleted, ErrCodeUsed
	//   - expired (now >= ExpiresAt): record deleted, ErrCodeExpired
	//   - check returns an error: record untouched, that error returned
	//   - otherwise: record marked used and retained, copy returned
	// Concurrent redemptions of one code yield exactly one success.
	RedeemAuthorizationCode(ctx context.Context, code string, check RedeemCheck) (*AuthorizationCode, error)
}

// TokenStore holds issued access tokens.
type TokenStore interface {
	// SaveAccessToken stores a newly issued access token
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// ValidateAccessToken returns a copy of the token record. An expired token
	// is deleted on access and reported as ErrTokenExpired; unknown tokens
	// return ErrTokenNotFound.
	ValidateAccessToken(ctx context.Context, token string) (*AccessToken, error)
}

// SessionStore holds the client's pending authorization sessions keyed by state.
type SessionStore interface {
	// SaveSession stores a session under its state value
	SaveSession(ctx context.Context, session *Session) error

	// ConsumeSession atomically retrieves and deletes the session for state.
	// A state can be consumed exactly once; later calls return ErrSessionNotFound.
	ConsumeSession(ctx context.Context, state string) (*Session, error)
}

// Client represents a registered OAuth client
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash
	RedirectURIs     []string
	DisplayName      string
}

// HasRedirectURI reports whether uri is an exact member of the registered
// redirect URIs. No normalization, prefix or wildcard matching is applied.
func (c *Client) HasRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

// AuthorizationCode represents an issued authorization code
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	UserID              string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Used                bool // false -> true exactly once, never reverts
}

// AccessToken represents an issued opaque bearer token
type AccessToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is the client-side record of a started authorization flow
type Session struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
	CreatedAt     time.Time
}
