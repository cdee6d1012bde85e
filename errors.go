package oauth

import (
	"github.com/giantswarm/oauth-pkce/server"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest          = server.ErrorCodeInvalidRequest
	ErrorCodeInvalidGrant            = server.ErrorCodeInvalidGrant
	ErrorCodeInvalidClient           = server.ErrorCodeInvalidClient
	ErrorCodeInvalidToken            = server.ErrorCodeInvalidToken
	ErrorCodeUnsupportedGrantType    = server.ErrorCodeUnsupportedGrantType
	ErrorCodeUnsupportedResponseType = server.ErrorCodeUnsupportedResponseType
	ErrorCodeServerError             = server.ErrorCodeServerError
	ErrorCodeAccessDenied            = server.ErrorCodeAccessDenied
	ErrorCodeInvalidRedirectURI      = server.ErrorCodeInvalidRedirectURI
	ErrorCodeInvalidState            = server.ErrorCodeInvalidState
	ErrorCodeRateLimitExceeded       = server.ErrorCodeRateLimitExceeded
)

// OAuthError represents an OAuth 2.0 error response
type OAuthError = server.Error

// NewOAuthError creates a new OAuth error
func NewOAuthError(code, description string, status int) *OAuthError {
	return server.NewError(code, description, status)
}

// Common OAuth errors as reusable constructors
var (
	// ErrInvalidRequest indicates the request is malformed or missing required parameters
	ErrInvalidRequest = server.ErrInvalidRequest

	// ErrInvalidGrant indicates the authorization code is invalid, used or expired
	ErrInvalidGrant = server.ErrInvalidGrant

	// ErrInvalidClient indicates client authentication failed
	ErrInvalidClient = server.ErrInvalidClient

	// ErrInvalidToken indicates the access token is invalid or expired
	ErrInvalidToken = server.ErrInvalidToken

	// ErrUnsupportedGrantType indicates the grant type is not supported
	ErrUnsupportedGrantType = server.ErrUnsupportedGrantType

	// ErrServerError indicates an internal server error occurred
	ErrServerError = server.ErrServerError
)
