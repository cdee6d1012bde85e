package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestOAuthError_Error(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		want        string
	}{
		{
			name:        "grant rejected",
			code:        ErrorCodeInvalidGrant,
			description: "invalid grant",
			want:        "invalid_grant: invalid grant",
		},
		{
			name:        "error with empty description",
			code:        ErrorCodeServerError,
			description: "",
			want:        "server_error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &OAuthError{
				Code:        tt.code,
				Description: tt.description,
			}
			if got := e.Error(); got != tt.want {
				t.Errorf("OAuthError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOAuthError_As(t *testing.T) {
	wrapped := fmt.Errorf("exchange: %w", ErrInvalidGrant("invalid grant"))

	var oauthErr *OAuthError
	if !errors.As(wrapped, &oauthErr) {
		t.Fatal("errors.As() should find the OAuth error")
	}
	if oauthErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", oauthErr.Status, http.StatusBadRequest)
	}
}

func TestNewOAuthError(t *testing.T) {
	err := NewOAuthError(ErrorCodeRateLimitExceeded, "slow down", http.StatusTooManyRequests)
	if err.Code != ErrorCodeRateLimitExceeded {
		t.Errorf("Code = %q, want %q", err.Code, ErrorCodeRateLimitExceeded)
	}
	if err.Description != "slow down" {
		t.Errorf("Description = %q, want %q", err.Description, "slow down")
	}
	if err.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want %d", err.Status, http.StatusTooManyRequests)
	}
}

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{"invalid_request", ErrorCodeInvalidRequest, "invalid_request"},
		{"invalid_grant", ErrorCodeInvalidGrant, "invalid_grant"},
		{"invalid_client", ErrorCodeInvalidClient, "invalid_client"},
		{"invalid_token", ErrorCodeInvalidToken, "invalid_token"},
		{"unsupported_grant_type", ErrorCodeUnsupportedGrantType, "unsupported_grant_type"},
		{"unsupported_response_type", ErrorCodeUnsupportedResponseType, "unsupported_response_type"},
		{"server_error", ErrorCodeServerError, "server_error"},
		{"access_denied", ErrorCodeAccessDenied, "access_denied"},
		{"invalid_redirect_uri", ErrorCodeInvalidRedirectURI, "invalid_redirect_uri"},
		{"invalid_state", ErrorCodeInvalidState, "invalid_state"},
		{"rate_limit_exceeded", ErrorCodeRateLimitExceeded, "rate_limit_exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("constant %s = %q, want %q", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name           string
		constructor    func(string) *OAuthError
		expectedCode   string
		expectedStatus int
	}{
		{"ErrInvalidRequest", ErrInvalidRequest, ErrorCodeInvalidRequest, http.StatusBadRequest},
		{"ErrInvalidGrant", ErrInvalidGrant, ErrorCodeInvalidGrant, http.StatusBadRequest},
		{"ErrInvalidClient", ErrInvalidClient, ErrorCodeInvalidClient, http.StatusUnauthorized},
		{"ErrInvalidToken", ErrInvalidToken, ErrorCodeInvalidToken, http.StatusUnauthorized},
		{"ErrUnsupportedGrantType", ErrUnsupportedGrantType, ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{"ErrServerError", ErrServerError, ErrorCodeServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := "test description"
			err := tt.constructor(desc)
			if err.Code != tt.expectedCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.expectedCode)
			}
			if err.Description != desc {
				t.Errorf("Description = %q, want %q", err.Description, desc)
			}
			if err.Status != tt.expectedStatus {
				t.Errorf("Status = %d, want %d", err.Status, tt.expectedStatus)
			}
		})
	}
}
