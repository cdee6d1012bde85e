package server

import (
	"context"
	"errors"
	"strings"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/internal/util"
	"github.com/giantswarm/oauth-pkce/storage"
)

// Principal is the identity and scope a valid bearer token grants
type Principal struct {
	Subject  string
	Name     string
	Email    string
	Scope    string
	ClientID string
}

// ValidateAccessToken looks up an access token. Expired tokens are deleted on
// access, so a second call for the same token reports it as unknown.
func (s *Server) ValidateAccessToken(ctx context.Context, token string) (*storage.AccessToken, error) {
	if token == "" {
		return nil, ErrInvalidToken("missing access token")
	}

	accessToken, err := s.tokenStore.ValidateAccessToken(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenExpired):
			s.recordTokenValidation(ctx, "expired")
			return nil, ErrInvalidToken("access token expired")
		case errors.Is(err, storage.ErrTokenNotFound):
			s.recordTokenValidation(ctx, "unknown")
			return nil, ErrInvalidToken("unknown access token")
		default:
			s.Logger.Error("Failed to validate access token",
				"token_prefix", util.SafeTruncate(token, tokenIDLogLength),
				"error", err)
			return nil, ErrServerError("failed to validate access token")
		}
	}

	s.recordTokenValidation(ctx, "valid")
	return accessToken, nil
}

// AuthorizeRequest validates an Authorization header of the form
// "Bearer <token>" and returns the principal bound to the token.
// Every failure is invalid_token with status 401.
func (s *Server) AuthorizeRequest(ctx context.Context, authorizationHeader, clientIP string) (*Principal, error) {
	ctx, span := s.startSpan(ctx, "server.authorize_request")
	defer span.End()

	token, ok := parseBearer(authorizationHeader)
	if !ok {
		s.recordTokenValidation(ctx, "missing")
		if s.Auditor != nil {
			s.Auditor.LogInvalidBearerToken(ctx, clientIP, "missing_bearer_token")
		}
		oauthErr := ErrInvalidToken("missing or malformed bearer token")
		instrumentation.AddOAuthErrorAttributes(span, oauthErr.Code, oauthErr.Description)
		return nil, oauthErr
	}

	accessToken, err := s.ValidateAccessToken(ctx, token)
	if err != nil {
		var oauthErr *Error
		if errors.As(err, &oauthErr) {
			instrumentation.AddOAuthErrorAttributes(span, oauthErr.Code, oauthErr.Description)
			if s.Auditor != nil && oauthErr.Code == ErrorCodeInvalidToken {
				s.Auditor.LogInvalidBearerToken(ctx, clientIP, oauthErr.Description)
			}
		}
		return nil, err
	}

	instrumentation.AddOAuthFlowAttributes(span, accessToken.ClientID, accessToken.Scope)
	instrumentation.SetSpanSuccess(span)

	user := s.Config.User
	return &Principal{
		Subject:  user.Subject,
		Name:     user.Name,
		Email:    user.Email,
		Scope:    accessToken.Scope,
		ClientID: accessToken.ClientID,
	}, nil
}

// parseBearer extracts the token from "Bearer <token>". The remainder after
// the single separating space is the token verbatim; surrounding whitespace
// is not stripped, so a padded token never matches a stored one.
func parseBearer(header string) (string, bool) {
	token, found := strings.CutPrefix(header, TokenTypeBearer+" ")
	return token, found && token != ""
}

func (s *Server) recordTokenValidation(ctx context.Context, result string) {
	if s.metrics != nil {
		s.metrics.RecordTokenValidation(ctx, result)
	}
}
