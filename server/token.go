package server

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/internal/util"
	"github.com/giantswarm/oauth-pkce/pkce"
	"github.com/giantswarm/oauth-pkce/security"
	"github.com/giantswarm/oauth-pkce/storage"
)

// GrantTypeAuthorizationCode is the only supported grant type
const GrantTypeAuthorizationCode = "authorization_code"

// TokenTypeBearer is the token type of every issued access token
const TokenTypeBearer = "Bearer"

// Reasons a redemption check rejects a code. They never reach the client.
var (
	errClientIDMismatch    = errors.New("client_id_mismatch")
	errRedirectURIMismatch = errors.New("redirect_uri_mismatch")
	errMissingVerifier     = errors.New("missing_verifier")
	errVerifierMismatch    = errors.New("pkce_verifier_mismatch")
)

// TokenRequest holds the parameters of POST /token
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string

	// ClientIP is used for audit records only
	ClientIP string
}

// ExchangeAuthorizationCode exchanges an authorization code for an access
// token. Checks run in order and the first failure wins:
//  1. grant_type must be authorization_code (unsupported_grant_type)
//  2. client must authenticate (invalid_client, 401)
//  3. code must exist (invalid_grant)
//  4. code must be unused; a reused code is deleted (invalid_grant)
//  5. code must be unexpired; an expired code is deleted (invalid_grant)
//  6. client_id and redirect_uri must match issuance (invalid_grant)
//  7. code_verifier must be present (invalid_request)
//  8. the verifier must hash to the stored challenge (invalid_grant)
//
// Steps 3 to 8 run atomically inside the code store, so concurrent exchanges
// of one code yield exactly one token. On success the code is marked used and
// kept so later reuse is detected. The returned scope is the one bound to the
// code.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, req *TokenRequest) (*oauth2.Token, string, error) {
	ctx, span := s.startSpan(ctx, "server.exchange_authorization_code")
	defer span.End()

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrGrantType, req.GrantType),
		attribute.String(instrumentation.AttrClientID, req.ClientID),
	)

	token, scope, oauthErr := s.exchangeAuthorizationCode(ctx, req)
	if oauthErr != nil {
		instrumentation.AddOAuthErrorAttributes(span, oauthErr.Code, oauthErr.Description)
		return nil, "", oauthErr
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrTokenType, token.TokenType),
		attribute.Int64(instrumentation.AttrExpiresIn, token.ExpiresIn),
		attribute.String(instrumentation.AttrScope, scope),
	)
	instrumentation.SetSpanSuccess(span)

	return token, scope, nil
}

func (s *Server) exchangeAuthorizationCode(ctx context.Context, req *TokenRequest) (*oauth2.Token, string, *Error) {
	if req.GrantType != GrantTypeAuthorizationCode {
		return nil, "", ErrUnsupportedGrantType("grant_type must be authorization_code")
	}

	if err := s.registry.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		s.Logger.Debug("Client authentication failed", "client_id", req.ClientID, "reason", err.Error())
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure(ctx, "", req.ClientID, req.ClientIP, "invalid_client_credentials")
		}
		if s.metrics != nil {
			s.metrics.RecordClientAuthFailed(ctx, req.ClientID)
		}
		return nil, "", ErrInvalidClient("client authentication failed")
	}

	authCode, err := s.codeStore.RedeemAuthorizationCode(ctx, req.Code, func(code *storage.AuthorizationCode) error {
		if code.ClientID != req.ClientID {
			return errClientIDMismatch
		}
		if code.RedirectURI != req.RedirectURI {
			return errRedirectURIMismatch
		}
		if req.CodeVerifier == "" {
			return errMissingVerifier
		}
		if !pkce.Verify(code.CodeChallenge, req.CodeVerifier) {
			return errVerifierMismatch
		}
		return nil
	})
	if err != nil {
		return nil, "", s.redeemFailure(ctx, req, err)
	}

	// Code is now atomically marked as used - no other request can use it

	now := s.Config.Clock.Now()
	accessToken := &storage.AccessToken{
		Token:     generateRandomToken(),
		ClientID:  authCode.ClientID,
		UserID:    authCode.UserID,
		Scope:     authCode.Scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.Config.AccessTokenTTL),
	}
	if err := s.tokenStore.SaveAccessToken(ctx, accessToken); err != nil {
		s.Logger.Error("Failed to save access token", "client_id", req.ClientID, "error", err)
		return nil, "", ErrServerError("failed to issue access token")
	}

	s.Logger.Debug("Issued access token",
		"client_id", authCode.ClientID,
		"code_prefix", util.SafeTruncate(req.Code, tokenIDLogLength),
		"token_prefix", util.SafeTruncate(accessToken.Token, tokenIDLogLength))

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(ctx, authCode.UserID, authCode.ClientID, req.ClientIP, authCode.Scope)
	}
	if s.metrics != nil {
		s.metrics.RecordCodeExchange(ctx, authCode.ClientID, authCode.CodeChallengeMethod)
	}

	return &oauth2.Token{
		AccessToken: accessToken.Token,
		TokenType:   TokenTypeBearer,
		Expiry:      accessToken.ExpiresAt,
		ExpiresIn:   security.ExpiresIn(s.Config.Clock, accessToken.ExpiresAt),
	}, authCode.Scope, nil
}

// redeemFailure maps a failed redemption onto the OAuth error returned to
// the client. Only invalid_request for a missing verifier is distinguishable
// from the outside; every other reason is a generic invalid_grant.
func (s *Server) redeemFailure(ctx context.Context, req *TokenRequest, err error) *Error {
	codePrefix := util.SafeTruncate(req.Code, tokenIDLogLength)

	switch {
	case errors.Is(err, storage.ErrCodeUsed):
		// CRITICAL SECURITY: reuse of a redeemed code indicates interception
		s.Logger.Warn("Authorization code reuse detected",
			"client_id", req.ClientID,
			"code_prefix", codePrefix)
		if s.Auditor != nil {
			s.Auditor.LogCodeReuse(ctx, req.ClientID, req.ClientIP)
		}
		if s.metrics != nil {
			s.metrics.RecordCodeReuseDetected(ctx)
		}
		instrumentation.SetSpanAttributes(trace.SpanFromContext(ctx), attribute.Bool(instrumentation.AttrCodeReuse, true))

	case errors.Is(err, storage.ErrCodeExpired):
		s.Logger.Debug("Authorization code validation failed",
			"reason", "expired",
			"client_id", req.ClientID,
			"code_prefix", codePrefix)
		if s.Auditor != nil {
			s.Auditor.LogCodeExpired(ctx, req.ClientID, req.ClientIP)
		}

	case errors.Is(err, storage.ErrCodeNotFound):
		s.Logger.Debug("Authorization code validation failed",
			"reason", "not_found",
			"client_id", req.ClientID,
			"code_prefix", codePrefix)
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure(ctx, "", req.ClientID, req.ClientIP, "invalid_authorization_code")
		}

	case errors.Is(err, errClientIDMismatch), errors.Is(err, errRedirectURIMismatch):
		s.Logger.Debug("Authorization code validation failed",
			"reason", err.Error(),
			"client_id", req.ClientID,
			"redirect_uri", req.RedirectURI,
			"code_prefix", codePrefix)
		if s.Auditor != nil {
			s.Auditor.LogCodeBindingMismatch(ctx, req.ClientID, req.ClientIP, err.Error())
		}

	case errors.Is(err, errMissingVerifier):
		if s.Auditor != nil {
			s.Auditor.LogPKCEFailure(ctx, req.ClientID, req.ClientIP, "missing_verifier")
		}
		if s.metrics != nil {
			s.metrics.RecordPKCEValidationFailed(ctx, "missing_verifier")
		}
		return ErrInvalidRequest("code_verifier is required")

	case errors.Is(err, errVerifierMismatch):
		s.Logger.Debug("Authorization code validation failed",
			"reason", "pkce_verifier_mismatch",
			"client_id", req.ClientID,
			"code_prefix", codePrefix)
		if s.Auditor != nil {
			s.Auditor.LogPKCEFailure(ctx, req.ClientID, req.ClientIP, "mismatch")
		}
		if s.metrics != nil {
			s.metrics.RecordPKCEValidationFailed(ctx, "mismatch")
		}

	default:
		s.Logger.Error("Failed to redeem authorization code",
			"client_id", req.ClientID,
			"code_prefix", codePrefix,
			"error", err)
		return ErrServerError("failed to redeem authorization code")
	}

	// Return generic error per RFC 6749 (don't reveal details to attacker)
	return ErrInvalidGrant("invalid grant")
}
