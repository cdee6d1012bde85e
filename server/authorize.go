package server

import (
	"context"
	"errors"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/internal/util"
	"github.com/giantswarm/oauth-pkce/pkce"
	"github.com/giantswarm/oauth-pkce/storage"
)

// DecisionApprove is the only decision value that issues a code
const DecisionApprove = "approve"

// AuthorizationRequest holds the parameters of GET /authorize
type AuthorizationRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string

	// ClientIP is used for audit records only
	ClientIP string
}

// ConsentPrompt is what the user is asked to approve. All parameters are
// echoed unmodified except Scope, which carries the effective scope.
type ConsentPrompt struct {
	ClientID            string
	ClientName          string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	ChallengePreview    string
}

// AuthorizationDecision holds the parameters posted from the consent prompt
type AuthorizationDecision struct {
	Decision            string
	ClientID            string
	RedirectURI         string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string

	ClientIP string
}

// BeginAuthorization validates an authorization request. The first failed
// check wins:
//  1. response_type must be "code"
//  2. client must be registered
//  3. redirect_uri must exactly match a registered URI
//  4. code_challenge must be present and code_challenge_method must be S256
//
// No server-side state is created.
func (s *Server) BeginAuthorization(ctx context.Context, req *AuthorizationRequest) (*ConsentPrompt, error) {
	ctx, span := s.startSpan(ctx, "server.begin_authorization")
	defer span.End()

	instrumentation.AddOAuthFlowAttributes(span, req.ClientID, req.Scope)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrResponseType, req.ResponseType),
		attribute.String(instrumentation.AttrRedirectURI, req.RedirectURI),
	)

	client, oauthErr := s.validateAuthorizationRequest(ctx, req)
	if oauthErr != nil {
		instrumentation.AddOAuthErrorAttributes(span, oauthErr.Code, oauthErr.Description)
		if s.Auditor != nil {
			s.Auditor.LogAuthorizationRejected(ctx, req.ClientID, req.ClientIP, oauthErr.Code)
		}
		return nil, oauthErr
	}

	scope := s.effectiveScope(req.Scope)

	if s.Auditor != nil {
		s.Auditor.LogAuthorizationRequested(ctx, client.ClientID, req.ClientIP, scope)
	}
	if s.metrics != nil {
		s.metrics.RecordAuthorizationStarted(ctx, client.ClientID)
	}
	instrumentation.SetSpanSuccess(span)

	return &ConsentPrompt{
		ClientID:            req.ClientID,
		ClientName:          client.DisplayName,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ChallengePreview:    util.Preview(req.CodeChallenge, s.Config.ChallengePreviewLength),
	}, nil
}

func (s *Server) validateAuthorizationRequest(ctx context.Context, req *AuthorizationRequest) (*storage.Client, *Error) {
	if req.ResponseType != "code" {
		return nil, ErrUnsupportedResponseType("response_type must be \"code\"")
	}

	client, oauthErr := s.resolveClient(ctx, req.ClientID, req.RedirectURI, req.ClientIP)
	if oauthErr != nil {
		return nil, oauthErr
	}

	if req.CodeChallenge == "" {
		return nil, ErrInvalidRequest("code_challenge is required")
	}
	if !pkce.ValidMethod(req.CodeChallengeMethod) {
		return nil, ErrInvalidRequest("code_challenge_method must be S256")
	}

	return client, nil
}

// resolveClient looks up the client and checks exact redirect URI membership
func (s *Server) resolveClient(ctx context.Context, clientID, redirectURI, clientIP string) (*storage.Client, *Error) {
	client, err := s.registry.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrClientNotFound) {
			s.Logger.Error("Failed to look up client", "client_id", clientID, "error", err)
			return nil, ErrServerError("failed to look up client")
		}
		s.Logger.Debug("Authorization request for unknown client", "client_id", clientID)
		return nil, ErrUnknownClient("unknown client")
	}

	if !client.HasRedirectURI(redirectURI) {
		s.Logger.Debug("Authorization request with unregistered redirect_uri",
			"client_id", clientID,
			"redirect_uri", redirectURI)
		if s.Auditor != nil {
			s.Auditor.LogInvalidRedirect(ctx, clientID, clientIP, redirectURI)
		}
		return nil, ErrInvalidRedirectURI("redirect_uri is not registered for this client")
	}

	return client, nil
}

// DecideAuthorization applies the user's consent decision and returns the
// URL to redirect the user agent to.
//
// The client and redirect_uri are re-validated first; failing either returns
// an *Error so nothing is ever sent to an unregistered URI. A decision other than "approve" redirects with error=access_denied.
// Approval without a valid S256 challenge redirects with error=invalid_request.
// Otherwise a fresh single-use code is stored and returned in the redirect.
// state is echoed whenever it was provided.
func (s *Server) DecideAuthorization(ctx context.Context, d *AuthorizationDecision) (string, error) {
	ctx, span := s.startSpan(ctx, "server.decide_authorization")
	defer span.End()

	instrumentation.AddOAuthFlowAttributes(span, d.ClientID, d.Scope)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrDecision, d.Decision),
		attribute.String(instrumentation.AttrRedirectURI, d.RedirectURI),
	)

	client, oauthErr := s.resolveClient(ctx, d.ClientID, d.RedirectURI, d.ClientIP)
	if oauthErr != nil {
		instrumentation.AddOAuthErrorAttributes(span, oauthErr.Code, oauthErr.Description)
		return "", oauthErr
	}

	if d.Decision != DecisionApprove {
		s.recordDecision(ctx, client.ClientID, "deny")
		if s.Auditor != nil {
			s.Auditor.LogAuthorizationDenied(ctx, client.ClientID, d.ClientIP)
		}
		return buildRedirect(d.RedirectURI, d.State, map[string]string{
			"error": ErrorCodeAccessDenied,
		})
	}

	if d.CodeChallenge == "" || !pkce.ValidMethod(d.CodeChallengeMethod) {
		instrumentation.AddOAuthErrorAttributes(span, ErrorCodeInvalidRequest, "missing or unsupported code challenge")
		return buildRedirect(d.RedirectURI, d.State, map[string]string{
			"error":             ErrorCodeInvalidRequest,
			"error_description": "code_challenge with method S256 is required",
		})
	}

	s.recordDecision(ctx, client.ClientID, "approve")

	now := s.Config.Clock.Now()
	scope := s.effectiveScope(d.Scope)
	code := &storage.AuthorizationCode{
		Code:                generateRandomToken(),
		ClientID:            client.ClientID,
		RedirectURI:         d.RedirectURI,
		Scope:               scope,
		CodeChallenge:       d.CodeChallenge,
		CodeChallengeMethod: d.CodeChallengeMethod,
		UserID:              s.Config.User.Subject,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.Config.AuthorizationCodeTTL),
	}

	if err := s.codeStore.SaveAuthorizationCode(ctx, code); err != nil {
		s.Logger.Error("Failed to save authorization code", "client_id", client.ClientID, "error", err)
		instrumentation.RecordError(span, err)
		return "", ErrServerError("failed to issue authorization code")
	}

	s.Logger.Debug("Issued authorization code",
		"client_id", client.ClientID,
		"code_prefix", util.SafeTruncate(code.Code, tokenIDLogLength),
		"expires_at", code.ExpiresAt)

	if s.Auditor != nil {
		s.Auditor.LogAuthorizationCodeIssued(ctx, code.UserID, client.ClientID, d.ClientIP, scope)
	}
	if s.metrics != nil {
		s.metrics.RecordCodeIssued(ctx, client.ClientID)
	}
	instrumentation.SetSpanSuccess(span)

	return buildRedirect(d.RedirectURI, d.State, map[string]string{
		"code": code.Code,
	})
}

func (s *Server) recordDecision(ctx context.Context, clientID, decision string) {
	if s.metrics != nil {
		s.metrics.RecordAuthorizationDecided(ctx, clientID, decision)
	}
}

func (s *Server) effectiveScope(scope string) string {
	if scope == "" {
		return s.Config.DefaultScope
	}
	return scope
}

// buildRedirect adds params and state (when non-empty) to redirectURI,
// preserving any query the registered URI already carries.
func buildRedirect(redirectURI, state string, params map[string]string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", ErrInvalidRedirectURI("redirect_uri is not a valid URL")
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
