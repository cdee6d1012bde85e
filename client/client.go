package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/oauth2"

	oauth "github.com/giantswarm/oauth-pkce"
	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/internal/util"
	"github.com/giantswarm/oauth-pkce/pkce"
	"github.com/giantswarm/oauth-pkce/storage"
)

const (
	// stateLogLength is the number of characters of a state value included in logs
	stateLogLength = 8

	// maxResponseSize bounds the userinfo response body
	maxResponseSize = 1 << 20

	callbackResultSuccess = "success"
)

// Client drives the authorization code flow against one authorization server.
type Client struct {
	oauth       *oauth2.Config
	sessions    storage.SessionStore
	httpClient  *http.Client
	userInfoURL string

	Config *Config
	logger *slog.Logger

	tracer  trace.Tracer
	metrics *instrumentation.Metrics
}

// Result holds both responses of a completed flow
type Result struct {
	Token    oauth.TokenResponse
	UserInfo map[string]any
}

// New creates a Client storing its pending sessions in sessions
func New(sessions storage.SessionStore, config *Config) (*Client, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.AuthServerURL == "" {
		return nil, fmt.Errorf("auth server URL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if config.RedirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}

	applyDefaults(config)

	base := strings.TrimSuffix(config.AuthServerURL, "/")
	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURI,
			Scopes:       strings.Fields(config.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + oauth.AuthorizationPath,
				TokenURL:  base + oauth.TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		sessions:    sessions,
		httpClient:  config.HTTPClient,
		userInfoURL: base + oauth.UserInfoPath,
		Config:      config,
		logger:      config.Logger,
		tracer:      noop.NewTracerProvider().Tracer(""),
	}

	if config.Instrumentation != nil {
		c.tracer = config.Instrumentation.Tracer("client")
		c.metrics = config.Instrumentation.Metrics()
	}

	return c, nil
}

// StartFlow creates a session for a fresh state and PKCE pair and returns
// the authorization URL the user agent must visit.
func (c *Client) StartFlow(ctx context.Context) (string, error) {
	ctx, span := c.tracer.Start(ctx, "oauth.client.start_flow")
	defer span.End()

	state := oauth2.GenerateVerifier()
	pair := pkce.Generate()

	err := c.sessions.SaveSession(ctx, &storage.Session{
		State:         state,
		CodeVerifier:  pair.Verifier,
		CodeChallenge: pair.Challenge,
		CreatedAt:     c.Config.Clock.Now(),
	})
	if err != nil {
		instrumentation.RecordError(span, err)
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	authURL := c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(pair.Verifier))

	c.logger.Info("Started authorization flow",
		"client_id", c.Config.ClientID,
		"state_prefix", util.SafeTruncate(state, stateLogLength))

	if c.metrics != nil {
		c.metrics.RecordClientFlowStarted(ctx)
	}
	instrumentation.AddOAuthFlowAttributes(span, c.Config.ClientID, c.Config.Scope)
	instrumentation.AddPKCEAttributes(span, pair.Method)
	instrumentation.SetSpanSuccess(span)

	return authURL, nil
}

// HandleCallback completes a flow from the redirect parameters. An error
// parameter is surfaced without contacting the server. Every failure is a
// *CallbackError.
func (c *Client) HandleCallback(ctx context.Context, code, state, errCode, errDescription string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "oauth.client.callback")
	defer span.End()

	result, cbErr := c.handleCallback(ctx, code, state, errCode, errDescription)
	if cbErr != nil {
		c.logger.Warn("Authorization callback failed",
			"error", cbErr.Code,
			"description", cbErr.Description,
			"cause", cbErr.Err)
		if c.metrics != nil {
			c.metrics.RecordClientCallback(ctx, cbErr.Code)
		}
		instrumentation.AddOAuthErrorAttributes(span, cbErr.Code, cbErr.Description)
		return nil, cbErr
	}

	if c.metrics != nil {
		c.metrics.RecordClientCallback(ctx, callbackResultSuccess)
	}
	instrumentation.SetSpanSuccess(span)
	return result, nil
}

func (c *Client) handleCallback(ctx context.Context, code, state, errCode, errDescription string) (*Result, *CallbackError) {
	if errCode != "" {
		return nil, errAuthorizationFailed(errCode, errDescription)
	}
	if code == "" || state == "" {
		return nil, errMissingParameters()
	}

	session, err := c.sessions.ConsumeSession(ctx, state)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, errInvalidState(err)
		}
		return nil, errUpstream(oauth.ErrorCodeServerError, "Failed to load session", err)
	}

	token, cbErr := c.exchange(ctx, code, session.CodeVerifier)
	if cbErr != nil {
		return nil, cbErr
	}

	userInfo, cbErr := c.fetchUserInfo(ctx, token)
	if cbErr != nil {
		return nil, cbErr
	}

	c.logger.Info("Authorization flow completed",
		"client_id", c.Config.ClientID,
		"state_prefix", util.SafeTruncate(state, stateLogLength))

	return &Result{Token: tokenDetails(token), UserInfo: userInfo}, nil
}

// exchange redeems code at the token endpoint with client_secret_post authentication
func (c *Client) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, *CallbackError) {
	ctx, cancel := context.WithTimeout(ctx, c.Config.HTTPTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, errUpstream(retrieveErr.ErrorCode, retrieveErr.ErrorDescription, err)
		}
		return nil, errUpstream("", "Token exchange failed", err)
	}
	return token, nil
}

// fetchUserInfo calls the userinfo endpoint with token as bearer credential
func (c *Client) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]any, *CallbackError) {
	ctx, cancel := context.WithTimeout(ctx, c.Config.HTTPTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, errUpstream("", "Failed to build userinfo request", err)
	}

	resp, err := c.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, errUpstream("", "Userinfo request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errUpstream("", "Failed to read userinfo response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp oauth.ErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, errUpstream(errResp.Error, errResp.ErrorDescription,
			fmt.Errorf("userinfo returned status %d", resp.StatusCode))
	}

	var userInfo map[string]any
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, errUpstream("", "Invalid userinfo response", err)
	}
	return userInfo, nil
}

// tokenDetails converts the token into the token endpoint response shape
func tokenDetails(token *oauth2.Token) oauth.TokenResponse {
	details := oauth.TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.Type(),
		ExpiresIn:   token.ExpiresIn,
	}
	if v, ok := token.Extra("expires_in").(float64); ok && details.ExpiresIn == 0 {
		details.ExpiresIn = int64(v)
	}
	if scope, ok := token.Extra("scope").(string); ok {
		details.Scope = scope
	}
	return details
}
