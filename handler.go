package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/pkce"
	"github.com/giantswarm/oauth-pkce/security"
	"github.com/giantswarm/oauth-pkce/server"
)

const (
	defaultCORSMaxAge = 3600 // 1 hour default for preflight cache

	// maxRequestBodySize bounds form and JSON bodies
	maxRequestBodySize = 1 << 20
)

// Handler is a thin HTTP adapter for the OAuth Server.
// It handles HTTP requests and delegates to the protocol engines for business logic.
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates a new HTTP handler
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
	}

	// Initialize tracer if instrumentation is enabled
	if server.Config.Instrumentation != nil {
		h.tracer = server.Config.Instrumentation.Tracer("http")
	}

	return h
}

// Routes returns an http.Handler serving every authorization server endpoint
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(AuthorizationPath, h.ServeAuthorization)
	mux.HandleFunc(ApprovalPath, h.ServeApproval)
	mux.HandleFunc(TokenPath, h.ServeToken)
	mux.HandleFunc(UserInfoPath, h.ServeUserInfo)
	mux.HandleFunc(MetadataPath, h.ServeAuthorizationServerMetadata)

	return security.RequestIDMiddleware(h.withCORS(mux))
}

// ServeAuthorizationServerMetadata serves RFC 8414 Authorization Server Metadata
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	h.writeJSON(w, http.StatusOK, h.buildAuthServerMetadata())
}

// buildAuthServerMetadata builds the RFC 8414 authorization server metadata.
func (h *Handler) buildAuthServerMetadata() AuthorizationServerMetadata {
	issuer := strings.TrimSuffix(h.server.Engine.Config.Issuer, "/")
	return AuthorizationServerMetadata{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + AuthorizationPath,
		TokenEndpoint:                     issuer + TokenPath,
		UserinfoEndpoint:                  issuer + UserInfoPath,
		ScopesSupported:                   h.server.Engine.Config.SupportedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{server.GrantTypeAuthorizationCode},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post"},
		CodeChallengeMethodsSupported:     []string{pkce.MethodS256},
	}
}

// ServeAuthorization validates an authorization request and renders the consent prompt
func (h *Handler) ServeAuthorization(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.authorization")
	if span != nil {
		defer span.End()
	}

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics(ctx, "authorization", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(ctx, r)
	if h.checkIPRateLimit(ctx, w, r, clientIP) {
		h.recordHTTPMetrics(ctx, "authorization", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	q := r.URL.Query()
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, q.Get("client_id")),
		attribute.String(instrumentation.AttrPKCEMethod, q.Get("code_challenge_method")),
	)

	prompt, err := h.server.Engine.BeginAuthorization(ctx, &server.AuthorizationRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		ClientIP:            clientIP,
	})
	if err != nil {
		status := h.writeOAuthError(w, err)
		h.recordHTTPMetrics(ctx, "authorization", r.Method, status, startTime)
		instrumentation.SetSpanError(span, "authorization request rejected")
		return
	}

	if err := h.renderConsent(w, prompt); err != nil {
		h.logger.Error("Failed to render consent page", "error", err)
		h.writeError(w, ErrorCodeServerError, "Failed to render consent page", http.StatusInternalServerError)
		h.recordHTTPMetrics(ctx, "authorization", r.Method, http.StatusInternalServerError, startTime)
		instrumentation.RecordError(span, err)
		return
	}

	h.recordHTTPMetrics(ctx, "authorization", r.Method, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)
}

// ServeApproval applies the decision posted from the consent prompt and
// redirects the user agent back to the client
func (h *Handler) ServeApproval(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.approval")
	if span != nil {
		defer span.End()
	}

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics(ctx, "approval", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(ctx, r)
	if h.checkIPRateLimit(ctx, w, r, clientIP) {
		h.recordHTTPMetrics(ctx, "approval", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Failed to parse request", http.StatusBadRequest)
		h.recordHTTPMetrics(ctx, "approval", r.Method, http.StatusBadRequest, startTime)
		return
	}

	redirectURL, err := h.server.Engine.DecideAuthorization(ctx, &server.AuthorizationDecision{
		Decision:            r.PostFormValue("decision"),
		ClientID:            r.PostFormValue("client_id"),
		RedirectURI:         r.PostFormValue("redirect_uri"),
		State:               r.PostFormValue("state"),
		Scope:               r.PostFormValue("scope"),
		CodeChallenge:       r.PostFormValue("code_challenge"),
		CodeChallengeMethod: r.PostFormValue("code_challenge_method"),
		ClientIP:            clientIP,
	})
	if err != nil {
		status := h.writeOAuthError(w, err)
		h.recordHTTPMetrics(ctx, "approval", r.Method, status, startTime)
		instrumentation.SetSpanError(span, "approval rejected")
		return
	}

	h.recordHTTPMetrics(ctx, "approval", r.Method, http.StatusFound, startTime)
	instrumentation.SetSpanSuccess(span)

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// ServeToken handles the OAuth token endpoint
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.token_exchange")
	if span != nil {
		defer span.End()
	}

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(ctx, r)
	if h.checkIPRateLimit(ctx, w, r, clientIP) {
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	req, err := decodeTokenRequest(w, r)
	if err != nil {
		h.logger.Debug("Failed to parse token request", "ip", clientIP, "error", err)
		h.writeError(w, ErrorCodeInvalidRequest, "Failed to parse request", http.StatusBadRequest)
		h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusBadRequest, startTime)
		return
	}

	token, scope, err := h.server.Engine.ExchangeAuthorizationCode(ctx, &server.TokenRequest{
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		CodeVerifier: req.CodeVerifier,
		ClientIP:     clientIP,
	})
	if err != nil {
		// SECURITY: Don't leak internal error details to client
		// Audit logging is done in ExchangeAuthorizationCode
		h.logger.Info("Token request rejected", "client_id", req.ClientID, "ip", clientIP, "error", err)
		status := h.writeOAuthError(w, err)
		h.recordHTTPMetrics(ctx, "token", r.Method, status, startTime)
		instrumentation.SetSpanError(span, "code exchange failed")
		return
	}

	h.logger.Info("Token exchange successful", "client_id", req.ClientID, "ip", clientIP)

	h.recordHTTPMetrics(ctx, "token", r.Method, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)

	h.writeTokenResponse(w, token, scope)
}

// decodeTokenRequest reads a token request from a JSON or form-encoded body
func decodeTokenRequest(w http.ResponseWriter, r *http.Request) (*TokenRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	return &TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		CodeVerifier: r.PostFormValue("code_verifier"),
	}, nil
}

// ServeUserInfo returns the demo principal for a valid bearer token
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx, span := h.startSpan(r.Context(), "oauth.http.userinfo")
	if span != nil {
		defer span.End()
	}

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics(ctx, "userinfo", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal, err := h.server.Engine.AuthorizeRequest(ctx, r.Header.Get("Authorization"), h.clientIP(ctx, r))
	if err != nil {
		var oauthErr *server.Error
		if errors.As(err, &oauthErr) && oauthErr.Status == http.StatusUnauthorized {
			h.writeUnauthorizedError(w, oauthErr.Code, oauthErr.Description)
			h.recordHTTPMetrics(ctx, "userinfo", r.Method, http.StatusUnauthorized, startTime)
			instrumentation.SetSpanError(span, "invalid bearer token")
			return
		}
		status := h.writeOAuthError(w, err)
		h.recordHTTPMetrics(ctx, "userinfo", r.Method, status, startTime)
		return
	}

	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	h.writeJSON(w, http.StatusOK, UserInfo{
		Subject: principal.Subject,
		Name:    principal.Name,
		Email:   principal.Email,
		Scope:   principal.Scope,
	})

	h.recordHTTPMetrics(ctx, "userinfo", r.Method, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)
}

// clientIP resolves the caller's address and, when the instrumentation allows
// it, attaches it to the span in ctx
func (h *Handler) clientIP(ctx context.Context, r *http.Request) string {
	ip := security.GetClientIP(r, h.server.Engine.Config.TrustProxy, h.server.Engine.Config.TrustedProxyCount)
	if inst := h.server.Config.Instrumentation; inst != nil && inst.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(trace.SpanFromContext(ctx), ip)
	}
	return ip
}

func (h *Handler) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if h.tracer == nil {
		return ctx, nil
	}
	return h.tracer.Start(ctx, name)
}

// checkIPRateLimit checks if the client IP is rate limited. Returns true if limited.
func (h *Handler) checkIPRateLimit(ctx context.Context, w http.ResponseWriter, r *http.Request, clientIP string) bool {
	if h.server.RateLimiter == nil || h.server.RateLimiter.Allow(clientIP) {
		return false
	}

	h.logger.Warn("Rate limit exceeded", "ip", clientIP, "endpoint", r.URL.Path)
	instrumentation.SetSpanAttributes(trace.SpanFromContext(ctx), attribute.String(instrumentation.AttrRateLimiterType, "ip"))
	if h.server.Config.Instrumentation != nil {
		h.server.Config.Instrumentation.Metrics().RecordRateLimitExceeded(ctx, "ip")
	}
	if h.server.Auditor != nil {
		h.server.Auditor.LogRateLimitExceeded(ctx, clientIP, r.URL.Path)
	}

	w.Header().Set("Retry-After", "60")
	h.writeError(w, ErrorCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	return true
}

func (h *Handler) writeTokenResponse(w http.ResponseWriter, token *oauth2.Token, scope string) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = server.TokenTypeBearer
	}

	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   tokenType,
		ExpiresIn:   token.ExpiresIn,
		Scope:       scope,
	})
}

// writeOAuthError writes err as an OAuth error response and returns the status written
func (h *Handler) writeOAuthError(w http.ResponseWriter, err error) int {
	var oauthErr *server.Error
	if !errors.As(err, &oauthErr) {
		h.logger.Error("Unexpected error", "error", err)
		oauthErr = server.ErrServerError("Internal server error")
	}
	h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
	return oauthErr.Status
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.server.Config.Issuer)
	h.writeJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// writeUnauthorizedError writes a 401 response with an RFC 6750 Bearer challenge
func (h *Handler) writeUnauthorizedError(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate", formatWWWAuthenticate(code, description))
	h.writeError(w, code, description, http.StatusUnauthorized)
}

// formatWWWAuthenticate formats the WWW-Authenticate header value per RFC 6750
func formatWWWAuthenticate(errCode, errorDesc string) string {
	params := []string{fmt.Sprintf(`error="%s"`, errCode)}

	if errorDesc != "" {
		// Escape backslashes first, then quotes (order matters!)
		escapedDesc := strings.ReplaceAll(errorDesc, `\`, `\\`)
		escapedDesc = strings.ReplaceAll(escapedDesc, `"`, `\"`)
		params = append(params, fmt.Sprintf(`error_description="%s"`, escapedDesc))
	}

	return server.TokenTypeBearer + " " + strings.Join(params, ", ")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}

// withCORS sets CORS headers for allowed origins and answers preflight requests
func (h *Handler) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := h.setCORSHeaders(w, r)
		if allowed && r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets CORS headers if configured and the origin is allowed.
// Returns true when headers were set.
func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) bool {
	cors := h.server.Config.CORS
	if len(cors.AllowedOrigins) == 0 {
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	if !h.isAllowedOrigin(origin) {
		h.logger.Debug("CORS request from disallowed origin", "origin", origin)
		return false
	}

	// Echo back the specific origin rather than using "*"
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")

	maxAge := cors.MaxAge
	if maxAge == 0 {
		maxAge = defaultCORSMaxAge
	}

	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", maxAge))
	return true
}

// isAllowedOrigin checks if the given origin is in the allowed origins list.
// Supports exact matching and wildcard "*" for development.
func (h *Handler) isAllowedOrigin(origin string) bool {
	for _, allowed := range h.server.Config.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// recordHTTPMetrics annotates the request span and records HTTP request
// metrics if instrumentation is enabled
func (h *Handler) recordHTTPMetrics(ctx context.Context, endpoint, method string, status int, startTime time.Time) {
	instrumentation.AddHTTPAttributes(trace.SpanFromContext(ctx), method, endpoint, status)

	if h.server.Config.Instrumentation == nil {
		return
	}

	duration := float64(time.Since(startTime).Microseconds()) / 1000.0
	h.server.Config.Instrumentation.Metrics().RecordHTTPRequest(ctx, method, endpoint, status, duration)
}
