package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/giantswarm/oauth-pkce/instrumentation"
	"github.com/giantswarm/oauth-pkce/internal/testutil"
)

const testIssuer = "http://localhost:3001"

type testHandler struct {
	*Handler
	srv   *Server
	clock *clockwork.FakeClock
	mux   http.Handler
}

func setupTestHandler(t *testing.T, mutate ...func(*Config)) *testHandler {
	t.Helper()

	clock := testutil.NewClock()
	config := &Config{
		Issuer: testIssuer,
		Clock:  clock,
		Logger: testutil.DiscardLogger(),
	}
	for _, m := range mutate {
		m(config)
	}

	srv, err := NewServer(testutil.NewRegistry(t), config)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	h := NewHandler(srv, nil)
	return &testHandler{Handler: h, srv: srv, clock: clock, mux: h.Routes()}
}

func (th *testHandler) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	th.mux.ServeHTTP(w, req)
	return w
}

func authorizeURL(challenge string) string {
	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {testutil.ClientID},
		"redirect_uri":          {testutil.RedirectURI},
		"scope":                 {"read"},
		"state":                 {"xyz"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	return AuthorizationPath + "?" + q.Encode()
}

func approvalForm(decision, challenge string) url.Values {
	return url.Values{
		"decision":              {decision},
		"client_id":             {testutil.ClientID},
		"redirect_uri":          {testutil.RedirectURI},
		"state":                 {"xyz"},
		"scope":                 {"read"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
}

// approve posts an approval and returns the code from the redirect
func (th *testHandler) approve(t *testing.T, challenge string) string {
	t.Helper()

	w := th.serve(postForm(ApprovalPath, approvalForm("approve", challenge)))
	if w.Code != http.StatusFound {
		t.Fatalf("approval status = %d, want %d; body = %s", w.Code, http.StatusFound, w.Body.String())
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location header: %v", err)
	}
	if got := loc.Query().Get("state"); got != "xyz" {
		t.Errorf("state = %q, want %q", got, "xyz")
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatal("redirect carries no code")
	}
	return code
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func tokenForm(code, verifier string) url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testutil.RedirectURI},
		"client_id":     {testutil.ClientID},
		"client_secret": {testutil.ClientSecret},
		"code_verifier": {verifier},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestNewHandler(t *testing.T) {
	th := setupTestHandler(t)
	if th.logger == nil {
		t.Error("logger should not be nil")
	}
	if th.tracer != nil {
		t.Error("tracer should be nil without instrumentation")
	}
}

func TestHandler_FullFlow(t *testing.T) {
	th := setupTestHandler(t)

	w := th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("authorize status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		testutil.ClientName,
		"E9Melhoa2OwvFrEMTJgu...",
		`action="/authorize/approve"`,
		`name="code_challenge" value="` + testutil.RFCChallenge + `"`,
		`value="approve"`,
		`value="deny"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("consent page missing %q", want)
		}
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	code := th.approve(t, testutil.RFCChallenge)

	w = th.serve(postForm(TokenPath, tokenForm(code, testutil.RFCVerifier)))
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	var tok TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&tok); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", tok.TokenType)
	}
	if tok.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", tok.ExpiresIn)
	}
	if tok.Scope != "read" {
		t.Errorf("scope = %q, want read", tok.Scope)
	}

	req := httptest.NewRequest(http.MethodGet, UserInfoPath, nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	w = th.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("userinfo status = %d, body = %s", w.Code, w.Body.String())
	}

	var info UserInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode userinfo: %v", err)
	}
	want := UserInfo{Subject: "1234567890", Name: "Demo User", Email: "demo@example.com", Scope: "read"}
	if info != want {
		t.Errorf("userinfo = %+v, want %+v", info, want)
	}

	// the code is single use
	w = th.serve(postForm(TokenPath, tokenForm(code, testutil.RFCVerifier)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("replay status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidGrant {
		t.Errorf("error = %q, want %q", resp.Error, ErrorCodeInvalidGrant)
	}
}

func TestHandler_ConsentPage_FormActionAllowsRedirect(t *testing.T) {
	th := setupTestHandler(t)

	w := th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("authorize status = %d, body = %s", w.Code, w.Body.String())
	}

	// the approval 302 goes to the client origin, which form-action must allow
	csp := w.Header().Get("Content-Security-Policy")
	if want := "form-action 'self' http://localhost:3000;"; !strings.Contains(csp, want) {
		t.Errorf("CSP = %q, want it to contain %q", csp, want)
	}
	if !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("CSP = %q, want frame-ancestors 'none'", csp)
	}
}

func TestHandler_ServeToken_JSONBody(t *testing.T) {
	th := setupTestHandler(t)
	pair := testutil.NewPKCEPair()
	code := th.approve(t, pair.Challenge)

	body, _ := json.Marshal(TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
		CodeVerifier: pair.Verifier,
	})
	req := httptest.NewRequest(http.MethodPost, TokenPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	w := th.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandler_ServeToken_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(url.Values)
		wantStatus int
		wantError  string
	}{
		{
			name:       "wrong verifier",
			mutate:     func(v url.Values) { v.Set("code_verifier", strings.Repeat("a", 43)) },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidGrant,
		},
		{
			name:       "missing verifier",
			mutate:     func(v url.Values) { v.Del("code_verifier") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidRequest,
		},
		{
			name:       "wrong secret",
			mutate:     func(v url.Values) { v.Set("client_secret", "nope") },
			wantStatus: http.StatusUnauthorized,
			wantError:  ErrorCodeInvalidClient,
		},
		{
			name:       "unsupported grant type",
			mutate:     func(v url.Values) { v.Set("grant_type", "client_credentials") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeUnsupportedGrantType,
		},
		{
			name:       "redirect uri mismatch",
			mutate:     func(v url.Values) { v.Set("redirect_uri", "http://localhost:3000/other") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidGrant,
		},
		{
			name:       "unknown code",
			mutate:     func(v url.Values) { v.Set("code", "does-not-exist") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := setupTestHandler(t)
			code := th.approve(t, testutil.RFCChallenge)

			form := tokenForm(code, testutil.RFCVerifier)
			tt.mutate(form)

			w := th.serve(postForm(TokenPath, form))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if resp := decodeError(t, w); resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestHandler_ServeToken_MalformedJSON(t *testing.T) {
	th := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, TokenPath, strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	w := th.serve(req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidRequest {
		t.Errorf("error = %q, want %q", resp.Error, ErrorCodeInvalidRequest)
	}
}

func TestHandler_ServeAuthorization_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(url.Values)
		wantStatus int
		wantError  string
	}{
		{
			name:       "unsupported response type",
			mutate:     func(v url.Values) { v.Set("response_type", "token") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeUnsupportedResponseType,
		},
		{
			name:       "unknown client",
			mutate:     func(v url.Values) { v.Set("client_id", "someone-else") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidClient,
		},
		{
			name:       "unregistered redirect",
			mutate:     func(v url.Values) { v.Set("redirect_uri", "http://evil.example.com/callback") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidRedirectURI,
		},
		{
			name:       "plain method",
			mutate:     func(v url.Values) { v.Set("code_challenge_method", "plain") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidRequest,
		},
		{
			name:       "missing challenge",
			mutate:     func(v url.Values) { v.Del("code_challenge") },
			wantStatus: http.StatusBadRequest,
			wantError:  ErrorCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := setupTestHandler(t)

			u, _ := url.Parse(authorizeURL(testutil.RFCChallenge))
			q := u.Query()
			tt.mutate(q)
			u.RawQuery = q.Encode()

			w := th.serve(httptest.NewRequest(http.MethodGet, u.String(), nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if loc := w.Header().Get("Location"); loc != "" {
				t.Errorf("unexpected redirect to %q", loc)
			}
			if resp := decodeError(t, w); resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestHandler_ServeApproval_Deny(t *testing.T) {
	th := setupTestHandler(t)

	w := th.serve(postForm(ApprovalPath, approvalForm("deny", testutil.RFCChallenge)))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location header: %v", err)
	}
	if got := loc.Query().Get("error"); got != ErrorCodeAccessDenied {
		t.Errorf("error = %q, want %q", got, ErrorCodeAccessDenied)
	}
	if got := loc.Query().Get("state"); got != "xyz" {
		t.Errorf("state = %q, want xyz", got)
	}
	if loc.Query().Has("code") {
		t.Error("denied redirect must not carry a code")
	}
}

func TestHandler_ServeApproval_TamperedRedirect(t *testing.T) {
	th := setupTestHandler(t)

	form := approvalForm("approve", testutil.RFCChallenge)
	form.Set("redirect_uri", "http://evil.example.com/callback")

	w := th.serve(postForm(ApprovalPath, form))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Errorf("unexpected redirect to %q", loc)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	th := setupTestHandler(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, AuthorizationPath},
		{http.MethodGet, ApprovalPath},
		{http.MethodGet, TokenPath},
		{http.MethodPost, UserInfoPath},
		{http.MethodPost, MetadataPath},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := th.serve(httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestHandler_ServeUserInfo_Unauthorized(t *testing.T) {
	th := setupTestHandler(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "unknown token", header: "Bearer unknown"},
		{name: "basic scheme", header: "Basic ZGVtbzpzZWNyZXQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, UserInfoPath, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := th.serve(req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			challenge := w.Header().Get("WWW-Authenticate")
			if !strings.HasPrefix(challenge, `Bearer error="invalid_token"`) {
				t.Errorf("WWW-Authenticate = %q", challenge)
			}
			if resp := decodeError(t, w); resp.Error != ErrorCodeInvalidToken {
				t.Errorf("error = %q, want %q", resp.Error, ErrorCodeInvalidToken)
			}
		})
	}
}

func TestHandler_ServeUserInfo_ExpiredToken(t *testing.T) {
	th := setupTestHandler(t)
	code := th.approve(t, testutil.RFCChallenge)

	w := th.serve(postForm(TokenPath, tokenForm(code, testutil.RFCVerifier)))
	var tok TokenResponse
	if err := json.NewDecoder(w.Body).Decode(&tok); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}

	th.clock.Advance(time.Hour)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, UserInfoPath, nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		w := th.serve(req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want %d", i+1, w.Code, http.StatusUnauthorized)
		}
	}
}

func TestHandler_ServeAuthorizationServerMetadata(t *testing.T) {
	th := setupTestHandler(t)

	w := th.serve(httptest.NewRequest(http.MethodGet, MetadataPath, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var meta AuthorizationServerMetadata
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if meta.Issuer != testIssuer {
		t.Errorf("issuer = %q, want %q", meta.Issuer, testIssuer)
	}
	if meta.AuthorizationEndpoint != testIssuer+"/authorize" {
		t.Errorf("authorization_endpoint = %q", meta.AuthorizationEndpoint)
	}
	if meta.TokenEndpoint != testIssuer+"/token" {
		t.Errorf("token_endpoint = %q", meta.TokenEndpoint)
	}
	if len(meta.CodeChallengeMethodsSupported) != 1 || meta.CodeChallengeMethodsSupported[0] != "S256" {
		t.Errorf("code_challenge_methods_supported = %v, want [S256]", meta.CodeChallengeMethodsSupported)
	}
	if len(meta.GrantTypesSupported) != 1 || meta.GrantTypesSupported[0] != "authorization_code" {
		t.Errorf("grant_types_supported = %v", meta.GrantTypesSupported)
	}
}

func TestHandler_RateLimit(t *testing.T) {
	th := setupTestHandler(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Rate: 1, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		w := th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}

	w := th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if resp := decodeError(t, w); resp.Error != ErrorCodeRateLimitExceeded {
		t.Errorf("error = %q, want %q", resp.Error, ErrorCodeRateLimitExceeded)
	}

	th.clock.Advance(time.Second)
	w = th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))
	if w.Code != http.StatusOK {
		t.Errorf("after refill: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHandler_CORS(t *testing.T) {
	th := setupTestHandler(t, func(c *Config) {
		c.CORS = CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}
	})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, TokenPath, nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		w := th.serve(req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
		if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
			t.Errorf("Access-Control-Max-Age = %q, want 3600", got)
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, MetadataPath, nil)
		req.Header.Set("Origin", "http://evil.example.com")

		w := th.serve(req)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}

func TestHandler_RequestID(t *testing.T) {
	th := setupTestHandler(t)

	w := th.serve(httptest.NewRequest(http.MethodGet, MetadataPath, nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}

func TestHandler_AuditRecordsCarryRequestID(t *testing.T) {
	var logs bytes.Buffer
	th := setupTestHandler(t, func(c *Config) {
		c.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
		c.Security.EnableAuditLogging = true
	})

	req := httptest.NewRequest(http.MethodGet, UserInfoPath, nil)
	req.Header.Set("X-Request-ID", "req-42")
	if w := th.serve(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	found := false
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if record["msg"] == "security_audit" {
			found = true
			if record["request_id"] != "req-42" {
				t.Errorf("audit request_id = %v, want req-42", record["request_id"])
			}
		}
	}
	if !found {
		t.Fatal("no security_audit record written")
	}
}

func TestFormatWWWAuthenticate(t *testing.T) {
	tests := []struct {
		code string
		desc string
		want string
	}{
		{"invalid_token", "", `Bearer error="invalid_token"`},
		{"invalid_token", "expired", `Bearer error="invalid_token", error_description="expired"`},
		{"invalid_token", `a "quoted" \ value`, `Bearer error="invalid_token", error_description="a \"quoted\" \\ value"`},
	}

	for _, tt := range tests {
		if got := formatWWWAuthenticate(tt.code, tt.desc); got != tt.want {
			t.Errorf("formatWWWAuthenticate(%q, %q) = %q, want %q", tt.code, tt.desc, got, tt.want)
		}
	}
}

func setupTracedHandler(t *testing.T, logClientIPs bool) (*testHandler, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:       true,
		SpanProcessor: recorder,
		LogClientIPs:  logClientIPs,
	})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })

	th := setupTestHandler(t, func(c *Config) {
		c.Instrumentation = inst
		c.RateLimit = RateLimitConfig{Rate: 1, Burst: 1}
	})
	return th, recorder
}

func spansNamed(recorder *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var spans []sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			spans = append(spans, span)
		}
	}
	return spans
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

func TestHandler_SpanAttributes(t *testing.T) {
	th, recorder := setupTracedHandler(t, true)

	th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))
	if w := th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil)); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}

	spans := spansNamed(recorder, "oauth.http.authorization")
	if len(spans) != 2 {
		t.Fatalf("got %d authorization spans, want 2", len(spans))
	}

	want := []map[string]string{
		{
			instrumentation.AttrHTTPMethod:     http.MethodGet,
			instrumentation.AttrHTTPEndpoint:   "authorization",
			instrumentation.AttrHTTPStatusCode: "200",
			instrumentation.AttrClientIP:       "192.0.2.1",
		},
		{
			instrumentation.AttrHTTPStatusCode:  "429",
			instrumentation.AttrRateLimiterType: "ip",
		},
	}
	for i, attrs := range want {
		for key, value := range attrs {
			if got, _ := spanAttr(spans[i], key); got != value {
				t.Errorf("span %d: %s = %q, want %q", i, key, got, value)
			}
		}
	}
}

func TestHandler_SpanAttributes_ClientIPOptIn(t *testing.T) {
	th, recorder := setupTracedHandler(t, false)

	th.serve(httptest.NewRequest(http.MethodGet, authorizeURL(testutil.RFCChallenge), nil))

	spans := spansNamed(recorder, "oauth.http.authorization")
	if len(spans) != 1 {
		t.Fatalf("got %d authorization spans, want 1", len(spans))
	}
	if ip, ok := spanAttr(spans[0], instrumentation.AttrClientIP); ok {
		t.Errorf("client IP %q recorded without LogClientIPs", ip)
	}
}
