// Package testutil provides testing utilities and helpers for the oauth-pkce module.
package testutil

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth-pkce/pkce"
	"github.com/giantswarm/oauth-pkce/storage"
	"github.com/giantswarm/oauth-pkce/storage/static"
)

// Demo client registration shared by the tests
const (
	ClientID     = "demo-client"
	ClientSecret = "demo-secret"
	RedirectURI  = "http://localhost:3000/callback"
	ClientName   = "Demo OAuth Client"
)

// Epoch is the start time of every fake clock handed out by NewClock
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// RFC 7636 Appendix B test vector
const (
	RFCVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	RFCChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

// NewClock returns a fake clock set to Epoch
func NewClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}

// DiscardLogger returns a logger that drops every record
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DemoClient returns the demo client registration with a hash of ClientSecret.
// The hash uses bcrypt.MinCost to keep tests fast.
func DemoClient(t *testing.T) *storage.Client {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(ClientSecret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash client secret: %v", err)
	}
	return &storage.Client{
		ClientID:         ClientID,
		ClientSecretHash: string(hash),
		RedirectURIs:     []string{RedirectURI},
		DisplayName:      ClientName,
	}
}

// NewRegistry returns a static registry holding the demo client plus any
// extra clients
func NewRegistry(t *testing.T, extra ...*storage.Client) *static.Registry {
	t.Helper()
	clients := append([]*storage.Client{DemoClient(t)}, extra...)
	registry, err := static.NewRegistry(clients, DiscardLogger())
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return registry
}

// NewPKCEPair returns a fresh S256 verifier and challenge
func NewPKCEPair() pkce.Pair {
	return pkce.Generate()
}

// RFCPKCEPair returns the RFC 7636 Appendix B pair
func RFCPKCEPair() pkce.Pair {
	return pkce.Pair{
		Verifier:  RFCVerifier,
		Challenge: RFCChallenge,
		Method:    pkce.MethodS256,
	}
}

// AuthorizationCode returns an unused demo-client code issued at now
func AuthorizationCode(code, challenge string, now time.Time, ttl time.Duration) *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:                code,
		ClientID:            ClientID,
		RedirectURI:         RedirectURI,
		Scope:               "read",
		CodeChallenge:       challenge,
		CodeChallengeMethod: pkce.MethodS256,
		UserID:              "1234567890",
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// HTTPRequest is a helper for making test HTTP requests
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// NewHTTPRequest creates a new HTTP request helper
func NewHTTPRequest(method, url string) *HTTPRequest {
	return &HTTPRequest{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *HTTPRequest) WithHeader(key, value string) *HTTPRequest {
	r.Headers[key] = value
	return r
}

// WithBody sets the request body
func (r *HTTPRequest) WithBody(body string) *HTTPRequest {
	r.Body = body
	return r
}

// WithForm sets a form-encoded body
func (r *HTTPRequest) WithForm(body string) *HTTPRequest {
	r.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	r.Body = body
	return r
}

// Do executes the HTTP request against handler
func (r *HTTPRequest) Do(handler http.Handler) *httptest.ResponseRecorder {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.URL, body)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
