package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/giantswarm/oauth-pkce/internal/testutil"
	"github.com/giantswarm/oauth-pkce/storage"
	"github.com/giantswarm/oauth-pkce/storage/memory"
)

type testServer struct {
	*Server
	store *memory.Store
	clock *clockwork.FakeClock
}

func newTestServer(t *testing.T, extraClients ...*storage.Client) *testServer {
	t.Helper()

	clock := testutil.NewClock()
	store := memory.NewWithConfig(memory.Config{
		Clock:  clock,
		Logger: testutil.DiscardLogger(),
	})
	t.Cleanup(store.Stop)

	srv, err := New(testutil.NewRegistry(t, extraClients...), store, store, &Config{
		Issuer: "http://localhost:3001",
		Clock:  clock,
	}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testServer{Server: srv, store: store, clock: clock}
}

// approve runs a successful authorization for the demo client and returns
// the issued code.
func (ts *testServer) approve(t *testing.T, challenge string) string {
	t.Helper()

	redirect, err := ts.DecideAuthorization(context.Background(), &AuthorizationDecision{
		Decision:            DecisionApprove,
		ClientID:            testutil.ClientID,
		RedirectURI:         testutil.RedirectURI,
		State:               "xyz",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	})
	if err != nil {
		t.Fatalf("DecideAuthorization() error = %v", err)
	}

	u, err := url.Parse(redirect)
	if err != nil {
		t.Fatalf("invalid redirect %q: %v", redirect, err)
	}
	code := u.Query().Get("code")
	if code == "" {
		t.Fatalf("redirect %q carries no code", redirect)
	}
	return code
}

func (ts *testServer) tokenRequest(code, verifier string) *TokenRequest {
	return &TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         code,
		RedirectURI:  testutil.RedirectURI,
		ClientID:     testutil.ClientID,
		ClientSecret: testutil.ClientSecret,
		CodeVerifier: verifier,
	}
}

func assertOAuthError(t *testing.T, err error, wantCode string, wantStatus int) {
	t.Helper()
	var oauthErr *Error
	if !errors.As(err, &oauthErr) {
		t.Fatalf("error = %v (%T), want *Error with code %s", err, err, wantCode)
	}
	if oauthErr.Code != wantCode {
		t.Errorf("error code = %q, want %q (description: %s)", oauthErr.Code, wantCode, oauthErr.Description)
	}
	if oauthErr.Status != wantStatus {
		t.Errorf("status = %d, want %d", oauthErr.Status, wantStatus)
	}
}

func TestNew_RequiresStores(t *testing.T) {
	registry := testutil.NewRegistry(t)
	store := memory.New()
	defer store.Stop()

	tests := []struct {
		name     string
		registry storage.ClientRegistry
		codes    storage.CodeStore
		tokens   storage.TokenStore
	}{
		{name: "missing registry", codes: store, tokens: store},
		{name: "missing code store", registry: registry, tokens: store},
		{name: "missing token store", registry: registry, codes: store},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.registry, tt.codes, tt.tokens, nil, nil); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestApplySecureDefaults(t *testing.T) {
	config := applySecureDefaults(&Config{}, testutil.DiscardLogger())

	if config.AuthorizationCodeTTL != 10*time.Minute {
		t.Errorf("AuthorizationCodeTTL = %v, want 10m", config.AuthorizationCodeTTL)
	}
	if config.AccessTokenTTL != time.Hour {
		t.Errorf("AccessTokenTTL = %v, want 1h", config.AccessTokenTTL)
	}
	if config.DefaultScope != "read" {
		t.Errorf("DefaultScope = %q, want read", config.DefaultScope)
	}
	if config.ChallengePreviewLength != 20 {
		t.Errorf("ChallengePreviewLength = %d, want 20", config.ChallengePreviewLength)
	}
	if config.User != DefaultUser {
		t.Errorf("User = %+v, want %+v", config.User, DefaultUser)
	}
	if config.TrustedProxyCount != 1 {
		t.Errorf("TrustedProxyCount = %d, want 1", config.TrustedProxyCount)
	}
	if config.Clock == nil {
		t.Error("Clock should default to the real clock")
	}
}

func TestApplySecureDefaults_PreservesCustomValues(t *testing.T) {
	clock := testutil.NewClock()
	config := applySecureDefaults(&Config{
		AuthorizationCodeTTL:   time.Minute,
		AccessTokenTTL:         5 * time.Minute,
		DefaultScope:           "profile",
		ChallengePreviewLength: 8,
		Clock:                  clock,
	}, testutil.DiscardLogger())

	if config.AuthorizationCodeTTL != time.Minute {
		t.Errorf("AuthorizationCodeTTL = %v, want 1m", config.AuthorizationCodeTTL)
	}
	if config.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 5m", config.AccessTokenTTL)
	}
	if config.DefaultScope != "profile" {
		t.Errorf("DefaultScope = %q, want profile", config.DefaultScope)
	}
	if config.ChallengePreviewLength != 8 {
		t.Errorf("ChallengePreviewLength = %d, want 8", config.ChallengePreviewLength)
	}
	if config.Clock != clock {
		t.Error("Clock should be preserved")
	}
}

func TestLogSecurityWarnings(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		wantWarn string
	}{
		{
			name:     "trust proxy",
			config:   &Config{TrustProxy: true},
			wantWarn: "Trusting proxy headers",
		},
		{
			name:     "long-lived codes",
			config:   &Config{AuthorizationCodeTTL: time.Hour},
			wantWarn: "Long-lived authorization codes",
		},
		{
			name:     "plain http issuer",
			config:   &Config{Issuer: "http://auth.example.com"},
			wantWarn: "not served over HTTPS",
		},
		{
			name:   "loopback issuer",
			config: &Config{Issuer: "http://localhost:3001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			applySecureDefaults(tt.config, logger)

			if tt.wantWarn == "" {
				if buf.Len() != 0 {
					t.Errorf("unexpected warning: %s", buf.String())
				}
				return
			}
			if !strings.Contains(buf.String(), tt.wantWarn) {
				t.Errorf("log = %q, want warning containing %q", buf.String(), tt.wantWarn)
			}
		})
	}
}

func TestGenerateRandomToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := generateRandomToken()
		if len(token) != 43 {
			t.Fatalf("token length = %d, want 43", len(token))
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}
