package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	oauth "github.com/giantswarm/oauth-pkce"
	"github.com/giantswarm/oauth-pkce/security"
)

// Paths served by the Handler
const (
	HomePath     = "/"
	StartPath    = "/start-oauth"
	CallbackPath = "/callback"
)

// StartResponse is the body returned by the start endpoint
type StartResponse struct {
	AuthURL string `json:"authUrl"`
}

// Handler serves the client application endpoints
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler for c
func NewHandler(c *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = c.logger
	}
	return &Handler{client: c, logger: logger}
}

// Routes returns an http.Handler serving the home page, the start endpoint and the callback
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HomePath, h.ServeHome)
	mux.HandleFunc(StartPath, h.ServeStart)
	mux.HandleFunc(CallbackPath, h.ServeCallback)
	return security.RequestIDMiddleware(mux)
}

// ServeHome renders the start page
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != HomePath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.renderPage(w, homePage, homeData{StartPath: StartPath})
}

// ServeStart starts a flow and returns the authorization URL as JSON
func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	authURL, err := h.client.StartFlow(r.Context())
	if err != nil {
		h.logger.Error("Failed to start authorization flow", "error", err)
		h.writeError(w, oauth.ErrorCodeServerError, "Failed to start authorization flow", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, StartResponse{AuthURL: authURL})
}

// ServeCallback completes the flow and renders the issued token and user info
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	result, err := h.client.HandleCallback(r.Context(),
		q.Get("code"), q.Get("state"), q.Get("error"), q.Get("error_description"))
	if err != nil {
		var cbErr *CallbackError
		if !errors.As(err, &cbErr) {
			cbErr = errUpstream("", "Unknown error", err)
		}
		h.writeError(w, cbErr.Code, cbErr.Description, cbErr.Status)
		return
	}

	userInfo, _ := json.MarshalIndent(result.UserInfo, "", "  ")
	details, _ := json.MarshalIndent(result.Token, "", "  ")

	h.renderPage(w, successPage, successData{
		AccessToken:  result.Token.AccessToken,
		UserInfo:     string(userInfo),
		TokenDetails: string(details),
		ExpiresIn:    result.Token.ExpiresIn,
	})
}

func (h *Handler) renderPage(w http.ResponseWriter, page *template.Template, data any) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render page", "page", page.Name(), "error", err)
		h.writeError(w, oauth.ErrorCodeServerError, "Failed to render page", http.StatusInternalServerError)
		return
	}

	security.SetPageSecurityHeaders(w, h.client.Config.RedirectURI)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.client.Config.RedirectURI)
	h.writeJSON(w, status, oauth.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("Failed to write response", "error", err)
	}
}
