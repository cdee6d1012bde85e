package client

import (
	"fmt"
	"net/http"

	"github.com/giantswarm/oauth-pkce/server"
)

// CallbackError is a failed callback. Status is the HTTP status the client
// handler answers with; Code and Description follow the OAuth error format.
type CallbackError struct {
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// errAuthorizationFailed reports an error returned by the authorization server in the redirect
func errAuthorizationFailed(code, description string) *CallbackError {
	if description == "" {
		description = "Authorization failed"
	}
	return &CallbackError{Status: http.StatusBadRequest, Code: code, Description: description}
}

func errMissingParameters() *CallbackError {
	return &CallbackError{
		Status:      http.StatusBadRequest,
		Code:        server.ErrorCodeInvalidRequest,
		Description: "Missing code or state parameter",
	}
}

func errInvalidState(err error) *CallbackError {
	return &CallbackError{
		Status:      http.StatusBadRequest,
		Code:        server.ErrorCodeInvalidState,
		Description: "Invalid state parameter",
		Err:         err,
	}
}

// errUpstream reports a failed call to the authorization server
func errUpstream(code, description string, err error) *CallbackError {
	if code == "" {
		code = server.ErrorCodeServerError
	}
	if description == "" {
		description = "Unknown error"
	}
	return &CallbackError{Status: http.StatusBadGateway, Code: code, Description: description, Err: err}
}
