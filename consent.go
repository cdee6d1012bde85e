package oauth

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/giantswarm/oauth-pkce/security"
	"github.com/giantswarm/oauth-pkce/server"
)

// consentTemplate renders the consent prompt. Every validated parameter is
// carried to the approval endpoint in hidden fields.
const consentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>OAuth 2.1 Authorization</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; }
        .auth-form { border: 1px solid #ddd; padding: 20px; border-radius: 8px; }
        button { background: #007bff; color: white; padding: 10px 20px; border: none; border-radius: 4px; cursor: pointer; }
        button:hover { background: #0056b3; }
        button.deny { background: #dc3545; margin-left: 10px; }
        .info { background: #f8f9fa; padding: 15px; border-radius: 4px; margin-bottom: 20px; }
    </style>
</head>
<body>
    <div class="auth-form">
        <h2>OAuth 2.1 Authorization Request</h2>
        <div class="info">
            <p><strong>Client:</strong> {{.ClientName}}</p>
            <p><strong>Scope:</strong> {{.Scope}}</p>
            <p><strong>PKCE Challenge:</strong> {{.ChallengePreview}}</p>
        </div>
        <p>Do you authorize this application to access your data?</p>
        <form method="post" action="{{.Action}}">
            <input type="hidden" name="client_id" value="{{.ClientID}}">
            <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
            <input type="hidden" name="state" value="{{.State}}">
            <input type="hidden" name="scope" value="{{.Scope}}">
            <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
            <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
            <button type="submit" name="decision" value="approve">Approve</button>
            <button type="submit" name="decision" value="deny" class="deny">Deny</button>
        </form>
    </div>
</body>
</html>
`

var consentPage = template.Must(template.New("consent").Parse(consentTemplate))

type consentData struct {
	*server.ConsentPrompt
	Action string
}

// renderConsent writes the consent prompt as an HTML page
func (h *Handler) renderConsent(w http.ResponseWriter, prompt *server.ConsentPrompt) error {
	var buf bytes.Buffer
	if err := consentPage.Execute(&buf, consentData{ConsentPrompt: prompt, Action: ApprovalPath}); err != nil {
		return err
	}

	security.SetPageSecurityHeaders(w, h.server.Config.Issuer, prompt.RedirectURI)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}
