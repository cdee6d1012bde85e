package client

import "html/template"

const homeTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>OAuth 2.1 Client Demo</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; line-height: 1.6; }
        .container { border: 1px solid #ddd; padding: 30px; border-radius: 8px; background: #f8f9fa; }
        button { background: #007bff; color: white; padding: 12px 24px; border: none; border-radius: 4px; cursor: pointer; font-size: 16px; margin: 10px 0; }
        button:hover { background: #0056b3; }
        .info { background: white; padding: 20px; border-radius: 4px; margin: 20px 0; border-left: 4px solid #007bff; }
        .step { margin: 15px 0; }
        .code { background: #f1f3f4; padding: 2px 6px; border-radius: 3px; font-family: monospace; }
        .error { color: red; }
    </style>
</head>
<body>
    <div class="container">
        <h1>OAuth 2.1 Client Application Demo</h1>
        <div class="info">
            <h3>OAuth 2.1 Features Demonstrated:</h3>
            <ul>
                <li><strong>PKCE (Proof Key for Code Exchange):</strong> Required for all OAuth flows</li>
                <li><strong>Authorization Code Flow:</strong> Secure three-legged OAuth flow</li>
                <li><strong>No Implicit Grant:</strong> OAuth 2.1 removes the less secure implicit flow</li>
                <li><strong>State Parameter:</strong> CSRF protection</li>
                <li><strong>Secure Redirect URIs:</strong> Exact match required</li>
            </ul>
        </div>
        <div class="step">
            <h3>Step 1: Start OAuth 2.1 Authorization Flow</h3>
            <p>Click the button below to initiate the OAuth 2.1 authorization flow with PKCE.</p>
            <button id="start">Start OAuth 2.1 Flow</button>
        </div>
        <div class="step">
            <h3>OAuth 2.1 Flow Steps:</h3>
            <ol>
                <li>Generate PKCE <span class="code">code_verifier</span> and <span class="code">code_challenge</span></li>
                <li>Redirect to authorization server with <span class="code">code_challenge</span></li>
                <li>User authorizes the application</li>
                <li>Authorization server redirects back with <span class="code">authorization_code</span></li>
                <li>Exchange code for access token using <span class="code">code_verifier</span></li>
                <li>Use access token to access protected resources</li>
            </ol>
        </div>
        <div id="result"></div>
    </div>
    <script>
        document.getElementById('start').addEventListener('click', function () {
            var result = document.getElementById('result');
            fetch('{{.StartPath}}', { method: 'POST' })
                .then(function (response) { return response.json(); })
                .then(function (data) {
                    if (data.authUrl) {
                        window.location.href = data.authUrl;
                    } else {
                        result.textContent = 'Error: ' + JSON.stringify(data);
                        result.className = 'error';
                    }
                })
                .catch(function (error) {
                    result.textContent = 'Error: ' + error;
                    result.className = 'error';
                });
        });
    </script>
</body>
</html>
`

const successTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>OAuth 2.1 Success</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; line-height: 1.6; }
        .success { border: 1px solid #28a745; padding: 30px; border-radius: 8px; background: #d4edda; color: #155724; }
        .data { background: white; padding: 20px; border-radius: 4px; margin: 20px 0; border: 1px solid #ddd; }
        .token { background: #f8f9fa; padding: 10px; border-radius: 3px; font-family: monospace; word-break: break-all; border: 1px solid #e9ecef; }
        a.button { background: #007bff; color: white; padding: 10px 20px; border-radius: 4px; text-decoration: none; display: inline-block; }
    </style>
</head>
<body>
    <div class="success">
        <h1>OAuth 2.1 Authorization Successful!</h1>
        <div class="data">
            <h3>Access Token:</h3>
            <div class="token">{{.AccessToken}}</div>
        </div>
        <div class="data">
            <h3>User Information:</h3>
            <pre>{{.UserInfo}}</pre>
        </div>
        <div class="data">
            <h3>Token Details:</h3>
            <pre>{{.TokenDetails}}</pre>
        </div>
        <div class="data">
            <h3>OAuth 2.1 Security Features Used:</h3>
            <ul>
                <li><strong>PKCE:</strong> Code verifier and challenge protected the authorization code exchange</li>
                <li><strong>State Parameter:</strong> Protected against CSRF attacks</li>
                <li><strong>Secure Redirect:</strong> Exact redirect URI matching enforced</li>
                <li><strong>Authorization Code Flow:</strong> Most secure OAuth flow (no implicit grant)</li>
                <li><strong>Short-lived Tokens:</strong> Access token expires in {{.ExpiresIn}} seconds</li>
            </ul>
        </div>
        <a class="button" href="/">Start New Flow</a>
    </div>
</body>
</html>
`

var (
	homePage    = template.Must(template.New("home").Parse(homeTemplate))
	successPage = template.Must(template.New("success").Parse(successTemplate))
)

type homeData struct {
	StartPath string
}

type successData struct {
	AccessToken  string
	UserInfo     string
	TokenDetails string
	ExpiresIn    int64
}
