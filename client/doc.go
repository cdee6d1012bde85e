// Package client implements the client side of the authorization code flow
// with PKCE.
//
// The Client starts flows by generating a state value and a PKCE pair,
// remembering the code_verifier in a storage.SessionStore, and building the
// authorization URL. When the authorization server redirects back, the
// Client consumes the session for the returned state, exchanges the code
// with the recovered verifier and calls the userinfo endpoint with the
// issued bearer token.
//
// Outbound calls use golang.org/x/oauth2 with client_secret_post
// authentication and a bounded timeout. Failures are reported, never retried.
//
// Basic usage:
//
//	store := memory.New()
//	c, err := client.New(store, &client.Config{
//		AuthServerURL: "http://localhost:3001",
//		ClientID:      "demo-client",
//		ClientSecret:  "demo-secret",
//		RedirectURI:   "http://localhost:3000/callback",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":3000", client.NewHandler(c, nil).Routes())
package client
