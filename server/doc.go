// Package server implements the protocol engines of the authorization server.
//
// The Server type carries three engines that share one set of stores:
//   - Authorization: BeginAuthorization validates an authorization request and
//     produces a consent prompt; DecideAuthorization turns the user's decision
//     into a redirect carrying a fresh single-use code or an access_denied error.
//   - Token: ExchangeAuthorizationCode authenticates the client, atomically
//     redeems the code, verifies the PKCE code_verifier and issues an opaque
//     bearer token.
//   - Resource guard: AuthorizeRequest validates an Authorization header and
//     returns the demo principal bound to the token.
//
// Every failure is returned as an *Error carrying the OAuth error code and the
// HTTP status the caller should respond with. Details that could help an
// attacker (why a code was rejected) stay in debug logs and the audit log.
//
// Example usage:
//
//	registry, _ := static.LoadFile("clients.yaml", logger)
//	store := memory.New()
//
//	srv, err := server.New(registry, store, store, &server.Config{
//	    Issuer: "http://localhost:3001",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
package server
