// Package pkce implements Proof Key for Code Exchange (RFC 7636) for the
// authorization code flow.
//
// Only the S256 transformation is supported. The "plain" method is rejected
// everywhere, as required by OAuth 2.1.
//
// Generating a pair on the client side:
//
//	pair := pkce.Generate()
//	// store pair.Verifier under the OAuth state
//	// send pair.Challenge and pkce.MethodS256 to /authorize
//
// Verifying on the server side during the token exchange:
//
//	if !pkce.Verify(storedChallenge, verifierFromRequest) {
//	    // invalid_grant
//	}
package pkce
