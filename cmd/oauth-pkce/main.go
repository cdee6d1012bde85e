// Command oauth-pkce runs the demo authorization server and client
// application of the OAuth 2.1 authorization code flow with PKCE.
package main

func main() {
	Execute()
}
