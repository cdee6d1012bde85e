// Package oauth serves an OAuth 2.1 authorization server that issues opaque
// bearer tokens through the authorization code grant with mandatory PKCE
// (S256).
//
// The Handler exposes:
//
//	GET  /authorize                               consent prompt
//	POST /authorize/approve                       resource owner decision, 302 to the client
//	POST /token                                   code exchange (JSON or form body)
//	GET  /userinfo                                demo protected resource
//	GET  /.well-known/oauth-authorization-server  RFC 8414 metadata
//
// Protocol rules live in the server package; this package adapts them to
// HTTP, adds per-IP rate limiting, CORS, security headers and request IDs.
//
// Basic usage:
//
//	registry, err := static.LoadFile("clients.yaml", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv, err := oauth.NewServer(registry, &oauth.Config{
//		Issuer: "http://localhost:3001",
//		Logger: logger,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Shutdown(context.Background())
//
//	http.ListenAndServe(":3001", oauth.NewHandler(srv, logger).Routes())
package oauth
