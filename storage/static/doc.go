// Package static provides a read-only storage.ClientRegistry backed by a
// fixed list of client registrations, typically loaded from a YAML file:
//
//	clients:
//	  - client_id: demo-client
//	    client_secret_hash: $2a$10$...
//	    display_name: Demo OAuth Client
//	    redirect_uris:
//	      - http://localhost:3000/callback
//
// Environment variables in the file are expanded before parsing. A plain
// client_secret is accepted for local development and hashed with bcrypt at
// load time; the plaintext is never retained. Redirect URIs are matched
// exactly.
package static
