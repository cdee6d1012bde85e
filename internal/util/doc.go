// Package util holds small helpers shared by the authorization server and the
// client application.
//
// Key utilities:
//   - SafeTruncate: shortens secrets (codes, tokens, verifiers) to a log-safe prefix
//   - Preview: shortens a value for display, marking the cut with an ellipsis
//   - IsLoopbackHost, IsLoopbackURL: recognize localhost and loopback IPs
package util
