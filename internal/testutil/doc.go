// Package testutil provides shared fixtures for the oauth-pkce tests: a fake
// clock, a registry holding the demo client, PKCE pairs and small assertion
// helpers.
package testutil
