// Package storage defines the store interfaces and record types of the
// authorization code flow.
//
// Each store is owned by exactly one engine:
//   - ClientRegistry: static client registrations (authorization and token engines)
//   - CodeStore: issued authorization codes (authorization and token engines)
//   - TokenStore: issued access tokens (token engine and resource guard)
//   - SessionStore: client-side state to verifier mapping (client flow driver)
//
// Every read-check-then-write on a single record happens inside the store
// under its lock. RedeemAuthorizationCode, ValidateAccessToken and
// ConsumeSession are the atomic primitives the engines build on.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory code, token and session stores
//   - storage/static: client registry loaded from a YAML file
package storage
