// Package memory provides in-memory implementations of storage.CodeStore,
// storage.TokenStore and storage.SessionStore.
//
// All records live in process memory and are lost on restart. A single
// mutex guards every map, so each read-check-then-write on a record is
// atomic with respect to concurrent callers.
//
// Expiry is lazy: expired codes and tokens are removed when they are next
// accessed. An optional background sweeper (Config.CleanupInterval > 0)
// additionally evicts expired codes and tokens and sessions older than
// Config.SessionTTL. All time comparisons use the injected clockwork.Clock.
package memory
