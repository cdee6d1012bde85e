// Package security provides the cross-cutting protections used by the
// authorization server and the client application: audit logging with
// hashed identifiers, per-IP rate limiting, security response headers,
// request ID propagation, client IP extraction and clock-based expiry checks.
//
// # Rate Limiting
//
// RateLimiter keeps one token bucket per identifier (usually the client IP)
// and bounds memory with LRU eviction. Idle buckets are removed by a background
// cleanup loop.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientIP) {
//	    return http.StatusTooManyRequests
//	}
//
// # Expiry
//
// Authorization codes and access tokens expire exactly at their expiry
// instant. IsExpired treats now >= expiresAt as expired and applies no grace
// period.
package security
