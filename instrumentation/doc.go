// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the
// authorization server, its stores, and the client flow driver.
//
// When Config.Enabled is false the package hands out no-op providers, so callers
// never need to nil-check a tracer or meter. When enabled, SDK tracer and meter
// providers are created. Spans are only exported if a SpanProcessor is supplied,
// and metrics are only collected if a MetricReader is supplied.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "oauth-pkce",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//		MetricReader:   sdkmetric.NewManualReader(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Available Metrics
//
// HTTP Layer:
//   - oauth.http.requests.total{method, endpoint, status} - Total HTTP requests
//   - oauth.http.request.duration{endpoint} - Request duration in milliseconds
//
// Authorization Server:
//   - oauth.authorization.started{client_id} - Consent prompts rendered
//   - oauth.authorization.decided{client_id, decision} - Consent decisions
//   - oauth.code.issued{client_id} - Authorization codes minted
//   - oauth.code.exchanged{client_id, pkce_method} - Codes exchanged for tokens
//   - oauth.token.validated{result} - Bearer token checks
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type} - Rate limit violations
//   - oauth.pkce.validation_failed{reason} - PKCE failures at the token endpoint
//   - oauth.code.reuse_detected - Redemption attempts on used codes
//   - oauth.client.auth_failed{client_id} - Client authentication failures
//   - oauth.audit.events.total{event_type} - Audit events emitted
//
// Storage:
//   - storage.operation.total{operation, result} - Store operations
//   - storage.operation.duration{operation} - Store operation duration in milliseconds
//   - storage.codes.count - Authorization codes currently held
//   - storage.tokens.count - Access tokens currently held
//   - storage.sessions.count - Client sessions currently held
//
// Client:
//   - oauth.client.flow.started - Flows started by the client
//   - oauth.client.callback.processed{result} - Callbacks handled by the client
//
// # Security
//
// Never put authorization codes, access tokens, verifiers or client secrets
// into span attributes or metric labels. Use the Attr* keys in this package for
// metadata only.
package instrumentation
