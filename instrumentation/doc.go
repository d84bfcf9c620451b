// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the authclient library.
//
// This package enables observability across all library layers through:
// - Metrics: Counters, histograms, and gauges for monitoring token acquisition
// - Traces: Distributed tracing for acquisition flows across components
//
// # Quick Start
//
// Enable basic instrumentation:
//
//	import "github.com/giantswarm/authclient/instrumentation"
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-client-app",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	// Pass to the client configuration
//	cfg.Instrumentation = inst
//
// # Available Metrics
//
// Cache:
//   - auth.cache.lookups{result} - Cache lookups by result (hit, miss, expired, ambiguous)
//   - auth.cache.items - Current number of cached credential items
//   - auth.cache.persistence_failures - Snapshot persistence failures
//
// Token Endpoint:
//   - auth.token.exchanges{grant_type, result} - Token endpoint exchanges
//   - auth.token.exchange.duration{grant_type} - Exchange duration in milliseconds
//
// Flows:
//   - auth.interactive.prompts{result} - Interactive authorization prompts
//   - auth.authority.validations{result} - Authority validations
//   - auth.broker.decrypts{result} - Brokered response decrypt attempts
//
// # Distributed Tracing
//
// Spans are created for all major operations:
//   - Cache operations (get, add_or_update, remove)
//   - Authority validation
//   - Token endpoint exchanges
//   - Silent and interactive acquisition flows
//
// # Performance
//
// When instrumentation is not configured or disabled, no-op providers are
// used and there is no overhead.
//
// # Thread Safety
//
// All instrumentation operations are thread-safe and can be called
// concurrently from multiple goroutines.
//
// # Security Considerations
//
// This package collects observability data, not credentials. Never record
// actual token values, session keys, or decrypted broker payloads in traces
// or metrics. Only record metadata such as grant types, expiry times, family
// IDs, and validation results.
package instrumentation
