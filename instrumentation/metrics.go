package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the token acquisition library
type Metrics struct {
	// Cache Metrics
	CacheLookups             metric.Int64Counter
	CacheItemsCount          metric.Int64ObservableGauge
	CachePersistenceFailures metric.Int64Counter

	// Token Endpoint Metrics
	TokenExchanges        metric.Int64Counter
	TokenExchangeDuration metric.Float64Histogram

	// Flow Metrics
	InteractivePrompts  metric.Int64Counter
	AuthorityValidation metric.Int64Counter
	BrokerDecrypts      metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	cacheMeter := inst.Meter("cache")
	endpointMeter := inst.Meter("endpoint")
	flowMeter := inst.Meter("flow")

	// Cache Metrics
	var err error
	m.CacheLookups, err = cacheMeter.Int64Counter(
		"auth.cache.lookups",
		metric.WithDescription("Total number of token cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.lookups counter: %w", err)
	}

	m.CacheItemsCount, err = cacheMeter.Int64ObservableGauge(
		"auth.cache.items",
		metric.WithDescription("Current number of cached credential items"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.items gauge: %w", err)
	}

	m.CachePersistenceFailures, err = cacheMeter.Int64Counter(
		"auth.cache.persistence_failures",
		metric.WithDescription("Number of failed cache snapshot persistence attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.persistence_failures counter: %w", err)
	}

	// Token Endpoint Metrics
	m.TokenExchanges, err = endpointMeter.Int64Counter(
		"auth.token.exchanges",
		metric.WithDescription("Total number of token endpoint exchanges"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.exchanges counter: %w", err)
	}

	m.TokenExchangeDuration, err = endpointMeter.Float64Histogram(
		"auth.token.exchange.duration",
		metric.WithDescription("Token endpoint exchange duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.exchange.duration histogram: %w", err)
	}

	// Flow Metrics
	m.InteractivePrompts, err = flowMeter.Int64Counter(
		"auth.interactive.prompts",
		metric.WithDescription("Number of interactive authorization prompts"),
		metric.WithUnit("{prompt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interactive.prompts counter: %w", err)
	}

	m.AuthorityValidation, err = flowMeter.Int64Counter(
		"auth.authority.validations",
		metric.WithDescription("Number of authority validation attempts"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authority.validations counter: %w", err)
	}

	m.BrokerDecrypts, err = flowMeter.Int64Counter(
		"auth.broker.decrypts",
		metric.WithDescription("Number of brokered response decrypt attempts"),
		metric.WithUnit("{decrypt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker.decrypts counter: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordCacheLookup records a token cache lookup.
// Result is one of "hit", "miss", "expired", "ambiguous".
func (m *Metrics) RecordCacheLookup(ctx context.Context, result string) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordPersistenceFailure records a failed cache snapshot persistence attempt
func (m *Metrics) RecordPersistenceFailure(ctx context.Context) {
	m.CachePersistenceFailures.Add(ctx, 1)
}

// RecordTokenExchange records a token endpoint exchange
func (m *Metrics) RecordTokenExchange(ctx context.Context, grantType, result string, durationMs float64) {
	m.TokenExchanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
		attribute.String("result", result),
	))
	m.TokenExchangeDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("grant_type", grantType),
	))
}

// RecordInteractivePrompt records an interactive authorization prompt
func (m *Metrics) RecordInteractivePrompt(ctx context.Context, result string) {
	m.InteractivePrompts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordAuthorityValidation records an authority validation attempt
func (m *Metrics) RecordAuthorityValidation(ctx context.Context, result string) {
	m.AuthorityValidation.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordBrokerDecrypt records a brokered response decrypt attempt
func (m *Metrics) RecordBrokerDecrypt(ctx context.Context, protocolVersion string, success bool) {
	m.BrokerDecrypts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("protocol_version", protocolVersion),
		attribute.Bool("success", success),
	))
}
