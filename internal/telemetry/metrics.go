package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
	QuestionsAsked      metric.Int64Counter
	QuestionsDenied     metric.Int64Counter
	IngestionDuration   metric.Float64Histogram
	IngestionChunks     metric.Int64Counter
	UpstreamErrors      metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("saascribe-platform")
	m := &Metrics{}
	var err error

	if m.RequestCounter, err = meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.TokensUsed, err = meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	); err != nil {
		return nil, err
	}

	if m.CircuitBreakerState, err = meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	); err != nil {
		return nil, err
	}

	if m.QuestionsAsked, err = meter.Int64Counter(
		"questions.asked",
		metric.WithDescription("Questions accepted by the quota gate"),
	); err != nil {
		return nil, err
	}

	if m.QuestionsDenied, err = meter.Int64Counter(
		"questions.denied",
		metric.WithDescription("Questions rejected by the quota gate"),
	); err != nil {
		return nil, err
	}

	if m.IngestionDuration, err = meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.IngestionChunks, err = meter.Int64Counter(
		"ingestion.chunks",
		metric.WithDescription("Chunks embedded and indexed"),
	); err != nil {
		return nil, err
	}

	if m.UpstreamErrors, err = meter.Int64Counter(
		"upstream.errors",
		metric.WithDescription("Failures reported by the vector store or model provider"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)

	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(ctx context.Context, tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(ctx, tokens, metric.WithAttributes(
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

// RecordQuestion counts a quota decision for the given tier.
func (m *Metrics) RecordQuestion(ctx context.Context, tier string, allowed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("plan.tier", tier))
	if allowed {
		m.QuestionsAsked.Add(ctx, 1, attrs)
		return
	}
	m.QuestionsDenied.Add(ctx, 1, attrs)
}

// RecordIngestion records one completed or failed ingestion run.
func (m *Metrics) RecordIngestion(ctx context.Context, duration float64, chunks int, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("ingestion.status", status))
	m.IngestionDuration.Record(ctx, duration, attrs)
	if chunks > 0 {
		m.IngestionChunks.Add(ctx, int64(chunks), attrs)
	}
}

// RecordUpstreamError counts a failed call against an external service.
func (m *Metrics) RecordUpstreamError(ctx context.Context, service, op string) {
	if m == nil {
		return
	}
	m.UpstreamErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", op),
	))
}
