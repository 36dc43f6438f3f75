package rag

import (
	"context"
	"errors"

	"saascribe-platform/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

const defaultTopK = 4

// EnsureIndexer is satisfied by *Ingestor.
type EnsureIndexer interface {
	EnsureIndexed(ctx context.Context, ownerID, documentID string) (*Namespace, error)
}

// QueryEngine answers a question about one document.
type QueryEngine struct {
	ingestor EnsureIndexer
	index    *Index
	synth    *Synthesizer
	topK     int
	metrics  *telemetry.Metrics
}

func NewQueryEngine(ingestor EnsureIndexer, index *Index, synth *Synthesizer, topK int, metrics *telemetry.Metrics) *QueryEngine {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &QueryEngine{
		ingestor: ingestor,
		index:    index,
		synth:    synth,
		topK:     topK,
		metrics:  metrics,
	}
}

// Answer indexes the document if needed, retrieves context for the question
// (rephrased against the history when there is one) and synthesizes a reply.
// Nothing is persisted.
func (q *QueryEngine) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	if req.OwnerID == "" {
		return nil, ErrAuth
	}

	ctx, span := telemetry.Tracer().Start(ctx, "rag.answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", req.DocumentID),
		attribute.Int("rag.history_messages", len(req.History)),
	)

	answer, err := q.answer(ctx, req)
	if err != nil {
		span.RecordError(err)
		var ue *UpstreamError
		if errors.As(err, &ue) {
			q.metrics.RecordUpstreamError(ctx, ue.Service, ue.Op)
		}
		return nil, err
	}
	return answer, nil
}

func (q *QueryEngine) answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	ns, err := q.ingestor.EnsureIndexed(ctx, req.OwnerID, req.DocumentID)
	if err != nil {
		return nil, err
	}

	query, err := q.synth.Rephrase(ctx, req.Question, req.History)
	if err != nil {
		return nil, err
	}

	hits, err := q.index.Search(ctx, ns.Name, query, q.topK)
	if err != nil {
		return nil, err
	}

	text, err := q.synth.Answer(ctx, req.Question, req.History, hits)
	if err != nil {
		return nil, err
	}

	return &Answer{Text: text, SearchQuery: query, Sources: hits}, nil
}
