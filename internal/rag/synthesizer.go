package rag

import (
	"context"
	"strings"

	"saascribe-platform/internal/telemetry"
	"saascribe-platform/models"

	"go.opentelemetry.io/otel/attribute"
)

// Synthesizer talks to the chat model: it rewrites follow-up questions into
// standalone search queries and answers from retrieved context.
type Synthesizer struct {
	model  ChatModel
	window int
}

// NewSynthesizer returns a Synthesizer that passes at most window history
// messages to the model. window <= 0 passes the whole conversation.
func NewSynthesizer(model ChatModel, window int) *Synthesizer {
	return &Synthesizer{model: model, window: window}
}

// Rephrase returns question unchanged when there is no history.
func (s *Synthesizer) Rephrase(ctx context.Context, question string, history []models.ChatMessage) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "rag.rephrase")
	defer span.End()

	out, err := s.model.Complete(ctx, CompletionRequest{
		History: toTurns(history, s.window),
		Prompt:  buildRephrasePrompt(question),
	})
	if err != nil {
		span.RecordError(err)
		return "", upstream(ServiceModel, "rephrase", err)
	}

	query := strings.TrimSpace(out)
	if query == "" {
		return question, nil
	}
	return query, nil
}

// Answer synthesizes a reply grounded in chunks. With no chunks the model is
// not called and InsufficientContextAnswer is returned.
func (s *Synthesizer) Answer(ctx context.Context, question string, history []models.ChatMessage, chunks []ScoredChunk) (string, error) {
	if len(chunks) == 0 {
		return InsufficientContextAnswer, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "rag.synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rag.context_chunks", len(chunks)),
		attribute.Int("rag.history_messages", len(history)),
	)

	out, err := s.model.Complete(ctx, CompletionRequest{
		System:  buildAnswerSystem(chunks),
		History: toTurns(history, s.window),
		Prompt:  question,
	})
	if err != nil {
		span.RecordError(err)
		return "", upstream(ServiceModel, "complete", err)
	}

	answer := strings.TrimSpace(out)
	if answer == "" {
		return InsufficientContextAnswer, nil
	}
	return answer, nil
}
