package ai

import (
	"context"
	"fmt"

	"saascribe-platform/internal/telemetry"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/attribute"
)

// EmbedDocuments embeds texts for storage in one batch request.
func (gc *GeminiClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gemini.embed_documents")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.model", gc.embeddingModel),
	)

	tokens := 0
	for _, t := range texts {
		tokens += len(t) / 4
	}
	if err := gc.admit(ctx, tokens); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		em := gc.client.EmbeddingModel(gc.embeddingModel)
		em.TaskType = genai.TaskTypeRetrievalDocument

		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		gc.tokenCounter.RecordUsage(tokens, 1)

		vectors := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			if e == nil {
				return nil, fmt.Errorf("no embedding returned for input %d", i)
			}
			vectors[i] = e.Values
		}
		return vectors, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gemini embed documents: %w", err)
	}
	return result.([][]float32), nil
}

// EmbedQuery embeds a search query.
func (gc *GeminiClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "gemini.embed_query")
	defer span.End()

	if err := gc.admit(ctx, len(text)/4); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		em := gc.client.EmbeddingModel(gc.embeddingModel)
		em.TaskType = genai.TaskTypeRetrievalQuery

		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		gc.tokenCounter.RecordUsage(len(text)/4, 1)
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("gemini embed query: %w", err)
	}
	return result.([]float32), nil
}
