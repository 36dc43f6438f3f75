package services

import (
	"context"
	"errors"
	"fmt"

	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/quota"
	"saascribe-platform/internal/rag"
	"saascribe-platform/internal/telemetry"
	"saascribe-platform/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PlanReader resolves a user's subscription state.
type PlanReader interface {
	GetPlan(ctx context.Context, userID string) (models.Plan, error)
}

// Answerer is satisfied by *rag.QueryEngine.
type Answerer interface {
	Answer(ctx context.Context, req rag.AnswerRequest) (*rag.Answer, error)
}

// AskResult is the outcome of AskQuestion. When Allowed is false only Reason
// is set and nothing was written to the chat log.
type AskResult struct {
	Allowed bool
	Reason  string
	Tier    quota.Tier
	Answer  *rag.Answer
}

func (r *AskResult) Response() models.AskResponse {
	resp := models.AskResponse{Allowed: r.Allowed, Reason: r.Reason}
	if r.Answer == nil {
		return resp
	}
	resp.Answer = r.Answer.Text
	resp.SearchQuery = r.Answer.SearchQuery
	for _, s := range r.Answer.Sources {
		resp.Sources = append(resp.Sources, models.Source{
			Page:  s.Page,
			Chunk: s.Index,
			Score: s.Score,
			Text:  s.Text,
		})
	}
	return resp
}

type ChatService struct {
	docs    rag.DocumentSource
	history rag.HistoryStore
	plans   PlanReader
	gate    *quota.Gate
	engine  Answerer
	metrics *telemetry.Metrics
}

func NewChatService(docs rag.DocumentSource, history rag.HistoryStore, plans PlanReader, gate *quota.Gate, engine Answerer, metrics *telemetry.Metrics) *ChatService {
	return &ChatService{
		docs:    docs,
		history: history,
		plans:   plans,
		gate:    gate,
		engine:  engine,
		metrics: metrics,
	}
}

// AskQuestion checks the caller's plan, appends the question, answers it and
// appends the answer. A failed answer is recorded as an ai placeholder and the
// error is returned.
func (s *ChatService) AskQuestion(ctx context.Context, documentID, question string) (*AskResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chat.ask")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}
	log := logger.FromContext(ctx).With("document_id", documentID)

	if _, err := s.docs.GetDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetPlan(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	history, err := s.history.LoadHistory(ctx, ownerID, documentID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	decision := s.gate.CheckQuestion(countHuman(history), plan.HasActiveMembership)
	s.metrics.RecordQuestion(ctx, string(decision.Tier), decision.Allowed)
	if !decision.Allowed {
		log.Info("question denied by plan", "tier", decision.Tier, "limit", decision.Limit)
		return &AskResult{Allowed: false, Reason: decision.Reason, Tier: decision.Tier}, nil
	}

	if err := s.history.AppendMessage(ctx, &models.ChatMessage{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       models.RoleHuman,
		Message:    question,
	}); err != nil {
		return nil, fmt.Errorf("append question: %w", err)
	}

	answer, err := s.engine.Answer(ctx, rag.AnswerRequest{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Question:   question,
		History:    history,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answer failed")
		log.Error("answering failed", "error", err)
		s.appendFailure(ctx, ownerID, documentID, err)
		return nil, err
	}

	if err := s.history.AppendMessage(ctx, &models.ChatMessage{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       models.RoleAI,
		Message:    answer.Text,
	}); err != nil {
		return nil, fmt.Errorf("append answer: %w", err)
	}

	return &AskResult{Allowed: true, Tier: decision.Tier, Answer: answer}, nil
}

// History returns the caller's conversation about a document.
func (s *ChatService) History(ctx context.Context, documentID string) ([]models.ChatMessage, error) {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}
	if _, err := s.docs.GetDocument(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.history.LoadHistory(ctx, ownerID, documentID)
}

func (s *ChatService) appendFailure(ctx context.Context, ownerID, documentID string, cause error) {
	msg := &models.ChatMessage{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       models.RoleAI,
		Message:    models.FailurePrefix + FailureReason(cause),
		Failed:     true,
	}
	if err := s.history.AppendMessage(context.WithoutCancel(ctx), msg); err != nil {
		logger.FromContext(ctx).Warn("failed to record failure placeholder", "error", err)
	}
}

// FailureReason is the user-facing explanation for a failed answer.
func FailureReason(err error) string {
	var ie *rag.IngestionError
	switch {
	case errors.As(err, &ie):
		return ie.Unwrap()[0].Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "answering took too long, please try again"
	default:
		return "something went wrong while answering, please try again"
	}
}

func countHuman(history []models.ChatMessage) int {
	n := 0
	for _, m := range history {
		if m.Role == models.RoleHuman {
			n++
		}
	}
	return n
}
