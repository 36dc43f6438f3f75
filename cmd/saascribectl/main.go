// Command saascribectl runs maintenance operations against the production
// stores: minting session tokens and forcing or inspecting ingestion.
package main

import (
	"context"
	"fmt"
	"os"

	"saascribe-platform/internal/app"
	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/config"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/rag"
	"saascribe-platform/models"
)

func main() {
	if err := newRootCmd(openBackend).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// liveBackend serves commands from the assembled application.
type liveBackend struct {
	app    *app.App
	tokens *auth.TokenManager
}

func openBackend(ctx context.Context) (backend, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.InitLogger(cfg)

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, a.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	return &liveBackend{app: a, tokens: tokens}, nil
}

func (b *liveBackend) IssueToken(ctx context.Context, userID, email string) (*auth.TokenPair, error) {
	return b.tokens.IssueTokenPair(ctx, userID, email)
}

func (b *liveBackend) EnsureIndexed(ctx context.Context, ownerID, documentID string) (*rag.Namespace, error) {
	return b.app.Ingestor.EnsureIndexed(ctx, ownerID, documentID)
}

func (b *liveBackend) Status(ctx context.Context, documentID string) (*models.Document, rag.NamespaceStats, error) {
	doc, err := b.app.Store.Documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, rag.NamespaceStats{}, err
	}
	stats, err := b.app.Index.Stats(ctx, documentID)
	if err != nil {
		return nil, rag.NamespaceStats{}, err
	}
	return doc, stats, nil
}

func (b *liveBackend) Close() {
	b.app.Close()
}
