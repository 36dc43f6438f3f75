package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"saascribe-platform/internal/auth"
	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/queue"
	"saascribe-platform/internal/quota"
	"saascribe-platform/internal/rag"
	"saascribe-platform/models"

	"github.com/google/uuid"
)

var ErrNotPDF = errors.New("file is not a valid PDF document")

// DeniedError is a plan restriction on a document operation.
type DeniedError struct {
	Code   string
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

const (
	CodePlanLimitReached = "plan_limit_reached"
	CodePlanForbidden    = "plan_forbidden"
)

// DocumentStore is implemented by database.DocumentRepository.
type DocumentStore interface {
	rag.DocumentSource
	Create(ctx context.Context, doc *models.Document) error
	List(ctx context.Context, ownerID string) ([]models.Document, error)
	Count(ctx context.Context, ownerID string) (int64, error)
	Delete(ctx context.Context, ownerID, documentID string) error
}

// ObjectStore is implemented by FileStorage.
type ObjectStore interface {
	rag.URLSigner
	Put(ctx context.Context, key string, r io.Reader, maxBytes int64) (int64, error)
	Delete(ctx context.Context, key string) error
}


type DocumentService struct {
	docs     DocumentStore
	objects  ObjectStore
	plans    PlanReader
	gate     *quota.Gate
	indexer  rag.EnsureIndexer
	enqueuer queue.Enqueuer
	maxSize  int64
}

// NewDocumentService wires document management. When enqueuer is nil,
// uploads are indexed synchronously.
func NewDocumentService(docs DocumentStore, objects ObjectStore, plans PlanReader, gate *quota.Gate, indexer rag.EnsureIndexer, enqueuer queue.Enqueuer, maxSize int64) *DocumentService {
	return &DocumentService{
		docs:     docs,
		objects:  objects,
		plans:    plans,
		gate:     gate,
		indexer:  indexer,
		enqueuer: enqueuer,
		maxSize:  maxSize,
	}
}

// Upload stores a PDF, records it and starts indexing. An indexing failure
// does not fail the upload; it is reflected in the returned document's
// IndexStatus and retried on the next question.
func (s *DocumentService) Upload(ctx context.Context, filename string, r io.Reader) (*models.DocumentResponse, error) {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}

	plan, err := s.plans.GetPlan(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	count, err := s.docs.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if d := s.gate.CheckUpload(int(count), plan.HasActiveMembership); !d.Allowed {
		return nil, &DeniedError{Code: CodePlanLimitReached, Reason: d.Reason}
	}

	br := bufio.NewReader(r)
	if magic, err := br.Peek(4); err != nil || !bytes.Equal(magic, []byte("%PDF")) {
		return nil, ErrNotPDF
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        cleanFilename(filename),
		ContentType: "application/pdf",
		IndexStatus: models.IndexStatusNotIndexed,
	}
	doc.StorageKey = DocumentKey(ownerID, doc.ID)

	size, err := s.objects.Put(ctx, doc.StorageKey, br, s.maxSize)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	doc.Size = size

	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), doc.StorageKey); delErr != nil {
			logger.FromContext(ctx).Warn("failed to clean up stored upload", "key", doc.StorageKey, "error", delErr)
		}
		return nil, err
	}

	log := logger.FromContext(ctx).With("document_id", doc.ID)
	log.Info("document uploaded", "size", size)

	if s.enqueuer != nil {
		if err := queue.EnqueueIndex(ctx, s.enqueuer, ownerID, doc.ID); err != nil {
			log.Error("failed to enqueue indexing", "error", err)
		}
	} else if _, err := s.indexer.EnsureIndexed(ctx, ownerID, doc.ID); err != nil {
		log.Warn("indexing after upload failed", "error", err)
	}

	return s.response(ctx, ownerID, doc.ID)
}

func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}
	return s.docs.List(ctx, ownerID)
}

// Get returns the document with a fresh download URL.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*models.DocumentResponse, error) {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}
	return s.response(ctx, ownerID, documentID)
}

func (s *DocumentService) response(ctx context.Context, ownerID, documentID string) (*models.DocumentResponse, error) {
	doc, err := s.docs.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	resp := &models.DocumentResponse{Document: *doc}
	if doc.StorageKey != "" {
		if u, err := s.objects.SignedURL(doc.StorageKey); err == nil {
			resp.DownloadURL = u
		}
	}
	return resp, nil
}

// Delete removes the document and its stored bytes. Only pro users may
// delete. The embedding namespace and the chat log are left orphaned.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return rag.ErrAuth
	}

	plan, err := s.plans.GetPlan(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if d := s.gate.CanDelete(plan.HasActiveMembership); !d.Allowed {
		return &DeniedError{Code: CodePlanForbidden, Reason: d.Reason}
	}

	doc, err := s.docs.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, ownerID, documentID); err != nil {
		return err
	}

	log := logger.FromContext(ctx).With("document_id", documentID)
	if err := s.objects.Delete(ctx, doc.StorageKey); err != nil {
		log.Warn("failed to delete stored object", "error", err)
	}
	return nil
}

// EnsureIndexed indexes the caller's document if it is not indexed yet.
func (s *DocumentService) EnsureIndexed(ctx context.Context, documentID string) (*rag.Namespace, error) {
	return s.indexer.EnsureIndexed(ctx, auth.UserIDFromContext(ctx), documentID)
}

// Plan summarises the caller's subscription and allowances.
func (s *DocumentService) Plan(ctx context.Context) (*models.PlanResponse, error) {
	ownerID := auth.UserIDFromContext(ctx)
	if ownerID == "" {
		return nil, rag.ErrAuth
	}

	plan, err := s.plans.GetPlan(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	count, err := s.docs.Count(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	active := plan.HasActiveMembership
	return &models.PlanResponse{
		HasActiveMembership: active,
		Tier:                string(quota.TierFor(active)),
		QuestionLimit:       s.gate.QuestionLimit(active),
		DocumentLimit:       s.gate.DocumentLimit(active),
		DocumentCount:       count,
		CanDelete:           s.gate.CanDelete(active).Allowed,
	}, nil
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
