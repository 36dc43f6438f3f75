package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/rag"
)

const (
	TaskIndexDocument = "document:index"
)

type DocumentIndexPayload struct {
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
}

func NewDocumentIndexTask(ownerID, documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentIndexPayload{
		OwnerID:    ownerID,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
		asynq.TaskID("index:"+documentID),
	), nil
}

// Enqueuer is the subset of *asynq.Client used to schedule indexing.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueIndex schedules background indexing. A task already queued for the
// same document is not an error.
func EnqueueIndex(ctx context.Context, client Enqueuer, ownerID, documentID string) error {
	task, err := NewDocumentIndexTask(ownerID, documentID)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue index task: %w", err)
	}
	return nil
}

type TaskProcessor struct {
	indexer rag.EnsureIndexer
}

func NewTaskProcessor(indexer rag.EnsureIndexer) *TaskProcessor {
	return &TaskProcessor{indexer: indexer}
}

// Register wires every handler into mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIndexDocument, p.ProcessDocumentIndex)
}

func (p *TaskProcessor) ProcessDocumentIndex(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	log := logger.FromContext(ctx).With("document_id", payload.DocumentID, "owner_id", payload.OwnerID)
	log.Info("indexing document")

	ns, err := p.indexer.EnsureIndexed(ctx, payload.OwnerID, payload.DocumentID)
	if err != nil {
		if rag.Permanent(err) {
			log.Warn("indexing failed permanently", "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	log.Info("document indexed", "records", ns.RecordCount)
	return nil
}
