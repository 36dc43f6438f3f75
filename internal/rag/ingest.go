package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saascribe-platform/internal/logger"
	"saascribe-platform/internal/telemetry"
	"saascribe-platform/models"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const defaultLockTTL = 10 * time.Minute

// Ingestor makes sure a document's namespace is populated exactly once.
type Ingestor struct {
	docs      DocumentSource
	fetcher   Fetcher
	segmenter *Segmenter
	index     *Index
	locker    Locker
	states    IndexStateRecorder
	metrics   *telemetry.Metrics
	lockTTL   time.Duration

	group singleflight.Group
}

type IngestorOption func(*Ingestor)

// WithStateRecorder persists NotIndexed/Indexing/Indexed/Failed transitions.
func WithStateRecorder(r IndexStateRecorder) IngestorOption {
	return func(i *Ingestor) { i.states = r }
}

func WithIngestMetrics(m *telemetry.Metrics) IngestorOption {
	return func(i *Ingestor) { i.metrics = m }
}

func WithLockTTL(ttl time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if ttl > 0 {
			i.lockTTL = ttl
		}
	}
}

func NewIngestor(docs DocumentSource, fetcher Fetcher, segmenter *Segmenter, index *Index, locker Locker, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		docs:      docs,
		fetcher:   fetcher,
		segmenter: segmenter,
		index:     index,
		locker:    locker,
		lockTTL:   defaultLockTTL,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// EnsureIndexed returns the document's namespace, ingesting the document
// first unless a completed ingestion is on record. Concurrent calls for one
// document run a single ingestion.
func (i *Ingestor) EnsureIndexed(ctx context.Context, ownerID, documentID string) (*Namespace, error) {
	if ownerID == "" {
		return nil, ErrAuth
	}

	doc, err := i.load(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	if ns, err := i.completed(ctx, doc); err != nil || ns != nil {
		return ns, err
	}

	v, err, shared := i.group.Do(doc.ID, func() (interface{}, error) {
		return i.ingestLocked(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Joined in-flight ingestion", "document_id", doc.ID)
	}
	return v.(*Namespace), nil
}

func (i *Ingestor) load(ctx context.Context, ownerID, documentID string) (*models.Document, error) {
	doc, err := i.docs.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

// completed returns the namespace only when it belongs to a finished
// ingestion. With a state recorder that means the document is marked
// indexed; records under any other state may still be in flight. Without a
// recorder a non-empty namespace is all there is to go on.
func (i *Ingestor) completed(ctx context.Context, doc *models.Document) (*Namespace, error) {
	if i.states != nil && doc.IndexStatus != models.IndexStatusIndexed {
		return nil, nil
	}
	return i.existing(ctx, doc.ID)
}

func (i *Ingestor) existing(ctx context.Context, namespace string) (*Namespace, error) {
	stats, err := i.index.Stats(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if stats.RecordCount > 0 {
		return &Namespace{Name: namespace, RecordCount: stats.RecordCount}, nil
	}
	return nil, nil
}

func (i *Ingestor) ingestLocked(ctx context.Context, doc *models.Document) (*Namespace, error) {
	release, err := i.locker.Acquire(ctx, "ingest:"+doc.ID, i.lockTTL)
	if err != nil {
		return nil, upstream(ServiceLock, "acquire", err)
	}
	defer release()

	// another process may have finished while we waited for the lock
	doc, err = i.load(ctx, doc.OwnerID, doc.ID)
	if err != nil {
		return nil, err
	}
	if ns, err := i.completed(ctx, doc); err != nil || ns != nil {
		return ns, err
	}

	if i.states != nil {
		// records without a finished state are leftovers of an interrupted run
		leftover, err := i.existing(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if leftover != nil {
			logger.Warn("Discarding incomplete namespace", "document_id", doc.ID,
				"status", doc.IndexStatus, "records", leftover.RecordCount)
			if err := i.index.Delete(ctx, doc.ID); err != nil {
				return nil, err
			}
		}
	}

	return i.ingest(ctx, doc)
}

func (i *Ingestor) ingest(ctx context.Context, doc *models.Document) (*Namespace, error) {
	documentID := doc.ID
	ctx, span := telemetry.Tracer().Start(ctx, "rag.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	start := time.Now()
	log := logger.FromContext(ctx).With("document_id", documentID, "owner_id", doc.OwnerID)
	i.markIndexing(ctx, documentID)

	chunks, err := i.prepare(ctx, doc)
	if err != nil {
		span.RecordError(err)
		i.finish(ctx, documentID, start, 0, err)
		log.Warn("Document ingestion failed", "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)))

	if err := i.index.Add(ctx, documentID, chunks); err != nil {
		span.RecordError(err)
		// leave no partial namespace behind so the existence check stays honest
		if delErr := i.index.Delete(context.WithoutCancel(ctx), documentID); delErr != nil {
			log.Error("Failed to roll back partial namespace", "error", delErr)
		}
		i.finish(ctx, documentID, start, 0, err)
		log.Error("Embedding upsert failed", "error", err)
		return nil, err
	}

	stats, err := i.index.Stats(ctx, documentID)
	if err != nil {
		log.Warn("Could not verify namespace after upsert", "error", err)
		stats.RecordCount = len(chunks)
	} else if stats.RecordCount < len(chunks) {
		log.Warn("Namespace holds fewer records than chunks",
			"expected", len(chunks), "actual", stats.RecordCount)
	}

	i.finish(ctx, documentID, start, len(chunks), nil)
	log.Info("Document indexed", "chunks", len(chunks), "duration", time.Since(start).String())

	return &Namespace{Name: documentID, RecordCount: stats.RecordCount}, nil
}

// prepare runs fetch, parse and split. Nothing is written on failure.
func (i *Ingestor) prepare(ctx context.Context, doc *models.Document) ([]Chunk, error) {
	data, err := i.fetcher.Fetch(ctx, doc)
	if err != nil {
		return nil, newIngestionError(StageFetch, doc.ID, err)
	}

	return i.segmenter.Segment(doc.ID, data)
}

func (i *Ingestor) markIndexing(ctx context.Context, documentID string) {
	if i.states == nil {
		return
	}
	if err := i.states.MarkIndexing(ctx, documentID); err != nil {
		logger.Warn("Failed to record indexing state", "document_id", documentID, "error", err)
	}
}

func (i *Ingestor) finish(ctx context.Context, documentID string, start time.Time, chunks int, ingestErr error) {
	status := "indexed"
	if ingestErr != nil {
		status = "failed"
		var ue *UpstreamError
		if errors.As(ingestErr, &ue) {
			i.metrics.RecordUpstreamError(ctx, ue.Service, ue.Op)
		}
	}
	i.metrics.RecordIngestion(ctx, time.Since(start).Seconds(), chunks, status)

	if i.states == nil {
		return
	}
	// state writes must land even if the caller went away
	ctx = context.WithoutCancel(ctx)
	var err error
	if ingestErr != nil {
		err = i.states.MarkFailed(ctx, documentID, ingestErr.Error())
	} else {
		err = i.states.MarkIndexed(ctx, documentID, chunks)
	}
	if err != nil {
		logger.Warn("Failed to record index state", "document_id", documentID, "error", err)
	}
}
