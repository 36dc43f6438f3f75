package rag

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth is returned when an operation runs without an authenticated owner.
	ErrAuth = errors.New("please sign in")

	// ErrDocumentNotFound is returned when the document does not exist or
	// belongs to another owner.
	ErrDocumentNotFound = errors.New("document not found")

	ErrFetch = errors.New("document could not be downloaded")
	ErrParse = errors.New("document contains no extractable pages")
	ErrSplit = errors.New("document produced no chunks")
)

// Stage names the ingestion step that failed.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageParse Stage = "parse"
	StageSplit Stage = "split"
)

// Upstream services reported in UpstreamError.
const (
	ServiceVectorStore = "vector_store"
	ServiceEmbedding   = "embedding"
	ServiceModel       = "model"
	ServiceLock        = "lock"
)

// IngestionError reports a failure before anything was written to the vector
// store. Retrying is always safe.
type IngestionError struct {
	Stage      Stage
	DocumentID string
	Err        error
}

func (e *IngestionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest %s: %s failed", e.DocumentID, e.Stage)
	}
	return fmt.Sprintf("ingest %s: %s failed: %v", e.DocumentID, e.Stage, e.Err)
}

// Unwrap exposes both the stage sentinel and the cause to errors.Is/As.
func (e *IngestionError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *IngestionError) sentinel() error {
	switch e.Stage {
	case StageFetch:
		return ErrFetch
	case StageParse:
		return ErrParse
	default:
		return ErrSplit
	}
}

func newIngestionError(stage Stage, documentID string, err error) *IngestionError {
	return &IngestionError{Stage: stage, DocumentID: documentID, Err: err}
}

// UpstreamError wraps a failure of the vector store or the model provider.
type UpstreamError struct {
	Service string
	Op      string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(service, op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Service: service, Op: op, Err: err}
}

// Permanent reports whether err will fail the same way on every retry:
// unreadable content, a missing document or download reference, and 4xx
// responses other than timeouts and throttling. Network errors, 5xx responses
// and upstream failures are transient.
func Permanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrParse), errors.Is(err, ErrSplit),
		errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrAuth),
		errors.Is(err, ErrNoDownloadReference), errors.Is(err, ErrDownloadTooLarge):
		return true
	}
	var se *FetchStatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500 &&
			se.StatusCode != http.StatusRequestTimeout && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}
