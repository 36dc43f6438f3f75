package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"saascribe-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	docs     *fakeDocs
	fetcher  *fakeFetcher
	store    *fakeStore
	embedder *letterEmbedder
	states   *recordingStates
	ingestor *Ingestor
}

func newIngestFixture(t *testing.T, text string) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		docs: newFakeDocs(&models.Document{
			ID:          "doc-1",
			OwnerID:     "owner-1",
			StorageKey:  "documents/owner-1/doc-1.pdf",
			IndexStatus: models.IndexStatusNotIndexed,
		}),
		fetcher:  &fakeFetcher{data: []byte(text)},
		store:    newFakeStore(),
		embedder: &letterEmbedder{},
	}
	f.states = &recordingStates{docs: f.docs}
	f.ingestor = f.newIngestor(newTestLocker(t))
	return f
}

func (f *ingestFixture) newIngestor(locker Locker) *Ingestor {
	return f.newIngestorWith(locker, 2, 3)
}

func (f *ingestFixture) newIngestorWith(locker Locker, batchSize, concurrency int) *Ingestor {
	index := NewIndex(f.store, f.embedder, batchSize, concurrency)
	seg := NewSegmenter(textParser{}, NewSplitter(100, 20))
	return NewIngestor(f.docs, f.fetcher, seg, index, locker, WithStateRecorder(f.states))
}

func longText() string {
	return strings.Repeat("The contract renews every January unless cancelled in writing. ", 12)
}

func TestEnsureIndexedIsIdempotent(t *testing.T) {
	f := newIngestFixture(t, longText())
	ctx := context.Background()

	ns, err := f.ingestor.EnsureIndexed(ctx, "owner-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ns.Name)
	assert.Greater(t, ns.RecordCount, 0)

	upserts := f.store.upserts()
	count := f.store.count("doc-1")
	assert.Equal(t, ns.RecordCount, count)

	again, err := f.ingestor.EnsureIndexed(ctx, "owner-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, ns.RecordCount, again.RecordCount)
	assert.Equal(t, upserts, f.store.upserts(), "second call must not upsert")
	assert.Equal(t, 1, f.fetcher.Calls(), "second call must not download")
	assert.Equal(t, []models.IndexStatus{models.IndexStatusIndexing, models.IndexStatusIndexed}, f.states.statuses()[:2])
	assert.Equal(t, count, f.states.events[1].Chunks)
}

func TestEnsureIndexedRequiresOwner(t *testing.T) {
	f := newIngestFixture(t, longText())

	_, err := f.ingestor.EnsureIndexed(context.Background(), "", "doc-1")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Zero(t, f.fetcher.Calls())
}

func TestEnsureIndexedScopesToOwner(t *testing.T) {
	f := newIngestFixture(t, longText())

	_, err := f.ingestor.EnsureIndexed(context.Background(), "someone-else", "doc-1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Zero(t, f.fetcher.Calls())
}

func TestEnsureIndexedStageFailures(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fetchErr error
		stage    Stage
		sentinel error
	}{
		{name: "download fails", fetchErr: errors.New("unexpected status 404"), stage: StageFetch, sentinel: ErrFetch},
		{name: "no pages", data: []byte("  \f \n"), stage: StageParse, sentinel: ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, "")
			f.fetcher.set(tt.data, tt.fetchErr)

			_, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
			var ie *IngestionError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.stage, ie.Stage)
			assert.ErrorIs(t, err, tt.sentinel)

			assert.Zero(t, f.store.upserts(), "nothing may be written before embedding")
			assert.Equal(t, []models.IndexStatus{models.IndexStatusIndexing, models.IndexStatusFailed}, f.states.statuses())
		})
	}
}

func TestEnsureIndexedSplitFailure(t *testing.T) {
	f := newIngestFixture(t, "")
	seg := NewSegmenter(parserFunc(func([]byte) ([]Page, error) {
		return []Page{{Number: 1, Text: "  "}}, nil
	}), NewSplitter(100, 20))
	f.ingestor.segmenter = seg

	_, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	assert.ErrorIs(t, err, ErrSplit)
}

type parserFunc func([]byte) ([]Page, error)

func (p parserFunc) Parse(b []byte) ([]Page, error) { return p(b) }

func TestEnsureIndexedRetriesAfterFetchFailure(t *testing.T) {
	f := newIngestFixture(t, "")
	f.fetcher.set(nil, errors.New("connection reset"))

	_, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	require.ErrorIs(t, err, ErrFetch)

	f.fetcher.set([]byte(longText()), nil)
	ns, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	require.NoError(t, err)
	assert.Greater(t, ns.RecordCount, 0)
}

func TestEnsureIndexedRollsBackPartialUpsert(t *testing.T) {
	f := newIngestFixture(t, longText())
	f.embedder.failAfter = 1

	_, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ServiceEmbedding, ue.Service)

	assert.Zero(t, f.store.count("doc-1"), "partial namespace must be removed")
	assert.Equal(t, models.IndexStatusFailed, f.states.statuses()[1])

	f.embedder.failAfter = 0
	ns, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	require.NoError(t, err)
	assert.Greater(t, ns.RecordCount, 0)
}

func TestEnsureIndexedVectorStoreFailure(t *testing.T) {
	f := newIngestFixture(t, longText())
	f.store.upsertErr = errors.New("write conflict")

	_, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ServiceVectorStore, ue.Service)
	assert.Equal(t, "upsert", ue.Op)
}

func TestEnsureIndexedToleratesShortNamespace(t *testing.T) {
	f := newIngestFixture(t, longText())
	f.store.dropRecords = true

	ns, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, f.store.count("doc-1"), ns.RecordCount)
}

func TestEnsureIndexedConcurrentCallsIngestOnce(t *testing.T) {
	f := newIngestFixture(t, longText())
	f.fetcher.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.fetcher.Calls())
}

func TestEnsureIndexedAcrossIngestorsSharingLock(t *testing.T) {
	f := newIngestFixture(t, longText())
	f.fetcher.delay = 20 * time.Millisecond
	shared := newTestLocker(t)
	a, b := f.newIngestor(shared), f.newIngestor(shared)

	var wg sync.WaitGroup
	for _, ing := range []*Ingestor{a, b, a, b} {
		wg.Add(1)
		go func(ing *Ingestor) {
			defer wg.Done()
			_, err := ing.EnsureIndexed(context.Background(), "owner-1", "doc-1")
			assert.NoError(t, err)
		}(ing)
	}
	wg.Wait()

	assert.Equal(t, 1, f.fetcher.Calls())
}

func TestEnsureIndexedWaitsForInFlightIngestion(t *testing.T) {
	tests := []struct {
		name   string
		second func(f *ingestFixture, first *Ingestor, locker Locker) *Ingestor
	}{
		{
			name:   "same ingestor",
			second: func(_ *ingestFixture, first *Ingestor, _ Locker) *Ingestor { return first },
		},
		{
			name: "another ingestor sharing the lock",
			second: func(f *ingestFixture, _ *Ingestor, locker Locker) *Ingestor {
				return f.newIngestorWith(locker, 2, 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestFixture(t, longText())
			locker := newTestLocker(t)
			first := f.newIngestorWith(locker, 2, 1)
			second := tt.second(f, first, locker)

			f.embedder.hold = make(chan struct{})
			f.embedder.held = make(chan struct{}, 1)
			f.embedder.holdAfter = 1

			type result struct {
				ns  *Namespace
				err error
			}
			firstDone := make(chan result, 1)
			go func() {
				ns, err := first.EnsureIndexed(context.Background(), "owner-1", "doc-1")
				firstDone <- result{ns, err}
			}()

			select {
			case <-f.embedder.held:
			case <-time.After(2 * time.Second):
				t.Fatal("ingestion never reached the second batch")
			}
			require.Greater(t, f.store.count("doc-1"), 0, "first batch should be written")

			secondDone := make(chan result, 1)
			go func() {
				ns, err := second.EnsureIndexed(context.Background(), "owner-1", "doc-1")
				secondDone <- result{ns, err}
			}()

			assert.Never(t, func() bool { return len(secondDone) > 0 }, 100*time.Millisecond, 5*time.Millisecond,
				"a partly written namespace must not be returned")
			assert.NotContains(t, f.states.statuses(), models.IndexStatusIndexed)

			close(f.embedder.hold)
			r1, r2 := <-firstDone, <-secondDone
			require.NoError(t, r1.err)
			require.NoError(t, r2.err)

			total := f.store.count("doc-1")
			assert.Equal(t, total, r1.ns.RecordCount)
			assert.Equal(t, total, r2.ns.RecordCount)
			assert.Equal(t, 1, f.fetcher.Calls())
			assert.Equal(t, []models.IndexStatus{models.IndexStatusIndexing, models.IndexStatusIndexed}, f.states.statuses())
		})
	}
}

func TestEnsureIndexedRebuildsInterruptedNamespace(t *testing.T) {
	for _, status := range []models.IndexStatus{models.IndexStatusIndexing, models.IndexStatusNotIndexed, models.IndexStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newIngestFixture(t, longText())
			f.docs.setStatus("doc-1", status)
			require.NoError(t, f.store.Upsert(context.Background(), "doc-1", []VectorRecord{
				{ID: "doc-1#999", Vector: make([]float32, 26), Chunk: Chunk{DocumentID: "doc-1", Index: 999}},
			}))

			ns, err := f.ingestor.EnsureIndexed(context.Background(), "owner-1", "doc-1")
			require.NoError(t, err)

			assert.Equal(t, 1, f.fetcher.Calls())
			assert.False(t, f.store.has("doc-1", "doc-1#999"), "leftover records must be discarded")
			assert.Equal(t, f.store.count("doc-1"), ns.RecordCount)
			assert.Equal(t, models.IndexStatusIndexed, f.states.statuses()[1])
		})
	}
}

func TestEnsureIndexedTrustsNamespaceWithoutRecorder(t *testing.T) {
	f := newIngestFixture(t, longText())
	ing := NewIngestor(f.docs, f.fetcher, NewSegmenter(textParser{}, NewSplitter(100, 20)),
		NewIndex(f.store, f.embedder, 2, 3), newTestLocker(t))

	_, err := ing.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	require.NoError(t, err)
	upserts := f.store.upserts()

	_, err = ing.EnsureIndexed(context.Background(), "owner-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, upserts, f.store.upserts())
	assert.Equal(t, 1, f.fetcher.Calls())
}
