package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"docassist-be/internal/config"
	"docassist-be/internal/entity"
	"docassist-be/internal/pkg/logger"
	"docassist-be/internal/repository/specification"
	"docassist-be/pkg/events"
	"docassist-be/pkg/llm"
	"docassist-be/pkg/vectorstore"
	"docassist-be/pkg/vectorstore/memory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocumentRepo struct {
	mu          sync.Mutex
	docs        []*entity.SourceDocument
	access      map[int64][]int64
	findErr     error
	accessCalls map[int64]int
}

func (r *fakeDocumentRepo) FindActiveDocuments(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	docs := r.docs
	for _, spec := range specs {
		docs = filterDocs(docs, spec)
	}
	return docs, nil
}

func filterDocs(docs []*entity.SourceDocument, spec specification.Specification) []*entity.SourceDocument {
	keep := func(d *entity.SourceDocument) bool { return true }
	switch sp := spec.(type) {
	case specification.ByProjectID:
		keep = func(d *entity.SourceDocument) bool { return d.ProjectId == sp.ProjectID }
	case specification.ByDocumentIDs:
		keep = func(d *entity.SourceDocument) bool {
			for _, id := range sp.IDs {
				if d.Id == id {
					return true
				}
			}
			return false
		}
	}
	var out []*entity.SourceDocument
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (r *fakeDocumentRepo) FindAccessibleUserIds(ctx context.Context, projectId int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accessCalls == nil {
		r.accessCalls = map[int64]int{}
	}
	r.accessCalls[projectId]++
	return r.access[projectId], nil
}

func (r *fakeDocumentRepo) setDocs(docs []*entity.SourceDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = docs
}

// fakeEmbedder fails for any text containing failOn.
type fakeEmbedder struct {
	mu     sync.Mutex
	failOn string
	calls  int
}

func (f *fakeEmbedder) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, llm.ErrEmbedding
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Name() string            { return "fake" }
func (f *fakeEmbedder) EmbeddingDimensions() int { return 3 }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// listlessStore hides IndexedIDs so the purge falls back to the previous pass.
type listlessStore struct {
	inner *memory.Store
}

func (s listlessStore) Upsert(ctx context.Context, doc *vectorstore.IndexedDocument) error {
	return s.inner.Upsert(ctx, doc)
}
func (s listlessStore) Search(ctx context.Context, e []float32, uid int64, k int) ([]vectorstore.SearchHit, error) {
	return s.inner.Search(ctx, e, uid, k)
}
func (s listlessStore) Delete(ctx context.Context, id int64) error { return s.inner.Delete(ctx, id) }
func (s listlessStore) Name() string                               { return "listless" }

type fakeLocker struct {
	held     bool
	err      error
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func strPtrTo(s string) *string { return &s }

func doc(id, projectID int64, name string) *entity.SourceDocument {
	return &entity.SourceDocument{
		Id:             id,
		Name:           name,
		Type:           strPtrTo("Drawing"),
		Status:         entity.DocumentStatusApproved,
		Version:        1,
		UploadedAt:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		ProjectId:      projectID,
		UploadedByName: "Jane Smith",
		ProjectName:    "Harbor Bridge",
	}
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Enabled:      true,
		InitialDelay: 10 * time.Millisecond,
		Interval:     time.Hour,
		LockTTL:      time.Minute,
		TriggerTopic: "SYNC_REQUESTED",
	}
}

func TestSyncOnce_IndexesEveryDocument(t *testing.T) {
	repo := &fakeDocumentRepo{
		docs: []*entity.SourceDocument{doc(1, 10, "Doc 1"), doc(2, 10, "Doc 2"), doc(3, 20, "Doc 3")},
		access: map[int64][]int64{
			10: {1, 2, 7},
			20: {1, 9},
		},
	}
	store := memory.NewStore()
	pub := &recordingPublisher{}
	svc := NewSyncService(repo, &fakeEmbedder{}, store, logger.NewNopLogger(), testSyncConfig(), WithSyncPublisher(pub))

	report, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Synced)
	assert.Equal(t, 3, store.Len())

	got, ok := store.Get(3)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 9}, got.AccessList)
	assert.Equal(t, "Doc 3", got.Metadata["name"])
	assert.Equal(t, int64(20), got.Metadata["projectId"])
	assert.True(t, strings.HasPrefix(got.Text, "Document: Doc 3\n"))

	// one access query per project within a pass
	assert.Equal(t, map[int64]int{10: 1, 20: 1}, repo.accessCalls)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.EventTypeSyncCompleted, pub.events[0].EventType())
	assert.Equal(t, 3, pub.events[0].Payload()["synced"])
}

func TestSyncOnce_AbortsOnFirstFailure(t *testing.T) {
	repo := &fakeDocumentRepo{
		docs: []*entity.SourceDocument{
			doc(1, 10, "Doc 1"), doc(2, 10, "Doc 2"), doc(3, 10, "Doc 3"), doc(4, 10, "Doc 4"), doc(5, 10, "Doc 5"),
		},
		access: map[int64][]int64{10: {1}},
	}
	store := memory.NewStore()
	embedder := &fakeEmbedder{failOn: "Document: Doc 3\n"}
	pub := &recordingPublisher{}
	svc := NewSyncService(repo, embedder, store, logger.NewNopLogger(), testSyncConfig(), WithSyncPublisher(pub))

	report, err := svc.SyncOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncPass)
	assert.ErrorIs(t, err, llm.ErrEmbedding)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, 3, embedder.callCount())

	_, ok1 := store.Get(1)
	_, ok2 := store.Get(2)
	_, ok4 := store.Get(4)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok4)
	assert.Empty(t, pub.events)
}

func TestSyncOnce_CatalogError(t *testing.T) {
	repo := &fakeDocumentRepo{findErr: errors.New("connection refused")}
	svc := NewSyncService(repo, &fakeEmbedder{}, memory.NewStore(), logger.NewNopLogger(), testSyncConfig())

	_, err := svc.SyncOnce(context.Background())
	assert.ErrorIs(t, err, ErrSyncPass)
}

func TestSyncOnce_EmptyCatalog(t *testing.T) {
	svc := NewSyncService(&fakeDocumentRepo{}, &fakeEmbedder{}, memory.NewStore(), logger.NewNopLogger(), testSyncConfig())

	report, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Synced)
}

func TestSyncOnce_Cancelled(t *testing.T) {
	repo := &fakeDocumentRepo{docs: []*entity.SourceDocument{doc(1, 10, "Doc 1")}}
	embedder := &fakeEmbedder{}
	svc := NewSyncService(repo, embedder, memory.NewStore(), logger.NewNopLogger(), testSyncConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SyncOnce(ctx)
	assert.ErrorIs(t, err, ErrSyncPass)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, embedder.callCount())
}

func TestSyncOnce_Purge(t *testing.T) {
	t.Run("uses the index id list", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.Upsert(context.Background(), &vectorstore.IndexedDocument{
			DocumentID: 99, Text: "stale", Embedding: []float32{1, 0, 0}, AccessList: []int64{1},
		}))

		cfg := testSyncConfig()
		cfg.PurgeRemoved = true
		repo := &fakeDocumentRepo{docs: []*entity.SourceDocument{doc(1, 10, "Doc 1")}, access: map[int64][]int64{10: {1}}}
		svc := NewSyncService(repo, &fakeEmbedder{}, store, logger.NewNopLogger(), cfg)

		report, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Purged)
		_, stale := store.Get(99)
		assert.False(t, stale)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("falls back to the previous pass", func(t *testing.T) {
		inner := memory.NewStore()
		cfg := testSyncConfig()
		cfg.PurgeRemoved = true
		repo := &fakeDocumentRepo{
			docs:   []*entity.SourceDocument{doc(1, 10, "Doc 1"), doc(2, 10, "Doc 2")},
			access: map[int64][]int64{10: {1}},
		}
		svc := NewSyncService(repo, &fakeEmbedder{}, listlessStore{inner: inner}, logger.NewNopLogger(), cfg)

		_, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, inner.Len())

		repo.setDocs([]*entity.SourceDocument{doc(1, 10, "Doc 1")})
		report, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Purged)
		_, gone := inner.Get(2)
		assert.False(t, gone)
	})

	t.Run("disabled keeps stale entries", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.Upsert(context.Background(), &vectorstore.IndexedDocument{
			DocumentID: 99, Text: "stale", Embedding: []float32{1, 0, 0},
		}))
		repo := &fakeDocumentRepo{docs: []*entity.SourceDocument{doc(1, 10, "Doc 1")}}
		svc := NewSyncService(repo, &fakeEmbedder{}, store, logger.NewNopLogger(), testSyncConfig())

		_, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())
	})
}

func TestSyncOnce_Lock(t *testing.T) {
	repo := &fakeDocumentRepo{docs: []*entity.SourceDocument{doc(1, 10, "Doc 1")}}

	t.Run("held elsewhere skips the pass", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		locker := &fakeLocker{held: true}
		svc := NewSyncService(repo, embedder, memory.NewStore(), logger.NewNopLogger(), testSyncConfig(), WithSyncLocker(locker))

		report, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Skipped)
		assert.Equal(t, 0, embedder.callCount())
	})

	t.Run("acquired and released", func(t *testing.T) {
		locker := &fakeLocker{}
		svc := NewSyncService(repo, &fakeEmbedder{}, memory.NewStore(), logger.NewNopLogger(), testSyncConfig(), WithSyncLocker(locker))

		report, err := svc.SyncOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Synced)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("lock backend error fails the pass", func(t *testing.T) {
		locker := &fakeLocker{err: errors.New("redis down")}
		svc := NewSyncService(repo, &fakeEmbedder{}, memory.NewStore(), logger.NewNopLogger(), testSyncConfig(), WithSyncLocker(locker))

		_, err := svc.SyncOnce(context.Background())
		assert.ErrorIs(t, err, ErrSyncPass)
	})
}

func TestRun_WarmupScheduleAndTrigger(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer bus.Close()

	repo := &fakeDocumentRepo{docs: []*entity.SourceDocument{doc(1, 10, "Doc 1")}}
	embedder := &fakeEmbedder{}
	cfg := testSyncConfig()
	svc := NewSyncService(repo, embedder, memory.NewStore(), logger.NewNopLogger(), cfg,
		WithSyncTrigger(bus, cfg.TriggerTopic))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return embedder.callCount() == 1 }, time.Second, 5*time.Millisecond)

	trigger := NewSyncTrigger(bus, cfg.TriggerTopic)
	require.NoError(t, trigger.RequestSync(context.Background(), 1))
	require.Eventually(t, func() bool { return embedder.callCount() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRun_CancelledDuringWarmup(t *testing.T) {
	embedder := &fakeEmbedder{}
	cfg := testSyncConfig()
	cfg.InitialDelay = time.Hour
	svc := NewSyncService(&fakeDocumentRepo{}, embedder, memory.NewStore(), logger.NewNopLogger(), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, embedder.callCount())
}

func TestRun_FailedPassDoesNotStopLoop(t *testing.T) {
	repo := &fakeDocumentRepo{findErr: errors.New("db down")}
	cfg := testSyncConfig()
	cfg.Interval = 10 * time.Millisecond
	svc := NewSyncService(repo, &fakeEmbedder{}, memory.NewStore(), logger.NewNopLogger(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	repo.mu.Lock()
	repo.findErr = nil
	repo.docs = []*entity.SourceDocument{doc(1, 10, "Doc 1")}
	repo.mu.Unlock()

	store := svc.store.(*memory.Store)
	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSyncService_ResyncDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("active document is re-indexed with a fresh access list", func(t *testing.T) {
		repo := &fakeDocumentRepo{
			docs:   []*entity.SourceDocument{doc(1, 3, "Safety Plan"), doc(2, 3, "Site Layout")},
			access: map[int64][]int64{3: {1, 2}},
		}
		store := memory.NewStore()
		svc := NewSyncService(repo, &fakeEmbedder{}, store, logger.NewNopLogger(), testSyncConfig())

		require.NoError(t, svc.ResyncDocument(ctx, 2))
		assert.Equal(t, 1, store.Len())
		got, ok := store.Get(2)
		require.True(t, ok)
		assert.Equal(t, []int64{1, 2}, got.AccessList)
	})

	t.Run("inactive document is dropped", func(t *testing.T) {
		repo := &fakeDocumentRepo{access: map[int64][]int64{3: {1}}}
		store := memory.NewStore()
		require.NoError(t, store.Upsert(ctx, &vectorstore.IndexedDocument{DocumentID: 9, Embedding: []float32{1, 0, 0}}))
		svc := NewSyncService(repo, &fakeEmbedder{}, store, logger.NewNopLogger(), testSyncConfig())

		require.NoError(t, svc.ResyncDocument(ctx, 9))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("embedding failure is returned", func(t *testing.T) {
		repo := &fakeDocumentRepo{
			docs:   []*entity.SourceDocument{doc(1, 3, "Broken")},
			access: map[int64][]int64{3: {1}},
		}
		svc := NewSyncService(repo, &fakeEmbedder{failOn: "Broken"}, memory.NewStore(), logger.NewNopLogger(), testSyncConfig())

		err := svc.ResyncDocument(ctx, 1)
		assert.ErrorIs(t, err, llm.ErrEmbedding)
	})
}

func TestSyncService_ResyncProject(t *testing.T) {
	ctx := context.Background()
	repo := &fakeDocumentRepo{
		docs: []*entity.SourceDocument{
			doc(1, 3, "Safety Plan"),
			doc(2, 4, "Depot Foundations"),
			doc(3, 3, "Site Layout"),
		},
		access: map[int64][]int64{3: {1, 2, 8}, 4: {1}},
	}
	store := memory.NewStore()
	svc := NewSyncService(repo, &fakeEmbedder{}, store, logger.NewNopLogger(), testSyncConfig())

	n, err := svc.ResyncProject(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	ids, err := store.IndexedIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, ids)
	assert.Equal(t, 1, repo.accessCalls[3])
	assert.Zero(t, repo.accessCalls[4])

	got, ok := store.Get(3)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 8}, got.AccessList)
}
