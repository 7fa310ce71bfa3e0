package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"docassist-be/internal/config"
	"docassist-be/internal/entity"
	"docassist-be/internal/pkg/logger"
	"docassist-be/internal/repository/contract"
	"docassist-be/internal/repository/specification"
	"docassist-be/pkg/events"
	"docassist-be/pkg/llm"
	"docassist-be/pkg/lock"
	"docassist-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	syncModule = "SYNC"

	// SyncLockKey is the Redis key guarding a pass across replicas.
	SyncLockKey = "docassist:sync:lock"
)

// ErrSyncPass wraps the first failure that aborted a pass.
var ErrSyncPass = errors.New("sync pass failed")

// EventPublisher is satisfied by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type SyncReport struct {
	Total    int
	Synced   int
	Purged   int
	Duration time.Duration
	// Skipped is set when another replica held the lock.
	Skipped bool
}

type SyncOption func(*SyncService)

func WithSyncLocker(l lock.Locker) SyncOption {
	return func(s *SyncService) { s.locker = l }
}

func WithSyncPublisher(p EventPublisher) SyncOption {
	return func(s *SyncService) { s.publisher = p }
}

// WithSyncTrigger lets callers request extra passes by publishing on topic.
func WithSyncTrigger(sub message.Subscriber, topic string) SyncOption {
	return func(s *SyncService) {
		s.trigger = sub
		s.topic = topic
	}
}

// SyncService keeps the vector index in step with the document management system.
type SyncService struct {
	repo     contract.DocumentRepository
	provider llm.Provider
	store    vectorstore.Provider
	log      logger.ILogger
	cfg      config.SyncConfig
	tracer   trace.Tracer

	locker    lock.Locker
	publisher EventPublisher
	trigger   message.Subscriber
	topic     string

	passMu sync.Mutex
	// lastIndexed is the catalog of the previous successful pass. Guarded by passMu.
	lastIndexed map[int64]struct{}
}

func NewSyncService(
	repo contract.DocumentRepository,
	provider llm.Provider,
	store vectorstore.Provider,
	log logger.ILogger,
	cfg config.SyncConfig,
	opts ...SyncOption,
) *SyncService {
	s := &SyncService{
		repo:     repo,
		provider: provider,
		store:    store,
		log:      log,
		cfg:      cfg,
		tracer:   otel.Tracer("docassist-be/sync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled: one pass after the warm-up delay, then one per
// interval, plus one per trigger message. Passes never overlap.
func (s *SyncService) Run(ctx context.Context) error {
	var triggers <-chan *message.Message
	if s.trigger != nil {
		msgs, err := s.trigger.Subscribe(ctx, s.topic)
		if err != nil {
			s.log.Warn(syncModule, "Sync trigger unavailable, running on schedule only", map[string]interface{}{
				"topic": s.topic,
				"error": err.Error(),
			})
		} else {
			triggers = msgs
		}
	}

	s.log.Info(syncModule, "Sync loop started", map[string]interface{}{
		"initial_delay": s.cfg.InitialDelay.String(),
		"interval":      s.cfg.Interval.String(),
	})

	delay := time.NewTimer(s.cfg.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-delay.C:
	}

	s.runPass(ctx, "startup")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info(syncModule, "Sync loop stopped", nil)
			return ctx.Err()
		case <-ticker.C:
			s.runPass(ctx, "schedule")
		case msg, ok := <-triggers:
			if !ok {
				triggers = nil
				continue
			}
			msg.Ack()
			s.runPass(ctx, "request")
		}
	}
}

// runPass swallows the pass error after logging it so the loop keeps going.
func (s *SyncService) runPass(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.SyncOnce(ctx)
	if err != nil {
		s.log.Error(syncModule, "Sync pass failed", map[string]interface{}{
			"reason": reason,
			"synced": report.Synced,
			"total":  report.Total,
			"error":  err.Error(),
		})
		return
	}
	if report.Skipped {
		return
	}
	s.log.Info(syncModule, fmt.Sprintf("Synced %d documents", report.Synced), map[string]interface{}{
		"reason":      reason,
		"total":       report.Total,
		"purged":      report.Purged,
		"duration_ms": report.Duration.Milliseconds(),
	})
}

// SyncOnce runs a single pass. The first failure aborts it; documents upserted
// before the failure stay indexed.
func (s *SyncService) SyncOnce(ctx context.Context) (SyncReport, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "sync.pass")
	defer span.End()

	start := time.Now()
	var report SyncReport

	fail := func(err error) (SyncReport, error) {
		err = fmt.Errorf("%w: %w", ErrSyncPass, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		report.Duration = time.Since(start)
		return report, err
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, SyncLockKey, s.cfg.LockTTL)
		if err != nil {
			return fail(err)
		}
		if !ok {
			s.log.Info(syncModule, "Sync pass skipped, another instance holds the lock", nil)
			report.Skipped = true
			return report, nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.log.Warn(syncModule, "Failed to release sync lock", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	docs, err := s.repo.FindActiveDocuments(ctx)
	if err != nil {
		return fail(fmt.Errorf("load documents: %w", err))
	}
	report.Total = len(docs)
	span.SetAttributes(attribute.Int("sync.total", report.Total))

	catalog := make(map[int64]struct{}, len(docs))
	accessByProject := make(map[int64][]int64)

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := s.syncDocument(ctx, doc, accessByProject); err != nil {
			return fail(fmt.Errorf("document %d: %w", doc.Id, err))
		}
		report.Synced++
		catalog[doc.Id] = struct{}{}
	}

	if s.cfg.PurgeRemoved {
		purged, err := s.purge(ctx, catalog)
		report.Purged = purged
		if err != nil {
			return fail(fmt.Errorf("purge: %w", err))
		}
	}
	s.lastIndexed = catalog

	report.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("sync.synced", report.Synced), attribute.Int("sync.purged", report.Purged))

	s.publishCompleted(ctx, report)
	return report, nil
}

// ResyncDocument re-indexes one document right away. A document that is no longer
// active is dropped from the index instead.
func (s *SyncService) ResyncDocument(ctx context.Context, id int64) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "sync.document", trace.WithAttributes(attribute.Int64("document.id", id)))
	defer span.End()

	docs, err := s.repo.FindActiveDocuments(ctx, specification.ByDocumentIDs{
		Alias: specification.DocumentsAlias,
		IDs:   []int64{id},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load document %d: %w", id, err)
	}

	if len(docs) == 0 {
		if err := s.store.Delete(ctx, id); err != nil {
			span.RecordError(err)
			return fmt.Errorf("delete %d: %w", id, err)
		}
		delete(s.lastIndexed, id)
		s.log.Info(syncModule, "Document no longer active, removed from index", map[string]interface{}{"document_id": id})
		return nil
	}

	if err := s.syncDocument(ctx, docs[0], make(map[int64][]int64)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("document %d: %w", id, err)
	}
	s.remember(id)
	s.log.Info(syncModule, "Document re-indexed", map[string]interface{}{"document_id": id})
	return nil
}

// ResyncProject re-indexes every active document of a project, typically after its
// membership changed. It stops at the first failure and returns how many were indexed.
func (s *SyncService) ResyncProject(ctx context.Context, projectID int64) (int, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "sync.project", trace.WithAttributes(attribute.Int64("project.id", projectID)))
	defer span.End()

	docs, err := s.repo.FindActiveDocuments(ctx, specification.ByProjectID{
		Alias:     specification.DocumentsAlias,
		ProjectID: projectID,
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("load project %d: %w", projectID, err)
	}

	accessByProject := make(map[int64][]int64, 1)
	synced := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := s.syncDocument(ctx, doc, accessByProject); err != nil {
			span.RecordError(err)
			return synced, fmt.Errorf("document %d: %w", doc.Id, err)
		}
		s.remember(doc.Id)
		synced++
	}

	s.log.Info(syncModule, fmt.Sprintf("Re-indexed %d documents of project %d", synced, projectID), nil)
	return synced, nil
}

// remember adds id to the fallback purge catalog. Callers hold passMu.
func (s *SyncService) remember(id int64) {
	if s.lastIndexed == nil {
		s.lastIndexed = make(map[int64]struct{})
	}
	s.lastIndexed[id] = struct{}{}
}

func (s *SyncService) syncDocument(ctx context.Context, doc *entity.SourceDocument, accessByProject map[int64][]int64) error {
	access, ok := accessByProject[doc.ProjectId]
	if !ok {
		ids, err := s.repo.FindAccessibleUserIds(ctx, doc.ProjectId)
		if err != nil {
			return fmt.Errorf("access list for project %d: %w", doc.ProjectId, err)
		}
		access = ids
		accessByProject[doc.ProjectId] = ids
	}

	text := FormatDocumentText(doc)
	embedding, err := s.provider.GenerateEmbedding(ctx, text)
	if err != nil {
		return err
	}

	return s.store.Upsert(ctx, &vectorstore.IndexedDocument{
		DocumentID: doc.Id,
		Text:       text,
		Embedding:  embedding,
		Metadata:   ExtractMetadata(doc),
		AccessList: access,
	})
}

// purge deletes index entries whose document left the catalog. Backends that can list
// their ids are authoritative; otherwise the previous pass of this process is used.
func (s *SyncService) purge(ctx context.Context, catalog map[int64]struct{}) (int, error) {
	var indexed []int64
	if lister, ok := s.store.(vectorstore.IDLister); ok {
		ids, err := lister.IndexedIDs(ctx)
		if err != nil {
			return 0, err
		}
		indexed = ids
	} else {
		for id := range s.lastIndexed {
			indexed = append(indexed, id)
		}
		sort.Slice(indexed, func(i, j int) bool { return indexed[i] < indexed[j] })
	}

	purged := 0
	for _, id := range indexed {
		if _, ok := catalog[id]; ok {
			continue
		}
		if err := s.store.Delete(ctx, id); err != nil {
			return purged, fmt.Errorf("delete %d: %w", id, err)
		}
		purged++
	}
	if purged > 0 {
		s.log.Info(syncModule, "Purged removed documents from the index", map[string]interface{}{"count": purged})
	}
	return purged, nil
}

func (s *SyncService) publishCompleted(ctx context.Context, report SyncReport) {
	if s.publisher == nil {
		return
	}
	event := events.SyncCompletedEvent{
		Synced:     report.Synced,
		Purged:     report.Purged,
		Total:      report.Total,
		DurationMs: report.Duration.Milliseconds(),
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn(syncModule, "Failed to publish sync completed event", map[string]interface{}{"error": err.Error()})
	}
}

// SyncTrigger asks the running SyncService for an extra pass.
type SyncTrigger struct {
	publisher message.Publisher
	topic     string
}

func NewSyncTrigger(publisher message.Publisher, topic string) *SyncTrigger {
	return &SyncTrigger{publisher: publisher, topic: topic}
}

func (t *SyncTrigger) RequestSync(ctx context.Context, requestedBy int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]interface{}{
		"requested_by": requestedBy,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return t.publisher.Publish(t.topic, message.NewMessage(uuid.NewString(), payload))
}
