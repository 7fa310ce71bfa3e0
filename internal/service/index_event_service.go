package service

import (
	"context"
	"fmt"

	"docassist-be/internal/pkg/logger"
	"docassist-be/pkg/events"
	"docassist-be/pkg/nats"
	"docassist-be/pkg/vectorstore"
)

const (
	indexEventsModule = "INDEX_EVENTS"

	IndexEventsDurable = "docassist-index"
)

// EventSubscriber is satisfied by the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, durableName string, handler nats.EventHandler, eventTypes ...string) error
}

// Reindexer is satisfied by SyncService.
type Reindexer interface {
	ResyncDocument(ctx context.Context, id int64) error
	ResyncProject(ctx context.Context, projectID int64) (int, error)
}

// IndexEventConsumer applies document management system changes to the index as
// they happen instead of waiting for the next sync pass. Archived and deleted
// documents are removed. With a Reindexer, updated documents and projects whose
// membership changed are re-indexed too, and removals go through the Reindexer so
// they are ordered after any pass in flight.
type IndexEventConsumer struct {
	store     vectorstore.Provider
	reindexer Reindexer
	log       logger.ILogger
}

func NewIndexEventConsumer(store vectorstore.Provider, reindexer Reindexer, log logger.ILogger) *IndexEventConsumer {
	return &IndexEventConsumer{store: store, reindexer: reindexer, log: log}
}

// EventTypes lists what the consumer subscribes to.
func (c *IndexEventConsumer) EventTypes() []string {
	types := []string{events.EventTypeDocumentArchived, events.EventTypeDocumentDeleted}
	if c.reindexer != nil {
		types = append(types, events.EventTypeDocumentUpdated, events.EventTypeProjectAccessChanged)
	}
	return types
}

func (c *IndexEventConsumer) Start(ctx context.Context, sub EventSubscriber) error {
	return sub.Subscribe(ctx, IndexEventsDurable, c.Handle, c.EventTypes()...)
}

// Handle returns an nats.ErrPermanent error for payloads that can never succeed so
// they are not redelivered.
func (c *IndexEventConsumer) Handle(ctx context.Context, event events.Event) error {
	switch event.EventType() {
	case events.EventTypeDocumentArchived, events.EventTypeDocumentDeleted:
		return c.remove(ctx, event)
	case events.EventTypeDocumentUpdated:
		if c.reindexer != nil {
			return c.reindexDocument(ctx, event)
		}
	case events.EventTypeProjectAccessChanged:
		if c.reindexer != nil {
			return c.reindexProject(ctx, event)
		}
	}
	c.log.Warn(indexEventsModule, "Ignoring unexpected event", map[string]interface{}{"type": event.EventType()})
	return nil
}

func (c *IndexEventConsumer) invalid(event events.Event, err error) error {
	c.log.Warn(indexEventsModule, "Invalid event payload", map[string]interface{}{
		"type":  event.EventType(),
		"error": err.Error(),
	})
	return fmt.Errorf("%w: %v", nats.ErrPermanent, err)
}

func (c *IndexEventConsumer) reindexDocument(ctx context.Context, event events.Event) error {
	id, err := events.DocumentID(event)
	if err != nil {
		return c.invalid(event, err)
	}
	if err := c.reindexer.ResyncDocument(ctx, id); err != nil {
		c.log.Error(indexEventsModule, "Failed to re-index document", map[string]interface{}{
			"document_id": id,
			"error":       err.Error(),
		})
		return err
	}
	return nil
}

func (c *IndexEventConsumer) reindexProject(ctx context.Context, event events.Event) error {
	projectID, err := events.ProjectID(event)
	if err != nil {
		return c.invalid(event, err)
	}
	if _, err := c.reindexer.ResyncProject(ctx, projectID); err != nil {
		c.log.Error(indexEventsModule, "Failed to re-index project", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
		return err
	}
	return nil
}

func (c *IndexEventConsumer) remove(ctx context.Context, event events.Event) error {
	id, err := events.DocumentID(event)
	if err != nil {
		return c.invalid(event, err)
	}

	// A running pass may still upsert id from its snapshot; ResyncDocument waits for
	// it and drops the entry once the catalog no longer lists the document.
	if c.reindexer != nil {
		if err := c.reindexer.ResyncDocument(ctx, id); err != nil {
			c.log.Error(indexEventsModule, "Failed to remove document from index", map[string]interface{}{
				"document_id": id,
				"error":       err.Error(),
			})
			return err
		}
		c.log.Info(indexEventsModule, "Reconciled document after removal event", map[string]interface{}{
			"document_id": id,
			"reason":      event.EventType(),
		})
		return nil
	}

	if err := c.store.Delete(ctx, id); err != nil {
		c.log.Error(indexEventsModule, "Failed to remove document from index", map[string]interface{}{
			"document_id": id,
			"error":       err.Error(),
		})
		return err
	}

	c.log.Info(indexEventsModule, "Removed document from index", map[string]interface{}{
		"document_id": id,
		"reason":      event.EventType(),
	})
	return nil
}
