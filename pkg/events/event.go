package events

import (
	"fmt"
	"strconv"
	"time"
)

const (
	// Published by this service after every successful sync pass.
	EventTypeSyncCompleted = "SYNC_COMPLETED"

	// Published by the document management system.
	EventTypeDocumentArchived     = "DOCUMENT_ARCHIVED"
	EventTypeDocumentDeleted      = "DOCUMENT_DELETED"
	EventTypeDocumentUpdated      = "DOCUMENT_UPDATED"
	EventTypeProjectAccessChanged = "PROJECT_ACCESS_CHANGED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SYNC_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

type SyncCompletedEvent struct {
	Synced     int
	Purged     int
	Total      int
	DurationMs int64
	OccurredAt time.Time
}

func (e SyncCompletedEvent) EventType() string {
	return EventTypeSyncCompleted
}

func (e SyncCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"synced":      e.Synced,
		"purged":      e.Purged,
		"total":       e.Total,
		"duration_ms": e.DurationMs,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func (e SyncCompletedEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// DocumentID reads the "document_id" field of a DMS document event.
func DocumentID(e Event) (int64, error) {
	return positiveID(e, "document_id")
}

// ProjectID reads the "project_id" field of a DMS project event.
func ProjectID(e Event) (int64, error) {
	return positiveID(e, "project_id")
}

// positiveID accepts JSON numbers (float64), integers and numeric strings.
func positiveID(e Event, field string) (int64, error) {
	raw, ok := e.Payload()[field]
	if !ok {
		return 0, fmt.Errorf("event %s has no %s", e.EventType(), field)
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return 0, fmt.Errorf("event %s has invalid %s %v", e.EventType(), field, v)
		}
		return int64(v), nil
	case int64:
		if v <= 0 {
			return 0, fmt.Errorf("event %s has invalid %s %d", e.EventType(), field, v)
		}
		return v, nil
	case int:
		if v <= 0 {
			return 0, fmt.Errorf("event %s has invalid %s %d", e.EventType(), field, v)
		}
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("event %s has invalid %s %q", e.EventType(), field, v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("event %s has %s of type %T", e.EventType(), field, raw)
	}
}
