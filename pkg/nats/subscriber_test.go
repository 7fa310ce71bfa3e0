package nats

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"docassist-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	data     []byte
	subject  string
	acked    bool
	naked    bool
	progress atomic.Int32
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return m.subject }
func (m *fakeMsg) Ack() error      { m.acked = true; return nil }
func (m *fakeMsg) Nak() error      { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error {
	m.progress.Add(1)
	return nil
}

func TestHandleMessage(t *testing.T) {
	t.Run("success acks and strips the prefix", func(t *testing.T) {
		msg := &fakeMsg{data: []byte(`{"document_id":42}`), subject: "events.DOCUMENT_DELETED"}
		var got events.Event
		handleMessage(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			got = e
			return nil
		})

		require.NotNil(t, got)
		assert.Equal(t, events.EventTypeDocumentDeleted, got.EventType())
		assert.Equal(t, float64(42), got.Payload()["document_id"])
		assert.True(t, msg.acked)
		assert.False(t, msg.naked)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		msg := &fakeMsg{data: []byte(`not json`), subject: "events.DOCUMENT_DELETED"}
		called := false
		handleMessage(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, msg.acked)
	})

	t.Run("permanent failure is dropped", func(t *testing.T) {
		msg := &fakeMsg{data: []byte(`{}`), subject: "events.DOCUMENT_DELETED"}
		handleMessage(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			return fmt.Errorf("%w: no id", ErrPermanent)
		})
		assert.True(t, msg.acked)
		assert.False(t, msg.naked)
	})

	t.Run("transient failure is redelivered", func(t *testing.T) {
		msg := &fakeMsg{data: []byte(`{"document_id":1}`), subject: "events.DOCUMENT_ARCHIVED"}
		handleMessage(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			return errors.New("index unavailable")
		})
		assert.False(t, msg.acked)
		assert.True(t, msg.naked)
	})
}

func TestDispatchExtendsAckDeadline(t *testing.T) {
	t.Run("slow handler reports progress", func(t *testing.T) {
		msg := &fakeMsg{data: []byte(`{"project_id":3}`), subject: "events.PROJECT_ACCESS_CHANGED"}
		dispatch(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			time.Sleep(80 * time.Millisecond)
			return nil
		}, 10*time.Millisecond)

		assert.GreaterOrEqual(t, msg.progress.Load(), int32(2))
		assert.True(t, msg.acked)
	})

	t.Run("no progress after the handler returns", func(t *testing.T) {
		msg := &fakeMsg{data: []byte(`{"document_id":1}`), subject: "events.DOCUMENT_UPDATED"}
		dispatch(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			return nil
		}, 10*time.Millisecond)

		before := msg.progress.Load()
		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, before, msg.progress.Load())
	})
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.SYNC_COMPLETED", Subject(events.EventTypeSyncCompleted))
}
