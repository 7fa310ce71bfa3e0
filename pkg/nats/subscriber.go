package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"docassist-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// ackWait bounds how long a silent handler keeps a message before redelivery.
	ackWait = 2 * time.Minute
	// progressInterval is how often a running handler extends its ack deadline.
	progressInterval = 20 * time.Second
)

// ErrPermanent marks a handler failure that a redelivery cannot fix. Such messages
// are acknowledged and dropped instead of retried.
var ErrPermanent = errors.New("permanent event failure")

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Subscribe registers a durable consumer for the given event types on the EVENTS
// stream. Handling stops when ctx is cancelled.
func (s *Subscriber) Subscribe(ctx context.Context, durableName string, handler EventHandler, eventTypes ...string) error {
	if len(eventTypes) == 0 {
		return fmt.Errorf("subscribe %s: no event types", durableName)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ensureStream(setupCtx, s.js); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	subjects := make([]string, len(eventTypes))
	for i, t := range eventTypes {
		subjects[i] = Subject(t)
	}

	consumer, err := s.js.CreateOrUpdateConsumer(setupCtx, StreamName, jetstream.ConsumerConfig{
		Durable:        durableName,
		FilterSubjects: subjects,
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        ackWait,
		MaxDeliver:     10,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Stop()
	}()

	log.Printf("Subscribed to %s with durable %s", strings.Join(subjects, ","), durableName)
	return nil
}

// ackable is the part of jetstream.Msg the dispatcher needs.
type ackable interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
	InProgress() error
}

func handleMessage(ctx context.Context, msg ackable, handler EventHandler) {
	dispatch(ctx, msg, handler, progressInterval)
}

// dispatch runs handler and extends the ack deadline every interval while it runs.
func dispatch(ctx context.Context, msg ackable, handler EventHandler, interval time.Duration) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Data(), &payload); err != nil {
		log.Printf("Dropping malformed event on %s: %v", msg.Subject(), err)
		_ = msg.Ack()
		return
	}

	event := events.BaseEvent{
		Type:       strings.TrimPrefix(msg.Subject(), SubjectPrefix),
		Data:       payload,
		OccurredAt: time.Now(),
	}

	stop := keepAlive(msg, interval)
	err := handler(ctx, event)
	stop()

	if err != nil {
		if errors.Is(err, ErrPermanent) {
			log.Printf("Dropping event %s: %v", msg.Subject(), err)
			_ = msg.Ack()
			return
		}
		log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}

// keepAlive calls InProgress on msg every interval until stop returns. No call
// happens after stop, so the final Ack or Nak is always the last word.
func keepAlive(msg ackable, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := msg.InProgress(); err != nil {
					log.Printf("Failed to extend ack deadline for %s: %v", msg.Subject(), err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (s *Subscriber) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
