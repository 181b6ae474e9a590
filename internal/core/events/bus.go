package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
)

type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() any
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func (e BaseEvent) EventType() string { return e.Type }
func (e BaseEvent) EventID() string { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) Payload() any { return e.Data }

type Handler func(ctx context.Context, event Event) error

// EventBus fans domain events out to in-process subscribers.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	inflight sync.WaitGroup
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	count := len(eb.handlers[eventType])
	eb.mu.Unlock()

	eb.logger.Info("event subscriber registered", "event_type", eventType, "subscribers", count)
}

func (eb *EventBus) subscribers(eventType string) []Handler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return append([]Handler(nil), eb.handlers[eventType]...)
}

func (eb *EventBus) invoke(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return h(ctx, event)
}

func (eb *EventBus) logFailure(event Event, err error) {
	eb.logger.Error("event subscriber failed",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"error", err)
}

// Publish dispatches event to every subscriber on its own goroutine and returns
// immediately. Subscribers receive a context that survives the caller's cancellation.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	subs := eb.subscribers(event.EventType())
	if len(subs) == 0 {
		eb.logger.Debug("event has no subscribers", "event_type", event.EventType())
		return nil
	}

	eb.logger.Info("publishing event",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"subscribers", len(subs))

	detached := context.WithoutCancel(ctx)
	eb.inflight.Add(len(subs))
	for _, h := range subs {
		go func(h Handler) {
			defer eb.inflight.Done()
			if err := eb.invoke(detached, h, event); err != nil {
				eb.logFailure(event, err)
			}
		}(h)
	}
	return nil
}

// PublishSync runs every subscriber in registration order on the caller's goroutine
// and returns their combined failures.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) error {
	var errs error
	for _, h := range eb.subscribers(event.EventType()) {
		if err := eb.invoke(ctx, h, event); err != nil {
			eb.logFailure(event, err)
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return fmt.Errorf("event %s: %w", event.EventType(), errs)
	}
	return nil
}

// Wait blocks until every asynchronously dispatched subscriber has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}
