package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"lifecycle-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing lifecycle domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCartAbandoned publishes CartAbandoned event
func (ep *EventPublisher) PublishCartAbandoned(ctx context.Context, event *models.CartAbandonedEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishCartRecovered publishes CartRecovered event
func (ep *EventPublisher) PublishCartRecovered(ctx context.Context, event *models.CartRecoveredEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishRecoveryEmailSent publishes RecoveryEmailSent event
func (ep *EventPublisher) PublishRecoveryEmailSent(ctx context.Context, event *models.RecoveryEmailSentEvent) error {
	key := fmt.Sprintf("cart-%d", event.CartID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishNurtureEmailSent publishes NurtureEmailSent event
func (ep *EventPublisher) PublishNurtureEmailSent(ctx context.Context, event *models.NurtureEmailSentEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// IdempotencyStore remembers processed event ids so a redelivered message is
// not applied twice.
type IdempotencyStore interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// eventDedupeTTL bounds how long processed event ids are remembered. Kafka
// redeliveries land well inside this window.
const eventDedupeTTL = 24 * time.Hour

// EventHandler handles incoming checkout and engagement events
type EventHandler struct {
	idem                 IdempotencyStore
	onOrderCompleted     func(context.Context, *models.OrderCompletedEvent) error
	onCustomerReordered  func(context.Context, *models.CustomerReorderedEvent) error
	onCustomerSubscribed func(context.Context, *models.CustomerSubscribedEvent) error
	onCustomerReviewed   func(context.Context, *models.CustomerReviewedEvent) error
}

// NewEventHandler creates a new event handler. idem may be nil, in which case
// redelivered events are re-applied (the handlers tolerate that).
func NewEventHandler(idem IdempotencyStore) *EventHandler {
	return &EventHandler{idem: idem}
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnCustomerReordered registers a handler for CustomerReordered events
func (eh *EventHandler) OnCustomerReordered(handler func(context.Context, *models.CustomerReorderedEvent) error) {
	eh.onCustomerReordered = handler
}

// OnCustomerSubscribed registers a handler for CustomerSubscribed events
func (eh *EventHandler) OnCustomerSubscribed(handler func(context.Context, *models.CustomerSubscribedEvent) error) {
	eh.onCustomerSubscribed = handler
}

// OnCustomerReviewed registers a handler for CustomerReviewed events
func (eh *EventHandler) OnCustomerReviewed(handler func(context.Context, *models.CustomerReviewedEvent) error) {
	eh.onCustomerReviewed = handler
}

// HandleMessage routes messages to appropriate handlers. Dedupe is
// best-effort: a store outage degrades to at-least-once, it never stalls
// consumption.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	if eh.idem != nil && baseEvent.EventID != "" {
		seen, err := eh.idem.CheckIdempotencyKey(ctx, baseEvent.EventID)
		if err != nil {
			log.Printf("Idempotency check failed, processing anyway: %v", err)
		} else if seen {
			log.Printf("Skipping already-processed event: id=%s", baseEvent.EventID)
			return nil
		}
	}

	if err := eh.dispatch(ctx, baseEvent.EventType, msg.Value); err != nil {
		return err
	}

	if eh.idem != nil && baseEvent.EventID != "" {
		if err := eh.idem.SetIdempotencyKey(ctx, baseEvent.EventID, "1", eventDedupeTTL); err != nil {
			log.Printf("Failed to record processed event id: %v", err)
		}
	}

	return nil
}

// dispatch unmarshals the typed payload and invokes the registered handler
func (eh *EventHandler) dispatch(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypeCustomerReordered:
		if eh.onCustomerReordered != nil {
			var event models.CustomerReorderedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerReordered event: %w", err)
			}
			return eh.onCustomerReordered(ctx, &event)
		}

	case models.EventTypeCustomerSubscribed:
		if eh.onCustomerSubscribed != nil {
			var event models.CustomerSubscribedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerSubscribed event: %w", err)
			}
			return eh.onCustomerSubscribed(ctx, &event)
		}

	case models.EventTypeCustomerReviewed:
		if eh.onCustomerReviewed != nil {
			var event models.CustomerReviewedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerReviewed event: %w", err)
			}
			return eh.onCustomerReviewed(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", eventType)
	}

	return nil
}
