package broker

import (
	"context"
	"fmt"
	"time"

	"shopper-service/internal/models"

	"github.com/google/uuid"
)

// EventPublisher handles publishing domain events. All events are keyed by
// user so one user's history stays ordered.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// NewBaseEvent stamps the common envelope fields
func NewBaseEvent(eventType, userID string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func userKey(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// PublishOrderPlaced publishes an OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishOrderCancelled publishes an OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishReturnRequested publishes a ReturnRequested event
func (ep *EventPublisher) PublishReturnRequested(ctx context.Context, event *models.ReturnRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishReturnSettled publishes a ReturnSettled event
func (ep *EventPublisher) PublishReturnSettled(ctx context.Context, event *models.ReturnSettledEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishWalletEvent publishes a wallet ledger mutation event
func (ep *EventPublisher) PublishWalletEvent(ctx context.Context, event *models.WalletEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}

// PublishPaymentRetried publishes a PaymentRetried event
func (ep *EventPublisher) PublishPaymentRetried(ctx context.Context, event *models.PaymentRetriedEvent) error {
	return ep.producer.PublishEvent(ctx, userKey(event.UserID), event)
}
