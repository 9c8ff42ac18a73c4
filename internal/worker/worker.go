package worker

import (
	"context"
	"encoding/json"
	"log"

	"shopper-service/internal/broker"
	"shopper-service/internal/models"
	"shopper-service/internal/redisclient"

	"github.com/segmentio/kafka-go"
)

// NotificationWorker fans events from Kafka out to per-user Redis channels
// so connected clients see order and wallet changes pushed live. It never
// mutates state; a lost notification only delays what the next read shows.
type NotificationWorker struct {
	consumer *broker.Consumer
	redis    *redisclient.Client
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, redis *redisclient.Client) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		redis:    redis,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			// Malformed messages are skipped, not retried.
			log.Printf("Failed to unmarshal event: %v", err)
			return nil
		}
		if baseEvent.UserID == "" {
			return nil
		}

		if err := w.redis.PublishUserEvent(ctx, baseEvent.UserID, msg.Value); err != nil {
			log.Printf("Failed to publish %s to user channel: %v", baseEvent.EventType, err)
		}
		return nil
	})
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
