package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ARamos00/nursery-tracker/internal/domain"
	"github.com/ARamos00/nursery-tracker/internal/repository"
)

// WebhookEnqueuer creates QUEUED delivery rows for every active endpoint of an
// owner whose subscription filter matches the event type. It performs no
// network I/O; the delivery worker handles signing, retries, and transitions.
type WebhookEnqueuer struct {
	endpoints  repository.WebhookEndpointRepository
	deliveries repository.WebhookDeliveryRepository
	logger     *slog.Logger
}

func NewWebhookEnqueuer(
	endpoints repository.WebhookEndpointRepository,
	deliveries repository.WebhookDeliveryRepository,
	logger *slog.Logger,
) *WebhookEnqueuer {
	return &WebhookEnqueuer{endpoints: endpoints, deliveries: deliveries, logger: logger}
}

// EnqueueInTx writes delivery rows inside the caller's transaction so the
// domain mutation and its outbox rows commit atomically. Returns the number
// of deliveries enqueued.
func (e *WebhookEnqueuer) EnqueueInTx(ctx context.Context, tx *gorm.DB, ownerID uint, eventType string, payload any) (int, error) {
	endpoints, err := e.endpoints.ListActive(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list active endpoints: %w", err)
	}

	body, err := json.Marshal(eventEnvelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}

	count := 0
	for i := range endpoints {
		ep := &endpoints[i]
		if !ep.Subscribed(eventType) {
			continue
		}
		d := &domain.WebhookDelivery{
			OwnerID:    ownerID,
			EndpointID: ep.ID,
			EventType:  eventType,
			Payload:    body,
			Status:     domain.WebhookDeliveryStatusQueued,
		}
		if err := e.deliveries.CreateInTx(tx, d); err != nil {
			return count, fmt.Errorf("enqueue delivery for endpoint %d: %w", ep.ID, err)
		}
		count++
	}
	if count > 0 {
		e.logger.Debug("webhook deliveries enqueued", "owner_id", ownerID, "event_type", eventType, "count", count)
	}
	return count, nil
}

type eventEnvelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}
