package domain

import (
	"encoding/json"
	"time"
)

// WebhookDeliveryStatus is the lifecycle state of a delivery row.
//
// QUEUED rows are picked up by the worker; SENT and FAILED are terminal.
// FAILED means the retry budget was exhausted (dead letter).
type WebhookDeliveryStatus string

const (
	WebhookDeliveryStatusQueued WebhookDeliveryStatus = "QUEUED"
	WebhookDeliveryStatusSent   WebhookDeliveryStatus = "SENT"
	WebhookDeliveryStatusFailed WebhookDeliveryStatus = "FAILED"
)

// Webhook event types. An endpoint with an empty filter, or a filter
// containing EventTypeWildcard, receives every event.
const (
	EventTypeWildcard           = "*"
	EventTypeEventCreated       = "event.created"
	EventTypePlantStatusChanged = "plant.status_changed"
	EventTypeBatchStatusChanged = "batch.status_changed"
)

// KnownEventTypes lists the concrete event types accepted in endpoint filters.
var KnownEventTypes = []string{
	EventTypeEventCreated,
	EventTypePlantStatusChanged,
	EventTypeBatchStatusChanged,
}

// WebhookEndpoint is an owner-scoped delivery target. The shared secret is
// write-only; only its last four characters are ever exposed after creation.
type WebhookEndpoint struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OwnerID    uint      `gorm:"not null;index" json:"-"`
	Name       string    `gorm:"size:128;not null" json:"name"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	EventTypes []byte    `gorm:"type:bytes" json:"-"`
	Secret     string    `gorm:"size:128;not null" json:"-"`
	SecretLast4 string   `gorm:"size:4" json:"secret_last4"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EventTypeFilter decodes the stored subscription filter. An empty slice
// subscribes the endpoint to all event types.
func (e *WebhookEndpoint) EventTypeFilter() []string {
	if len(e.EventTypes) == 0 {
		return nil
	}
	var types []string
	if err := json.Unmarshal(e.EventTypes, &types); err != nil {
		return nil
	}
	return types
}

// SetEventTypeFilter encodes the subscription filter for storage.
func (e *WebhookEndpoint) SetEventTypeFilter(types []string) error {
	if len(types) == 0 {
		e.EventTypes = nil
		return nil
	}
	raw, err := json.Marshal(types)
	if err != nil {
		return err
	}
	e.EventTypes = raw
	return nil
}

// Subscribed reports whether an active endpoint should receive eventType.
func (e *WebhookEndpoint) Subscribed(eventType string) bool {
	if !e.IsActive {
		return false
	}
	types := e.EventTypeFilter()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == EventTypeWildcard || t == eventType {
			return true
		}
	}
	return false
}

// WebhookDelivery is one enqueued payload for one endpoint. The payload is
// immutable after creation; all other mutable fields are bookkeeping owned by
// the delivery worker.
type WebhookDelivery struct {
	ID              uint                  `gorm:"primaryKey" json:"id"`
	OwnerID         uint                  `gorm:"not null;index" json:"-"`
	EndpointID      uint                  `gorm:"not null;index" json:"endpoint_id"`
	Endpoint        *WebhookEndpoint      `gorm:"foreignKey:EndpointID" json:"-"`
	EventType       string                `gorm:"size:64;not null;index" json:"event_type"`
	Payload         []byte                `gorm:"type:bytes" json:"payload"`
	Status          WebhookDeliveryStatus `gorm:"size:16;not null;index:idx_delivery_due" json:"status"`
	AttemptCount    int                   `gorm:"not null;default:0" json:"attempt_count"`
	LastAttemptAt   *time.Time            `json:"last_attempt_at"`
	NextAttemptAt   *time.Time            `gorm:"index:idx_delivery_due" json:"next_attempt_at"`
	ResponseStatus  *int                  `json:"response_status"`
	ResponseHeaders []byte                `gorm:"type:bytes" json:"response_headers"`
	ResponseBody    string                `gorm:"size:8192" json:"response_body"`
	LastError       string                `gorm:"size:1024" json:"last_error"`
	DurationMS      int64                 `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt       time.Time             `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// Terminal reports whether the delivery can no longer transition.
func (d *WebhookDelivery) Terminal() bool {
	return d.Status == WebhookDeliveryStatusSent || d.Status == WebhookDeliveryStatusFailed
}
