package events

import (
	"time"

	"github.com/spec-kit/stream-access/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEntitlementUpdated EventType = "entitlement_updated"
	EventContentPublished   EventType = "content_published"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EntitlementUpdatedPayload describes an applied entitlement transition.
type EntitlementUpdatedPayload struct {
	UserID   string                   `json:"user_id"`
	Status   domain.EntitlementStatus `json:"status"`
	Sequence int64                    `json:"sequence"`
}

// ContentPublishedPayload describes a catalog upsert.
type ContentPublishedPayload struct {
	ContentID string `json:"content_id"`
	Version   int64  `json:"version"`
}
