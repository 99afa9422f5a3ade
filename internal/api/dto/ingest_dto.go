package dto

import "time"

// EntitlementEventRequest is one delivery from the payment collaborator.
type EntitlementEventRequest struct {
	UserID     string     `json:"user_id"`
	EventType  string     `json:"event_type"`
	Sequence   int64      `json:"sequence"`
	PaymentID  string     `json:"payment_id,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// ContentPublishRequest is one upsert from the content-ingestion collaborator.
type ContentPublishRequest struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Locator     string     `json:"locator"`
	Visibility  string     `json:"visibility"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
}

// EntitlementResponse mirrors the stored record after an applied event.
type EntitlementResponse struct {
	UserID       string    `json:"user_id"`
	Status       string    `json:"status"`
	ValidUntil   time.Time `json:"valid_until"`
	LastSequence int64     `json:"last_sequence"`
}

// ContentPublishResponse confirms the stored version.
type ContentPublishResponse struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}
