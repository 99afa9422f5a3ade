package dto

import "time"

// SessionIssueRequest payload for issuing a session token.
type SessionIssueRequest struct {
	UserID string `json:"user_id"`
}

// SessionResponse standard response for session endpoints.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
