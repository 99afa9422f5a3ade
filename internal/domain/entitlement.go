package domain

import "time"

// EntitlementStatus enumerates a subscriber's paid-access state.
type EntitlementStatus string

const (
	EntitlementStatusNone      EntitlementStatus = "NONE"
	EntitlementStatusActive    EntitlementStatus = "ACTIVE"
	EntitlementStatusExpired   EntitlementStatus = "EXPIRED"
	EntitlementStatusSuspended EntitlementStatus = "SUSPENDED"
)

// EntitlementEventType enumerates transitions raised by the payment collaborator.
type EntitlementEventType string

const (
	EntitlementEventRenewed       EntitlementEventType = "renewed"
	EntitlementEventPaymentFailed EntitlementEventType = "payment_failed"
	EntitlementEventCancelled     EntitlementEventType = "cancelled"
	EntitlementEventExpiredByTime EntitlementEventType = "expired_by_time"
)

// ValidEntitlementEventType reports whether t is a known event type.
func ValidEntitlementEventType(t EntitlementEventType) bool {
	switch t {
	case EntitlementEventRenewed, EntitlementEventPaymentFailed,
		EntitlementEventCancelled, EntitlementEventExpiredByTime:
		return true
	}
	return false
}

// EntitlementRecord is the authoritative paid-access state for one subscriber.
type EntitlementRecord struct {
	UserID        string
	Status        EntitlementStatus
	ValidUntil    time.Time
	LastPaymentID string
	// LastSequence is the sequence number of the last applied event. Events
	// at or below it are replays and must not change state. It also serves
	// as the record's source version for cache invalidation.
	LastSequence int64
	UpdatedAt    time.Time
}

// EntitlementEvent is one ordered-per-subject event from the payment
// collaborator. Delivery is at-least-once.
type EntitlementEvent struct {
	UserID    string
	Type      EntitlementEventType
	Sequence  int64
	PaymentID string
	// ValidUntil carries the new subscription horizon on renewal events.
	ValidUntil time.Time
}

// Apply transitions the record per the event, returning false for replays
// (sequence at or below the last applied one). The transition table:
// a renewal always activates; failure/cancellation/time-expiry move ACTIVE
// and EXPIRED to EXPIRED, leave NONE as NONE, and leave SUSPENDED suspended.
func (r *EntitlementRecord) Apply(ev EntitlementEvent, now time.Time) bool {
	if ev.Sequence <= r.LastSequence {
		return false
	}

	if ev.Type == EntitlementEventRenewed {
		r.Status = EntitlementStatusActive
		r.ValidUntil = ev.ValidUntil
		if ev.PaymentID != "" {
			r.LastPaymentID = ev.PaymentID
		}
	} else {
		switch r.Status {
		case EntitlementStatusActive, EntitlementStatusExpired:
			r.Status = EntitlementStatusExpired
		case EntitlementStatusNone, EntitlementStatusSuspended:
			// unchanged
		}
	}

	r.LastSequence = ev.Sequence
	r.UpdatedAt = now
	return true
}

// ActiveAt reports whether the entitlement grants premium access at now.
func (r *EntitlementRecord) ActiveAt(now time.Time) bool {
	return r.Status == EntitlementStatusActive && r.ValidUntil.After(now)
}
