package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitlementTransitions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		from EntitlementStatus
		ev   EntitlementEventType
		want EntitlementStatus
	}{
		{EntitlementStatusNone, EntitlementEventRenewed, EntitlementStatusActive},
		{EntitlementStatusNone, EntitlementEventPaymentFailed, EntitlementStatusNone},
		{EntitlementStatusNone, EntitlementEventCancelled, EntitlementStatusNone},
		{EntitlementStatusNone, EntitlementEventExpiredByTime, EntitlementStatusNone},

		{EntitlementStatusActive, EntitlementEventRenewed, EntitlementStatusActive},
		{EntitlementStatusActive, EntitlementEventPaymentFailed, EntitlementStatusExpired},
		{EntitlementStatusActive, EntitlementEventCancelled, EntitlementStatusExpired},
		{EntitlementStatusActive, EntitlementEventExpiredByTime, EntitlementStatusExpired},

		{EntitlementStatusExpired, EntitlementEventRenewed, EntitlementStatusActive},
		{EntitlementStatusExpired, EntitlementEventPaymentFailed, EntitlementStatusExpired},
		{EntitlementStatusExpired, EntitlementEventCancelled, EntitlementStatusExpired},
		{EntitlementStatusExpired, EntitlementEventExpiredByTime, EntitlementStatusExpired},

		{EntitlementStatusSuspended, EntitlementEventRenewed, EntitlementStatusActive},
		{EntitlementStatusSuspended, EntitlementEventPaymentFailed, EntitlementStatusSuspended},
		{EntitlementStatusSuspended, EntitlementEventCancelled, EntitlementStatusSuspended},
		{EntitlementStatusSuspended, EntitlementEventExpiredByTime, EntitlementStatusSuspended},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_"+string(tc.ev), func(t *testing.T) {
			record := &EntitlementRecord{UserID: "u1", Status: tc.from, LastSequence: 5}
			applied := record.Apply(EntitlementEvent{
				UserID:     "u1",
				Type:       tc.ev,
				Sequence:   6,
				ValidUntil: now.Add(30 * 24 * time.Hour),
			}, now)

			require.True(t, applied)
			assert.Equal(t, tc.want, record.Status)
			assert.Equal(t, int64(6), record.LastSequence)
		})
	}
}

func TestEntitlementEventReplayIsNoOp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record := &EntitlementRecord{UserID: "u1", Status: EntitlementStatusNone}

	renew := EntitlementEvent{
		UserID:     "u1",
		Type:       EntitlementEventRenewed,
		Sequence:   1,
		PaymentID:  "pay-1",
		ValidUntil: now.Add(30 * 24 * time.Hour),
	}
	require.True(t, record.Apply(renew, now))
	afterFirst := *record

	// Redelivery of the same sequence must not change anything, even when
	// state-changing events landed in between would make it dangerous.
	require.False(t, record.Apply(renew, now.Add(time.Minute)))
	assert.Equal(t, afterFirst, *record)

	cancel := EntitlementEvent{UserID: "u1", Type: EntitlementEventCancelled, Sequence: 2}
	require.True(t, record.Apply(cancel, now))
	assert.Equal(t, EntitlementStatusExpired, record.Status)

	// A late replay of the earlier renewal cannot resurrect the subscription.
	require.False(t, record.Apply(renew, now))
	assert.Equal(t, EntitlementStatusExpired, record.Status)
	assert.Equal(t, int64(2), record.LastSequence)
}

func TestEntitlementActiveAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record := &EntitlementRecord{
		Status:     EntitlementStatusActive,
		ValidUntil: now.Add(time.Hour),
	}

	assert.True(t, record.ActiveAt(now))
	assert.False(t, record.ActiveAt(now.Add(time.Hour)))
	assert.False(t, record.ActiveAt(now.Add(2*time.Hour)))

	record.Status = EntitlementStatusExpired
	assert.False(t, record.ActiveAt(now))
}

func TestContentWindowContains(t *testing.T) {
	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	record := &ContentRecord{WindowStart: &start, WindowEnd: &end}

	assert.False(t, record.WindowContains(start.Add(-time.Minute)))
	assert.True(t, record.WindowContains(start))
	assert.True(t, record.WindowContains(start.Add(time.Hour)))
	assert.True(t, record.WindowContains(end))
	assert.False(t, record.WindowContains(end.Add(time.Minute)))

	unbounded := &ContentRecord{}
	assert.True(t, unbounded.WindowContains(start))
}
