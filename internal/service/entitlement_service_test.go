package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/events"
	"github.com/spec-kit/stream-access/internal/repository/memory"
	"github.com/spec-kit/stream-access/internal/service"
)

func newEntitlementService() (*service.EntitlementService, *memory.EntitlementStore) {
	repo := memory.NewEntitlementStore()
	return service.NewEntitlementService(repo, events.NewInMemoryDispatcher(), zap.NewNop()), repo
}

func TestApplyEventCreatesRecordOnFirstRenewal(t *testing.T) {
	svc, repo := newEntitlementService()
	ctx := context.Background()
	until := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	record, err := svc.ApplyEvent(ctx, domain.EntitlementEvent{
		UserID:     "user-1",
		Type:       domain.EntitlementEventRenewed,
		Sequence:   1,
		PaymentID:  "pay-1",
		ValidUntil: until,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EntitlementStatusActive, record.Status)
	assert.Equal(t, until, record.ValidUntil)
	assert.Equal(t, "pay-1", record.LastPaymentID)

	stored, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.LastSequence)
}

func TestApplyEventReplayLeavesRecordUnchanged(t *testing.T) {
	svc, repo := newEntitlementService()
	ctx := context.Background()
	until := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	renew := domain.EntitlementEvent{
		UserID:     "user-1",
		Type:       domain.EntitlementEventRenewed,
		Sequence:   1,
		ValidUntil: until,
	}
	_, err := svc.ApplyEvent(ctx, renew)
	require.NoError(t, err)
	first, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)

	// The payment collaborator redelivers at least once.
	_, err = svc.ApplyEvent(ctx, renew)
	require.NoError(t, err)
	second, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApplyEventOutOfOrderDeliveryIgnored(t *testing.T) {
	svc, repo := newEntitlementService()
	ctx := context.Background()

	_, err := svc.ApplyEvent(ctx, domain.EntitlementEvent{
		UserID:     "user-1",
		Type:       domain.EntitlementEventRenewed,
		Sequence:   3,
		ValidUntil: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// A delayed earlier event must not rewind the record.
	_, err = svc.ApplyEvent(ctx, domain.EntitlementEvent{
		UserID:   "user-1",
		Type:     domain.EntitlementEventCancelled,
		Sequence: 2,
	})
	require.NoError(t, err)

	stored, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntitlementStatusActive, stored.Status)
	assert.Equal(t, int64(3), stored.LastSequence)
}

func TestApplyEventRejectsInvalidEvents(t *testing.T) {
	svc, _ := newEntitlementService()
	ctx := context.Background()

	_, err := svc.ApplyEvent(ctx, domain.EntitlementEvent{Type: domain.EntitlementEventRenewed, Sequence: 1})
	assert.Error(t, err, "missing user id")

	_, err = svc.ApplyEvent(ctx, domain.EntitlementEvent{UserID: "u", Type: "upgraded", Sequence: 1})
	assert.Error(t, err, "unknown event type")

	_, err = svc.ApplyEvent(ctx, domain.EntitlementEvent{UserID: "u", Type: domain.EntitlementEventRenewed})
	assert.Error(t, err, "non-positive sequence")
}

func TestPublishBumpsVersionMonotonically(t *testing.T) {
	repo := memory.NewContentStore()
	svc := service.NewCatalogService(repo, events.NewInMemoryDispatcher(), zap.NewNop())
	ctx := context.Background()

	record := &domain.ContentRecord{
		ID:         "c1",
		Locator:    "https://cdn.example/a",
		Visibility: domain.ContentVisibilityFree,
	}
	published, err := svc.Publish(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, int64(1), published.Version)

	record.Locator = "https://cdn.example/b"
	published, err = svc.Publish(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, int64(2), published.Version)

	stored, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/b", stored.Locator)
	assert.Equal(t, int64(2), stored.Version)
}

func TestPublishRejectsInvalidRecords(t *testing.T) {
	svc := service.NewCatalogService(memory.NewContentStore(), events.NewInMemoryDispatcher(), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Publish(ctx, &domain.ContentRecord{Locator: "x", Visibility: domain.ContentVisibilityFree})
	assert.Error(t, err, "missing id")

	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.Publish(ctx, &domain.ContentRecord{
		ID: "c1", Locator: "x",
		Visibility:  domain.ContentVisibilityPremium,
		WindowStart: &start,
		WindowEnd:   &end,
	})
	assert.Error(t, err, "window ends before start")
}
