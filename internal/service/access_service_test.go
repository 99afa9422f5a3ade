package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/auth"
	"github.com/spec-kit/stream-access/internal/cache"
	"github.com/spec-kit/stream-access/internal/config"
	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/events"
	"github.com/spec-kit/stream-access/internal/observability"
	"github.com/spec-kit/stream-access/internal/repository/memory"
	"github.com/spec-kit/stream-access/internal/service"
	"github.com/spec-kit/stream-access/internal/worker"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	codec        *auth.TokenCodec
	access       *service.AccessService
	entitlements *service.EntitlementService
	catalog      *service.CatalogService
}

// newFixture wires the full decision path over in-memory stores: codec,
// coordinator, invalidation worker, and the three services.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	coordinator := cache.NewCoordinator(cache.NewLocalTier(nil), nil, cache.Options{
		RetryBackoff: time.Millisecond,
	}, logger, metrics)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartInvalidationWorker(dispatcher, coordinator, logger)

	entitlementRepo := memory.NewEntitlementStore()
	contentRepo := memory.NewContentStore()

	codec := auth.NewTokenCodec(
		config.AuthConfig{JWTSecret: "test-secret", SessionTTLMinutes: 60},
		auth.NewMemoryRevocationStore(), logger)

	cacheCfg := config.CacheConfig{EntitlementTTLSeconds: 30, ContentTTLSeconds: 300}
	access := service.NewAccessService(cacheCfg, service.AccessDependencies{
		Tokens:          codec,
		Cache:           coordinator,
		EntitlementRepo: entitlementRepo,
		ContentRepo:     contentRepo,
	}, logger, metrics)

	return &fixture{
		codec:        codec,
		access:       access,
		entitlements: service.NewEntitlementService(entitlementRepo, dispatcher, logger),
		catalog:      service.NewCatalogService(contentRepo, dispatcher, logger),
	}
}

func (f *fixture) token(t *testing.T, userID string, issuedAt time.Time) string {
	t.Helper()
	token, _, err := f.codec.Issue(userID, issuedAt)
	require.NoError(t, err)
	return token
}

func (f *fixture) publish(t *testing.T, record *domain.ContentRecord) {
	t.Helper()
	_, err := f.catalog.Publish(context.Background(), record)
	require.NoError(t, err)
}

func (f *fixture) renew(t *testing.T, userID string, sequence int64, validUntil time.Time) {
	t.Helper()
	_, err := f.entitlements.ApplyEvent(context.Background(), domain.EntitlementEvent{
		UserID:     userID,
		Type:       domain.EntitlementEventRenewed,
		Sequence:   sequence,
		PaymentID:  "pay-1",
		ValidUntil: validUntil,
	})
	require.NoError(t, err)
}

func TestDecideFreeContentIgnoresEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "highlights-1",
		Locator:    "https://cdn.example/highlights-1.m3u8",
		Visibility: domain.ContentVisibilityFree,
	})

	// No entitlement record exists for this user at all.
	decision := f.access.Decide(ctx, f.token(t, "user-1", t0), "highlights-1", t0.Add(time.Minute))
	assert.True(t, decision.Allow)
	assert.Equal(t, "https://cdn.example/highlights-1.m3u8", decision.Locator)
}

func TestDecideUnauthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "c1",
		Locator:    "https://cdn.example/c1",
		Visibility: domain.ContentVisibilityFree,
	})

	decision := f.access.Decide(ctx, "garbage-token", "c1", t0)
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyUnauthenticated, decision.Reason)

	// Valid token, verified after expiry: same reason, no distinction leaked.
	token := f.token(t, "user-1", t0)
	decision = f.access.Decide(ctx, token, "c1", t0.Add(61*time.Minute))
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyUnauthenticated, decision.Reason)
}

func TestDecideRevokedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "c1",
		Locator:    "https://cdn.example/c1",
		Visibility: domain.ContentVisibilityFree,
	})

	token := f.token(t, "user-1", t0)
	require.NoError(t, f.codec.Revoke(ctx, "user-1", t0.Add(5*time.Minute)))

	decision := f.access.Decide(ctx, token, "c1", t0.Add(10*time.Minute))
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyUnauthenticated, decision.Reason)
}

func TestDecideContentUnavailable(t *testing.T) {
	f := newFixture(t)

	decision := f.access.Decide(context.Background(), f.token(t, "user-1", t0), "no-such-content", t0)
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyContentUnavailable, decision.Reason)
}

func TestDecidePremiumEntitlementStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	windowStart := t0
	windowEnd := t0.Add(3 * time.Hour)
	f.publish(t, &domain.ContentRecord{
		ID:          "match-final",
		Locator:     "https://cdn.example/match-final.m3u8",
		Visibility:  domain.ContentVisibilityPremium,
		WindowStart: &windowStart,
		WindowEnd:   &windowEnd,
	})

	// No subscription at all.
	decision := f.access.Decide(ctx, f.token(t, "user-1", t0), "match-final", t0.Add(time.Hour))
	assert.Equal(t, domain.DenyNoSubscription, decision.Reason)

	// Active subscription inside the window.
	f.renew(t, "user-2", 1, t0.Add(30*24*time.Hour))
	decision = f.access.Decide(ctx, f.token(t, "user-2", t0), "match-final", t0.Add(time.Hour))
	require.True(t, decision.Allow)
	assert.Equal(t, "https://cdn.example/match-final.m3u8", decision.Locator)

	// Same subscriber at t0+4h: content window has closed.
	late := f.token(t, "user-2", t0.Add(3*time.Hour+30*time.Minute))
	decision = f.access.Decide(ctx, late, "match-final", t0.Add(4*time.Hour))
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyOutsideWindow, decision.Reason)
}

func TestDecidePremiumExpiredEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "series-1",
		Locator:    "https://cdn.example/series-1",
		Visibility: domain.ContentVisibilityPremium,
	})

	f.renew(t, "user-1", 1, t0.Add(24*time.Hour))
	_, err := f.entitlements.ApplyEvent(ctx, domain.EntitlementEvent{
		UserID:   "user-1",
		Type:     domain.EntitlementEventCancelled,
		Sequence: 2,
	})
	require.NoError(t, err)

	decision := f.access.Decide(ctx, f.token(t, "user-1", t0), "series-1", t0.Add(time.Minute))
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyEntitlementExpired, decision.Reason)
}

func TestDecidePremiumValidUntilBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "series-1",
		Locator:    "https://cdn.example/series-1",
		Visibility: domain.ContentVisibilityPremium,
	})
	f.renew(t, "user-1", 1, t0.Add(time.Hour))

	decision := f.access.Decide(ctx, f.token(t, "user-1", t0), "series-1", t0.Add(59*time.Minute))
	assert.True(t, decision.Allow)

	// validUntil has passed even though the status field still says active.
	late := f.token(t, "user-1", t0.Add(time.Hour))
	decision = f.access.Decide(ctx, late, "series-1", t0.Add(61*time.Minute))
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyEntitlementExpired, decision.Reason)
}

func TestPublishInvalidatesCachedContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "c1",
		Locator:    "https://cdn.example/locator-a",
		Visibility: domain.ContentVisibilityFree,
	})

	token := f.token(t, "user-1", t0)
	decision := f.access.Decide(ctx, token, "c1", t0.Add(time.Minute))
	require.True(t, decision.Allow)
	assert.Equal(t, "https://cdn.example/locator-a", decision.Locator)

	// Republish with a new locator. The content TTL is five minutes, so
	// only the publish-triggered invalidation can explain seeing B here.
	f.publish(t, &domain.ContentRecord{
		ID:         "c1",
		Locator:    "https://cdn.example/locator-b",
		Visibility: domain.ContentVisibilityFree,
	})

	decision = f.access.Decide(ctx, token, "c1", t0.Add(2*time.Minute))
	require.True(t, decision.Allow)
	assert.Equal(t, "https://cdn.example/locator-b", decision.Locator)
}

func TestEntitlementEventInvalidatesCachedEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.publish(t, &domain.ContentRecord{
		ID:         "series-1",
		Locator:    "https://cdn.example/series-1",
		Visibility: domain.ContentVisibilityPremium,
	})
	f.renew(t, "user-1", 1, t0.Add(30*24*time.Hour))

	token := f.token(t, "user-1", t0)
	decision := f.access.Decide(ctx, token, "series-1", t0.Add(time.Minute))
	require.True(t, decision.Allow)

	// Cancellation lands while the entitlement is still inside its cache
	// TTL; the invalidation must make the very next decision see it.
	_, err := f.entitlements.ApplyEvent(ctx, domain.EntitlementEvent{
		UserID:   "user-1",
		Type:     domain.EntitlementEventCancelled,
		Sequence: 2,
	})
	require.NoError(t, err)

	decision = f.access.Decide(ctx, token, "series-1", t0.Add(2*time.Minute))
	assert.False(t, decision.Allow)
	assert.Equal(t, domain.DenyEntitlementExpired, decision.Reason)
}
