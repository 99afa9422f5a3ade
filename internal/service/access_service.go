package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/auth"
	"github.com/spec-kit/stream-access/internal/cache"
	"github.com/spec-kit/stream-access/internal/config"
	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/observability"
	"github.com/spec-kit/stream-access/internal/repository"
)

// AccessService is the gate on the request path: it combines a verified
// token, current entitlement, and content visibility into an allow/deny
// decision. It holds no state of its own; both record lookups go through
// the cache coordinator.
type AccessService struct {
	tokens       *auth.TokenCodec
	cache        *cache.Coordinator
	entitlements repository.EntitlementRepository
	catalog      repository.ContentRepository

	entitlementTTL time.Duration
	contentTTL     time.Duration

	logger  *zap.Logger
	metrics *observability.Metrics
}

// AccessDependencies bundles what the gate consumes.
type AccessDependencies struct {
	Tokens          *auth.TokenCodec
	Cache           *cache.Coordinator
	EntitlementRepo repository.EntitlementRepository
	ContentRepo     repository.ContentRepository
}

// NewAccessService builds the gate.
func NewAccessService(cfg config.CacheConfig, deps AccessDependencies, logger *zap.Logger, metrics *observability.Metrics) *AccessService {
	return &AccessService{
		tokens:         deps.Tokens,
		cache:          deps.Cache,
		entitlements:   deps.EntitlementRepo,
		catalog:        deps.ContentRepo,
		entitlementTTL: cfg.EntitlementTTL(),
		contentTTL:     cfg.ContentTTL(),
		logger:         logger,
		metrics:        metrics,
	}
}

// Decide answers whether the session behind tokenStr may fetch contentID at
// now. Deterministic given identical inputs and clock; its only side effect
// is cache population. Failures are never retried here — the coordinator
// already retried transient origin errors once, and auth failures are
// deterministic.
func (s *AccessService) Decide(ctx context.Context, tokenStr, contentID string, now time.Time) domain.AccessDecision {
	userID, err := s.tokens.Verify(ctx, tokenStr, now)
	if err != nil {
		return s.deny(domain.DenyUnauthenticated)
	}

	content, err := s.contentThrough(ctx, contentID)
	if err != nil {
		// Missing record and unreachable origin collapse to the same
		// caller-visible reason.
		return s.deny(domain.DenyContentUnavailable)
	}

	// Free content short-circuits before any entitlement load; the bulk of
	// catch-up and highlights traffic never touches the entitlement store.
	if content.Visibility == domain.ContentVisibilityFree {
		return s.allow(content.Locator)
	}

	entitlement, err := s.entitlementThrough(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.deny(domain.DenyNoSubscription)
	case err != nil:
		return s.deny(domain.DenyOriginUnavailable)
	}

	if entitlement.Status == domain.EntitlementStatusNone {
		return s.deny(domain.DenyNoSubscription)
	}
	if !entitlement.ActiveAt(now) {
		return s.deny(domain.DenyEntitlementExpired)
	}
	if !content.WindowContains(now) {
		return s.deny(domain.DenyOutsideWindow)
	}

	return s.allow(content.Locator)
}

func (s *AccessService) contentThrough(ctx context.Context, contentID string) (*domain.ContentRecord, error) {
	raw, err := s.cache.ReadThrough(ctx, cache.ContentKey(contentID), s.contentTTL,
		func(ctx context.Context) (cache.FetchResult, error) {
			record, err := s.catalog.Get(ctx, contentID)
			if err != nil {
				return cache.FetchResult{}, err
			}
			value, err := json.Marshal(record)
			if err != nil {
				return cache.FetchResult{}, err
			}
			return cache.FetchResult{Value: value, Version: record.Version}, nil
		})
	if err != nil {
		return nil, err
	}

	var record domain.ContentRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *AccessService) entitlementThrough(ctx context.Context, userID string) (*domain.EntitlementRecord, error) {
	raw, err := s.cache.ReadThrough(ctx, cache.EntitlementKey(userID), s.entitlementTTL,
		func(ctx context.Context) (cache.FetchResult, error) {
			record, err := s.entitlements.Get(ctx, userID)
			if err != nil {
				return cache.FetchResult{}, err
			}
			value, err := json.Marshal(record)
			if err != nil {
				return cache.FetchResult{}, err
			}
			return cache.FetchResult{Value: value, Version: record.LastSequence}, nil
		})
	if err != nil {
		return nil, err
	}

	var record domain.EntitlementRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *AccessService) allow(locator string) domain.AccessDecision {
	s.metrics.RecordDecision("allow")
	return domain.Allowed(locator)
}

func (s *AccessService) deny(reason domain.DenyReason) domain.AccessDecision {
	s.metrics.RecordDecision(string(reason))
	return domain.Denied(reason)
}
