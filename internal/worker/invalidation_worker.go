package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/cache"
	"github.com/spec-kit/stream-access/internal/events"
)

// StartInvalidationWorker subscribes cache invalidation handlers so every
// entitlement transition and catalog publish expires its cached copy before
// the triggering call returns.
func StartInvalidationWorker(dispatcher events.Dispatcher, coordinator *cache.Coordinator, logger *zap.Logger) {
	if dispatcher == nil || coordinator == nil {
		return
	}

	dispatcher.Subscribe(events.EventEntitlementUpdated, func(ctx context.Context, ev events.Event) error {
		payload, ok := ev.Payload.(events.EntitlementUpdatedPayload)
		if !ok {
			logger.Warn("unexpected entitlement event payload", zap.String("event_id", ev.ID))
			return nil
		}
		coordinator.Invalidate(ctx, cache.EntitlementKey(payload.UserID), payload.Sequence)
		return nil
	})

	dispatcher.Subscribe(events.EventContentPublished, func(ctx context.Context, ev events.Event) error {
		payload, ok := ev.Payload.(events.ContentPublishedPayload)
		if !ok {
			logger.Warn("unexpected content event payload", zap.String("event_id", ev.ID))
			return nil
		}
		coordinator.Invalidate(ctx, cache.ContentKey(payload.ContentID), payload.Version)
		return nil
	})
}
