package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/events"
	"github.com/spec-kit/stream-access/internal/repository"
)

// EntitlementService consumes ordered-per-subject events from the payment
// collaborator and maintains authoritative entitlement records.
type EntitlementService struct {
	repo       repository.EntitlementRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEntitlementService builds the service.
func NewEntitlementService(repo repository.EntitlementRepository, dispatcher events.Dispatcher, logger *zap.Logger) *EntitlementService {
	return &EntitlementService{repo: repo, dispatcher: dispatcher, logger: logger}
}

// Get returns the authoritative record for userID.
func (s *EntitlementService) Get(ctx context.Context, userID string) (*domain.EntitlementRecord, error) {
	return s.repo.Get(ctx, userID)
}

// ApplyEvent transitions the subscriber's record. The payment collaborator
// delivers at least once, so replays (sequence at or below the last applied
// one) return the current record unchanged.
func (s *EntitlementService) ApplyEvent(ctx context.Context, ev domain.EntitlementEvent) (*domain.EntitlementRecord, error) {
	if ev.UserID == "" {
		return nil, errors.New("event missing user id")
	}
	if !domain.ValidEntitlementEventType(ev.Type) {
		return nil, errors.New("unknown entitlement event type")
	}
	if ev.Sequence <= 0 {
		return nil, errors.New("event sequence must be positive")
	}

	record, err := s.repo.Get(ctx, ev.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		record = &domain.EntitlementRecord{
			UserID: ev.UserID,
			Status: domain.EntitlementStatusNone,
		}
	} else if err != nil {
		return nil, err
	}

	if !record.Apply(ev, time.Now()) {
		s.logger.Debug("entitlement event replay ignored",
			zap.String("user_id", ev.UserID),
			zap.Int64("sequence", ev.Sequence),
		)
		return record, nil
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, err
	}

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventEntitlementUpdated,
		Timestamp: time.Now(),
		Payload: events.EntitlementUpdatedPayload{
			UserID:   record.UserID,
			Status:   record.Status,
			Sequence: record.LastSequence,
		},
	})

	s.logger.Info("entitlement event applied",
		zap.String("user_id", ev.UserID),
		zap.String("type", string(ev.Type)),
		zap.Int64("sequence", ev.Sequence),
		zap.String("status", string(record.Status)),
	)
	return record, nil
}
