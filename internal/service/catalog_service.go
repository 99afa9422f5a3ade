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

// CatalogService accepts upserts from the content-ingestion collaborator.
// Read paths never mutate the catalog.
type CatalogService struct {
	repo       repository.ContentRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewCatalogService builds the service.
func NewCatalogService(repo repository.ContentRepository, dispatcher events.Dispatcher, logger *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, dispatcher: dispatcher, logger: logger}
}

// Get returns the authoritative record for contentID.
func (s *CatalogService) Get(ctx context.Context, contentID string) (*domain.ContentRecord, error) {
	return s.repo.Get(ctx, contentID)
}

// Publish upserts the record, bumps its version, and raises the cache
// invalidation so a read arriving inside the old TTL still sees the new
// version.
func (s *CatalogService) Publish(ctx context.Context, record *domain.ContentRecord) (*domain.ContentRecord, error) {
	if record.ID == "" {
		return nil, errors.New("content record missing id")
	}
	if record.Visibility != domain.ContentVisibilityFree && record.Visibility != domain.ContentVisibilityPremium {
		return nil, errors.New("unknown content visibility")
	}
	if record.WindowStart != nil && record.WindowEnd != nil && record.WindowEnd.Before(*record.WindowStart) {
		return nil, errors.New("content window ends before it starts")
	}

	version, err := s.repo.Publish(ctx, record)
	if err != nil {
		return nil, err
	}
	record.Version = version

	// Synchronous dispatch: the invalidation handler runs before Publish
	// returns to the ingestion collaborator.
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventContentPublished,
		Timestamp: time.Now(),
		Payload: events.ContentPublishedPayload{
			ContentID: record.ID,
			Version:   version,
		},
	})

	s.logger.Info("content published",
		zap.String("content_id", record.ID),
		zap.Int64("version", version),
		zap.String("visibility", string(record.Visibility)),
	)
	return record, nil
}
