package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/repository"
)

// ContentStore keeps catalog records in a mutex-guarded map.
type ContentStore struct {
	mu      sync.RWMutex
	records map[string]domain.ContentRecord
}

var _ repository.ContentRepository = (*ContentStore)(nil)

// NewContentStore builds an empty store.
func NewContentStore() *ContentStore {
	return &ContentStore{records: make(map[string]domain.ContentRecord)}
}

func (s *ContentStore) Get(_ context.Context, contentID string) (*domain.ContentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[contentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (s *ContentStore) Publish(_ context.Context, record *domain.ContentRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := int64(1)
	if existing, ok := s.records[record.ID]; ok {
		version = existing.Version + 1
	}
	stored := *record
	stored.Version = version
	stored.UpdatedAt = time.Now()
	s.records[record.ID] = stored
	return version, nil
}
