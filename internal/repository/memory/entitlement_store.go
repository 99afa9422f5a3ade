// Package memory provides in-process repository implementations used for
// tests and for running the service without a Postgres DSN.
package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/stream-access/internal/domain"
	"github.com/spec-kit/stream-access/internal/repository"
)

// EntitlementStore keeps entitlement records in a mutex-guarded map.
type EntitlementStore struct {
	mu      sync.RWMutex
	records map[string]domain.EntitlementRecord
}

var _ repository.EntitlementRepository = (*EntitlementStore)(nil)

// NewEntitlementStore builds an empty store.
func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{records: make(map[string]domain.EntitlementRecord)}
}

func (s *EntitlementStore) Get(_ context.Context, userID string) (*domain.EntitlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (s *EntitlementStore) Upsert(_ context.Context, record *domain.EntitlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[record.UserID]; ok && existing.LastSequence >= record.LastSequence {
		return nil
	}
	s.records[record.UserID] = *record
	return nil
}
