package store

import (
	"context"
	"sync"

	"lockmint/internal/lock/models"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
)

// InMemoryStore keeps lock records in a map. Values are copied in and out so
// callers never share state with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.TokenID]models.LockRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.TokenID]models.LockRecord)}
}

func (s *InMemoryStore) Get(_ context.Context, tokenID domain.TokenID) (*models.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

func (s *InMemoryStore) GetMany(_ context.Context, tokenIDs []domain.TokenID) (map[domain.TokenID]models.LockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.TokenID]models.LockRecord, len(tokenIDs))
	for _, id := range tokenIDs {
		if record, ok := s.records[id]; ok {
			out[id] = record
		}
	}
	return out, nil
}

func (s *InMemoryStore) Save(_ context.Context, tokenID domain.TokenID, record models.LockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[tokenID] = record
	return nil
}
