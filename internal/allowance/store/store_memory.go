package store

import (
	"context"
	"sync"

	"lockmint/internal/allowance/models"
	"lockmint/pkg/domain"
	"lockmint/pkg/platform/sentinel"
)

type txKey struct{}

// InMemoryStore keeps the ledger in memory. RunInTx journals the previous
// value of everything it touches and replays the journal on error.
type InMemoryStore struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	state      *models.State
	allowances map[domain.Address]uint64
	journal    *journal
}

type journal struct {
	state      *models.State
	stateSaved bool
	allowances map[domain.Address]allowanceEntry
}

type allowanceEntry struct {
	amount  uint64
	present bool
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{allowances: make(map[domain.Address]uint64)}
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// RunInTx runs fn atomically. Nested calls join the outer transaction.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.journal = &journal{allowances: make(map[domain.Address]allowanceEntry)}
	s.mu.Unlock()

	defer func() {
		p := recover()
		s.mu.Lock()
		if err != nil || p != nil {
			s.rollbackLocked()
		}
		s.journal = nil
		s.mu.Unlock()
		if p != nil {
			panic(p)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

func (s *InMemoryStore) rollbackLocked() {
	j := s.journal
	if j.stateSaved {
		s.state = j.state
	}
	for account, entry := range j.allowances {
		if entry.present {
			s.allowances[account] = entry.amount
		} else {
			delete(s.allowances, account)
		}
	}
}

func (s *InMemoryStore) GetState(_ context.Context) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, sentinel.ErrNotFound
	}
	state := *s.state
	return &state, nil
}

func (s *InMemoryStore) SaveState(ctx context.Context, state models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inTx(ctx) && s.journal != nil && !s.journal.stateSaved {
		s.journal.stateSaved = true
		if s.state != nil {
			prev := *s.state
			s.journal.state = &prev
		}
	}
	s.state = &state
	return nil
}

func (s *InMemoryStore) GetAllowance(_ context.Context, account domain.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowances[account], nil
}

func (s *InMemoryStore) SetAllowance(ctx context.Context, account domain.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inTx(ctx) && s.journal != nil {
		if _, seen := s.journal.allowances[account]; !seen {
			prev, present := s.allowances[account]
			s.journal.allowances[account] = allowanceEntry{amount: prev, present: present}
		}
	}
	s.allowances[account] = amount
	return nil
}
