package memory

import (
	"context"
	"sort"
	"sync"

	"trading-experiment-lab/internal/chain"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.Token // experiment_id → token key → token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]map[string]*domain.Token)}
}

// Upsert inserts or replaces the token row for
// (experiment_id, address, blockchain).
func (s *TokenStore) Upsert(_ context.Context, experimentID string, t *domain.Token) error {
	if experimentID == "" || t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.data[experimentID]
	if !ok {
		byKey = make(map[string]*domain.Token)
		s.data[experimentID] = byKey
	}
	tokenCopy := *t
	byKey[chain.TokenKey(t.Address, t.Blockchain)] = &tokenCopy
	return nil
}

// GetByExperiment retrieves all tokens for an experiment, ordered by
// collected_at ASC.
func (s *TokenStore) GetByExperiment(_ context.Context, experimentID string) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data[experimentID] {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CollectedAt != result[j].CollectedAt {
			return result[i].CollectedAt < result[j].CollectedAt
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
