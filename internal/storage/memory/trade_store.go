package memory

import (
	"context"
	"sort"
	"sync"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by id
	seq  map[string]int
	next int
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
		seq:  make(map[string]int),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}
	tradeCopy := *t
	s.data[t.ID] = &tradeCopy
	s.seq[t.ID] = s.next
	s.next++
	return nil
}

// GetByExperiment retrieves all trades for an experiment, ordered by
// timestamp ASC (insertion order breaks ties).
func (s *TradeStore) GetByExperiment(_ context.Context, experimentID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.ExperimentID == experimentID {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return s.seq[result[i].ID] < s.seq[result[j].ID]
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
