package memory

import (
	"context"
	"sort"
	"sync"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeSignal // keyed by id
	seq  map[string]int                 // insertion order for stable sorting
	next int
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.TradeSignal),
		seq:  make(map[string]int),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.TradeSignal) error {
	if sig == nil || sig.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[sig.ID] = copySignal(sig)
	s.seq[sig.ID] = s.next
	s.next++
	return nil
}

// UpdateOutcome writes the dispatch outcome by signal id.
func (s *SignalStore) UpdateOutcome(_ context.Context, id string, executed bool, tradeID, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	sig.Executed = executed
	sig.TradeID = copyStr(tradeID)
	sig.ErrorMessage = copyStr(errorMessage)
	return nil
}

// GetByExperiment retrieves all signals for an experiment, ordered by
// created_at ASC (insertion order breaks ties).
func (s *SignalStore) GetByExperiment(_ context.Context, experimentID string) ([]*domain.TradeSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeSignal
	for _, sig := range s.data {
		if sig.ExperimentID == experimentID {
			result = append(result, copySignal(sig))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return s.seq[result[i].ID] < s.seq[result[j].ID]
	})
	return result, nil
}

func copySignal(sig *domain.TradeSignal) *domain.TradeSignal {
	sigCopy := *sig
	if sig.Factors != nil {
		sigCopy.Factors = make(map[string]float64, len(sig.Factors))
		for k, v := range sig.Factors {
			sigCopy.Factors[k] = v
		}
	}
	sigCopy.TradeID = copyStr(sig.TradeID)
	sigCopy.ErrorMessage = copyStr(sig.ErrorMessage)
	return &sigCopy
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Verify interface compliance at compile time.
var _ storage.SignalStore = (*SignalStore)(nil)
