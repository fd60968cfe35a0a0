package memory

import (
	"context"
	"sync"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// ExperimentStore is an in-memory implementation of storage.ExperimentStore.
type ExperimentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Experiment // keyed by id
}

// NewExperimentStore creates a new in-memory experiment store.
func NewExperimentStore() *ExperimentStore {
	return &ExperimentStore{data: make(map[string]*domain.Experiment)}
}

// Insert adds a new experiment. Returns ErrDuplicateKey if id exists.
func (s *ExperimentStore) Insert(_ context.Context, e *domain.Experiment) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	expCopy := *e
	s.data[e.ID] = &expCopy
	return nil
}

// GetByID retrieves an experiment. Returns ErrNotFound if not exists.
func (s *ExperimentStore) GetByID(_ context.Context, id string) (*domain.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	expCopy := *e
	return &expCopy, nil
}

// UpdateStatus sets the status and optionally the start/stop stamps.
func (s *ExperimentStore) UpdateStatus(_ context.Context, id string, status domain.ExperimentStatus, startedAt, stoppedAt *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	e.Status = status
	if startedAt != nil {
		v := *startedAt
		e.StartedAt = &v
	}
	if stoppedAt != nil {
		v := *stoppedAt
		e.StoppedAt = &v
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.ExperimentStore = (*ExperimentStore)(nil)
