package memory

import (
	"context"
	"sort"
	"sync"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.PortfolioSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Insert adds a new snapshot.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.PortfolioSnapshot) error {
	if snap == nil || snap.ExperimentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapCopy := *snap
	snapCopy.Positions = append([]domain.PositionSnapshot(nil), snap.Positions...)
	s.data = append(s.data, &snapCopy)
	return nil
}

// GetByExperiment retrieves all snapshots for an experiment, ordered by
// loop_count ASC.
func (s *SnapshotStore) GetByExperiment(_ context.Context, experimentID string) ([]*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PortfolioSnapshot
	for _, snap := range s.data {
		if snap.ExperimentID == experimentID {
			snapCopy := *snap
			snapCopy.Positions = append([]domain.PositionSnapshot(nil), snap.Positions...)
			result = append(result, &snapCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LoopCount < result[j].LoopCount
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// RuntimeMetricStore is an in-memory implementation of
// storage.RuntimeMetricStore.
type RuntimeMetricStore struct {
	mu   sync.RWMutex
	data []*domain.RuntimeMetric
}

// NewRuntimeMetricStore creates a new in-memory runtime metric store.
func NewRuntimeMetricStore() *RuntimeMetricStore {
	return &RuntimeMetricStore{}
}

// Insert adds a per-round metric row.
func (s *RuntimeMetricStore) Insert(_ context.Context, m *domain.RuntimeMetric) error {
	if m == nil || m.ExperimentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metricCopy := *m
	s.data = append(s.data, &metricCopy)
	return nil
}

// GetByExperiment retrieves all metric rows for an experiment, ordered by
// loop_count ASC.
func (s *RuntimeMetricStore) GetByExperiment(_ context.Context, experimentID string) ([]*domain.RuntimeMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RuntimeMetric
	for _, m := range s.data {
		if m.ExperimentID == experimentID {
			metricCopy := *m
			result = append(result, &metricCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LoopCount < result[j].LoopCount
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RuntimeMetricStore = (*RuntimeMetricStore)(nil)
