package memory

import (
	"context"
	"sort"
	"sync"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// TimeSeriesStore is an in-memory implementation of storage.TimeSeriesStore.
type TimeSeriesStore struct {
	mu   sync.RWMutex
	data []*domain.TimeSeriesRecord
}

// NewTimeSeriesStore creates a new in-memory time-series store.
func NewTimeSeriesStore() *TimeSeriesStore {
	return &TimeSeriesStore{}
}

// InsertBulk adds multiple records.
func (s *TimeSeriesStore) InsertBulk(_ context.Context, records []*domain.TimeSeriesRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ExperimentID == "" || r.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.data = append(s.data, copyRecord(r))
	}
	return nil
}

// GetByExperiment retrieves all records for an experiment, ordered by
// loop_count ASC, timestamp ASC.
func (s *TimeSeriesStore) GetByExperiment(_ context.Context, experimentID string) ([]*domain.TimeSeriesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TimeSeriesRecord
	for _, r := range s.data {
		if r.ExperimentID == experimentID {
			result = append(result, copyRecord(r))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].LoopCount != result[j].LoopCount {
			return result[i].LoopCount < result[j].LoopCount
		}
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

func copyRecord(r *domain.TimeSeriesRecord) *domain.TimeSeriesRecord {
	recCopy := *r
	if r.FactorValues != nil {
		recCopy.FactorValues = make(map[string]float64, len(r.FactorValues))
		for k, v := range r.FactorValues {
			recCopy.FactorValues[k] = v
		}
	}
	return &recCopy
}

// Verify interface compliance at compile time.
var _ storage.TimeSeriesStore = (*TimeSeriesStore)(nil)
