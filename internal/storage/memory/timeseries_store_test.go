package memory

import (
	"context"
	"errors"
	"testing"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

func testRecord(experimentID string, loopCount, ts int64, price float64) *domain.TimeSeriesRecord {
	return &domain.TimeSeriesRecord{
		ExperimentID: experimentID,
		TokenAddress: "0xabc",
		TokenSymbol:  "TKN",
		Timestamp:    ts,
		LoopCount:    loopCount,
		PriceUSD:     price,
		FactorValues: map[string]float64{"earlyReturn": price * 10},
		Blockchain:   "ethereum",
	}
}

func TestTimeSeriesStore_InsertBulk(t *testing.T) {
	s := NewTimeSeriesStore()
	ctx := context.Background()

	if err := s.InsertBulk(ctx, nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}

	err := s.InsertBulk(ctx, []*domain.TimeSeriesRecord{
		testRecord("exp-1", 1, 1000, 1.0),
		{ExperimentID: "exp-1"}, // missing token address
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	// A rejected batch must not be partially applied.
	got, _ := s.GetByExperiment(ctx, "exp-1")
	if len(got) != 0 {
		t.Errorf("partial write after rejected batch: %d records", len(got))
	}

	err = s.InsertBulk(ctx, []*domain.TimeSeriesRecord{
		testRecord("exp-1", 1, 1000, 1.0),
		testRecord("exp-1", 1, 1000, 1.1),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	got, _ = s.GetByExperiment(ctx, "exp-1")
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestTimeSeriesStore_Ordering(t *testing.T) {
	s := NewTimeSeriesStore()
	ctx := context.Background()

	err := s.InsertBulk(ctx, []*domain.TimeSeriesRecord{
		testRecord("exp-1", 2, 2000, 1.4),
		testRecord("exp-1", 1, 1500, 1.0),
		testRecord("exp-1", 1, 1000, 0.9),
		testRecord("exp-1", 3, 3000, 1.8),
		testRecord("exp-2", 1, 100, 5.0),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := s.GetByExperiment(ctx, "exp-1")
	if err != nil {
		t.Fatalf("GetByExperiment failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d records, want 4", len(got))
	}
	wantLoop := []int64{1, 1, 2, 3}
	wantTs := []int64{1000, 1500, 2000, 3000}
	for i, r := range got {
		if r.LoopCount != wantLoop[i] || r.Timestamp != wantTs[i] {
			t.Errorf("position %d: loop %d ts %d, want loop %d ts %d",
				i, r.LoopCount, r.Timestamp, wantLoop[i], wantTs[i])
		}
	}
}

func TestTimeSeriesStore_FactorCopyIsolation(t *testing.T) {
	s := NewTimeSeriesStore()
	ctx := context.Background()

	original := testRecord("exp-1", 1, 1000, 1.0)
	if err := s.InsertBulk(ctx, []*domain.TimeSeriesRecord{original}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	original.FactorValues["earlyReturn"] = -1

	got, _ := s.GetByExperiment(ctx, "exp-1")
	if got[0].FactorValues["earlyReturn"] != 10 {
		t.Error("factor map shared with the caller on insert")
	}

	got[0].FactorValues["earlyReturn"] = -2
	again, _ := s.GetByExperiment(ctx, "exp-1")
	if again[0].FactorValues["earlyReturn"] != 10 {
		t.Error("factor map shared between reads")
	}
}
