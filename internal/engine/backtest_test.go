package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"trading-experiment-lab/internal/config"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/factors"
	"trading-experiment-lab/internal/storage/memory"
)

const backtestConfigDoc = `{"initial_capital": 1, "backtest": {"sourceExperimentId": "src-1"}}`

// seedSourceSeries writes a three-round source: prices rise 1.0 → 1.4 → 1.8
// while earlyReturn climbs 0 → 40 → 80. Only the last round is inside the
// default entry band.
func seedSourceSeries(t *testing.T, store *memory.TimeSeriesStore, baseTs int64) {
	t.Helper()

	prices := []float64{1.0, 1.4, 1.8}
	earlyReturns := []float64{0, 40, 80}

	var records []*domain.TimeSeriesRecord
	for i := range prices {
		records = append(records, &domain.TimeSeriesRecord{
			ExperimentID: "src-1",
			TokenAddress: tokenAddr,
			TokenSymbol:  "TKN",
			Timestamp:    baseTs + int64(i)*60000,
			LoopCount:    int64(i),
			PriceUSD:     prices[i],
			FactorValues: map[string]float64{
				factors.Age:         float64(5 + i),
				factors.EarlyReturn: earlyReturns[i],
				factors.RiseSpeed:   earlyReturns[i] / float64(5+i),
			},
			Blockchain: "ethereum",
		})
	}
	if err := store.InsertBulk(context.Background(), records); err != nil {
		t.Fatalf("seed source series: %v", err)
	}
}

func newBacktestEngine(t *testing.T, source *memory.TimeSeriesStore) (*Engine, Stores) {
	t.Helper()

	cfg, err := config.ParseExperimentConfig(json.RawMessage(backtestConfigDoc), domain.ModeBacktest)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	stores := newTestStores()
	stores.TimeSeries = source

	exp := &domain.Experiment{
		ID:         domain.NewID(),
		Name:       "replay",
		Mode:       domain.ModeBacktest,
		Blockchain: "ethereum",
		Status:     domain.ExperimentInitializing,
		Config:     json.RawMessage(backtestConfigDoc),
		CreatedAt:  1700000000000,
	}
	if err := stores.Experiments.Insert(context.Background(), exp); err != nil {
		t.Fatalf("insert experiment: %v", err)
	}

	e, err := New(Options{
		Experiment: exp,
		Config:     cfg,
		Adapter:    NewBacktestAdapter(source, "src-1"),
		Stores:     stores,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, stores
}

func TestBacktest_ReplayProducesOneBuy(t *testing.T) {
	baseTs := int64(1700000000000)
	source := memory.NewTimeSeriesStore()
	seedSourceSeries(t, source, baseTs)

	e, stores := newBacktestEngine(t, source)
	ctx := context.Background()

	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	exp, _ := stores.Experiments.GetByID(ctx, e.Experiment().ID)
	if exp.Status != domain.ExperimentCompleted {
		t.Errorf("status: got %s, want completed", exp.Status)
	}

	// Exactly one buy, in the round where earlyReturn entered the band.
	trades, _ := stores.Trades.GetByExperiment(ctx, e.Experiment().ID)
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	if trades[0].Direction != domain.ActionBuy {
		t.Errorf("direction: got %s", trades[0].Direction)
	}
	// The clock is pinned to the recorded round time.
	if trades[0].Timestamp != baseTs+2*60000 {
		t.Errorf("trade timestamp: got %d, want %d", trades[0].Timestamp, baseTs+2*60000)
	}
	if trades[0].Price != 1.8 {
		t.Errorf("trade price: got %f, want 1.8", trades[0].Price)
	}

	signals, _ := stores.Signals.GetByExperiment(ctx, e.Experiment().ID)
	if len(signals) != 1 || signals[0].LoopCount != 2 {
		t.Fatalf("signals: %+v", signals)
	}
	if signals[0].StrategyID != "early-momentum-buy" {
		t.Errorf("strategy: got %s", signals[0].StrategyID)
	}

	tok := e.Pool().Get(tokenAddr, "ethereum")
	if tok == nil || tok.Status != domain.TokenBought {
		t.Errorf("token state: %+v", tok)
	}
}

func TestBacktest_DoesNotRecordTimeSeries(t *testing.T) {
	baseTs := int64(1700000000000)
	source := memory.NewTimeSeriesStore()
	seedSourceSeries(t, source, baseTs)

	e, _ := newBacktestEngine(t, source)
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The replay must not write rows for its own experiment.
	own, _ := source.GetByExperiment(context.Background(), e.Experiment().ID)
	if len(own) != 0 {
		t.Errorf("replay wrote %d time series rows", len(own))
	}
	src, _ := source.GetByExperiment(context.Background(), "src-1")
	if len(src) != 3 {
		t.Errorf("source mutated: %d rows", len(src))
	}
}

func TestBacktest_Reproducible(t *testing.T) {
	baseTs := int64(1700000000000)

	run := func() []*domain.Trade {
		source := memory.NewTimeSeriesStore()
		seedSourceSeries(t, source, baseTs)
		e, stores := newBacktestEngine(t, source)
		if err := e.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		trades, _ := stores.Trades.GetByExperiment(context.Background(), e.Experiment().ID)
		return trades
	}

	a := run()
	b := run()
	if len(a) != len(b) {
		t.Fatalf("runs diverged: %d vs %d trades", len(a), len(b))
	}
	for i := range a {
		if a[i].Direction != b[i].Direction || a[i].Timestamp != b[i].Timestamp ||
			a[i].Price != b[i].Price || a[i].OutputAmount != b[i].OutputAmount {
			t.Errorf("trade %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBacktest_CancelledMidReplayStops(t *testing.T) {
	baseTs := int64(1700000000000)
	source := memory.NewTimeSeriesStore()
	seedSourceSeries(t, source, baseTs)

	e, stores := newBacktestEngine(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Cancellation is a stop, not an end of data.
	exp, _ := stores.Experiments.GetByID(context.Background(), e.Experiment().ID)
	if exp.Status != domain.ExperimentStopped {
		t.Errorf("status: got %s, want stopped", exp.Status)
	}
	if exp.StoppedAt == nil {
		t.Error("stoppedAt not set")
	}

	trades, _ := stores.Trades.GetByExperiment(context.Background(), e.Experiment().ID)
	if len(trades) != 0 {
		t.Errorf("got %d trades before cancellation, want 0", len(trades))
	}
}

func TestBacktest_EmptySourceFails(t *testing.T) {
	source := memory.NewTimeSeriesStore()
	e, stores := newBacktestEngine(t, source)
	ctx := context.Background()

	err := e.Run(ctx)
	if !errors.Is(err, ErrBacktestSourceMissing) {
		t.Fatalf("expected ErrBacktestSourceMissing, got %v", err)
	}
	exp, _ := stores.Experiments.GetByID(ctx, e.Experiment().ID)
	if exp.Status != domain.ExperimentFailed {
		t.Errorf("status: got %s, want failed", exp.Status)
	}
}
