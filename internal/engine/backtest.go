package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/chain"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/factors"
	"trading-experiment-lab/internal/listing"
	"trading-experiment-lab/internal/marketdata"
	"trading-experiment-lab/internal/storage"
)

// BacktestAdapter replays the time-series of a source experiment, one round
// per recorded loop count. Factor maps come from the persisted snapshots so
// the replay reproduces the source's decisions exactly. Time-series is never
// recorded (it would overwrite the source).
type BacktestAdapter struct {
	source     storage.TimeSeriesStore
	sourceID   string
	rounds     [][]*domain.TimeSeriesRecord
	roundIndex int

	// Per-round replay state, rebuilt by RunLoop before each RunRound.
	seen    map[string]bool // token keys already introduced to the pool
	current map[string]*domain.TimeSeriesRecord
}

// Compile-time interface check.
var _ ModeAdapter = (*BacktestAdapter)(nil)

// NewBacktestAdapter creates the replay adapter for the given source
// experiment.
func NewBacktestAdapter(source storage.TimeSeriesStore, sourceExperimentID string) *BacktestAdapter {
	return &BacktestAdapter{
		source:   source,
		sourceID: sourceExperimentID,
		seen:     make(map[string]bool),
	}
}

func (a *BacktestAdapter) Mode() domain.Mode { return domain.ModeBacktest }

// InitializeSources loads and groups the source series by loop count,
// ascending. An empty source fails the run.
func (a *BacktestAdapter) InitializeSources(ctx context.Context) error {
	records, err := a.source.GetByExperiment(ctx, a.sourceID)
	if err != nil {
		return fmt.Errorf("load source time series: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s", ErrBacktestSourceMissing, a.sourceID)
	}

	// Records arrive ordered by loop_count then timestamp; split on loop
	// boundaries.
	var rounds [][]*domain.TimeSeriesRecord
	var group []*domain.TimeSeriesRecord
	for _, r := range records {
		if len(group) > 0 && r.LoopCount != group[0].LoopCount {
			rounds = append(rounds, group)
			group = nil
		}
		group = append(group, r)
	}
	if len(group) > 0 {
		rounds = append(rounds, group)
	}
	a.rounds = rounds
	log.Printf("[backtest] replaying %d rounds from experiment %s", len(rounds), a.sourceID)
	return nil
}

// RunLoop replays each recorded round. The engine clock is pinned to the
// round's recorded timestamp so cooldowns and durations reproduce.
func (a *BacktestAdapter) RunLoop(ctx context.Context, e *Engine) error {
	for i, group := range a.rounds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.roundIndex = i
		a.current = make(map[string]*domain.TimeSeriesRecord, len(group))
		for _, r := range group {
			a.current[chain.TokenKey(r.TokenAddress, r.Blockchain)] = r
		}

		roundTime := group[0].Timestamp
		e.SetClock(func() int64 { return roundTime })

		if err := e.RunRound(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SyncHoldings is a no-op: the simulated portfolio is the source of truth.
func (a *BacktestAdapter) SyncHoldings(_ context.Context, _ *Engine) error { return nil }

// Harvest introduces tokens on their first appearance in the replay.
func (a *BacktestAdapter) Harvest(_ context.Context) ([]listing.Listing, error) {
	var out []listing.Listing
	for key, r := range a.current {
		if a.seen[key] {
			continue
		}
		a.seen[key] = true
		out = append(out, listing.Listing{
			Address:      r.TokenAddress,
			Symbol:       r.TokenSymbol,
			Blockchain:   r.Blockchain,
			CreatedAt:    createdAtFromRecord(r),
			CurrentPrice: r.PriceUSD,
		})
	}
	return out, nil
}

// createdAtFromRecord reconstructs the token's creation time from the
// recorded age factor, falling back to the record timestamp.
func createdAtFromRecord(r *domain.TimeSeriesRecord) int64 {
	if age, ok := r.FactorValues[factors.Age]; ok && age > 0 {
		return r.Timestamp - int64(age*60000)
	}
	return r.Timestamp
}

// RefreshPrices replays the recorded prices for this round.
func (a *BacktestAdapter) RefreshPrices(_ context.Context, _ *Engine, tokens []*domain.Token) (map[string]marketdata.Quote, error) {
	quotes := make(map[string]marketdata.Quote, len(a.current))
	for _, t := range tokens {
		r, ok := a.current[chain.TokenKey(t.Address, t.Blockchain)]
		if !ok {
			continue
		}
		id, err := chain.MarketID(t.Address, t.Blockchain)
		if err != nil {
			continue
		}
		quotes[id] = marketdata.Quote{
			Price:        r.PriceUSD,
			TxVolumeU24h: r.FactorValues[factors.TxVolumeU24h],
			Holders:      int(r.FactorValues[factors.Holders]),
			TVL:          r.FactorValues[factors.TVL],
			FDV:          r.FactorValues[factors.FDV],
			MarketCap:    r.FactorValues[factors.MarketCap],
		}
	}
	return quotes, nil
}

// Factors replays the persisted factor snapshot. Buy-side state factors
// (profitPercent, holdDuration, buyPrice) are overlaid from the replay's own
// portfolio so sells react to the replay's buys, not the source's.
func (a *BacktestAdapter) Factors(e *Engine, t *domain.Token, nowMs int64) map[string]float64 {
	r, ok := a.current[chain.TokenKey(t.Address, t.Blockchain)]
	if !ok || len(r.FactorValues) == 0 {
		return factors.Build(t, nowMs)
	}
	f := make(map[string]float64, len(r.FactorValues))
	for k, v := range r.FactorValues {
		f[k] = v
	}

	own := factors.Build(t, nowMs)
	f[factors.BuyPrice] = own[factors.BuyPrice]
	f[factors.HoldDuration] = own[factors.HoldDuration]
	f[factors.ProfitPercent] = own[factors.ProfitPercent]
	f[factors.TrendSinceBuyReturn] = own[factors.TrendSinceBuyReturn]
	return f
}

// ExecuteBuy and ExecuteSell settle against the simulated portfolio exactly
// like virtual mode.
func (a *BacktestAdapter) ExecuteBuy(_ context.Context, e *Engine, t *domain.Token, nativeAmount, price decimal.Decimal) ExecOutcome {
	tokenAmount := nativeAmount.Div(price)
	res := e.Portfolios().ExecuteTrade(e.PortfolioID(), t.Address, t.Symbol, domain.ActionBuy, tokenAmount, price)
	if !res.Success {
		return ExecOutcome{Message: res.Message}
	}
	return ExecOutcome{
		Success:         true,
		ActualAmountOut: tokenAmount.InexactFloat64(),
		ActualPrice:     price.InexactFloat64(),
	}
}

func (a *BacktestAdapter) ExecuteSell(_ context.Context, e *Engine, t *domain.Token, tokenAmount, price decimal.Decimal) ExecOutcome {
	res := e.Portfolios().ExecuteTrade(e.PortfolioID(), t.Address, t.Symbol, domain.ActionSell, tokenAmount, price)
	if !res.Success {
		return ExecOutcome{Message: res.Message}
	}
	return ExecOutcome{
		Success:        true,
		ActualReceived: tokenAmount.Mul(price).InexactFloat64(),
		ActualPrice:    price.InexactFloat64(),
	}
}

// ShouldRecordTimeSeries is false: recording would overwrite the source.
func (a *BacktestAdapter) ShouldRecordTimeSeries() bool { return false }

func (a *BacktestAdapter) Close() error { return nil }
