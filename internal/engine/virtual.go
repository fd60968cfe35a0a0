package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/chain"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/factors"
	"trading-experiment-lab/internal/listing"
	"trading-experiment-lab/internal/marketdata"
)

// VirtualAdapter simulates execution against the in-memory portfolio. The
// portfolio is ground truth, so holding sync is a no-op. Rounds record
// time-series so backtests can replay them later.
type VirtualAdapter struct {
	listings listing.Source
	prices   *marketdata.Client
}

// Compile-time interface check.
var _ ModeAdapter = (*VirtualAdapter)(nil)

// NewVirtualAdapter creates the simulated-mode adapter.
func NewVirtualAdapter(listings listing.Source, prices *marketdata.Client) *VirtualAdapter {
	return &VirtualAdapter{listings: listings, prices: prices}
}

func (a *VirtualAdapter) Mode() domain.Mode { return domain.ModeVirtual }

func (a *VirtualAdapter) InitializeSources(_ context.Context) error { return nil }

func (a *VirtualAdapter) RunLoop(ctx context.Context, e *Engine) error {
	return tickLoop(ctx, e)
}

// SyncHoldings is a no-op: the simulated portfolio is the source of truth.
func (a *VirtualAdapter) SyncHoldings(_ context.Context, _ *Engine) error { return nil }

func (a *VirtualAdapter) Harvest(ctx context.Context) ([]listing.Listing, error) {
	return a.listings.Harvest(ctx)
}

func (a *VirtualAdapter) RefreshPrices(ctx context.Context, _ *Engine, tokens []*domain.Token) (map[string]marketdata.Quote, error) {
	return fetchQuotes(ctx, a.prices, tokens)
}

func (a *VirtualAdapter) Factors(_ *Engine, t *domain.Token, nowMs int64) map[string]float64 {
	return factors.Build(t, nowMs)
}

// ExecuteBuy settles against the portfolio ledger: tokens received are the
// native amount divided by the quoted price.
func (a *VirtualAdapter) ExecuteBuy(_ context.Context, e *Engine, t *domain.Token, nativeAmount, price decimal.Decimal) ExecOutcome {
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

func (a *VirtualAdapter) ExecuteSell(_ context.Context, e *Engine, t *domain.Token, tokenAmount, price decimal.Decimal) ExecOutcome {
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

func (a *VirtualAdapter) ShouldRecordTimeSeries() bool { return true }

func (a *VirtualAdapter) Close() error {
	if a.listings != nil {
		return a.listings.Close()
	}
	return nil
}

// fetchQuotes resolves market ids for the tokens and fetches their quotes in
// batches.
func fetchQuotes(ctx context.Context, client *marketdata.Client, tokens []*domain.Token) (map[string]marketdata.Quote, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		id, err := chain.MarketID(t.Address, t.Blockchain)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return client.GetPrices(ctx, ids)
}
