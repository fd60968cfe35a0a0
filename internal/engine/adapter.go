package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/listing"
	"trading-experiment-lab/internal/marketdata"
)

// ExecOutcome is the uniform result of a mode-specific order execution.
// Failures are reported here, never thrown across the scheduler loop.
type ExecOutcome struct {
	Success bool
	Message string

	// Actuals read from the execution path. Virtual and backtest echo the
	// intended amounts; live reads them from the receipt.
	ActualAmountOut float64 // token amount received on buy
	ActualReceived  float64 // native amount received on sell
	ActualPrice     float64 // unit price actually paid or received

	// Live-only receipt details.
	TxHash        *string
	GasUsed       *float64
	WalletAddress *string
	TraderUsed    string // "primary" | "secondary", empty for simulated
}

// ModeAdapter is the capability set that distinguishes the three execution
// modes. The scheduler owns the per-round pipeline; adapters supply where
// holdings, tokens, prices and order settlement come from.
type ModeAdapter interface {
	Mode() domain.Mode

	// InitializeSources prepares external collaborators before the first
	// round.
	InitializeSources(ctx context.Context) error

	// RunLoop drives rounds until the context is cancelled (virtual, live)
	// or the replayed data is exhausted (backtest). A nil return means the
	// loop ended normally.
	RunLoop(ctx context.Context, e *Engine) error

	// SyncHoldings brings portfolio and card state into agreement with the
	// mode's source of truth. A failure is logged and the round continues
	// with last-known state.
	SyncHoldings(ctx context.Context, e *Engine) error

	// Harvest returns the tokens to consider this round.
	Harvest(ctx context.Context) ([]listing.Listing, error)

	// RefreshPrices returns quotes keyed by market id for the given tokens.
	RefreshPrices(ctx context.Context, e *Engine, tokens []*domain.Token) (map[string]marketdata.Quote, error)

	// Factors returns the factor map used for strategy evaluation. Virtual
	// and live build it from token state; backtest replays the persisted
	// snapshot so decisions reproduce exactly.
	Factors(e *Engine, t *domain.Token, nowMs int64) map[string]float64

	// ExecuteBuy settles a buy of the given native amount at the quoted
	// price. ExecuteSell settles a sell of the given token amount.
	ExecuteBuy(ctx context.Context, e *Engine, t *domain.Token, nativeAmount, price decimal.Decimal) ExecOutcome
	ExecuteSell(ctx context.Context, e *Engine, t *domain.Token, tokenAmount, price decimal.Decimal) ExecOutcome

	// ShouldRecordTimeSeries reports whether the round's factor snapshots
	// are persisted. Backtest must not overwrite its source.
	ShouldRecordTimeSeries() bool

	Close() error
}
