package domain

// TokenStatus represents the lifecycle state of a monitored token.
// Transitions: monitoring → bought (successful buy), bought → monitoring
// (full sell only), any → inactive (cleanup, terminal).
type TokenStatus string

const (
	TokenMonitoring TokenStatus = "monitoring"
	TokenBought     TokenStatus = "bought"
	TokenInactive   TokenStatus = "inactive"
)

// StrategyExecution tracks per-strategy execution accounting on a token.
type StrategyExecution struct {
	Count           int   // successful executions
	LastExecutionAt int64 // Unix timestamp in milliseconds, 0 if never
}

// PricePoint is one observed price on a token's history.
type PricePoint struct {
	Price       float64
	TimestampMs int64
}

// Token is an observed tradeable instrument, identified by
// (Address, Blockchain). Addresses are stored in canonical form
// (EVM lowercased, Solana verbatim).
type Token struct {
	Address    string
	Symbol     string
	Blockchain string // canonical blockchain id

	CreatedAt       int64   // creation time from the listing source (ms)
	CollectedAt     int64   // when first observed by the pool (ms)
	CollectionPrice float64 // price at collection time
	LaunchPrice     float64 // listing price, 0 if unknown

	CurrentPrice   float64
	HighestPrice   float64 // high-water mark, never regresses
	HighestPriceAt int64   // timestamp of the high-water mark (ms)

	TxVolumeU24h float64
	Holders      int
	TVL          float64
	FDV          float64
	MarketCap    float64

	CreatorAddress string
	Status         TokenStatus

	BuyPrice float64 // last successful buy price, 0 if none
	BoughtAt int64   // last successful buy time (ms), 0 if none

	// Executions maps strategy id → accounting. Updated only after a
	// dispatch succeeds, never during evaluation.
	Executions map[string]*StrategyExecution

	// PriceHistory is the ordered tail of observed prices used by
	// trend factor derivation.
	PriceHistory []PricePoint
}

// Execution returns the accounting entry for a strategy, or a zero value
// if the strategy never executed on this token.
func (t *Token) Execution(strategyID string) (count int, lastAt int64) {
	if t.Executions == nil {
		return 0, 0
	}
	e, ok := t.Executions[strategyID]
	if !ok {
		return 0, 0
	}
	return e.Count, e.LastExecutionAt
}
