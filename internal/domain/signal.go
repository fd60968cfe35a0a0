package domain

// TradeSignal records a strategy decision, persisted before dispatch.
// Corresponds to strategy_signals table in PostgreSQL.
type TradeSignal struct {
	ID           string // PRIMARY KEY, uuid
	ExperimentID string // FK to experiments
	TokenAddress string // canonical token address
	TokenSymbol  string
	Blockchain   string
	Action       TradeAction
	Confidence   float64
	Reason       string             // human readable explanation
	Factors      map[string]float64 // factor snapshot at decision time
	Price        float64            // price at decision
	StrategyID   string             // originating strategy
	LoopCount    int64              // round that produced the signal

	// Outcome, written after dispatch.
	Executed     bool
	TradeID      *string // nullable, set on success
	ErrorMessage *string // nullable, set on failure

	CreatedAt int64 // Unix timestamp in milliseconds
}
