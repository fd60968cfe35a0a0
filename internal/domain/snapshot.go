package domain

// PositionSnapshot is the per-token view inside a portfolio snapshot.
type PositionSnapshot struct {
	TokenAddress         string  `json:"tokenAddress"`
	Symbol               string  `json:"symbol"`
	Amount               float64 `json:"amount"`
	AveragePurchasePrice float64 `json:"averagePurchasePrice"`
	CurrentPrice         float64 `json:"currentPrice"`
	Value                float64 `json:"value"`
	UnrealizedPnL        float64 `json:"unrealizedPnL"`
	RealizedPnL          float64 `json:"realizedPnL"`
}

// PortfolioSnapshot is the per-round persisted view of a portfolio.
// Corresponds to portfolio_snapshots table in PostgreSQL.
type PortfolioSnapshot struct {
	ID               string // PRIMARY KEY, uuid
	ExperimentID     string
	LoopCount        int64
	AvailableBalance float64
	TotalValue       float64
	TotalInvested    float64
	TotalPnL         float64
	RealizedPnL      float64
	UnrealizedPnL    float64
	Positions        []PositionSnapshot
	Timestamp        int64 // Unix timestamp in milliseconds
}

// RuntimeMetric is a per-round engine summary row.
// Corresponds to runtime_metrics table in PostgreSQL.
type RuntimeMetric struct {
	ExperimentID    string
	LoopCount       int64
	DurationMs      int64
	TokensEvaluated int
	NoPriceCount    int
	SignalCount     int
	TradeCount      int
	ErrorCount      int
	Timestamp       int64 // Unix timestamp in milliseconds
}
