// Package trader defines the on-chain execution abstraction for live mode.
// The engine treats traders as opaque executors; the Dispatcher adds the
// primary/secondary fallback policy.
package trader

import "context"

// Options carries execution hints passed through to the trader.
type Options struct {
	SlippageTolerance float64
	GasPrice          float64
	GasLimit          float64
}

// BuyResult is the outcome of a buy dispatch. ActualAmountOut is the token
// amount read from the receipt; portfolio updates use it, not the intended
// amount.
type BuyResult struct {
	Success         bool
	TxHash          string
	ActualAmountOut float64
	GasUsed         float64
	Err             string
}

// SellResult is the outcome of a sell dispatch. ActualReceived is the native
// amount read from the receipt.
type SellResult struct {
	Success        bool
	TxHash         string
	ActualReceived float64
	GasUsed        float64
	Err            string
}

// Trader executes on-chain swaps. Amounts are in the currency's smallest
// units.
type Trader interface {
	Name() string
	BuyToken(ctx context.Context, tokenAddress string, nativeAmount float64, opts Options) BuyResult
	SellToken(ctx context.Context, tokenAddress string, tokenAmount float64, opts Options) SellResult
}
