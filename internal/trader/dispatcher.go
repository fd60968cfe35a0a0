package trader

import (
	"context"
	"log"
	"strings"
)

// fallbackErrors are the primary-trader failures that trigger a retry on the
// secondary trader.
var fallbackErrors = []string{
	"bonding curve saturated",
	"no route found",
	"pool migrated",
}

// Dispatcher routes orders to the primary trader and falls back to the
// secondary on known failure codes. Results always record which trader
// produced them.
type Dispatcher struct {
	primary   Trader
	secondary Trader
	verbose   bool
}

// NewDispatcher creates a dispatcher. The secondary trader may be nil, in
// which case no fallback is attempted.
func NewDispatcher(primary, secondary Trader, verbose bool) *Dispatcher {
	return &Dispatcher{primary: primary, secondary: secondary, verbose: verbose}
}

// DispatchResult pairs a trader outcome with the trader that produced it.
type DispatchBuyResult struct {
	BuyResult
	TraderUsed string // "primary" | "secondary"
}

type DispatchSellResult struct {
	SellResult
	TraderUsed string
}

// Buy dispatches a buy to the primary trader, falling back to the secondary
// when the primary fails with a known fallback error.
func (d *Dispatcher) Buy(ctx context.Context, tokenAddress string, nativeAmount float64, opts Options) DispatchBuyResult {
	res := d.primary.BuyToken(ctx, tokenAddress, nativeAmount, opts)
	if res.Success || d.secondary == nil || !shouldFallback(res.Err) {
		return DispatchBuyResult{BuyResult: res, TraderUsed: "primary"}
	}

	if d.verbose {
		log.Printf("[trader] primary buy failed (%s), trying %s", res.Err, d.secondary.Name())
	}
	res = d.secondary.BuyToken(ctx, tokenAddress, nativeAmount, opts)
	return DispatchBuyResult{BuyResult: res, TraderUsed: "secondary"}
}

// Sell dispatches a sell with the same fallback policy as Buy.
func (d *Dispatcher) Sell(ctx context.Context, tokenAddress string, tokenAmount float64, opts Options) DispatchSellResult {
	res := d.primary.SellToken(ctx, tokenAddress, tokenAmount, opts)
	if res.Success || d.secondary == nil || !shouldFallback(res.Err) {
		return DispatchSellResult{SellResult: res, TraderUsed: "primary"}
	}

	if d.verbose {
		log.Printf("[trader] primary sell failed (%s), trying %s", res.Err, d.secondary.Name())
	}
	res = d.secondary.SellToken(ctx, tokenAddress, tokenAmount, opts)
	return DispatchSellResult{SellResult: res, TraderUsed: "secondary"}
}

// shouldFallback reports whether the error text matches a known fallback
// condition.
func shouldFallback(errText string) bool {
	lower := strings.ToLower(errText)
	for _, known := range fallbackErrors {
		if strings.Contains(lower, known) {
			return true
		}
	}
	return false
}
