// Package factors derives the named numeric factor map consumed by strategy
// expressions. The key set is closed; strategies referencing anything else
// are rejected at load time.
package factors

import "trading-experiment-lab/internal/domain"

// Canonical factor keys.
const (
	Age                   = "age" // minutes since token creation
	CurrentPrice          = "currentPrice"
	CollectionPrice       = "collectionPrice"
	LaunchPrice           = "launchPrice"
	EarlyReturn           = "earlyReturn" // % gain vs launch price
	RiseSpeed             = "riseSpeed"   // earlyReturn / age
	BuyPrice              = "buyPrice"
	HoldDuration          = "holdDuration"  // seconds since buy
	ProfitPercent         = "profitPercent" // % vs buy price
	HighestPrice          = "highestPrice"
	HighestPriceTimestamp = "highestPriceTimestamp"
	DrawdownFromHighest   = "drawdownFromHighest" // % from high, in [-100, 0]
	TxVolumeU24h          = "txVolumeU24h"
	Holders               = "holders"
	TVL                   = "tvl"
	FDV                   = "fdv"
	MarketCap             = "marketCap"

	TrendCV                    = "trendCV"
	TrendDirectionCount        = "trendDirectionCount"
	TrendStrengthScore         = "trendStrengthScore"
	TrendTotalReturn           = "trendTotalReturn"
	TrendRiseRatio             = "trendRiseRatio"
	TrendConsecutiveDowns      = "trendConsecutiveDowns"
	TrendRecentDownRatio       = "trendRecentDownRatio"
	TrendPriceChangeFromDetect = "trendPriceChangeFromDetect"
	TrendSinceBuyReturn        = "trendSinceBuyReturn"
)

// ids is the closed factor key set, in a stable order.
var ids = []string{
	Age, CurrentPrice, CollectionPrice, LaunchPrice, EarlyReturn, RiseSpeed,
	BuyPrice, HoldDuration, ProfitPercent, HighestPrice, HighestPriceTimestamp,
	DrawdownFromHighest, TxVolumeU24h, Holders, TVL, FDV, MarketCap,
	TrendCV, TrendDirectionCount, TrendStrengthScore, TrendTotalReturn,
	TrendRiseRatio, TrendConsecutiveDowns, TrendRecentDownRatio,
	TrendPriceChangeFromDetect, TrendSinceBuyReturn,
}

// IDs returns the closed set of factor keys.
func IDs() []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Build derives the factor map for a token at the given time.
// Contracts:
//   - earlyReturn = (currentPrice − launchPrice)/launchPrice × 100 when
//     launchPrice > 0, else 0
//   - drawdownFromHighest ∈ [−100, 0], 0 when currentPrice ≥ highestPrice
//   - profitPercent and holdDuration are 0 unless a buy exists
func Build(t *domain.Token, nowMs int64) map[string]float64 {
	f := make(map[string]float64, len(ids))

	ageMinutes := 0.0
	if t.CreatedAt > 0 && nowMs > t.CreatedAt {
		ageMinutes = float64(nowMs-t.CreatedAt) / 60000.0
	}
	f[Age] = ageMinutes
	f[CurrentPrice] = t.CurrentPrice
	f[CollectionPrice] = t.CollectionPrice
	f[LaunchPrice] = t.LaunchPrice

	earlyReturn := 0.0
	if t.LaunchPrice > 0 {
		earlyReturn = (t.CurrentPrice - t.LaunchPrice) / t.LaunchPrice * 100
	}
	f[EarlyReturn] = earlyReturn

	riseSpeed := 0.0
	if ageMinutes > 0 {
		riseSpeed = earlyReturn / ageMinutes
	}
	f[RiseSpeed] = riseSpeed

	f[BuyPrice] = t.BuyPrice
	if t.BoughtAt > 0 && nowMs > t.BoughtAt {
		f[HoldDuration] = float64(nowMs-t.BoughtAt) / 1000.0
	} else {
		f[HoldDuration] = 0
	}
	if t.BuyPrice > 0 {
		f[ProfitPercent] = (t.CurrentPrice - t.BuyPrice) / t.BuyPrice * 100
	} else {
		f[ProfitPercent] = 0
	}

	f[HighestPrice] = t.HighestPrice
	f[HighestPriceTimestamp] = float64(t.HighestPriceAt)

	drawdown := 0.0
	if t.HighestPrice > 0 && t.CurrentPrice < t.HighestPrice {
		drawdown = (t.CurrentPrice - t.HighestPrice) / t.HighestPrice * 100
		if drawdown < -100 {
			drawdown = -100
		}
	}
	f[DrawdownFromHighest] = drawdown

	f[TxVolumeU24h] = t.TxVolumeU24h
	f[Holders] = float64(t.Holders)
	f[TVL] = t.TVL
	f[FDV] = t.FDV
	f[MarketCap] = t.MarketCap

	buildTrend(f, t)
	return f
}
