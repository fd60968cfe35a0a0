package factors

import (
	"math"

	"trading-experiment-lab/internal/domain"
)

// recentWindow is the number of trailing moves used for the recent-down
// ratio.
const recentWindow = 10

// buildTrend derives trend factors from the token's recorded price history.
// With fewer than two points every trend factor is zero except
// trendPriceChangeFromDetect and trendSinceBuyReturn, which only need the
// current price.
func buildTrend(f map[string]float64, t *domain.Token) {
	f[TrendPriceChangeFromDetect] = percentChange(t.CollectionPrice, t.CurrentPrice)
	if t.BuyPrice > 0 {
		f[TrendSinceBuyReturn] = percentChange(t.BuyPrice, t.CurrentPrice)
	} else {
		f[TrendSinceBuyReturn] = 0
	}

	history := t.PriceHistory
	if len(history) < 2 {
		f[TrendCV] = 0
		f[TrendDirectionCount] = 0
		f[TrendStrengthScore] = 0
		f[TrendTotalReturn] = 0
		f[TrendRiseRatio] = 0
		f[TrendConsecutiveDowns] = 0
		f[TrendRecentDownRatio] = 0
		return
	}

	prices := make([]float64, len(history))
	for i, p := range history {
		prices[i] = p.Price
	}

	f[TrendCV] = coefficientOfVariation(prices)
	f[TrendTotalReturn] = percentChange(prices[0], prices[len(prices)-1])

	var ups, downs, directionChanges int
	var sumAbsMove float64
	prevDir := 0
	for i := 1; i < len(prices); i++ {
		move := prices[i] - prices[i-1]
		sumAbsMove += math.Abs(move)
		dir := 0
		if move > 0 {
			ups++
			dir = 1
		} else if move < 0 {
			downs++
			dir = -1
		}
		if dir != 0 && prevDir != 0 && dir != prevDir {
			directionChanges++
		}
		if dir != 0 {
			prevDir = dir
		}
	}
	moves := len(prices) - 1

	f[TrendDirectionCount] = float64(directionChanges)
	f[TrendRiseRatio] = float64(ups) / float64(moves)

	// Net displacement over total path length: 1.0 is a straight trend,
	// 0 is pure chop.
	if sumAbsMove > 0 {
		f[TrendStrengthScore] = math.Abs(prices[len(prices)-1]-prices[0]) / sumAbsMove
	} else {
		f[TrendStrengthScore] = 0
	}

	consecutiveDowns := 0
	for i := len(prices) - 1; i >= 1; i-- {
		if prices[i] < prices[i-1] {
			consecutiveDowns++
		} else {
			break
		}
	}
	f[TrendConsecutiveDowns] = float64(consecutiveDowns)

	recent := moves
	if recent > recentWindow {
		recent = recentWindow
	}
	recentDowns := 0
	for i := len(prices) - recent; i < len(prices); i++ {
		if prices[i] < prices[i-1] {
			recentDowns++
		}
	}
	f[TrendRecentDownRatio] = float64(recentDowns) / float64(recent)
}

func percentChange(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}

// coefficientOfVariation returns stddev/mean of the series, 0 for a zero
// mean.
func coefficientOfVariation(values []float64) float64 {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance) / mean
}
