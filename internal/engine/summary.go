package engine

import "log"

// RoundSummary aggregates what happened in one scheduler round. It is logged
// at round end and persisted as a runtime metric row.
type RoundSummary struct {
	LoopCount       int64
	TokensEvaluated int
	NoPriceCount    int
	SignalCount     int
	TradeCount      int
	ErrorCount      int
	DurationMs      int64
}

func (s RoundSummary) log(mode string) {
	log.Printf("[engine] round %d (%s): evaluated=%d noPrice=%d signals=%d trades=%d errors=%d duration=%dms",
		s.LoopCount, mode, s.TokensEvaluated, s.NoPriceCount, s.SignalCount, s.TradeCount, s.ErrorCount, s.DurationMs)
}
