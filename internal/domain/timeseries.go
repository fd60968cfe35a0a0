package domain

// TimeSeriesRecord is a per-(experiment, token, tick) snapshot of price and
// factor values. Backtest mode replays these records as its data source, so
// factor serialization must be lossless.
// Corresponds to experiment_time_series_data table in ClickHouse.
type TimeSeriesRecord struct {
	ExperimentID string
	TokenAddress string
	TokenSymbol  string
	Timestamp    int64 // Unix timestamp in milliseconds
	LoopCount    int64 // scheduler round that produced the record
	PriceUSD     float64
	FactorValues map[string]float64
	Blockchain   string
}
