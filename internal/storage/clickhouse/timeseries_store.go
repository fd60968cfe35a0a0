package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// TimeSeriesStore implements storage.TimeSeriesStore using ClickHouse.
type TimeSeriesStore struct {
	conn *Conn
}

// NewTimeSeriesStore creates a new TimeSeriesStore.
func NewTimeSeriesStore(conn *Conn) *TimeSeriesStore {
	return &TimeSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TimeSeriesStore = (*TimeSeriesStore)(nil)

// InsertBulk adds multiple records in a single batch. Factor values are
// serialized as JSON so backtest replay sees the exact map that was recorded.
func (s *TimeSeriesStore) InsertBulk(ctx context.Context, records []*domain.TimeSeriesRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO experiment_time_series_data (
			experiment_id, token_address, token_symbol, timestamp_ms,
			loop_count, price_usd, factor_values, blockchain
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		factors, err := json.Marshal(r.FactorValues)
		if err != nil {
			return fmt.Errorf("marshal factor values: %w", err)
		}
		err = batch.Append(
			r.ExperimentID, r.TokenAddress, r.TokenSymbol, uint64(r.Timestamp),
			uint64(r.LoopCount), r.PriceUSD, string(factors), r.Blockchain,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByExperiment retrieves all records for an experiment, ordered by
// loop_count ASC, timestamp ASC.
func (s *TimeSeriesStore) GetByExperiment(ctx context.Context, experimentID string) ([]*domain.TimeSeriesRecord, error) {
	query := `
		SELECT experiment_id, token_address, token_symbol, timestamp_ms,
		       loop_count, price_usd, factor_values, blockchain
		FROM experiment_time_series_data
		WHERE experiment_id = ?
		ORDER BY loop_count ASC, timestamp_ms ASC, token_address ASC
	`

	rows, err := s.conn.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query by experiment: %w", err)
	}
	defer rows.Close()

	var result []*domain.TimeSeriesRecord
	for rows.Next() {
		var r domain.TimeSeriesRecord
		var timestampMs, loopCount uint64
		var factors string

		err := rows.Scan(
			&r.ExperimentID, &r.TokenAddress, &r.TokenSymbol, &timestampMs,
			&loopCount, &r.PriceUSD, &factors, &r.Blockchain,
		)
		if err != nil {
			return nil, fmt.Errorf("scan time series row: %w", err)
		}

		r.Timestamp = int64(timestampMs)
		r.LoopCount = int64(loopCount)
		if factors != "" {
			if err := json.Unmarshal([]byte(factors), &r.FactorValues); err != nil {
				return nil, fmt.Errorf("unmarshal factor values: %w", err)
			}
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time series rows: %w", err)
	}
	return result, nil
}
