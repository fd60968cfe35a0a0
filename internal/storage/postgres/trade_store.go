package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal trade metadata: %w", err)
	}

	query := `
		INSERT INTO trades (
			id, experiment_id, signal_id, direction, token_address, blockchain,
			input_currency, input_amount, output_currency, output_amount, price,
			success, tx_hash, gas_used, wallet_address, metadata, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17
		)
	`

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.ExperimentID, t.SignalID, string(t.Direction), t.TokenAddress, t.Blockchain,
		t.InputCurrency, t.InputAmount, t.OutputCurrency, t.OutputAmount, t.Price,
		t.Success, t.TxHash, t.GasUsed, t.WalletAddress, metadata, t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByExperiment retrieves all trades for an experiment, ordered by
// timestamp ASC.
func (s *TradeStore) GetByExperiment(ctx context.Context, experimentID string) ([]*domain.Trade, error) {
	query := `
		SELECT id, experiment_id, signal_id, direction, token_address, blockchain,
		       input_currency, input_amount, output_currency, output_amount, price,
		       success, tx_hash, gas_used, wallet_address, metadata, timestamp
		FROM trades
		WHERE experiment_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query trades by experiment: %w", err)
	}
	defer rows.Close()

	var result []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction string
		var metadata []byte
		err := rows.Scan(
			&t.ID, &t.ExperimentID, &t.SignalID, &direction, &t.TokenAddress, &t.Blockchain,
			&t.InputCurrency, &t.InputAmount, &t.OutputCurrency, &t.OutputAmount, &t.Price,
			&t.Success, &t.TxHash, &t.GasUsed, &t.WalletAddress, &metadata, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Direction = domain.TradeAction(direction)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal trade metadata: %w", err)
			}
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}
