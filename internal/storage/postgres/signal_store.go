package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

// Insert adds a new signal. Returns ErrDuplicateKey if id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.TradeSignal) error {
	factors, err := json.Marshal(sig.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}

	query := `
		INSERT INTO strategy_signals (
			id, experiment_id, token_address, token_symbol, blockchain,
			action, confidence, reason, factors, price, strategy_id,
			loop_count, executed, trade_id, error_message, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)
	`

	_, err = s.pool.Exec(ctx, query,
		sig.ID, sig.ExperimentID, sig.TokenAddress, sig.TokenSymbol, sig.Blockchain,
		string(sig.Action), sig.Confidence, sig.Reason, factors, sig.Price, sig.StrategyID,
		sig.LoopCount, sig.Executed, sig.TradeID, sig.ErrorMessage, sig.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// UpdateOutcome writes the dispatch outcome by signal id.
func (s *SignalStore) UpdateOutcome(ctx context.Context, id string, executed bool, tradeID, errorMessage *string) error {
	query := `
		UPDATE strategy_signals
		SET executed = $2, trade_id = $3, error_message = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, executed, tradeID, errorMessage)
	if err != nil {
		return fmt.Errorf("update signal outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByExperiment retrieves all signals for an experiment, ordered by
// created_at ASC.
func (s *SignalStore) GetByExperiment(ctx context.Context, experimentID string) ([]*domain.TradeSignal, error) {
	query := `
		SELECT id, experiment_id, token_address, token_symbol, blockchain,
		       action, confidence, reason, factors, price, strategy_id,
		       loop_count, executed, trade_id, error_message, created_at
		FROM strategy_signals
		WHERE experiment_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query signals by experiment: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeSignal
	for rows.Next() {
		var sig domain.TradeSignal
		var action string
		var factors []byte
		err := rows.Scan(
			&sig.ID, &sig.ExperimentID, &sig.TokenAddress, &sig.TokenSymbol, &sig.Blockchain,
			&action, &sig.Confidence, &sig.Reason, &factors, &sig.Price, &sig.StrategyID,
			&sig.LoopCount, &sig.Executed, &sig.TradeID, &sig.ErrorMessage, &sig.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Action = domain.TradeAction(action)
		if len(factors) > 0 {
			if err := json.Unmarshal(factors, &sig.Factors); err != nil {
				return nil, fmt.Errorf("unmarshal factors: %w", err)
			}
		}
		result = append(result, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}
