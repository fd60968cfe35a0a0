package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts or replaces the token row for
// (experiment_id, address, blockchain).
func (s *TokenStore) Upsert(ctx context.Context, experimentID string, t *domain.Token) error {
	executions, err := json.Marshal(t.Executions)
	if err != nil {
		return fmt.Errorf("marshal executions: %w", err)
	}

	query := `
		INSERT INTO tokens (
			experiment_id, address, blockchain, symbol,
			created_at, collected_at, collection_price, launch_price,
			current_price, highest_price, highest_price_at,
			tx_volume_u_24h, holders, tvl, fdv, market_cap,
			creator_address, status, buy_price, bought_at, executions
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (experiment_id, address, blockchain) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			current_price = EXCLUDED.current_price,
			highest_price = EXCLUDED.highest_price,
			highest_price_at = EXCLUDED.highest_price_at,
			tx_volume_u_24h = EXCLUDED.tx_volume_u_24h,
			holders = EXCLUDED.holders,
			tvl = EXCLUDED.tvl,
			fdv = EXCLUDED.fdv,
			market_cap = EXCLUDED.market_cap,
			status = EXCLUDED.status,
			buy_price = EXCLUDED.buy_price,
			bought_at = EXCLUDED.bought_at,
			executions = EXCLUDED.executions
	`

	_, err = s.pool.Exec(ctx, query,
		experimentID, t.Address, t.Blockchain, t.Symbol,
		t.CreatedAt, t.CollectedAt, t.CollectionPrice, t.LaunchPrice,
		t.CurrentPrice, t.HighestPrice, t.HighestPriceAt,
		t.TxVolumeU24h, t.Holders, t.TVL, t.FDV, t.MarketCap,
		t.CreatorAddress, string(t.Status), t.BuyPrice, t.BoughtAt, executions,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetByExperiment retrieves all tokens for an experiment, ordered by
// collected_at ASC.
func (s *TokenStore) GetByExperiment(ctx context.Context, experimentID string) ([]*domain.Token, error) {
	query := `
		SELECT address, blockchain, symbol,
		       created_at, collected_at, collection_price, launch_price,
		       current_price, highest_price, highest_price_at,
		       tx_volume_u_24h, holders, tvl, fdv, market_cap,
		       creator_address, status, buy_price, bought_at, executions
		FROM tokens
		WHERE experiment_id = $1
		ORDER BY collected_at ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query tokens by experiment: %w", err)
	}
	defer rows.Close()

	var result []*domain.Token
	for rows.Next() {
		var t domain.Token
		var status string
		var executions []byte
		err := rows.Scan(
			&t.Address, &t.Blockchain, &t.Symbol,
			&t.CreatedAt, &t.CollectedAt, &t.CollectionPrice, &t.LaunchPrice,
			&t.CurrentPrice, &t.HighestPrice, &t.HighestPriceAt,
			&t.TxVolumeU24h, &t.Holders, &t.TVL, &t.FDV, &t.MarketCap,
			&t.CreatorAddress, &status, &t.BuyPrice, &t.BoughtAt, &executions,
		)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		t.Status = domain.TokenStatus(status)
		if len(executions) > 0 {
			if err := json.Unmarshal(executions, &t.Executions); err != nil {
				return nil, fmt.Errorf("unmarshal executions: %w", err)
			}
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return result, nil
}
