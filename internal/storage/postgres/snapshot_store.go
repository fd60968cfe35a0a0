package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new portfolio snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PortfolioSnapshot) error {
	positions, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	query := `
		INSERT INTO portfolio_snapshots (
			id, experiment_id, loop_count, available_balance, total_value,
			total_invested, total_pnl, realized_pnl, unrealized_pnl,
			positions, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.ExperimentID, snap.LoopCount, snap.AvailableBalance, snap.TotalValue,
		snap.TotalInvested, snap.TotalPnL, snap.RealizedPnL, snap.UnrealizedPnL,
		positions, snap.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

// GetByExperiment retrieves all snapshots for an experiment, ordered by
// loop_count ASC.
func (s *SnapshotStore) GetByExperiment(ctx context.Context, experimentID string) ([]*domain.PortfolioSnapshot, error) {
	query := `
		SELECT id, experiment_id, loop_count, available_balance, total_value,
		       total_invested, total_pnl, realized_pnl, unrealized_pnl,
		       positions, timestamp
		FROM portfolio_snapshots
		WHERE experiment_id = $1
		ORDER BY loop_count ASC, timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by experiment: %w", err)
	}
	defer rows.Close()

	var result []*domain.PortfolioSnapshot
	for rows.Next() {
		var snap domain.PortfolioSnapshot
		var positions []byte
		err := rows.Scan(
			&snap.ID, &snap.ExperimentID, &snap.LoopCount, &snap.AvailableBalance, &snap.TotalValue,
			&snap.TotalInvested, &snap.TotalPnL, &snap.RealizedPnL, &snap.UnrealizedPnL,
			&positions, &snap.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if len(positions) > 0 {
			if err := json.Unmarshal(positions, &snap.Positions); err != nil {
				return nil, fmt.Errorf("unmarshal positions: %w", err)
			}
		}
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}

// RuntimeMetricStore implements storage.RuntimeMetricStore using PostgreSQL.
type RuntimeMetricStore struct {
	pool *Pool
}

// NewRuntimeMetricStore creates a new RuntimeMetricStore.
func NewRuntimeMetricStore(pool *Pool) *RuntimeMetricStore {
	return &RuntimeMetricStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RuntimeMetricStore = (*RuntimeMetricStore)(nil)

// Insert adds a per-round runtime metric row.
func (s *RuntimeMetricStore) Insert(ctx context.Context, m *domain.RuntimeMetric) error {
	query := `
		INSERT INTO runtime_metrics (
			experiment_id, loop_count, duration_ms, tokens_evaluated,
			no_price_count, signal_count, trade_count, error_count, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		m.ExperimentID, m.LoopCount, m.DurationMs, m.TokensEvaluated,
		m.NoPriceCount, m.SignalCount, m.TradeCount, m.ErrorCount, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert runtime metric: %w", err)
	}
	return nil
}

// GetByExperiment retrieves all metric rows for an experiment, ordered by
// loop_count ASC.
func (s *RuntimeMetricStore) GetByExperiment(ctx context.Context, experimentID string) ([]*domain.RuntimeMetric, error) {
	query := `
		SELECT experiment_id, loop_count, duration_ms, tokens_evaluated,
		       no_price_count, signal_count, trade_count, error_count, timestamp
		FROM runtime_metrics
		WHERE experiment_id = $1
		ORDER BY loop_count ASC
	`

	rows, err := s.pool.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("query runtime metrics by experiment: %w", err)
	}
	defer rows.Close()

	var result []*domain.RuntimeMetric
	for rows.Next() {
		var m domain.RuntimeMetric
		err := rows.Scan(
			&m.ExperimentID, &m.LoopCount, &m.DurationMs, &m.TokensEvaluated,
			&m.NoPriceCount, &m.SignalCount, &m.TradeCount, &m.ErrorCount, &m.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan runtime metric: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runtime metrics: %w", err)
	}
	return result, nil
}
