// Package storage defines the persistence contracts of the engine. The
// engine relies only on insert, update-by-id, select-by-experiment and
// select-by-composite-key; anything richer belongs to the dashboard side.
package storage

import (
	"context"

	"trading-experiment-lab/internal/domain"
)

// ExperimentStore provides access to experiments storage.
type ExperimentStore interface {
	// Insert adds a new experiment. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, e *domain.Experiment) error

	// GetByID retrieves an experiment. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Experiment, error)

	// UpdateStatus sets the status and optionally the start/stop stamps.
	// Nil timestamps are left untouched.
	UpdateStatus(ctx context.Context, id string, status domain.ExperimentStatus, startedAt, stoppedAt *int64) error
}

// TokenStore provides access to per-experiment token state storage.
type TokenStore interface {
	// Upsert inserts or replaces the token row for
	// (experiment_id, address, blockchain).
	Upsert(ctx context.Context, experimentID string, t *domain.Token) error

	// GetByExperiment retrieves all tokens for an experiment, ordered by
	// collected_at ASC.
	GetByExperiment(ctx context.Context, experimentID string) ([]*domain.Token, error)
}

// SignalStore provides access to strategy_signals storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, s *domain.TradeSignal) error

	// UpdateOutcome writes the dispatch outcome by signal id.
	UpdateOutcome(ctx context.Context, id string, executed bool, tradeID, errorMessage *string) error

	// GetByExperiment retrieves all signals for an experiment, ordered by
	// created_at ASC.
	GetByExperiment(ctx context.Context, experimentID string) ([]*domain.TradeSignal, error)
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByExperiment retrieves all trades for an experiment, ordered by
	// timestamp ASC.
	GetByExperiment(ctx context.Context, experimentID string) ([]*domain.Trade, error)
}

// SnapshotStore provides access to portfolio_snapshots storage.
type SnapshotStore interface {
	// Insert adds a new snapshot.
	Insert(ctx context.Context, s *domain.PortfolioSnapshot) error

	// GetByExperiment retrieves all snapshots for an experiment, ordered
	// by loop_count ASC.
	GetByExperiment(ctx context.Context, experimentID string) ([]*domain.PortfolioSnapshot, error)
}

// RuntimeMetricStore provides access to runtime_metrics storage.
type RuntimeMetricStore interface {
	// Insert adds a per-round metric row.
	Insert(ctx context.Context, m *domain.RuntimeMetric) error

	// GetByExperiment retrieves all metric rows for an experiment, ordered
	// by loop_count ASC.
	GetByExperiment(ctx context.Context, experimentID string) ([]*domain.RuntimeMetric, error)
}

// TimeSeriesStore provides access to experiment_time_series_data storage.
// Backtest depends on records coming back ordered by loop_count then
// timestamp.
type TimeSeriesStore interface {
	// InsertBulk adds multiple records.
	InsertBulk(ctx context.Context, records []*domain.TimeSeriesRecord) error

	// GetByExperiment retrieves all records for an experiment, ordered by
	// loop_count ASC, timestamp ASC.
	GetByExperiment(ctx context.Context, experimentID string) ([]*domain.TimeSeriesRecord, error)
}
