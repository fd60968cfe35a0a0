package postgres

import (
	"context"
	"fmt"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/storage"
)

// ExperimentStore implements storage.ExperimentStore using PostgreSQL.
type ExperimentStore struct {
	pool *Pool
}

// NewExperimentStore creates a new ExperimentStore.
func NewExperimentStore(pool *Pool) *ExperimentStore {
	return &ExperimentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExperimentStore = (*ExperimentStore)(nil)

// Insert adds a new experiment. Returns ErrDuplicateKey if id exists.
func (s *ExperimentStore) Insert(ctx context.Context, e *domain.Experiment) error {
	query := `
		INSERT INTO experiments (
			id, name, mode, blockchain, status, config,
			started_at, stopped_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Name, string(e.Mode), e.Blockchain, string(e.Status),
		[]byte(e.Config), e.StartedAt, e.StoppedAt, e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert experiment: %w", err)
	}
	return nil
}

// GetByID retrieves an experiment. Returns ErrNotFound if not exists.
func (s *ExperimentStore) GetByID(ctx context.Context, id string) (*domain.Experiment, error) {
	query := `
		SELECT id, name, mode, blockchain, status, config,
		       started_at, stopped_at, created_at
		FROM experiments
		WHERE id = $1
	`

	var e domain.Experiment
	var mode, status string
	var config []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Name, &mode, &e.Blockchain, &status, &config,
		&e.StartedAt, &e.StoppedAt, &e.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get experiment by id: %w", err)
	}
	e.Mode = domain.Mode(mode)
	e.Status = domain.ExperimentStatus(status)
	e.Config = config
	return &e, nil
}

// UpdateStatus sets the status and optionally the start/stop stamps.
func (s *ExperimentStore) UpdateStatus(ctx context.Context, id string, status domain.ExperimentStatus, startedAt, stoppedAt *int64) error {
	query := `
		UPDATE experiments
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    stopped_at = COALESCE($4, stopped_at)
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, string(status), startedAt, stoppedAt)
	if err != nil {
		return fmt.Errorf("update experiment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
