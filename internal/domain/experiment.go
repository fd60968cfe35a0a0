package domain

import "encoding/json"

// Mode selects which execution adapter drives an experiment.
type Mode string

const (
	ModeVirtual  Mode = "virtual"
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the mode is a valid value.
func (m Mode) IsValid() bool {
	return m == ModeVirtual || m == ModeBacktest || m == ModeLive
}

// ExperimentStatus represents the lifecycle state of an experiment.
type ExperimentStatus string

const (
	ExperimentInitializing ExperimentStatus = "initializing"
	ExperimentRunning      ExperimentStatus = "running"
	ExperimentCompleted    ExperimentStatus = "completed"
	ExperimentFailed       ExperimentStatus = "failed"
	ExperimentStopped      ExperimentStatus = "stopped"
)

// IsTerminal reports whether the status is a terminal state.
func (s ExperimentStatus) IsTerminal() bool {
	return s == ExperimentCompleted || s == ExperimentFailed || s == ExperimentStopped
}

// Experiment is the top-level run descriptor.
// Corresponds to experiments table in PostgreSQL.
// The engine is the sole writer of Status once the run has started.
type Experiment struct {
	ID         string           // PRIMARY KEY, uuid
	Name       string           // human readable name
	Mode       Mode             // virtual | backtest | live
	Blockchain string           // canonical blockchain id
	Status     ExperimentStatus
	Config     json.RawMessage // configuration document, parsed by internal/config
	StartedAt  *int64          // Unix timestamp in milliseconds (nullable)
	StoppedAt  *int64          // Unix timestamp in milliseconds (nullable)
	CreatedAt  int64           // record creation timestamp (ms)
}
