package domain

import "github.com/google/uuid"

// NewID returns a new random identifier for experiments, signals and trades.
func NewID() string {
	return uuid.NewString()
}
