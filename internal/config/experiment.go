// Package config parses the two configuration layers: the per-experiment JSON
// document stored on the experiment row, and the process-level settings
// (DSNs, endpoints, tick interval) loaded from file and environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"trading-experiment-lab/internal/domain"
)

// ErrConfig marks experiment configuration failures. Initialization errors
// carrying it move the experiment to status failed.
var ErrConfig = errors.New("experiment config error")

// DefaultReserveNative is the native amount kept aside for gas in live mode.
const DefaultReserveNative = 0.1

// WalletConfig is the live-mode wallet section. PrivateKey stays encrypted;
// decryption is an injected collaborator.
type WalletConfig struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// BacktestConfig names the experiment whose time-series is replayed.
type BacktestConfig struct {
	SourceExperimentID string `json:"sourceExperimentId"`
}

// AllocationConfig is the initial card split for new tokens.
type AllocationConfig struct {
	NativeCards int `json:"nativeCards"`
	TokenCards  int `json:"tokenCards"`
}

// PositionManagementConfig tunes the card discretization.
type PositionManagementConfig struct {
	Enabled           bool              `json:"enabled"`
	TotalCards        int               `json:"totalCards"`
	PerCardNative     float64           `json:"perCardNative"`
	InitialAllocation *AllocationConfig `json:"initialAllocation,omitempty"`
}

// ExperimentConfig is the recognized shape of the experiment config document.
type ExperimentConfig struct {
	InitialCapital     float64                               `json:"initial_capital"`
	Wallet             *WalletConfig                         `json:"wallet,omitempty"`
	Backtest           *BacktestConfig                       `json:"backtest,omitempty"`
	PositionManagement *PositionManagementConfig             `json:"positionManagement,omitempty"`
	StrategiesConfig   map[string]*domain.StrategyDefinition `json:"strategiesConfig,omitempty"`
	ReserveNative      *float64                              `json:"reserveNative,omitempty"`
	MaxSlippage        float64                               `json:"maxSlippage,omitempty"`
	MaxGasPrice        float64                               `json:"maxGasPrice,omitempty"`
	MaxGasLimit        float64                               `json:"maxGasLimit,omitempty"`
}

// ParseExperimentConfig parses and validates the config document against the
// experiment's mode. Validation failures wrap ErrConfig.
func ParseExperimentConfig(raw json.RawMessage, mode domain.Mode) (*ExperimentConfig, error) {
	var cfg ExperimentConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse document: %v", ErrConfig, err)
		}
	}

	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial_capital must be > 0", ErrConfig)
	}

	switch mode {
	case domain.ModeLive:
		if cfg.Wallet == nil || cfg.Wallet.Address == "" || cfg.Wallet.PrivateKey == "" {
			return nil, fmt.Errorf("%w: live mode requires wallet address and privateKey", ErrConfig)
		}
		if len(cfg.StrategiesConfig) == 0 {
			return nil, fmt.Errorf("%w: live mode requires explicit strategiesConfig", ErrConfig)
		}
	case domain.ModeBacktest:
		if cfg.Backtest == nil || cfg.Backtest.SourceExperimentID == "" {
			return nil, fmt.Errorf("%w: backtest mode requires backtest.sourceExperimentId", ErrConfig)
		}
	case domain.ModeVirtual:
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrConfig, mode)
	}

	if pm := cfg.PositionManagement; pm != nil && pm.Enabled {
		if pm.PerCardNative <= 0 {
			return nil, fmt.Errorf("%w: positionManagement.perCardNative must be > 0", ErrConfig)
		}
		if alloc := pm.InitialAllocation; alloc != nil {
			if alloc.NativeCards+alloc.TokenCards != pm.TotalCards {
				return nil, fmt.Errorf("%w: initialAllocation must sum to totalCards", ErrConfig)
			}
		}
	}

	return &cfg, nil
}

// Reserve returns the configured native reserve, or the default.
func (c *ExperimentConfig) Reserve() float64 {
	if c.ReserveNative != nil {
		return *c.ReserveNative
	}
	return DefaultReserveNative
}

// Strategies returns the configured strategy definitions. Map keys fill in
// missing ids. Ordering is left to the strategy engine, which sorts by
// priority on load.
func (c *ExperimentConfig) Strategies() []*domain.StrategyDefinition {
	if len(c.StrategiesConfig) == 0 {
		return nil
	}
	out := make([]*domain.StrategyDefinition, 0, len(c.StrategiesConfig))
	for id, def := range c.StrategiesConfig {
		if def.ID == "" {
			def.ID = id
		}
		out = append(out, def)
	}
	return out
}
