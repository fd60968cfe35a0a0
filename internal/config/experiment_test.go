package config

import (
	"encoding/json"
	"errors"
	"testing"

	"trading-experiment-lab/internal/domain"
)

func TestParseExperimentConfig_Virtual(t *testing.T) {
	raw := json.RawMessage(`{"initial_capital": 1.5}`)

	cfg, err := ParseExperimentConfig(raw, domain.ModeVirtual)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.InitialCapital != 1.5 {
		t.Errorf("initial capital: got %f, want 1.5", cfg.InitialCapital)
	}
	if cfg.Reserve() != DefaultReserveNative {
		t.Errorf("reserve default: got %f, want %f", cfg.Reserve(), DefaultReserveNative)
	}
	if cfg.Strategies() != nil {
		t.Error("expected no strategies without strategiesConfig")
	}
}

func TestParseExperimentConfig_RequiresCapital(t *testing.T) {
	for _, raw := range []string{`{}`, `{"initial_capital": 0}`, `{"initial_capital": -1}`} {
		_, err := ParseExperimentConfig(json.RawMessage(raw), domain.ModeVirtual)
		if !errors.Is(err, ErrConfig) {
			t.Errorf("%s: expected ErrConfig, got %v", raw, err)
		}
	}
}

func TestParseExperimentConfig_LiveRequirements(t *testing.T) {
	// Missing wallet.
	_, err := ParseExperimentConfig(json.RawMessage(`{"initial_capital": 1}`), domain.ModeLive)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for missing wallet, got %v", err)
	}

	// Wallet present, strategies missing.
	raw := `{"initial_capital": 1, "wallet": {"address": "0xabc", "privateKey": "enc"}}`
	_, err = ParseExperimentConfig(json.RawMessage(raw), domain.ModeLive)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for missing strategiesConfig, got %v", err)
	}

	// Complete live document parses.
	raw = `{
		"initial_capital": 1,
		"wallet": {"address": "0xabc", "privateKey": "enc"},
		"reserveNative": 0.05,
		"maxSlippage": 0.02,
		"strategiesConfig": {
			"tp": {"name": "Take profit", "action": "sell", "cards": "all",
			       "condition": "profitPercent >= 30", "enabled": true}
		}
	}`
	cfg, err := ParseExperimentConfig(json.RawMessage(raw), domain.ModeLive)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Reserve() != 0.05 {
		t.Errorf("reserve: got %f, want 0.05", cfg.Reserve())
	}
	if cfg.MaxSlippage != 0.02 {
		t.Errorf("maxSlippage: got %f, want 0.02", cfg.MaxSlippage)
	}
}

func TestParseExperimentConfig_BacktestRequiresSource(t *testing.T) {
	_, err := ParseExperimentConfig(json.RawMessage(`{"initial_capital": 1}`), domain.ModeBacktest)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}

	raw := `{"initial_capital": 1, "backtest": {"sourceExperimentId": "exp-1"}}`
	cfg, err := ParseExperimentConfig(json.RawMessage(raw), domain.ModeBacktest)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Backtest.SourceExperimentID != "exp-1" {
		t.Errorf("source id: got %s", cfg.Backtest.SourceExperimentID)
	}
}

func TestParseExperimentConfig_UnknownMode(t *testing.T) {
	_, err := ParseExperimentConfig(json.RawMessage(`{"initial_capital": 1}`), "paper")
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestParseExperimentConfig_PositionManagement(t *testing.T) {
	// Enabled with zero perCardNative is invalid.
	raw := `{"initial_capital": 1, "positionManagement": {"enabled": true, "totalCards": 4}}`
	_, err := ParseExperimentConfig(json.RawMessage(raw), domain.ModeVirtual)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for zero perCardNative, got %v", err)
	}

	// Allocation must sum to totalCards.
	raw = `{"initial_capital": 1, "positionManagement": {
		"enabled": true, "totalCards": 4, "perCardNative": 0.025,
		"initialAllocation": {"nativeCards": 2, "tokenCards": 1}}}`
	_, err = ParseExperimentConfig(json.RawMessage(raw), domain.ModeVirtual)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for allocation mismatch, got %v", err)
	}

	// Valid document.
	raw = `{"initial_capital": 1, "positionManagement": {
		"enabled": true, "totalCards": 6, "perCardNative": 0.025,
		"initialAllocation": {"nativeCards": 2, "tokenCards": 4}}}`
	cfg, err := ParseExperimentConfig(json.RawMessage(raw), domain.ModeVirtual)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.PositionManagement.TotalCards != 6 {
		t.Errorf("totalCards: got %d, want 6", cfg.PositionManagement.TotalCards)
	}
}

func TestStrategies_FillsMissingIDs(t *testing.T) {
	raw := `{
		"initial_capital": 1,
		"strategiesConfig": {
			"buy-1": {"name": "Entry", "action": "buy", "cards": 2,
			          "condition": "earlyReturn >= 80", "enabled": true},
			"sell-1": {"id": "explicit", "name": "Exit", "action": "sell", "cards": "all",
			           "condition": "profitPercent >= 30", "enabled": true}
		}
	}`
	cfg, err := ParseExperimentConfig(json.RawMessage(raw), domain.ModeVirtual)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	defs := cfg.Strategies()
	if len(defs) != 2 {
		t.Fatalf("got %d strategies, want 2", len(defs))
	}
	byID := make(map[string]*domain.StrategyDefinition)
	for _, d := range defs {
		byID[d.ID] = d
	}
	if byID["buy-1"] == nil {
		t.Error("map key did not fill the missing id")
	}
	if byID["explicit"] == nil {
		t.Error("explicit id overwritten by map key")
	}
	if byID["buy-1"] != nil && !byID["buy-1"].Cards.All && byID["buy-1"].Cards.Count != 2 {
		t.Errorf("cards: got %+v", byID["buy-1"].Cards)
	}
	if byID["explicit"] != nil && !byID["explicit"].Cards.All {
		t.Error("cards \"all\" not parsed")
	}
}
