package strategy

import "trading-experiment-lab/internal/domain"

// DefaultStrategies is the hard-coded set used by virtual and backtest
// experiments when strategiesConfig is absent. Live experiments must supply
// explicit configuration and never fall back to these.
func DefaultStrategies() []domain.StrategyDefinition {
	maxBuys := 2
	return []domain.StrategyDefinition{
		{
			ID:              "early-momentum-buy",
			Name:            "Early momentum entry",
			Action:          domain.ActionBuy,
			Priority:        10,
			CooldownSeconds: 60,
			MaxExecutions:   &maxBuys,
			Cards:           domain.Cards(1),
			Condition:       "earlyReturn >= 80 AND earlyReturn <= 120",
			Enabled:         true,
		},
		{
			ID:              "take-profit",
			Name:            "Take profit",
			Action:          domain.ActionSell,
			Priority:        20,
			CooldownSeconds: 30,
			Cards:           domain.AllCards(),
			Condition:       "profitPercent >= 30",
			Enabled:         true,
		},
		{
			ID:              "stop-loss",
			Name:            "Stop loss",
			Action:          domain.ActionSell,
			Priority:        30,
			CooldownSeconds: 30,
			Cards:           domain.AllCards(),
			Condition:       "profitPercent <= -20",
			Enabled:         true,
		},
		{
			ID:              "drawdown-exit",
			Name:            "Drawdown exit",
			Action:          domain.ActionSell,
			Priority:        40,
			CooldownSeconds: 30,
			Cards:           domain.AllCards(),
			Condition:       "drawdownFromHighest <= -30 AND profitPercent > 0",
			Enabled:         true,
		},
	}
}
