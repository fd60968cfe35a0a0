package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TradeAction is the direction a strategy intends.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// IsValid checks if the action is a valid value.
func (a TradeAction) IsValid() bool {
	return a == ActionBuy || a == ActionSell
}

// CardSpec is the number of cards a strategy trades, or "all" for sells
// that close the whole position. JSON accepts either a number or "all".
type CardSpec struct {
	All   bool
	Count int
}

// Cards returns a numeric CardSpec.
func Cards(n int) CardSpec {
	return CardSpec{Count: n}
}

// AllCards returns the "all" CardSpec.
func AllCards() CardSpec {
	return CardSpec{All: true}
}

// UnmarshalJSON accepts a number or "all".
func (c *CardSpec) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("cards must be >= 0, got %d", n)
		}
		*c = CardSpec{Count: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cards must be a number or %q", "all")
	}
	if strings.ToLower(s) != "all" {
		return fmt.Errorf("cards must be a number or %q, got %q", "all", s)
	}
	*c = CardSpec{All: true}
	return nil
}

// MarshalJSON emits "all" or the numeric count.
func (c CardSpec) MarshalJSON() ([]byte, error) {
	if c.All {
		return json.Marshal("all")
	}
	return json.Marshal(c.Count)
}

// StrategyDefinition is a user-defined trading rule. Condition is a boolean
// expression over factor names using comparison, arithmetic, logical
// AND/OR/NOT and parentheses.
type StrategyDefinition struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Action          TradeAction `json:"action"`
	Priority        int         `json:"priority"`
	CooldownSeconds int64       `json:"cooldownSeconds"`
	MaxExecutions   *int        `json:"maxExecutions,omitempty"`
	Cards           CardSpec    `json:"cards"`
	Condition       string      `json:"condition"`
	Enabled         bool        `json:"enabled"`
}
