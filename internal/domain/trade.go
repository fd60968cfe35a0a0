package domain

// CardState captures the card allocation around a trade, stored in the
// trade metadata document.
type CardState struct {
	NativeCards int `json:"nativeCards"`
	TokenCards  int `json:"tokenCards"`
}

// TradeMetadata is the metadata document attached to a trade.
type TradeMetadata struct {
	CardsBefore *CardState `json:"cardsBefore,omitempty"`
	CardsAfter  *CardState `json:"cardsAfter,omitempty"`
	TraderUsed  string     `json:"traderUsed,omitempty"` // "primary" | "secondary"
}

// Trade is an executed order.
// Corresponds to trades table in PostgreSQL.
type Trade struct {
	ID           string  // PRIMARY KEY, uuid
	ExperimentID string  // FK to experiments
	SignalID     *string // originating signal, nullable

	Direction      TradeAction
	TokenAddress   string
	Blockchain     string
	InputCurrency  string
	InputAmount    float64
	OutputCurrency string
	OutputAmount   float64
	Price          float64 // unit price actually paid/received

	Success       bool
	TxHash        *string  // nullable, live only
	GasUsed       *float64 // nullable, live only
	WalletAddress *string  // nullable, live only

	Metadata TradeMetadata

	Timestamp int64 // Unix timestamp in milliseconds
}
