// Package listing implements the new-token listing sources. The engine calls
// Harvest once per round; both the HTTP poll source and the WebSocket push
// source satisfy the same Source contract.
package listing

import "context"

// Listing is a newly listed token as reported by the source.
type Listing struct {
	Address        string  `json:"address"`
	Symbol         string  `json:"symbol"`
	Blockchain     string  `json:"blockchain"`
	CreatedAt      int64   `json:"createdAt"` // Unix milliseconds
	CurrentPrice   float64 `json:"currentPrice,omitempty"`
	CreatorAddress string  `json:"creatorAddress,omitempty"`
}

// Source produces the listings observed since the previous harvest.
// Harvest is idempotent with respect to pool insertion; the pool ignores
// duplicates.
type Source interface {
	Harvest(ctx context.Context) ([]Listing, error)
	Close() error
}
