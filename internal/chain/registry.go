// Package chain normalizes blockchain identifiers and token addresses.
// A single canonicalization point keeps TokenPool, PortfolioManager and the
// API adapters from splitting keys on casing or alias differences.
package chain

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical blockchain ids.
const (
	BSC      = "bsc"
	Solana   = "solana"
	Ethereum = "ethereum"
	Base     = "base"
)

// ErrUnknownBlockchain is returned for ids with no canonical mapping.
var ErrUnknownBlockchain = errors.New("unknown blockchain id")

// aliases maps every accepted spelling to its canonical id.
var aliases = map[string]string{
	"bsc":      BSC,
	"bnb":      BSC,
	"binance":  BSC,
	"sol":      Solana,
	"solana":   Solana,
	"eth":      Ethereum,
	"ethereum": Ethereum,
	"base":     Base,
}

// marketSuffix maps canonical ids to the suffix used in market-data token ids.
var marketSuffix = map[string]string{
	BSC:      "bsc",
	Solana:   "solana",
	Ethereum: "eth",
	Base:     "base",
}

// Canonical resolves a blockchain id or alias to its canonical form.
func Canonical(id string) (string, error) {
	c, ok := aliases[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBlockchain, id)
	}
	return c, nil
}

// IsEVM reports whether the canonical blockchain uses EVM-style hex addresses.
func IsEVM(canonical string) bool {
	return canonical != Solana
}

// MarketID formats the token id used by the market-data API:
// "{address}-{suffix}". The address is canonicalized first.
func MarketID(address, blockchain string) (string, error) {
	c, err := Canonical(blockchain)
	if err != nil {
		return "", err
	}
	return NormalizeAddress(address, c) + "-" + marketSuffix[c], nil
}
