package chain

import (
	"errors"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned when an address fails validation for its
// blockchain's format.
var ErrInvalidAddress = errors.New("invalid token address")

// NormalizeAddress collapses an address to its canonical key form.
// EVM addresses are case-insensitive and lowercased; Solana addresses are
// Base58 and case-significant, so they pass through verbatim.
func NormalizeAddress(address, blockchain string) string {
	c, err := Canonical(blockchain)
	if err != nil {
		c = blockchain
	}
	if c == Solana {
		return address
	}
	return strings.ToLower(address)
}

// ValidateAddress checks address shape for the given blockchain.
func ValidateAddress(address, blockchain string) error {
	c, err := Canonical(blockchain)
	if err != nil {
		return err
	}
	if c == Solana {
		raw, err := base58.Decode(address)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("%w: solana address must decode to 32 bytes, got %d", ErrInvalidAddress, len(raw))
		}
		return nil
	}
	if !ethcommon.IsHexAddress(address) {
		return fmt.Errorf("%w: %q is not a hex address", ErrInvalidAddress, address)
	}
	return nil
}

// TokenKey builds the canonical composite key for (address, blockchain).
func TokenKey(address, blockchain string) string {
	c, err := Canonical(blockchain)
	if err != nil {
		c = blockchain
	}
	return NormalizeAddress(address, c) + "|" + c
}

// SplitTokenKey reverses TokenKey. Solana addresses contain no "|" so the
// last separator is unambiguous.
func SplitTokenKey(key string) (address, blockchain string, ok bool) {
	i := strings.LastIndexByte(key, '|')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
