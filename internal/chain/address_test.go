package chain

import (
	"errors"
	"testing"
)

// A real-shaped Solana mint (32 bytes in Base58) and an EVM address.
const (
	solanaMint = "So11111111111111111111111111111111111111112"
	evmMixed   = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	evmLower   = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func TestCanonical_Aliases(t *testing.T) {
	cases := map[string]string{
		"eth":      Ethereum,
		"ethereum": Ethereum,
		"ETH":      Ethereum,
		" bsc ":    BSC,
		"bnb":      BSC,
		"binance":  BSC,
		"sol":      Solana,
		"solana":   Solana,
		"base":     Base,
	}
	for in, want := range cases {
		got, err := Canonical(in)
		if err != nil {
			t.Errorf("Canonical(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Canonical(%q): got %s, want %s", in, got, want)
		}
	}
}

func TestCanonical_Unknown(t *testing.T) {
	_, err := Canonical("dogecoin")
	if !errors.Is(err, ErrUnknownBlockchain) {
		t.Errorf("expected ErrUnknownBlockchain, got %v", err)
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress(evmMixed, "ethereum"); got != evmLower {
		t.Errorf("EVM address not lowercased: %s", got)
	}
	// Solana is case-significant and must pass through verbatim.
	if got := NormalizeAddress(solanaMint, "solana"); got != solanaMint {
		t.Errorf("Solana address mutated: %s", got)
	}
}

func TestValidateAddress(t *testing.T) {
	if err := ValidateAddress(evmMixed, "eth"); err != nil {
		t.Errorf("valid EVM address rejected: %v", err)
	}
	if err := ValidateAddress(solanaMint, "sol"); err != nil {
		t.Errorf("valid Solana address rejected: %v", err)
	}
	if err := ValidateAddress("not-an-address", "ethereum"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if err := ValidateAddress("tooShort", "solana"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestTokenKey_CollapsesAliasesAndCase(t *testing.T) {
	a := TokenKey(evmMixed, "eth")
	b := TokenKey(evmLower, "ethereum")
	if a != b {
		t.Errorf("keys differ: %s vs %s", a, b)
	}

	// Distinct chains never collide.
	if TokenKey(evmLower, "ethereum") == TokenKey(evmLower, "base") {
		t.Error("keys collide across blockchains")
	}
}

func TestSplitTokenKey(t *testing.T) {
	key := TokenKey(evmMixed, "eth")
	addr, bc, ok := SplitTokenKey(key)
	if !ok {
		t.Fatalf("SplitTokenKey(%q) failed", key)
	}
	if addr != evmLower || bc != Ethereum {
		t.Errorf("got (%s, %s), want (%s, %s)", addr, bc, evmLower, Ethereum)
	}

	if _, _, ok := SplitTokenKey("no-separator"); ok {
		t.Error("expected failure on key without separator")
	}
}

func TestMarketID(t *testing.T) {
	id, err := MarketID(evmMixed, "ethereum")
	if err != nil {
		t.Fatalf("MarketID failed: %v", err)
	}
	if id != evmLower+"-eth" {
		t.Errorf("got %s, want %s-eth", id, evmLower)
	}

	id, err = MarketID(solanaMint, "sol")
	if err != nil {
		t.Fatalf("MarketID failed: %v", err)
	}
	if id != solanaMint+"-solana" {
		t.Errorf("got %s, want %s-solana", id, solanaMint)
	}

	if _, err := MarketID(evmMixed, "dogecoin"); err == nil {
		t.Error("expected error for unknown blockchain")
	}
}
