// Package cards discretizes per-token capital into indivisible "cards".
// The discretization is the only mechanism keeping the three execution modes
// from diverging in sizing policy when holdings are rebuilt from external
// ground truth.
package cards

import (
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// Allocation bounds.
const (
	MinTotalCards = 2
	MaxTotalCards = 36

	DefaultTotalCards       = 4
	DefaultMinCardsForTrade = 1
)

// Configuration errors.
var (
	ErrTotalCardsOutOfRange = errors.New("totalCards must be in [2, 36]")
	ErrAllocationMismatch   = errors.New("allocation does not sum to totalCards")
	ErrNegativeAllocation   = errors.New("allocation counts must be >= 0")
)

// Manager holds the discretized allocation state for one token.
// Invariant: nativeCards + tokenCards == totalCards, both >= 0.
type Manager struct {
	totalCards       int
	perCardNative    decimal.Decimal // native-currency value of one card
	nativeCards      int
	tokenCards       int
	minCardsForTrade int
}

// Options configures a new Manager.
type Options struct {
	TotalCards       int
	PerCardNative    decimal.Decimal
	NativeCards      int // initial native-side allocation
	TokenCards       int // initial token-side allocation
	MinCardsForTrade int // defaults to 1
}

// New creates a Manager with the given initial split.
func New(opts Options) (*Manager, error) {
	if opts.TotalCards < MinTotalCards || opts.TotalCards > MaxTotalCards {
		return nil, fmt.Errorf("%w: got %d", ErrTotalCardsOutOfRange, opts.TotalCards)
	}
	if opts.NativeCards < 0 || opts.TokenCards < 0 {
		return nil, ErrNegativeAllocation
	}
	if opts.NativeCards+opts.TokenCards != opts.TotalCards {
		return nil, fmt.Errorf("%w: %d + %d != %d",
			ErrAllocationMismatch, opts.NativeCards, opts.TokenCards, opts.TotalCards)
	}
	min := opts.MinCardsForTrade
	if min <= 0 {
		min = DefaultMinCardsForTrade
	}
	return &Manager{
		totalCards:       opts.TotalCards,
		perCardNative:    opts.PerCardNative,
		nativeCards:      opts.NativeCards,
		tokenCards:       opts.TokenCards,
		minCardsForTrade: min,
	}, nil
}

// NewDefault creates a Manager with every card on the native side.
func NewDefault(perCardNative decimal.Decimal) *Manager {
	m, _ := New(Options{
		TotalCards:    DefaultTotalCards,
		PerCardNative: perCardNative,
		NativeCards:   DefaultTotalCards,
	})
	return m
}

// TotalCards returns the fixed card count.
func (m *Manager) TotalCards() int { return m.totalCards }

// NativeCards returns the native-side card count.
func (m *Manager) NativeCards() int { return m.nativeCards }

// TokenCards returns the token-side card count.
func (m *Manager) TokenCards() int { return m.tokenCards }

// PerCardNative returns the native value of one card.
func (m *Manager) PerCardNative() decimal.Decimal { return m.perCardNative }

// CanTrade reports whether the relevant side holds enough cards for a trade
// in the given direction ("buy" consumes native cards, "sell" token cards).
func (m *Manager) CanTrade(buy bool) bool {
	if buy {
		return m.nativeCards >= m.minCardsForTrade
	}
	return m.tokenCards >= m.minCardsForTrade
}

// CalculateBuyAmount returns the native amount for buying the requested
// number of cards, clamped to the available native cards. Returns zero when
// no native cards remain.
func (m *Manager) CalculateBuyAmount(cards int) decimal.Decimal {
	if m.nativeCards <= 0 {
		log.Printf("[cards] buy requested with no native cards available")
		return decimal.Zero
	}
	if cards > m.nativeCards {
		cards = m.nativeCards
	}
	if cards <= 0 {
		return decimal.Zero
	}
	return m.perCardNative.Mul(decimal.NewFromInt(int64(cards)))
}

// CalculateSellAmount returns the token amount to sell for the requested
// cards: tokenBalance × min(cards, tokenCards) / tokenCards. When all is
// true the full balance is returned.
func (m *Manager) CalculateSellAmount(tokenBalance decimal.Decimal, cards int, all bool) decimal.Decimal {
	if all {
		return tokenBalance
	}
	if m.tokenCards <= 0 {
		log.Printf("[cards] sell requested with no token cards available")
		return decimal.Zero
	}
	if cards > m.tokenCards {
		cards = m.tokenCards
	}
	if cards <= 0 {
		return decimal.Zero
	}
	return tokenBalance.
		Mul(decimal.NewFromInt(int64(cards))).
		Div(decimal.NewFromInt(int64(m.tokenCards)))
}

// AfterBuy transfers cards native → token after a successful buy. A request
// exceeding the native side clamps to what is available and warns.
// Returns the number of cards actually transferred.
func (m *Manager) AfterBuy(cards int) int {
	if cards > m.nativeCards {
		log.Printf("[cards] buy transfer clamped: requested %d, native side has %d", cards, m.nativeCards)
		cards = m.nativeCards
	}
	if cards < 0 {
		cards = 0
	}
	m.nativeCards -= cards
	m.tokenCards += cards
	return cards
}

// AfterSell transfers cards token → native after a successful sell. When all
// is true every token card moves back. Clamps and warns on excess requests.
// Returns the number of cards actually transferred.
func (m *Manager) AfterSell(cards int, all bool) int {
	if all {
		cards = m.tokenCards
	}
	if cards > m.tokenCards {
		log.Printf("[cards] sell transfer clamped: requested %d, token side has %d", cards, m.tokenCards)
		cards = m.tokenCards
	}
	if cards < 0 {
		cards = 0
	}
	m.tokenCards -= cards
	m.nativeCards += cards
	return cards
}

// SetInitialAllocation reconfigures the split at runtime. Rejects splits
// that do not sum to totalCards.
func (m *Manager) SetInitialAllocation(native, token int) error {
	if native < 0 || token < 0 {
		return ErrNegativeAllocation
	}
	if native+token != m.totalCards {
		return fmt.Errorf("%w: %d + %d != %d", ErrAllocationMismatch, native, token, m.totalCards)
	}
	m.nativeCards = native
	m.tokenCards = token
	return nil
}

// State returns the current (native, token) split.
func (m *Manager) State() (native, token int) {
	return m.nativeCards, m.tokenCards
}
