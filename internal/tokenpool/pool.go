// Package tokenpool maintains the set of monitored tokens and their mutable
// per-token state: price history, market metrics, card allocation and
// strategy execution counters.
package tokenpool

import (
	"log"
	"sort"
	"sync"

	"trading-experiment-lab/internal/cards"
	"trading-experiment-lab/internal/chain"
	"trading-experiment-lab/internal/domain"
)

// maxPriceHistory caps the retained price tail used for trend factors.
const maxPriceHistory = 120

// AddTokenInput describes a token entering the pool.
type AddTokenInput struct {
	Address        string
	Symbol         string
	Blockchain     string
	CreatedAt      int64 // listing time (ms)
	CurrentPrice   float64
	CreatorAddress string
}

// MarketExtras carries the per-refresh market metrics.
type MarketExtras struct {
	TxVolumeU24h float64
	Holders      int
	TVL          float64
	FDV          float64
	MarketCap    float64
}

type entry struct {
	token *domain.Token
	cards *cards.Manager
}

// Pool is the set of observed tokens, keyed by canonical (address,
// blockchain). The scheduler is the only mutator; the mutex guards
// concurrent read access from metrics/HTTP surfaces.
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{entries: make(map[string]*entry)}
}

// AddToken inserts a token if (address, blockchain) is not already present.
// The insert is idempotent: an existing entry is left untouched. The token
// starts in monitoring status with collection time and price recorded.
func (p *Pool) AddToken(in AddTokenInput, nowMs int64) bool {
	key := chain.TokenKey(in.Address, in.Blockchain)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[key]; exists {
		return false
	}
	canonical, err := chain.Canonical(in.Blockchain)
	if err != nil {
		canonical = in.Blockchain
	}
	t := &domain.Token{
		Address:         chain.NormalizeAddress(in.Address, in.Blockchain),
		Symbol:          in.Symbol,
		Blockchain:      canonical,
		CreatedAt:       in.CreatedAt,
		CollectedAt:     nowMs,
		CollectionPrice: in.CurrentPrice,
		LaunchPrice:     in.CurrentPrice,
		CurrentPrice:    in.CurrentPrice,
		HighestPrice:    in.CurrentPrice,
		HighestPriceAt:  nowMs,
		CreatorAddress:  in.CreatorAddress,
		Status:          domain.TokenMonitoring,
		Executions:      make(map[string]*domain.StrategyExecution),
	}
	if in.CurrentPrice > 0 {
		t.PriceHistory = append(t.PriceHistory, domain.PricePoint{Price: in.CurrentPrice, TimestampMs: nowMs})
	}
	p.entries[key] = &entry{token: t}
	return true
}

// Get returns the token for (address, blockchain), nil if absent.
func (p *Pool) Get(address, blockchain string) *domain.Token {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return nil
	}
	return e.token
}

// UpdatePrice updates the current price, market metrics and price history.
// The high-water mark only moves up.
func (p *Pool) UpdatePrice(address, blockchain string, price float64, tsMs int64, extras MarketExtras) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return
	}
	t := e.token
	t.CurrentPrice = price
	if price > t.HighestPrice {
		t.HighestPrice = price
		t.HighestPriceAt = tsMs
	}
	t.TxVolumeU24h = extras.TxVolumeU24h
	t.Holders = extras.Holders
	t.TVL = extras.TVL
	t.FDV = extras.FDV
	t.MarketCap = extras.MarketCap

	t.PriceHistory = append(t.PriceHistory, domain.PricePoint{Price: price, TimestampMs: tsMs})
	if len(t.PriceHistory) > maxPriceHistory {
		t.PriceHistory = t.PriceHistory[len(t.PriceHistory)-maxPriceHistory:]
	}
}

// MarkAsBought transitions a token to bought and stamps the buy price/time.
func (p *Pool) MarkAsBought(address, blockchain string, buyPrice float64, buyTimeMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return
	}
	e.token.Status = domain.TokenBought
	e.token.BuyPrice = buyPrice
	e.token.BoughtAt = buyTimeMs
}

// MarkAsSold transitions bought → monitoring after a full sell. Partial
// sells keep the token bought; callers invoke this only on a strict-zero
// remaining position.
func (p *Pool) MarkAsSold(address, blockchain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return
	}
	if e.token.Status != domain.TokenBought {
		log.Printf("[tokenpool] sold transition on non-bought token %s (%s)", address, e.token.Status)
	}
	e.token.Status = domain.TokenMonitoring
	e.token.BuyPrice = 0
	e.token.BoughtAt = 0
}

// RecordStrategyExecution increments the per-strategy counter and stamps the
// last-execution time. Called only after a dispatch succeeds.
func (p *Pool) RecordStrategyExecution(address, blockchain, strategyID string, nowMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return
	}
	t := e.token
	if t.Executions == nil {
		t.Executions = make(map[string]*domain.StrategyExecution)
	}
	ex, ok := t.Executions[strategyID]
	if !ok {
		ex = &domain.StrategyExecution{}
		t.Executions[strategyID] = ex
	}
	ex.Count++
	ex.LastExecutionAt = nowMs
}

// GetMonitoringTokens returns every token still observed: monitoring plus
// bought (bought tokens stay observed for sell-side evaluation). Order is
// stable: collection time ascending, then key.
func (p *Pool) GetMonitoringTokens() []*domain.Token {
	p.mu.RLock()
	defer p.mu.RUnlock()

	type keyed struct {
		key string
		t   *domain.Token
	}
	var out []keyed
	for k, e := range p.entries {
		if e.token.Status == domain.TokenMonitoring || e.token.Status == domain.TokenBought {
			out = append(out, keyed{key: k, t: e.token})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].t.CollectedAt != out[j].t.CollectedAt {
			return out[i].t.CollectedAt < out[j].t.CollectedAt
		}
		return out[i].key < out[j].key
	})
	tokens := make([]*domain.Token, len(out))
	for i, k := range out {
		tokens[i] = k.t
	}
	return tokens
}

// Size returns the number of pooled tokens.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Cleanup evicts tokens pooled longer than ttlMs. Bought tokens are never
// evicted by age; an open position must be closed first.
// Returns the evicted count.
func (p *Pool) Cleanup(nowMs, ttlMs int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for k, e := range p.entries {
		if e.token.Status == domain.TokenBought {
			continue
		}
		if nowMs-e.token.CollectedAt > ttlMs {
			e.token.Status = domain.TokenInactive
			delete(p.entries, k)
			removed++
		}
	}
	return removed
}

// CleanupInactive evicts monitoring tokens that never generated a buy
// within maxIdleMs of being pooled.
func (p *Pool) CleanupInactive(nowMs, maxIdleMs int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for k, e := range p.entries {
		t := e.token
		if t.Status != domain.TokenMonitoring {
			continue
		}
		if t.BoughtAt == 0 && len(t.Executions) == 0 && nowMs-t.CollectedAt > maxIdleMs {
			t.Status = domain.TokenInactive
			delete(p.entries, k)
			removed++
		}
	}
	return removed
}

// GetCardManager returns the card manager for a token, nil if unset.
func (p *Pool) GetCardManager(address, blockchain string) *cards.Manager {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return nil
	}
	return e.cards
}

// SetCardManager attaches a card manager to a token.
func (p *Pool) SetCardManager(address, blockchain string, m *cards.Manager) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[chain.TokenKey(address, blockchain)]
	if !ok {
		return
	}
	e.cards = m
}

// CardManagerStates snapshots every attached card manager by token key.
// Live holding sync uses this to preserve allocations across a rebuild.
func (p *Pool) CardManagerStates() map[string]*cards.Manager {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]*cards.Manager)
	for k, e := range p.entries {
		if e.cards != nil {
			out[k] = e.cards
		}
	}
	return out
}
