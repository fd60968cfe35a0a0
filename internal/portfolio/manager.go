// Package portfolio is the per-experiment financial ledger: native cash plus
// per-token positions with FIFO cost basis and realized/unrealized P&L.
package portfolio

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/domain"
)

// Manager errors.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrPositionNotFound  = errors.New("position not found")
)

// Lot is one FIFO entry: an amount of tokens and the native cost paid for it.
type Lot struct {
	Amount decimal.Decimal
	Cost   decimal.Decimal
}

// Position is the per-token state inside a portfolio.
type Position struct {
	TokenAddress         string
	Symbol               string
	Lots                 []Lot
	TotalAmount          decimal.Decimal
	AveragePurchasePrice decimal.Decimal
	CurrentPrice         decimal.Decimal
	RealizedPnL          decimal.Decimal

	// lotsStale marks a position whose aggregates were resynced from an
	// external source without rebuilding the lot queue. The queue is
	// reconstructed lazily as one synthetic lot on the next trade.
	lotsStale bool
}

// Value returns amount × current price.
func (p *Position) Value() decimal.Decimal {
	return p.TotalAmount.Mul(p.CurrentPrice)
}

// UnrealizedPnL returns (current − average purchase) × amount.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.AveragePurchasePrice).Mul(p.TotalAmount)
}

// Portfolio holds cash and positions for one experiment.
type Portfolio struct {
	ID               string
	AvailableBalance decimal.Decimal
	InitialCapital   decimal.Decimal
	Positions        map[string]*Position // keyed by canonical token address
}

// Result is the uniform outcome of an executor operation. Errors are
// reported here instead of being thrown across the scheduler loop.
type Result struct {
	Success bool
	Message string
}

// Manager owns all portfolios of a process.
type Manager struct {
	portfolios map[string]*Portfolio
}

// NewManager creates an empty portfolio manager.
func NewManager() *Manager {
	return &Manager{portfolios: make(map[string]*Portfolio)}
}

// CreatePortfolio creates a portfolio funded with the given native capital
// and returns its id.
func (m *Manager) CreatePortfolio(initialNative decimal.Decimal) string {
	id := domain.NewID()
	m.portfolios[id] = &Portfolio{
		ID:               id,
		AvailableBalance: initialNative,
		InitialCapital:   initialNative,
		Positions:        make(map[string]*Position),
	}
	return id
}

// GetPortfolio returns the full portfolio state.
func (m *Manager) GetPortfolio(id string) (*Portfolio, error) {
	p, ok := m.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPortfolioNotFound, id)
	}
	return p, nil
}

// UpdatePosition is the idempotent "set" used by holding-sync paths. It
// replaces the position's aggregate view without touching the FIFO queue;
// the queue is rebuilt lazily on the next trade from the declared aggregate
// cost. A zero amount removes the position.
func (m *Manager) UpdatePosition(portfolioID, address, symbol string, amount, avgPrice decimal.Decimal) error {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	if amount.IsZero() {
		delete(p.Positions, address)
		return nil
	}
	pos, ok := p.Positions[address]
	if !ok {
		pos = &Position{TokenAddress: address, Symbol: symbol}
		p.Positions[address] = pos
	}
	pos.TotalAmount = amount
	pos.AveragePurchasePrice = avgPrice
	pos.lotsStale = true
	if symbol != "" {
		pos.Symbol = symbol
	}
	return nil
}

// SetAvailableBalance overwrites the cash balance from an external source of
// truth. Used only by live holding sync.
func (m *Manager) SetAvailableBalance(portfolioID string, balance decimal.Decimal) error {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	p.AvailableBalance = balance
	return nil
}

// PositionAddresses returns the addresses of all open positions.
func (m *Manager) PositionAddresses(portfolioID string) []string {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(p.Positions))
	for addr := range p.Positions {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// MarkPrice updates the valuation price of a position if it exists.
func (m *Manager) MarkPrice(portfolioID, address string, price decimal.Decimal) {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return
	}
	if pos, ok := p.Positions[address]; ok {
		pos.CurrentPrice = price
	}
}

// ExecuteTrade applies a buy or sell to the ledger. It is the only mutator
// within a tick; callers must not read-then-write in two separate steps.
func (m *Manager) ExecuteTrade(portfolioID, address, symbol string, action domain.TradeAction, tokenAmount, unitPrice decimal.Decimal) Result {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("portfolio %s not found", portfolioID)}
	}
	if tokenAmount.Sign() <= 0 {
		return Result{Success: false, Message: "token amount must be positive"}
	}
	switch action {
	case domain.ActionBuy:
		return m.executeBuy(p, address, symbol, tokenAmount, unitPrice)
	case domain.ActionSell:
		return m.executeSell(p, address, tokenAmount, unitPrice)
	default:
		return Result{Success: false, Message: fmt.Sprintf("unknown action %q", action)}
	}
}

func (m *Manager) executeBuy(p *Portfolio, address, symbol string, amount, price decimal.Decimal) Result {
	cost := amount.Mul(price)
	if p.AvailableBalance.LessThan(cost) {
		return Result{Success: false, Message: "insufficient funds"}
	}

	pos, ok := p.Positions[address]
	if !ok {
		pos = &Position{TokenAddress: address, Symbol: symbol}
		p.Positions[address] = pos
	}
	pos.rebuildLotsIfStale()

	p.AvailableBalance = p.AvailableBalance.Sub(cost)
	pos.Lots = append(pos.Lots, Lot{Amount: amount, Cost: cost})
	pos.TotalAmount = pos.TotalAmount.Add(amount)
	pos.CurrentPrice = price
	pos.recomputeAverage()
	return Result{Success: true}
}

func (m *Manager) executeSell(p *Portfolio, address string, amount, price decimal.Decimal) Result {
	pos, ok := p.Positions[address]
	if !ok {
		return Result{Success: false, Message: "no position to sell"}
	}
	if pos.TotalAmount.LessThan(amount) {
		return Result{Success: false, Message: fmt.Sprintf(
			"insufficient position: have %s, sell %s", pos.TotalAmount, amount)}
	}
	pos.rebuildLotsIfStale()

	// Consume from the head of the FIFO queue; the head lot may be
	// consumed partially.
	remaining := amount
	costOfSold := decimal.Zero
	for remaining.Sign() > 0 && len(pos.Lots) > 0 {
		head := &pos.Lots[0]
		if head.Amount.LessThanOrEqual(remaining) {
			costOfSold = costOfSold.Add(head.Cost)
			remaining = remaining.Sub(head.Amount)
			pos.Lots = pos.Lots[1:]
			continue
		}
		portion := remaining.Div(head.Amount)
		portionCost := head.Cost.Mul(portion)
		costOfSold = costOfSold.Add(portionCost)
		head.Cost = head.Cost.Sub(portionCost)
		head.Amount = head.Amount.Sub(remaining)
		remaining = decimal.Zero
	}

	proceeds := amount.Mul(price)
	pos.RealizedPnL = pos.RealizedPnL.Add(proceeds.Sub(costOfSold))
	pos.TotalAmount = pos.TotalAmount.Sub(amount)
	pos.CurrentPrice = price
	p.AvailableBalance = p.AvailableBalance.Add(proceeds)

	if pos.TotalAmount.IsZero() {
		pos.Lots = nil
		pos.AveragePurchasePrice = decimal.Zero
	} else {
		pos.recomputeAverage()
	}
	return Result{Success: true}
}

// rebuildLotsIfStale reconstructs the FIFO queue as a single synthetic lot
// from the declared aggregates after an UpdatePosition resync.
func (p *Position) rebuildLotsIfStale() {
	if !p.lotsStale {
		return
	}
	p.Lots = nil
	if p.TotalAmount.Sign() > 0 {
		p.Lots = []Lot{{
			Amount: p.TotalAmount,
			Cost:   p.TotalAmount.Mul(p.AveragePurchasePrice),
		}}
	}
	p.lotsStale = false
}

func (p *Position) recomputeAverage() {
	totalCost := decimal.Zero
	totalAmount := decimal.Zero
	for _, lot := range p.Lots {
		totalCost = totalCost.Add(lot.Cost)
		totalAmount = totalAmount.Add(lot.Amount)
	}
	if totalAmount.Sign() > 0 {
		p.AveragePurchasePrice = totalCost.Div(totalAmount)
	}
}

// Totals returns (totalValue, totalInvested, totalPnL) for a portfolio.
// totalValue includes cash; totalInvested is the cost basis of open lots.
func (m *Manager) Totals(portfolioID string) (totalValue, totalInvested, totalPnL decimal.Decimal, err error) {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	totalValue = p.AvailableBalance
	for _, pos := range p.Positions {
		totalValue = totalValue.Add(pos.Value())
		totalInvested = totalInvested.Add(pos.TotalAmount.Mul(pos.AveragePurchasePrice))
	}
	totalPnL = totalValue.Sub(p.InitialCapital)
	return totalValue, totalInvested, totalPnL, nil
}

// Snapshot builds the persisted per-round view of a portfolio.
func (m *Manager) Snapshot(portfolioID, experimentID string, loopCount, timestampMs int64) (*domain.PortfolioSnapshot, error) {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioID)
	}
	snap := &domain.PortfolioSnapshot{
		ID:           domain.NewID(),
		ExperimentID: experimentID,
		LoopCount:    loopCount,
		Timestamp:    timestampMs,
	}
	addresses := make([]string, 0, len(p.Positions))
	for addr := range p.Positions {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	totalValue := p.AvailableBalance
	realized := decimal.Zero
	unrealized := decimal.Zero
	invested := decimal.Zero
	for _, addr := range addresses {
		pos := p.Positions[addr]
		totalValue = totalValue.Add(pos.Value())
		realized = realized.Add(pos.RealizedPnL)
		unrealized = unrealized.Add(pos.UnrealizedPnL())
		invested = invested.Add(pos.TotalAmount.Mul(pos.AveragePurchasePrice))
		snap.Positions = append(snap.Positions, domain.PositionSnapshot{
			TokenAddress:         pos.TokenAddress,
			Symbol:               pos.Symbol,
			Amount:               pos.TotalAmount.InexactFloat64(),
			AveragePurchasePrice: pos.AveragePurchasePrice.InexactFloat64(),
			CurrentPrice:         pos.CurrentPrice.InexactFloat64(),
			Value:                pos.Value().InexactFloat64(),
			UnrealizedPnL:        pos.UnrealizedPnL().InexactFloat64(),
			RealizedPnL:          pos.RealizedPnL.InexactFloat64(),
		})
	}
	snap.AvailableBalance = p.AvailableBalance.InexactFloat64()
	snap.TotalValue = totalValue.InexactFloat64()
	snap.TotalInvested = invested.InexactFloat64()
	snap.TotalPnL = totalValue.Sub(p.InitialCapital).InexactFloat64()
	snap.RealizedPnL = realized.InexactFloat64()
	snap.UnrealizedPnL = unrealized.InexactFloat64()
	return snap, nil
}

// PositionAmount returns the current amount held for a token, zero if none.
func (m *Manager) PositionAmount(portfolioID, address string) decimal.Decimal {
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return decimal.Zero
	}
	pos, ok := p.Positions[address]
	if !ok {
		return decimal.Zero
	}
	return pos.TotalAmount
}
