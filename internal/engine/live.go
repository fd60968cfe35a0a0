package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/chain"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/factors"
	"trading-experiment-lab/internal/listing"
	"trading-experiment-lab/internal/marketdata"
	"trading-experiment-lab/internal/tokenpool"
	"trading-experiment-lab/internal/trader"
	"trading-experiment-lab/internal/wallet"
)

// LiveAdapter executes on-chain. On-chain balance is ground truth for
// holdings; card allocation is in-memory truth and is preserved across every
// wallet rebuild.
type LiveAdapter struct {
	listings listing.Source
	prices   *marketdata.Client
	balances wallet.BalanceSource
	traders  *trader.Dispatcher
	denylist trader.Denylist

	walletAddress string
	blockchain    string
	verbose       bool
}

// Compile-time interface check.
var _ ModeAdapter = (*LiveAdapter)(nil)

// LiveOptions configures the live adapter.
type LiveOptions struct {
	Listings      listing.Source
	Prices        *marketdata.Client
	Balances      wallet.BalanceSource
	Traders       *trader.Dispatcher
	Denylist      trader.Denylist
	WalletAddress string
	Blockchain    string
	Verbose       bool
}

// NewLiveAdapter creates the on-chain adapter.
func NewLiveAdapter(opts LiveOptions) *LiveAdapter {
	return &LiveAdapter{
		listings:      opts.Listings,
		prices:        opts.Prices,
		balances:      opts.Balances,
		traders:       opts.Traders,
		denylist:      opts.Denylist,
		walletAddress: opts.WalletAddress,
		blockchain:    opts.Blockchain,
		verbose:       opts.Verbose,
	}
}

func (a *LiveAdapter) Mode() domain.Mode { return domain.ModeLive }

func (a *LiveAdapter) InitializeSources(_ context.Context) error { return nil }

func (a *LiveAdapter) RunLoop(ctx context.Context, e *Engine) error {
	return tickLoop(ctx, e)
}

// SyncHoldings pulls wallet balances and rebuilds the portfolio from them.
// Card allocations are snapshotted before the rebuild and restored for every
// token that reappears; a trade placed last round is visible as on-chain
// state this round.
func (a *LiveAdapter) SyncHoldings(ctx context.Context, e *Engine) error {
	balances, err := a.balances.GetWalletBalances(ctx, a.walletAddress, a.blockchain)
	if err != nil {
		return fmt.Errorf("get wallet balances: %w", err)
	}

	preserved := e.Pool().CardManagerStates()

	pm := e.Portfolios()
	pid := e.PortfolioID()
	now := e.Now()

	inWallet := make(map[string]bool, len(balances))
	for _, b := range balances {
		if b.TokenAddress == wallet.NativeAddress {
			if err := pm.SetAvailableBalance(pid, decimal.NewFromFloat(b.Balance)); err != nil {
				log.Printf("[live] set balance: %v", err)
			}
			continue
		}

		addr := chain.NormalizeAddress(b.TokenAddress, a.blockchain)
		inWallet[addr] = true
		if err := pm.UpdatePosition(pid, addr, b.Symbol,
			decimal.NewFromFloat(b.Balance), decimal.NewFromFloat(b.AveragePurchasePrice)); err != nil {
			log.Printf("[live] update position %s: %v", addr, err)
			continue
		}

		// A token holding implies bought status; new tokens enter the pool.
		t := e.Pool().Get(addr, a.blockchain)
		if t == nil {
			e.Pool().AddToken(tokenpool.AddTokenInput{
				Address:    b.TokenAddress,
				Symbol:     b.Symbol,
				Blockchain: a.blockchain,
				CreatedAt:  now,
			}, now)
			t = e.Pool().Get(addr, a.blockchain)
		}
		if t != nil && t.Status != domain.TokenBought && b.Balance > 0 {
			e.Pool().MarkAsBought(addr, a.blockchain, b.AveragePurchasePrice, now)
		}
	}

	// Positions the wallet no longer holds are closed.
	for _, addr := range pm.PositionAddresses(pid) {
		if !inWallet[addr] {
			if err := pm.UpdatePosition(pid, addr, "", decimal.Zero, decimal.Zero); err != nil {
				log.Printf("[live] clear position %s: %v", addr, err)
			}
		}
	}

	// Restore preserved card allocations; the rebuild must not reset them.
	for key, cm := range preserved {
		addr, bc, ok := chain.SplitTokenKey(key)
		if !ok {
			continue
		}
		if e.Pool().GetCardManager(addr, bc) == nil {
			e.Pool().SetCardManager(addr, bc, cm)
		}
	}
	return nil
}

func (a *LiveAdapter) Harvest(ctx context.Context) ([]listing.Listing, error) {
	return a.listings.Harvest(ctx)
}

func (a *LiveAdapter) RefreshPrices(ctx context.Context, _ *Engine, tokens []*domain.Token) (map[string]marketdata.Quote, error) {
	return fetchQuotes(ctx, a.prices, tokens)
}

func (a *LiveAdapter) Factors(_ *Engine, t *domain.Token, nowMs int64) map[string]float64 {
	return factors.Build(t, nowMs)
}

// ExecuteBuy runs the pre-buy safety checks, dispatches on-chain and applies
// the receipt's actuals to the portfolio.
func (a *LiveAdapter) ExecuteBuy(ctx context.Context, e *Engine, t *domain.Token, nativeAmount, price decimal.Decimal) ExecOutcome {
	if a.denylist != nil && t.CreatorAddress != "" {
		denied, err := a.denylist.IsDenylistedWallet(ctx, t.CreatorAddress)
		if err != nil {
			log.Printf("[live] denylist check failed for %s: %v", t.CreatorAddress, err)
		} else if denied {
			return ExecOutcome{Message: "creator address is denylisted"}
		}
	}

	// Keep the configured native reserve for gas.
	p, err := e.Portfolios().GetPortfolio(e.PortfolioID())
	if err != nil {
		return ExecOutcome{Message: err.Error()}
	}
	reserve := decimal.NewFromFloat(e.Config().Reserve())
	if p.AvailableBalance.Sub(nativeAmount).LessThan(reserve) {
		return ExecOutcome{Message: "insufficient funds: native reserve would be breached"}
	}

	res := a.traders.Buy(ctx, t.Address, nativeAmount.InexactFloat64(), a.traderOptions(e))
	if !res.Success {
		return ExecOutcome{Message: res.Err, TxHash: strPtrIfSet(res.TxHash)}
	}

	actualOut := decimal.NewFromFloat(res.ActualAmountOut)
	actualPrice := price
	if actualOut.Sign() > 0 {
		actualPrice = nativeAmount.Div(actualOut)
	}
	if pr := e.Portfolios().ExecuteTrade(e.PortfolioID(), t.Address, t.Symbol, domain.ActionBuy, actualOut, actualPrice); !pr.Success {
		log.Printf("[live] ledger update after buy failed: %s", pr.Message)
	}

	return ExecOutcome{
		Success:         true,
		ActualAmountOut: res.ActualAmountOut,
		ActualPrice:     actualPrice.InexactFloat64(),
		TxHash:          strPtrIfSet(res.TxHash),
		GasUsed:         floatPtrIfSet(res.GasUsed),
		WalletAddress:   &a.walletAddress,
		TraderUsed:      res.TraderUsed,
	}
}

// ExecuteSell dispatches on-chain and books the actual native received.
func (a *LiveAdapter) ExecuteSell(ctx context.Context, e *Engine, t *domain.Token, tokenAmount, price decimal.Decimal) ExecOutcome {
	res := a.traders.Sell(ctx, t.Address, tokenAmount.InexactFloat64(), a.traderOptions(e))
	if !res.Success {
		return ExecOutcome{Message: res.Err, TxHash: strPtrIfSet(res.TxHash)}
	}

	actualReceived := decimal.NewFromFloat(res.ActualReceived)
	actualPrice := price
	if tokenAmount.Sign() > 0 && actualReceived.Sign() > 0 {
		actualPrice = actualReceived.Div(tokenAmount)
	}
	if pr := e.Portfolios().ExecuteTrade(e.PortfolioID(), t.Address, t.Symbol, domain.ActionSell, tokenAmount, actualPrice); !pr.Success {
		log.Printf("[live] ledger update after sell failed: %s", pr.Message)
	}

	return ExecOutcome{
		Success:        true,
		ActualReceived: res.ActualReceived,
		ActualPrice:    actualPrice.InexactFloat64(),
		TxHash:         strPtrIfSet(res.TxHash),
		GasUsed:        floatPtrIfSet(res.GasUsed),
		WalletAddress:  &a.walletAddress,
		TraderUsed:     res.TraderUsed,
	}
}

func (a *LiveAdapter) traderOptions(e *Engine) trader.Options {
	cfg := e.Config()
	return trader.Options{
		SlippageTolerance: cfg.MaxSlippage,
		GasPrice:          cfg.MaxGasPrice,
		GasLimit:          cfg.MaxGasLimit,
	}
}

// ShouldRecordTimeSeries is true: live rounds feed later backtests.
func (a *LiveAdapter) ShouldRecordTimeSeries() bool { return true }

func (a *LiveAdapter) Close() error {
	if a.listings != nil {
		return a.listings.Close()
	}
	return nil
}

func strPtrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatPtrIfSet(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
