// Package engine implements the mode-agnostic trading scheduler: one
// cooperative loop per experiment driving sync, harvest, price refresh,
// strategy evaluation, dispatch, cleanup and snapshotting in strict order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/cards"
	"trading-experiment-lab/internal/chain"
	"trading-experiment-lab/internal/config"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/factors"
	"trading-experiment-lab/internal/observability"
	"trading-experiment-lab/internal/portfolio"
	"trading-experiment-lab/internal/storage"
	"trading-experiment-lab/internal/strategy"
	"trading-experiment-lab/internal/tokenpool"
)

// ErrBacktestSourceMissing is returned when the source experiment has no
// time-series to replay.
var ErrBacktestSourceMissing = errors.New("backtest source experiment has no time series")

// Stores groups the persistence collaborators the engine writes to.
type Stores struct {
	Experiments storage.ExperimentStore
	Tokens      storage.TokenStore
	Signals     storage.SignalStore
	Trades      storage.TradeStore
	Snapshots   storage.SnapshotStore
	Runtime     storage.RuntimeMetricStore
	TimeSeries  storage.TimeSeriesStore
}

// Options configures an Engine.
type Options struct {
	Experiment *domain.Experiment
	Config     *config.ExperimentConfig
	Adapter    ModeAdapter
	Stores     Stores
	Metrics    *observability.Metrics

	TickInterval    time.Duration
	TokenTTL        time.Duration
	InactiveTimeout time.Duration
	Verbose         bool

	// Clock returns the current time in Unix milliseconds. Injectable for
	// tests and overridden by backtest replay. Defaults to wall time.
	Clock func() int64
}

// Engine drives one experiment. A single goroutine runs the pipeline; no two
// pipelines may run for one experiment.
type Engine struct {
	experiment *domain.Experiment
	cfg        *config.ExperimentConfig
	adapter    ModeAdapter
	stores     Stores
	metrics    *observability.Metrics

	pool        *tokenpool.Pool
	portfolios  *portfolio.Manager
	portfolioID string
	strategies  *strategy.Engine

	tickInterval    time.Duration
	tokenTTL        time.Duration
	inactiveTimeout time.Duration
	verbose         bool
	clock           func() int64

	loopCount int64
}

// New builds an engine for the experiment: parses nothing itself (Config is
// already validated), creates the portfolio, and loads the strategy set.
// Live mode requires explicit strategies; virtual and backtest fall back to
// the defaults.
func New(opts Options) (*Engine, error) {
	if opts.Experiment == nil || opts.Config == nil || opts.Adapter == nil {
		return nil, errors.New("experiment, config and adapter are required")
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}
	tick := opts.TickInterval
	if tick == 0 {
		tick = 10 * time.Second
	}
	ttl := opts.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	idle := opts.InactiveTimeout
	if idle == 0 {
		idle = 2 * time.Hour
	}

	e := &Engine{
		experiment:      opts.Experiment,
		cfg:             opts.Config,
		adapter:         opts.Adapter,
		stores:          opts.Stores,
		metrics:         opts.Metrics,
		pool:            tokenpool.New(),
		portfolios:      portfolio.NewManager(),
		tickInterval:    tick,
		tokenTTL:        ttl,
		inactiveTimeout: idle,
		verbose:         opts.Verbose,
		clock:           clock,
	}
	e.portfolioID = e.portfolios.CreatePortfolio(decimal.NewFromFloat(opts.Config.InitialCapital))

	defs := opts.Config.Strategies()
	if len(defs) == 0 {
		if opts.Experiment.Mode == domain.ModeLive {
			return nil, fmt.Errorf("%w: live mode requires explicit strategiesConfig", config.ErrConfig)
		}
		for _, d := range strategy.DefaultStrategies() {
			d := d
			defs = append(defs, &d)
		}
	}
	flat := make([]domain.StrategyDefinition, 0, len(defs))
	for _, d := range defs {
		flat = append(flat, *d)
	}
	e.strategies = strategy.NewEngine(opts.Verbose)
	if err := e.strategies.Load(flat, factors.IDs()); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	return e, nil
}

// Pool exposes the token pool to adapters.
func (e *Engine) Pool() *tokenpool.Pool { return e.pool }

// Portfolios exposes the portfolio manager to adapters.
func (e *Engine) Portfolios() *portfolio.Manager { return e.portfolios }

// PortfolioID returns the experiment's portfolio id.
func (e *Engine) PortfolioID() string { return e.portfolioID }

// Experiment returns the run descriptor.
func (e *Engine) Experiment() *domain.Experiment { return e.experiment }

// Config returns the parsed experiment config.
func (e *Engine) Config() *config.ExperimentConfig { return e.cfg }

// LoopCount returns the current round number.
func (e *Engine) LoopCount() int64 { return e.loopCount }

// SetClock overrides the time source. Backtest replay pins it to the
// recorded round timestamps.
func (e *Engine) SetClock(clock func() int64) { e.clock = clock }

// Now returns the scheduler's current time in Unix milliseconds.
func (e *Engine) Now() int64 { return e.clock() }

// Run executes the experiment to a terminal state. Status transitions:
// initializing → running on start, then completed (backtest end of data),
// stopped (cancel) or failed (loop error). Run always writes the terminal
// status and emits a final snapshot.
func (e *Engine) Run(ctx context.Context) error {
	startedAt := e.clock()
	if err := e.stores.Experiments.UpdateStatus(ctx, e.experiment.ID, domain.ExperimentRunning, &startedAt, nil); err != nil {
		return fmt.Errorf("mark experiment running: %w", err)
	}
	e.experiment.Status = domain.ExperimentRunning
	e.experiment.StartedAt = &startedAt

	if err := e.adapter.InitializeSources(ctx); err != nil {
		e.finish(domain.ExperimentFailed)
		return fmt.Errorf("initialize sources: %w", err)
	}
	defer e.adapter.Close()

	loopErr := e.adapter.RunLoop(ctx, e)

	// Final snapshot regardless of how the loop ended.
	e.snapshotPortfolio(e.clock())

	switch {
	case loopErr != nil && !errors.Is(loopErr, context.Canceled):
		e.finish(domain.ExperimentFailed)
		return loopErr
	case loopErr != nil:
		// Cancelled mid-replay or mid-loop.
		e.finish(domain.ExperimentStopped)
	case e.adapter.Mode() == domain.ModeBacktest:
		// Replay exhausted its source rounds.
		e.finish(domain.ExperimentCompleted)
	default:
		e.finish(domain.ExperimentStopped)
	}
	return nil
}

// finish writes the terminal status. Uses a fresh context so shutdown still
// persists after cancellation.
func (e *Engine) finish(status domain.ExperimentStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stoppedAt := e.clock()
	if err := e.stores.Experiments.UpdateStatus(ctx, e.experiment.ID, status, nil, &stoppedAt); err != nil {
		log.Printf("[engine] write terminal status %s: %v", status, err)
	}
	e.experiment.Status = status
	e.experiment.StoppedAt = &stoppedAt
	log.Printf("[engine] experiment %s finished with status %s", e.experiment.ID, status)
}

// RunRound executes one pipeline iteration. Steps run in strict order; a
// per-token failure is counted and the round continues. Cancellation is
// honored between tokens: the in-flight token completes, the round still
// snapshots.
func (e *Engine) RunRound(ctx context.Context) error {
	started := e.clock()
	summary := RoundSummary{LoopCount: e.loopCount}

	// 1. Holding sync. Failure keeps last-known portfolio state.
	if err := e.adapter.SyncHoldings(ctx, e); err != nil {
		log.Printf("[engine] holding sync failed, continuing with stale state: %v", err)
		if e.metrics != nil {
			e.metrics.SyncFailures.Inc()
		}
	}

	// 2. Harvest new tokens.
	listings, err := e.adapter.Harvest(ctx)
	if err != nil {
		log.Printf("[engine] harvest failed: %v", err)
		summary.ErrorCount++
	}
	now := e.clock()
	for _, l := range listings {
		if _, cerr := chain.Canonical(l.Blockchain); cerr != nil {
			log.Printf("[engine] skip listing %s: %v", l.Address, cerr)
			continue
		}
		e.pool.AddToken(tokenpool.AddTokenInput{
			Address:        l.Address,
			Symbol:         l.Symbol,
			Blockchain:     l.Blockchain,
			CreatedAt:      l.CreatedAt,
			CurrentPrice:   l.CurrentPrice,
			CreatorAddress: l.CreatorAddress,
		}, now)
	}

	// 3. Batched price refresh.
	tokens := e.pool.GetMonitoringTokens()
	quotes, err := e.adapter.RefreshPrices(ctx, e, tokens)
	if err != nil {
		log.Printf("[engine] price refresh failed: %v", err)
		summary.ErrorCount++
		quotes = nil
	}
	now = e.clock()
	priced := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		id, merr := chain.MarketID(t.Address, t.Blockchain)
		if merr != nil {
			continue
		}
		q, ok := quotes[id]
		if !ok {
			continue
		}
		e.pool.UpdatePrice(t.Address, t.Blockchain, q.Price, now, tokenpool.MarketExtras{
			TxVolumeU24h: q.TxVolumeU24h,
			Holders:      q.Holders,
			TVL:          q.TVL,
			FDV:          q.FDV,
			MarketCap:    q.MarketCap,
		})
		e.portfolios.MarkPrice(e.portfolioID, t.Address, decimal.NewFromFloat(q.Price))
		priced[chain.TokenKey(t.Address, t.Blockchain)] = true
	}

	// 4. Evaluate each token sequentially; stable order, first match wins.
	var seriesRecords []*domain.TimeSeriesRecord
	stopped := false
	for _, t := range tokens {
		if ctx.Err() != nil {
			stopped = true
			break
		}
		if !priced[chain.TokenKey(t.Address, t.Blockchain)] {
			summary.NoPriceCount++
			continue
		}

		nowMs := e.clock()
		f := e.adapter.Factors(e, t, nowMs)
		summary.TokensEvaluated++
		if e.metrics != nil {
			e.metrics.TokensEvaluated.Inc()
		}

		seriesRecords = append(seriesRecords, &domain.TimeSeriesRecord{
			ExperimentID: e.experiment.ID,
			TokenAddress: t.Address,
			TokenSymbol:  t.Symbol,
			Timestamp:    nowMs,
			LoopCount:    e.loopCount,
			PriceUSD:     t.CurrentPrice,
			FactorValues: f,
			Blockchain:   t.Blockchain,
		})

		matched := e.strategies.Evaluate(f, t.Address, nowMs, t)
		if matched == nil {
			continue
		}
		// Status gate: a matched strategy is only an intent.
		if matched.Def.Action == domain.ActionBuy && t.Status != domain.TokenMonitoring {
			continue
		}
		if matched.Def.Action == domain.ActionSell && t.Status != domain.TokenBought {
			continue
		}

		res := e.ProcessSignal(ctx, t, matched, f)
		summary.SignalCount++
		if res.Success {
			summary.TradeCount++
		} else {
			summary.ErrorCount++
		}
	}

	if !stopped {
		// 5. Evict stale and idle tokens.
		e.pool.Cleanup(e.clock(), e.tokenTTL.Milliseconds())
		e.pool.CleanupInactive(e.clock(), e.inactiveTimeout.Milliseconds())
	}

	// Persist token state for the dashboard and backtest joins.
	for _, t := range e.pool.GetMonitoringTokens() {
		if err := e.stores.Tokens.Upsert(ctx, e.experiment.ID, t); err != nil {
			log.Printf("[engine] upsert token %s: %v", t.Address, err)
			summary.ErrorCount++
		}
	}

	if e.adapter.ShouldRecordTimeSeries() && len(seriesRecords) > 0 {
		if err := e.stores.TimeSeries.InsertBulk(ctx, seriesRecords); err != nil {
			log.Printf("[engine] record time series: %v", err)
			summary.ErrorCount++
		}
	}

	// 6. Snapshot.
	e.snapshotPortfolio(e.clock())

	// 7. Round summary.
	summary.DurationMs = e.clock() - started
	summary.log(string(e.adapter.Mode()))
	e.persistSummary(ctx, summary)
	if e.metrics != nil {
		e.metrics.RoundsTotal.WithLabelValues(string(e.adapter.Mode())).Inc()
		e.metrics.RoundDuration.Observe(float64(summary.DurationMs) / 1000.0)
		e.metrics.NoPriceTotal.Add(float64(summary.NoPriceCount))
		e.metrics.PoolSize.WithLabelValues(e.experiment.ID).Set(float64(e.pool.Size()))
	}

	e.loopCount++
	return ctx.Err()
}

// SignalResult reports the outcome of a dispatched signal.
type SignalResult struct {
	Success bool
	TradeID string
	Message string
}

// ProcessSignal persists the signal, executes it through the adapter and, on
// success, updates pool counters, card allocation, the trade row and the
// signal outcome. On failure only the signal outcome is written; execution
// accounting is untouched, so the cooldown is not consumed.
func (e *Engine) ProcessSignal(ctx context.Context, t *domain.Token, matched *strategy.Compiled, f map[string]float64) SignalResult {
	nowMs := e.clock()
	def := matched.Def

	factorsCopy := make(map[string]float64, len(f))
	for k, v := range f {
		factorsCopy[k] = v
	}
	sig := &domain.TradeSignal{
		ID:           domain.NewID(),
		ExperimentID: e.experiment.ID,
		TokenAddress: t.Address,
		TokenSymbol:  t.Symbol,
		Blockchain:   t.Blockchain,
		Action:       def.Action,
		Confidence:   1,
		Reason:       fmt.Sprintf("%s: %s", def.Name, def.Condition),
		Factors:      factorsCopy,
		Price:        t.CurrentPrice,
		StrategyID:   def.ID,
		LoopCount:    e.loopCount,
		CreatedAt:    nowMs,
	}
	if err := e.stores.Signals.Insert(ctx, sig); err != nil {
		log.Printf("[engine] persist signal: %v", err)
		return SignalResult{Message: "persist signal failed"}
	}

	result := e.dispatch(ctx, t, def, sig)

	if result.Success {
		if err := e.stores.Signals.UpdateOutcome(ctx, sig.ID, true, &result.TradeID, nil); err != nil {
			log.Printf("[engine] update signal outcome: %v", err)
		}
	} else {
		msg := result.Message
		if err := e.stores.Signals.UpdateOutcome(ctx, sig.ID, false, nil, &msg); err != nil {
			log.Printf("[engine] update signal outcome: %v", err)
		}
	}
	if e.metrics != nil {
		outcome := "failed"
		if result.Success {
			outcome = "executed"
			e.metrics.TradesTotal.WithLabelValues(string(def.Action)).Inc()
		}
		e.metrics.SignalsTotal.WithLabelValues(string(def.Action), outcome).Inc()
	}
	return result
}

// dispatch sizes the order from the card allocation, executes it through the
// adapter and applies post-trade accounting.
func (e *Engine) dispatch(ctx context.Context, t *domain.Token, def domain.StrategyDefinition, sig *domain.TradeSignal) SignalResult {
	cm := e.ensureCardManager(t)
	price := decimal.NewFromFloat(t.CurrentPrice)
	if price.Sign() <= 0 {
		return SignalResult{Message: "no price"}
	}

	beforeNative, beforeToken := cm.State()
	cardsBefore := &domain.CardState{NativeCards: beforeNative, TokenCards: beforeToken}

	var outcome ExecOutcome
	var requestedCards int
	switch def.Action {
	case domain.ActionBuy:
		if !cm.CanTrade(true) {
			return SignalResult{Message: "no native cards available"}
		}
		requestedCards = def.Cards.Count
		if def.Cards.All {
			requestedCards = cm.TotalCards()
		}
		nativeAmount := cm.CalculateBuyAmount(requestedCards)
		if nativeAmount.Sign() <= 0 {
			return SignalResult{Message: "buy amount is zero"}
		}
		outcome = e.adapter.ExecuteBuy(ctx, e, t, nativeAmount, price)

	case domain.ActionSell:
		if !cm.CanTrade(false) {
			return SignalResult{Message: "no token cards available"}
		}
		balance := e.portfolios.PositionAmount(e.portfolioID, t.Address)
		if balance.Sign() <= 0 {
			return SignalResult{Message: "no position to sell"}
		}
		requestedCards = def.Cards.Count
		tokenAmount := cm.CalculateSellAmount(balance, def.Cards.Count, def.Cards.All)
		if tokenAmount.Sign() <= 0 {
			return SignalResult{Message: "sell amount is zero"}
		}
		outcome = e.adapter.ExecuteSell(ctx, e, t, tokenAmount, price)

	default:
		return SignalResult{Message: fmt.Sprintf("unknown action %q", def.Action)}
	}

	if !outcome.Success {
		return SignalResult{Message: outcome.Message}
	}

	nowMs := e.clock()
	actualPrice := outcome.ActualPrice
	if actualPrice <= 0 {
		actualPrice = t.CurrentPrice
	}

	// Card transfer and pool accounting only after settlement.
	switch def.Action {
	case domain.ActionBuy:
		cm.AfterBuy(requestedCards)
		e.pool.MarkAsBought(t.Address, t.Blockchain, actualPrice, nowMs)
	case domain.ActionSell:
		cm.AfterSell(requestedCards, def.Cards.All)
		if e.portfolios.PositionAmount(e.portfolioID, t.Address).IsZero() {
			e.pool.MarkAsSold(t.Address, t.Blockchain)
		}
	}
	e.pool.RecordStrategyExecution(t.Address, t.Blockchain, def.ID, nowMs)

	afterNative, afterToken := cm.State()
	trade := &domain.Trade{
		ID:            domain.NewID(),
		ExperimentID:  e.experiment.ID,
		SignalID:      &sig.ID,
		Direction:     def.Action,
		TokenAddress:  t.Address,
		Blockchain:    t.Blockchain,
		Price:         actualPrice,
		Success:       true,
		TxHash:        outcome.TxHash,
		GasUsed:       outcome.GasUsed,
		WalletAddress: outcome.WalletAddress,
		Metadata: domain.TradeMetadata{
			CardsBefore: cardsBefore,
			CardsAfter:  &domain.CardState{NativeCards: afterNative, TokenCards: afterToken},
			TraderUsed:  outcome.TraderUsed,
		},
		Timestamp: nowMs,
	}
	if def.Action == domain.ActionBuy {
		trade.InputCurrency = "native"
		trade.InputAmount = outcome.ActualAmountOut * actualPrice
		trade.OutputCurrency = t.Symbol
		trade.OutputAmount = outcome.ActualAmountOut
	} else {
		trade.InputCurrency = t.Symbol
		trade.InputAmount = outcome.ActualReceived / actualPrice
		trade.OutputCurrency = "native"
		trade.OutputAmount = outcome.ActualReceived
	}
	if err := e.stores.Trades.Insert(ctx, trade); err != nil {
		log.Printf("[engine] persist trade: %v", err)
	}

	return SignalResult{Success: true, TradeID: trade.ID}
}

// ensureCardManager returns the token's card manager, creating one from the
// experiment config when the token is first considered for trading.
func (e *Engine) ensureCardManager(t *domain.Token) *cards.Manager {
	if cm := e.pool.GetCardManager(t.Address, t.Blockchain); cm != nil {
		return cm
	}

	total := cards.DefaultTotalCards
	perCard := decimal.NewFromFloat(e.cfg.InitialCapital).Div(decimal.NewFromInt(int64(cards.DefaultTotalCards)))
	native, token := total, 0
	if pm := e.cfg.PositionManagement; pm != nil && pm.Enabled {
		if pm.TotalCards >= cards.MinTotalCards && pm.TotalCards <= cards.MaxTotalCards {
			total = pm.TotalCards
			native = total
		}
		if pm.PerCardNative > 0 {
			perCard = decimal.NewFromFloat(pm.PerCardNative)
		}
		if alloc := pm.InitialAllocation; alloc != nil {
			native, token = alloc.NativeCards, alloc.TokenCards
		}
	}

	cm, err := cards.New(cards.Options{
		TotalCards:    total,
		PerCardNative: perCard,
		NativeCards:   native,
		TokenCards:    token,
	})
	if err != nil {
		log.Printf("[engine] card manager config invalid (%v), using default", err)
		cm = cards.NewDefault(perCard)
	}
	e.pool.SetCardManager(t.Address, t.Blockchain, cm)
	return cm
}

// snapshotPortfolio persists the per-round portfolio view and updates the
// gauges.
func (e *Engine) snapshotPortfolio(nowMs int64) {
	snap, err := e.portfolios.Snapshot(e.portfolioID, e.experiment.ID, e.loopCount, nowMs)
	if err != nil {
		log.Printf("[engine] build snapshot: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.stores.Snapshots.Insert(ctx, snap); err != nil {
		log.Printf("[engine] persist snapshot: %v", err)
	}
	if e.metrics != nil {
		e.metrics.PortfolioValue.WithLabelValues(e.experiment.ID).Set(snap.TotalValue)
		e.metrics.AvailableBalance.WithLabelValues(e.experiment.ID).Set(snap.AvailableBalance)
	}
}

func (e *Engine) persistSummary(ctx context.Context, s RoundSummary) {
	m := &domain.RuntimeMetric{
		ExperimentID:    e.experiment.ID,
		LoopCount:       s.LoopCount,
		DurationMs:      s.DurationMs,
		TokensEvaluated: s.TokensEvaluated,
		NoPriceCount:    s.NoPriceCount,
		SignalCount:     s.SignalCount,
		TradeCount:      s.TradeCount,
		ErrorCount:      s.ErrorCount,
		Timestamp:       e.clock(),
	}
	if err := e.stores.Runtime.Insert(ctx, m); err != nil {
		log.Printf("[engine] persist runtime metric: %v", err)
	}
}

// tickLoop is the shared periodic driver for virtual and live mode. It runs
// one round immediately, then one per tick until cancellation.
func tickLoop(ctx context.Context, e *Engine) error {
	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		if err := e.RunRound(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[engine] round error: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
