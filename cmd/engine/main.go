// Package main runs a trading experiment in virtual or live mode: one
// scheduler loop per process, driven until SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-experiment-lab/internal/config"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/engine"
	"trading-experiment-lab/internal/listing"
	"trading-experiment-lab/internal/marketdata"
	"trading-experiment-lab/internal/observability"
	"trading-experiment-lab/internal/storage/memory"
	"trading-experiment-lab/internal/storage/migrations"
	pgstore "trading-experiment-lab/internal/storage/postgres"
	"trading-experiment-lab/internal/trader"
	"trading-experiment-lab/internal/wallet"

	chstore "trading-experiment-lab/internal/storage/clickhouse"
)

func main() {
	mode := flag.String("mode", "virtual", "Execution mode: virtual, live")
	name := flag.String("name", "", "Experiment name (required)")
	blockchain := flag.String("blockchain", "ethereum", "Blockchain id or alias")
	configPath := flag.String("config", "config.yaml", "Process config file")
	experimentConfigPath := flag.String("experiment-config", "", "Experiment config JSON file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	flag.Parse()

	logger := log.New(os.Stderr, "[engine] ", log.LstdFlags)

	if *name == "" {
		logger.Fatal("--name is required")
	}
	m := domain.Mode(*mode)
	if m != domain.ModeVirtual && m != domain.ModeLive {
		logger.Fatalf("invalid mode %q: must be virtual or live (use cmd/backtest for replays)", *mode)
	}

	procCfg, err := config.LoadProcess(*configPath)
	if err != nil {
		logger.Fatalf("load process config: %v", err)
	}
	if err := procCfg.Validate(m == domain.ModeLive); err != nil {
		logger.Fatalf("invalid process config: %v", err)
	}

	var rawExpCfg json.RawMessage
	if *experimentConfigPath != "" {
		rawExpCfg, err = os.ReadFile(*experimentConfigPath)
		if err != nil {
			logger.Fatalf("read experiment config: %v", err)
		}
	}
	expCfg, err := config.ParseExperimentConfig(rawExpCfg, m)
	if err != nil {
		logger.Fatalf("parse experiment config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	stores, cleanup, err := buildStores(ctx, procCfg, *useMemory)
	if err != nil {
		logger.Fatalf("storage setup: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")
	if procCfg.Metrics.Enabled {
		go serveMetrics(procCfg.Metrics.Addr, logger)
	}

	experiment := &domain.Experiment{
		ID:         domain.NewID(),
		Name:       *name,
		Mode:       m,
		Blockchain: *blockchain,
		Status:     domain.ExperimentInitializing,
		Config:     rawExpCfg,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := stores.Experiments.Insert(ctx, experiment); err != nil {
		logger.Fatalf("create experiment: %v", err)
	}
	logger.Printf("experiment %s (%s, %s) created", experiment.ID, *name, m)

	adapter, err := buildAdapter(ctx, m, procCfg, expCfg, *blockchain)
	if err != nil {
		logger.Fatalf("adapter setup: %v", err)
	}

	eng, err := engine.New(engine.Options{
		Experiment:      experiment,
		Config:          expCfg,
		Adapter:         adapter,
		Stores:          stores,
		Metrics:         metrics,
		TickInterval:    procCfg.Engine.TickInterval,
		TokenTTL:        procCfg.Engine.TokenTTL,
		InactiveTimeout: procCfg.Engine.InactiveTimeout,
		Verbose:         procCfg.Verbose,
	})
	if err != nil {
		logger.Fatalf("create engine: %v", err)
	}

	if err := eng.Run(ctx); err != nil {
		logger.Fatalf("run experiment: %v", err)
	}
	logger.Printf("experiment %s finished: %s", experiment.ID, experiment.Status)
}

// buildStores wires memory or database-backed stores. Database mode runs the
// embedded migrations before handing out stores.
func buildStores(ctx context.Context, cfg *config.Process, useMemory bool) (engine.Stores, func(), error) {
	if useMemory {
		return engine.Stores{
			Experiments: memory.NewExperimentStore(),
			Tokens:      memory.NewTokenStore(),
			Signals:     memory.NewSignalStore(),
			Trades:      memory.NewTradeStore(),
			Snapshots:   memory.NewSnapshotStore(),
			Runtime:     memory.NewRuntimeMetricStore(),
			TimeSeries:  memory.NewTimeSeriesStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return engine.Stores{}, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return engine.Stores{}, nil, err
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		pool.Close()
		return engine.Stores{}, nil, err
	}

	stores := engine.Stores{
		Experiments: pgstore.NewExperimentStore(pool),
		Tokens:      pgstore.NewTokenStore(pool),
		Signals:     pgstore.NewSignalStore(pool),
		Trades:      pgstore.NewTradeStore(pool),
		Snapshots:   pgstore.NewSnapshotStore(pool),
		Runtime:     pgstore.NewRuntimeMetricStore(pool),
		TimeSeries:  chstore.NewTimeSeriesStore(conn),
	}
	cleanup := func() {
		pool.Close()
		if err := conn.Close(); err != nil {
			log.Printf("[engine] close clickhouse: %v", err)
		}
	}
	return stores, cleanup, nil
}

// buildAdapter assembles the mode's collaborators from the process config.
func buildAdapter(ctx context.Context, m domain.Mode, cfg *config.Process, expCfg *config.ExperimentConfig, blockchain string) (engine.ModeAdapter, error) {
	listings, err := buildListingSource(ctx, cfg, blockchain)
	if err != nil {
		return nil, err
	}
	prices := marketdata.New(marketdata.Options{
		BaseURL: cfg.APIs.MarketDataURL,
		APIKey:  cfg.APIs.MarketDataKey,
		Verbose: cfg.Verbose,
	})

	if m == domain.ModeVirtual {
		return engine.NewVirtualAdapter(listings, prices), nil
	}

	balances := wallet.New(wallet.Options{
		BaseURL:     cfg.APIs.WalletInfoURL,
		APIKey:      cfg.APIs.WalletInfoKey,
		RPCEndpoint: cfg.APIs.ChainRPCURL,
		Verbose:     cfg.Verbose,
	})
	primary := trader.NewHTTPTrader(trader.HTTPOptions{Name: "primary", BaseURL: cfg.APIs.PrimaryTrader})
	var secondary trader.Trader
	if cfg.APIs.FallbackTrader != "" {
		secondary = trader.NewHTTPTrader(trader.HTTPOptions{Name: "fallback", BaseURL: cfg.APIs.FallbackTrader})
	}
	dispatcher := trader.NewDispatcher(primary, secondary, cfg.Verbose)
	var denylist trader.Denylist
	if cfg.APIs.DenylistURL != "" {
		denylist = trader.NewHTTPDenylist(cfg.APIs.DenylistURL, 10*time.Second)
	}

	return engine.NewLiveAdapter(engine.LiveOptions{
		Listings:      listings,
		Prices:        prices,
		Balances:      balances,
		Traders:       dispatcher,
		Denylist:      denylist,
		WalletAddress: expCfg.Wallet.Address,
		Blockchain:    blockchain,
		Verbose:       cfg.Verbose,
	}), nil
}

// buildListingSource prefers the WebSocket push feed and falls back to HTTP
// polling.
func buildListingSource(ctx context.Context, cfg *config.Process, blockchain string) (listing.Source, error) {
	if cfg.APIs.ListingWSURL != "" {
		opts := listing.DefaultStreamOptions(cfg.APIs.ListingWSURL)
		opts.Verbose = cfg.Verbose
		return listing.NewStreamSource(ctx, opts)
	}
	return listing.NewPollSource(listing.PollOptions{
		BaseURL:    cfg.APIs.ListingURL,
		Blockchain: blockchain,
	}), nil
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Printf("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("metrics server: %v", err)
	}
}
