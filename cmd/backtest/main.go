// Package main replays a recorded experiment's time-series through the
// scheduler and reports the resulting portfolio.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-experiment-lab/internal/config"
	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/engine"
	"trading-experiment-lab/internal/storage"
	"trading-experiment-lab/internal/storage/memory"
	"trading-experiment-lab/internal/storage/migrations"
	pgstore "trading-experiment-lab/internal/storage/postgres"

	chstore "trading-experiment-lab/internal/storage/clickhouse"
)

func main() {
	sourceID := flag.String("source-id", "", "Source experiment ID to replay (required)")
	name := flag.String("name", "", "Experiment name (defaults to backtest-of-<source>)")
	blockchain := flag.String("blockchain", "ethereum", "Blockchain id or alias")
	initialCapital := flag.Float64("initial-capital", 1.0, "Starting native capital")
	experimentConfigPath := flag.String("experiment-config", "", "Experiment config JSON file (overrides the flags above)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	outputJSON := flag.Bool("json", false, "Output the final snapshot as JSON")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *sourceID == "" {
		logger.Fatal("--source-id is required")
	}
	if *name == "" {
		*name = "backtest-of-" + *sourceID
	}

	rawExpCfg := buildRawConfig(logger, *experimentConfigPath, *sourceID, *initialCapital)
	expCfg, err := config.ParseExperimentConfig(rawExpCfg, domain.ModeBacktest)
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

	stores, cleanup, err := buildStores(ctx, *postgresDSN, *clickhouseDSN, logger)
	if err != nil {
		logger.Fatalf("storage setup: %v", err)
	}
	defer cleanup()

	experiment := &domain.Experiment{
		ID:         domain.NewID(),
		Name:       *name,
		Mode:       domain.ModeBacktest,
		Blockchain: *blockchain,
		Status:     domain.ExperimentInitializing,
		Config:     rawExpCfg,
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err := stores.Experiments.Insert(ctx, experiment); err != nil {
		logger.Fatalf("create experiment: %v", err)
	}

	adapter := engine.NewBacktestAdapter(stores.TimeSeries, expCfg.Backtest.SourceExperimentID)

	eng, err := engine.New(engine.Options{
		Experiment: experiment,
		Config:     expCfg,
		Adapter:    adapter,
		Stores:     stores,
		Verbose:    *verbose,
	})
	if err != nil {
		logger.Fatalf("create engine: %v", err)
	}

	logger.Printf("replaying experiment %s as %s", *sourceID, experiment.ID)
	if err := eng.Run(ctx); err != nil {
		logger.Fatalf("run backtest: %v", err)
	}

	reportResult(ctx, stores.Snapshots, experiment.ID, *outputJSON, logger)
}

// buildRawConfig reads the config file if given, otherwise synthesizes a
// minimal backtest document from the flags.
func buildRawConfig(logger *log.Logger, path, sourceID string, initialCapital float64) json.RawMessage {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Fatalf("read experiment config: %v", err)
		}
		return raw
	}
	raw, err := json.Marshal(map[string]any{
		"initial_capital": initialCapital,
		"backtest":        map[string]string{"sourceExperimentId": sourceID},
	})
	if err != nil {
		logger.Fatalf("build experiment config: %v", err)
	}
	return raw
}

// buildStores wires database stores when both DSNs are given, memory stores
// otherwise. A memory-backed replay only makes sense when the source series
// was loaded by the same process, so it is mainly a test convenience.
func buildStores(ctx context.Context, postgresDSN, clickhouseDSN string, logger *log.Logger) (engine.Stores, func(), error) {
	if postgresDSN == "" || clickhouseDSN == "" {
		logger.Printf("no DSNs given, using in-memory storage")
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

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return engine.Stores{}, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return engine.Stores{}, nil, err
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
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
			log.Printf("[backtest] close clickhouse: %v", err)
		}
	}
	return stores, cleanup, nil
}

// reportResult prints the final snapshot of the replay.
func reportResult(ctx context.Context, snapshots storage.SnapshotStore, experimentID string, asJSON bool, logger *log.Logger) {
	all, err := snapshots.GetByExperiment(ctx, experimentID)
	if err != nil || len(all) == 0 {
		logger.Printf("no snapshots recorded: %v", err)
		return
	}
	final := all[len(all)-1]

	if asJSON {
		output, _ := json.MarshalIndent(final, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Experiment:         %s\n", experimentID)
	fmt.Printf("Rounds:             %d\n", final.LoopCount+1)
	fmt.Printf("Available Balance:  %.6f\n", final.AvailableBalance)
	fmt.Printf("Total Value:        %.6f\n", final.TotalValue)
	fmt.Printf("Total Invested:     %.6f\n", final.TotalInvested)
	fmt.Printf("Total PnL:          %.6f\n", final.TotalPnL)
	fmt.Printf("Open Positions:     %d\n", len(final.Positions))
	for _, p := range final.Positions {
		fmt.Printf("  %-12s amount=%.6f avg=%.8f value=%.6f pnl=%.6f\n",
			p.Symbol, p.Amount, p.AveragePurchasePrice, p.Value, p.UnrealizedPnL)
	}
}
