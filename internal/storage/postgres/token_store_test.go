package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-experiment-lab/internal/domain"
)

func createTestToken(address string, collectedAt int64) *domain.Token {
	return &domain.Token{
		Address:         address,
		Symbol:          "TKN",
		Blockchain:      "ethereum",
		CreatedAt:       1700000000000,
		CollectedAt:     collectedAt,
		CollectionPrice: 0.001,
		LaunchPrice:     0.0008,
		CurrentPrice:    0.0012,
		HighestPrice:    0.0015,
		HighestPriceAt:  1700000060000,
		TxVolumeU24h:    125000,
		Holders:         340,
		TVL:             50000,
		FDV:             1200000,
		MarketCap:       900000,
		CreatorAddress:  "0xcreator000000000000000000000000000000001",
		Status:          domain.TokenMonitoring,
	}
}

func TestTokenStore_UpsertAndGetByExperiment(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestExperiment(t, pool, "exp-tok")
	store := NewTokenStore(pool)

	tok := createTestToken("0xabc0000000000000000000000000000000000001", 1700000000000)
	tok.Executions = map[string]*domain.StrategyExecution{
		"early-momentum-buy": {Count: 1, LastExecutionAt: 1700000030000},
	}
	require.NoError(t, store.Upsert(ctx, "exp-tok", tok))

	tokens, err := store.GetByExperiment(ctx, "exp-tok")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	retrieved := tokens[0]
	assert.Equal(t, tok.Address, retrieved.Address)
	assert.Equal(t, tok.Blockchain, retrieved.Blockchain)
	assert.Equal(t, tok.Symbol, retrieved.Symbol)
	assert.Equal(t, tok.CollectedAt, retrieved.CollectedAt)
	assert.InDelta(t, tok.CollectionPrice, retrieved.CollectionPrice, 1e-12)
	assert.InDelta(t, tok.CurrentPrice, retrieved.CurrentPrice, 1e-12)
	assert.InDelta(t, tok.HighestPrice, retrieved.HighestPrice, 1e-12)
	assert.Equal(t, tok.Holders, retrieved.Holders)
	assert.Equal(t, tok.CreatorAddress, retrieved.CreatorAddress)
	assert.Equal(t, domain.TokenMonitoring, retrieved.Status)

	require.Contains(t, retrieved.Executions, "early-momentum-buy")
	assert.Equal(t, 1, retrieved.Executions["early-momentum-buy"].Count)
	assert.Equal(t, int64(1700000030000), retrieved.Executions["early-momentum-buy"].LastExecutionAt)
}

func TestTokenStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestExperiment(t, pool, "exp-tok-upsert")
	store := NewTokenStore(pool)

	tok := createTestToken("0xabc0000000000000000000000000000000000001", 1700000000000)
	require.NoError(t, store.Upsert(ctx, "exp-tok-upsert", tok))

	// Second upsert on the same key replaces the mutable columns.
	tok.Symbol = "TKN2"
	tok.CurrentPrice = 0.0025
	tok.HighestPrice = 0.0025
	tok.Status = domain.TokenBought
	tok.BuyPrice = 0.0020
	tok.BoughtAt = 1700000120000
	tok.Executions = map[string]*domain.StrategyExecution{
		"early-momentum-buy": {Count: 2, LastExecutionAt: 1700000120000},
	}
	require.NoError(t, store.Upsert(ctx, "exp-tok-upsert", tok))

	tokens, err := store.GetByExperiment(ctx, "exp-tok-upsert")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	retrieved := tokens[0]
	assert.Equal(t, "TKN2", retrieved.Symbol)
	assert.InDelta(t, 0.0025, retrieved.CurrentPrice, 1e-12)
	assert.Equal(t, domain.TokenBought, retrieved.Status)
	assert.InDelta(t, 0.0020, retrieved.BuyPrice, 1e-12)
	assert.Equal(t, int64(1700000120000), retrieved.BoughtAt)
	require.Contains(t, retrieved.Executions, "early-momentum-buy")
	assert.Equal(t, 2, retrieved.Executions["early-momentum-buy"].Count)
}

func TestTokenStore_OrderedByCollectedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestExperiment(t, pool, "exp-tok-order")
	store := NewTokenStore(pool)

	late := createTestToken("0xccc0000000000000000000000000000000000003", 3000)
	early := createTestToken("0xaaa0000000000000000000000000000000000001", 1000)
	tie := createTestToken("0xbbb0000000000000000000000000000000000002", 3000)

	require.NoError(t, store.Upsert(ctx, "exp-tok-order", late))
	require.NoError(t, store.Upsert(ctx, "exp-tok-order", early))
	require.NoError(t, store.Upsert(ctx, "exp-tok-order", tie))

	tokens, err := store.GetByExperiment(ctx, "exp-tok-order")
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, early.Address, tokens[0].Address)
	assert.Equal(t, tie.Address, tokens[1].Address)
	assert.Equal(t, late.Address, tokens[2].Address)
}

func TestTokenStore_ExperimentIsolation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestExperiment(t, pool, "exp-tok-a")
	insertTestExperiment(t, pool, "exp-tok-b")
	store := NewTokenStore(pool)

	tok := createTestToken("0xabc0000000000000000000000000000000000001", 1000)
	require.NoError(t, store.Upsert(ctx, "exp-tok-a", tok))
	require.NoError(t, store.Upsert(ctx, "exp-tok-b", tok))

	a, err := store.GetByExperiment(ctx, "exp-tok-a")
	require.NoError(t, err)
	assert.Len(t, a, 1)

	b, err := store.GetByExperiment(ctx, "exp-tok-b")
	require.NoError(t, err)
	assert.Len(t, b, 1)
}
