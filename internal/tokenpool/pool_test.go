package tokenpool

import (
	"testing"

	"github.com/shopspring/decimal"

	"trading-experiment-lab/internal/cards"
	"trading-experiment-lab/internal/domain"
)

const (
	evmAddr = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"
	evmLow  = "0xabcdef0123456789abcdef0123456789abcdef01"
)

func addTestToken(p *Pool, nowMs int64) {
	p.AddToken(AddTokenInput{
		Address:      evmAddr,
		Symbol:       "TKN",
		Blockchain:   "ethereum",
		CreatedAt:    nowMs - 60000,
		CurrentPrice: 1.0,
	}, nowMs)
}

func TestAddToken_Idempotent(t *testing.T) {
	p := New()
	now := int64(1700000000000)

	if !p.AddToken(AddTokenInput{Address: evmAddr, Blockchain: "ethereum", CurrentPrice: 1.0}, now) {
		t.Fatal("first add should insert")
	}
	// Same address, different case: same canonical key.
	if p.AddToken(AddTokenInput{Address: evmLow, Blockchain: "eth", CurrentPrice: 2.0}, now) {
		t.Error("second add should be a no-op")
	}
	if p.Size() != 1 {
		t.Errorf("pool size: got %d, want 1", p.Size())
	}

	tok := p.Get(evmLow, "ethereum")
	if tok == nil {
		t.Fatal("token not found by lowercase address")
	}
	if tok.Address != evmLow {
		t.Errorf("address not canonicalized: %s", tok.Address)
	}
	if tok.CurrentPrice != 1.0 {
		t.Errorf("existing entry mutated by duplicate add: price %f", tok.CurrentPrice)
	}
	if tok.Status != domain.TokenMonitoring {
		t.Errorf("status: got %s, want monitoring", tok.Status)
	}
}

func TestUpdatePrice_HighWaterMark(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	addTestToken(p, now)

	p.UpdatePrice(evmAddr, "ethereum", 2.0, now+1000, MarketExtras{})
	p.UpdatePrice(evmAddr, "ethereum", 1.5, now+2000, MarketExtras{})

	tok := p.Get(evmAddr, "ethereum")
	if tok.CurrentPrice != 1.5 {
		t.Errorf("current price: got %f, want 1.5", tok.CurrentPrice)
	}
	if tok.HighestPrice != 2.0 {
		t.Errorf("highest price regressed: got %f, want 2.0", tok.HighestPrice)
	}
	if tok.HighestPriceAt != now+1000 {
		t.Errorf("highest price timestamp: got %d, want %d", tok.HighestPriceAt, now+1000)
	}
	if len(tok.PriceHistory) != 3 {
		t.Errorf("price history length: got %d, want 3", len(tok.PriceHistory))
	}
}

func TestPriceHistoryBounded(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	addTestToken(p, now)

	for i := 0; i < maxPriceHistory+50; i++ {
		p.UpdatePrice(evmAddr, "ethereum", float64(i), now+int64(i), MarketExtras{})
	}
	tok := p.Get(evmAddr, "ethereum")
	if len(tok.PriceHistory) != maxPriceHistory {
		t.Errorf("history length: got %d, want %d", len(tok.PriceHistory), maxPriceHistory)
	}
	// Tail keeps the latest points.
	last := tok.PriceHistory[len(tok.PriceHistory)-1]
	if last.Price != float64(maxPriceHistory+49) {
		t.Errorf("last history price: got %f", last.Price)
	}
}

func TestBuySellLifecycle(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	addTestToken(p, now)

	p.MarkAsBought(evmAddr, "ethereum", 1.2, now+1000)
	tok := p.Get(evmAddr, "ethereum")
	if tok.Status != domain.TokenBought || tok.BuyPrice != 1.2 || tok.BoughtAt != now+1000 {
		t.Errorf("bought state wrong: %+v", tok)
	}

	p.MarkAsSold(evmAddr, "ethereum")
	tok = p.Get(evmAddr, "ethereum")
	if tok.Status != domain.TokenMonitoring {
		t.Errorf("status after sell: got %s, want monitoring", tok.Status)
	}
	if tok.BuyPrice != 0 || tok.BoughtAt != 0 {
		t.Errorf("buy markers not cleared: price=%f at=%d", tok.BuyPrice, tok.BoughtAt)
	}
}

func TestRecordStrategyExecution(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	addTestToken(p, now)

	p.RecordStrategyExecution(evmAddr, "ethereum", "take-profit", now+1000)
	p.RecordStrategyExecution(evmAddr, "ethereum", "take-profit", now+2000)

	tok := p.Get(evmAddr, "ethereum")
	count, lastAt := tok.Execution("take-profit")
	if count != 2 {
		t.Errorf("count: got %d, want 2", count)
	}
	if lastAt != now+2000 {
		t.Errorf("lastAt: got %d, want %d", lastAt, now+2000)
	}
	if c, _ := tok.Execution("never-ran"); c != 0 {
		t.Errorf("unknown strategy count: got %d, want 0", c)
	}
}

func TestGetMonitoringTokens_StableOrder(t *testing.T) {
	p := New()
	now := int64(1700000000000)

	p.AddToken(AddTokenInput{Address: "0xccc", Blockchain: "ethereum"}, now+2000)
	p.AddToken(AddTokenInput{Address: "0xaaa", Blockchain: "ethereum"}, now)
	p.AddToken(AddTokenInput{Address: "0xbbb", Blockchain: "ethereum"}, now+1000)

	tokens := p.GetMonitoringTokens()
	if len(tokens) != 3 {
		t.Fatalf("got %d tokens, want 3", len(tokens))
	}
	want := []string{"0xaaa", "0xbbb", "0xccc"}
	for i, tok := range tokens {
		if tok.Address != want[i] {
			t.Errorf("position %d: got %s, want %s", i, tok.Address, want[i])
		}
	}
}

func TestCleanup_NeverEvictsBought(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	ttl := int64(1000)

	p.AddToken(AddTokenInput{Address: "0xaaa", Blockchain: "ethereum"}, now)
	p.AddToken(AddTokenInput{Address: "0xbbb", Blockchain: "ethereum"}, now)
	p.MarkAsBought("0xbbb", "ethereum", 1.0, now)

	removed := p.Cleanup(now+5000, ttl)
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	if p.Get("0xaaa", "ethereum") != nil {
		t.Error("stale monitoring token not evicted")
	}
	if p.Get("0xbbb", "ethereum") == nil {
		t.Error("bought token must never be evicted by age")
	}
}

func TestCleanupInactive(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	idle := int64(1000)

	p.AddToken(AddTokenInput{Address: "0xaaa", Blockchain: "ethereum"}, now)
	p.AddToken(AddTokenInput{Address: "0xbbb", Blockchain: "ethereum"}, now)
	// 0xbbb has execution history, so it is not idle.
	p.RecordStrategyExecution("0xbbb", "ethereum", "s", now)

	removed := p.CleanupInactive(now+5000, idle)
	if removed != 1 {
		t.Errorf("removed: got %d, want 1", removed)
	}
	if p.Get("0xaaa", "ethereum") != nil {
		t.Error("idle token not evicted")
	}
	if p.Get("0xbbb", "ethereum") == nil {
		t.Error("token with executions evicted")
	}
}

func TestCardManagerPreservation(t *testing.T) {
	p := New()
	now := int64(1700000000000)
	addTestToken(p, now)

	cm, err := cards.New(cards.Options{
		TotalCards:    4,
		PerCardNative: decimal.NewFromFloat(0.025),
		NativeCards:   1,
		TokenCards:    3,
	})
	if err != nil {
		t.Fatalf("cards.New failed: %v", err)
	}
	p.SetCardManager(evmAddr, "ethereum", cm)

	states := p.CardManagerStates()
	if len(states) != 1 {
		t.Fatalf("states: got %d, want 1", len(states))
	}
	for _, m := range states {
		native, token := m.State()
		if native != 1 || token != 3 {
			t.Errorf("snapshot state: got %d/%d, want 1/3", native, token)
		}
	}

	got := p.GetCardManager(evmLow, "eth")
	if got == nil {
		t.Fatal("card manager not found via alias key")
	}
	native, token := got.State()
	if native != 1 || token != 3 {
		t.Errorf("state: got %d/%d, want 1/3", native, token)
	}
}
