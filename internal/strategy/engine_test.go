package strategy

import (
	"errors"
	"testing"

	"trading-experiment-lab/internal/domain"
	"trading-experiment-lab/internal/factors"
)

// execState is a test double for per-strategy accounting.
type execState map[string]*domain.StrategyExecution

func (s execState) Execution(strategyID string) (int, int64) {
	e, ok := s[strategyID]
	if !ok {
		return 0, 0
	}
	return e.Count, e.LastExecutionAt
}

func (s execState) record(strategyID string, nowMs int64) {
	e, ok := s[strategyID]
	if !ok {
		e = &domain.StrategyExecution{}
		s[strategyID] = e
	}
	e.Count++
	e.LastExecutionAt = nowMs
}

func def(id string, action domain.TradeAction, priority int, condition string) domain.StrategyDefinition {
	return domain.StrategyDefinition{
		ID:        id,
		Name:      id,
		Action:    action,
		Priority:  priority,
		Cards:     domain.Cards(1),
		Condition: condition,
		Enabled:   true,
	}
}

func TestLoad_RejectsUnknownFactor(t *testing.T) {
	e := NewEngine(false)
	err := e.Load([]domain.StrategyDefinition{
		def("bad", domain.ActionBuy, 1, "momentum >= 50"),
	}, factors.IDs())
	if !errors.Is(err, ErrUnknownFactor) {
		t.Errorf("expected ErrUnknownFactor, got %v", err)
	}
}

func TestLoad_RejectsInvalidDefinitions(t *testing.T) {
	e := NewEngine(false)

	bad := def("s", "hold", 1, "earlyReturn >= 80")
	if err := e.Load([]domain.StrategyDefinition{bad}, factors.IDs()); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}

	empty := def("s", domain.ActionBuy, 1, "")
	if err := e.Load([]domain.StrategyDefinition{empty}, factors.IDs()); !errors.Is(err, ErrEmptyCondition) {
		t.Errorf("expected ErrEmptyCondition, got %v", err)
	}

	a := def("dup", domain.ActionBuy, 1, "earlyReturn >= 80")
	b := def("dup", domain.ActionSell, 2, "profitPercent >= 30")
	if err := e.Load([]domain.StrategyDefinition{a, b}, factors.IDs()); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestLoad_MalformedCondition(t *testing.T) {
	e := NewEngine(false)
	err := e.Load([]domain.StrategyDefinition{
		def("broken", domain.ActionBuy, 1, "earlyReturn >= "),
	}, factors.IDs())
	if err == nil {
		t.Error("expected parse error for malformed condition")
	}
}

func TestEvaluate_WordOperators(t *testing.T) {
	e := NewEngine(false)
	err := e.Load([]domain.StrategyDefinition{
		def("band", domain.ActionBuy, 1, "earlyReturn >= 80 AND earlyReturn <= 120"),
		def("not", domain.ActionSell, 2, "NOT (profitPercent < 30) OR drawdownFromHighest <= -50"),
	}, factors.IDs())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	state := execState{}

	got := e.Evaluate(map[string]float64{"earlyReturn": 100}, "0xabc", 1000, state)
	if got == nil || got.Def.ID != "band" {
		t.Fatalf("expected band to match, got %v", got)
	}

	got = e.Evaluate(map[string]float64{"earlyReturn": 130, "profitPercent": 45}, "0xabc", 1000, state)
	if got == nil || got.Def.ID != "not" {
		t.Fatalf("expected not to match, got %v", got)
	}

	got = e.Evaluate(map[string]float64{"earlyReturn": 10, "profitPercent": 5}, "0xabc", 1000, state)
	if got != nil {
		t.Errorf("expected no match, got %s", got.Def.ID)
	}
}

func TestEvaluate_PriorityOrder(t *testing.T) {
	e := NewEngine(false)
	err := e.Load([]domain.StrategyDefinition{
		def("low-priority", domain.ActionSell, 30, "profitPercent >= 10"),
		def("high-priority", domain.ActionSell, 10, "profitPercent >= 10"),
	}, factors.IDs())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := e.Evaluate(map[string]float64{"profitPercent": 50}, "0xabc", 1000, execState{})
	if got == nil || got.Def.ID != "high-priority" {
		t.Fatalf("expected high-priority to win, got %v", got)
	}
}

func TestEvaluate_CooldownAndMaxExecutions(t *testing.T) {
	maxExec := 2
	s := def("s", domain.ActionSell, 1, "profitPercent >= 30")
	s.CooldownSeconds = 60
	s.MaxExecutions = &maxExec

	e := NewEngine(false)
	if err := e.Load([]domain.StrategyDefinition{s}, factors.IDs()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	f := map[string]float64{"profitPercent": 40}
	state := execState{}

	// t=0: fires (execution 1).
	if got := e.Evaluate(f, "0xabc", 0, state); got == nil {
		t.Fatal("t=0: expected match")
	}
	state.record("s", 0)

	// t=30s: inside the cooldown window.
	if got := e.Evaluate(f, "0xabc", 30_000, state); got != nil {
		t.Error("t=30s: expected cooldown to block")
	}

	// t=65s: cooldown elapsed, fires (execution 2).
	if got := e.Evaluate(f, "0xabc", 65_000, state); got == nil {
		t.Fatal("t=65s: expected match")
	}
	state.record("s", 65_000)

	// t=200s: max executions reached.
	if got := e.Evaluate(f, "0xabc", 200_000, state); got != nil {
		t.Error("t=200s: expected maxExecutions to block")
	}
}

func TestEvaluate_CooldownNotConsumedWithoutRecord(t *testing.T) {
	s := def("s", domain.ActionBuy, 1, "earlyReturn >= 80")
	s.CooldownSeconds = 60

	e := NewEngine(false)
	if err := e.Load([]domain.StrategyDefinition{s}, factors.IDs()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	f := map[string]float64{"earlyReturn": 100}
	state := execState{}

	// Evaluation alone never updates accounting, so the strategy keeps
	// matching until the caller records a successful execution.
	for _, now := range []int64{0, 1000, 2000} {
		if got := e.Evaluate(f, "0xabc", now, state); got == nil {
			t.Fatalf("t=%d: expected match", now)
		}
	}
}

func TestEvaluate_DisabledSkipped(t *testing.T) {
	s := def("s", domain.ActionBuy, 1, "earlyReturn >= 80")
	s.Enabled = false

	e := NewEngine(false)
	if err := e.Load([]domain.StrategyDefinition{s}, factors.IDs()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := e.Evaluate(map[string]float64{"earlyReturn": 100}, "0xabc", 0, execState{}); got != nil {
		t.Error("expected disabled strategy to be skipped")
	}
}

func TestEvaluate_MissingFactorIsZero(t *testing.T) {
	e := NewEngine(false)
	err := e.Load([]domain.StrategyDefinition{
		def("s", domain.ActionSell, 1, "profitPercent <= -20"),
	}, factors.IDs())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// profitPercent absent evaluates as 0, which fails the condition.
	if got := e.Evaluate(map[string]float64{}, "0xabc", 0, execState{}); got != nil {
		t.Error("expected no match with missing factor treated as zero")
	}
}

func TestDefaultStrategies_Load(t *testing.T) {
	e := NewEngine(false)
	if err := e.Load(DefaultStrategies(), factors.IDs()); err != nil {
		t.Fatalf("default strategies failed to load: %v", err)
	}

	// Order must be by priority ascending.
	loaded := e.Strategies()
	for i := 1; i < len(loaded); i++ {
		if loaded[i-1].Def.Priority > loaded[i].Def.Priority {
			t.Errorf("strategies out of priority order at %d", i)
		}
	}
}
