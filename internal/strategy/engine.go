// Package strategy compiles user-defined boolean conditions over the factor
// map and evaluates them in priority order per token per round.
package strategy

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"

	"github.com/Knetic/govaluate"

	"trading-experiment-lab/internal/domain"
)

// Load errors.
var (
	ErrEmptyCondition = errors.New("strategy condition is empty")
	ErrUnknownFactor  = errors.New("condition references unknown factor")
	ErrInvalidAction  = errors.New("strategy action must be buy or sell")
	ErrDuplicateID    = errors.New("duplicate strategy id")
)

// Compiled is a strategy whose condition has been parsed and validated
// against the available factor set.
type Compiled struct {
	Def  domain.StrategyDefinition
	expr *govaluate.EvaluableExpression
	vars []string
}

// Engine holds the compiled strategies of one experiment, sorted by
// priority ascending.
type Engine struct {
	strategies []*Compiled
	verbose    bool
}

// NewEngine creates an empty strategy engine.
func NewEngine(verbose bool) *Engine {
	return &Engine{verbose: verbose}
}

// wordOps rewrites the word operators into expression syntax.
// Word boundaries keep factor names intact.
var wordOps = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bAND\b`), "&&"},
	{regexp.MustCompile(`\bOR\b`), "||"},
	{regexp.MustCompile(`\bNOT\b`), "!"},
}

func normalizeCondition(condition string) string {
	for _, op := range wordOps {
		condition = op.re.ReplaceAllString(condition, op.repl)
	}
	return condition
}

// Load validates and compiles the given strategies. A strategy whose
// condition fails to parse or references a factor outside availableFactorIDs
// rejects the whole load. Strategies are ordered by priority ascending with
// id as a deterministic tie-break.
func (e *Engine) Load(defs []domain.StrategyDefinition, availableFactorIDs []string) error {
	known := make(map[string]struct{}, len(availableFactorIDs))
	for _, id := range availableFactorIDs {
		known[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(defs))
	compiled := make([]*Compiled, 0, len(defs))
	for _, def := range defs {
		if !def.Action.IsValid() {
			return fmt.Errorf("strategy %s: %w (got %q)", def.ID, ErrInvalidAction, def.Action)
		}
		if def.Condition == "" {
			return fmt.Errorf("strategy %s: %w", def.ID, ErrEmptyCondition)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
		}
		seen[def.ID] = struct{}{}

		expr, err := govaluate.NewEvaluableExpression(normalizeCondition(def.Condition))
		if err != nil {
			return fmt.Errorf("strategy %s: parse condition: %w", def.ID, err)
		}
		for _, v := range expr.Vars() {
			if _, ok := known[v]; !ok {
				return fmt.Errorf("strategy %s: %w: %q", def.ID, ErrUnknownFactor, v)
			}
		}
		compiled = append(compiled, &Compiled{Def: def, expr: expr, vars: expr.Vars()})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Def.Priority != compiled[j].Def.Priority {
			return compiled[i].Def.Priority < compiled[j].Def.Priority
		}
		return compiled[i].Def.ID < compiled[j].Def.ID
	})
	e.strategies = compiled
	return nil
}

// Strategies returns the loaded strategies in evaluation order.
func (e *Engine) Strategies() []*Compiled {
	return e.strategies
}

// ExecutionState supplies per-(token, strategy) accounting to the gates.
// *domain.Token satisfies it.
type ExecutionState interface {
	Execution(strategyID string) (count int, lastAt int64)
}

// Evaluate walks strategies in priority order and returns the first one
// whose gates and condition pass, or nil. Gates in order: enabled, cooldown
// (measured from the last successful execution), maxExecutions, condition.
// A condition evaluation error logs and skips the strategy. Evaluate never
// updates accounting; the caller does that after dispatch succeeds.
func (e *Engine) Evaluate(factors map[string]float64, tokenAddress string, nowMs int64, state ExecutionState) *Compiled {
	for _, s := range e.strategies {
		if !s.Def.Enabled {
			continue
		}
		count, lastAt := state.Execution(s.Def.ID)
		if lastAt > 0 && nowMs-lastAt < s.Def.CooldownSeconds*1000 {
			continue
		}
		if s.Def.MaxExecutions != nil && count >= *s.Def.MaxExecutions {
			continue
		}

		ok, err := s.eval(factors)
		if err != nil {
			log.Printf("[strategy] %s: condition error on %s: %v", s.Def.ID, tokenAddress, err)
			continue
		}
		if ok {
			return s
		}
	}
	return nil
}

// eval evaluates the compiled condition against a factor map. Factors the
// condition references but the map lacks evaluate as 0; the condition was
// validated against the closed factor set at load, so a gap is a data hole,
// not a typo.
func (s *Compiled) eval(factors map[string]float64) (bool, error) {
	params := make(map[string]interface{}, len(s.vars))
	for _, v := range s.vars {
		if val, ok := factors[v]; ok {
			params[v] = val
		} else {
			params[v] = 0.0
		}
	}
	res, err := s.expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	b, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("condition is not boolean (got %T)", res)
	}
	return b, nil
}
