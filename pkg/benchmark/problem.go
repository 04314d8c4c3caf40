package benchmark

import (
	"fmt"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/utils"
)

// Problem is a factory bound to a seed. The run replayed for a configuration
// depends only on (seed, configuration), so two processes with the same seed
// replay identical curves.
type Problem struct {
	factory *Factory
	seed    int64
}

// Seed returns the bound seed.
func (p *Problem) Seed() int64 { return p.seed }

// Factory returns the owning factory.
func (p *Problem) Factory() *Factory { return p.factory }

// SelectRun returns the run index this problem replays for a flat key.
func (p *Problem) SelectRun(key int) int {
	return utils.RunIndex(p.seed, key, p.factory.store.Runs())
}

// CreateEvaluator validates v, resolves its configuration and picks a run.
func (p *Problem) CreateEvaluator(v []int) (*Evaluator, error) {
	key, err := p.factory.space.Encode(v)
	if err != nil {
		return nil, err
	}
	run := p.SelectRun(key)

	store := p.factory.store
	e := &Evaluator{
		problem: p,
		params:  append([]int(nil), v...),
		key:     key,
		run:     run,
		max:     p.factory.maxEpoch,
		names:   p.factory.recipe.Metrics,
	}
	for _, m := range e.names {
		tbl, err := store.Lookup(m, key)
		if err != nil {
			return nil, fmt.Errorf("resolve %v: %w", v, err)
		}
		e.tables = append(e.tables, tbl)
	}
	if cm := p.factory.recipe.CostMetric; cm != "" {
		tbl, err := store.Lookup(cm, key)
		if err != nil {
			return nil, fmt.Errorf("resolve %v: %w", v, err)
		}
		e.cost = &tbl
	}

	logger.Debug("evaluator created", "seed", p.seed, "params", v, "key", key, "run", run)
	return e, nil
}
