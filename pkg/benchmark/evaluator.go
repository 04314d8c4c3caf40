package benchmark

import (
	"fmt"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
)

// State is the progress state of an Evaluator.
type State int

const (
	StateFresh State = iota
	StateInProgress
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateInProgress:
		return "in_progress"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Metric is one named value read from the dataset.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Values is the result of one Evaluate call. Metrics follow the recipe's
// metric order; the first entry is the objective.
type Values struct {
	Epoch   int      `json:"epoch"`
	Cost    int      `json:"cost"`
	Metrics []Metric `json:"metrics"`
	// Elapsed is the recorded cumulative cost metric at Epoch, when the
	// recipe names one.
	Elapsed *float64 `json:"elapsed,omitempty"`
}

// Objective returns the first metric.
func (v Values) Objective() float64 {
	if len(v.Metrics) == 0 {
		return 0
	}
	return v.Metrics[0].Value
}

// Get returns a metric by name.
func (v Values) Get(name string) (float64, bool) {
	for _, m := range v.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Evaluator replays one run of one configuration, a budget at a time.
//
// An Evaluator is not safe for concurrent use; callers driving one instance
// from several goroutines must serialize Evaluate themselves.
type Evaluator struct {
	problem *Problem
	params  []int
	key     int
	run     int
	epoch   int
	max     int

	names  []string
	tables []dataset.Table
	cost   *dataset.Table
}

// Params returns a copy of the bound parameter vector.
func (e *Evaluator) Params() []int { return append([]int(nil), e.params...) }

// Key returns the flat configuration key.
func (e *Evaluator) Key() int { return e.key }

// Run returns the selected run index.
func (e *Evaluator) Run() int { return e.run }

// Epoch returns the number of epochs consumed so far.
func (e *Evaluator) Epoch() int { return e.epoch }

// MaxEpoch returns the epoch at which the evaluator is exhausted.
func (e *Evaluator) MaxEpoch() int { return e.max }

// Problem returns the owning problem.
func (e *Evaluator) Problem() *Problem { return e.problem }

// State reports Fresh, InProgress or Exhausted.
func (e *Evaluator) State() State {
	switch {
	case e.epoch == 0:
		return StateFresh
	case e.epoch >= e.max:
		return StateExhausted
	default:
		return StateInProgress
	}
}

// Evaluate advances by budget epochs, clamped to the last epoch, and returns
// the metrics recorded at the new epoch. Values.Cost is the number of epochs
// actually consumed and is smaller than budget when the curve runs out.
//
// A non-positive budget fails with ErrInvalidBudget; calling Evaluate on an
// exhausted evaluator fails with ErrEvaluatorExhausted. Neither changes state.
func (e *Evaluator) Evaluate(budget int) (Values, error) {
	if budget <= 0 {
		return Values{}, fmt.Errorf("%w: got %d", ErrInvalidBudget, budget)
	}
	if e.State() == StateExhausted {
		return Values{}, fmt.Errorf("%w: already at epoch %d", ErrEvaluatorExhausted, e.max)
	}

	next := e.epoch + budget
	if next > e.max || next < e.epoch {
		next = e.max
	}

	out, err := e.read(next)
	if err != nil {
		return Values{}, err
	}
	out.Cost = next - e.epoch
	e.epoch = next
	return out, nil
}

// read returns the values at 1-indexed epoch n.
func (e *Evaluator) read(n int) (Values, error) {
	out := Values{Epoch: n, Metrics: make([]Metric, len(e.tables))}
	for i, tbl := range e.tables {
		v, err := tbl.At(e.run, n-1)
		if err != nil {
			return Values{}, err
		}
		out.Metrics[i] = Metric{Name: e.names[i], Value: v}
	}
	if e.cost != nil {
		v, err := e.cost.At(e.run, n-1)
		if err != nil {
			return Values{}, err
		}
		out.Elapsed = &v
	}
	return out, nil
}

// Trajectory returns the objective for epochs 1..Epoch in order.
func (e *Evaluator) Trajectory() []float64 {
	out := make([]float64, 0, e.epoch)
	for n := 0; n < e.epoch; n++ {
		v, err := e.tables[0].At(e.run, n)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}
