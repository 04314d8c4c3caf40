package benchmark

import (
	"fmt"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/space"
)

// Version is reported in every specification.
const Version = "0.3.0"

// Factory owns one loaded dataset and its parameter space. It is immutable
// and safe for concurrent use; CreateProblem does no I/O.
type Factory struct {
	recipe   Recipe
	store    *dataset.Store
	space    *space.Space
	maxEpoch int
	spec     Specification
}

// CreateProblem binds a seed. Negative seeds are rejected.
func (f *Factory) CreateProblem(seed int64) (*Problem, error) {
	if seed < 0 {
		return nil, fmt.Errorf("%w: %d is negative", ErrInvalidSeed, seed)
	}
	return &Problem{factory: f, seed: seed}, nil
}

// Specification describes the problem for optimizers.
func (f *Factory) Specification() Specification {
	return f.spec.clone()
}

// Space returns the parameter space evaluators are validated against.
func (f *Factory) Space() *space.Space { return f.space }

// Store returns the shared read-only dataset.
func (f *Factory) Store() *dataset.Store { return f.store }

// Recipe returns a copy of the recipe the factory was built from.
func (f *Factory) Recipe() Recipe { return f.recipe.clone() }

// MaxEpoch is the epoch at which evaluators become exhausted.
func (f *Factory) MaxEpoch() int { return f.maxEpoch }

// Specification is the static description of a benchmark problem.
type Specification struct {
	Name   string            `json:"name"`
	Attrs  map[string]string `json:"attrs"`
	Params []ParamSpec       `json:"params"`
	Values []ValueSpec       `json:"values"`
	Steps  int               `json:"steps"`
	Runs   int               `json:"runs"`
}

// ParamSpec describes one discrete parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Categorical bool   `json:"categorical"`
	Choices     []any  `json:"choices"`
}

// ValueSpec describes one returned metric with its observed final-epoch range.
type ValueSpec struct {
	Name   string  `json:"name"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

func (f *Factory) buildSpecification() (Specification, error) {
	spec := Specification{
		Name:  "tabular/" + f.store.Name(),
		Attrs: f.store.Attrs(),
		Steps: f.maxEpoch,
		Runs:  f.store.Runs(),
	}
	delete(spec.Attrs, dataset.AttrName)
	spec.Attrs["version"] = "tabular-bench=" + Version

	for _, d := range f.space.Dimensions() {
		p := ParamSpec{Name: d.Name, Categorical: d.Categorical()}
		for i := 0; i < d.Cardinality(); i++ {
			p.Choices = append(p.Choices, d.Choice(i))
		}
		spec.Params = append(spec.Params, p)
	}

	for _, m := range f.recipe.Metrics {
		sum, err := f.store.Summary(m)
		if err != nil {
			return Specification{}, fmt.Errorf("summarize %s: %w", m, err)
		}
		spec.Values = append(spec.Values, ValueSpec{
			Name:   m,
			Min:    sum.Min,
			Max:    sum.Max,
			Mean:   sum.Mean,
			StdDev: sum.StdDev,
		})
	}
	return spec, nil
}

func (s Specification) clone() Specification {
	c := s
	c.Attrs = make(map[string]string, len(s.Attrs))
	for k, v := range s.Attrs {
		c.Attrs[k] = v
	}
	c.Params = make([]ParamSpec, len(s.Params))
	for i, p := range s.Params {
		p.Choices = append([]any(nil), p.Choices...)
		c.Params[i] = p
	}
	c.Values = append([]ValueSpec(nil), s.Values...)
	return c
}
