package benchmark

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/config"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/space"
)

// Recipe is the immutable description of a benchmark problem. Creating a
// recipe does no I/O; CreateFactory is where the dataset is read.
type Recipe struct {
	// Path to the sqlite dataset file.
	Path string
	// Metrics returned by Evaluate, in order. The first is the objective.
	Metrics []string
	// CostMetric optionally names a cumulative wall-clock metric reported as
	// Values.Elapsed.
	CostMetric string
	// MaxEpochs caps the replayed curve length; 0 uses every stored epoch.
	MaxEpochs int
	// Restrict exposes only the listed dataset indices of a dimension.
	Restrict map[string][]int
}

// NewRecipe returns a recipe for path with the default objective metric.
func NewRecipe(path string) Recipe {
	return Recipe{Path: path, Metrics: []string{config.DefaultMetric}}
}

// RecipeFromConfig converts the YAML form of a recipe.
func RecipeFromConfig(c config.Recipe) Recipe {
	r := Recipe{
		Path:       c.Dataset,
		Metrics:    append([]string(nil), c.Metrics...),
		CostMetric: c.CostMetric,
		MaxEpochs:  c.MaxEpochs,
	}
	if len(c.Restrict) > 0 {
		r.Restrict = make(map[string][]int, len(c.Restrict))
		for k, v := range c.Restrict {
			r.Restrict[k] = append([]int(nil), v...)
		}
	}
	if len(r.Metrics) == 0 {
		r.Metrics = []string{config.DefaultMetric}
	}
	return r
}

// LoadRecipe reads a YAML recipe file.
func LoadRecipe(path string) (Recipe, error) {
	c, err := config.LoadRecipe(path)
	if err != nil {
		return Recipe{}, err
	}
	return RecipeFromConfig(*c), nil
}

// CreateFactory loads the dataset and derives the parameter space.
func (r Recipe) CreateFactory() (*Factory, error) {
	return r.CreateFactoryContext(context.Background())
}

// CreateFactoryContext is CreateFactory with a context for the dataset read.
// Every failure wraps ErrDataAccess and no partial factory is returned.
func (r Recipe) CreateFactoryContext(ctx context.Context) (*Factory, error) {
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid recipe: %w", ErrDataAccess, err)
	}

	store, err := dataset.Open(ctx, r.Path, dataset.LoadOptions{Metrics: r.loadMetrics()})
	if err != nil {
		return nil, err
	}

	sp, err := space.FromDataset(store.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("%w: derive space: %w", ErrDataAccess, err)
	}
	if len(r.Restrict) > 0 {
		if sp, err = sp.Restrict(r.Restrict); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDataAccess, err)
		}
	}

	maxEpoch := store.Epochs()
	if r.MaxEpochs > 0 {
		if r.MaxEpochs > maxEpoch {
			return nil, fmt.Errorf("%w: max_epochs %d exceeds the %d stored epochs", ErrDataAccess, r.MaxEpochs, maxEpoch)
		}
		maxEpoch = r.MaxEpochs
	}

	f := &Factory{
		recipe:   r.clone(),
		store:    store,
		space:    sp,
		maxEpoch: maxEpoch,
	}
	if f.spec, err = f.buildSpecification(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataAccess, err)
	}

	logger.Component("benchmark").Info("factory created",
		"dataset", r.Path,
		"problem", f.spec.Name,
		"dimensions", sp.Len(),
		"configurations", sp.Size(),
		"runs", store.Runs(),
		"max_epoch", maxEpoch)
	return f, nil
}

func (r Recipe) validate() error {
	if r.Path == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if len(r.Metrics) == 0 {
		return fmt.Errorf("at least one metric is required")
	}
	seen := make(map[string]bool)
	for _, m := range r.Metrics {
		if m == "" {
			return fmt.Errorf("metric name cannot be empty")
		}
		if seen[m] {
			return fmt.Errorf("duplicate metric: %s", m)
		}
		seen[m] = true
	}
	if r.MaxEpochs < 0 {
		return fmt.Errorf("max_epochs cannot be negative, got %d", r.MaxEpochs)
	}
	return nil
}

// loadMetrics lists every metric array the factory needs.
func (r Recipe) loadMetrics() []string {
	out := append([]string(nil), r.Metrics...)
	if r.CostMetric == "" {
		return out
	}
	for _, m := range out {
		if m == r.CostMetric {
			return out
		}
	}
	return append(out, r.CostMetric)
}

func (r Recipe) clone() Recipe {
	c := r
	c.Metrics = append([]string(nil), r.Metrics...)
	if r.Restrict != nil {
		c.Restrict = make(map[string][]int, len(r.Restrict))
		for k, v := range r.Restrict {
			c.Restrict[k] = append([]int(nil), v...)
		}
	}
	return c
}
