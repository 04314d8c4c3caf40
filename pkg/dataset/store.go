package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Names used inside a container to describe a tabular benchmark.
const (
	AttrName        = "name"
	AttrDimensions  = "dimensions"
	DimensionPrefix = "dimension/"
	MetricPrefix    = "metric/"
	LabelsSuffix    = "/labels"
)

// descriptiveAttrs are copied from the container into Store.Attrs.
var descriptiveAttrs = []string{AttrName, "paper", "github", "version", "description"}

// maxParallelLoads bounds concurrent metric array reads.
const maxParallelLoads = 4

// DimensionInfo is the stored description of one hyperparameter axis.
type DimensionInfo struct {
	Name   string
	Values []float64
	Labels []string // optional; same length as Values when set
}

// Cardinality returns the number of valid indices.
func (d DimensionInfo) Cardinality() int {
	return len(d.Values)
}

// Label returns the categorical label for index i, or the formatted value.
func (d DimensionInfo) Label(i int) string {
	if i < 0 || i >= len(d.Values) {
		return ""
	}
	if len(d.Labels) > 0 {
		return d.Labels[i]
	}
	return fmt.Sprintf("%g", d.Values[i])
}

// LoadOptions selects what to read from a container.
type LoadOptions struct {
	// Metrics to load. Empty means every metric array in the container.
	Metrics []string
}

// Store is an immutable, fully indexed tabular benchmark. All methods are
// safe for concurrent use.
type Store struct {
	name    string
	attrs   map[string]string
	dims    []DimensionInfo
	configs int
	runs    int
	epochs  int
	metrics map[string]*Array
}

// Open reads a sqlite dataset file eagerly and closes it.
func Open(ctx context.Context, path string, opts LoadOptions) (*Store, error) {
	c, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDataAccess, path, err)
	}
	defer c.Close()

	s, err := Load(ctx, c, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if s.name == "" {
		s.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Load builds a Store from a container. Every failure wraps ErrDataAccess.
func Load(ctx context.Context, c Container, opts LoadOptions) (*Store, error) {
	s := &Store{attrs: make(map[string]string)}
	for _, name := range descriptiveAttrs {
		if v, ok := c.Attr(name); ok {
			s.attrs[name] = v
		}
	}
	s.name = s.attrs[AttrName]

	if err := s.loadDimensions(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataAccess, err)
	}
	if err := s.loadMetrics(ctx, c, opts.Metrics); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataAccess, err)
	}

	logger.Component("dataset").Info("dataset loaded",
		"name", s.name,
		"dimensions", len(s.dims),
		"configs", s.configs,
		"runs", s.runs,
		"epochs", s.epochs,
		"metrics", s.MetricNames())
	return s, nil
}

func (s *Store) loadDimensions(ctx context.Context, c Container) error {
	raw, ok := c.Attr(AttrDimensions)
	if !ok {
		return fmt.Errorf("missing %q attribute", AttrDimensions)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return fmt.Errorf("decode %q attribute: %w", AttrDimensions, err)
	}
	if len(names) == 0 {
		return fmt.Errorf("at least one dimension must be declared")
	}

	seen := make(map[string]bool)
	s.configs = 1
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("dimension name cannot be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate dimension: %s", name)
		}
		seen[name] = true

		values, err := c.Array(ctx, DimensionPrefix+name)
		if err != nil {
			return fmt.Errorf("dimension %s: %w", name, err)
		}
		if values.Rank() != 1 {
			return fmt.Errorf("dimension %s: expected 1-D values, got shape %v", name, values.Shape)
		}
		for _, v := range values.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("dimension %s: non-finite value %v", name, v)
			}
		}
		dim := DimensionInfo{Name: name, Values: append([]float64(nil), values.Data...)}

		if rawLabels, ok := c.Attr(DimensionPrefix + name + LabelsSuffix); ok {
			if err := json.Unmarshal([]byte(rawLabels), &dim.Labels); err != nil {
				return fmt.Errorf("dimension %s: decode labels: %w", name, err)
			}
			if len(dim.Labels) != len(dim.Values) {
				return fmt.Errorf("dimension %s: %d labels for %d values", name, len(dim.Labels), len(dim.Values))
			}
		}

		s.dims = append(s.dims, dim)
		s.configs *= dim.Cardinality()
	}
	return nil
}

func (s *Store) loadMetrics(ctx context.Context, c Container, wanted []string) error {
	if len(wanted) == 0 {
		for _, name := range c.ArrayNames() {
			if strings.HasPrefix(name, MetricPrefix) {
				wanted = append(wanted, strings.TrimPrefix(name, MetricPrefix))
			}
		}
	}
	if len(wanted) == 0 {
		return fmt.Errorf("container holds no %s arrays", MetricPrefix)
	}

	loaded := make([]*Array, len(wanted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, name := range wanted {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := c.Array(gctx, MetricPrefix+name)
			if err != nil {
				return fmt.Errorf("metric %s: %w", name, err)
			}
			loaded[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.metrics = make(map[string]*Array, len(wanted))
	for i, name := range wanted {
		a := loaded[i]
		if a.Rank() != 3 {
			return fmt.Errorf("metric %s: expected shape [configs, runs, epochs], got %v", name, a.Shape)
		}
		if a.Shape[0] != s.configs {
			return fmt.Errorf("metric %s: %d configurations stored, dimensions describe %d", name, a.Shape[0], s.configs)
		}
		if i == 0 {
			s.runs, s.epochs = a.Shape[1], a.Shape[2]
		} else if a.Shape[1] != s.runs || a.Shape[2] != s.epochs {
			return fmt.Errorf("metric %s: shape %v disagrees with [%d, %d, %d]", name, a.Shape, s.configs, s.runs, s.epochs)
		}
		s.metrics[name] = a
	}
	return nil
}

// Name returns the dataset name.
func (s *Store) Name() string { return s.name }

// Attrs returns a copy of the descriptive attributes (name, paper, github, ...).
func (s *Store) Attrs() map[string]string {
	out := make(map[string]string, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// Dimensions returns the dimension metadata in encoding order.
func (s *Store) Dimensions() []DimensionInfo {
	return append([]DimensionInfo(nil), s.dims...)
}

// Configs returns the number of stored configurations.
func (s *Store) Configs() int { return s.configs }

// Runs returns the number of repeated runs per configuration.
func (s *Store) Runs() int { return s.runs }

// Epochs returns the number of recorded epochs per run.
func (s *Store) Epochs() int { return s.epochs }

// MetricNames returns the loaded metrics, sorted.
func (s *Store) MetricNames() []string {
	names := make([]string, 0, len(s.metrics))
	for name := range s.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasMetric reports whether a metric was loaded.
func (s *Store) HasMetric(name string) bool {
	_, ok := s.metrics[name]
	return ok
}

// Lookup returns the [runs, epochs] table of one metric for one configuration key.
func (s *Store) Lookup(metric string, key int) (Table, error) {
	a, ok := s.metrics[metric]
	if !ok {
		return Table{}, fmt.Errorf("%w: metric %s is not loaded", ErrKeyNotFound, metric)
	}
	if key < 0 || key >= s.configs {
		return Table{}, fmt.Errorf("%w: key %d outside [0, %d)", ErrKeyNotFound, key, s.configs)
	}
	stride := s.runs * s.epochs
	return Table{
		Metric: metric,
		Key:    key,
		runs:   s.runs,
		epochs: s.epochs,
		data:   a.Data[key*stride : (key+1)*stride],
	}, nil
}

// Summary describes the final-epoch values of one metric over all configurations and runs.
type Summary struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary computes final-epoch statistics for a metric.
func (s *Store) Summary(metric string) (Summary, error) {
	a, ok := s.metrics[metric]
	if !ok {
		return Summary{}, fmt.Errorf("%w: metric %s is not loaded", ErrKeyNotFound, metric)
	}

	final := make([]float64, 0, s.configs*s.runs)
	for i := s.epochs - 1; i < len(a.Data); i += s.epochs {
		final = append(final, a.Data[i])
	}

	mean, std := stat.MeanStdDev(final, nil)
	return Summary{
		Metric: metric,
		Count:  len(final),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(final),
		Max:    floats.Max(final),
	}, nil
}

// Table is a read-only [runs, epochs] view into a metric array.
type Table struct {
	Metric string
	Key    int
	runs   int
	epochs int
	data   []float64
}

// Runs returns the number of runs in the table.
func (t Table) Runs() int { return t.runs }

// Epochs returns the number of epochs in the table.
func (t Table) Epochs() int { return t.epochs }

// At returns the value recorded for run at the 0-indexed epoch.
func (t Table) At(run, epoch int) (float64, error) {
	if run < 0 || run >= t.runs {
		return 0, fmt.Errorf("%w: run %d outside [0, %d)", ErrKeyNotFound, run, t.runs)
	}
	if epoch < 0 || epoch >= t.epochs {
		return 0, fmt.Errorf("%w: epoch %d outside [0, %d)", ErrKeyNotFound, epoch, t.epochs)
	}
	return t.data[run*t.epochs+epoch], nil
}

// Run returns a copy of the full curve of one run.
func (t Table) Run(run int) ([]float64, error) {
	if run < 0 || run >= t.runs {
		return nil, fmt.Errorf("%w: run %d outside [0, %d)", ErrKeyNotFound, run, t.runs)
	}
	return append([]float64(nil), t.data[run*t.epochs:(run+1)*t.epochs]...), nil
}
