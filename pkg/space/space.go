// Package space describes a discrete hyperparameter search space and maps
// parameter vectors to the flat configuration keys used by a dataset.
//
// Keys are mixed-radix numbers over the dataset's native cardinalities, with
// the first dimension most significant:
//
//	key = ((v0*c1 + v1)*c2 + v2)*c3 + ...
//
// A Space may expose a restricted view of a dimension (see Restrict); caller
// indices are then translated back to dataset indices before encoding, so the
// same configuration always resolves to the same key.
package space

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
)

// ErrInvalidParameter is returned for vectors of the wrong length or with
// out-of-range components.
var ErrInvalidParameter = errors.New("invalid parameter vector")

// Dimension is one discrete axis of the space.
type Dimension struct {
	Name   string
	Values []float64
	Labels []string

	native  int   // cardinality in the dataset
	indices []int // caller index -> dataset index; nil means identity
}

// Cardinality returns the number of valid caller indices.
func (d Dimension) Cardinality() int {
	return len(d.Values)
}

// Categorical reports whether the dimension carries labels.
func (d Dimension) Categorical() bool {
	return len(d.Labels) > 0
}

// Choice returns the label (categorical) or numeric value at caller index i.
func (d Dimension) Choice(i int) any {
	if d.Categorical() {
		return d.Labels[i]
	}
	return d.Values[i]
}

func (d Dimension) datasetIndex(i int) int {
	if d.indices == nil {
		return i
	}
	return d.indices[i]
}

// Space is an immutable ordered list of dimensions.
type Space struct {
	dims []Dimension
	size int
}

// FromDataset derives the space declared by a dataset.
func FromDataset(infos []dataset.DimensionInfo) (*Space, error) {
	if len(infos) == 0 {
		return nil, fmt.Errorf("space needs at least one dimension")
	}
	dims := make([]Dimension, 0, len(infos))
	for _, info := range infos {
		if info.Cardinality() == 0 {
			return nil, fmt.Errorf("dimension %s has no values", info.Name)
		}
		dims = append(dims, Dimension{
			Name:   info.Name,
			Values: append([]float64(nil), info.Values...),
			Labels: append([]string(nil), info.Labels...),
			native: info.Cardinality(),
		})
	}
	return newSpace(dims), nil
}

// New builds a space of unlabeled dimensions with the given cardinalities,
// whose values are the indices themselves.
func New(names []string, cardinalities []int) (*Space, error) {
	if len(names) != len(cardinalities) {
		return nil, fmt.Errorf("%d names for %d cardinalities", len(names), len(cardinalities))
	}
	infos := make([]dataset.DimensionInfo, len(names))
	for i, c := range cardinalities {
		if c <= 0 {
			return nil, fmt.Errorf("dimension %s: cardinality must be positive, got %d", names[i], c)
		}
		values := make([]float64, c)
		for v := range values {
			values[v] = float64(v)
		}
		infos[i] = dataset.DimensionInfo{Name: names[i], Values: values}
	}
	return FromDataset(infos)
}

func newSpace(dims []Dimension) *Space {
	size := 1
	for _, d := range dims {
		size *= d.Cardinality()
	}
	return &Space{dims: dims, size: size}
}

// Len returns the number of dimensions.
func (s *Space) Len() int { return len(s.dims) }

// Size returns the number of distinct configurations in this view.
func (s *Space) Size() int { return s.size }

// Dimensions returns a copy of the dimensions.
func (s *Space) Dimensions() []Dimension {
	return append([]Dimension(nil), s.dims...)
}

// Names returns the dimension names in order.
func (s *Space) Names() []string {
	names := make([]string, len(s.dims))
	for i, d := range s.dims {
		names[i] = d.Name
	}
	return names
}

// Cardinalities returns the caller-visible cardinality of each dimension.
func (s *Space) Cardinalities() []int {
	out := make([]int, len(s.dims))
	for i, d := range s.dims {
		out[i] = d.Cardinality()
	}
	return out
}

// Validate checks length and per-component range.
func (s *Space) Validate(v []int) error {
	if len(v) != len(s.dims) {
		return fmt.Errorf("%w: got %d components, space has %d dimensions", ErrInvalidParameter, len(v), len(s.dims))
	}
	for i, x := range v {
		if c := s.dims[i].Cardinality(); x < 0 || x >= c {
			return fmt.Errorf("%w: %s index %d outside [0, %d)", ErrInvalidParameter, s.dims[i].Name, x, c)
		}
	}
	return nil
}

// Encode maps a valid vector to the dataset's flat configuration key.
func (s *Space) Encode(v []int) (int, error) {
	if err := s.Validate(v); err != nil {
		return 0, err
	}
	key := 0
	for i, d := range s.dims {
		key = key*d.native + d.datasetIndex(v[i])
	}
	return key, nil
}

// Decode is the inverse of Encode. Keys that fall outside a restricted view
// are rejected.
func (s *Space) Decode(key int) ([]int, error) {
	native := 1
	for _, d := range s.dims {
		native *= d.native
	}
	if key < 0 || key >= native {
		return nil, fmt.Errorf("%w: key %d outside [0, %d)", ErrInvalidParameter, key, native)
	}

	v := make([]int, len(s.dims))
	for i := len(s.dims) - 1; i >= 0; i-- {
		d := s.dims[i]
		idx := key % d.native
		key /= d.native

		if d.indices == nil {
			v[i] = idx
			continue
		}
		found := false
		for caller, ds := range d.indices {
			if ds == idx {
				v[i], found = caller, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s dataset index %d is not exposed", ErrInvalidParameter, d.Name, idx)
		}
	}
	return v, nil
}

// Describe maps a valid vector to dimension name -> label or value.
func (s *Space) Describe(v []int) (map[string]any, error) {
	if err := s.Validate(v); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(v))
	for i, d := range s.dims {
		out[d.Name] = d.Choice(v[i])
	}
	return out, nil
}

// Restrict returns a view in which each named dimension only exposes the
// listed dataset indices, in the listed order. Dimensions not named are
// unchanged.
func (s *Space) Restrict(allowed map[string][]int) (*Space, error) {
	byName := make(map[string]int, len(s.dims))
	for i, d := range s.dims {
		byName[d.Name] = i
	}
	for name := range allowed {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("restrict: unknown dimension %s", name)
		}
	}

	dims := make([]Dimension, len(s.dims))
	for i, d := range s.dims {
		list, ok := allowed[d.Name]
		if !ok {
			dims[i] = d
			continue
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("restrict %s: at least one index must be listed", d.Name)
		}

		nd := Dimension{Name: d.Name, native: d.native, indices: make([]int, 0, len(list))}
		seen := make(map[int]bool, len(list))
		for _, caller := range list {
			if caller < 0 || caller >= d.Cardinality() {
				return nil, fmt.Errorf("restrict %s: index %d outside [0, %d)", d.Name, caller, d.Cardinality())
			}
			if seen[caller] {
				return nil, fmt.Errorf("restrict %s: duplicate index %d", d.Name, caller)
			}
			seen[caller] = true

			nd.indices = append(nd.indices, d.datasetIndex(caller))
			nd.Values = append(nd.Values, d.Values[caller])
			if d.Categorical() {
				nd.Labels = append(nd.Labels, d.Labels[caller])
			}
		}
		dims[i] = nd
	}
	return newSpace(dims), nil
}
