package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Document is the JSON interchange form of a tabular benchmark, used to
// import curves produced elsewhere into a container.
//
// Metric data is flattened row-major over [configs, runs, epochs], with the
// configuration axis ordered by the mixed-radix key of the dimensions.
type Document struct {
	Name       string               `json:"name"`
	Attrs      map[string]string    `json:"attrs,omitempty"`
	Dimensions []DocumentDimension  `json:"dimensions"`
	Runs       int                  `json:"runs"`
	Epochs     int                  `json:"epochs"`
	Metrics    map[string][]float64 `json:"metrics"`
}

// DocumentDimension describes one axis in a Document.
type DocumentDimension struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
	Labels []string  `json:"labels,omitempty"`
}

// ReadDocument decodes and validates a JSON document.
func ReadDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dataset document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Configs returns the product of the dimension cardinalities.
func (d *Document) Configs() int {
	n := 1
	for _, dim := range d.Dimensions {
		n *= len(dim.Values)
	}
	return n
}

// Validate checks the document is internally consistent.
func (d *Document) Validate() error {
	if len(d.Dimensions) == 0 {
		return fmt.Errorf("document declares no dimensions")
	}
	for _, dim := range d.Dimensions {
		if dim.Name == "" {
			return fmt.Errorf("dimension name cannot be empty")
		}
		if len(dim.Values) == 0 {
			return fmt.Errorf("dimension %s has no values", dim.Name)
		}
		for _, v := range dim.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("dimension %s: non-finite value %v", dim.Name, v)
			}
		}
		if len(dim.Labels) > 0 && len(dim.Labels) != len(dim.Values) {
			return fmt.Errorf("dimension %s: %d labels for %d values", dim.Name, len(dim.Labels), len(dim.Values))
		}
	}
	for name := range d.Attrs {
		if reservedAttr(name) {
			return fmt.Errorf("attr %q is reserved for the container layout", name)
		}
	}
	if d.Runs <= 0 || d.Epochs <= 0 {
		return fmt.Errorf("runs and epochs must be positive, got %d and %d", d.Runs, d.Epochs)
	}
	if len(d.Metrics) == 0 {
		return fmt.Errorf("document holds no metrics")
	}
	want := d.Configs() * d.Runs * d.Epochs
	for name, data := range d.Metrics {
		if len(data) != want {
			return fmt.Errorf("metric %s: %d values, want %d", name, len(data), want)
		}
	}
	return nil
}

func reservedAttr(name string) bool {
	return name == "" || name == AttrName || name == AttrDimensions ||
		strings.HasPrefix(name, DimensionPrefix) || strings.HasPrefix(name, MetricPrefix)
}

// WriteTo stores the document in w using the container layout read by Load.
func (d *Document) WriteTo(w ArrayWriter) error {
	if err := d.Validate(); err != nil {
		return err
	}

	names := make([]string, 0, len(d.Dimensions))
	for _, dim := range d.Dimensions {
		names = append(names, dim.Name)
		if err := w.PutArray(DimensionPrefix+dim.Name, &Array{Shape: []int{len(dim.Values)}, Data: dim.Values}); err != nil {
			return err
		}
		if len(dim.Labels) > 0 {
			labels, err := json.Marshal(dim.Labels)
			if err != nil {
				return err
			}
			if err := w.SetAttr(DimensionPrefix+dim.Name+LabelsSuffix, string(labels)); err != nil {
				return err
			}
		}
	}
	rawNames, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := w.SetAttr(AttrDimensions, string(rawNames)); err != nil {
		return err
	}

	metricNames := make([]string, 0, len(d.Metrics))
	for name := range d.Metrics {
		metricNames = append(metricNames, name)
	}
	sort.Strings(metricNames)
	for _, name := range metricNames {
		a := &Array{Shape: []int{d.Configs(), d.Runs, d.Epochs}, Data: d.Metrics[name]}
		if err := w.PutArray(MetricPrefix+name, a); err != nil {
			return err
		}
	}

	if d.Name != "" {
		if err := w.SetAttr(AttrName, d.Name); err != nil {
			return err
		}
	}
	for k, v := range d.Attrs {
		if err := w.SetAttr(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Container returns the document as an in-memory container.
func (d *Document) Container() (*MemoryContainer, error) {
	c := NewMemoryContainer()
	if err := d.WriteTo(c); err != nil {
		return nil, err
	}
	return c, nil
}
