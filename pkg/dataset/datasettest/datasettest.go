// Package datasettest builds small synthetic tabular benchmarks for tests.
package datasettest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
)

// Metric names written by Document.
const (
	Objective = "valid_mse"
	Loss      = "valid_loss"
	Cost      = "runtime"
)

// Value is the synthetic objective stored at (key, run, 0-indexed epoch).
// Every cell is distinct as long as runs and epochs stay below 100.
func Value(key, run, epoch int) float64 {
	return float64(key*10000 + run*100 + epoch)
}

// LossValue is the synthetic co-observed loss.
func LossValue(key, run, epoch int) float64 {
	return -Value(key, run, epoch)
}

// Elapsed is the synthetic cumulative wall-clock cost after epoch+1 epochs.
func Elapsed(run, epoch int) float64 {
	return float64(epoch+1) * (1.5 + float64(run))
}

// Document returns a dataset with dimensions d0, d1, ... of the given
// cardinalities, filled with Value, LossValue and Elapsed.
func Document(cardinalities []int, runs, epochs int) *dataset.Document {
	doc := &dataset.Document{
		Name:   "synthetic",
		Attrs:  map[string]string{"paper": "synthetic curves"},
		Runs:   runs,
		Epochs: epochs,
	}
	for i, c := range cardinalities {
		dim := dataset.DocumentDimension{Name: fmt.Sprintf("d%d", i)}
		for v := 0; v < c; v++ {
			dim.Values = append(dim.Values, float64(v))
		}
		doc.Dimensions = append(doc.Dimensions, dim)
	}
	fill(doc)
	return doc
}

// FCNetDocument returns the nine-dimension fcnet tabular layout with
// synthetic curves.
func FCNetDocument(runs, epochs int) *dataset.Document {
	doc := &dataset.Document{
		Name: "fcnet_synthetic",
		Attrs: map[string]string{
			"paper":  "Klein, Aaron, and Frank Hutter. \"Tabular Benchmarks for Joint Architecture and Hyperparameter Optimization.\" arXiv preprint arXiv:1905.04970 (2019).",
			"github": "https://github.com/automl/nas_benchmarks",
		},
		Runs:   runs,
		Epochs: epochs,
		Dimensions: []dataset.DocumentDimension{
			{Name: "activation_fn_1", Values: []float64{0, 1}, Labels: []string{"tanh", "relu"}},
			{Name: "activation_fn_2", Values: []float64{0, 1}, Labels: []string{"tanh", "relu"}},
			{Name: "batch_size", Values: []float64{8, 16, 32, 64}},
			{Name: "dropout_1", Values: []float64{0.0, 0.3, 0.6}},
			{Name: "dropout_2", Values: []float64{0.0, 0.3, 0.6}},
			{Name: "init_lr", Values: []float64{5e-4, 1e-3, 5e-3, 1e-2, 5e-2, 1e-1}},
			{Name: "lr_schedule", Values: []float64{0, 1}, Labels: []string{"cosine", "const"}},
			{Name: "n_units_1", Values: []float64{16, 32, 64, 128, 256, 512}},
			{Name: "n_units_2", Values: []float64{16, 32, 64, 128, 256, 512}},
		},
	}
	fill(doc)
	return doc
}

func fill(doc *dataset.Document) {
	configs := doc.Configs()
	n := configs * doc.Runs * doc.Epochs
	objective := make([]float64, 0, n)
	loss := make([]float64, 0, n)
	cost := make([]float64, 0, n)
	for key := 0; key < configs; key++ {
		for run := 0; run < doc.Runs; run++ {
			for epoch := 0; epoch < doc.Epochs; epoch++ {
				objective = append(objective, Value(key, run, epoch))
				loss = append(loss, LossValue(key, run, epoch))
				cost = append(cost, Elapsed(run, epoch))
			}
		}
	}
	doc.Metrics = map[string][]float64{
		Objective: objective,
		Loss:      loss,
		Cost:      cost,
	}
}

// WriteSQLite stores doc in a sqlite file under t.TempDir and returns its path.
func WriteSQLite(t testing.TB, doc *dataset.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), doc.Name+".db")

	w, err := dataset.CreateSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("create sqlite dataset: %v", err)
	}
	if err := doc.WriteTo(w); err != nil {
		_ = w.Close()
		t.Fatalf("write dataset: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close dataset: %v", err)
	}
	return path
}
