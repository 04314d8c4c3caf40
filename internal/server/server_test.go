package server

import (
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset/datasettest"
)

// newTestStore serves a [3, 2] synthetic space with 2 runs and 4 epochs.
func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	return newStoreWith(t, datasettest.Document([]int{3, 2}, 2, 4), session.Limits{})
}

// newStoreWith serves doc with the objective and loss metrics and runtime as
// the cost metric.
func newStoreWith(t *testing.T, doc *dataset.Document, limits session.Limits) *session.Store {
	t.Helper()
	r := benchmark.NewRecipe(datasettest.WriteSQLite(t, doc))
	r.Metrics = []string{datasettest.Objective, datasettest.Loss}
	r.CostMetric = datasettest.Cost
	f, err := r.CreateFactory()
	if err != nil {
		t.Fatalf("CreateFactory: %v", err)
	}
	return session.NewStore(f, limits)
}

// nonFiniteDocument is the [3, 2] space with key 0 holding NaN objectives,
// +Inf losses and a -Inf elapsed cost at epoch 0 of every run, and a NaN
// final-epoch objective.
func nonFiniteDocument() *dataset.Document {
	doc := datasettest.Document([]int{3, 2}, 2, 4)
	for run := 0; run < 2; run++ {
		i := run * 4
		doc.Metrics[datasettest.Objective][i] = math.NaN()
		doc.Metrics[datasettest.Objective][i+3] = math.NaN()
		doc.Metrics[datasettest.Loss][i] = math.Inf(1)
		doc.Metrics[datasettest.Cost][i] = math.Inf(-1)
	}
	return doc
}
