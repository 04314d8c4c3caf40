package benchmark_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
)

func TestValuesJSONNonFinite(t *testing.T) {
	elapsed := math.Inf(-1)
	in := benchmark.Values{
		Epoch: 2,
		Cost:  1,
		Metrics: []benchmark.Metric{
			{Name: "valid_mse", Value: math.NaN()},
			{Name: "valid_loss", Value: math.Inf(1)},
			{Name: "train_mse", Value: 0.25},
		},
		Elapsed: &elapsed,
	}

	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"epoch":2,"cost":1,"metrics":[{"name":"valid_mse","value":"NaN"},{"name":"valid_loss","value":"+Inf"},{"name":"train_mse","value":0.25}],"elapsed":"-Inf"}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}

	var out benchmark.Values
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Epoch != 2 || out.Cost != 1 || len(out.Metrics) != 3 {
		t.Fatalf("unexpected values %+v", out)
	}
	if !math.IsNaN(out.Objective()) {
		t.Fatalf("expected NaN objective, got %v", out.Objective())
	}
	if v, _ := out.Get("valid_loss"); !math.IsInf(v, 1) {
		t.Fatalf("expected +Inf, got %v", v)
	}
	if v, _ := out.Get("train_mse"); v != 0.25 {
		t.Fatalf("expected 0.25, got %v", v)
	}
	if out.Elapsed == nil || !math.IsInf(*out.Elapsed, -1) {
		t.Fatalf("expected -Inf elapsed, got %v", out.Elapsed)
	}

	out = benchmark.Values{}
	if err := json.Unmarshal([]byte(`{"epoch":1,"cost":1,"metrics":[]}`), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Elapsed != nil {
		t.Fatalf("absent elapsed must stay nil, got %v", *out.Elapsed)
	}
	if b, _ := json.Marshal(out); strings.Contains(string(b), "elapsed") {
		t.Fatalf("nil elapsed must be omitted: %s", b)
	}
}

func TestValueSpecJSONNonFinite(t *testing.T) {
	in := benchmark.ValueSpec{Name: "valid_mse", Min: math.Inf(-1), Max: 3, Mean: math.NaN(), StdDev: math.NaN()}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out benchmark.ValueSpec
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal %s: %v", b, err)
	}
	if out.Name != in.Name || !math.IsInf(out.Min, -1) || out.Max != 3 || !math.IsNaN(out.Mean) || !math.IsNaN(out.StdDev) {
		t.Fatalf("unexpected round trip %+v from %s", out, b)
	}
}

func TestFloatRejectsGarbage(t *testing.T) {
	var f benchmark.Float
	if err := json.Unmarshal([]byte(`"fast"`), &f); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
	if err := json.Unmarshal([]byte(`true`), &f); err == nil {
		t.Fatal("expected error for boolean")
	}
}
