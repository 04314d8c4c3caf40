//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/server"
	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/internal/telemetry"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/config"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset/datasettest"
)

// startDaemon wires a config file through to a live HTTP listener the way
// tabbenchd does.
func startDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	db := datasettest.WriteSQLite(t, datasettest.FCNetDocument(2, 6))
	cfgPath := filepath.Join(filepath.Dir(db), "tabbenchd.yaml")
	content := `
log_level: warn
recipe:
  dataset: ` + filepath.Base(db) + `
  metrics: [valid_mse, valid_loss]
  cost_metric: runtime
sessions:
  max_evaluators: 2
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	f, err := benchmark.RecipeFromConfig(cfg.Recipe).CreateFactory()
	if err != nil {
		t.Fatalf("CreateFactory: %v", err)
	}

	provider, err := telemetry.NewPrometheus("tabbenchd-integration")
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	meters, err := telemetry.New(provider)
	if err != nil {
		t.Fatalf("telemetry.New: %v", err)
	}

	store := session.NewStore(f, session.Limits{
		MaxProblems:   cfg.Sessions.MaxProblems,
		MaxEvaluators: cfg.Sessions.MaxEvaluators,
	})
	store.SetObserver(meters)
	api := server.NewHTTPServer(store)
	api.Handle("/metrics", provider.Handler())

	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestIntegration_HTTPEndpoints_FullLifecycle(t *testing.T) {
	ts := startDaemon(t)

	var spec benchmark.Specification
	if code := call(t, http.MethodGet, ts.URL+"/v1/spec", nil, &spec); code != http.StatusOK {
		t.Fatalf("spec: %d", code)
	}
	if len(spec.Params) != 9 || spec.Runs != 2 || spec.Steps != 6 || len(spec.Values) != 2 {
		t.Fatalf("unexpected spec %+v", spec)
	}

	var prob struct {
		Problem struct {
			ID string `json:"id"`
		} `json:"problem"`
	}
	if code := call(t, http.MethodPost, ts.URL+"/v1/problems", map[string]any{"seed": 2024}, &prob); code != http.StatusCreated {
		t.Fatalf("create problem: %d", code)
	}

	vector := []int{0, 1, 2, 0, 1, 2, 0, 4, 5}
	var created struct {
		Evaluator session.View `json:"evaluator"`
	}
	if code := call(t, http.MethodPost, ts.URL+"/v1/problems/"+prob.Problem.ID+"/evaluators", map[string]any{"params": vector}, &created); code != http.StatusCreated {
		t.Fatalf("create evaluator: %d", code)
	}
	ev := created.Evaluator

	epochs := 0
	for step := 0; ; step++ {
		var res struct {
			Values benchmark.Values `json:"values"`
		}
		code := call(t, http.MethodPost, ts.URL+"/v1/evaluators/"+ev.ID+":evaluate", map[string]any{"budget": 4}, &res)
		if code == http.StatusConflict {
			break
		}
		if code != http.StatusOK {
			t.Fatalf("evaluate step %d: %d", step, code)
		}
		if res.Values.Epoch <= epochs {
			t.Fatalf("epoch went from %d to %d", epochs, res.Values.Epoch)
		}
		epochs = res.Values.Epoch
		if want := datasettest.Value(ev.Key, ev.Run, epochs-1); res.Values.Objective() != want {
			t.Fatalf("epoch %d: expected %v, got %v", epochs, want, res.Values.Objective())
		}
		if res.Values.Elapsed == nil || *res.Values.Elapsed != datasettest.Elapsed(ev.Run, epochs-1) {
			t.Fatalf("epoch %d: unexpected elapsed %v", epochs, res.Values.Elapsed)
		}
	}
	if epochs != 6 {
		t.Fatalf("expected to stop at epoch 6, got %d", epochs)
	}

	// The evaluator limit is 2.
	var second struct {
		Evaluator session.View `json:"evaluator"`
	}
	if code := call(t, http.MethodPost, ts.URL+"/v1/problems/"+prob.Problem.ID+"/evaluators", map[string]any{"params": vector}, &second); code != http.StatusCreated {
		t.Fatalf("second evaluator: %d", code)
	}
	if second.Evaluator.Run != ev.Run || second.Evaluator.Key != ev.Key {
		t.Fatalf("same seed and vector must replay the same run")
	}
	if code := call(t, http.MethodPost, ts.URL+"/v1/problems/"+prob.Problem.ID+"/evaluators", map[string]any{"params": vector}, nil); code != http.StatusTooManyRequests {
		t.Fatalf("third evaluator: expected 429, got %d", code)
	}
	if code := call(t, http.MethodDelete, ts.URL+"/v1/evaluators/"+ev.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("drop: %d", code)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"problems", "evaluations", "epochs"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %s in /metrics output", want)
		}
	}
}
