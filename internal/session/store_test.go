package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset/datasettest"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/utils"
)

type countingObserver struct {
	mu                                  sync.Mutex
	problems, evaluators, dropped, errs int
	problemsDropped, epochs             int
}

func (o *countingObserver) ProblemCreated() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.problems++
}

func (o *countingObserver) ProblemDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.problemsDropped++
}

func (o *countingObserver) EvaluatorCreated() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evaluators++
}

func (o *countingObserver) EvaluatorDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped++
}

func (o *countingObserver) Evaluated(cost int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.epochs += cost
	if err != nil {
		o.errs++
	}
}

func newTestStore(t *testing.T, limits Limits) *Store {
	t.Helper()
	path := datasettest.WriteSQLite(t, datasettest.Document([]int{3, 2}, 2, 4))
	f, err := benchmark.NewRecipe(path).CreateFactory()
	if err != nil {
		t.Fatalf("CreateFactory: %v", err)
	}
	return NewStore(f, limits)
}

func TestStoreProblemLifecycle(t *testing.T) {
	store := newTestStore(t, Limits{})

	rec, err := store.CreateProblem(42)
	if err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}
	if !utils.HasPrefix(rec.ID, utils.ProblemIDPrefix) {
		t.Fatalf("unexpected problem id %q", rec.ID)
	}
	if rec.Seed() != 42 {
		t.Fatalf("expected seed 42, got %d", rec.Seed())
	}

	got, err := store.GetProblem(rec.ID)
	if err != nil || got != rec {
		t.Fatalf("GetProblem: %v", err)
	}
	if _, err := store.GetProblem("prb-missing"); !errors.Is(err, ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound, got %v", err)
	}
	if _, err := store.CreateProblem(-3); !errors.Is(err, benchmark.ErrInvalidSeed) {
		t.Fatalf("expected ErrInvalidSeed, got %v", err)
	}
}

func TestStoreListProblemsLimit(t *testing.T) {
	store := newTestStore(t, Limits{})
	for i := 0; i < 5; i++ {
		if _, err := store.CreateProblem(int64(i)); err != nil {
			t.Fatalf("CreateProblem: %v", err)
		}
	}
	if got := store.ListProblems(3); len(got) != 3 {
		t.Fatalf("expected 3 problems, got %d", len(got))
	}
	if got := store.ListProblems(0); len(got) != 5 {
		t.Fatalf("expected default limit to return all 5, got %d", len(got))
	}
}

func TestStoreEvaluatorLifecycle(t *testing.T) {
	store := newTestStore(t, Limits{})
	obs := &countingObserver{}
	store.SetObserver(obs)

	prob, _ := store.CreateProblem(1)
	rec, err := store.CreateEvaluator(prob.ID, []int{2, 1})
	if err != nil {
		t.Fatalf("CreateEvaluator: %v", err)
	}
	if !utils.HasPrefix(rec.ID, utils.EvaluatorIDPrefix) || rec.ProblemID != prob.ID {
		t.Fatalf("unexpected record %+v", rec)
	}

	view := rec.Snapshot()
	if view.State != "fresh" || view.Epoch != 0 || view.MaxEpoch != 4 || view.Key != 5 {
		t.Fatalf("unexpected fresh view %+v", view)
	}

	view, vals, err := store.Evaluate(rec.ID, 3)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if vals.Epoch != 3 || view.Epoch != 3 || view.State != "in_progress" || len(view.Trajectory) != 3 {
		t.Fatalf("unexpected view after evaluate %+v / %+v", view, vals)
	}
	if want := datasettest.Value(5, view.Run, 2); vals.Objective() != want {
		t.Fatalf("expected %v, got %v", want, vals.Objective())
	}

	if _, _, err := store.Evaluate(rec.ID, 5); err != nil {
		t.Fatalf("Evaluate to end: %v", err)
	}
	if _, _, err := store.Evaluate(rec.ID, 1); !errors.Is(err, benchmark.ErrEvaluatorExhausted) {
		t.Fatalf("expected ErrEvaluatorExhausted, got %v", err)
	}

	if err := store.DropEvaluator(rec.ID); err != nil {
		t.Fatalf("DropEvaluator: %v", err)
	}
	if err := store.DropEvaluator(rec.ID); !errors.Is(err, ErrEvaluatorNotFound) {
		t.Fatalf("expected ErrEvaluatorNotFound on second drop, got %v", err)
	}
	if _, _, err := store.Evaluate(rec.ID, 1); !errors.Is(err, ErrEvaluatorNotFound) {
		t.Fatalf("expected ErrEvaluatorNotFound, got %v", err)
	}

	if obs.problems != 1 || obs.evaluators != 1 || obs.dropped != 1 || obs.epochs != 4 || obs.errs != 1 {
		t.Fatalf("unexpected observer counts %+v", obs)
	}
}

func TestStoreCreateEvaluatorErrors(t *testing.T) {
	store := newTestStore(t, Limits{})
	if _, err := store.CreateEvaluator("prb-missing", []int{0, 0}); !errors.Is(err, ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound, got %v", err)
	}
	prob, _ := store.CreateProblem(0)
	if _, err := store.CreateEvaluator(prob.ID, []int{3, 0}); !errors.Is(err, benchmark.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, n := store.Len(); n != 0 {
		t.Fatalf("failed creations must not register evaluators, have %d", n)
	}
}

func TestStoreEvaluatorLimit(t *testing.T) {
	store := newTestStore(t, Limits{MaxEvaluators: 2})
	prob, _ := store.CreateProblem(0)

	first, err := store.CreateEvaluator(prob.ID, []int{0, 0})
	if err != nil {
		t.Fatalf("CreateEvaluator: %v", err)
	}
	if _, err := store.CreateEvaluator(prob.ID, []int{0, 1}); err != nil {
		t.Fatalf("CreateEvaluator: %v", err)
	}
	if _, err := store.CreateEvaluator(prob.ID, []int{1, 1}); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	if err := store.DropEvaluator(first.ID); err != nil {
		t.Fatalf("DropEvaluator: %v", err)
	}
	if _, err := store.CreateEvaluator(prob.ID, []int{1, 1}); err != nil {
		t.Fatalf("expected room after drop: %v", err)
	}
}

func TestStoreConcurrentEvaluateSerializes(t *testing.T) {
	store := newTestStore(t, Limits{})
	prob, _ := store.CreateProblem(9)
	rec, _ := store.CreateEvaluator(prob.ID, []int{1, 0})

	var wg sync.WaitGroup
	var mu sync.Mutex
	total, exhausted := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, v, err := store.Evaluate(rec.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				total += v.Cost
			case errors.Is(err, benchmark.ErrEvaluatorExhausted):
				exhausted++
			default:
				t.Errorf("Evaluate: %v", err)
			}
		}()
	}
	wg.Wait()

	if total != 4 || exhausted != 4 {
		t.Fatalf("expected 4 epochs consumed and 4 exhausted calls, got %d and %d", total, exhausted)
	}
	if rec.Snapshot().Epoch != 4 {
		t.Fatalf("expected epoch 4, got %d", rec.Snapshot().Epoch)
	}
}

func TestStoreProblemLimit(t *testing.T) {
	store := newTestStore(t, Limits{MaxProblems: 2})
	first, err := store.CreateProblem(0)
	if err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}
	if _, err := store.CreateProblem(1); err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}
	if _, err := store.CreateProblem(2); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}

	if err := store.DropProblem(first.ID); err != nil {
		t.Fatalf("DropProblem: %v", err)
	}
	if _, err := store.CreateProblem(2); err != nil {
		t.Fatalf("expected room after drop: %v", err)
	}
}

func TestStoreDropProblemReleasesEvaluators(t *testing.T) {
	store := newTestStore(t, Limits{})
	obs := &countingObserver{}
	store.SetObserver(obs)

	prob, _ := store.CreateProblem(3)
	other, _ := store.CreateProblem(4)
	a, _ := store.CreateEvaluator(prob.ID, []int{0, 0})
	b, _ := store.CreateEvaluator(prob.ID, []int{1, 1})
	kept, _ := store.CreateEvaluator(other.ID, []int{2, 1})

	if err := store.DropProblem(prob.ID); err != nil {
		t.Fatalf("DropProblem: %v", err)
	}
	if err := store.DropProblem(prob.ID); !errors.Is(err, ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound on second drop, got %v", err)
	}
	if _, err := store.GetProblem(prob.ID); !errors.Is(err, ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound, got %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		if _, err := store.GetEvaluator(id); !errors.Is(err, ErrEvaluatorNotFound) {
			t.Fatalf("evaluator %s survived its problem: %v", id, err)
		}
	}
	if _, err := store.GetEvaluator(kept.ID); err != nil {
		t.Fatalf("evaluator of another problem was dropped: %v", err)
	}
	if _, err := store.CreateEvaluator(prob.ID, []int{0, 0}); !errors.Is(err, ErrProblemNotFound) {
		t.Fatalf("expected ErrProblemNotFound, got %v", err)
	}
	if p, e := store.Len(); p != 1 || e != 1 {
		t.Fatalf("expected 1 problem and 1 evaluator, got %d and %d", p, e)
	}
	if obs.problemsDropped != 1 || obs.dropped != 2 {
		t.Fatalf("unexpected observer counts %+v", obs)
	}
}
