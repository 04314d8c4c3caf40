// Package session keeps the problems and evaluators created by network
// clients of a single benchmark factory.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/utils"
)

var (
	ErrProblemNotFound   = errors.New("problem not found")
	ErrEvaluatorNotFound = errors.New("evaluator not found")
	ErrLimitExceeded     = errors.New("session limit reached")
)

// DefaultListLimit is used when List callers pass a non-positive limit.
const DefaultListLimit = 50

// Observer is notified of session activity. *telemetry.Metrics implements it.
type Observer interface {
	ProblemCreated()
	ProblemDropped()
	EvaluatorCreated()
	EvaluatorDropped()
	Evaluated(cost int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ProblemCreated()                     {}
func (nopObserver) ProblemDropped()                     {}
func (nopObserver) EvaluatorCreated()                   {}
func (nopObserver) EvaluatorDropped()                   {}
func (nopObserver) Evaluated(int, time.Duration, error) {}

// ProblemRecord is a problem registered under an id.
type ProblemRecord struct {
	ID        string
	CreatedAt time.Time
	Problem   *benchmark.Problem
}

// Seed returns the problem's seed.
func (p *ProblemRecord) Seed() int64 { return p.Problem.Seed() }

// EvaluatorRecord serializes access to one evaluator.
type EvaluatorRecord struct {
	ID        string
	ProblemID string
	CreatedAt time.Time

	mu   sync.Mutex
	eval *benchmark.Evaluator
}

// View is a point-in-time copy of an evaluator's state.
type View struct {
	ID         string            `json:"id"`
	ProblemID  string            `json:"problem_id"`
	Params     []int             `json:"params"`
	Key        int               `json:"key"`
	Run        int               `json:"run"`
	Epoch      int               `json:"epoch"`
	MaxEpoch   int               `json:"max_epoch"`
	State      string            `json:"state"`
	Trajectory []benchmark.Float `json:"trajectory,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Snapshot returns the evaluator's current view.
func (r *EvaluatorRecord) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view()
}

func (r *EvaluatorRecord) view() View {
	return View{
		ID:         r.ID,
		ProblemID:  r.ProblemID,
		Params:     r.eval.Params(),
		Key:        r.eval.Key(),
		Run:        r.eval.Run(),
		Epoch:      r.eval.Epoch(),
		MaxEpoch:   r.eval.MaxEpoch(),
		State:      r.eval.State().String(),
		Trajectory: benchmark.Floats(r.eval.Trajectory()),
		CreatedAt:  r.CreatedAt,
	}
}

// Limits caps the registry. A non-positive field means unlimited.
type Limits struct {
	MaxProblems   int
	MaxEvaluators int
}

// Store is the session registry. All methods are safe for concurrent use.
type Store struct {
	factory *benchmark.Factory
	limits  Limits
	obs     Observer

	mu         sync.RWMutex
	problems   map[string]*ProblemRecord
	evaluators map[string]*EvaluatorRecord
}

// NewStore creates a registry over f.
func NewStore(f *benchmark.Factory, limits Limits) *Store {
	return &Store{
		factory:    f,
		limits:     limits,
		obs:        nopObserver{},
		problems:   make(map[string]*ProblemRecord),
		evaluators: make(map[string]*EvaluatorRecord),
	}
}

// SetObserver installs an activity observer; nil restores the no-op one.
func (s *Store) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.obs = o
}

// Factory returns the backing factory.
func (s *Store) Factory() *benchmark.Factory { return s.factory }

// CreateProblem binds seed and registers the problem.
func (s *Store) CreateProblem(seed int64) (*ProblemRecord, error) {
	p, err := s.factory.CreateProblem(seed)
	if err != nil {
		return nil, err
	}
	rec := &ProblemRecord{
		ID:        utils.GenerateProblemID(),
		CreatedAt: time.Now().UTC(),
		Problem:   p,
	}

	s.mu.Lock()
	if s.limits.MaxProblems > 0 && len(s.problems) >= s.limits.MaxProblems {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d live problems", ErrLimitExceeded, s.limits.MaxProblems)
	}
	s.problems[rec.ID] = rec
	s.mu.Unlock()

	s.obs.ProblemCreated()
	return rec, nil
}

// DropProblem releases a problem together with every evaluator created
// under it.
func (s *Store) DropProblem(id string) error {
	s.mu.Lock()
	if _, ok := s.problems[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProblemNotFound, id)
	}
	delete(s.problems, id)
	dropped := 0
	for evID, rec := range s.evaluators {
		if rec.ProblemID == id {
			delete(s.evaluators, evID)
			dropped++
		}
	}
	s.mu.Unlock()

	for i := 0; i < dropped; i++ {
		s.obs.EvaluatorDropped()
	}
	s.obs.ProblemDropped()
	return nil
}

// GetProblem looks a problem up by id.
func (s *Store) GetProblem(id string) (*ProblemRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.problems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, id)
	}
	return rec, nil
}

// ListProblems returns up to limit problems, oldest first.
func (s *Store) ListProblems(limit int) []*ProblemRecord {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	out := make([]*ProblemRecord, 0, len(s.problems))
	for _, rec := range s.problems {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CreateEvaluator builds an evaluator for params under problemID.
func (s *Store) CreateEvaluator(problemID string, params []int) (*EvaluatorRecord, error) {
	prob, err := s.GetProblem(problemID)
	if err != nil {
		return nil, err
	}
	e, err := prob.Problem.CreateEvaluator(params)
	if err != nil {
		return nil, err
	}
	rec := &EvaluatorRecord{
		ID:        utils.GenerateEvaluatorID(),
		ProblemID: problemID,
		CreatedAt: time.Now().UTC(),
		eval:      e,
	}

	s.mu.Lock()
	if _, ok := s.problems[problemID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProblemNotFound, problemID)
	}
	if s.limits.MaxEvaluators > 0 && len(s.evaluators) >= s.limits.MaxEvaluators {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d live evaluators", ErrLimitExceeded, s.limits.MaxEvaluators)
	}
	s.evaluators[rec.ID] = rec
	s.mu.Unlock()

	s.obs.EvaluatorCreated()
	return rec, nil
}

// GetEvaluator looks an evaluator up by id.
func (s *Store) GetEvaluator(id string) (*EvaluatorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.evaluators[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEvaluatorNotFound, id)
	}
	return rec, nil
}

// DropEvaluator releases an evaluator.
func (s *Store) DropEvaluator(id string) error {
	s.mu.Lock()
	_, ok := s.evaluators[id]
	delete(s.evaluators, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrEvaluatorNotFound, id)
	}
	s.obs.EvaluatorDropped()
	return nil
}

// Evaluate advances evaluator id by budget epochs. Calls on the same
// evaluator are serialized.
func (s *Store) Evaluate(id string, budget int) (View, benchmark.Values, error) {
	rec, err := s.GetEvaluator(id)
	if err != nil {
		return View{}, benchmark.Values{}, err
	}

	start := time.Now()
	rec.mu.Lock()
	v, err := rec.eval.Evaluate(budget)
	view := rec.view()
	rec.mu.Unlock()

	s.obs.Evaluated(v.Cost, time.Since(start), err)
	if err != nil {
		return View{}, benchmark.Values{}, err
	}
	return view, v, nil
}

// Len returns the number of live problems and evaluators.
func (s *Store) Len() (problems, evaluators int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.problems), len(s.evaluators)
}
