package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
)

// Request and response bodies shared by the HTTP and gRPC surfaces.

// maxExactSeed is the largest magnitude a float64 JSON number carries
// without rounding.
const maxExactSeed = 1<<53 - 1

// seedValue is an int64 seed in JSON. It decodes from an integer number or a
// decimal string, and encodes as a string once the value is outside
// ±maxExactSeed so it survives transports that hold numbers as doubles.
type seedValue int64

func (s seedValue) MarshalJSON() ([]byte, error) {
	v := int64(s)
	if v > maxExactSeed || v < -maxExactSeed {
		return json.Marshal(strconv.FormatInt(v, 10))
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (s *seedValue) UnmarshalJSON(b []byte) error {
	text := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: seed must be a 64-bit integer, got %s", benchmark.ErrInvalidSeed, b)
	}
	*s = seedValue(v)
	return nil
}

type createProblemRequest struct {
	Seed *seedValue `json:"seed"`
}

type problemResponse struct {
	ID        string    `json:"id"`
	Seed      seedValue `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

type createEvaluatorRequest struct {
	ProblemID string `json:"problem_id,omitempty"`
	Params    []int  `json:"params"`
}

type evaluateRequest struct {
	EvaluatorID string `json:"evaluator_id,omitempty"`
	Budget      *int   `json:"budget"`
}

type problemRequest struct {
	ProblemID string `json:"problem_id"`
}

type evaluatorRequest struct {
	EvaluatorID string `json:"evaluator_id"`
}

type evaluateResponse struct {
	Evaluator session.View     `json:"evaluator"`
	Values    benchmark.Values `json:"values"`
}

func problemToJSON(rec *session.ProblemRecord) problemResponse {
	return problemResponse{ID: rec.ID, Seed: seedValue(rec.Seed()), CreatedAt: rec.CreatedAt}
}

func (r createProblemRequest) seed() (int64, error) {
	if r.Seed == nil {
		return 0, fmt.Errorf("%w: seed is required", errBadRequest)
	}
	return int64(*r.Seed), nil
}

func (r createEvaluatorRequest) params() ([]int, error) {
	if r.Params == nil {
		return nil, fmt.Errorf("%w: params is required", errBadRequest)
	}
	return r.Params, nil
}

func (r evaluateRequest) budget() (int, error) {
	if r.Budget == nil {
		return 0, fmt.Errorf("%w: budget is required", errBadRequest)
	}
	return *r.Budget, nil
}
