package benchmark

import (
	"errors"

	"github.com/GoSim-25-26J-441/tabular-bench/pkg/dataset"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/space"
)

var (
	// ErrDataAccess: dataset missing, unreadable or structurally invalid, or a
	// recipe that does not fit the dataset. Only returned by CreateFactory.
	ErrDataAccess = dataset.ErrDataAccess
	// ErrKeyNotFound signals a space/dataset mismatch. Never expected for
	// vectors accepted by the space.
	ErrKeyNotFound = dataset.ErrKeyNotFound
	// ErrInvalidParameter: wrong vector length or out-of-range component.
	ErrInvalidParameter = space.ErrInvalidParameter

	ErrInvalidSeed        = errors.New("invalid seed")
	ErrInvalidBudget      = errors.New("budget must be positive")
	ErrEvaluatorExhausted = errors.New("evaluator exhausted")
)
