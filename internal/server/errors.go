package server

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/benchmark"
)

var errBadRequest = errors.New("bad request")

// httpStatus maps a benchmark or session error to an HTTP status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, benchmark.ErrInvalidParameter),
		errors.Is(err, benchmark.ErrInvalidBudget),
		errors.Is(err, benchmark.ErrInvalidSeed):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrProblemNotFound),
		errors.Is(err, session.ErrEvaluatorNotFound):
		return http.StatusNotFound
	case errors.Is(err, benchmark.ErrEvaluatorExhausted):
		return http.StatusConflict
	case errors.Is(err, session.ErrLimitExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// grpcCode maps a benchmark or session error to a gRPC status code.
func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.FailedPrecondition
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}
