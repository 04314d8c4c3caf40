package utils

import (
	"strings"

	"github.com/google/uuid"
)

// Prefixes for session identifiers handed out by the service.
const (
	ProblemIDPrefix   = "prb"
	EvaluatorIDPrefix = "evl"
)

// GenerateID returns a random UUID-based identifier with the given prefix,
// e.g. "prb-2f1c...".
func GenerateID(prefix string) string {
	id := uuid.New().String()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// GenerateProblemID generates a problem session ID
func GenerateProblemID() string {
	return GenerateID(ProblemIDPrefix)
}

// GenerateEvaluatorID generates an evaluator session ID
func GenerateEvaluatorID() string {
	return GenerateID(EvaluatorIDPrefix)
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-")
}
