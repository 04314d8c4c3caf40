package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/tabular-bench/internal/session"
	"github.com/GoSim-25-26J-441/tabular-bench/pkg/logger"
)

// HTTPServer is the JSON API over a session store.
type HTTPServer struct {
	mux   *http.ServeMux
	store *session.Store
}

func NewHTTPServer(store *session.Store) *HTTPServer {
	s := &HTTPServer{
		mux:   http.NewServeMux(),
		store: store,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/spec", s.handleSpec)
	s.mux.HandleFunc("/v1/problems", s.handleProblems)
	s.mux.HandleFunc("/v1/problems/", s.handleProblemByID)
	s.mux.HandleFunc("/v1/evaluators/", s.handleEvaluatorByID)

	return s
}

// Handle mounts an extra handler, e.g. the Prometheus endpoint.
func (s *HTTPServer) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	problems, evaluators := s.store.Len()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"problems":   problems,
		"evaluators": evaluators,
	})
}

// handleSpec handles GET /v1/spec
func (s *HTTPServer) handleSpec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Factory().Specification())
}

// handleProblems handles /v1/problems
func (s *HTTPServer) handleProblems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateProblem(w, r)
	case http.MethodGet:
		s.handleListProblems(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProblemByID handles GET and DELETE /v1/problems/{id} and
// POST /v1/problems/{id}/evaluators
func (s *HTTPServer) handleProblemByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/problems/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "problem ID is required")
		return
	}

	if strings.HasSuffix(path, "/evaluators") {
		problemID := strings.TrimSuffix(path, "/evaluators")
		if r.Method == http.MethodPost {
			s.handleCreateEvaluator(w, r, problemID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.GetProblem(path)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"problem": problemToJSON(rec)})
	case http.MethodDelete:
		if err := s.store.DropProblem(path); err != nil {
			s.writeErr(w, err)
			return
		}
		logger.Info("problem dropped (HTTP)", "problem_id", path)
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleEvaluatorByID handles /v1/evaluators/{id} and /v1/evaluators/{id}:evaluate
func (s *HTTPServer) handleEvaluatorByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/evaluators/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "evaluator ID is required")
		return
	}

	if strings.HasSuffix(path, ":evaluate") {
		evaluatorID := strings.TrimSuffix(path, ":evaluate")
		if r.Method == http.MethodPost {
			s.handleEvaluate(w, r, evaluatorID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, err := s.store.GetEvaluator(path)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"evaluator": rec.Snapshot()})
	case http.MethodDelete:
		if err := s.store.DropEvaluator(path); err != nil {
			s.writeErr(w, err)
			return
		}
		logger.Info("evaluator dropped (HTTP)", "evaluator_id", path)
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateProblem handles POST /v1/problems
func (s *HTTPServer) handleCreateProblem(w http.ResponseWriter, r *http.Request) {
	var req createProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	seed, err := req.seed()
	if err != nil {
		s.writeErr(w, err)
		return
	}

	rec, err := s.store.CreateProblem(seed)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	logger.Info("problem created (HTTP)", "problem_id", rec.ID, "seed", seed)
	s.writeJSON(w, http.StatusCreated, map[string]any{"problem": problemToJSON(rec)})
}

// handleListProblems handles GET /v1/problems?limit=n
func (s *HTTPServer) handleListProblems(w http.ResponseWriter, r *http.Request) {
	limit := session.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	recs := s.store.ListProblems(limit)
	out := make([]problemResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, problemToJSON(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"problems": out})
}

// handleCreateEvaluator handles POST /v1/problems/{id}/evaluators
func (s *HTTPServer) handleCreateEvaluator(w http.ResponseWriter, r *http.Request, problemID string) {
	var req createEvaluatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	params, err := req.params()
	if err != nil {
		s.writeErr(w, err)
		return
	}

	rec, err := s.store.CreateEvaluator(problemID, params)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	logger.Info("evaluator created (HTTP)", "evaluator_id", rec.ID, "problem_id", problemID)
	s.writeJSON(w, http.StatusCreated, map[string]any{"evaluator": rec.Snapshot()})
}

// handleEvaluate handles POST /v1/evaluators/{id}:evaluate
func (s *HTTPServer) handleEvaluate(w http.ResponseWriter, r *http.Request, evaluatorID string) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	budget, err := req.budget()
	if err != nil {
		s.writeErr(w, err)
		return
	}

	view, values, err := s.store.Evaluate(evaluatorID, budget)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, evaluateResponse{Evaluator: view, Values: values})
}

// writeJSON encodes data before touching the response so an encoding failure
// still produces a 500 with a body.
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

// writeErr reports err with the status its kind maps to.
func (s *HTTPServer) writeErr(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	s.writeError(w, status, err.Error())
}
