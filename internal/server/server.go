package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/optivault/PAREX/internal/config"
	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/mco"
	"github.com/optivault/PAREX/internal/metrics"
	"github.com/optivault/PAREX/internal/objectives"
	"github.com/optivault/PAREX/internal/solver"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunState tracks one optimization run from submission to its terminal
// status. Fields are guarded by the server's run mutex.
type RunState struct {
	ID          string
	Objective   string
	Algorithm   string
	Budget      int
	Status      string
	StartTime   time.Time
	EndTime     *time.Time
	Progress    float64
	Results     []mco.Evaluation
	Err         string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// OptimizeRequest is the payload of mco.optimize. Parameter and KPI
// lists override the chosen objective's defaults when present; zero
// budget, bound sample, and seed fall back to the service defaults.
type OptimizeRequest struct {
	Objective   string        `json:"objective"`
	Algorithm   string        `json:"algorithm,omitempty"`
	Budget      int           `json:"budget,omitempty"`
	BoundSample int           `json:"bound_sample,omitempty"`
	Verbose     *bool         `json:"verbose,omitempty"`
	Seed        int64         `json:"seed,omitempty"`
	Params      []mco.Param   `json:"parameters,omitempty"`
	KPIs        []mco.KPISpec `json:"kpis,omitempty"`
}

// Server implements the HTTP and JSON-RPC server for the optimization
// service. It manages runs and provides endpoints to start, monitor,
// and cancel them. Active runs live in a mutex-guarded map; completed
// runs move to a bounded LRU store.
type Server struct {
	cfg      *config.Config
	logger   Logger
	registry *solver.Registry
	catalog  *objectives.Catalog
	metrics  *metrics.Metrics

	runs      map[string]*RunState
	runsMu    sync.RWMutex
	completed *lru.Cache[string, *RunState]
	nextID    uint64
}

// NewServer creates a new server instance. The metrics collector may
// be nil.
func NewServer(cfg *config.Config, logger Logger, registry *solver.Registry, catalog *objectives.Catalog, m *metrics.Metrics) (*Server, error) {
	store, err := lru.New[string, *RunState](cfg.Optimization.StoreSize)
	if err != nil {
		return nil, fmt.Errorf("building run store: %w", err)
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		catalog:   catalog,
		metrics:   m,
		runs:      make(map[string]*RunState),
		completed: store,
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/algorithms", s.handleAlgorithms)
		r.Get("/objectives", s.handleObjectives)
		r.Get("/runs/{id}", s.handleStatus)
		r.Get("/runs/{id}/results", s.handleResults)
		r.Delete("/runs/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "mco.optimize":
		var req OptimizeRequest
		if err = firstParam(request.Params, &req); err == nil {
			result, err = s.startRun(req)
		}
	case "mco.status":
		var req runRef
		if err = firstParam(request.Params, &req); err == nil {
			result, err = s.runStatus(req.RunID)
		}
	case "mco.results":
		var req runRef
		if err = firstParam(request.Params, &req); err == nil {
			result, err = s.runResults(req.RunID)
		}
	case "mco.algorithms":
		result = s.listAlgorithms()
	case "mco.cancel":
		var req runRef
		if err = firstParam(request.Params, &req); err == nil {
			err = s.cancelRun(req.RunID)
			if err == nil {
				result = map[string]string{"status": "cancellation requested"}
			}
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// runRef addresses an existing run in status, results, and cancel
// payloads.
type runRef struct {
	RunID string `json:"run_id"`
}

// firstParam decodes the first positional JSON-RPC parameter.
func firstParam(params []json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	if err := json.Unmarshal(params[0], dst); err != nil {
		return fmt.Errorf("invalid parameter format: %v", err)
	}
	return nil
}

// startRun validates an optimization request and launches the run in a
// goroutine. Unknown objectives and algorithms, non-positive budgets,
// and non-positive bound-sample counts are rejected here, before the
// run starts.
func (s *Server) startRun(req OptimizeRequest) (interface{}, error) {
	if req.Objective == "" {
		return nil, fmt.Errorf("objective is required")
	}
	prob, err := s.catalog.Get(req.Objective)
	if err != nil {
		return nil, err
	}

	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = s.cfg.Optimization.DefaultAlgorithm
	}
	if !s.hasAlgorithm(algorithm) {
		return nil, fmt.Errorf("unknown algorithm %q, registered: %v", algorithm, s.registry.Names())
	}

	budget := req.Budget
	if budget == 0 {
		budget = s.cfg.Optimization.DefaultBudget
	}
	if budget < 1 {
		return nil, fmt.Errorf("budget must be positive, got %d", budget)
	}

	boundSample := req.BoundSample
	if boundSample == 0 {
		boundSample = s.cfg.Optimization.BoundSample
	}
	if boundSample < 1 {
		return nil, fmt.Errorf("bound sample must be positive, got %d", boundSample)
	}

	verbose := s.cfg.Optimization.VerboseRuns
	if req.Verbose != nil {
		verbose = *req.Verbose
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.cfg.Optimization.RandomSeed
	}

	params := prob.Params
	if len(req.Params) > 0 {
		params = req.Params
	}
	kpis := prob.KPIs
	if len(req.KPIs) > 0 {
		kpis = req.KPIs
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.runsMu.Lock()
	s.nextID++
	id := fmt.Sprintf("run_%d", s.nextID)
	state := &RunState{
		ID:          id,
		Objective:   prob.Name,
		Algorithm:   algorithm,
		Budget:      budget,
		Status:      StatusPending,
		StartTime:   time.Now(),
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}
	s.runs[id] = state
	s.runsMu.Unlock()

	engine := &mco.Engine{
		Registry:    s.registry,
		Algorithm:   algorithm,
		Params:      params,
		KPIs:        kpis,
		Objective:   s.instrumented(prob.Name, prob.Evaluate),
		Budget:      budget,
		BoundSample: boundSample,
		Verbose:     verbose,
		Seed:        seed,
		Log:         s.logger.WithFields(map[string]interface{}{"run_id": id}),
		Notify: func(ev mco.ProgressEvent) {
			s.recordProgress(state, ev)
		},
	}

	s.logger.Info("Optimization run accepted", map[string]interface{}{
		"run_id":    id,
		"objective": prob.Name,
		"algorithm": algorithm,
		"budget":    budget,
	})

	go s.runOptimization(ctx, state, engine)

	return map[string]interface{}{
		"run_id": id,
		"status": StatusPending,
	}, nil
}

// instrumented wraps an objective function with evaluation metrics.
func (s *Server) instrumented(name string, fn mco.ObjectiveFunc) mco.ObjectiveFunc {
	if s.metrics == nil {
		return fn
	}
	return func(args []interface{}) ([]float64, error) {
		s.metrics.RecordEvaluation(name)
		s.metrics.RecordIteration()
		return fn(args)
	}
}

// recordProgress appends a yielded result to the run state.
func (s *Server) recordProgress(state *RunState, ev mco.ProgressEvent) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	state.Results = append(state.Results, mco.Evaluation{Args: ev.Args, Raw: ev.Values})
	if state.Budget > 0 {
		state.Progress = float64(len(state.Results)) / float64(state.Budget)
		if state.Progress > 1 {
			state.Progress = 1
		}
	}
	state.LastUpdated = time.Now()
}

// runOptimization executes one run to its terminal status and moves
// the state into the completed store.
func (s *Server) runOptimization(ctx context.Context, state *RunState, engine *mco.Engine) {
	s.runsMu.Lock()
	state.Status = StatusRunning
	state.LastUpdated = time.Now()
	s.runsMu.Unlock()

	results, err := engine.Run(ctx)

	now := time.Now()
	s.runsMu.Lock()
	// The notify path already accumulated the same results; trust the
	// engine's view in case the run ended between notifications.
	state.Results = results
	switch {
	case err == nil:
		state.Status = StatusCompleted
		state.Progress = 1
	case errors.Is(err, context.Canceled):
		state.Status = StatusCancelled
	default:
		state.Status = StatusFailed
		state.Err = err.Error()
	}
	state.EndTime = &now
	state.LastUpdated = now
	delete(s.runs, state.ID)
	s.completed.Add(state.ID, state)
	status := state.Status
	resultCount := len(state.Results)
	s.runsMu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordRun(state.Algorithm, status, now.Sub(state.StartTime))
		if status == StatusCompleted {
			s.metrics.RecordFrontSize(resultCount)
		}
	}

	if err != nil && status == StatusFailed {
		s.logger.Error("Optimization run failed", map[string]interface{}{
			"run_id": state.ID,
			"error":  err.Error(),
		})
		return
	}
	s.logger.Info("Optimization run finished", map[string]interface{}{
		"run_id":  state.ID,
		"status":  status,
		"results": resultCount,
	})
}

// getRun looks a run up in the active map, then the completed store.
func (s *Server) getRun(id string) (*RunState, bool) {
	s.runsMu.RLock()
	state, ok := s.runs[id]
	s.runsMu.RUnlock()
	if ok {
		return state, true
	}
	return s.completed.Get(id)
}

// runStatus builds the mco.status payload.
func (s *Server) runStatus(id string) (interface{}, error) {
	if id == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	state, ok := s.getRun(id)
	if !ok {
		return nil, fmt.Errorf("run not found")
	}

	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	response := map[string]interface{}{
		"run_id":        state.ID,
		"objective":     state.Objective,
		"algorithm":     state.Algorithm,
		"status":        state.Status,
		"progress":      state.Progress,
		"results_count": len(state.Results),
		"start_time":    state.StartTime.Format(time.RFC3339),
		"last_update":   state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Err != "" {
		response["error"] = state.Err
	}
	return response, nil
}

// runResults builds the mco.results payload.
func (s *Server) runResults(id string) (interface{}, error) {
	if id == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	state, ok := s.getRun(id)
	if !ok {
		return nil, fmt.Errorf("run not found")
	}

	s.runsMu.RLock()
	results := append([]mco.Evaluation(nil), state.Results...)
	s.runsMu.RUnlock()

	return map[string]interface{}{
		"run_id":  id,
		"count":   len(results),
		"results": results,
	}, nil
}

// cancelRun requests cancellation of an active run. The run goroutine
// observes the cancelled context and records the terminal status.
func (s *Server) cancelRun(id string) error {
	if id == "" {
		return fmt.Errorf("run_id is required")
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	state, ok := s.runs[id]
	if !ok {
		if done, finished := s.completed.Get(id); finished {
			return fmt.Errorf("cannot cancel run with status: %s", done.Status)
		}
		return fmt.Errorf("run not found")
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	state.LastUpdated = time.Now()

	s.logger.Info("Optimization run cancellation requested", map[string]interface{}{
		"run_id": id,
	})
	return nil
}

func (s *Server) hasAlgorithm(name string) bool {
	for _, n := range s.registry.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Server) listAlgorithms() interface{} {
	return map[string]interface{}{
		"algorithms": s.registry.Names(),
		"default":    s.cfg.Optimization.DefaultAlgorithm,
	}
}

func (s *Server) listObjectives() interface{} {
	return map[string]interface{}{
		"objectives": s.catalog.Names(),
	}
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Close cancels every active run.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	for _, state := range s.runs {
		if state.CancelFunc != nil {
			state.CancelFunc()
		}
	}
	return nil
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startRun(req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/runs/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.runStatus(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleResults handles GET /api/v1/runs/{id}/results.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.runResults(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/runs/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.cancelRun(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}

// handleAlgorithms handles GET /api/v1/algorithms.
func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.listAlgorithms())
}

// handleObjectives handles GET /api/v1/objectives.
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(s.listObjectives())
}
