package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optivault/PAREX/internal/config"
	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/mco"
	"github.com/optivault/PAREX/internal/metrics"
	"github.com/optivault/PAREX/internal/objectives"
	"github.com/optivault/PAREX/internal/solver"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"

	cfg.Optimization.DefaultAlgorithm = solver.AlgTwoPointsDE
	cfg.Optimization.DefaultBudget = 30
	cfg.Optimization.BoundSample = 5
	cfg.Optimization.VerboseRuns = false
	cfg.Optimization.RandomSeed = 3
	cfg.Optimization.StoreSize = 8

	return cfg
}

// testLogger creates a quiet test logger
func testLogger(t *testing.T) *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

// newTestServer builds a server over the given catalog and mounts its
// routes on a fresh router.
func newTestServer(t *testing.T, cfg *config.Config, catalog *objectives.Catalog) (*Server, *chi.Mux) {
	t.Helper()

	m := metrics.New(prometheus.NewRegistry())
	srv, err := NewServer(cfg, testLogger(t), solver.DefaultRegistry(), catalog, m)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

// slowCatalog registers a one-dimensional problem whose evaluations
// take long enough that a run can be cancelled mid-flight.
func slowCatalog(t *testing.T) *objectives.Catalog {
	t.Helper()

	catalog := objectives.NewCatalog()
	catalog.MustRegister(objectives.Problem{
		Name:        "crawl",
		Description: "Slow single-objective line search.",
		Params:      []mco.Param{mco.Ranged("x", 0, 1, 0.5)},
		KPIs: []mco.KPISpec{{
			Name:       "y",
			Direction:  mco.Minimise,
			UseBounds:  true,
			LowerBound: 0,
			UpperBound: 1,
		}},
		Evaluate: func(args []interface{}) ([]float64, error) {
			time.Sleep(2 * time.Millisecond)
			return []float64{args[0].(float64)}, nil
		},
	})
	return catalog
}

// rpcCall posts a JSON-RPC 2.0 request and decodes the envelope.
func rpcCall(t *testing.T, router http.Handler, method string, params interface{}) map[string]interface{} {
	t.Helper()

	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	return response
}

// rpcResult extracts the result object from a successful envelope.
func rpcResult(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()

	require.Nil(t, response["error"], "unexpected rpc error: %v", response["error"])
	result, ok := response["result"].(map[string]interface{})
	require.True(t, ok, "result should be an object, got %T", response["result"])
	return result
}

// rpcError extracts the error code and message from an error envelope.
func rpcError(t *testing.T, response map[string]interface{}) (int, string) {
	t.Helper()

	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "response should carry an error object")
	return int(errObj["code"].(float64)), errObj["message"].(string)
}

// startRun submits an mco.optimize call and returns the run id.
func startRun(t *testing.T, router http.Handler, params interface{}) string {
	t.Helper()

	result := rpcResult(t, rpcCall(t, router, "mco.optimize", params))
	id, ok := result["run_id"].(string)
	require.True(t, ok, "run_id should be a string")
	require.Equal(t, StatusPending, result["status"])
	return id
}

// waitForStatus polls mco.status until the run reaches the wanted
// status, failing the test after a deadline.
func waitForStatus(t *testing.T, router http.Handler, id, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	var last interface{}
	for time.Now().Before(deadline) {
		response := rpcCall(t, router, "mco.status", map[string]string{"run_id": id})
		if result, ok := response["result"].(map[string]interface{}); ok {
			last = result["status"]
			if result["status"] == want {
				return result
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run %s never reached status %q, last saw %v", id, want, last)
	return nil
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger(t), solver.DefaultRegistry(), objectives.DefaultCatalog(), nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
	assert.NoError(t, srv.Close())
}

func TestNewServerRejectsBadStoreSize(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimization.StoreSize = 0

	_, err := NewServer(cfg, testLogger(t), solver.DefaultRegistry(), objectives.DefaultCatalog(), nil)
	assert.Error(t, err)
}

func TestRegisterRoutes(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/algorithms", true},
		{"GET", "/api/v1/objectives", true},
		{"POST", "/rpc", true},
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if tt.shouldExist && rr.Code == http.StatusNotFound {
				t.Errorf("Route %s %s should exist but returned 404", tt.method, tt.path)
			}
			if !tt.shouldExist && rr.Code != http.StatusNotFound {
				t.Errorf("Route %s %s should not exist, got %d", tt.method, tt.path, rr.Code)
			}
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	id := startRun(t, router, map[string]interface{}{
		"objective":    "gauss2d",
		"algorithm":    solver.AlgTwoPointsDE,
		"budget":       12,
		"bound_sample": 3,
		"verbose":      true,
		"seed":         9,
	})

	status := waitForStatus(t, router, id, StatusCompleted)
	assert.Equal(t, "gauss2d", status["objective"])
	assert.Equal(t, solver.AlgTwoPointsDE, status["algorithm"])
	assert.EqualValues(t, 1, status["progress"])
	assert.EqualValues(t, 12, status["results_count"])
	assert.NotEmpty(t, status["start_time"])
	assert.NotEmpty(t, status["end_time"])
	assert.Nil(t, status["error"])

	result := rpcResult(t, rpcCall(t, router, "mco.results", map[string]string{"run_id": id}))
	assert.Equal(t, id, result["run_id"])
	assert.EqualValues(t, 12, result["count"])

	results, ok := result["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 12)
	for _, raw := range results {
		entry, ok := raw.(map[string]interface{})
		require.True(t, ok)
		assert.Len(t, entry["args"], 2)
		assert.Len(t, entry["raw"], 2)
		assert.Len(t, entry["score"], 2)
	}
}

func TestRunDefaultsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimization.DefaultAlgorithm = solver.AlgRandomSearch
	cfg.Optimization.DefaultBudget = 8
	_, router := newTestServer(t, cfg, objectives.DefaultCatalog())

	id := startRun(t, router, map[string]interface{}{"objective": "gauss2d"})

	status := waitForStatus(t, router, id, StatusCompleted)
	assert.Equal(t, solver.AlgRandomSearch, status["algorithm"])
}

func TestRunParameterAndKPIOverrides(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	id := startRun(t, router, map[string]interface{}{
		"objective":    "gauss2d",
		"budget":       15,
		"bound_sample": 3,
		"verbose":      true,
		"seed":         17,
		"parameters": []map[string]interface{}{
			{"name": "x", "kind": "ranged", "low": -2, "high": 0, "initial": -1},
			{"name": "y", "kind": "ranged", "low": -2, "high": 0, "initial": -1},
		},
		"kpis": []map[string]interface{}{
			{"name": "a1", "use_bounds": true, "lower_bound": -2.5, "upper_bound": 0.5},
			{"name": "a2", "use_bounds": true, "lower_bound": -1.5, "upper_bound": 0.5},
		},
	})

	waitForStatus(t, router, id, StatusCompleted)

	result := rpcResult(t, rpcCall(t, router, "mco.results", map[string]string{"run_id": id}))
	results, ok := result["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)
	for _, raw := range results {
		entry := raw.(map[string]interface{})
		args := entry["args"].([]interface{})
		require.Len(t, args, 2)
		for _, a := range args {
			v := a.(float64)
			assert.GreaterOrEqual(t, v, -2.0)
			assert.LessOrEqual(t, v, 0.0)
		}
	}
}

func TestOptimizeValidation(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	tests := []struct {
		name    string
		params  map[string]interface{}
		message string
	}{
		{
			name:    "missing objective",
			params:  map[string]interface{}{},
			message: "objective is required",
		},
		{
			name:    "unknown objective",
			params:  map[string]interface{}{"objective": "warp"},
			message: "unknown objective",
		},
		{
			name:    "unknown algorithm",
			params:  map[string]interface{}{"objective": "gauss2d", "algorithm": "Annealing"},
			message: "unknown algorithm",
		},
		{
			name:    "negative budget",
			params:  map[string]interface{}{"objective": "gauss2d", "budget": -3},
			message: "budget must be positive",
		},
		{
			name:    "negative bound sample",
			params:  map[string]interface{}{"objective": "gauss2d", "bound_sample": -2},
			message: "bound sample must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := rpcCall(t, router, "mco.optimize", tt.params)
			code, message := rpcError(t, response)
			assert.Equal(t, -32000, code)
			assert.Contains(t, message, tt.message)
		})
	}
}

func TestJSONRPCEnvelope(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	t.Run("parse error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte("{")))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
		code, message := rpcError(t, response)
		assert.Equal(t, -32700, code)
		assert.Equal(t, "Parse error", message)
	})

	t.Run("invalid version", func(t *testing.T) {
		body := []byte(`{"jsonrpc":"1.0","id":1,"method":"mco.algorithms"}`)
		req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
		code, _ := rpcError(t, response)
		assert.Equal(t, -32600, code)
	})

	t.Run("method not found", func(t *testing.T) {
		response := rpcCall(t, router, "mco.teleport", nil)
		code, message := rpcError(t, response)
		assert.Equal(t, -32601, code)
		assert.Equal(t, "Method not found", message)
	})

	t.Run("missing params", func(t *testing.T) {
		response := rpcCall(t, router, "mco.status", nil)
		code, message := rpcError(t, response)
		assert.Equal(t, -32000, code)
		assert.Contains(t, message, "missing required parameters")
	})
}

func TestStatusUnknownRun(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	response := rpcCall(t, router, "mco.status", map[string]string{"run_id": "run_404"})
	code, message := rpcError(t, response)
	assert.Equal(t, -32000, code)
	assert.Contains(t, message, "run not found")
}

func TestAlgorithmsListing(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	result := rpcResult(t, rpcCall(t, router, "mco.algorithms", nil))
	assert.Equal(t, solver.AlgTwoPointsDE, result["default"])

	algorithms, ok := result["algorithms"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, algorithms, solver.AlgTwoPointsDE)
	assert.Contains(t, algorithms, solver.AlgRandomSearch)
	assert.Contains(t, algorithms, solver.AlgNelderMead)
}

func TestCancelRun(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), slowCatalog(t))

	id := startRun(t, router, map[string]interface{}{
		"objective":    "crawl",
		"budget":       100000,
		"bound_sample": 1,
		"verbose":      true,
	})

	response := rpcCall(t, router, "mco.cancel", map[string]string{"run_id": id})
	result := rpcResult(t, response)
	assert.Equal(t, "cancellation requested", result["status"])

	status := waitForStatus(t, router, id, StatusCancelled)
	assert.NotEmpty(t, status["end_time"])

	// A terminal run cannot be cancelled again.
	response = rpcCall(t, router, "mco.cancel", map[string]string{"run_id": id})
	code, message := rpcError(t, response)
	assert.Equal(t, -32000, code)
	assert.Contains(t, message, "cannot cancel run with status: cancelled")
}

func TestCancelUnknownRun(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	response := rpcCall(t, router, "mco.cancel", map[string]string{"run_id": "run_404"})
	code, message := rpcError(t, response)
	assert.Equal(t, -32000, code)
	assert.Contains(t, message, "run not found")
}

func TestCloseCancelsActiveRuns(t *testing.T) {
	srv, router := newTestServer(t, testConfig(t), slowCatalog(t))

	id := startRun(t, router, map[string]interface{}{
		"objective":    "crawl",
		"budget":       100000,
		"bound_sample": 1,
		"verbose":      true,
	})

	require.NoError(t, srv.Close())
	waitForStatus(t, router, id, StatusCancelled)
}

func TestCompletedRunRetention(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimization.StoreSize = 2
	_, router := newTestServer(t, cfg, objectives.DefaultCatalog())

	var ids []string
	for i := 0; i < 3; i++ {
		id := startRun(t, router, map[string]interface{}{
			"objective":    "gauss2d",
			"budget":       5,
			"bound_sample": 2,
			"verbose":      true,
			"seed":         int64(i + 1),
		})
		waitForStatus(t, router, id, StatusCompleted)
		ids = append(ids, id)
	}

	// The oldest completed run fell out of the bounded store.
	response := rpcCall(t, router, "mco.status", map[string]string{"run_id": ids[0]})
	_, message := rpcError(t, response)
	assert.Contains(t, message, "run not found")

	for _, id := range ids[1:] {
		result := rpcResult(t, rpcCall(t, router, "mco.status", map[string]string{"run_id": id}))
		assert.Equal(t, StatusCompleted, result["status"])
	}
}

func TestRESTAliases(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	body, err := json.Marshal(map[string]interface{}{
		"objective":    "gauss2d",
		"budget":       10,
		"bound_sample": 3,
		"verbose":      false,
		"seed":         4,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/optimize", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&accepted))
	id, ok := accepted["run_id"].(string)
	require.True(t, ok)

	waitForStatus(t, router, id, StatusCompleted)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s", id), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, StatusCompleted, status["status"])

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/results", id), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var results map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&results))
	count, ok := results["count"].(float64)
	require.True(t, ok)
	assert.Greater(t, count, 0.0)

	// Cancelling a finished run is rejected.
	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/runs/%s", id), nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/run_404", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/algorithms", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/objectives", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var listing map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listing))
	names, ok := listing["objectives"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, names, "gauss2d")
}

func TestRESTOptimizeRejectsBadBody(t *testing.T) {
	_, router := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/optimize", bytes.NewReader([]byte("{")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRespondWithError(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(t), objectives.DefaultCatalog())

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{
			name:       "valid error response",
			code:       -32000,
			message:    "invalid input",
			id:         "123",
			expectedID: "123",
		},
		{
			name:       "nil id",
			code:       -32700,
			message:    "Parse error",
			id:         nil,
			expectedID: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			assert.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.expectedID, response["id"])
		})
	}
}
