package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelly-sim/kelly-sim/sim"
	"github.com/kelly-sim/kelly-sim/sim/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	return newLimitedRouter(t, DefaultLimits())
}

func newLimitedRouter(t *testing.T, limits Limits) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := telemetry.New(reg)
	require.NoError(t, err)
	return NewRouter(metrics, reg, limits), reg
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRunSimulation(t *testing.T) {
	router, reg := newTestRouter(t)
	body := `{
		"num_players": 3,
		"player_budgets": [10, 10, 10],
		"player_valuations": [1, 1, 1],
		"player_alphas": [1, 1, 1],
		"arrival_rate": 0,
		"departure_rate": 0,
		"simulation_time": 100,
		"record_interval": 10
	}`
	w := post(router, "/api/v1/simulations", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SimulationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Summary.EquilibriumReached)
	assert.Equal(t, 100.0, resp.Result.Summary.EndTime)
	assert.Len(t, resp.Result.Players, 3)
	assert.NotEmpty(t, resp.Result.TimeSeries)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["kelly_sim_runs_total"])
	assert.True(t, names["kelly_sim_events_total"])
}

func TestRunSimulation_InvalidConfig(t *testing.T) {
	router, _ := newTestRouter(t)
	w := post(router, "/api/v1/simulations", `{"delta": -1, "convergence_window": 0}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CONFIG", resp.Error.Code)
	problems, ok := resp.Error.Details.([]interface{})
	require.True(t, ok)
	assert.Len(t, problems, 2)
}

func TestRunSimulation_MalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)
	w := post(router, "/api/v1/simulations", `{"num_players": "three"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestRunSimulation_HorizonOverLimit(t *testing.T) {
	// GIVEN a server that caps the horizon at 500
	router, _ := newLimitedRouter(t, Limits{MaxHorizon: 500})

	// WHEN a request asks for a much longer run
	w := post(router, "/api/v1/simulations", `{"simulation_time": 1e12}`)

	// THEN it is refused before any simulation starts
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "HORIZON_TOO_LARGE", resp.Error.Code)
}

func TestRunSimulation_Timeout(t *testing.T) {
	// GIVEN a wall-clock budget that is already spent when the run starts
	router, _ := newLimitedRouter(t, Limits{RunTimeout: time.Nanosecond})

	w := post(router, "/api/v1/simulations", `{"simulation_time": 1e6}`)

	// THEN the run is stopped and reported as timed out
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SIMULATION_TIMEOUT", resp.Error.Code)
}

func TestValidateConfig(t *testing.T) {
	router, _ := newTestRouter(t)

	w := post(router, "/api/v1/simulations/validate", `{"seed": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	var ok struct {
		Status string     `json:"status"`
		Config sim.Config `json:"config"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, "valid", ok.Status)
	assert.Equal(t, int64(3), ok.Config.Seed)
	assert.Equal(t, sim.DefaultConfig().NumPlayers, ok.Config.NumPlayers)

	w = post(router, "/api/v1/simulations/validate", `{"bidding_policy": "random"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	post(router, "/api/v1/simulations", `{"simulation_time": 10}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kelly_sim_runs_total")
}

func TestErrorHandler_RecoversPanics(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandler())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Message)
}
