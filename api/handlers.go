// Package api serves simulations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/kelly-sim/kelly-sim/sim"
	"github.com/kelly-sim/kelly-sim/sim/telemetry"
)

// Limits bound the work one request may ask for.
type Limits struct {
	MaxHorizon float64       // largest simulation_time accepted; 0 means no cap
	RunTimeout time.Duration // wall-clock budget per run; 0 means no timeout
}

// DefaultLimits returns the limits used by the serve command unless overridden.
func DefaultLimits() Limits {
	return Limits{MaxHorizon: 1e5, RunTimeout: time.Minute}
}

// SimulationHandler runs simulations on request.
type SimulationHandler struct {
	metrics *telemetry.Metrics // may be nil
	limits  Limits
}

// NewSimulationHandler creates a handler. metrics may be nil.
func NewSimulationHandler(metrics *telemetry.Metrics, limits Limits) *SimulationHandler {
	return &SimulationHandler{metrics: metrics, limits: limits}
}

// RunSimulation handles POST /api/v1/simulations. The body is a partial
// config in the scenario JSON schema; missing keys keep their defaults.
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	cfg := sim.DefaultConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
		})
		return
	}

	if h.limits.MaxHorizon > 0 && cfg.SimulationTime > h.limits.MaxHorizon {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "HORIZON_TOO_LARGE",
				Message: fmt.Sprintf("simulation_time %g exceeds the server limit %g", cfg.SimulationTime, h.limits.MaxHorizon),
			},
		})
		return
	}

	var opts []sim.Option
	if h.metrics != nil {
		opts = append(opts, sim.WithRecorder(h.metrics))
	}
	s, err := sim.NewSimulator(cfg, sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)), opts...)
	if err != nil {
		c.JSON(http.StatusBadRequest, configErrorResponse(err))
		return
	}

	ctx := c.Request.Context()
	if h.limits.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.RunTimeout)
		defer cancel()
	}
	results, err := s.RunContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{Code: "SIMULATION_TIMEOUT", Message: err.Error()},
		})
		return
	}
	if err != nil {
		logrus.Errorf("Simulation failed: %+v", err)
		detail := ErrorDetail{Code: "SIMULATION_ERROR", Message: err.Error()}
		var iv *sim.InvariantViolation
		if errors.As(err, &iv) {
			detail.Code = "INVARIANT_VIOLATION"
			detail.Details = iv.Snapshot
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: detail})
		return
	}
	if h.metrics != nil {
		h.metrics.RunFinished(results.Summary)
	}

	c.JSON(http.StatusOK, SimulationResponse{Status: "completed", Result: results})
}

// ValidateConfig handles POST /api/v1/simulations/validate.
func (h *SimulationHandler) ValidateConfig(c *gin.Context) {
	cfg := sim.DefaultConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
		})
		return
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, configErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "valid", "config": cfg})
}

func configErrorResponse(err error) ErrorResponse {
	problems := []string{err.Error()}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		problems = problems[:0]
		for _, e := range merr.Errors {
			problems = append(problems, e.Error())
		}
	}
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    "INVALID_CONFIG",
			Message: "configuration rejected",
			Details: problems,
		},
	}
}
