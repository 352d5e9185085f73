package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kelly-sim/kelly-sim/sim/telemetry"
)

// NewRouter wires the routes. When gatherer is non-nil, /metrics exposes it.
func NewRouter(metrics *telemetry.Metrics, gatherer prometheus.Gatherer, limits Limits) *gin.Engine {
	router := gin.New()
	router.Use(Logger())
	router.Use(ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	simulations := NewSimulationHandler(metrics, limits)
	v1 := router.Group("/api/v1")
	{
		v1.POST("/simulations", simulations.RunSimulation)
		v1.POST("/simulations/validate", simulations.ValidateConfig)
	}
	return router
}
