package cmd

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kelly-sim/kelly-sim/api"
	"github.com/kelly-sim/kelly-sim/sim/telemetry"
)

var (
	listenAddr  string   // HTTP listen address
	corsOrigins []string // Origins allowed to call the API from a browser
	releaseMode bool     // Run gin in release mode
	maxHorizon  float64  // Largest simulation_time a request may ask for
	runTimeout  time.Duration
)

// serveCmd exposes simulations over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulations over HTTP with Prometheus metrics",
	Run: func(cmd *cobra.Command, args []string) {
		if releaseMode {
			gin.SetMode(gin.ReleaseMode)
		}
		registry := prometheus.NewRegistry()
		metrics, err := telemetry.New(registry)
		if err != nil {
			logrus.Fatalf("Registering metrics: %v", err)
		}

		router := api.NewRouter(metrics, registry, api.Limits{MaxHorizon: maxHorizon, RunTimeout: runTimeout})
		server := &http.Server{
			Addr:              listenAddr,
			Handler:           corsHandler(corsOrigins).Handler(router),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logrus.Infof("Listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil {
			logrus.Fatalf("Server stopped: %v", err)
		}
	},
}

func corsHandler(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringSliceVar(&corsOrigins, "cors-origins", []string{"*"}, "Origins allowed to call the API from a browser")
	limits := api.DefaultLimits()
	serveCmd.Flags().Float64Var(&maxHorizon, "max-horizon", limits.MaxHorizon, "Largest simulation_time accepted per request (0 disables the cap)")
	serveCmd.Flags().DurationVar(&runTimeout, "run-timeout", limits.RunTimeout, "Wall-clock budget per simulation request (0 disables)")
	serveCmd.Flags().BoolVar(&releaseMode, "release", false, "Run the HTTP engine in release mode")
	rootCmd.AddCommand(serveCmd)
}
