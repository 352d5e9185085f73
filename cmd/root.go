package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kelly-sim/kelly-sim/sim"
)

var (
	configPath    string  // Path to a YAML scenario
	seed          int64   // Master seed for all random streams
	horizon       float64 // Simulation end time T
	policy        string  // Bidding policy name
	arrivalRate   float64 // Poisson arrival rate A
	departureRate float64 // Per-player departure rate B
	bidRate       float64 // Per-player bid update rate
	traceLevel    string  // Decision trace verbosity
	logLevel      string  // Log verbosity level
	timeSeriesOut string  // CSV path for the sampled time series
	summaryOut    string  // JSON path for summary, player stats, transitions
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "kelly-sim",
	Short: "Discrete-event simulator of the Kelly proportional allocation mechanism",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd runs one simulation and prints the results
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		s, err := sim.NewSimulator(cfg, sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)))
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		results, err := s.Run()
		if err != nil {
			logrus.Fatalf("Simulation failed: %+v", err)
		}

		results.Print(os.Stdout)
		if timeSeriesOut != "" {
			if err := writeFile(timeSeriesOut, func(w io.Writer) error { return WriteTimeSeriesCSV(w, results) }); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Time series written to %s", timeSeriesOut)
		}
		if summaryOut != "" {
			if err := writeFile(summaryOut, func(w io.Writer) error { return WriteResultsJSON(w, results) }); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("Summary written to %s", summaryOut)
		}
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario and report every problem found",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		logrus.Infof("Configuration OK: %d players, policy=%s, horizon=%g", cfg.NumPlayers, cfg.BiddingPolicy, cfg.SimulationTime)
	},
}

// resolveConfig loads the scenario file and applies the flags the user set
// explicitly. Flags win over the file.
func resolveConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.SimulationTime = horizon
	}
	if flags.Changed("policy") {
		cfg.BiddingPolicy = policy
	}
	if flags.Changed("arrival-rate") {
		cfg.ArrivalRate = arrivalRate
	}
	if flags.Changed("departure-rate") {
		cfg.DepartureRate = departureRate
	}
	if flags.Changed("bid-rate") {
		cfg.BidUpdateRate = bidRate
	}
	if flags.Changed("trace-level") {
		cfg.TraceLevel = traceLevel
	}
	return cfg, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerScenarioFlags(c *cobra.Command) {
	defaults := sim.DefaultConfig()
	c.Flags().StringVar(&configPath, "config", "", "Path to a YAML scenario (defaults are used for missing keys)")
	c.Flags().Int64Var(&seed, "seed", defaults.Seed, "Master seed for all random streams")
	c.Flags().Float64Var(&horizon, "horizon", defaults.SimulationTime, "Simulation end time")
	c.Flags().StringVar(&policy, "policy", defaults.BiddingPolicy, "Bidding policy (best_response, gradient_descent)")
	c.Flags().Float64Var(&arrivalRate, "arrival-rate", defaults.ArrivalRate, "Poisson arrival rate of new players (0 disables)")
	c.Flags().Float64Var(&departureRate, "departure-rate", defaults.DepartureRate, "Per-player departure rate (0 disables)")
	c.Flags().Float64Var(&bidRate, "bid-rate", defaults.BidUpdateRate, "Per-player bid update rate")
	c.Flags().StringVar(&traceLevel, "trace-level", defaults.TraceLevel, "Decision trace verbosity (none, decisions)")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	registerScenarioFlags(runCmd)
	runCmd.Flags().StringVar(&timeSeriesOut, "timeseries-out", "", "Write the sampled time series as CSV to this path")
	runCmd.Flags().StringVar(&summaryOut, "summary-out", "", "Write summary, player stats and transitions as JSON to this path")

	registerScenarioFlags(validateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
