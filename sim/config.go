package sim

import (
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/kelly-sim/kelly-sim/sim/trace"
)

// Distance norms accepted in Config.DistanceNorm.
const (
	NormL2   = "l2"
	NormLInf = "linf"
)

// PlayerProfile is the static part of a player: budget, valuation, alpha.
type PlayerProfile struct {
	Budget    float64
	Valuation float64
	Alpha     float64
}

// Config groups every parameter the simulator consumes.
// Zero values are not defaults: start from DefaultConfig().
type Config struct {
	NumPlayers       int       `yaml:"num_players" json:"num_players"`
	PlayerBudgets    []float64 `yaml:"player_budgets" json:"player_budgets"`
	PlayerValuations []float64 `yaml:"player_valuations" json:"player_valuations"`
	PlayerAlphas     []float64 `yaml:"player_alphas" json:"player_alphas"`

	SimulationTime float64 `yaml:"simulation_time" json:"simulation_time"`
	ArrivalRate    float64 `yaml:"arrival_rate" json:"arrival_rate"`       // A; 0 disables arrivals
	DepartureRate  float64 `yaml:"departure_rate" json:"departure_rate"`   // B; 0 disables departures
	BidUpdateRate  float64 `yaml:"bid_update_rate" json:"bid_update_rate"` // per active player

	BiddingPolicy   string  `yaml:"bidding_policy" json:"bidding_policy"`
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate"`
	MaxGradientStep float64 `yaml:"max_gradient_step" json:"max_gradient_step"`

	ConvergenceEpsilon float64 `yaml:"convergence_epsilon" json:"convergence_epsilon"`
	ConvergenceWindow  int     `yaml:"convergence_window" json:"convergence_window"`
	DistanceNorm       string  `yaml:"distance_norm" json:"distance_norm"`

	Delta            float64 `yaml:"delta" json:"delta"`
	InitialPrice     float64 `yaml:"initial_price" json:"initial_price"`
	InitialBid       float64 `yaml:"initial_bid" json:"initial_bid"`
	MinBid           float64 `yaml:"min_bid" json:"min_bid"`
	MaxActivePlayers int     `yaml:"max_active_players" json:"max_active_players"` // 0 = unlimited

	PriceUpdateRate   float64 `yaml:"price_update_rate" json:"price_update_rate"` // 0 = static price
	TargetUtilization float64 `yaml:"target_utilization" json:"target_utilization"`
	PriceGain         float64 `yaml:"price_gain" json:"price_gain"`
	MaxPriceStep      float64 `yaml:"max_price_step" json:"max_price_step"`
	MinPrice          float64 `yaml:"min_price" json:"min_price"`

	Welfare        string  `yaml:"welfare" json:"welfare"`
	RecordInterval float64 `yaml:"record_interval" json:"record_interval"` // 0 = sample after every event
	TraceLevel     string  `yaml:"trace_level" json:"trace_level"`         // "none" or "decisions"
	Seed           int64   `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the reference scenario: four proportional-fair players
// bidding for 200 time units under a static price.
func DefaultConfig() Config {
	return Config{
		NumPlayers:       4,
		PlayerBudgets:    []float64{100, 80, 120, 90},
		PlayerValuations: []float64{50, 30, 40, 35},
		PlayerAlphas:     []float64{1, 1, 1, 1},

		SimulationTime: 200,
		ArrivalRate:    0.1,
		DepartureRate:  0.05,
		BidUpdateRate:  1.0,

		BiddingPolicy:   PolicyBestResponse,
		LearningRate:    0.1,
		MaxGradientStep: 1.0,

		ConvergenceEpsilon: 1e-4,
		ConvergenceWindow:  10,
		DistanceNorm:       NormL2,

		Delta:        0.1,
		InitialPrice: 1.0,
		InitialBid:   0.001,
		MinBid:       0,

		TargetUtilization: 0.9,
		PriceGain:         0.5,
		MaxPriceStep:      0.1,
		MinPrice:          1e-3,

		Welfare:        WelfareNet,
		RecordInterval: 1.0,
		TraceLevel:     string(trace.TraceLevelNone),
		Seed:           42,
	}
}

// Profiles zips the per-player sequences.
func (c Config) Profiles() []PlayerProfile {
	out := make([]PlayerProfile, c.NumPlayers)
	for i := range out {
		out[i] = PlayerProfile{
			Budget:    c.PlayerBudgets[i],
			Valuation: c.PlayerValuations[i],
			Alpha:     c.PlayerAlphas[i],
		}
	}
	return out
}

// Validate checks every parameter and returns all problems at once.
// Each problem is a *ConfigurationError.
func (c Config) Validate() error {
	var result *multierror.Error
	add := func(field, format string, args ...any) {
		result = multierror.Append(result, configErrorf(field, format, args...))
	}
	// NaN fails every comparison and +Inf passes the lower bounds, so both
	// are rejected explicitly before any range check.
	positive := func(field string, v float64) {
		if !(v > 0) || math.IsInf(v, 1) {
			add(field, "must be finite and > 0, got %g", v)
		}
	}
	nonNegative := func(field string, v float64) {
		if !(v >= 0) || math.IsInf(v, 1) {
			add(field, "must be finite and >= 0, got %g", v)
		}
	}
	finite := func(field string, v float64) bool {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			add(field, "must be finite, got %g", v)
			return false
		}
		return true
	}

	if c.NumPlayers <= 0 {
		add("num_players", "must be > 0, got %d", c.NumPlayers)
	}
	seqs := []struct {
		field string
		vals  []float64
	}{
		{"player_budgets", c.PlayerBudgets},
		{"player_valuations", c.PlayerValuations},
		{"player_alphas", c.PlayerAlphas},
	}
	lengthsOK := true
	for _, s := range seqs {
		if len(s.vals) != c.NumPlayers {
			add(s.field, "has %d entries, num_players is %d", len(s.vals), c.NumPlayers)
			lengthsOK = false
		}
	}
	if lengthsOK {
		for i := 0; i < c.NumPlayers; i++ {
			if b := c.PlayerBudgets[i]; !(b > 0) || math.IsInf(b, 1) {
				add("player_budgets", "player %d budget must be finite and > 0, got %g", i+1, b)
			}
			if a := c.PlayerValuations[i]; !(a > 0) || math.IsInf(a, 1) {
				add("player_valuations", "player %d valuation must be finite and > 0, got %g", i+1, a)
			}
			alpha := c.PlayerAlphas[i]
			if !(alpha >= 0) || math.IsInf(alpha, 1) {
				add("player_alphas", "player %d alpha must be >= 0, got %g", i+1, alpha)
			} else if !HasClosedForm(alpha) && c.BiddingPolicy != PolicyGradientDescent {
				add("player_alphas", "player %d alpha=%g has no closed-form best response; use %s", i+1, alpha, PolicyGradientDescent)
			}
		}
	}

	positive("simulation_time", c.SimulationTime)
	nonNegative("arrival_rate", c.ArrivalRate)
	nonNegative("departure_rate", c.DepartureRate)
	positive("bid_update_rate", c.BidUpdateRate)
	nonNegative("price_update_rate", c.PriceUpdateRate)

	if !ValidBiddingPolicies[c.BiddingPolicy] {
		add("bidding_policy", "unknown policy %q", c.BiddingPolicy)
	}
	if finite("learning_rate", c.LearningRate) && c.BiddingPolicy == PolicyGradientDescent && !(c.LearningRate > 0) {
		add("learning_rate", "must be > 0 for %s, got %g", PolicyGradientDescent, c.LearningRate)
	}
	nonNegative("max_gradient_step", c.MaxGradientStep)

	positive("convergence_epsilon", c.ConvergenceEpsilon)
	if c.ConvergenceWindow <= 0 {
		add("convergence_window", "must be > 0, got %d", c.ConvergenceWindow)
	}
	if c.DistanceNorm != NormL2 && c.DistanceNorm != NormLInf {
		add("distance_norm", "must be %q or %q, got %q", NormL2, NormLInf, c.DistanceNorm)
	}

	positive("delta", c.Delta)
	positive("initial_price", c.InitialPrice)
	nonNegative("initial_bid", c.InitialBid)
	nonNegative("min_bid", c.MinBid)
	if c.MaxActivePlayers < 0 {
		add("max_active_players", "must be >= 0, got %d", c.MaxActivePlayers)
	}

	if c.PriceUpdateRate > 0 {
		if !(c.TargetUtilization > 0 && c.TargetUtilization <= 1) {
			add("target_utilization", "must be in (0, 1], got %g", c.TargetUtilization)
		}
		nonNegative("price_gain", c.PriceGain)
		if !(c.MaxPriceStep > 0 && c.MaxPriceStep < 1) {
			add("max_price_step", "must be in (0, 1), got %g", c.MaxPriceStep)
		}
		positive("min_price", c.MinPrice)
	} else {
		finite("target_utilization", c.TargetUtilization)
		finite("price_gain", c.PriceGain)
		finite("max_price_step", c.MaxPriceStep)
		finite("min_price", c.MinPrice)
	}

	if !ValidWelfareDefinitions[c.Welfare] {
		add("welfare", "must be %q or %q, got %q", WelfareNet, WelfareUtility, c.Welfare)
	}
	nonNegative("record_interval", c.RecordInterval)
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		add("trace_level", "must be %q or %q, got %q", trace.TraceLevelNone, trace.TraceLevelDecisions, c.TraceLevel)
	}

	return result.ErrorOrNil()
}
