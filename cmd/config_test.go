package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelly-sim/kelly-sim/sim"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultConfig(), cfg)
}

func TestLoadConfig_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeScenario(t, `
num_players: 2
player_budgets: [5, 6]
player_valuations: [1, 2]
player_alphas: [0, 2]
bidding_policy: gradient_descent
price_update_rate: 0.5
seed: 7
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.NumPlayers)
	assert.Equal(t, []float64{5, 6}, cfg.PlayerBudgets)
	assert.Equal(t, []float64{0, 2}, cfg.PlayerAlphas)
	assert.Equal(t, sim.PolicyGradientDescent, cfg.BiddingPolicy)
	assert.Equal(t, int64(7), cfg.Seed)
	// untouched keys keep their defaults
	assert.Equal(t, sim.DefaultConfig().Delta, cfg.Delta)
	assert.Equal(t, sim.DefaultConfig().ConvergenceWindow, cfg.ConvergenceWindow)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	path := writeScenario(t, "num_player: 3\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_player")
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeScenario(t, ""))
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoadConfig_NonFiniteValuesFailValidation(t *testing.T) {
	tests := []struct {
		name, yaml, field string
	}{
		{"nan initial bid", "initial_bid: .nan\n", "initial_bid"},
		{"nan arrival rate", "arrival_rate: .nan\n", "arrival_rate"},
		{"infinite horizon", "simulation_time: .inf\n", "simulation_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a scenario that YAML decodes into a non-finite float
			cfg, err := LoadConfig(writeScenario(t, tt.yaml))
			require.NoError(t, err)

			// THEN validation names the offending field
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
