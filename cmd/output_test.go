package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelly-sim/kelly-sim/sim"
)

func smallRun(t *testing.T) *sim.Results {
	t.Helper()
	cfg := sim.DefaultConfig()
	cfg.NumPlayers = 2
	cfg.PlayerBudgets = []float64{10, 10}
	cfg.PlayerValuations = []float64{1, 2}
	cfg.PlayerAlphas = []float64{1, 1}
	cfg.ArrivalRate = 0
	cfg.DepartureRate = 0
	cfg.SimulationTime = 20
	cfg.RecordInterval = 5
	s, err := sim.NewSimulator(cfg, sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)))
	require.NoError(t, err)
	results, err := s.Run()
	require.NoError(t, err)
	return results
}

func TestWriteTimeSeriesCSV(t *testing.T) {
	results := smallRun(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTimeSeriesCSV(&buf, results))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(results.TimeSeries)+1)
	assert.Equal(t, []string{"time", "aggregate_bid", "distance_to_equilibrium", "bid_distance", "active_players", "price", "x_1", "x_2"}, rows[0])
	assert.Equal(t, "0", rows[1][0])
	assert.Equal(t, "20", rows[len(rows)-1][0])
	for _, row := range rows[1:] {
		assert.Len(t, row, 8)
		assert.Equal(t, "2", row[4])
	}
}

func TestWriteResultsJSON(t *testing.T) {
	results := smallRun(t)
	var buf bytes.Buffer
	require.NoError(t, WriteResultsJSON(&buf, results))

	var decoded struct {
		Summary     sim.Summary       `json:"summary"`
		Players     []sim.PlayerStats `json:"players"`
		Transitions []sim.Transition  `json:"transitions"`
		TimeSeries  []sim.Sample      `json:"time_series"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, results.Summary.RunID, decoded.Summary.RunID)
	assert.Len(t, decoded.Players, 2)
	assert.NotEmpty(t, decoded.Transitions)
	assert.Empty(t, decoded.TimeSeries, "time series goes to the CSV export")
}
