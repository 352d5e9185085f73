package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// staticConfig is a closed population of identical players: no arrivals,
// departures or price updates, so only bid revisions move the state.
func staticConfig(n int, alpha float64) Config {
	cfg := DefaultConfig()
	cfg.NumPlayers = n
	cfg.PlayerBudgets = make([]float64, n)
	cfg.PlayerValuations = make([]float64, n)
	cfg.PlayerAlphas = make([]float64, n)
	for i := 0; i < n; i++ {
		cfg.PlayerBudgets[i] = 10
		cfg.PlayerValuations[i] = 1
		cfg.PlayerAlphas[i] = alpha
	}
	cfg.ArrivalRate = 0
	cfg.DepartureRate = 0
	cfg.PriceUpdateRate = 0
	cfg.SimulationTime = 200
	return cfg
}

func mustSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	s, err := NewSimulator(cfg, NewPartitionedRNG(NewSimulationKey(cfg.Seed)))
	require.NoError(t, err)
	return s
}

func mustRun(t *testing.T, s *Simulator) *Results {
	t.Helper()
	results, err := s.Run()
	require.NoError(t, err)
	return results
}

// symmetricEquilibrium solves z = BR(others=(n-1)z) for n identical players
// with valuation 1 at unit price.
func symmetricEquilibrium(n int, alpha, delta float64) float64 {
	m := float64(n - 1)
	switch alpha {
	case 0:
		// (n z + delta)^2 = m z + delta
		a, b, c := float64(n*n), 2*float64(n)*delta-m, delta*delta-delta
		return (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
	case 1:
		// n z^2 + (delta - m) z - delta = 0
		a, b, c := float64(n), delta-m, -delta
		return (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
	case 2:
		// z^2 = m z + delta
		return (m + math.Sqrt(m*m+4*delta)) / 2
	}
	panic("no closed form")
}

type countingRecorder struct {
	events    map[EventKind]int
	stale     int
	converged []float64
	prices    []float64
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{events: make(map[EventKind]int)}
}

func (r *countingRecorder) EventProcessed(kind EventKind, stale bool) {
	r.events[kind]++
	if stale {
		r.stale++
	}
}

func (r *countingRecorder) Converged(d float64) { r.converged = append(r.converged, d) }

func (r *countingRecorder) PriceChanged(p float64) { r.prices = append(r.prices, p) }
