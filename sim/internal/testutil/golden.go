// Package testutil holds fixtures shared by the sim test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// EquilibriumDataset is the decoded form of testdata/kelly_equilibria.json.
type EquilibriumDataset struct {
	Tests []EquilibriumCase `json:"tests"`
}

// EquilibriumCase is a closed market and its Nash equilibrium bids, solved
// offline by iterating exact best responses until they stopped moving.
// Slices are indexed by player in admission order.
type EquilibriumCase struct {
	Name             string    `json:"name"`
	PlayerBudgets    []float64 `json:"player_budgets"`
	PlayerValuations []float64 `json:"player_valuations"`
	PlayerAlphas     []float64 `json:"player_alphas"`
	Delta            float64   `json:"delta"`
	Price            float64   `json:"price"`
	EquilibriumBids  []float64 `json:"equilibrium_bids"`
}

// datasetPath locates the repo-level testdata directory from this file,
// so tests in any package can load it regardless of their working directory.
func datasetPath(t *testing.T) string {
	t.Helper()
	_, here, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot resolve testutil source location")
	}
	return filepath.Join(filepath.Dir(here), "..", "..", "..", "testdata", "kelly_equilibria.json")
}

// LoadEquilibria reads the equilibrium dataset and fails the test if it is
// missing, malformed or has ragged per-player columns.
func LoadEquilibria(t *testing.T) *EquilibriumDataset {
	t.Helper()
	data, err := os.ReadFile(datasetPath(t))
	if err != nil {
		t.Fatalf("reading equilibrium dataset: %v", err)
	}
	var ds EquilibriumDataset
	if err := json.Unmarshal(data, &ds); err != nil {
		t.Fatalf("parsing equilibrium dataset: %v", err)
	}
	for _, c := range ds.Tests {
		n := len(c.EquilibriumBids)
		if len(c.PlayerBudgets) != n || len(c.PlayerValuations) != n || len(c.PlayerAlphas) != n {
			t.Fatalf("case %q: per-player columns disagree in length", c.Name)
		}
	}
	return &ds
}

// AssertFloat64Equal fails when want and got differ by more than relTol
// relative to the larger magnitude.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	scale := math.Max(math.Abs(want), math.Abs(got))
	if scale == 0 {
		return
	}
	if rel := math.Abs(want-got) / scale; rel > relTol {
		t.Errorf("%s: got %v, want %v (relDiff=%v)", name, got, want, rel)
	}
}
