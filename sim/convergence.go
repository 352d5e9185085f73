package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SimState is the state of a run.
type SimState string

const (
	StateRunning    SimState = "running"
	StateConverged  SimState = "converged"
	StatePerturbed  SimState = "perturbed"
	StateTerminated SimState = "terminated"
)

// bidDistance is the L2 or L-infinity distance between two bid vectors over the
// union of their ids; a missing bid counts as zero.
func bidDistance(prev, cur BidVector, norm string) float64 {
	union := make(BidVector, len(prev)+len(cur))
	for id := range prev {
		union[id] = 0
	}
	for id := range cur {
		union[id] = 0
	}
	ids := union.IDs()
	if len(ids) == 0 {
		return 0
	}
	a := make([]float64, len(ids))
	b := make([]float64, len(ids))
	for i, id := range ids {
		a[i] = prev[id]
		b[i] = cur[id]
	}
	l := 2.0
	if norm == NormLInf {
		l = math.Inf(1)
	}
	return floats.Distance(a, b, l)
}

// convergenceTracker holds the streak of consecutive small bid-vector distances.
type convergenceTracker struct {
	epsilon float64
	window  int

	streak  int
	players map[PlayerID]struct{} // players updated during the current streak
}

func newConvergenceTracker(epsilon float64, window int) *convergenceTracker {
	return &convergenceTracker{
		epsilon: epsilon,
		window:  window,
		players: make(map[PlayerID]struct{}),
	}
}

// observe records a distance and reports whether it stayed below epsilon.
func (c *convergenceTracker) observe(dist float64, id PlayerID) bool {
	if dist >= c.epsilon {
		c.streak = 0
		clear(c.players)
		return false
	}
	c.streak++
	c.players[id] = struct{}{}
	return true
}

// settled reports whether the last window distances were all below epsilon and
// every active player revised its bid during the streak.
func (c *convergenceTracker) settled(active []*Player) bool {
	if c.streak < c.window {
		return false
	}
	for _, p := range active {
		if _, ok := c.players[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (c *convergenceTracker) reset() {
	c.streak = 0
	clear(c.players)
}
