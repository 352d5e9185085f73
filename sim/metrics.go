// Tracks the time series, per-player statistics and run summary handed to
// reporting collaborators.

package sim

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"

	"github.com/kelly-sim/kelly-sim/sim/trace"
)

// Sample is one point of the recorded time series.
type Sample struct {
	Time                  float64              `json:"time"`
	AggregateBid          float64              `json:"aggregate_bid"`
	Allocations           map[PlayerID]float64 `json:"allocations"`
	DistanceToEquilibrium float64              `json:"distance_to_equilibrium"`
	BidDistance           float64              `json:"bid_distance"`
	ActivePlayers         int                  `json:"active_players"`
	Price                 float64              `json:"price"`
}

// Episode records one convergence: the perturbation that started it and the
// time the bid vector settled again.
type Episode struct {
	Cause       string  `json:"cause"`
	Start       float64 `json:"start"`
	ConvergedAt float64 `json:"converged_at"`
	Duration    float64 `json:"duration"`
}

// Transition records a change of the run state.
type Transition struct {
	Time  float64  `json:"time"`
	From  SimState `json:"from"`
	To    SimState `json:"to"`
	Cause string   `json:"cause"`
}

// Summary is the headline record of a run.
type Summary struct {
	RunID              string    `json:"run_id"`
	Seed               int64     `json:"seed"`
	FinalState         SimState  `json:"final_state"`
	EquilibriumReached bool      `json:"equilibrium_reached"`
	ConvergenceTime    *float64  `json:"convergence_time"`
	FinalSocialWelfare float64   `json:"final_social_welfare"`
	FinalRevenue       float64   `json:"final_revenue"`
	CumulativeRevenue  float64   `json:"cumulative_revenue"`
	FinalPrice         float64   `json:"final_price"`
	NashGap            float64   `json:"nash_gap"`
	EfficiencyRatio    *float64  `json:"efficiency_ratio,omitempty"`
	EndTime            float64   `json:"end_time"`
	ActivePlayers      int       `json:"active_players"`
	EventsProcessed    int       `json:"events_processed"`
	StaleEvents        int       `json:"stale_events"`
	RejectedArrivals   int       `json:"rejected_arrivals"`
	Episodes           []Episode `json:"episodes"`
}

// PlayerStats aggregates one player's bidding history.
type PlayerStats struct {
	ID              PlayerID     `json:"id"`
	Status          PlayerStatus `json:"status"`
	Alpha           float64      `json:"alpha"`
	Budget          float64      `json:"budget"`
	Valuation       float64      `json:"valuation"`
	ArrivedAt       float64      `json:"arrived_at"`
	DepartedAt      *float64     `json:"departed_at,omitempty"`
	Updates         int          `json:"updates"`
	MeanBid         float64      `json:"mean_bid"`
	StdBid          float64      `json:"std_bid"`
	MeanAllocation  float64      `json:"mean_allocation"`
	MeanUtility     float64      `json:"mean_utility"`
	TotalPayoff     float64      `json:"total_payoff"`
	FinalBid        float64      `json:"final_bid"`
	FinalAllocation float64      `json:"final_allocation"`
}

// Results is everything a run produces.
type Results struct {
	Summary     Summary             `json:"summary"`
	Players     []PlayerStats       `json:"players"`
	Transitions []Transition        `json:"transitions"`
	TimeSeries  []Sample            `json:"time_series"`
	Trace       *trace.TraceSummary `json:"trace,omitempty"`
}

// playerTrace accumulates the values observed after each of a player's bid updates.
type playerTrace struct {
	bids        []float64
	allocations []float64
	utilities   []float64
	totalPayoff float64
}

func (t *playerTrace) record(bid, alloc, utility, payoff float64) {
	t.bids = append(t.bids, bid)
	t.allocations = append(t.allocations, alloc)
	t.utilities = append(t.utilities, utility)
	t.totalPayoff += payoff
}

func (t *playerTrace) stats(p *Player, finalAlloc float64) PlayerStats {
	ps := PlayerStats{
		ID:              p.ID,
		Status:          p.Status,
		Alpha:           p.Alpha,
		Budget:          p.Budget,
		Valuation:       p.Valuation,
		ArrivedAt:       p.ArrivedAt,
		FinalBid:        p.Bid,
		FinalAllocation: finalAlloc,
	}
	if p.Status == PlayerDeparted {
		d := p.DepartedAt
		ps.DepartedAt = &d
	}
	if t == nil || len(t.bids) == 0 {
		return ps
	}
	ps.Updates = len(t.bids)
	ps.MeanBid = stat.Mean(t.bids, nil)
	if len(t.bids) > 1 {
		ps.StdBid = stat.StdDev(t.bids, nil)
	}
	ps.MeanAllocation = stat.Mean(t.allocations, nil)
	ps.MeanUtility = stat.Mean(t.utilities, nil)
	ps.TotalPayoff = t.totalPayoff
	return ps
}

// Print writes a human-readable report of the results.
func (r *Results) Print(w io.Writer) {
	s := r.Summary
	fmt.Fprintln(w, "=== Simulation Summary ===")
	fmt.Fprintf(w, "Run ID               : %s (seed %d)\n", s.RunID, s.Seed)
	fmt.Fprintf(w, "End time             : %.2f\n", s.EndTime)
	fmt.Fprintf(w, "Final state          : %s\n", s.FinalState)
	fmt.Fprintf(w, "Equilibrium reached  : %t\n", s.EquilibriumReached)
	if s.ConvergenceTime != nil {
		fmt.Fprintf(w, "Convergence time     : %.4f\n", *s.ConvergenceTime)
	}
	fmt.Fprintf(w, "Nash gap             : %.6g\n", s.NashGap)
	fmt.Fprintf(w, "Social welfare       : %.4f\n", s.FinalSocialWelfare)
	fmt.Fprintf(w, "Revenue (rate)       : %.4f\n", s.FinalRevenue)
	fmt.Fprintf(w, "Revenue (cumulative) : %.4f\n", s.CumulativeRevenue)
	fmt.Fprintf(w, "Price                : %.4f\n", s.FinalPrice)
	if s.EfficiencyRatio != nil {
		fmt.Fprintf(w, "Efficiency ratio     : %.4f\n", *s.EfficiencyRatio)
	}
	fmt.Fprintf(w, "Active players       : %d\n", s.ActivePlayers)
	fmt.Fprintf(w, "Events processed     : %d (stale %d, rejected arrivals %d)\n",
		s.EventsProcessed, s.StaleEvents, s.RejectedArrivals)
	fmt.Fprintf(w, "Convergence episodes : %d\n", len(s.Episodes))
	if r.Trace != nil {
		fmt.Fprintf(w, "Traced revisions     : %d (probes %d, mean regret %.6g, max regret %.6g)\n",
			r.Trace.BidRevisions, r.Trace.ProbeRevisions, r.Trace.MeanRegret, r.Trace.MaxRegret)
		fmt.Fprintf(w, "Traced admissions    : %d admitted, %d rejected\n", r.Trace.AdmittedCount, r.Trace.RejectedCount)
	}

	fmt.Fprintln(w, "=== Players ===")
	for _, p := range r.Players {
		fmt.Fprintf(w, "Player %-3d %-8s alpha=%g updates=%d mean_bid=%.4f final_bid=%.4f mean_alloc=%.4f total_payoff=%.4f\n",
			p.ID, p.Status, p.Alpha, p.Updates, p.MeanBid, p.FinalBid, p.MeanAllocation, p.TotalPayoff)
	}
}
