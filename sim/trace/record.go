// Package trace records the decisions taken during a run: admissions of
// arriving players and bid revisions with their regret.
// This package has no dependencies on sim/: it stores pure data types.
package trace

// AdmissionRecord captures one arrival and whether it joined the market.
type AdmissionRecord struct {
	PlayerID int
	Clock    float64
	Admitted bool
	Reason   string
}

// BidRecord captures one bid revision.
type BidRecord struct {
	PlayerID     int
	Clock        float64
	Probe        bool    // one-shot revision scheduled after a departure
	PreviousBid  float64
	NewBid       float64
	BestResponse float64 // NaN when alpha has no closed form
	Others       float64 // aggregate bid of the other active players
	Share        float64 // allocation after the revision
	Regret       float64 // payoff(best response) - payoff(new bid); 0 when the policy is exact
}
