package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAdmissions int         `json:"total_admissions"`
	AdmittedCount   int         `json:"admitted_count"`
	RejectedCount   int         `json:"rejected_count"`
	BidRevisions    int         `json:"bid_revisions"`
	ProbeRevisions  int         `json:"probe_revisions"`
	MeanRegret      float64     `json:"mean_regret"`
	MaxRegret       float64     `json:"max_regret"`
	RevisionsByID   map[int]int `json:"revisions_by_player"` // player ID → count of revisions
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RevisionsByID: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalAdmissions = len(st.Admissions)
	for _, a := range st.Admissions {
		if a.Admitted {
			summary.AdmittedCount++
		} else {
			summary.RejectedCount++
		}
	}

	if len(st.Bids) > 0 {
		totalRegret := 0.0
		for _, b := range st.Bids {
			summary.RevisionsByID[b.PlayerID]++
			if b.Probe {
				summary.ProbeRevisions++
			}
			totalRegret += b.Regret
			if b.Regret > summary.MaxRegret {
				summary.MaxRegret = b.Regret
			}
		}
		summary.MeanRegret = totalRegret / float64(len(st.Bids))
	}
	summary.BidRevisions = len(st.Bids)

	return summary
}
