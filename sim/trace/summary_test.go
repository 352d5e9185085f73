package trace

import "testing"

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalAdmissions != 0 || summary.BidRevisions != 0 {
		t.Error("expected zero counts for nil trace")
	}
	if summary.RevisionsByID == nil {
		t.Error("expected non-nil revisions map")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed admission and bid records
	st := NewSimulationTrace(TraceLevelDecisions)
	st.RecordAdmission(AdmissionRecord{PlayerID: 5, Admitted: true})
	st.RecordAdmission(AdmissionRecord{PlayerID: 6, Admitted: false, Reason: "max_active_players"})
	st.RecordAdmission(AdmissionRecord{PlayerID: 7, Admitted: true})
	st.RecordBid(BidRecord{PlayerID: 1, Regret: 0.1})
	st.RecordBid(BidRecord{PlayerID: 1, Regret: 0.5, Probe: true})
	st.RecordBid(BidRecord{PlayerID: 2, Regret: 0.2})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.TotalAdmissions != 3 {
		t.Errorf("expected 3 admissions, got %d", summary.TotalAdmissions)
	}
	if summary.AdmittedCount != 2 || summary.RejectedCount != 1 {
		t.Errorf("expected 2 admitted and 1 rejected, got %d and %d", summary.AdmittedCount, summary.RejectedCount)
	}
	if summary.BidRevisions != 3 || summary.ProbeRevisions != 1 {
		t.Errorf("expected 3 revisions (1 probe), got %d (%d)", summary.BidRevisions, summary.ProbeRevisions)
	}
	if summary.RevisionsByID[1] != 2 || summary.RevisionsByID[2] != 1 {
		t.Errorf("unexpected per-player counts %v", summary.RevisionsByID)
	}

	// THEN mean regret = (0.1 + 0.5 + 0.2) / 3
	expectedMean := (0.1 + 0.5 + 0.2) / 3.0
	if summary.MeanRegret < expectedMean-1e-9 || summary.MeanRegret > expectedMean+1e-9 {
		t.Errorf("expected mean regret %.4f, got %.4f", expectedMean, summary.MeanRegret)
	}
	if summary.MaxRegret != 0.5 {
		t.Errorf("expected max regret 0.5, got %.4f", summary.MaxRegret)
	}
}
