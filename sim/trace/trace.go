package trace

// TraceLevel selects what the simulator writes to a SimulationTrace.
type TraceLevel string

const (
	TraceLevelNone      TraceLevel = "none"      // record nothing
	TraceLevelDecisions TraceLevel = "decisions" // every admission and bid revision
)

// IsValidTraceLevel reports whether level names a known TraceLevel.
// The empty string is accepted and means none.
func IsValidTraceLevel(level string) bool {
	switch TraceLevel(level) {
	case "", TraceLevelNone, TraceLevelDecisions:
		return true
	}
	return false
}

// SimulationTrace is the append-only decision log of one run.
// Records are kept in the order the event loop produced them.
type SimulationTrace struct {
	Level      TraceLevel
	Admissions []AdmissionRecord
	Bids       []BidRecord
}

func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	return &SimulationTrace{Level: level}
}

func (st *SimulationTrace) RecordAdmission(r AdmissionRecord) {
	st.Admissions = append(st.Admissions, r)
}

func (st *SimulationTrace) RecordBid(r BidRecord) {
	st.Bids = append(st.Bids, r)
}

// BidsFor returns the revisions made by one player, oldest first.
func (st *SimulationTrace) BidsFor(id int) []BidRecord {
	var out []BidRecord
	for _, b := range st.Bids {
		if b.PlayerID == id {
			out = append(out, b)
		}
	}
	return out
}
