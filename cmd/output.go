package cmd

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kelly-sim/kelly-sim/sim"
	"github.com/kelly-sim/kelly-sim/sim/trace"
)

// WriteTimeSeriesCSV writes one row per sample and one allocation column per
// player that was ever active.
func WriteTimeSeriesCSV(w io.Writer, results *sim.Results) error {
	ids := make([]sim.PlayerID, 0, len(results.Players))
	for _, p := range results.Players {
		ids = append(ids, p.ID)
	}

	cw := csv.NewWriter(w)
	header := []string{"time", "aggregate_bid", "distance_to_equilibrium", "bid_distance", "active_players", "price"}
	for _, id := range ids {
		header = append(header, "x_"+strconv.Itoa(int(id)))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range results.TimeSeries {
		row := []string{
			fmtFloat(s.Time),
			fmtFloat(s.AggregateBid),
			fmtFloat(s.DistanceToEquilibrium),
			fmtFloat(s.BidDistance),
			strconv.Itoa(s.ActivePlayers),
			fmtFloat(s.Price),
		}
		for _, id := range ids {
			row = append(row, fmtFloat(s.Allocations[id]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResultsJSON writes the summary, player statistics, transitions and,
// when tracing was on, the decision trace summary. The time series is left to
// the CSV export.
func WriteResultsJSON(w io.Writer, results *sim.Results) error {
	out := struct {
		Summary     sim.Summary         `json:"summary"`
		Players     []sim.PlayerStats   `json:"players"`
		Transitions []sim.Transition    `json:"transitions"`
		Trace       *trace.TraceSummary `json:"trace,omitempty"`
	}{results.Summary, results.Players, results.Transitions, results.Trace}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
