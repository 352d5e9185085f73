// Package telemetry exports simulator activity as Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kelly-sim/kelly-sim/sim"
)

const namespace = "kelly_sim"

// Metrics implements sim.Recorder on top of a Prometheus registerer.
// One Metrics value may be shared by sequential or concurrent runs; the
// Prometheus collectors are safe for concurrent use.
type Metrics struct {
	events          *prometheus.CounterVec
	convergenceTime prometheus.Histogram
	price           prometheus.Gauge
	runs            *prometheus.CounterVec
}

var _ sim.Recorder = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Number of simulation events dequeued",
			},
			[]string{"kind", "stale"},
		),
		convergenceTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "convergence_time",
				Help:      "Simulated time from a perturbation to the next equilibrium",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500},
			},
		),
		price: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "price",
				Help:      "Last price set by the resource owner",
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Number of completed simulation runs",
			},
			[]string{"equilibrium"},
		),
	}
	for _, c := range []prometheus.Collector{m.events, m.convergenceTime, m.price, m.runs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) EventProcessed(kind sim.EventKind, stale bool) {
	label := "false"
	if stale {
		label = "true"
	}
	m.events.With(prometheus.Labels{"kind": string(kind), "stale": label}).Inc()
}

func (m *Metrics) Converged(duration float64) {
	m.convergenceTime.Observe(duration)
}

func (m *Metrics) PriceChanged(price float64) {
	m.price.Set(price)
}

// RunFinished counts a completed run.
func (m *Metrics) RunFinished(summary sim.Summary) {
	label := "false"
	if summary.EquilibriumReached {
		label = "true"
	}
	m.runs.With(prometheus.Labels{"equilibrium": label}).Inc()
	m.price.Set(summary.FinalPrice)
}
