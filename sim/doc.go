// Package sim provides the discrete-event simulator of the Kelly proportional
// allocation mechanism among strategic, budget-constrained bidders.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - player.go: alpha-fair utility, payoff and closed-form best responses
//   - event.go: the four event kinds (arrival, departure, bid-update, price-update)
//   - simulator.go: the event loop, lazy cancellation and convergence detection
//
// # Architecture
//
// Simulator is the single writer of run state. Player, ResourceOwner and
// KellyMechanism compute values from the state it passes in; BiddingPolicy is a
// strategy chosen once from Config.BiddingPolicy. Randomness comes from an
// injected PartitionedRNG so a seed fully determines a run.
//
// Events are ordered by timestamp, ties broken by a per-simulator sequence
// number. Events aimed at a departed player stay in the queue and are ignored
// when dequeued.
//
// Sub-packages:
//   - sim/telemetry/: Prometheus implementation of Recorder
//   - sim/trace/: admission and bid-revision records (trace_level: decisions)
package sim
