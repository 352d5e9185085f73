package sim

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// SimulationKey is the master seed of a run. Equal keys and equal
// configurations replay identical event sequences.
type SimulationKey int64

// NewSimulationKey wraps a seed.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Random stream names. Each stochastic process in the market draws from its own stream.
const (
	SubsystemArrival   = "arrival"   // inter-arrival gaps of new players
	SubsystemDeparture = "departure" // player sojourn times
	SubsystemBidding   = "bidding"   // gaps between bid revisions
	SubsystemPricing   = "pricing"   // gaps between price adjustments
)

// PartitionedRNG hands out one independent generator per named stream.
// A stream is seeded with key XOR fnv1a64(name), so turning on price updates
// does not shift the arrival or bidding draws of an otherwise equal run.
//
// Not safe for concurrent use; the event loop is its only caller.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates the stream set for key.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// Stream returns the generator for name, creating it on first use.
func (p *PartitionedRNG) Stream(name string) *rand.Rand {
	r, ok := p.streams[name]
	if !ok {
		h := fnv.New64a()
		h.Write([]byte(name))
		r = rand.New(rand.NewSource(int64(p.key) ^ int64(h.Sum64())))
		p.streams[name] = r
	}
	return r
}

// Exponential draws a gap with the given rate from stream name.
// A rate <= 0 returns +Inf: the process is switched off.
func (p *PartitionedRNG) Exponential(name string, rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return p.Stream(name).ExpFloat64() / rate
}

// Key returns the master seed.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}
