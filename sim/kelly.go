package sim

import (
	"math"
	"slices"
)

// BidVector maps active players to their bids.
type BidVector map[PlayerID]float64

// IDs returns the player ids in ascending order.
func (b BidVector) IDs() []PlayerID {
	ids := make([]PlayerID, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Sum adds the bids in id order so results are reproducible bit for bit.
func (b BidVector) Sum() float64 {
	total := 0.0
	for _, id := range b.IDs() {
		total += b[id]
	}
	return total
}

// KellyMechanism allocates a unit resource proportionally to bids.
type KellyMechanism struct {
	Delta float64
}

// Allocate returns x_i = z_i / (sum_j z_j + delta) for every bidder.
// All-zero bids give all-zero allocations.
func (k KellyMechanism) Allocate(bids BidVector) map[PlayerID]float64 {
	denom := bids.Sum() + k.Delta
	out := make(map[PlayerID]float64, len(bids))
	for id, z := range bids {
		if z <= 0 || denom <= 0 {
			out[id] = 0
			continue
		}
		out[id] = z / denom
	}
	return out
}

// Share is the allocation a bid z receives against the others' aggregate.
func (k KellyMechanism) Share(z, others float64) float64 {
	if z <= 0 {
		return 0
	}
	return z / (z + others + k.Delta)
}

// NashGap is sum_i |z_i - BR_i(s_-i)| over the active players: zero exactly at a
// Nash equilibrium of the best-response game.
func (k KellyMechanism) NashGap(players []*Player, owner *ResourceOwner, minBid float64) float64 {
	gap := 0.0
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		br, err := p.BestResponse(owner.AggregateBidExcluding(players, p.ID), owner.Price, k.Delta, minBid)
		if err != nil {
			// alpha without a closed form: fall back to the first-order residual
			gap += math.Abs(p.PayoffGradient(owner.AggregateBidExcluding(players, p.ID), owner.Price, k.Delta))
			continue
		}
		gap += math.Abs(p.Bid - br)
	}
	return gap
}

// IsNashEquilibrium reports whether no active player is more than tol away from
// its best response.
func (k KellyMechanism) IsNashEquilibrium(players []*Player, owner *ResourceOwner, minBid, tol float64) bool {
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		br, err := p.BestResponse(owner.AggregateBidExcluding(players, p.ID), owner.Price, k.Delta, minBid)
		if err != nil || math.Abs(p.Bid-br) > tol {
			return false
		}
	}
	return true
}
