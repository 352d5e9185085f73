package sim

import "fmt"

// ResourceOwner sets the unit price and collects the bids.
type ResourceOwner struct {
	Price             float64 // lambda, always > 0
	Delta             float64 // reservation, fixed
	CumulativeRevenue float64

	// price adjustment policy
	Gain     float64
	MaxStep  float64
	MinPrice float64
}

// NewResourceOwner creates an owner with the configured price and reservation.
func NewResourceOwner(cfg Config) *ResourceOwner {
	return &ResourceOwner{
		Price:    cfg.InitialPrice,
		Delta:    cfg.Delta,
		Gain:     cfg.PriceGain,
		MaxStep:  cfg.MaxPriceStep,
		MinPrice: cfg.MinPrice,
	}
}

// AggregateBid sums the bids of the active players.
func (o *ResourceOwner) AggregateBid(players []*Player) float64 {
	total := 0.0
	for _, p := range players {
		if p.IsActive() {
			total += p.Bid
		}
	}
	return total
}

// AggregateBidExcluding sums the bids of the active players other than id.
func (o *ResourceOwner) AggregateBidExcluding(players []*Player, id PlayerID) float64 {
	total := 0.0
	for _, p := range players {
		if p.IsActive() && p.ID != id {
			total += p.Bid
		}
	}
	return total
}

// Aggregates returns, for every active player, the aggregate bid of the others.
func (o *ResourceOwner) Aggregates(players []*Player) map[PlayerID]float64 {
	out := make(map[PlayerID]float64, len(players))
	for _, p := range players {
		if p.IsActive() {
			out[p.ID] = o.AggregateBidExcluding(players, p.ID)
		}
	}
	return out
}

// Revenue is the instantaneous revenue rate price * aggregate bid.
func (o *ResourceOwner) Revenue(aggregate float64) float64 {
	return o.Price * aggregate
}

// Accrue adds the revenue earned over an interval of length dt.
func (o *ResourceOwner) Accrue(dt, aggregate float64) {
	if dt > 0 {
		o.CumulativeRevenue += o.Revenue(aggregate) * dt
	}
}

// AdjustPrice takes a bounded proportional step toward the utilization target
// and returns the new price. The price never drops below MinPrice (> 0).
func (o *ResourceOwner) AdjustPrice(target, observed float64) float64 {
	step := o.Gain * (observed - target)
	if o.MaxStep > 0 {
		step = max(-o.MaxStep, min(step, o.MaxStep))
	}
	o.Price = max(o.Price*(1+step), o.MinPrice)
	return o.Price
}

func (o *ResourceOwner) String() string {
	return fmt.Sprintf("ResourceOwner(price=%.4f, delta=%.4f)", o.Price, o.Delta)
}
