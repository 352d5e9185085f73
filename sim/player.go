package sim

import (
	"fmt"
	"math"
)

// MinShare is the smallest allocation fed to a utility when the true share is zero.
// Utilities with alpha >= 1 diverge at zero.
const MinShare = 1e-9

// PlayerID identifies a bidder for the lifetime of a run.
type PlayerID int

// PlayerStatus is the lifecycle state of a player.
type PlayerStatus string

const (
	PlayerPending  PlayerStatus = "pending"
	PlayerActive   PlayerStatus = "active"
	PlayerDeparted PlayerStatus = "departed"
)

// Player is a budget-constrained bidder with an alpha-fair utility.
// Its methods are pure: the simulator owns Bid and Status and is the only writer.
type Player struct {
	ID        PlayerID
	Budget    float64 // maximum admissible bid
	Valuation float64 // valuation weight a_i
	Alpha     float64 // fairness parameter

	Bid        float64
	Status     PlayerStatus
	ArrivedAt  float64
	DepartedAt float64
}

// NewPlayer creates a pending player with the given profile and initial bid.
func NewPlayer(id PlayerID, profile PlayerProfile, initialBid float64) *Player {
	return &Player{
		ID:        id,
		Budget:    profile.Budget,
		Valuation: profile.Valuation,
		Alpha:     profile.Alpha,
		Bid:       min(initialBid, profile.Budget),
		Status:    PlayerPending,
	}
}

// IsActive reports whether the player currently takes part in the allocation.
func (p *Player) IsActive() bool {
	return p.Status == PlayerActive
}

// MaxBid is the largest bid the budget admits.
func (p *Player) MaxBid() float64 {
	return p.Budget
}

// Utility returns the unweighted alpha-fair utility of share x:
// ln(x) for alpha = 1, x^(1-alpha)/(1-alpha) otherwise.
func (p *Player) Utility(x float64) (float64, error) {
	return alphaUtility(x, p.Alpha)
}

func alphaUtility(x, alpha float64) (float64, error) {
	if x <= 0 {
		return 0, &DomainError{X: x, Alpha: alpha}
	}
	switch alpha {
	case 0:
		return x, nil
	case 1:
		return math.Log(x), nil
	case 2:
		return -1 / x, nil
	}
	return math.Pow(x, 1-alpha) / (1 - alpha), nil
}

// Payoff is a_i * U(x) - price * z.
func (p *Player) Payoff(x, z, price float64) (float64, error) {
	u, err := p.Utility(x)
	if err != nil {
		return 0, err
	}
	return p.Valuation*u - price*z, nil
}

// guardedPayoff evaluates Payoff with x clamped to MinShare.
func (p *Player) guardedPayoff(x, z, price float64) float64 {
	v, _ := p.Payoff(max(x, MinShare), z, price)
	return v
}

// HasClosedForm reports whether BestResponse supports the player's alpha.
func HasClosedForm(alpha float64) bool {
	return alpha == 0 || alpha == 1 || alpha == 2
}

// BestResponse returns the payoff-maximizing bid given the aggregate bid of the
// other active players, the price and the reservation delta.
//
// With s = others + delta the share is x = z/(z+s), and the first-order
// condition a*U'(x)*s/(z+s)^2 = price gives:
//
//	alpha=0: z = sqrt(a*s/price) - s
//	alpha=1: z = (-s + sqrt(s^2 + 4*a*s/price)) / 2
//	alpha=2: z = sqrt(a*s/price)
//
// The result is projected onto [minBid, MaxBid]. A sole bidder (others == 0)
// saturates at MaxBid.
func (p *Player) BestResponse(others, price, delta, minBid float64) (float64, error) {
	if !HasClosedForm(p.Alpha) {
		return 0, configErrorf("alpha", "player %d: no closed-form best response for alpha=%g", p.ID, p.Alpha)
	}
	if others <= 0 {
		return p.MaxBid(), nil
	}
	s := others + delta
	a := p.Valuation

	var z float64
	switch p.Alpha {
	case 0:
		z = math.Sqrt(a*s/price) - s
	case 1:
		z = (-s + math.Sqrt(s*s+4*a*s/price)) / 2
	case 2:
		z = math.Sqrt(a*s/price)
	}
	return p.clampBid(z, minBid), nil
}

// PayoffGradient is d(payoff)/dz at the player's current bid.
func (p *Player) PayoffGradient(others, price, delta float64) float64 {
	s := others + delta
	z := p.Bid
	x := max(z/(z+s), MinShare)
	dx := s / ((z + s) * (z + s))
	return p.Valuation*math.Pow(x, -p.Alpha)*dx - price
}

func (p *Player) clampBid(z, minBid float64) float64 {
	if math.IsNaN(z) {
		return max(minBid, 0)
	}
	return math.Min(math.Max(z, max(minBid, 0)), p.MaxBid())
}

func (p *Player) String() string {
	return fmt.Sprintf("Player(id=%d, alpha=%g, bid=%.4f, %s)", p.ID, p.Alpha, p.Bid, p.Status)
}
