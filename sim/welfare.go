package sim

import "math"

// Welfare definitions accepted in Config.Welfare.
const (
	WelfareNet     = "net"     // sum a_i U(x_i) minus revenue
	WelfareUtility = "utility" // sum a_i U(x_i)
)

// ValidWelfareDefinitions is the set of recognized welfare definitions.
var ValidWelfareDefinitions = map[string]bool{WelfareNet: true, WelfareUtility: true}

// SocialWelfare aggregates weighted utilities of the active players at the given
// allocation. Zero shares are evaluated at MinShare.
func SocialWelfare(players []*Player, alloc map[PlayerID]float64, price float64, definition string) float64 {
	total := 0.0
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		u, _ := p.Utility(max(alloc[p.ID], MinShare))
		total += p.Valuation * u
		if definition == WelfareNet {
			total -= price * p.Bid
		}
	}
	return total
}

// OptimalWelfare is the utilitarian optimum of sum a_i U(x_i) subject to
// sum x_i <= 1 when every active player shares the same alpha. ok is false for
// mixed populations.
func OptimalWelfare(players []*Player) (welfare float64, ok bool) {
	var active []*Player
	for _, p := range players {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return 0, false
	}
	alpha := active[0].Alpha
	for _, p := range active[1:] {
		if p.Alpha != alpha {
			return 0, false
		}
	}

	if alpha == 0 {
		// linear utilities: the whole resource goes to the highest valuation
		best := 0.0
		for _, p := range active {
			best = max(best, p.Valuation)
		}
		return best, true
	}

	// x_i proportional to a_i^(1/alpha)
	norm := 0.0
	for _, p := range active {
		norm += math.Pow(p.Valuation, 1/alpha)
	}
	for _, p := range active {
		u, _ := alphaUtility(math.Pow(p.Valuation, 1/alpha)/norm, alpha)
		welfare += p.Valuation * u
	}
	return welfare, true
}

// EfficiencyRatio is optimal / achieved utilitarian welfare. Only meaningful
// when both are positive; ok is false otherwise.
func EfficiencyRatio(players []*Player, alloc map[PlayerID]float64) (float64, bool) {
	opt, ok := OptimalWelfare(players)
	if !ok || opt <= 0 {
		return 0, false
	}
	achieved := SocialWelfare(players, alloc, 0, WelfareUtility)
	if achieved <= 0 {
		return 0, false
	}
	return opt / achieved, true
}
