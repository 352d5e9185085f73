package sim

import "math"

// Bidding policy names accepted in Config.BiddingPolicy.
const (
	PolicyBestResponse    = "best_response"
	PolicyGradientDescent = "gradient_descent"
)

// ValidBiddingPolicies is the set of recognized bidding policy names.
var ValidBiddingPolicies = map[string]bool{PolicyBestResponse: true, PolicyGradientDescent: true}

// BidContext is what a player observes when it revises its bid.
type BidContext struct {
	Others float64 // aggregate bid of the other active players
	Price  float64
	Delta  float64
	MinBid float64
}

// BiddingPolicy computes a player's next bid. Implementations are pure.
type BiddingPolicy interface {
	Name() string
	NextBid(p *Player, ctx BidContext) (float64, error)
}

// BestResponsePolicy jumps straight to the closed-form best response.
type BestResponsePolicy struct{}

func (BestResponsePolicy) Name() string { return PolicyBestResponse }

func (BestResponsePolicy) NextBid(p *Player, ctx BidContext) (float64, error) {
	return p.BestResponse(ctx.Others, ctx.Price, ctx.Delta, ctx.MinBid)
}

// GradientDescentPolicy moves the bid a bounded step along the payoff gradient.
type GradientDescentPolicy struct {
	LearningRate float64
	MaxStep      float64 // 0 means unbounded
}

func (GradientDescentPolicy) Name() string { return PolicyGradientDescent }

func (g GradientDescentPolicy) NextBid(p *Player, ctx BidContext) (float64, error) {
	step := g.LearningRate * p.PayoffGradient(ctx.Others, ctx.Price, ctx.Delta)
	if g.MaxStep > 0 {
		step = math.Max(-g.MaxStep, math.Min(step, g.MaxStep))
	}
	return p.clampBid(p.Bid+step, ctx.MinBid), nil
}

// NewBiddingPolicy selects the policy named in the config.
func NewBiddingPolicy(cfg Config) (BiddingPolicy, error) {
	switch cfg.BiddingPolicy {
	case PolicyBestResponse:
		return BestResponsePolicy{}, nil
	case PolicyGradientDescent:
		return GradientDescentPolicy{LearningRate: cfg.LearningRate, MaxStep: cfg.MaxGradientStep}, nil
	}
	return nil, configErrorf("bidding_policy", "unknown policy %q", cfg.BiddingPolicy)
}
