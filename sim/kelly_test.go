package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePlayers(alpha float64, valuations ...float64) []*Player {
	out := make([]*Player, len(valuations))
	for i, a := range valuations {
		p := NewPlayer(PlayerID(i+1), PlayerProfile{Budget: 10, Valuation: a, Alpha: alpha}, 0)
		p.Status = PlayerActive
		out[i] = p
	}
	return out
}

func TestKellyMechanism_Allocate(t *testing.T) {
	k := KellyMechanism{Delta: 0.1}
	got := k.Allocate(BidVector{1: 1, 2: 2, 3: 0.9})
	assert.InDelta(t, 0.25, got[1], 1e-12)
	assert.InDelta(t, 0.5, got[2], 1e-12)
	assert.InDelta(t, 0.225, got[3], 1e-12)
}

func TestKellyMechanism_Allocate_ZeroBids(t *testing.T) {
	k := KellyMechanism{Delta: 0.1}
	got := k.Allocate(BidVector{1: 0, 2: 0})
	assert.Equal(t, map[PlayerID]float64{1: 0, 2: 0}, got)
	assert.Empty(t, k.Allocate(BidVector{}))
}

func TestKellyMechanism_Allocate_NeverOverAllocates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 500; trial++ {
		k := KellyMechanism{Delta: rng.Float64() * 0.5}
		if k.Delta == 0 {
			k.Delta = 1e-6
		}
		bids := make(BidVector)
		n := 1 + rng.Intn(20)
		for id := 1; id <= n; id++ {
			if rng.Intn(4) == 0 {
				bids[PlayerID(id)] = 0
			} else {
				bids[PlayerID(id)] = rng.ExpFloat64() * 10
			}
		}
		total := 0.0
		for id, x := range k.Allocate(bids) {
			require.GreaterOrEqual(t, x, 0.0)
			require.LessOrEqual(t, x, 1.0)
			if bids[id] == 0 {
				require.Zero(t, x)
			}
			total += x
		}
		require.Less(t, total, 1.0, "trial %d: delta>0 must leave part of the resource unallocated", trial)
	}
}

func TestKellyMechanism_Share(t *testing.T) {
	k := KellyMechanism{Delta: 0.1}
	assert.InDelta(t, 1/2.1, k.Share(1, 1), 1e-12)
	assert.Zero(t, k.Share(0, 1))
}

func TestBidVector_IDsSorted(t *testing.T) {
	b := BidVector{5: 1, 2: 1, 9: 1, 1: 1}
	assert.Equal(t, []PlayerID{1, 2, 5, 9}, b.IDs())
	assert.InDelta(t, 4, b.Sum(), 1e-12)
}

func TestKellyMechanism_NashGap(t *testing.T) {
	owner := &ResourceOwner{Price: 1, Delta: 0.1}
	k := KellyMechanism{Delta: 0.1}
	players := activePlayers(1, 1, 1, 1)

	// symmetric equilibrium solves 3z^2 + (delta-2)z - delta = 0
	zStar := ((2 - 0.1) + math.Sqrt((0.1-2)*(0.1-2)+12*0.1)) / 6
	for _, p := range players {
		p.Bid = zStar
	}
	assert.InDelta(t, 0, k.NashGap(players, owner, 0), 1e-9)
	assert.True(t, k.IsNashEquilibrium(players, owner, 0, 1e-9))

	players[0].Bid = zStar + 0.2
	assert.Greater(t, k.NashGap(players, owner, 0), 0.1)
	assert.False(t, k.IsNashEquilibrium(players, owner, 0, 1e-6))
}

func TestKellyMechanism_NashGap_GradientFallback(t *testing.T) {
	owner := &ResourceOwner{Price: 1, Delta: 0.1}
	k := KellyMechanism{Delta: 0.1}
	players := activePlayers(1.5, 4, 4)
	for _, p := range players {
		p.Bid = 1
	}
	want := 0.0
	for _, p := range players {
		want += math.Abs(p.PayoffGradient(1, 1, 0.1))
	}
	assert.InDelta(t, want, k.NashGap(players, owner, 0), 1e-12)
	assert.False(t, k.IsNashEquilibrium(players, owner, 0, 1))
}

func TestSocialWelfare(t *testing.T) {
	players := activePlayers(1, 2, 3)
	players[0].Bid, players[1].Bid = 1, 2
	alloc := map[PlayerID]float64{1: 0.25, 2: 0.5}

	utility := 2*math.Log(0.25) + 3*math.Log(0.5)
	assert.InDelta(t, utility, SocialWelfare(players, alloc, 2, WelfareUtility), 1e-12)
	assert.InDelta(t, utility-2*3, SocialWelfare(players, alloc, 2, WelfareNet), 1e-12)

	players[1].Status = PlayerDeparted
	assert.InDelta(t, 2*math.Log(0.25), SocialWelfare(players, alloc, 0, WelfareUtility), 1e-12)
}

func TestOptimalWelfare(t *testing.T) {
	t.Run("linear gives everything to the top valuation", func(t *testing.T) {
		w, ok := OptimalWelfare(activePlayers(0, 1, 5, 3))
		require.True(t, ok)
		assert.Equal(t, 5.0, w)
	})
	t.Run("log splits in proportion to valuation", func(t *testing.T) {
		w, ok := OptimalWelfare(activePlayers(1, 1, 3))
		require.True(t, ok)
		assert.InDelta(t, math.Log(0.25)+3*math.Log(0.75), w, 1e-12)
	})
	t.Run("mixed alphas are not supported", func(t *testing.T) {
		players := append(activePlayers(1, 1), activePlayers(2, 1)...)
		_, ok := OptimalWelfare(players)
		assert.False(t, ok)
	})
}

func TestEfficiencyRatio(t *testing.T) {
	players := activePlayers(0, 1, 2)
	ratio, ok := EfficiencyRatio(players, map[PlayerID]float64{1: 0.25, 2: 0.5})
	require.True(t, ok)
	assert.InDelta(t, 2/1.25, ratio, 1e-12)

	_, ok = EfficiencyRatio(activePlayers(1, 1, 1), map[PlayerID]float64{1: 0.5, 2: 0.4})
	assert.False(t, ok, "negative log welfare has no meaningful ratio")
}
