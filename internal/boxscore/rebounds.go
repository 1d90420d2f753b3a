package boxscore

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	threePointOREBRate = 0.28
	twoPointOREBRate   = 0.22
)

// ExpectedOffensiveRebounds is the share of misses a team is expected to recover.
func ExpectedOffensiveRebounds(missed3, missed2 int) int {
	return int(math.Floor(float64(missed3)*threePointOREBRate + float64(missed2)*twoPointOREBRate))
}

// SampleOffensiveRebounds draws a team's offensive rebounds around the
// expectation with a spread of treb/6, clamped to [0, treb].
func SampleOffensiveRebounds(treb, expected int, rng *rand.Rand) int {
	if treb <= 0 {
		return 0
	}

	dist := distuv.Normal{Mu: float64(expected), Sigma: float64(treb) / 6, Src: rng}
	v := math.Min(math.Max(dist.Rand(), 0), float64(treb))
	return int(math.Floor(v))
}

// ReboundShare is one player's eligibility for offensive rebound allocation.
type ReboundShare struct {
	Key  int
	Treb int
}

// AllocateOffensiveRebounds hands a team's offensive rebounds to its players in
// random order. Each eligible player gets between 1 and min(pool, treb) until
// the pool or the players run out; leftovers stay unassigned.
func AllocateOffensiveRebounds(players []ReboundShare, teamOREB int, rng *rand.Rand) map[int]int {
	out := make(map[int]int, len(players))

	eligible := make([]ReboundShare, 0, len(players))
	for _, p := range players {
		out[p.Key] = 0
		if p.Treb > 0 {
			eligible = append(eligible, p)
		}
	}

	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})

	pool := teamOREB
	for _, p := range eligible {
		if pool <= 0 {
			break
		}
		maxAssign := min(pool, p.Treb)
		assigned := rng.IntN(maxAssign) + 1
		out[p.Key] += assigned
		pool -= assigned
	}

	return out
}
