// Package rating maps PER onto the 0-10 rating scale and its tier labels.
package rating

import (
	"math"

	"github.com/fortuna/courtside/internal/models"
)

// Movement annotations.
const (
	MovedUp        = "(↑)"
	MovedDown      = "(↓)"
	MovedUpExtra   = "(↑↑)"
	MovedDownExtra = "(↓↓)"
)

// MaxRating is the top of the rating scale.
const MaxRating = 10.0

// Tier is a named rating band with an inclusive upper bound.
type Tier struct {
	Name  string
	Upper float64
}

// Tiers are ordered by ascending upper bound. Ratings above the last bound
// fall into OverflowTier.
var Tiers = []Tier{
	{"G-League", 2.5},
	{"Bench", 4.3},
	{"Rotation", 5},
	{"Starter", 5.4},
	{"Second Option", 6.5},
	{"All-Star", 7.5},
	{"Superstar", MaxRating},
}

// OverflowTier names ratings beyond every bound. FromPER clamps to
// MaxRating, so no rating derived from PER ever reaches it.
const OverflowTier = "MVP"

// FromPER converts PER to the 0-10 scale. PER 15 maps to exactly 5 and the
// result is clamped to MaxRating.
func FromPER(per float64) float64 {
	var r float64
	switch {
	case math.IsNaN(per) || per <= 0:
		r = 0
	case per <= 15:
		r = per / 15 * 5
	default:
		r = (per-15)/20*5 + 5
	}
	return math.Min(r, MaxRating)
}

// TierIndex returns the position of rating within Tiers, or len(Tiers) for
// the overflow tier.
func TierIndex(rating float64) int {
	for i, t := range Tiers {
		if rating <= t.Upper {
			return i
		}
	}
	return len(Tiers)
}

// TierName returns the label for a rating.
func TierName(rating float64) string {
	i := TierIndex(rating)
	if i == len(Tiers) {
		return OverflowTier
	}
	return Tiers[i].Name
}

// Movement annotates a tier change between two ratings. Crossing one tier
// gives a single arrow, several give a double arrow.
func Movement(prev, next float64) string {
	diff := TierIndex(next) - TierIndex(prev)
	switch {
	case diff == 1:
		return MovedUp
	case diff > 1:
		return MovedUpExtra
	case diff == -1:
		return MovedDown
	case diff < -1:
		return MovedDownExtra
	default:
		return ""
	}
}

// Assessment is the rating portion of a player aggregate.
type Assessment struct {
	Rating            *float64
	Tier              string
	Movement          string
	GPSinceLastRating int
}

// Assess rates a player from PER. Movement is only re-evaluated when the
// player's games played changed since the previous rating; otherwise the
// previous annotation carries over.
func Assess(per *float64, prev *models.PlayerAggregate, gp int) Assessment {
	if per == nil {
		a := Assessment{GPSinceLastRating: gp}
		if prev != nil {
			a.GPSinceLastRating = prev.GPSinceLastRating
		}
		return a
	}

	r := FromPER(*per)
	a := Assessment{
		Rating:            &r,
		Tier:              TierName(r),
		GPSinceLastRating: gp,
	}

	if prev == nil || prev.Rating == nil {
		return a
	}
	if prev.GPSinceLastRating == gp {
		a.Movement = prev.RatingMovement
		return a
	}
	a.Movement = Movement(*prev.Rating, r)
	return a
}

// Apply writes an assessment onto an aggregate.
func (a Assessment) Apply(agg *models.PlayerAggregate) {
	agg.Rating = a.Rating
	agg.RatingString = a.Tier
	agg.RatingMovement = a.Movement
	agg.GPSinceLastRating = a.GPSinceLastRating
}
