// Package elo rates players against every other identified human player in a
// game, weighting each pairing by margin of victory and the gap in team
// strength.
package elo

import (
	"math"

	"github.com/fortuna/courtside/internal/models"
)

// Default engine parameters.
const (
	DefaultK     = 20.0
	DefaultScale = 400.0
)

// Engine computes Elo updates for uploaded games.
type Engine struct {
	K     float64
	Scale float64
}

// NewEngine returns an engine with the default K factor and scale.
func NewEngine() *Engine {
	return &Engine{K: DefaultK, Scale: DefaultScale}
}

// GameScore is the weighted box-score line used to compare players. Rebounds
// count against the player, unlike the Hollinger game score in package metrics.
func GameScore(c models.Counting) float64 {
	return float64(c.Pts) +
		0.4*float64(c.FGM) -
		0.7*float64(c.FGA) -
		0.5*float64(c.Treb) +
		float64(c.Stl) +
		0.7*float64(c.Ast) +
		0.7*float64(c.Blk) -
		0.4*float64(c.PF) -
		float64(c.TOV)
}

// ComparisonValue adds the player's own team score to their game score, so
// winning lines rank above equal lines on the losing side.
func ComparisonValue(p models.RawPlayerBoxScore, teamPoints int) float64 {
	return GameScore(p.Counting) + float64(teamPoints)
}

// Expected is the probability that a player rated r beats one rated opp.
func (e *Engine) Expected(r, opp float64) float64 {
	return 1 / (1 + math.Pow(10, (opp-r)/e.Scale))
}

// QFactor dampens margins when the winning side was already much stronger.
func QFactor(winnerStrength, loserStrength float64) float64 {
	return 2.2 / (0.001*(winnerStrength-loserStrength) + 2.2)
}

// Outcome is the result of rating one game.
type Outcome struct {
	Before  models.EloMap
	After   models.EloMap
	Deltas  map[string]float64
	Players int
}

// Rate computes the Elo change for every identified human player in an
// upload. All deltas are computed from the ratings as they stood before the
// game and then applied together. ratings is not modified.
func (e *Engine) Rate(upload models.Upload, ratings models.EloMap) Outcome {
	points := upload.TeamPoints()

	type entry struct {
		id    string
		value float64
	}

	var strength [2]float64
	entries := make([]entry, 0, len(upload.Players))
	for _, p := range upload.Players {
		if !p.Team.Valid() {
			continue
		}
		v := ComparisonValue(p, points[p.Team])
		strength[p.Team.Index()] += v
		if p.Identified() {
			entries = append(entries, entry{id: p.PlayerID, value: v})
		}
	}

	winner, loser := strength[0], strength[1]
	if points[models.TeamOne] <= points[models.TeamTwo] {
		winner, loser = strength[1], strength[0]
	}
	q := QFactor(winner, loser)

	out := Outcome{
		Before:  make(models.EloMap, len(entries)),
		After:   make(models.EloMap, len(entries)),
		Deltas:  make(map[string]float64, len(entries)),
		Players: len(entries),
	}
	for _, p := range entries {
		out.Before[p.id] = ratings.Get(p.id)
	}

	for i, p := range entries {
		delta := 0.0
		for j, opp := range entries {
			if i == j || opp.id == p.id {
				continue
			}
			expected := e.Expected(out.Before[p.id], out.Before[opp.id])
			actual := 0.5
			switch {
			case p.value > opp.value:
				actual = 1
			case p.value < opp.value:
				actual = 0
			}
			mov := math.Log(math.Abs(p.value-opp.value)+1) * q
			delta += e.K * (actual - expected) * mov
		}
		out.Deltas[p.id] += delta
	}

	for id, before := range out.Before {
		out.After[id] = before + out.Deltas[id]
	}
	return out
}

// Apply writes the outcome's new ratings into ratings.
func (o Outcome) Apply(ratings models.EloMap) {
	for id, r := range o.After {
		ratings[id] = r
	}
}

// Replay rebuilds every rating from scratch by rating uploads in order.
func (e *Engine) Replay(uploads []models.Upload) models.EloMap {
	ratings := make(models.EloMap)
	for _, u := range uploads {
		e.Rate(u, ratings).Apply(ratings)
	}
	return ratings
}
