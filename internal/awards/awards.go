// Package awards picks the season award winners from player aggregates.
// Every award is a reduction over the aggregates alone; nothing here reads
// the store.
package awards

import (
	"math"
	"sort"
	"time"

	"github.com/fortuna/courtside/internal/models"
)

// Eligibility thresholds.
const (
	MinGames       = 25
	MinThreeAtt    = 82
	MinFieldGoals  = 300
	MinOppAttempts = 300
	TeamSize       = 5
)

// Winner is one player's claim to an award.
type Winner struct {
	PlayerID  string             `json:"player_id"`
	Name      string             `json:"name"`
	Value     float64            `json:"value"`
	Stats     map[string]float64 `json:"stats,omitempty"`
	Positions []int              `json:"positions,omitempty"`
}

// Awards is one season's award sheet. An award nobody qualified for is nil.
type Awards struct {
	GeneratedAt time.Time `json:"generated_at"`
	Candidates  int       `json:"candidates"`

	MVP             *Winner `json:"mvp"`
	DPOY            *Winner `json:"dpoy"`
	BestShooter     *Winner `json:"best_shooter"`
	WorstShooter    *Winner `json:"worst_shooter"`
	MostActive      *Winner `json:"most_active"`
	MostUsed        *Winner `json:"most_used"`
	LeastUsed       *Winner `json:"least_used"`
	MostEfficient   *Winner `json:"most_efficient"`
	LeastEfficient  *Winner `json:"least_efficient"`
	ShotChucker     *Winner `json:"shot_chucker"`
	FastbreakPlayer *Winner `json:"fastbreak_player"`
	MostAttacked    *Winner `json:"most_attacked"`
	BestIntimidator *Winner `json:"best_intimidator"`

	AllLeagueFirst  []Winner `json:"all_league_first"`
	AllLeagueSecond []Winner `json:"all_league_second"`
}

// candidate is a player eligible for at least one award.
type candidate struct {
	agg *models.PlayerAggregate
}

func (c candidate) gp() float64 { return float64(c.agg.GP) }

// total is a per-game average scaled to the season.
func (c candidate) total(p *float64) float64 {
	return models.ValueOr(p, 0) * c.gp()
}

// Generate computes every award. Players with fewer than two games are never
// considered.
func Generate(aggs []*models.PlayerAggregate, now time.Time) *Awards {
	var pool []candidate
	for _, a := range aggs {
		if a != nil && a.GP > 1 {
			pool = append(pool, candidate{agg: a})
		}
	}

	out := &Awards{GeneratedAt: now, Candidates: len(pool)}
	if len(pool) == 0 {
		return out
	}

	veterans := filter(pool, func(c candidate) bool { return c.agg.GP >= MinGames })
	shooters := filter(pool, func(c candidate) bool { return c.total(c.agg.Averages.ThreePA) >= MinThreeAtt })
	volume := filter(pool, func(c candidate) bool { return c.total(c.agg.Averages.FGA) >= MinFieldGoals })
	defended := filter(pool, func(c candidate) bool { return c.total(c.agg.Averages.OFGA) >= MinOppAttempts })

	out.MVP = best(veterans, higher, func(c candidate) (float64, bool) { return models.Value(c.agg.PER) })
	out.DPOY = best(veterans, lower, func(c candidate) (float64, bool) { return models.Value(c.agg.Averages.DRTG) })

	out.BestShooter = best(shooters, higher, func(c candidate) (float64, bool) {
		pct, ok1 := models.Value(c.agg.ThreePerc)
		rate, ok2 := models.Value(c.agg.ThreePAR)
		att, ok3 := models.Value(c.agg.Averages.ThreePA)
		return pct*0.4 + rate*0.2 + att*0.4, ok1 && ok2 && ok3
	})
	withStats(out.BestShooter, shooters, "three_perc", "threepar", "threepa")

	out.WorstShooter = best(shooters, lower, func(c candidate) (float64, bool) {
		pct, ok1 := models.Value(c.agg.ThreePerc)
		rate, ok2 := models.Value(c.agg.ThreePAR)
		return pct*0.8 + rate*0.2, ok1 && ok2
	})
	withStats(out.WorstShooter, shooters, "three_perc", "threepar")

	out.MostActive = best(pool, higher, func(c candidate) (float64, bool) { return c.gp(), true })
	out.MostUsed = best(veterans, higher, func(c candidate) (float64, bool) { return models.Value(c.agg.Averages.UsageRate) })
	out.LeastUsed = best(veterans, lower, func(c candidate) (float64, bool) { return models.Value(c.agg.Averages.UsageRate) })

	out.MostEfficient = best(volume, higher, func(c candidate) (float64, bool) { return models.Value(c.agg.EFGPerc) })
	out.LeastEfficient = best(volume, lower, func(c candidate) (float64, bool) { return models.Value(c.agg.EFGPerc) })
	out.ShotChucker = best(volume, lower, func(c candidate) (float64, bool) {
		efg, ok1 := models.Value(c.agg.EFGPerc)
		fga, ok2 := models.Value(c.agg.Averages.FGA)
		return efg*0.5 - fga*0.5, ok1 && ok2
	})
	withStats(out.ShotChucker, volume, "efg_perc", "fga")

	out.FastbreakPlayer = best(veterans, higher, func(c candidate) (float64, bool) {
		pace, ok1 := models.Value(c.agg.Averages.Pace)
		fga, ok2 := models.Value(c.agg.Averages.FGA)
		return pace*0.8 + fga*0.2, ok1 && ok2
	})
	withStats(out.FastbreakPlayer, veterans, "pace", "fga")

	out.MostAttacked = best(defended, higher, func(c candidate) (float64, bool) { return models.Value(c.agg.Averages.OFGA) })
	out.BestIntimidator = best(defended, lower, func(c candidate) (float64, bool) {
		oefg, ok1 := models.Value(c.agg.OEFGPerc)
		ofga, ok2 := models.Value(c.agg.Averages.OFGA)
		return oefg*0.5 - ofga*0.5, ok1 && ok2
	})
	withStats(out.BestIntimidator, defended, "o_efg_perc", "o_fga")

	out.AllLeagueFirst, out.AllLeagueSecond = allLeague(veterans)
	return out
}

type direction bool

const (
	higher direction = true
	lower  direction = false
)

// best returns the candidate with the highest or lowest score, skipping
// candidates whose score is unavailable. Ties keep the earlier candidate.
func best(pool []candidate, dir direction, score func(candidate) (float64, bool)) *Winner {
	var (
		winner *candidate
		top    float64
	)
	for i := range pool {
		v, ok := score(pool[i])
		if !ok || math.IsNaN(v) {
			continue
		}
		if winner == nil || (dir == higher && v > top) || (dir == lower && v < top) {
			winner, top = &pool[i], v
		}
	}
	if winner == nil {
		return nil
	}
	w := newWinner(*winner)
	w.Value = top
	return &w
}

// allLeague ranks veterans by PER into two teams.
func allLeague(veterans []candidate) (first, second []Winner) {
	rated := filter(veterans, func(c candidate) bool { return c.agg.PER != nil })
	sort.SliceStable(rated, func(i, j int) bool { return *rated[i].agg.PER > *rated[j].agg.PER })

	team := func(from, to int) []Winner {
		if from >= len(rated) {
			return nil
		}
		to = min(to, len(rated))
		out := make([]Winner, 0, to-from)
		for _, c := range rated[from:to] {
			w := newWinner(c)
			w.Value = math.Floor(models.ValueOr(c.agg.Rating, 0))
			out = append(out, w)
		}
		return out
	}
	return team(0, TeamSize), team(TeamSize, 2*TeamSize)
}

func newWinner(c candidate) Winner {
	return Winner{
		PlayerID:  c.agg.PlayerID,
		Name:      c.agg.Name,
		Positions: topPositions(c.agg.Positions, 2),
	}
}

// withStats attaches the named inputs behind a weighted award.
func withStats(w *Winner, pool []candidate, names ...string) {
	if w == nil {
		return
	}
	for _, c := range pool {
		if c.agg.PlayerID != w.PlayerID {
			continue
		}
		w.Stats = make(map[string]float64, len(names))
		for _, name := range names {
			if v, ok := statByName(c.agg, name); ok {
				w.Stats[name] = v
			}
		}
		return
	}
}

func statByName(a *models.PlayerAggregate, name string) (float64, bool) {
	switch name {
	case "three_perc":
		return models.Value(a.ThreePerc)
	case "threepar":
		return models.Value(a.ThreePAR)
	case "threepa":
		return models.Value(a.Averages.ThreePA)
	case "efg_perc":
		return models.Value(a.EFGPerc)
	case "fga":
		return models.Value(a.Averages.FGA)
	case "pace":
		return models.Value(a.Averages.Pace)
	case "o_efg_perc":
		return models.Value(a.OEFGPerc)
	case "o_fga":
		return models.Value(a.Averages.OFGA)
	}
	return 0, false
}

// topPositions returns up to n positions, most played first.
func topPositions(counts []models.PositionCount, n int) []int {
	sorted := append([]models.PositionCount(nil), counts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Games > sorted[j].Games })

	var out []int
	for _, pc := range sorted {
		if len(out) == n || pc.Games == 0 {
			break
		}
		out = append(out, pc.Pos)
	}
	return out
}

func filter(pool []candidate, keep func(candidate) bool) []candidate {
	var out []candidate
	for _, c := range pool {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
