// Package league computes the league-wide baseline every player is measured
// against.
package league

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/fortuna/courtside/internal/models"
)

// MinGamesPlayed is the exclusive floor on games for a player to count.
const MinGamesPlayed = 1

// ErrNoQualifyingPlayers is returned when no player has enough games.
var ErrNoQualifyingPlayers = errors.New("no players qualify for the league baseline")

type statField struct {
	read  func(*models.PlayerAggregate) *float64
	write func(*models.LeagueBaseline, float64)
}

// weightedStats are averaged per game: each player's value weighted by games played.
var weightedStats = []statField{
	{func(p *models.PlayerAggregate) *float64 { return p.Pts }, func(b *models.LeagueBaseline, v float64) { b.Pts = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.Treb }, func(b *models.LeagueBaseline, v float64) { b.Treb = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.DREB }, func(b *models.LeagueBaseline, v float64) { b.DREB = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.OREB }, func(b *models.LeagueBaseline, v float64) { b.OREB = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.Ast }, func(b *models.LeagueBaseline, v float64) { b.Ast = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.Stl }, func(b *models.LeagueBaseline, v float64) { b.Stl = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.Blk }, func(b *models.LeagueBaseline, v float64) { b.Blk = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.TOV }, func(b *models.LeagueBaseline, v float64) { b.TOV = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.PF }, func(b *models.LeagueBaseline, v float64) { b.PF = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.ORTG }, func(b *models.LeagueBaseline, v float64) { b.ORTG = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.DRTG }, func(b *models.LeagueBaseline, v float64) { b.DRTG = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.FGA }, func(b *models.LeagueBaseline, v float64) { b.FGA = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.FGM }, func(b *models.LeagueBaseline, v float64) { b.FGM = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.ThreePA }, func(b *models.LeagueBaseline, v float64) { b.ThreePA = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.ThreePM }, func(b *models.LeagueBaseline, v float64) { b.ThreePM = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.ThreePAR }, func(b *models.LeagueBaseline, v float64) { b.ThreePAR = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.FTA }, func(b *models.LeagueBaseline, v float64) { b.FTA = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.FTM }, func(b *models.LeagueBaseline, v float64) { b.FTM = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.Pace }, func(b *models.LeagueBaseline, v float64) { b.Pace = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.GameScore }, func(b *models.LeagueBaseline, v float64) { b.GameScore = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.UsageRate }, func(b *models.LeagueBaseline, v float64) { b.UsageRate = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.TOVPerc }, func(b *models.LeagueBaseline, v float64) { b.TOVPerc = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.AstPerc }, func(b *models.LeagueBaseline, v float64) { b.AstPerc = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.OFGA }, func(b *models.LeagueBaseline, v float64) { b.OFGA = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.OFGM }, func(b *models.LeagueBaseline, v float64) { b.OFGM = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.O3PA }, func(b *models.LeagueBaseline, v float64) { b.O3PA = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.O3PM }, func(b *models.LeagueBaseline, v float64) { b.O3PM = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.EBPM }, func(b *models.LeagueBaseline, v float64) { b.EBPM = v }},
	{func(p *models.PlayerAggregate) *float64 { return p.BPM }, func(b *models.LeagueBaseline, v float64) { b.BPM = v }},
}

// Compute builds a new baseline from player aggregates. Only players with more
// than MinGamesPlayed games count. Each stat is a true per-game average over
// the players reporting it; percentages come from the summed totals.
func Compute(players []models.PlayerAggregate, now time.Time) (*models.LeagueBaseline, error) {
	qualifying := make([]*models.PlayerAggregate, 0, len(players))
	totalGames := 0
	for i := range players {
		if players[i].GP > MinGamesPlayed {
			qualifying = append(qualifying, &players[i])
			totalGames += players[i].GP
		}
	}
	if len(qualifying) == 0 {
		return nil, ErrNoQualifyingPlayers
	}

	b := &models.LeagueBaseline{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		Players:     len(qualifying),
		GamesPlayed: totalGames,
		PER:         models.LeaguePER,
	}

	for _, f := range weightedStats {
		f.write(b, weightedMean(qualifying, f.read, gamesPlayed))
	}

	b.FGPerc = percent(b.FGM, b.FGA)
	b.ThreePPerc = percent(b.ThreePM, b.ThreePA)
	b.EFGPerc = percent(b.FGM+0.5*b.ThreePM, b.FGA)
	b.TSPerc = percent(b.Pts, 2*(b.FGA+0.44*b.FTA))
	b.OEFGPerc = percent(b.OFGM+0.5*b.O3PM, b.OFGA)
	if b.TOV != 0 {
		b.AstToRatio = b.Ast / b.TOV
	}

	b.APER = weightedMean(qualifying, func(p *models.PlayerAggregate) *float64 { return p.APER }, aperGames)

	return b, nil
}

func gamesPlayed(p *models.PlayerAggregate) float64 {
	return float64(p.GP)
}

func aperGames(p *models.PlayerAggregate) float64 {
	return float64(p.APERGamesPlayed)
}

// weightedMean averages a stat over the players that report a finite value,
// weighting each by weight(p). It is zero when nobody contributes.
func weightedMean(players []*models.PlayerAggregate, read func(*models.PlayerAggregate) *float64, weight func(*models.PlayerAggregate) float64) float64 {
	var xs, ws []float64
	for _, p := range players {
		v, ok := models.Value(read(p))
		w := weight(p)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) || w <= 0 {
			continue
		}
		xs = append(xs, v)
		ws = append(ws, w)
	}
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, ws)
}

// percent expresses num/den as a percentage, or zero when den is zero.
func percent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return 100 * num / den
}
