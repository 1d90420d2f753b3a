// Package aggregate folds a player's game history into a PlayerAggregate.
//
// Every stat is averaged over only the games where that stat is present and
// valid, so fields added to the history later, or games where a rating could
// not be computed, do not drag the average toward zero.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/fortuna/courtside/internal/metrics"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/rating"
)

// Ranking weights balance a rating against volume.
const (
	offenseORTGWeight  = 0.554
	offenseUsageWeight = 0.446
	defenseDRTGWeight  = 0.444
	defenseOFGAWeight  = 0.556
)

// Identity is the stored, user-maintained part of a player.
type Identity struct {
	PlayerID string
	Name     string
	Aliases  []string
	FTPerc   float64
	Elo      float64
}

// Input is everything one recompute needs.
type Input struct {
	Identity Identity
	Games    []models.DerivedGameRecord
	Baseline *models.LeagueBaseline
	Previous *models.PlayerAggregate
	Now      time.Time
}

type averagedStat struct {
	read        func(*models.DerivedGameRecord) *float64
	write       func(*models.Averages, *float64)
	zeroInvalid bool
}

func count(f func(*models.DerivedGameRecord) int) func(*models.DerivedGameRecord) *float64 {
	return func(g *models.DerivedGameRecord) *float64 {
		v := float64(f(g))
		return &v
	}
}

// averagedStats is the closed set of per-game fields that are averaged.
var averagedStats = []averagedStat{
	{read: func(g *models.DerivedGameRecord) *float64 { return g.Pace }, write: func(a *models.Averages, v *float64) { a.Pace = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return models.Float(g.MP) }, write: func(a *models.Averages, v *float64) { a.MP = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.Pts }), write: func(a *models.Averages, v *float64) { a.Pts = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.Treb }), write: func(a *models.Averages, v *float64) { a.Treb = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.OREB }), write: func(a *models.Averages, v *float64) { a.OREB = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.DREB }), write: func(a *models.Averages, v *float64) { a.DREB = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.Ast }), write: func(a *models.Averages, v *float64) { a.Ast = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.Stl }), write: func(a *models.Averages, v *float64) { a.Stl = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.Blk }), write: func(a *models.Averages, v *float64) { a.Blk = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.PF }), write: func(a *models.Averages, v *float64) { a.PF = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.TOV }), write: func(a *models.Averages, v *float64) { a.TOV = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.FGM }), write: func(a *models.Averages, v *float64) { a.FGM = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.FGA }), write: func(a *models.Averages, v *float64) { a.FGA = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.TwoPM }), write: func(a *models.Averages, v *float64) { a.TwoPM = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.TwoPA }), write: func(a *models.Averages, v *float64) { a.TwoPA = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.ThreePM }), write: func(a *models.Averages, v *float64) { a.ThreePM = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.ThreePA }), write: func(a *models.Averages, v *float64) { a.ThreePA = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.FTM }), write: func(a *models.Averages, v *float64) { a.FTM = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.FTA }), write: func(a *models.Averages, v *float64) { a.FTA = v }},
	{read: count(func(g *models.DerivedGameRecord) int { return g.PlusMinus }), write: func(a *models.Averages, v *float64) { a.PlusMinus = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.ORTG }, write: func(a *models.Averages, v *float64) { a.ORTG = v }, zeroInvalid: true},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.DRTG }, write: func(a *models.Averages, v *float64) { a.DRTG = v }, zeroInvalid: true},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.FloorPerc }, write: func(a *models.Averages, v *float64) { a.FloorPerc = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.AstPerc }, write: func(a *models.Averages, v *float64) { a.AstPerc = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.TOVPerc }, write: func(a *models.Averages, v *float64) { a.TOVPerc = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.UsageRate }, write: func(a *models.Averages, v *float64) { a.UsageRate = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.GameScore }, write: func(a *models.Averages, v *float64) { a.GameScore = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.DRebPerc }, write: func(a *models.Averages, v *float64) { a.DRebPerc = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.OFGA }, write: func(a *models.Averages, v *float64) { a.OFGA = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.OFGM }, write: func(a *models.Averages, v *float64) { a.OFGM = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.O3PA }, write: func(a *models.Averages, v *float64) { a.O3PA = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.O3PM }, write: func(a *models.Averages, v *float64) { a.O3PM = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.UPER }, write: func(a *models.Averages, v *float64) { a.UPER = v }},
	{read: func(g *models.DerivedGameRecord) *float64 { return g.APER }, write: func(a *models.Averages, v *float64) { a.APER = v }},
}

// validValue reports whether a stored per-game value may enter an average.
func validValue(v *float64, zeroInvalid bool) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	if zeroInvalid && *v == 0 {
		return 0, false
	}
	return *v, true
}

// mean returns nil for an empty denominator.
func mean(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	return models.Float(sum / float64(n))
}

// ComputeRaw averages a player's history without any league-normalized
// output: PER, BPM and the rating stay nil.
func ComputeRaw(in Input) *models.PlayerAggregate {
	agg := &models.PlayerAggregate{
		PlayerID:  in.Identity.PlayerID,
		Name:      in.Identity.Name,
		Aliases:   in.Identity.Aliases,
		FTPerc:    in.Identity.FTPerc,
		Elo:       in.Identity.Elo,
		GP:        len(in.Games),
		UpdatedAt: in.Now,
	}
	if agg.Elo == 0 {
		agg.Elo = models.InitialElo
	}
	if in.Previous != nil {
		agg.GPSinceLastRating = in.Previous.GPSinceLastRating
		agg.RatingMovement = in.Previous.RatingMovement
	}

	for _, s := range averagedStats {
		sum, n := 0.0, 0
		for i := range in.Games {
			if v, ok := validValue(s.read(&in.Games[i]), s.zeroInvalid); ok {
				sum += v
				n++
			}
		}
		s.write(&agg.Averages, mean(sum, n))
	}

	grades := make([]string, 0, len(in.Games))
	for _, g := range in.Games {
		agg.DD += g.DD
		agg.TD += g.TD
		agg.QD += g.QD
		switch {
		case g.PlusMinus > 0:
			agg.Wins++
		case g.PlusMinus < 0:
			agg.Losses++
		}
		if _, ok := validValue(g.APER, false); ok {
			agg.APERGamesPlayed++
		}
		if g.Grade != "" {
			grades = append(grades, g.Grade)
		}
	}

	agg.Percentages = percentages(agg.Averages)
	agg.OffensiveRanking = weighted(agg.ORTG, offenseORTGWeight, agg.UsageRate, offenseUsageWeight)
	agg.DefensiveRanking = weighted(agg.DRTG, defenseDRTGWeight, agg.OFGA, -defenseOFGAWeight)
	agg.Positions = Positions(in.Games)
	agg.TeammateGrade = rating.AverageGrade(grades)

	return agg
}

// Compute averages a player's history and normalizes it against the league
// baseline: aPER is recomputed per game against the baseline's pace, then PER,
// BPM and the rating follow. Without a usable baseline it returns an error
// wrapping metrics.ErrBaselineUnavailable; callers fall back to ComputeRaw.
func Compute(in Input) (*models.PlayerAggregate, error) {
	constants, err := metrics.NewLeagueConstants(in.Baseline)
	if err != nil {
		return nil, err
	}
	lg := in.Baseline

	agg := ComputeRaw(in)

	aperSum, uperSum := 0.0, 0.0
	aperGames, uperGames := 0, 0
	for _, g := range in.Games {
		if g.Pace != nil {
			uPER := metrics.UnadjustedPER(g, g.TeamAst, g.TeamFGM, constants)
			if _, ok := validValue(&uPER, false); ok {
				uperSum += uPER
				uperGames++
			}
		}
		if aPER, ok := metrics.GameAPER(g, constants, lg); ok {
			if _, valid := validValue(&aPER, false); valid {
				aperSum += aPER
				aperGames++
				continue
			}
		}
		if v, ok := validValue(g.APER, false); ok {
			aperSum += v
			aperGames++
		}
	}

	if uperGames > 0 {
		agg.UPER = mean(uperSum, uperGames)
	}
	agg.APER = mean(aperSum, aperGames)
	agg.APERGamesPlayed = aperGames

	if agg.APER != nil {
		agg.PER = models.Float(metrics.NormalizePER(*agg.APER, lg))
	}

	if line, ok := metrics.AggregateLine(agg.Averages); ok {
		eBPM, bpm, err := metrics.BPM(line, lg)
		if err == nil {
			agg.EBPM = models.Float(eBPM)
			agg.BPM = models.Float(bpm)
		}
	}

	rating.Assess(agg.PER, in.Previous, agg.GP).Apply(agg)

	return agg, nil
}

func percentages(a models.Averages) models.Percentages {
	return models.Percentages{
		FGPerc:     percent(a.FGM, a.FGA),
		TwoPerc:    percent(a.TwoPM, a.TwoPA),
		ThreePerc:  percent(a.ThreePM, a.ThreePA),
		TSPerc:     trueShooting(a.Pts, a.FGA, a.FTA),
		EFGPerc:    effective(a.FGM, a.ThreePM, a.FGA),
		ThreePAR:   percent(a.ThreePA, a.FGA),
		AstToRatio: ratio(a.Ast, a.TOV),
		OFGPerc:    percent(a.OFGM, a.OFGA),
		O3PPerc:    percent(a.O3PM, a.O3PA),
		OEFGPerc:   effective(a.OFGM, a.O3PM, a.OFGA),
	}
}

func percent(num, den *float64) *float64 {
	r := ratio(num, den)
	if r == nil {
		return nil
	}
	return models.Float(100 * *r)
}

func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return models.Float(*num / *den)
}

func effective(fgm, threepm, fga *float64) *float64 {
	if fgm == nil || threepm == nil || fga == nil || *fga == 0 {
		return nil
	}
	return models.Float(100 * (*fgm + 0.5*(*threepm)) / *fga)
}

func trueShooting(pts, fga, fta *float64) *float64 {
	if pts == nil || fga == nil || fta == nil {
		return nil
	}
	den := 2 * (*fga + 0.44*(*fta))
	if den == 0 {
		return nil
	}
	return models.Float(100 * *pts / den)
}

func weighted(a *float64, wa float64, b *float64, wb float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return models.Float(*a*wa + *b*wb)
}

// FilterByPosition keeps the games played at pos.
func FilterByPosition(games []models.DerivedGameRecord, pos int) []models.DerivedGameRecord {
	out := make([]models.DerivedGameRecord, 0, len(games))
	for _, g := range games {
		if g.Pos == pos {
			out = append(out, g)
		}
	}
	return out
}

// Positions tallies games per position 1-5, most played first, dropping
// positions never played.
func Positions(games []models.DerivedGameRecord) []models.PositionCount {
	counts := make(map[int]int, 5)
	for _, g := range games {
		if g.Pos >= 1 && g.Pos <= 5 {
			counts[g.Pos]++
		}
	}

	out := make([]models.PositionCount, 0, len(counts))
	for pos, n := range counts {
		out = append(out, models.PositionCount{Pos: pos, Games: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Games != out[j].Games {
			return out[i].Games > out[j].Games
		}
		return out[i].Pos < out[j].Pos
	})
	return out
}
