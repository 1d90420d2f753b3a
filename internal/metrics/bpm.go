package metrics

import (
	"math"

	"github.com/fortuna/courtside/internal/models"
)

// BPMLine is the averaged box-score input to box plus-minus.
type BPMLine struct {
	Pts, Treb, Ast, Stl, Blk, PF, TOV float64
	FGM, FGA, ThreePM, FTM            float64
	OFGA, OFGM, O3PA, O3PM            float64
	AstPerc, UsageRate, Pace          float64
	PlusMinus                         float64
}

// AggregateLine reads a BPM line from a player's averages. It reports false
// when a required average is missing.
func AggregateLine(a models.Averages) (BPMLine, bool) {
	fields := []*float64{
		a.Pts, a.Treb, a.Ast, a.Stl, a.Blk, a.PF, a.TOV,
		a.FGM, a.FGA, a.ThreePM, a.FTM, a.UsageRate, a.Pace,
	}
	for _, f := range fields {
		if f == nil {
			return BPMLine{}, false
		}
	}

	return BPMLine{
		Pts:       *a.Pts,
		Treb:      *a.Treb,
		Ast:       *a.Ast,
		Stl:       *a.Stl,
		Blk:       *a.Blk,
		PF:        *a.PF,
		TOV:       *a.TOV,
		FGM:       *a.FGM,
		FGA:       *a.FGA,
		ThreePM:   *a.ThreePM,
		FTM:       *a.FTM,
		OFGA:      models.ValueOr(a.OFGA, 0),
		OFGM:      models.ValueOr(a.OFGM, 0),
		O3PA:      models.ValueOr(a.O3PA, 0),
		O3PM:      models.ValueOr(a.O3PM, 0),
		AstPerc:   models.ValueOr(a.AstPerc, 0),
		UsageRate: *a.UsageRate,
		Pace:      *a.Pace,
		PlusMinus: models.ValueOr(a.PlusMinus, 0),
	}, true
}

// BaselineLine reads a BPM line from league averages.
func BaselineLine(lg *models.LeagueBaseline) BPMLine {
	return BPMLine{
		Pts:       lg.Pts,
		Treb:      lg.Treb,
		Ast:       lg.Ast,
		Stl:       lg.Stl,
		Blk:       lg.Blk,
		PF:        lg.PF,
		TOV:       lg.TOV,
		FGM:       lg.FGM,
		FGA:       lg.FGA,
		ThreePM:   lg.ThreePM,
		FTM:       lg.FTM,
		OFGA:      lg.OFGA,
		OFGM:      lg.OFGM,
		O3PA:      lg.O3PA,
		O3PM:      lg.O3PM,
		AstPerc:   lg.AstPerc,
		UsageRate: lg.UsageRate,
		Pace:      lg.Pace,
	}
}

// OffensiveImpact estimates points produced minus points lost per 100
// possessions, scaled by usage relative to the league.
func OffensiveImpact(d BPMLine, league3Perc, leagueUsage float64) float64 {
	usageScale := safeDiv(d.UsageRate, leagueUsage)

	pointsFromFG := 2 * (d.FGM + 0.5*d.ThreePM) * (1 - 0.5*safeDiv(d.Pts-d.FTM, 2*d.FGM))
	pointsFromAssists := 0.5 * d.Ast * (2 + league3Perc/100)
	produced := (pointsFromFG + pointsFromAssists + d.FTM) * usageScale

	pointsPerMake := safeDiv(2*(d.FGM-d.ThreePM)+3*d.ThreePM, d.FGM)
	lost := ((d.FGA - d.FGM) + d.TOV) * pointsPerMake * usageScale

	return ratioOrNaN(produced-lost, d.Pace) * 100
}

// DefensiveImpact estimates points saved by stops per 100 possessions.
func DefensiveImpact(d BPMLine, leagueUsage, leaguePace, leaguePts float64) float64 {
	stops := d.Treb + d.Stl + d.Blk + (d.OFGA - d.OFGM + d.O3PA - d.O3PM) - 0.44*d.PF
	saved := stops * safeDiv(leaguePts, leaguePace) * safeDiv(d.UsageRate, leagueUsage)
	return ratioOrNaN(saved, d.Pace) * 100
}

// BPM returns raw and league-normalized box plus-minus for a player's
// averages. Both are NaN when the inputs cannot support the estimate.
func BPM(player BPMLine, lg *models.LeagueBaseline) (eBPM, bpm float64, err error) {
	if lg == nil {
		return 0, 0, ErrBaselineUnavailable
	}

	league := BaselineLine(lg)
	lgOff := OffensiveImpact(league, lg.ThreePPerc, lg.UsageRate)
	lgDef := DefensiveImpact(league, lg.UsageRate, lg.Pace, lg.Pts)
	off := OffensiveImpact(player, lg.ThreePPerc, lg.UsageRate)
	def := DefensiveImpact(player, lg.UsageRate, lg.Pace, lg.Pts)

	eBPM = (off - lgOff) + (def - lgDef) + player.PlusMinus
	if math.IsNaN(eBPM) {
		return eBPM, eBPM, nil
	}
	return eBPM, eBPM - lg.EBPM, nil
}
