package metrics

import (
	"fmt"

	"github.com/fortuna/courtside/internal/models"
)

// LeagueConstants are the baseline-derived weights used by uPER.
type LeagueConstants struct {
	Factor   float64
	VOP      float64
	DRBPerc  float64
	FTPerPF  float64
	FTAPerPF float64
}

// NewLeagueConstants derives the PER weights from a baseline.
func NewLeagueConstants(lg *models.LeagueBaseline) (LeagueConstants, error) {
	if lg == nil {
		return LeagueConstants{}, ErrBaselineUnavailable
	}
	if lg.FGM == 0 || lg.FTM == 0 || lg.Treb == 0 || lg.PF == 0 {
		return LeagueConstants{}, fmt.Errorf("baseline %s has empty shooting or rebounding totals: %w", lg.ID, ErrBaselineUnavailable)
	}

	possDen := lg.FGA - lg.OREB + lg.TOV + 0.44*lg.FTA
	if possDen == 0 {
		return LeagueConstants{}, fmt.Errorf("baseline %s has no possessions: %w", lg.ID, ErrBaselineUnavailable)
	}

	return LeagueConstants{
		Factor:   2.0/3.0 - (0.5*(lg.Ast/lg.FGM))/(2*(lg.FGM/lg.FTM)),
		VOP:      lg.Pts / possDen,
		DRBPerc:  (lg.Treb - lg.OREB) / lg.Treb,
		FTPerPF:  lg.FTM / lg.PF,
		FTAPerPF: lg.FTA / lg.PF,
	}, nil
}

// UnadjustedPER is the per-minute linear PER combination before pace and
// league normalization. teamAst and teamFGM are the player's team totals.
func UnadjustedPER(p models.DerivedGameRecord, teamAst, teamFGM int, c LeagueConstants) float64 {
	if p.MP == 0 {
		return 0
	}

	tmAstRatio := safeDiv(float64(teamAst), float64(teamFGM))
	vop, drb := c.VOP, c.DRBPerc

	var (
		fgm  = float64(p.FGM)
		fga  = float64(p.FGA)
		ftm  = float64(p.FTM)
		fta  = float64(p.FTA)
		treb = float64(p.Treb)
		oreb = float64(p.OREB)
	)

	sum := float64(p.ThreePM) +
		(2.0/3.0)*float64(p.Ast) +
		(2-c.Factor*tmAstRatio)*fgm +
		ftm*0.5*(1+(1-tmAstRatio)+(2.0/3.0)*tmAstRatio) -
		vop*float64(p.TOV) -
		vop*drb*(fga-fgm) -
		vop*0.44*(0.44+0.56*drb)*(fta-ftm) +
		vop*(1-drb)*(treb-oreb) +
		vop*drb*oreb +
		vop*float64(p.Stl) +
		vop*drb*float64(p.Blk) -
		float64(p.PF)*(c.FTPerPF-0.44*c.FTAPerPF*vop)

	return sum / p.MP
}

// AdjustPER pace-adjusts uPER and normalizes it so the league average is 15.
// A negative aPER clamps to zero and is scored at the league PER. PER is NaN
// when the baseline has no aPER.
func AdjustPER(uPER, leaguePace, teamPossessions float64, lg *models.LeagueBaseline) (aPER, per float64, err error) {
	if lg == nil {
		return 0, 0, ErrBaselineUnavailable
	}

	aPER = uPER * ratioOrNaN(leaguePace, teamPossessions)
	if aPER < 0 {
		return 0, leaguePER(lg), nil
	}
	return aPER, NormalizePER(aPER, lg), nil
}

// NormalizePER scales aPER by the league's PER anchor over its average aPER.
func NormalizePER(aPER float64, lg *models.LeagueBaseline) float64 {
	return aPER * ratioOrNaN(leaguePER(lg), lg.APER)
}

func leaguePER(lg *models.LeagueBaseline) float64 {
	if lg.PER == 0 {
		return models.LeaguePER
	}
	return lg.PER
}

// GameAPER recomputes a stored game's aPER against lg. It reports false when
// the game lacks the pace needed for the adjustment.
func GameAPER(g models.DerivedGameRecord, c LeagueConstants, lg *models.LeagueBaseline) (float64, bool) {
	pace, ok := models.Value(g.Pace)
	if !ok || pace == 0 {
		return 0, false
	}
	aPER, _, err := AdjustPER(UnadjustedPER(g, g.TeamAst, g.TeamFGM, c), lg.Pace, pace, lg)
	if err != nil {
		return 0, false
	}
	return aPER, true
}
