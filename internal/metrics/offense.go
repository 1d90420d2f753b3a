package metrics

import (
	"math"

	"github.com/fortuna/courtside/internal/models"
)

// OffenseResult is a player's offensive line for one game. Ratios whose
// denominator is zero are NaN.
type OffenseResult struct {
	ORTG      float64
	FloorPerc float64
	AstPerc   float64
	TOVPerc   float64
	UsageRate float64
	GameScore float64
}

// Offense computes points produced, possessions used and the ratings derived
// from them for one player within their team's totals.
func Offense(p models.DerivedGameRecord, team models.TeamContext) OffenseResult {
	var (
		mp      = p.MP
		pts     = float64(p.Pts)
		ast     = float64(p.Ast)
		fgm     = float64(p.FGM)
		fga     = float64(p.FGA)
		threepm = float64(p.ThreePM)
		ftm     = float64(p.FTM)
		fta     = float64(p.FTA)
		tov     = float64(p.TOV)
		oreb    = float64(p.OREB)

		tmMP      = team.MP
		tmPts     = float64(team.Pts)
		tmAst     = float64(team.Ast)
		tmFGM     = float64(team.FGM)
		tmFGA     = float64(team.FGA)
		tmThreePM = float64(team.ThreePM)
		tmFTM     = float64(team.FTM)
		tmFTA     = float64(team.FTA)
		tmTOV     = float64(team.TOV)
		tmOREB    = float64(team.OREB)
	)

	ftRatio := 1.0
	if fta != 0 {
		ftRatio = ftm / fta
	}
	tmFTRatio := 1.0
	if tmFTA != 0 {
		tmFTRatio = tmFTM / tmFTA
	}

	share := mp / (tmMP / 5)
	qAst := share*(1.14*safeDiv(tmAst-ast, tmFGM)) +
		safeDiv((tmAst/tmMP)*mp*5-ast, (tmFGM/tmMP)*mp*5-fgm)*(1-share)

	shotFactor := 1 - 0.5*safeDiv(pts-ftm, 2*fga)*qAst
	teammateScoring := safeDiv(tmPts-tmFTM-(pts-ftm), 2*(tmFGA-fga))
	orbFactor := 1 - safeDiv(tmOREB, team.ScoringPoss)*team.ORBWeight*team.PlayPerc

	fgPart := fgm * shotFactor
	astPart := 0.5 * teammateScoring * ast
	ftPart := (1 - (1-ftRatio)*(1-ftRatio)) * 0.4 * fta
	orbPart := oreb * team.ORBWeight * team.PlayPerc

	scoringPoss := (fgPart+astPart+ftPart)*orbFactor + orbPart
	missedFGPoss := (fga - fgm) * (1 - 1.07*team.ORBPerc)
	missedFTPoss := (1 - ftRatio) * (1 - ftRatio) * 0.4 * fta
	totalPoss := scoringPoss + missedFGPoss + missedFTPoss + tov

	pProdFG := 2 * (fgm + 0.5*threepm) * shotFactor
	pProdAst := 2 * safeDiv(tmFGM-fgm+0.5*(tmThreePM-threepm), tmFGM-fgm) * 0.5 * teammateScoring * ast
	tmScoringValue := safeDiv(tmPts, tmFGM+(1-(1-tmFTRatio)*(1-tmFTRatio))*0.4*tmFTA)
	pProdORB := oreb * team.ORBWeight * team.PlayPerc * tmScoringValue
	pProd := (pProdFG+pProdAst+ftm)*orbFactor + pProdORB

	used := fga + 0.44*fta + tov

	return OffenseResult{
		ORTG:      ratioOrNaN(100*pProd, totalPoss),
		FloorPerc: ratioOrNaN(100*scoringPoss, totalPoss),
		AstPerc:   ratioOrNaN(100*ast, share*tmFGM-fgm),
		TOVPerc:   ratioOrNaN(100*tov, used),
		UsageRate: ratioOrNaN(100*used*(tmMP/5), mp*(tmFGA+0.44*tmFTA+tmTOV)),
		GameScore: GameScore(p),
	}
}

// GameScore is Hollinger's single-game productivity measure.
func GameScore(p models.DerivedGameRecord) float64 {
	return float64(p.Pts) +
		0.4*float64(p.FGM) -
		0.7*float64(p.FGA) -
		0.4*float64(p.FTA-p.FTM) +
		0.7*float64(p.OREB) +
		0.3*float64(p.DREB) +
		float64(p.Stl) +
		0.7*float64(p.Ast) +
		0.7*float64(p.Blk) -
		0.4*float64(p.PF) -
		float64(p.TOV)
}

func ratioOrNaN(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
