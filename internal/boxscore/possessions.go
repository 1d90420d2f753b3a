package boxscore

import "github.com/fortuna/courtside/internal/models"

// Possessions estimates the possessions in a game from both teams' totals.
// The estimate is symmetric: swapping team and opp gives the same value.
func Possessions(team, opp models.TeamContext) float64 {
	return 0.5 * (possessionTerm(team, opp) + possessionTerm(opp, team))
}

func possessionTerm(t, o models.TeamContext) float64 {
	orbRate := ratio(float64(t.OREB), float64(t.OREB+o.DREB))
	return float64(t.FGA) + 0.4*float64(t.FTA) -
		1.07*orbRate*float64(t.FGA-t.FGM) + float64(t.TOV)
}

// applyPossessionTerms fills the possession fields of team that depend on
// both sides' rebounding.
func applyPossessionTerms(team *models.TeamContext, opp models.TeamContext) {
	team.MP = models.TeamMinutes
	team.TotalPoss = Possessions(*team, opp)
	team.ORBPerc = ratio(float64(team.OREB), float64(team.OREB+opp.DREB))

	ftRatio := ratio(float64(team.FTM), float64(team.FTA))
	team.ScoringPoss = float64(team.FGM) + (1-(1-ftRatio)*(1-ftRatio))*float64(team.FTA)*0.4
	team.PlayPerc = ratio(team.ScoringPoss, float64(team.FGA)+float64(team.FTA)*0.4+float64(team.TOV))

	orbPerc, play := team.ORBPerc, team.PlayPerc
	team.ORBWeight = ratio((1-orbPerc)*play, (1-orbPerc)*play+orbPerc*(1-play))
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
