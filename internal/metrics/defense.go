package metrics

import (
	"math"

	"github.com/fortuna/courtside/internal/models"
)

const opponentMinutes = models.PlayerMinutes

// DefenseResult is a player's defensive line for one game.
type DefenseResult struct {
	DRTG     float64
	DRebPerc float64
	OFGA     float64
	OFGM     float64
	O3PA     float64
	O3PM     float64
}

// Defense estimates stops and a defensive rating for p, using the positional
// opponent as the man guarded. team is the player's own team and oppTeam the
// other side. DRTG is NaN when the opponent took no shots.
func Defense(p, opponent models.DerivedGameRecord, team, oppTeam models.TeamContext) DefenseResult {
	var (
		mp    = p.MP
		tmMP  = team.MP
		opFGA = float64(opponent.FGA)
		opFGM = float64(opponent.FGM)
		opFTA = float64(opponent.FTA)
		opFTM = float64(opponent.FTM)
		opTOV = float64(opponent.TOV)
		opOR  = float64(opponent.OREB)
	)

	res := DefenseResult{
		DRTG:     math.NaN(),
		DRebPerc: ratioOrNaN(100*float64(p.DREB)*(tmMP/5), mp*float64(team.DREB+oppTeam.OREB)),
		OFGA:     opFGA,
		OFGM:     opFGM,
		O3PA:     float64(opponent.ThreePA),
		O3PM:     float64(opponent.ThreePM),
	}
	if opFGA == 0 || team.TotalPoss == 0 {
		return res
	}

	opFTRatio := 1.0
	if opFTA != 0 {
		opFTRatio = opFTM / opFTA
	}

	dorPerc := safeDiv(opOR, opOR+float64(team.DREB))
	dfgPerc := opFGM / opFGA
	fmwt := safeDiv(dfgPerc*(1-dorPerc), dfgPerc*(1-dorPerc)+(1-dfgPerc)*dorPerc)

	stops1 := float64(p.Stl) + float64(p.Blk)*fmwt*(1-1.07*dorPerc) + float64(p.DREB)*(1-fmwt)
	stops2 := ((opFGA-opFGM-float64(team.Blk))/tmMP*fmwt*(1-1.07*dorPerc)+(opTOV-float64(team.Stl))/tmMP)*mp +
		safeDiv(float64(p.PF), float64(team.PF))*0.4*opFTA*(1-opFTRatio)*(1-opFTRatio)
	stops := stops1 + stops2

	stopPerc := (stops * opponentMinutes) / (team.TotalPoss * mp)
	teamDRTG := 100 * float64(oppTeam.Pts) / team.TotalPoss

	oppTeamFTRatio := 1.0
	if oppTeam.FTA != 0 {
		oppTeamFTRatio = float64(oppTeam.FTM) / float64(oppTeam.FTA)
	}
	oppScoringPoss := float64(oppTeam.FGM) + (1-(1-oppTeamFTRatio)*(1-oppTeamFTRatio))*float64(oppTeam.FTA)*0.4
	ptsPerScoringPoss := ratioOrNaN(float64(oppTeam.Pts), oppScoringPoss)

	res.DRTG = teamDRTG + 0.2*(100*ptsPerScoringPoss*(1-stopPerc)-teamDRTG)
	return res
}

// FindOpponent returns the positional opponent of p: the player on the other
// team lined up at p's opposing position, falling back to the same position.
func FindOpponent(p models.DerivedGameRecord, records []models.DerivedGameRecord) (models.DerivedGameRecord, bool) {
	want := p.OppPos
	if want == 0 {
		want = p.Pos
	}

	fallback, found := models.DerivedGameRecord{}, false
	for _, r := range records {
		if r.Team == p.Team {
			continue
		}
		if r.Pos == want {
			return r, true
		}
		if !found && r.Pos == p.Pos {
			fallback, found = r, true
		}
	}
	return fallback, found
}
