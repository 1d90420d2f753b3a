package metrics

import (
	"errors"

	"github.com/fortuna/courtside/internal/models"
)

// Derive fills the advanced fields of each record in place. teams is indexed
// by TeamSide.Index. Failures are per player and never stop the batch: a
// player without a positional opponent keeps nil defensive fields, and a
// missing baseline leaves every PER field nil.
func Derive(records []models.DerivedGameRecord, teams [2]models.TeamContext, lg *models.LeagueBaseline) []error {
	var errs []error

	constants, constErr := NewLeagueConstants(lg)
	if constErr != nil {
		errs = append(errs, constErr)
	}

	for i := range records {
		r := &records[i]
		team := teams[r.Team.Index()]
		oppTeam := teams[r.Team.Opponent().Index()]

		off := Offense(*r, team)
		r.ORTG = models.Float(off.ORTG)
		r.FloorPerc = models.Float(off.FloorPerc)
		r.AstPerc = models.Float(off.AstPerc)
		r.TOVPerc = models.Float(off.TOVPerc)
		r.UsageRate = models.Float(off.UsageRate)
		r.GameScore = models.Float(off.GameScore)

		if opponent, ok := FindOpponent(*r, records); ok {
			def := Defense(*r, opponent, team, oppTeam)
			r.DRTG = models.Float(def.DRTG)
			r.DRebPerc = models.Float(def.DRebPerc)
			r.OFGA = models.Float(def.OFGA)
			r.OFGM = models.Float(def.OFGM)
			r.O3PA = models.Float(def.O3PA)
			r.O3PM = models.Float(def.O3PM)
		} else {
			errs = append(errs, &MissingOpponentError{UploadID: r.UploadID, Name: r.Name, Pos: r.Pos})
		}

		if constErr != nil {
			continue
		}
		uPER := UnadjustedPER(*r, team.Ast, team.FGM, constants)
		aPER, per, err := AdjustPER(uPER, lg.Pace, team.TotalPoss, lg)
		if err != nil {
			continue
		}
		r.UPER = models.Float(uPER)
		r.APER = models.Float(aPER)
		r.PER = models.Float(per)
	}

	return errs
}

// HasBaselineError reports whether errs contains ErrBaselineUnavailable.
func HasBaselineError(errs []error) bool {
	for _, err := range errs {
		if errors.Is(err, ErrBaselineUnavailable) {
			return true
		}
	}
	return false
}
