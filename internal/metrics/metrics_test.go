package metrics_test

import (
	"errors"
	"math"
	"testing"

	"github.com/fortuna/courtside/internal/metrics"
	"github.com/fortuna/courtside/internal/models"
)

const tolerance = 1e-6

func approx(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func testBaseline() *models.LeagueBaseline {
	return &models.LeagueBaseline{
		ID:         "lg-1",
		Pts:        14,
		Treb:       6,
		OREB:       1.5,
		DREB:       4.5,
		Ast:        3,
		Stl:        1.2,
		Blk:        0.6,
		TOV:        2.2,
		PF:         2,
		FGM:        5.5,
		FGA:        12,
		ThreePM:    1.4,
		ThreePA:    4,
		FTM:        1.6,
		FTA:        2.4,
		Pace:       60,
		UsageRate:  20,
		AstPerc:    15,
		ThreePPerc: 35,
		PER:        15,
		APER:       0.4,
	}
}

func teamOne() models.TeamContext {
	return models.TeamContext{
		Team: models.TeamOne, Pts: 62, Treb: 30, OREB: 8, DREB: 22, Ast: 14, Stl: 6, Blk: 3, PF: 8, TOV: 9,
		FGM: 25, FGA: 55, ThreePM: 6, ThreePA: 20, FTM: 6, FTA: 8,
		MP: 100, TotalPoss: 63, ScoringPoss: 29, ORBPerc: 0.3, PlayPerc: 0.45, ORBWeight: 0.6,
	}
}

func teamTwo() models.TeamContext {
	return models.TeamContext{
		Team: models.TeamTwo, Pts: 55, Treb: 26, OREB: 6, DREB: 20, Ast: 12, Stl: 5, Blk: 2, PF: 10, TOV: 11,
		FGM: 22, FGA: 52, ThreePM: 5, ThreePA: 18, FTM: 6, FTA: 9,
		MP: 100, TotalPoss: 63, ScoringPoss: 26, ORBPerc: 0.25, PlayPerc: 0.4, ORBWeight: 0.65,
	}
}

func guard() models.DerivedGameRecord {
	return models.DerivedGameRecord{
		UploadID: "u1", Name: "alpha", Team: models.TeamOne, Pos: 1, OppPos: 1,
		Pts: 20, Treb: 6, OREB: 2, DREB: 4, Ast: 5, Stl: 2, PF: 2, TOV: 3,
		FGM: 8, FGA: 15, TwoPM: 6, TwoPA: 9, ThreePM: 2, ThreePA: 6, FTM: 2, FTA: 4,
		MP: 20, TeamAst: 14, TeamFGM: 25, Pace: models.Float(63),
	}
}

func opposingGuard() models.DerivedGameRecord {
	return models.DerivedGameRecord{
		UploadID: "u1", Name: "charlie", Team: models.TeamTwo, Pos: 1, OppPos: 1,
		Pts: 18, Treb: 4, OREB: 1, DREB: 3, Ast: 6, Stl: 2, PF: 3, TOV: 4,
		FGM: 7, FGA: 16, TwoPM: 5, TwoPA: 9, ThreePM: 2, ThreePA: 7, FTM: 0, FTA: 0,
		MP: 20, TeamAst: 12, TeamFGM: 22, Pace: models.Float(63),
	}
}

func TestGameScore(t *testing.T) {
	if got := metrics.GameScore(guard()); !approx(got, 16.2) {
		t.Errorf("GameScore() = %v, want 16.2", got)
	}
}

func TestOffense(t *testing.T) {
	res := metrics.Offense(guard(), teamOne())

	if want := 300 / 19.76; !approx(res.TOVPerc, want) {
		t.Errorf("TOVPerc = %v, want %v", res.TOVPerc, want)
	}
	if want := 100 * 19.76 / 67.52; !approx(res.UsageRate, want) {
		t.Errorf("UsageRate = %v, want %v", res.UsageRate, want)
	}
	if want := 500.0 / 17; !approx(res.AstPerc, want) {
		t.Errorf("AstPerc = %v, want %v", res.AstPerc, want)
	}
	if math.IsNaN(res.ORTG) || res.ORTG <= 0 {
		t.Errorf("ORTG = %v, want positive", res.ORTG)
	}
	if res.FloorPerc <= 0 || res.FloorPerc > 100 {
		t.Errorf("FloorPerc = %v, want within (0, 100]", res.FloorPerc)
	}
}

func TestOffenseWithoutFreeThrows(t *testing.T) {
	p := guard()
	p.Pts, p.FTM, p.FTA = 18, 0, 0

	res := metrics.Offense(p, teamOne())
	if math.IsNaN(res.ORTG) || math.IsInf(res.ORTG, 0) {
		t.Errorf("ORTG = %v with no free throws, want finite", res.ORTG)
	}
}

func TestOffenseEmptyLine(t *testing.T) {
	p := models.DerivedGameRecord{Team: models.TeamOne, MP: 20}

	res := metrics.Offense(p, teamOne())
	if !math.IsNaN(res.ORTG) {
		t.Errorf("ORTG = %v for a player with no possessions, want NaN", res.ORTG)
	}
}

func TestDefense(t *testing.T) {
	res := metrics.Defense(guard(), opposingGuard(), teamOne(), teamTwo())

	if math.IsNaN(res.DRTG) || res.DRTG <= 0 {
		t.Errorf("DRTG = %v, want positive", res.DRTG)
	}
	if res.OFGA != 16 || res.OFGM != 7 || res.O3PA != 7 || res.O3PM != 2 {
		t.Errorf("opponent shooting = %+v", res)
	}
	// 100 * 4 * 20 / (20 * (22 + 6))
	if want := 400.0 / 28; !approx(res.DRebPerc, want) {
		t.Errorf("DRebPerc = %v, want %v", res.DRebPerc, want)
	}
}

func TestDefenseOpponentWithoutShots(t *testing.T) {
	opp := opposingGuard()
	opp.FGA, opp.FGM, opp.ThreePA, opp.ThreePM = 0, 0, 0, 0

	res := metrics.Defense(guard(), opp, teamOne(), teamTwo())
	if !math.IsNaN(res.DRTG) {
		t.Errorf("DRTG = %v when opponent took no shots, want NaN", res.DRTG)
	}
}

func TestFindOpponent(t *testing.T) {
	p := guard()
	p.OppPos = 2

	records := []models.DerivedGameRecord{
		p,
		{Name: "teammate", Team: models.TeamOne, Pos: 2},
		{Name: "same-pos", Team: models.TeamTwo, Pos: 1},
		{Name: "matchup", Team: models.TeamTwo, Pos: 2},
	}

	got, ok := metrics.FindOpponent(p, records)
	if !ok || got.Name != "matchup" {
		t.Errorf("FindOpponent() = %q, %v, want matchup", got.Name, ok)
	}

	got, ok = metrics.FindOpponent(p, records[:3])
	if !ok || got.Name != "same-pos" {
		t.Errorf("FindOpponent() fallback = %q, %v, want same-pos", got.Name, ok)
	}

	if _, ok := metrics.FindOpponent(p, records[:2]); ok {
		t.Error("FindOpponent() found an opponent among teammates")
	}
}

func TestAdjustPER(t *testing.T) {
	lg := &models.LeagueBaseline{PER: 15, APER: 12, Pace: 1.2}

	aPER, per, err := metrics.AdjustPER(1.0, 1.2, 1.0, lg)
	if err != nil {
		t.Fatalf("AdjustPER() error = %v", err)
	}
	if !approx(aPER, 1.2) {
		t.Errorf("aPER = %v, want 1.2", aPER)
	}
	if !approx(per, 1.5) {
		t.Errorf("PER = %v, want 1.5", per)
	}

	aPER, per, err = metrics.AdjustPER(-2, 1.2, 1.0, lg)
	if err != nil {
		t.Fatalf("AdjustPER() error = %v", err)
	}
	if aPER != 0 || per != 15 {
		t.Errorf("negative uPER gave aPER %v PER %v, want 0 and 15", aPER, per)
	}

	if _, _, err := metrics.AdjustPER(1, 1, 1, nil); !errors.Is(err, metrics.ErrBaselineUnavailable) {
		t.Errorf("AdjustPER(nil baseline) error = %v, want ErrBaselineUnavailable", err)
	}
}

func TestNewLeagueConstants(t *testing.T) {
	if _, err := metrics.NewLeagueConstants(nil); !errors.Is(err, metrics.ErrBaselineUnavailable) {
		t.Errorf("NewLeagueConstants(nil) error = %v, want ErrBaselineUnavailable", err)
	}
	if _, err := metrics.NewLeagueConstants(&models.LeagueBaseline{}); !errors.Is(err, metrics.ErrBaselineUnavailable) {
		t.Errorf("NewLeagueConstants(empty) error = %v, want ErrBaselineUnavailable", err)
	}

	c, err := metrics.NewLeagueConstants(testBaseline())
	if err != nil {
		t.Fatalf("NewLeagueConstants() error = %v", err)
	}
	if want := 14 / (12 - 1.5 + 2.2 + 0.44*2.4); !approx(c.VOP, want) {
		t.Errorf("VOP = %v, want %v", c.VOP, want)
	}
	if want := 4.5 / 6; !approx(c.DRBPerc, want) {
		t.Errorf("DRBPerc = %v, want %v", c.DRBPerc, want)
	}
}

func TestUnadjustedPERMonotoneInPoints(t *testing.T) {
	c, err := metrics.NewLeagueConstants(testBaseline())
	if err != nil {
		t.Fatalf("NewLeagueConstants() error = %v", err)
	}

	base := guard()
	better := guard()
	better.FGM++
	better.FGA++
	better.TwoPM++
	better.TwoPA++
	better.Pts += 2

	if metrics.UnadjustedPER(better, 14, 26, c) <= metrics.UnadjustedPER(base, 14, 25, c) {
		t.Error("an extra made basket did not raise uPER")
	}
}

func TestBPMAgainstLeagueAverage(t *testing.T) {
	lg := testBaseline()
	lg.EBPM = 1.5

	line := metrics.BaselineLine(lg)
	line.PlusMinus = 4

	eBPM, bpm, err := metrics.BPM(line, lg)
	if err != nil {
		t.Fatalf("BPM() error = %v", err)
	}
	if !approx(eBPM, 4) {
		t.Errorf("eBPM = %v, want 4 for a league-average line", eBPM)
	}
	if !approx(bpm, 2.5) {
		t.Errorf("bpm = %v, want 2.5", bpm)
	}

	if _, _, err := metrics.BPM(line, nil); !errors.Is(err, metrics.ErrBaselineUnavailable) {
		t.Errorf("BPM(nil) error = %v, want ErrBaselineUnavailable", err)
	}
}

func TestDerive(t *testing.T) {
	records := []models.DerivedGameRecord{guard(), opposingGuard(), {
		UploadID: "u1", Name: "lonely", Team: models.TeamOne, Pos: 5, OppPos: 5, MP: 20,
		Pts: 4, Treb: 3, DREB: 3, FGM: 2, FGA: 5, TwoPM: 2, TwoPA: 5,
	}}
	teams := [2]models.TeamContext{teamOne(), teamTwo()}

	errs := metrics.Derive(records, teams, testBaseline())
	if len(errs) != 1 {
		t.Fatalf("Derive() returned %d errors, want 1: %v", len(errs), errs)
	}

	var missing *metrics.MissingOpponentError
	if !errors.As(errs[0], &missing) || missing.Name != "lonely" {
		t.Errorf("Derive() error = %v, want missing opponent for lonely", errs[0])
	}
	if !errors.Is(errs[0], metrics.ErrMissingOpponent) {
		t.Error("missing opponent error does not unwrap to ErrMissingOpponent")
	}

	if records[2].DRTG != nil || records[2].OFGA != nil {
		t.Error("defensive fields were filled for a player without an opponent")
	}
	if records[2].ORTG == nil {
		t.Error("offensive fields were skipped for a player without an opponent")
	}
	for _, r := range records[:2] {
		if r.DRTG == nil || r.ORTG == nil || r.UsageRate == nil || r.GameScore == nil {
			t.Errorf("%s: advanced fields missing", r.Name)
		}
		if r.UPER == nil || r.APER == nil || r.PER == nil {
			t.Errorf("%s: PER fields missing", r.Name)
		}
	}
}

func TestDeriveWithoutBaseline(t *testing.T) {
	records := []models.DerivedGameRecord{guard(), opposingGuard()}

	errs := metrics.Derive(records, [2]models.TeamContext{teamOne(), teamTwo()}, nil)
	if !metrics.HasBaselineError(errs) {
		t.Fatalf("Derive() errors = %v, want baseline unavailable", errs)
	}
	for _, r := range records {
		if r.PER != nil || r.APER != nil {
			t.Errorf("%s: PER = %v without a baseline, want nil", r.Name, r.PER)
		}
		if r.ORTG == nil {
			t.Errorf("%s: ORTG missing without a baseline", r.Name)
		}
	}
}
