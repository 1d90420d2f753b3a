// Package boxscore reconstructs the box-score fields that uploads do not
// capture: two-point splits, free throws and the offensive rebound split.
package boxscore

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/fortuna/courtside/internal/models"
)

// Normalizer turns an upload into derived game records. It owns the random
// source used by the estimation steps.
type Normalizer struct {
	rng *rand.Rand
}

// NewNormalizer creates a normalizer drawing from rng. A nil rng gets a
// randomly seeded source.
func NewNormalizer(rng *rand.Rand) *Normalizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Normalizer{rng: rng}
}

// NewSeededNormalizer creates a normalizer whose output is reproducible.
func NewSeededNormalizer(seed uint64) *Normalizer {
	return NewNormalizer(rand.New(rand.NewPCG(seed, seed)))
}

// Game is the normalized form of one upload.
type Game struct {
	UploadID string
	Teams    [2]models.TeamContext
	Records  []models.DerivedGameRecord
	Failures []*PlayerError
}

// Team returns the context for one side.
func (g *Game) Team(side models.TeamSide) models.TeamContext {
	return g.Teams[side.Index()]
}

// PlayerError is a failure isolated to a single player's line.
type PlayerError struct {
	Name string
	Err  error
}

func (e *PlayerError) Error() string {
	return fmt.Sprintf("player %s: %v", e.Name, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

type playerPrep struct {
	raw          models.RawPlayerBoxScore
	twoPA, twoPM int
	ftm, fta     int
}

// Normalize reconstructs every missing field in the upload. ftPercs maps a
// player ID (or name, for unidentified players) to a career free-throw
// percentage. Invalid player lines are reported in Failures and skipped; an
// invalid upload is an error.
func (n *Normalizer) Normalize(upload models.Upload, ftPercs map[string]float64) (*Game, error) {
	if err := upload.Validate(); err != nil {
		return nil, fmt.Errorf("validating upload: %w", err)
	}

	game := &Game{UploadID: upload.ID}

	preps := make([]playerPrep, 0, len(upload.Players))
	for _, p := range upload.Players {
		if !p.Team.Valid() {
			game.Failures = append(game.Failures, &PlayerError{Name: p.Name, Err: fmt.Errorf("invalid team %d", p.Team)})
			continue
		}
		if err := p.Validate(); err != nil {
			game.Failures = append(game.Failures, &PlayerError{Name: p.Name, Err: err})
			continue
		}
		preps = append(preps, n.prepPlayer(p, ftPercs))
	}

	playerFTA := make(map[models.TeamSide]int, 2)
	for _, p := range preps {
		playerFTA[p.raw.Team] += p.fta
	}

	for _, side := range []models.TeamSide{models.TeamOne, models.TeamTwo} {
		raw, _ := upload.Team(side)
		game.Teams[side.Index()] = n.teamTotals(raw, playerFTA[side])
	}

	one, two := game.Teams[0], game.Teams[1]
	applyPossessionTerms(&game.Teams[0], two)
	applyPossessionTerms(&game.Teams[1], one)

	oreb := n.allocatePlayerRebounds(preps, game)
	points := upload.TeamPoints()

	for i, p := range preps {
		team := game.Team(p.raw.Team)
		game.Records = append(game.Records, buildRecord(upload, p, oreb[i], team, points))
	}

	return game, nil
}

func (n *Normalizer) prepPlayer(p models.RawPlayerBoxScore, ftPercs map[string]float64) playerPrep {
	prep := playerPrep{raw: p}
	prep.twoPA, prep.twoPM = TwoPointers(p.FGA, p.FGM, p.ThreePA, p.ThreePM)

	if p.FTM != nil {
		prep.ftm = *p.FTM
	} else {
		prep.ftm = FreeThrowsMade(p.Pts, prep.twoPM, p.ThreePM)
	}

	if p.FTA != nil {
		prep.fta = max(*p.FTA, prep.ftm)
		return prep
	}

	key := p.PlayerID
	if key == "" {
		key = p.Name
	}
	ftPerc, ok := ftPercs[key]
	if !ok {
		ftPerc = models.DefaultFTPerc
	}
	prep.fta = EstimateFreeThrowAttempts(prep.ftm, ftPerc, n.rng)
	return prep
}

func (n *Normalizer) teamTotals(raw models.RawTeamBoxScore, playerFTA int) models.TeamContext {
	t := models.TeamContext{
		Team:    raw.Team,
		Pts:     raw.Pts,
		Treb:    raw.Treb,
		Ast:     raw.Ast,
		Stl:     raw.Stl,
		Blk:     raw.Blk,
		PF:      raw.PF,
		TOV:     raw.TOV,
		FGM:     raw.FGM,
		FGA:     raw.FGA,
		ThreePM: raw.ThreePM,
		ThreePA: raw.ThreePA,
	}
	t.TwoPA, t.TwoPM = TwoPointers(raw.FGA, raw.FGM, raw.ThreePA, raw.ThreePM)

	if raw.FTM != nil {
		t.FTM = *raw.FTM
	} else {
		t.FTM = FreeThrowsMade(raw.Pts, t.TwoPM, raw.ThreePM)
	}
	if raw.FTA != nil {
		t.FTA = *raw.FTA
	} else {
		t.FTA = playerFTA
	}
	t.FTA = max(t.FTA, t.FTM)

	missed3 := raw.ThreePA - raw.ThreePM
	missed2 := t.TwoPA - t.TwoPM
	expected := ExpectedOffensiveRebounds(missed3, missed2)
	t.OREB = SampleOffensiveRebounds(raw.Treb, expected, n.rng)
	t.DREB = abs(raw.Treb - t.OREB)

	return t
}

// allocatePlayerRebounds returns each prepared player's offensive rebounds,
// indexed like preps.
func (n *Normalizer) allocatePlayerRebounds(preps []playerPrep, game *Game) []int {
	out := make([]int, len(preps))
	for _, side := range []models.TeamSide{models.TeamOne, models.TeamTwo} {
		var shares []ReboundShare
		for i, p := range preps {
			if p.raw.Team == side {
				shares = append(shares, ReboundShare{Key: i, Treb: p.raw.Treb})
			}
		}
		for key, v := range AllocateOffensiveRebounds(shares, game.Team(side).OREB, n.rng) {
			out[key] = v
		}
	}
	return out
}

func buildRecord(upload models.Upload, p playerPrep, oreb int, team models.TeamContext, points map[models.TeamSide]int) models.DerivedGameRecord {
	raw := p.raw
	dd, td, qd := Doubles(raw.Pts, raw.Treb, raw.Ast, raw.Stl, raw.Blk)

	return models.DerivedGameRecord{
		ID:        uuid.NewString(),
		UploadID:  upload.ID,
		PlayerID:  raw.PlayerID,
		Name:      raw.Name,
		Team:      raw.Team,
		Pos:       raw.Pos,
		OppPos:    raw.OppPos,
		IsAI:      raw.IsAI,
		Grade:     raw.Grade,
		PlayedAt:  upload.UploadedAt,
		Pts:       raw.Pts,
		Treb:      raw.Treb,
		OREB:      oreb,
		DREB:      raw.Treb - oreb,
		Ast:       raw.Ast,
		Stl:       raw.Stl,
		Blk:       raw.Blk,
		PF:        raw.PF,
		TOV:       raw.TOV,
		FGM:       raw.FGM,
		FGA:       raw.FGA,
		TwoPM:     p.twoPM,
		TwoPA:     p.twoPA,
		ThreePM:   raw.ThreePM,
		ThreePA:   raw.ThreePA,
		FTM:       p.ftm,
		FTA:       p.fta,
		MP:        models.PlayerMinutes,
		DD:        dd,
		TD:        td,
		QD:        qd,
		PlusMinus: points[raw.Team] - points[raw.Team.Opponent()],
		TeamAst:   team.Ast,
		TeamFGM:   team.FGM,
		Pace:      models.Float(team.TotalPoss),
	}
}

// Doubles flags a double-, triple- or quadruple-double from the five
// counting categories.
func Doubles(pts, treb, ast, stl, blk int) (dd, td, qd int) {
	count := 0
	for _, v := range []int{pts, treb, ast, stl, blk} {
		if v >= 10 {
			count++
		}
	}
	switch count {
	case 2:
		dd = 1
	case 3:
		td = 1
	case 4:
		qd = 1
	}
	return dd, td, qd
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
