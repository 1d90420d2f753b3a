package models

import (
	"math"
	"time"
)

// DerivedGameRecord is a player's line for one game plus every value computed
// from it. Derived fields are nil when they could not be computed.
type DerivedGameRecord struct {
	ID       string    `json:"id"`
	UploadID string    `json:"upload_id"`
	PlayerID string    `json:"player_id,omitempty"`
	Name     string    `json:"name"`
	Team     TeamSide  `json:"team"`
	Pos      int       `json:"pos"`
	OppPos   int       `json:"opp_pos,omitempty"`
	IsAI     bool      `json:"is_ai"`
	Grade    string    `json:"grade,omitempty"`
	PlayedAt time.Time `json:"played_at"`

	Pts     int     `json:"pts"`
	Treb    int     `json:"treb"`
	OREB    int     `json:"oreb"`
	DREB    int     `json:"dreb"`
	Ast     int     `json:"ast"`
	Stl     int     `json:"stl"`
	Blk     int     `json:"blk"`
	PF      int     `json:"pf"`
	TOV     int     `json:"tov"`
	FGM     int     `json:"fgm"`
	FGA     int     `json:"fga"`
	TwoPM   int     `json:"twopm"`
	TwoPA   int     `json:"twopa"`
	ThreePM int     `json:"threepm"`
	ThreePA int     `json:"threepa"`
	FTM     int     `json:"ftm"`
	FTA     int     `json:"fta"`
	MP      float64 `json:"mp"`

	DD        int `json:"dd"`
	TD        int `json:"td"`
	QD        int `json:"qd"`
	PlusMinus int `json:"plus_minus"`

	// Team totals needed to recompute per-game PER against a newer baseline.
	TeamAst int `json:"team_ast"`
	TeamFGM int `json:"team_fgm"`

	Pace      *float64 `json:"pace"`
	ORTG      *float64 `json:"ortg"`
	DRTG      *float64 `json:"drtg"`
	FloorPerc *float64 `json:"floor_perc"`
	AstPerc   *float64 `json:"ast_perc"`
	TOVPerc   *float64 `json:"tov_perc"`
	UsageRate *float64 `json:"usage_rate"`
	GameScore *float64 `json:"game_score"`
	DRebPerc  *float64 `json:"dreb_perc"`
	OFGA      *float64 `json:"o_fga"`
	OFGM      *float64 `json:"o_fgm"`
	O3PA      *float64 `json:"o_3pa"`
	O3PM      *float64 `json:"o_3pm"`
	UPER      *float64 `json:"uper"`
	APER      *float64 `json:"aper"`
	PER       *float64 `json:"per"`
}

// Identified reports whether the record belongs to a tracked, human player.
func (r DerivedGameRecord) Identified() bool {
	return !r.IsAI && r.PlayerID != ""
}

// LeagueBaseline holds league-wide per-game averages for one computation period.
type LeagueBaseline struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Players     int       `json:"players"`
	GamesPlayed int       `json:"games_played"`

	Pts       float64 `json:"pts"`
	Treb      float64 `json:"treb"`
	OREB      float64 `json:"oreb"`
	DREB      float64 `json:"dreb"`
	Ast       float64 `json:"ast"`
	Stl       float64 `json:"stl"`
	Blk       float64 `json:"blk"`
	TOV       float64 `json:"tov"`
	PF        float64 `json:"pf"`
	FGM       float64 `json:"fgm"`
	FGA       float64 `json:"fga"`
	ThreePM   float64 `json:"threepm"`
	ThreePA   float64 `json:"threepa"`
	FTM       float64 `json:"ftm"`
	FTA       float64 `json:"fta"`
	ORTG      float64 `json:"ortg"`
	DRTG      float64 `json:"drtg"`
	Pace      float64 `json:"pace"`
	GameScore float64 `json:"game_score"`
	UsageRate float64 `json:"usage_rate"`
	TOVPerc   float64 `json:"tov_perc"`
	AstPerc   float64 `json:"ast_perc"`
	ThreePAR  float64 `json:"threepar"`
	OFGA      float64 `json:"o_fga"`
	OFGM      float64 `json:"o_fgm"`
	O3PA      float64 `json:"o_3pa"`
	O3PM      float64 `json:"o_3pm"`
	EBPM      float64 `json:"ebpm"`
	BPM       float64 `json:"bpm"`

	FGPerc     float64 `json:"fg_perc"`
	ThreePPerc float64 `json:"threep_perc"`
	EFGPerc    float64 `json:"efg_perc"`
	TSPerc     float64 `json:"ts_perc"`
	OEFGPerc   float64 `json:"o_efg_perc"`
	AstToRatio float64 `json:"ast_to_ratio"`

	PER  float64 `json:"per"`
	APER float64 `json:"aper"`
}

// Averages are a player's per-game means; each is nil when no game had a valid value.
type Averages struct {
	Pace      *float64 `json:"pace"`
	MP        *float64 `json:"mp"`
	Pts       *float64 `json:"pts"`
	Treb      *float64 `json:"treb"`
	OREB      *float64 `json:"oreb"`
	DREB      *float64 `json:"dreb"`
	Ast       *float64 `json:"ast"`
	Stl       *float64 `json:"stl"`
	Blk       *float64 `json:"blk"`
	PF        *float64 `json:"pf"`
	TOV       *float64 `json:"tov"`
	FGM       *float64 `json:"fgm"`
	FGA       *float64 `json:"fga"`
	TwoPM     *float64 `json:"twopm"`
	TwoPA     *float64 `json:"twopa"`
	ThreePM   *float64 `json:"threepm"`
	ThreePA   *float64 `json:"threepa"`
	FTM       *float64 `json:"ftm"`
	FTA       *float64 `json:"fta"`
	ORTG      *float64 `json:"ortg"`
	DRTG      *float64 `json:"drtg"`
	FloorPerc *float64 `json:"floor_perc"`
	AstPerc   *float64 `json:"ast_perc"`
	TOVPerc   *float64 `json:"tov_perc"`
	UsageRate *float64 `json:"usage_rate"`
	GameScore *float64 `json:"game_score"`
	DRebPerc  *float64 `json:"dreb_perc"`
	OFGA      *float64 `json:"o_fga"`
	OFGM      *float64 `json:"o_fgm"`
	O3PA      *float64 `json:"o_3pa"`
	O3PM      *float64 `json:"o_3pm"`
	PlusMinus *float64 `json:"plus_minus"`
	UPER      *float64 `json:"uper"`
	APER      *float64 `json:"aper"`
}

// Percentages are recomputed from averaged components, never averaged directly.
type Percentages struct {
	FGPerc     *float64 `json:"fg_perc"`
	TwoPerc    *float64 `json:"two_perc"`
	ThreePerc  *float64 `json:"three_perc"`
	TSPerc     *float64 `json:"ts_perc"`
	EFGPerc    *float64 `json:"efg_perc"`
	ThreePAR   *float64 `json:"threepar"`
	AstToRatio *float64 `json:"ast_to_ratio"`
	OFGPerc    *float64 `json:"o_fg_perc"`
	O3PPerc    *float64 `json:"o_3p_perc"`
	OEFGPerc   *float64 `json:"o_efg_perc"`
}

// PositionCount is the number of games played at a position.
type PositionCount struct {
	Pos   int `json:"pos"`
	Games int `json:"games"`
}

// PlayerAggregate is a player's full-history summary. It is rebuilt from
// scratch on every recompute.
type PlayerAggregate struct {
	PlayerID string   `json:"player_id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases"`
	FTPerc   float64  `json:"ft_perc"`

	GP              int `json:"gp"`
	APERGamesPlayed int `json:"aper_games_played"`

	Averages
	Percentages

	OffensiveRanking *float64 `json:"offensive_ranking"`
	DefensiveRanking *float64 `json:"defensive_ranking"`

	PER  *float64 `json:"per"`
	EBPM *float64 `json:"ebpm"`
	BPM  *float64 `json:"bpm"`

	Rating            *float64 `json:"rating"`
	RatingString      string   `json:"rating_string,omitempty"`
	RatingMovement    string   `json:"rating_movement,omitempty"`
	GPSinceLastRating int      `json:"gp_since_last_rating"`

	Elo    float64 `json:"elo"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	DD     int     `json:"dd"`
	TD     int     `json:"td"`
	QD     int     `json:"qd"`

	Positions     []PositionCount `json:"positions,omitempty"`
	TeammateGrade string          `json:"teammate_grade,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// EloMap maps player IDs to Elo ratings.
type EloMap map[string]float64

// Get returns the stored rating or InitialElo for unseen players.
func (m EloMap) Get(playerID string) float64 {
	if v, ok := m[playerID]; ok {
		return v
	}
	return InitialElo
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value dereferences p, reporting false for nil.
func Value(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// ValueOr dereferences p, returning fallback for nil.
func ValueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
