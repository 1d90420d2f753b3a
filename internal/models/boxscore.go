package models

import (
	"fmt"
	"time"
)

// League-wide constants shared by the pipeline.
const (
	InitialElo      = 1500.0
	DefaultFTPerc   = 67.0
	NewPlayerFTPerc = 70.0
	LeaguePER       = 15.0
	PlayerMinutes   = 20.0
	TeamMinutes     = PlayerMinutes * 5
	MinGames        = 3
)

// TeamSide identifies one of the two teams in a game.
type TeamSide int

const (
	TeamOne TeamSide = 1
	TeamTwo TeamSide = 2
)

// Valid reports whether the side is 1 or 2.
func (t TeamSide) Valid() bool {
	return t == TeamOne || t == TeamTwo
}

// Opponent returns the other side.
func (t TeamSide) Opponent() TeamSide {
	if t == TeamOne {
		return TeamTwo
	}
	return TeamOne
}

// Index maps the side onto a zero-based array slot.
func (t TeamSide) Index() int {
	return int(t) - 1
}

// Counting holds the directly observed counting stats of a box score.
// FTM and FTA are optional; when absent they are reconstructed.
type Counting struct {
	Pts     int  `json:"pts"`
	Treb    int  `json:"treb"`
	Ast     int  `json:"ast"`
	Stl     int  `json:"stl"`
	Blk     int  `json:"blk"`
	PF      int  `json:"pf"`
	TOV     int  `json:"tov"`
	FGM     int  `json:"fgm"`
	FGA     int  `json:"fga"`
	ThreePM int  `json:"threepm"`
	ThreePA int  `json:"threepa"`
	FTM     *int `json:"ftm,omitempty"`
	FTA     *int `json:"fta,omitempty"`
}

// Validate checks that makes never exceed attempts and nothing is negative.
func (c Counting) Validate() error {
	for name, v := range map[string]int{
		"pts": c.Pts, "treb": c.Treb, "ast": c.Ast, "stl": c.Stl, "blk": c.Blk,
		"pf": c.PF, "tov": c.TOV, "fgm": c.FGM, "fga": c.FGA,
		"threepm": c.ThreePM, "threepa": c.ThreePA,
	} {
		if v < 0 {
			return fmt.Errorf("%s is negative: %d", name, v)
		}
	}
	if c.FGM > c.FGA {
		return fmt.Errorf("fgm %d exceeds fga %d", c.FGM, c.FGA)
	}
	if c.ThreePM > c.ThreePA {
		return fmt.Errorf("threepm %d exceeds threepa %d", c.ThreePM, c.ThreePA)
	}
	if c.ThreePA > c.FGA || c.ThreePM > c.FGM {
		return fmt.Errorf("three point numbers exceed field goals")
	}
	if c.FTM != nil && c.FTA != nil && *c.FTM > *c.FTA {
		return fmt.Errorf("ftm %d exceeds fta %d", *c.FTM, *c.FTA)
	}
	return nil
}

// RawTeamBoxScore is one team's totals for a game as captured.
type RawTeamBoxScore struct {
	Team TeamSide `json:"team"`
	Name string   `json:"name,omitempty"`
	Counting
}

// RawPlayerBoxScore is one player's line for a game as captured.
type RawPlayerBoxScore struct {
	Name     string   `json:"name"`
	PlayerID string   `json:"player_id,omitempty"`
	Team     TeamSide `json:"team"`
	Pos      int      `json:"pos"`
	OppPos   int      `json:"opp_pos,omitempty"`
	IsAI     bool     `json:"is_ai"`
	Grade    string   `json:"grade,omitempty"`
	Counting
}

// Identified reports whether the line belongs to a tracked, human player.
func (p RawPlayerBoxScore) Identified() bool {
	return !p.IsAI && p.PlayerID != ""
}

// Upload is a single captured game.
type Upload struct {
	ID         string              `json:"id"`
	UploadedAt time.Time           `json:"uploaded_at"`
	Teams      []RawTeamBoxScore   `json:"teams"`
	Players    []RawPlayerBoxScore `json:"players"`
}

// Team returns the box score for one side.
func (u Upload) Team(side TeamSide) (RawTeamBoxScore, bool) {
	for _, t := range u.Teams {
		if t.Team == side {
			return t, true
		}
	}
	return RawTeamBoxScore{}, false
}

// TeamPoints returns both teams' points, indexed by side.
func (u Upload) TeamPoints() map[TeamSide]int {
	pts := make(map[TeamSide]int, 2)
	for _, t := range u.Teams {
		pts[t.Team] = t.Pts
	}
	return pts
}

// Validate checks that exactly one box score exists per side.
func (u Upload) Validate() error {
	if len(u.Teams) != 2 {
		return fmt.Errorf("upload %s has %d teams, want 2", u.ID, len(u.Teams))
	}
	if _, ok := u.Team(TeamOne); !ok {
		return fmt.Errorf("upload %s is missing team 1", u.ID)
	}
	if _, ok := u.Team(TeamTwo); !ok {
		return fmt.Errorf("upload %s is missing team 2", u.ID)
	}
	for _, t := range u.Teams {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("team %d: %w", t.Team, err)
		}
	}
	if len(u.Players) == 0 {
		return fmt.Errorf("upload %s has no players", u.ID)
	}
	return nil
}

// TeamContext is a team's normalized totals and possession terms for one game.
type TeamContext struct {
	Team        TeamSide `json:"team"`
	Pts         int      `json:"pts"`
	Treb        int      `json:"treb"`
	OREB        int      `json:"oreb"`
	DREB        int      `json:"dreb"`
	Ast         int      `json:"ast"`
	Stl         int      `json:"stl"`
	Blk         int      `json:"blk"`
	PF          int      `json:"pf"`
	TOV         int      `json:"tov"`
	FGM         int      `json:"fgm"`
	FGA         int      `json:"fga"`
	TwoPM       int      `json:"twopm"`
	TwoPA       int      `json:"twopa"`
	ThreePM     int      `json:"threepm"`
	ThreePA     int      `json:"threepa"`
	FTM         int      `json:"ftm"`
	FTA         int      `json:"fta"`
	MP          float64  `json:"mp"`
	TotalPoss   float64  `json:"total_poss"`
	ScoringPoss float64  `json:"scoring_poss"`
	ORBPerc     float64  `json:"orb_perc"`
	PlayPerc    float64  `json:"play_perc"`
	ORBWeight   float64  `json:"orb_weight"`
}
