package models

import (
	"strings"
	"time"
)

// Player is a tracked human player and the names they have been captured under.
type Player struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Aliases   []string         `json:"aliases"`
	FTPerc    float64          `json:"ft_perc"`
	Elo       float64          `json:"elo"`
	Aggregate *PlayerAggregate `json:"aggregate,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NormalizeAlias folds a captured name into the form aliases are matched on.
func NormalizeAlias(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// HasAlias reports whether name matches the player's name or any alias.
func (p *Player) HasAlias(name string) bool {
	n := NormalizeAlias(name)
	if NormalizeAlias(p.Name) == n {
		return true
	}
	for _, a := range p.Aliases {
		if NormalizeAlias(a) == n {
			return true
		}
	}
	return false
}
