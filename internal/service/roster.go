package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/models"
)

var (
	// ErrInvalidDetails is returned for a free throw percentage outside
	// 0-100 or a blank alias.
	ErrInvalidDetails = errors.New("invalid player details")

	// ErrInvalidLimit is returned when a game count is not positive.
	ErrInvalidLimit = errors.New("number of games must be a positive integer")
)

// PlayerService maintains player identity and serves their game history.
type PlayerService struct {
	*deps
}

// DetailsUpdate is a change to a player's free throw percentage and aliases.
// A nil FTPerc leaves the stored value alone.
type DetailsUpdate struct {
	FTPerc  *float64 `json:"ft_perc"`
	Aliases []string `json:"aliases"`
}

// UpdateDetails sets a player's free throw percentage and appends aliases.
// An alias already held by another player fails with store.ErrDuplicate and
// changes nothing. It returns the updated player.
func (s *PlayerService) UpdateDetails(ctx context.Context, playerID string, upd DetailsUpdate) (*models.Player, error) {
	if upd.FTPerc != nil && (*upd.FTPerc < 0 || *upd.FTPerc > 100) {
		return nil, fmt.Errorf("%w: ft_perc %v is outside 0-100", ErrInvalidDetails, *upd.FTPerc)
	}

	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	added, err := newAliases(p, upd.Aliases)
	if err != nil {
		return nil, err
	}

	ftPerc := p.FTPerc
	if upd.FTPerc != nil {
		ftPerc = *upd.FTPerc
	}
	aliases := append(append([]string(nil), p.Aliases...), added...)

	if err := s.store.UpdatePlayerDetails(ctx, playerID, ftPerc, aliases); err != nil {
		return nil, fmt.Errorf("updating player details: %w", err)
	}
	s.invalidatePlayers(ctx, playerID)

	s.logger("players").WithFields(logrus.Fields{
		"player_id": playerID,
		"ft_perc":   ftPerc,
		"added":     added,
	}).Info("player details updated")

	p.FTPerc = ftPerc
	p.Aliases = aliases
	return p, nil
}

// newAliases trims the requested aliases and drops the ones the player
// already answers to.
func newAliases(p *models.Player, requested []string) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, a := range requested {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, fmt.Errorf("%w: blank alias", ErrInvalidDetails)
		}
		key := models.NormalizeAlias(a)
		if seen[key] || p.HasAlias(a) {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out, nil
}

// LastGames returns a player's n most recent games, newest first.
func (s *PlayerService) LastGames(ctx context.Context, playerID string, n int) ([]models.DerivedGameRecord, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	games, err := s.store.GamesForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching games: %w", err)
	}

	if n > len(games) {
		n = len(games)
	}
	out := make([]models.DerivedGameRecord, 0, n)
	for i := len(games) - 1; i >= len(games)-n; i-- {
		out = append(out, games[i])
	}
	return out, nil
}
