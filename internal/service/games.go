package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/models"
)

// GameService maintains the stored game history.
type GameService struct {
	*deps
	aggregates *AggregateService
}

// DedupeResult reports what RemoveDuplicates found and removed.
type DedupeResult struct {
	Scanned   int      `json:"scanned"`
	Groups    int      `json:"groups"`
	Deleted   int64    `json:"deleted"`
	PlayerIDs []string `json:"player_ids,omitempty"`
}

// RemoveDuplicates deletes games that were uploaded more than once. The
// earliest copy of each duplicate group is kept and the affected players'
// aggregates are recomputed.
func (s *GameService) RemoveDuplicates(ctx context.Context) (DedupeResult, error) {
	log := s.logger("games")

	games, err := s.store.ListGames(ctx)
	if err != nil {
		return DedupeResult{}, fmt.Errorf("listing games: %w", err)
	}

	result := DedupeResult{Scanned: len(games)}
	kept := make(map[string]bool, len(games))
	grouped := make(map[string]bool)
	affected := make(map[string]bool)
	var doomed []string

	for _, g := range games {
		key := duplicateKey(g)
		if !kept[key] {
			kept[key] = true
			continue
		}
		if !grouped[key] {
			grouped[key] = true
			result.Groups++
		}
		doomed = append(doomed, g.ID)
		if g.Identified() && !affected[g.PlayerID] {
			affected[g.PlayerID] = true
			result.PlayerIDs = append(result.PlayerIDs, g.PlayerID)
		}
	}

	if len(doomed) == 0 {
		log.WithField("scanned", result.Scanned).Info("no duplicate games found")
		return result, nil
	}

	result.Deleted, err = s.store.DeleteGames(ctx, doomed)
	if err != nil {
		return result, fmt.Errorf("deleting duplicate games: %w", err)
	}

	for _, id := range result.PlayerIDs {
		if _, err := s.aggregates.Recalculate(ctx, id); err != nil {
			log.WithError(err).WithField("player_id", id).Warn("aggregate recompute after dedupe failed")
		}
	}

	log.WithFields(logrus.Fields{
		"scanned": result.Scanned,
		"groups":  result.Groups,
		"deleted": result.Deleted,
		"players": len(result.PlayerIDs),
	}).Info("duplicate games removed")
	return result, nil
}

// duplicateKey identifies a game line by the fields two uploads of the same
// game always share.
func duplicateKey(g models.DerivedGameRecord) string {
	var b strings.Builder
	b.WriteString(models.NormalizeAlias(g.Name))
	for _, v := range []int{g.Pos, g.Pts, g.Ast, g.Stl, g.Blk, g.PF, g.TOV, g.FGM, g.FGA, g.ThreePM, g.ThreePA} {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(v))
	}
	for _, v := range []*float64{g.O3PA, g.O3PM, g.OFGA, g.OFGM} {
		b.WriteByte('|')
		if v == nil {
			b.WriteString("nil")
			continue
		}
		b.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
	}
	return b.String()
}
