package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fortuna/courtside/internal/aggregate"
	"github.com/fortuna/courtside/internal/cache"
	"github.com/fortuna/courtside/internal/metrics"
	"github.com/fortuna/courtside/internal/models"
)

const defaultConcurrency = 8

var (
	// ErrTooFewGames is returned when a player has not played enough games
	// to be rated.
	ErrTooFewGames = errors.New("not enough games to rate player")

	// ErrInvalidPosition is returned for positions outside 1-5.
	ErrInvalidPosition = errors.New("position must be between 1 and 5")
)

// AggregateService rebuilds player aggregates from their full game history.
type AggregateService struct {
	*deps
	concurrency int
	now         func() time.Time
}

// RecalcSummary reports the outcome of a full recompute.
type RecalcSummary struct {
	Players  int  `json:"players"`
	Updated  int  `json:"updated"`
	Skipped  int  `json:"skipped"`
	Failed   int  `json:"failed"`
	Baseline bool `json:"baseline"`
}

// Player returns a player with their stored aggregate.
func (s *AggregateService) Player(ctx context.Context, playerID string) (*models.Player, error) {
	if s.cache != nil {
		p, err := s.cache.Player(ctx, playerID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger("players").WithError(err).Warn("player cache read failed")
		}
	}

	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetPlayer(ctx, p); err != nil {
			s.logger("players").WithError(err).Warn("player cache write failed")
		}
	}
	return p, nil
}

// Recalculate rebuilds and stores one player's aggregate.
func (s *AggregateService) Recalculate(ctx context.Context, playerID string) (*models.PlayerAggregate, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}
	lg, err := s.baseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching league baseline: %w", err)
	}
	return s.recalculate(ctx, p, lg)
}

// RecalculateAll rebuilds every player's aggregate in parallel. Failures are
// logged per player and never stop the batch; only listing players or
// cancellation is returned as an error. progress, when set, is called after
// each player.
func (s *AggregateService) RecalculateAll(ctx context.Context, progress func(done, total int)) (RecalcSummary, error) {
	log := s.logger("aggregates")

	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return RecalcSummary{}, fmt.Errorf("listing players: %w", err)
	}
	lg, err := s.baseline(ctx)
	if err != nil {
		return RecalcSummary{}, fmt.Errorf("fetching league baseline: %w", err)
	}

	summary := RecalcSummary{Players: len(players), Baseline: lg != nil}
	if lg == nil {
		log.Warn("no league baseline yet; PER and ratings will be empty")
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, p := range players {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			_, err := s.recalculate(gctx, p, lg)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Updated++
			case errors.Is(err, ErrTooFewGames):
				summary.Skipped++
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				summary.Failed++
				log.WithError(err).WithField("player_id", p.ID).Error("player recompute failed")
			}
			done++
			if progress != nil {
				progress(done, len(players))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	log.WithFields(logrus.Fields{
		"players": summary.Players,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("player aggregates recomputed")
	return summary, nil
}

// ByPosition computes, without storing, a player's aggregate over only the
// games they played at pos.
func (s *AggregateService) ByPosition(ctx context.Context, playerID string, pos int) (*models.PlayerAggregate, error) {
	if pos < 1 || pos > 5 {
		return nil, ErrInvalidPosition
	}

	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}
	games, err := s.store.GamesForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching games: %w", err)
	}
	lg, err := s.baseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching league baseline: %w", err)
	}

	games = aggregate.FilterByPosition(games, pos)
	if len(games) == 0 {
		return nil, fmt.Errorf("player %s has no games at position %d: %w", playerID, pos, ErrTooFewGames)
	}
	return s.compute(p, games, lg, nil), nil
}

func (s *AggregateService) recalculate(ctx context.Context, p *models.Player, lg *models.LeagueBaseline) (*models.PlayerAggregate, error) {
	games, err := s.store.GamesForPlayer(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching games for %s: %w", p.ID, err)
	}
	if len(games) < models.MinGames {
		return nil, fmt.Errorf("player %s has %d games: %w", p.ID, len(games), ErrTooFewGames)
	}

	agg := s.compute(p, games, lg, p.Aggregate)

	if err := s.store.SaveAggregate(ctx, p.ID, agg); err != nil {
		return nil, fmt.Errorf("saving aggregate for %s: %w", p.ID, err)
	}
	s.invalidatePlayers(ctx, p.ID)

	if err := s.pub.PublishPlayerRating(ctx, agg); err != nil {
		s.logger("aggregates").WithError(err).WithField("player_id", p.ID).Warn("publishing rating failed")
	}
	return agg, nil
}

// compute falls back to the raw aggregate when the baseline cannot support
// PER, leaving PER, BPM and the rating empty rather than zero.
func (s *AggregateService) compute(p *models.Player, games []models.DerivedGameRecord, lg *models.LeagueBaseline, prev *models.PlayerAggregate) *models.PlayerAggregate {
	in := aggregate.Input{
		Identity: aggregate.Identity{
			PlayerID: p.ID,
			Name:     p.Name,
			Aliases:  p.Aliases,
			FTPerc:   p.FTPerc,
			Elo:      p.Elo,
		},
		Games:    games,
		Baseline: lg,
		Previous: prev,
		Now:      s.clock(),
	}

	agg, err := aggregate.Compute(in)
	if err == nil {
		return agg
	}
	if !errors.Is(err, metrics.ErrBaselineUnavailable) {
		s.logger("aggregates").WithError(err).WithField("player_id", p.ID).Warn("aggregate compute failed")
	}
	return aggregate.ComputeRaw(in)
}

func (s *AggregateService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
