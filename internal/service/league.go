package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/courtside/internal/league"
	"github.com/fortuna/courtside/internal/models"
)

// ErrNoBaseline is returned when no league baseline has been generated.
var ErrNoBaseline = errors.New("no league baseline has been generated")

// LeagueService generates and serves league baselines.
type LeagueService struct {
	*deps
	now func() time.Time
}

// Latest returns the current league baseline.
func (s *LeagueService) Latest(ctx context.Context) (*models.LeagueBaseline, error) {
	lg, err := s.baseline(ctx)
	if err != nil {
		return nil, err
	}
	if lg == nil {
		return nil, ErrNoBaseline
	}
	return lg, nil
}

// Generate computes a new baseline from every stored aggregate, appends it and
// refreshes the cache.
func (s *LeagueService) Generate(ctx context.Context) (*models.LeagueBaseline, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	aggregates := make([]models.PlayerAggregate, 0, len(players))
	for _, p := range players {
		if p.Aggregate != nil {
			aggregates = append(aggregates, *p.Aggregate)
		}
	}

	now := time.Now().UTC()
	if s.now != nil {
		now = s.now()
	}
	lg, err := league.Compute(aggregates, now)
	if err != nil {
		return nil, fmt.Errorf("computing league baseline: %w", err)
	}

	if err := s.store.AppendBaseline(ctx, lg); err != nil {
		return nil, fmt.Errorf("storing league baseline: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetBaseline(ctx, lg); err != nil {
			s.logger("league").WithError(err).Warn("baseline cache refresh failed")
			if err := s.cache.InvalidateBaseline(ctx); err != nil {
				s.logger("league").WithError(err).Error("baseline cache invalidation failed")
			}
		}
	}

	if err := s.pub.PublishBaseline(ctx, lg); err != nil {
		s.logger("league").WithError(err).Warn("publishing baseline failed")
	}

	s.logger("league").WithField("baseline_id", lg.ID).WithField("players", lg.Players).Info("league baseline generated")
	return lg, nil
}
