package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/awards"
	"github.com/fortuna/courtside/internal/models"
)

// AwardService hands out season awards from the stored aggregates.
type AwardService struct {
	*deps
	aggregates *AggregateService
}

// Generate computes the award sheet over every player with a stored aggregate.
func (s *AwardService) Generate(ctx context.Context) (*awards.Awards, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	aggs := make([]*models.PlayerAggregate, 0, len(players))
	for _, p := range players {
		if p.Aggregate != nil {
			aggs = append(aggs, p.Aggregate)
		}
	}

	sheet := awards.Generate(aggs, s.aggregates.clock())

	entry := s.logger("awards").WithField("candidates", sheet.Candidates)
	if sheet.MVP != nil {
		entry = entry.WithFields(logrus.Fields{"mvp": sheet.MVP.Name, "mvp_per": sheet.MVP.Value})
	}
	entry.Info("awards generated")
	return sheet, nil
}
