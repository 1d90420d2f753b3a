package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/fortuna/courtside/internal/elo"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/publisher"
)

// EloService applies Elo updates for uploads and rebuilds them from history.
type EloService struct {
	*deps
	engine *elo.Engine

	// mu serializes read-compute-write cycles so each game sees every
	// earlier game's batch.
	mu sync.Mutex
}

func newEloService(d *deps) *EloService {
	return &EloService{deps: d, engine: elo.NewEngine()}
}

// Record rates one upload against the stored Elo and persists the game, its
// records and the new ratings in a single store write, then publishes the
// changes. Nothing is stored when rating or saving fails.
func (s *EloService) Record(ctx context.Context, upload models.Upload, records []models.DerivedGameRecord) (elo.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(upload.Players))
	for _, p := range upload.Players {
		if p.Identified() {
			ids = append(ids, p.PlayerID)
		}
	}

	var out elo.Outcome
	if len(ids) > 0 {
		ratings, err := s.store.GetEloMap(ctx, ids)
		if err != nil {
			return elo.Outcome{}, fmt.Errorf("fetching elo: %w", err)
		}
		out = s.engine.Rate(upload, ratings)
	}

	if err := s.store.SaveGame(ctx, upload, records, out.After); err != nil {
		return elo.Outcome{}, fmt.Errorf("saving game: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}
	s.invalidatePlayers(ctx, ids...)

	update := publisher.EloUpdate{UploadID: upload.ID, Before: out.Before, After: out.After}
	if err := s.pub.PublishEloUpdate(ctx, update); err != nil {
		s.logger("elo").WithError(err).WithField("upload_id", upload.ID).Warn("publishing elo update failed")
	}
	return out, nil
}

// Regenerate resets every rating and replays all stored uploads in order.
func (s *EloService) Regenerate(ctx context.Context) (models.EloMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uploads, err := s.store.ListUploads(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}

	ratings := s.engine.Replay(uploads)

	if err := s.store.ResetElo(ctx); err != nil {
		return nil, fmt.Errorf("resetting elo: %w", err)
	}
	if err := s.store.SaveElo(ctx, ratings); err != nil {
		return nil, fmt.Errorf("saving elo: %w", err)
	}

	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	s.invalidatePlayers(ctx, ids...)

	s.logger("elo").WithField("uploads", len(uploads)).WithField("players", len(ratings)).Info("elo regenerated")
	return ratings, nil
}
