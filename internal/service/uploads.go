package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/boxscore"
	"github.com/fortuna/courtside/internal/metrics"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/publisher"
	"github.com/fortuna/courtside/internal/store"
)

// ErrInvalidUpload wraps validation failures of a submitted game.
var ErrInvalidUpload = errors.New("invalid upload")

// UploadService turns captured games into stored, rated history.
type UploadService struct {
	*deps
	aggregates *AggregateService
	elo        *EloService
	now        func() time.Time

	// normalizer's random source is not safe for concurrent use.
	mu         sync.Mutex
	normalizer *boxscore.Normalizer
}

func newUploadService(d *deps, aggregates *AggregateService, elo *EloService) *UploadService {
	return &UploadService{
		deps:       d,
		aggregates: aggregates,
		elo:        elo,
		normalizer: boxscore.NewNormalizer(nil),
	}
}

// UploadResult summarizes one processed upload.
type UploadResult struct {
	UploadID  string             `json:"upload_id"`
	Records   int                `json:"records"`
	PlayerIDs []string           `json:"player_ids"`
	Created   []string           `json:"created_players,omitempty"`
	Failures  []string           `json:"failures,omitempty"`
	Elo       map[string]float64 `json:"elo,omitempty"`
	Baseline  bool               `json:"baseline"`
}

// Upload normalizes a captured game, derives every per-game metric, stores
// the records together with the game's Elo batch and recomputes the
// aggregates of everyone who played. Per-player problems are reported in the
// result rather than failing the upload. Re-sending a stored upload ID fails
// with store.ErrDuplicate.
func (s *UploadService) Upload(ctx context.Context, upload models.Upload) (*UploadResult, error) {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.UploadedAt.IsZero() {
		upload.UploadedAt = s.clock()
	}
	log := s.logger("uploads").WithField("upload_id", upload.ID)

	if err := upload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	result := &UploadResult{UploadID: upload.ID}

	ftPercs, err := s.resolvePlayers(ctx, &upload, result)
	if err != nil {
		return nil, err
	}

	lg, err := s.baseline(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching league baseline: %w", err)
	}
	result.Baseline = lg != nil

	s.mu.Lock()
	game, err := s.normalizer.Normalize(upload, ftPercs)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, f := range game.Failures {
		log.WithError(f.Err).WithField("player", f.Name).Warn("skipping invalid player line")
		result.Failures = append(result.Failures, f.Error())
	}

	for _, err := range metrics.Derive(game.Records, game.Teams, lg) {
		var missing *metrics.MissingOpponentError
		switch {
		case errors.As(err, &missing):
			log.WithFields(logrus.Fields{"player": missing.Name, "pos": missing.Pos}).Warn("no positional opponent; defensive stats skipped")
			result.Failures = append(result.Failures, err.Error())
		case errors.Is(err, metrics.ErrBaselineUnavailable):
			log.WithError(err).Warn("league baseline unavailable; PER left empty")
		default:
			log.WithError(err).Warn("metric derivation failed")
			result.Failures = append(result.Failures, err.Error())
		}
	}

	out, err := s.elo.Record(ctx, upload, game.Records)
	if err != nil {
		return nil, err
	}
	result.Records = len(game.Records)
	result.Elo = out.After

	event := publisher.GameUploaded{
		UploadID:  upload.ID,
		PlayerIDs: result.PlayerIDs,
		Records:   result.Records,
		Failures:  result.Failures,
	}
	if err := s.pub.PublishGameUploaded(ctx, event); err != nil {
		log.WithError(err).Warn("publishing upload event failed")
	}

	for _, id := range result.PlayerIDs {
		if _, err := s.aggregates.Recalculate(ctx, id); err != nil {
			if errors.Is(err, ErrTooFewGames) {
				log.WithField("player_id", id).Debug("player below minimum games; aggregate not updated")
				continue
			}
			log.WithError(err).WithField("player_id", id).Error("aggregate recompute failed")
			result.Failures = append(result.Failures, err.Error())
		}
	}

	log.WithFields(logrus.Fields{
		"records":  result.Records,
		"players":  len(result.PlayerIDs),
		"failures": len(result.Failures),
	}).Info("upload processed")
	return result, nil
}

// resolvePlayers maps every human line to a stored player, creating players
// for names never seen before, and returns each player's free-throw
// percentage keyed by player ID.
func (s *UploadService) resolvePlayers(ctx context.Context, upload *models.Upload, result *UploadResult) (map[string]float64, error) {
	ftPercs := make(map[string]float64, len(upload.Players))
	seen := make(map[string]bool, len(upload.Players))

	for i := range upload.Players {
		line := &upload.Players[i]
		if line.IsAI {
			continue
		}

		p, created, err := s.resolve(ctx, line)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		if created {
			result.Created = append(result.Created, p.ID)
		}

		line.PlayerID = p.ID
		ftPercs[p.ID] = p.FTPerc
		if !seen[p.ID] {
			seen[p.ID] = true
			result.PlayerIDs = append(result.PlayerIDs, p.ID)
		}
	}
	return ftPercs, nil
}

// resolve finds the player for a line by ID or alias, creating one for an
// unknown name. Lines without a usable name resolve to nil.
func (s *UploadService) resolve(ctx context.Context, line *models.RawPlayerBoxScore) (p *models.Player, created bool, err error) {
	if line.PlayerID != "" {
		p, err := s.store.GetPlayer(ctx, line.PlayerID)
		if err != nil {
			return nil, false, fmt.Errorf("resolving player %s: %w", line.PlayerID, err)
		}
		return p, false, nil
	}
	if models.NormalizeAlias(line.Name) == "" {
		return nil, false, nil
	}

	p, err = s.store.FindPlayerByAlias(ctx, line.Name)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("resolving %q: %w", line.Name, err)
	}

	p = &models.Player{
		ID:      uuid.NewString(),
		Name:    line.Name,
		Aliases: []string{line.Name},
		FTPerc:  models.NewPlayerFTPerc,
		Elo:     models.InitialElo,
	}
	if err := s.store.CreatePlayer(ctx, p); err != nil {
		return nil, false, fmt.Errorf("creating player %q: %w", line.Name, err)
	}
	s.logger("uploads").WithFields(logrus.Fields{"player_id": p.ID, "name": p.Name}).Info("created player")
	return p, true, nil
}

func (s *UploadService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
