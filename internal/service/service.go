// Package service orchestrates the rating pipeline over a persistence store:
// uploads are normalized and rated, player aggregates are recomputed from
// scratch, and league baselines and Elo are regenerated on demand.
package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/courtside/internal/cache"
	"github.com/fortuna/courtside/internal/models"
	"github.com/fortuna/courtside/internal/publisher"
	"github.com/fortuna/courtside/internal/store"
)

// Store is the persistence collaborator every service reads from and writes to.
type Store interface {
	GetPlayer(ctx context.Context, playerID string) (*models.Player, error)
	FindPlayerByAlias(ctx context.Context, name string) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]*models.Player, error)
	CreatePlayer(ctx context.Context, p *models.Player) error
	UpdatePlayerDetails(ctx context.Context, playerID string, ftPerc float64, aliases []string) error
	SaveAggregate(ctx context.Context, playerID string, agg *models.PlayerAggregate) error

	GetEloMap(ctx context.Context, ids []string) (models.EloMap, error)
	SaveElo(ctx context.Context, ratings models.EloMap) error
	ResetElo(ctx context.Context) error

	SaveGame(ctx context.Context, upload models.Upload, records []models.DerivedGameRecord, ratings models.EloMap) error
	GamesForPlayer(ctx context.Context, playerID string) ([]models.DerivedGameRecord, error)
	ListGames(ctx context.Context) ([]models.DerivedGameRecord, error)
	DeleteGames(ctx context.Context, ids []string) (int64, error)
	ListUploads(ctx context.Context) ([]models.Upload, error)

	LatestBaseline(ctx context.Context) (*models.LeagueBaseline, error)
	AppendBaseline(ctx context.Context, lg *models.LeagueBaseline) error
}

// Publisher receives pipeline events.
type Publisher interface {
	PublishEloUpdate(ctx context.Context, update publisher.EloUpdate) error
	PublishPlayerRating(ctx context.Context, agg *models.PlayerAggregate) error
	PublishGameUploaded(ctx context.Context, event publisher.GameUploaded) error
	PublishBaseline(ctx context.Context, lg *models.LeagueBaseline) error
}

// Cache holds read models in front of the store.
type Cache interface {
	Baseline(ctx context.Context) (*models.LeagueBaseline, error)
	SetBaseline(ctx context.Context, lg *models.LeagueBaseline) error
	InvalidateBaseline(ctx context.Context) error
	Player(ctx context.Context, playerID string) (*models.Player, error)
	SetPlayer(ctx context.Context, p *models.Player) error
	InvalidatePlayers(ctx context.Context, playerIDs ...string) error
}

// Services bundles the pipeline services over one store.
type Services struct {
	Uploads    *UploadService
	Aggregates *AggregateService
	League     *LeagueService
	Elo        *EloService
	Games      *GameService
	Players    *PlayerService
	Awards     *AwardService
}

// Options configures New. Publisher and Cache may be nil.
type Options struct {
	Publisher   Publisher
	Cache       Cache
	Logger      *logrus.Logger
	Concurrency int
}

// New wires every service together.
func New(st Store, opts Options) *Services {
	d := newDeps(st, opts)

	aggregates := &AggregateService{deps: d, concurrency: opts.Concurrency}
	if aggregates.concurrency <= 0 {
		aggregates.concurrency = defaultConcurrency
	}
	elo := newEloService(d)

	return &Services{
		Uploads:    newUploadService(d, aggregates, elo),
		Aggregates: aggregates,
		League:     &LeagueService{deps: d},
		Elo:        elo,
		Games:      &GameService{deps: d, aggregates: aggregates},
		Players:    &PlayerService{deps: d},
		Awards:     &AwardService{deps: d, aggregates: aggregates},
	}
}

// deps is shared by every service.
type deps struct {
	store Store
	pub   Publisher
	cache Cache
	log   *logrus.Logger
}

func newDeps(st Store, opts Options) *deps {
	d := &deps{store: st, pub: opts.Publisher, cache: opts.Cache, log: opts.Logger}
	if d.pub == nil {
		d.pub = nopPublisher{}
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	return d
}

func (d *deps) logger(component string) *logrus.Entry {
	return d.log.WithField("component", component)
}

// baseline returns the latest league baseline, preferring the cache. It
// returns nil without error when none has been generated yet.
func (d *deps) baseline(ctx context.Context) (*models.LeagueBaseline, error) {
	if d.cache != nil {
		lg, err := d.cache.Baseline(ctx)
		if err == nil {
			return lg, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			d.logger("baseline").WithError(err).Warn("baseline cache read failed")
		}
	}

	lg, err := d.store.LatestBaseline(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.SetBaseline(ctx, lg); err != nil {
			d.logger("baseline").WithError(err).Warn("baseline cache write failed")
		}
	}
	return lg, nil
}

func (d *deps) invalidatePlayers(ctx context.Context, ids ...string) {
	if d.cache == nil || len(ids) == 0 {
		return
	}
	if err := d.cache.InvalidatePlayers(ctx, ids...); err != nil {
		d.logger("cache").WithError(err).Warn("player cache invalidation failed")
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishEloUpdate(context.Context, publisher.EloUpdate) error { return nil }
func (nopPublisher) PublishPlayerRating(context.Context, *models.PlayerAggregate) error { return nil }
func (nopPublisher) PublishGameUploaded(context.Context, publisher.GameUploaded) error { return nil }
func (nopPublisher) PublishBaseline(context.Context, *models.LeagueBaseline) error { return nil }
