package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/courtside/internal/models"
)

// Stream names.
const (
	StreamElo            = "ratings.elo"
	StreamPlayerRatings  = "ratings.players"
	StreamGamesUploaded  = "games.uploaded"
	StreamLeagueBaseline = "league.baseline"
)

// Streams lists every stream this service publishes to.
var Streams = []string{StreamElo, StreamPlayerRatings, StreamGamesUploaded, StreamLeagueBaseline}

// maxStreamLen caps each stream with approximate trimming.
const maxStreamLen = 10000

// EloUpdate is published after a game's Elo batch is applied.
type EloUpdate struct {
	UploadID string             `json:"upload_id"`
	Before   map[string]float64 `json:"before"`
	After    map[string]float64 `json:"after"`
}

// PlayerRating is published whenever a player aggregate is rewritten.
type PlayerRating struct {
	PlayerID       string   `json:"player_id"`
	Name           string   `json:"name"`
	GP             int      `json:"gp"`
	PER            *float64 `json:"per"`
	Rating         *float64 `json:"rating"`
	RatingString   string   `json:"rating_string,omitempty"`
	RatingMovement string   `json:"rating_movement,omitempty"`
	Elo            float64  `json:"elo"`
}

// NewPlayerRating summarizes an aggregate for subscribers.
func NewPlayerRating(agg *models.PlayerAggregate) PlayerRating {
	return PlayerRating{
		PlayerID:       agg.PlayerID,
		Name:           agg.Name,
		GP:             agg.GP,
		PER:            agg.PER,
		Rating:         agg.Rating,
		RatingString:   agg.RatingString,
		RatingMovement: agg.RatingMovement,
		Elo:            agg.Elo,
	}
}

// GameUploaded is published once an upload's records are stored.
type GameUploaded struct {
	UploadID  string   `json:"upload_id"`
	PlayerIDs []string `json:"player_ids"`
	Records   int      `json:"records"`
	Failures  []string `json:"failures,omitempty"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		now:    time.Now,
	}
}

// Publish JSON-encodes payload into the data field of a new stream entry.
func (p *RedisStreamPublisher) Publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", stream, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": p.now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", stream, err)
	}
	return nil
}

// PublishEloUpdate publishes the Elo changes from one game.
func (p *RedisStreamPublisher) PublishEloUpdate(ctx context.Context, update EloUpdate) error {
	return p.Publish(ctx, StreamElo, update)
}

// PublishPlayerRating publishes a player's refreshed rating.
func (p *RedisStreamPublisher) PublishPlayerRating(ctx context.Context, agg *models.PlayerAggregate) error {
	return p.Publish(ctx, StreamPlayerRatings, NewPlayerRating(agg))
}

// PublishGameUploaded publishes an upload summary.
func (p *RedisStreamPublisher) PublishGameUploaded(ctx context.Context, event GameUploaded) error {
	return p.Publish(ctx, StreamGamesUploaded, event)
}

// PublishBaseline publishes a newly appended league baseline.
func (p *RedisStreamPublisher) PublishBaseline(ctx context.Context, lg *models.LeagueBaseline) error {
	return p.Publish(ctx, StreamLeagueBaseline, lg)
}
