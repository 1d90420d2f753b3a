package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/courtside/internal/models"
)

const (
	baselineKey = "courtside:league:baseline"
	playerKey   = "courtside:player:"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// RedisCache handles caching and fast state storage
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Baseline returns the cached latest league baseline.
func (rc *RedisCache) Baseline(ctx context.Context) (*models.LeagueBaseline, error) {
	lg := &models.LeagueBaseline{}
	if err := rc.getJSON(ctx, baselineKey, lg); err != nil {
		return nil, err
	}
	return lg, nil
}

// SetBaseline caches the latest league baseline.
func (rc *RedisCache) SetBaseline(ctx context.Context, lg *models.LeagueBaseline) error {
	return rc.setJSON(ctx, baselineKey, lg)
}

// InvalidateBaseline drops the cached baseline.
func (rc *RedisCache) InvalidateBaseline(ctx context.Context) error {
	return rc.client.Del(ctx, baselineKey).Err()
}

// Player returns a cached player read model.
func (rc *RedisCache) Player(ctx context.Context, playerID string) (*models.Player, error) {
	p := &models.Player{}
	if err := rc.getJSON(ctx, playerKey+playerID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetPlayer caches a player read model.
func (rc *RedisCache) SetPlayer(ctx context.Context, p *models.Player) error {
	return rc.setJSON(ctx, playerKey+p.ID, p)
}

// InvalidatePlayers drops the cached read models for the given players.
func (rc *RedisCache) InvalidatePlayers(ctx context.Context, playerIDs ...string) error {
	if len(playerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		keys[i] = playerKey + id
	}
	return rc.client.Del(ctx, keys...).Err()
}

func (rc *RedisCache) getJSON(ctx context.Context, key string, dst interface{}) error {
	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (rc *RedisCache) setJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return rc.client.Set(ctx, key, data, rc.ttl).Err()
}
