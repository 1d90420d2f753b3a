package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	batchSize     = 100
	blockDuration = time.Second
)

// StreamRelay forwards published rating events from Redis streams to the hub.
type StreamRelay struct {
	redis    *redis.Client
	hub      *Hub
	streams  []string
	group    string
	consumer string
	log      *logrus.Entry
}

// NewStreamRelay reads streams as consumer within group.
func NewStreamRelay(client *redis.Client, hub *Hub, streams []string, group, consumer string) *StreamRelay {
	return &StreamRelay{
		redis:    client,
		hub:      hub,
		streams:  streams,
		group:    group,
		consumer: consumer,
		log:      hub.log.WithField("component", "ws_relay"),
	}
}

// Start consumes every stream until ctx is cancelled.
func (sr *StreamRelay) Start(ctx context.Context) {
	for _, stream := range sr.streams {
		sr.createConsumerGroup(ctx, stream)
	}

	var wg sync.WaitGroup
	for _, stream := range sr.streams {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sr.consumeStream(ctx, stream)
		}()
	}
	sr.log.WithField("streams", sr.streams).Info("stream relay started")
	wg.Wait()
}

func (sr *StreamRelay) createConsumerGroup(ctx context.Context, stream string) {
	err := sr.redis.XGroupCreateMkStream(ctx, stream, sr.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		sr.log.WithError(err).WithField("stream", stream).Warn("failed to create consumer group")
	}
}

func (sr *StreamRelay) consumeStream(ctx context.Context, stream string) {
	for ctx.Err() == nil {
		res, err := sr.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    sr.group,
			Consumer: sr.consumer,
			Streams:  []string{stream, ">"},
			Count:    batchSize,
			Block:    blockDuration,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			sr.log.WithError(err).WithField("stream", stream).Warn("stream read error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range res {
			for _, msg := range s.Messages {
				sr.process(ctx, s.Stream, msg)
			}
		}
	}
}

func (sr *StreamRelay) process(ctx context.Context, stream string, msg redis.XMessage) {
	defer sr.ack(ctx, stream, msg.ID)

	data, ok := msg.Values["data"].(string)
	if !ok || !json.Valid([]byte(data)) {
		sr.log.WithFields(logrus.Fields{"stream": stream, "id": msg.ID}).Warn("invalid message format")
		return
	}

	sr.hub.Broadcast(ServerMessage{
		Type:      MessageTypeEvent,
		Stream:    stream,
		Payload:   json.RawMessage(data),
		Timestamp: time.Now().UTC(),
	})
}

func (sr *StreamRelay) ack(ctx context.Context, stream, id string) {
	if err := sr.redis.XAck(ctx, stream, sr.group, id).Err(); err != nil {
		sr.log.WithError(err).WithField("stream", stream).Warn("failed to ack message")
	}
}
