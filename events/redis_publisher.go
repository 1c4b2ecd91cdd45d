// Package events fans committed ledger operations out to Redis.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"bounty-backend/core/bounty"
)

// Config names the Redis keys the publisher writes.
type Config struct {
	Prefix       string // e.g. "bounty"
	StreamMaxLen int64
}

// RedisPublisher appends every event to a capped stream and announces it on
// a pub/sub channel per operation.
type RedisPublisher struct {
	client redis.UniversalClient
	config Config

	published atomic.Uint64
	failed    atomic.Uint64
}

func NewRedisPublisher(client redis.UniversalClient, config Config) *RedisPublisher {
	if config.Prefix == "" {
		config.Prefix = "bounty"
	}
	if config.StreamMaxLen <= 0 {
		config.StreamMaxLen = 10_000
	}
	return &RedisPublisher{client: client, config: config}
}

// StreamKey is the stream holding the full event history.
func (p *RedisPublisher) StreamKey() string {
	return fmt.Sprintf("%s:events", p.config.Prefix)
}

// Channel is the pub/sub channel for one operation.
func (p *RedisPublisher) Channel(op bounty.Op) string {
	return fmt.Sprintf("%s:events:%s", p.config.Prefix, op)
}

// Publish implements bounty.EventSink.
func (p *RedisPublisher) Publish(ctx context.Context, ev bounty.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	values := map[string]interface{}{
		"id":   ev.ID,
		"op":   string(ev.Op),
		"data": string(data),
		"at":   ev.At,
	}
	if ev.Task != nil {
		values["task"] = ev.Task.String()
	}

	pipe := p.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: p.StreamKey(),
		MaxLen: p.config.StreamMaxLen,
		Approx: true,
		Values: values,
	})
	pipe.Publish(ctx, p.Channel(ev.Op), string(data))
	if _, err := pipe.Exec(ctx); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.published.Add(1)
	log.Debugf("published event %s (%s) to %s", ev.ID, ev.Op, p.StreamKey())
	return nil
}

// Stats reports publish counters since start.
func (p *RedisPublisher) Stats() (published, failed uint64) {
	return p.published.Load(), p.failed.Load()
}
