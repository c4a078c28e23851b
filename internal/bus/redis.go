package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus is a Bus backed by a Redis stream with a consumer group.
//
// A single stream keeps publish order; the consumer group gives
// at-least-once delivery: an entry read but not acknowledged (for example
// because the consumer died mid-handle) stays pending and is reclaimed by
// the next Consume call once minIdle has passed.
type RedisBus struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	minIdle  time.Duration
}

// NewRedisBus constructs a Redis-backed Bus and creates the consumer group
// if it does not exist yet. stream is the Redis key (e.g. "orders.created"),
// consumer names this process within the group.
func NewRedisBus(ctx context.Context, client *redis.Client, stream, group, consumer string) (*RedisBus, error) {
	if stream == "" {
		stream = EventOrderCreated
	}
	if group == "" {
		group = "fulfillment"
	}

	// BUSYGROUP just means another process got here first.
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, err
	}

	return &RedisBus{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		minIdle:  30 * time.Second,
	}, nil
}

var _ Bus = (*RedisBus)(nil)

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{
			"key":          env.Key,
			"type":         env.Type,
			"body":         string(env.Body),
			"published_at": env.PublishedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

func (b *RedisBus) Consume(ctx context.Context) (*Envelope, error) {
	// Reclaim entries a dead consumer left pending before reading new ones.
	if env, ok, err := b.claimStale(ctx); err != nil {
		return nil, err
	} else if ok {
		return env, nil
	}

	for {
		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.consumer,
			Streams:  []string{b.stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			return nil, err
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}
		return decodeMessage(res[0].Messages[0])
	}
}

// Ack acknowledges a consumed entry. Entries consumed but never acked stay
// pending in the group and are reclaimed after minIdle, which is what makes
// the channel at-least-once.
func (b *RedisBus) Ack(ctx context.Context, env *Envelope) error {
	if env == nil || env.ID == "" {
		return nil
	}
	return b.client.XAck(ctx, b.stream, b.group, env.ID).Err()
}

func (b *RedisBus) Len() int {
	n, err := b.client.XLen(context.Background(), b.stream).Result()
	if err != nil {
		slog.Warn("redis bus: XLEN failed", slog.String("error", err.Error()))
		return 0
	}
	return int(n)
}

func (b *RedisBus) claimStale(ctx context.Context) (*Envelope, bool, error) {
	msgs, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.stream,
		Group:    b.group,
		Consumer: b.consumer,
		MinIdle:  b.minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(msgs) == 0 {
		return nil, false, nil
	}
	env, err := decodeMessage(msgs[0])
	if err != nil {
		return nil, false, err
	}
	return env, true, nil
}

func decodeMessage(msg redis.XMessage) (*Envelope, error) {
	env := &Envelope{ID: msg.ID}
	if v, ok := msg.Values["key"].(string); ok {
		env.Key = v
	}
	if v, ok := msg.Values["type"].(string); ok {
		env.Type = v
	}
	if v, ok := msg.Values["body"].(string); ok {
		env.Body = json.RawMessage(v)
	}
	if v, ok := msg.Values["published_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			env.PublishedAt = t
		}
	}
	return env, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
