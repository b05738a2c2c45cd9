// Package bus connects the parrot engine to the game server through redis
// streams: world events come in on one stream and parrot speech goes out on
// another.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/polly/internal/parrot"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	eventsStream = "events"
	speechStream = "speech"
)

// Bus reads world events and writes parrot speech via Redis Streams.
type Bus struct {
	rdb    *redis.Client
	prefix string
	block  time.Duration
	logger *zap.Logger
}

// Dial connects to redis and checks the connection.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// New creates a bus whose streams are named <prefix>events and
// <prefix>speech.
func New(rdb *redis.Client, prefix string, logger *zap.Logger) *Bus {
	return &Bus{rdb: rdb, prefix: prefix, block: 2 * time.Second, logger: logger}
}

func (b *Bus) stream(name string) string {
	return b.prefix + name
}

// Publish appends a world event. The game server normally does this; the
// API uses it to inject events.
func (b *Bus) Publish(ctx context.Context, ev *Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	stream := b.stream(eventsStream)
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	b.logger.Debug("published event", zap.String("type", ev.Type))
	return nil
}

// Emit implements parrot.Transmitter by appending to the speech stream.
func (b *Bus) Emit(ctx context.Context, e parrot.Emission) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode emission: %w", err)
	}
	stream := b.stream(speechStream)
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("emit to %s: %w", stream, err)
	}
	return nil
}

// Subscribe streams world events appended after the call. Cancel the
// context to stop.
func (b *Bus) Subscribe(ctx context.Context) <-chan *Event {
	return b.SubscribeFrom(ctx, "$")
}

// SubscribeFrom streams world events after lastID ("0" replays the whole
// stream).
func (b *Bus) SubscribeFrom(ctx context.Context, lastID string) <-chan *Event {
	ch := make(chan *Event, 16)
	stream := b.stream(eventsStream)

	go func() {
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   b.block,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					b.logger.Warn("read events failed", zap.Error(err))
					select {
					case <-ctx.Done():
						return
					case <-time.After(time.Second):
					}
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev Event
					if err := json.Unmarshal([]byte(data), &ev); err != nil {
						b.logger.Warn("drop malformed event",
							zap.String("id", msg.ID),
							zap.Error(err))
						continue
					}
					select {
					case ch <- &ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Speech returns up to count emissions from the speech stream, oldest
// first.
func (b *Bus) Speech(ctx context.Context, count int64) ([]parrot.Emission, error) {
	msgs, err := b.rdb.XRangeN(ctx, b.stream(speechStream), "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	out := make([]parrot.Emission, 0, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var e parrot.Emission
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
