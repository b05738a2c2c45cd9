// Package presence tracks which player controls which entity and how long
// each player has played, in redis.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/parrot"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Directory is a redis-backed parrot.PlayerResolver.
//
// Keys:
//
//	<prefix>entity:<id>   hash {user_id, name}
//	<prefix>playtime      hash user_id -> seconds played
type Directory struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// NewDirectory creates a directory storing its keys under prefix.
func NewDirectory(rdb *redis.Client, prefix string, logger *zap.Logger) *Directory {
	return &Directory{rdb: rdb, prefix: prefix, logger: logger}
}

func (d *Directory) entityKey(entityID string) string {
	return d.prefix + "entity:" + entityID
}

func (d *Directory) playtimeKey() string {
	return d.prefix + "playtime"
}

// Attach records that userID now controls entityID.
func (d *Directory) Attach(ctx context.Context, entityID string, userID uuid.UUID, name string) error {
	err := d.rdb.HSet(ctx, d.entityKey(entityID), map[string]any{
		"user_id": userID.String(),
		"name":    name,
	}).Err()
	if err != nil {
		return fmt.Errorf("attach %s to %s: %w", userID, entityID, err)
	}
	d.logger.Debug("player attached",
		zap.String("entity", entityID),
		zap.String("player", userID.String()))
	return nil
}

// Detach forgets the controller of entityID. Speech from it no longer has
// a provenance.
func (d *Directory) Detach(ctx context.Context, entityID string) error {
	if err := d.rdb.Del(ctx, d.entityKey(entityID)).Err(); err != nil {
		return fmt.Errorf("detach %s: %w", entityID, err)
	}
	return nil
}

// AddPlaytime accumulates playtime for a player and returns the new total.
// Sub-second remainders are dropped.
func (d *Directory) AddPlaytime(ctx context.Context, userID uuid.UUID, played time.Duration) (time.Duration, error) {
	secs, err := d.rdb.HIncrBy(ctx, d.playtimeKey(), userID.String(), int64(played/time.Second)).Result()
	if err != nil {
		return 0, fmt.Errorf("add playtime %s: %w", userID, err)
	}
	return time.Duration(secs) * time.Second, nil
}

// Playtime returns the accumulated playtime of a player.
func (d *Directory) Playtime(ctx context.Context, userID uuid.UUID) (time.Duration, error) {
	v, err := d.rdb.HGet(ctx, d.playtimeKey(), userID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get playtime %s: %w", userID, err)
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse playtime %s: %w", userID, err)
	}
	return time.Duration(secs) * time.Second, nil
}

// ResolvePlayer implements parrot.PlayerResolver.
func (d *Directory) ResolvePlayer(ctx context.Context, entityID string) (parrot.Player, bool, error) {
	fields, err := d.rdb.HGetAll(ctx, d.entityKey(entityID)).Result()
	if err != nil {
		return parrot.Player{}, false, fmt.Errorf("resolve %s: %w", entityID, err)
	}
	raw, ok := fields["user_id"]
	if !ok {
		return parrot.Player{}, false, nil
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return parrot.Player{}, false, fmt.Errorf("resolve %s: bad user id %q: %w", entityID, raw, err)
	}
	played, err := d.Playtime(ctx, userID)
	if err != nil {
		return parrot.Player{}, false, err
	}
	return parrot.Player{UserID: userID, Name: fields["name"], Playtime: played}, true, nil
}
