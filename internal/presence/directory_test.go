package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDirectory(t *testing.T) (*miniredis.Miniredis, *Directory) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewDirectory(rdb, "polly:", zap.NewNop())
}

func TestResolveAttachedPlayer(t *testing.T) {
	_, d := setupDirectory(t)
	ctx := context.Background()
	alice := uuid.New()

	require.NoError(t, d.Attach(ctx, "mob-1", alice, "Alice"))
	_, err := d.AddPlaytime(ctx, alice, 90*time.Minute)
	require.NoError(t, err)
	total, err := d.AddPlaytime(ctx, alice, 30*time.Minute+500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, total)

	p, ok, err := d.ResolvePlayer(ctx, "mob-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, alice, p.UserID)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 2*time.Hour, p.Playtime)
}

func TestResolveUnknownEntity(t *testing.T) {
	_, d := setupDirectory(t)
	_, ok, err := d.ResolvePlayer(context.Background(), "ambient-speaker")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetach(t *testing.T) {
	_, d := setupDirectory(t)
	ctx := context.Background()
	bob := uuid.New()
	require.NoError(t, d.Attach(ctx, "mob-2", bob, "Bob"))
	require.NoError(t, d.Detach(ctx, "mob-2"))

	_, ok, err := d.ResolvePlayer(ctx, "mob-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// playtime survives leaving the body
	d.AddPlaytime(ctx, bob, time.Hour)
	played, err := d.Playtime(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, played)
}

func TestPlaytimeOfNewPlayerIsZero(t *testing.T) {
	_, d := setupDirectory(t)
	played, err := d.Playtime(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, played)
}

func TestCorruptUserID(t *testing.T) {
	mr, d := setupDirectory(t)
	mr.HSet("polly:entity:mob-3", "user_id", "not-a-uuid")
	_, _, err := d.ResolvePlayer(context.Background(), "mob-3")
	assert.Error(t, err)
}

func TestRedisDown(t *testing.T) {
	mr, d := setupDirectory(t)
	mr.Close()
	_, _, err := d.ResolvePlayer(context.Background(), "mob-1")
	assert.Error(t, err)
}
