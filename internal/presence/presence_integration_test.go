//go:build integration

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis")
	t.Cleanup(func() { testcontainers.TerminateContainer(container) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err, "redis endpoint")
	return "redis://" + endpoint
}

// Player events published on the bus end up resolvable through the directory.
func TestDirectoryAgainstRedis(t *testing.T) {
	url := startRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb, err := bus.Dial(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	b := bus.New(rdb, "it:", zap.NewNop())
	d := NewDirectory(rdb, "it:", zap.NewNop())

	user := uuid.New()
	require.NoError(t, b.Publish(ctx, &bus.Event{Type: bus.EventPlayerAttached, Entity: "mob-7", UserID: user, Name: "Alice"}))
	require.NoError(t, b.Publish(ctx, &bus.Event{Type: bus.EventPlaytime, UserID: user, PlayedSeconds: 7200}))

	events := b.SubscribeFrom(ctx, "0")
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			switch ev.Type {
			case bus.EventPlayerAttached:
				require.NoError(t, d.Attach(ctx, ev.Entity, ev.UserID, ev.Name))
			case bus.EventPlaytime:
				_, err := d.AddPlaytime(ctx, ev.UserID, time.Duration(ev.PlayedSeconds)*time.Second)
				require.NoError(t, err)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for bus events")
		}
	}

	p, ok, err := d.ResolvePlayer(ctx, "mob-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user, p.UserID)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 2*time.Hour, p.Playtime)

	require.NoError(t, d.Detach(ctx, "mob-7"))
	_, ok, err = d.ResolvePlayer(ctx, "mob-7")
	require.NoError(t, err)
	assert.False(t, ok)
}
