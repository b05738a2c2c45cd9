package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memBackend struct {
	entries []Entry
	created map[int64]time.Time
	queries []Query
	failSet error
}

func (b *memBackend) ListPhrases(_ context.Context, q Query) ([]Entry, error) {
	b.queries = append(b.queries, q)
	var out []Entry
	for _, e := range b.entries {
		if e.Blocked && !q.IncludeBlocked {
			continue
		}
		if !q.Since.IsZero() && b.created[e.ID].Before(q.Since) {
			continue
		}
		if q.Contains != "" && !strings.Contains(strings.ToLower(e.Text), strings.ToLower(q.Contains)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (b *memBackend) SetBlocked(_ context.Context, id int64, blocked bool) error {
	if b.failSet != nil {
		return b.failSet
	}
	for i := range b.entries {
		if b.entries[i].ID == id {
			b.entries[i].Blocked = blocked
			return nil
		}
	}
	return errors.New("phrase not found")
}

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(b Backend) *Service {
	svc := NewService(b, NewModerators("mod"), 24*time.Hour, 50, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func fixture() *memBackend {
	return &memBackend{
		entries: []Entry{
			{ID: 1, Text: "Hello there"},
			{ID: 2, Text: "buy crackers", Blocked: true},
			{ID: 3, Text: "ancient greeting"},
		},
		created: map[int64]time.Time{
			1: now.Add(-time.Hour),
			2: now.Add(-2 * time.Hour),
			3: now.Add(-72 * time.Hour),
		},
	}
}

func ids(entries []Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestOpenRequiresModerator(t *testing.T) {
	svc := newService(fixture())
	_, err := svc.Open("player")
	assert.ErrorIs(t, err, ErrForbidden)

	ss, err := svc.Open("mod")
	require.NoError(t, err)
	assert.NotNil(t, ss)
}

func TestDefaultFilterHidesBlockedAndOld(t *testing.T) {
	ss, err := newService(fixture()).Open("mod")
	require.NoError(t, err)

	st, err := ss.Handle(context.Background(), RefreshMsg())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(st.Entries))
}

func TestFilterChangeRefreshes(t *testing.T) {
	b := fixture()
	ss, _ := newService(b).Open("mod")

	st, err := ss.Handle(context.Background(), FilterChangeMsg(Filter{ShowBlocked: true, ShowOld: true}))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(st.Entries))
	assert.True(t, b.queries[0].Since.IsZero())
	assert.Equal(t, 50, b.queries[0].Limit)

	st, err = ss.Handle(context.Background(), FilterChangeMsg(Filter{ShowOld: true, Contains: "GREET"}))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(st.Entries))

	assert.Equal(t, "GREET", ss.State().Filter.Contains)
}

func TestBlockChange(t *testing.T) {
	b := fixture()
	ss, _ := newService(b).Open("mod")

	st, err := ss.Handle(context.Background(), BlockChangeMsg(1, true))
	require.NoError(t, err)
	assert.Empty(t, st.Entries)
	assert.True(t, b.entries[0].Blocked)

	b.failSet = errors.New("db down")
	_, err = ss.Handle(context.Background(), BlockChangeMsg(1, false))
	assert.Error(t, err)
}

func TestRevokedModeratorIsCutOff(t *testing.T) {
	mods := NewModerators("mod")
	svc := NewService(fixture(), mods, time.Hour, 0, zap.NewNop())
	ss, err := svc.Open("mod")
	require.NoError(t, err)

	delete(mods, "mod")
	_, err = ss.Handle(context.Background(), RefreshMsg())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSessionsReuse(t *testing.T) {
	sessions := NewSessions(newService(fixture()))
	a, err := sessions.Get("mod")
	require.NoError(t, err)
	b, err := sessions.Get("mod")
	require.NoError(t, err)
	assert.Same(t, a, b)

	sessions.Close("mod")
	c, _ := sessions.Get("mod")
	assert.NotSame(t, a, c)

	_, err = sessions.Get("player")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResolve(t *testing.T) {
	q := Filter{Contains: "x"}.Resolve(now, time.Hour, 10)
	assert.Equal(t, now.Add(-time.Hour), q.Since)
	assert.False(t, q.IncludeBlocked)

	q = Filter{ShowOld: true}.Resolve(now, time.Hour, 10)
	assert.True(t, q.Since.IsZero())

	q = Filter{}.Resolve(now, 0, 10)
	assert.True(t, q.Since.IsZero())
}

func TestDecodeMessage(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type":"block_change","id":4,"blocked":true}`))
	require.NoError(t, err)
	assert.Equal(t, BlockChangeMsg(4, true), m)

	_, err = DecodeMessage([]byte(`{"type":"filter_change"}`))
	assert.Error(t, err)
	_, err = DecodeMessage([]byte(`{"type":"explode"}`))
	assert.Error(t, err)
	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)
}
