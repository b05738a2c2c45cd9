package parrot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/radio"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

// scriptedRand replays queued values and falls back to zero draws.
type scriptedRand struct {
	floats []float64
	ints   []int
	int64s []int64
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRand) Int64N(n int64) int64 {
	if len(r.int64s) == 0 {
		return 0
	}
	v := r.int64s[0]
	r.int64s = r.int64s[1:]
	return v % n
}

type recordingTx struct {
	mu        sync.Mutex
	emissions []Emission
	failOn    map[string]bool
}

func (tx *recordingTx) Emit(_ context.Context, e Emission) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.failOn[e.Channel] {
		return errors.New("transmitter refused")
	}
	tx.emissions = append(tx.emissions, e)
	return nil
}

func (tx *recordingTx) sent() []Emission {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]Emission, len(tx.emissions))
	copy(out, tx.emissions)
	return out
}

type insertedPhrase struct {
	Text   string
	Source uuid.UUID
	Round  int
}

type fakePhraseStore struct {
	mu       sync.Mutex
	records  []PhraseRecord
	inserted []insertedPhrase
	queryErr error
	queries  int
	// gate, when set, holds every query until it is closed.
	gate chan struct{}
}

func (s *fakePhraseStore) InsertPhrase(_ context.Context, text string, source uuid.UUID, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, insertedPhrase{Text: text, Source: source, Round: round})
	return nil
}

func (s *fakePhraseStore) QueryPhrases(_ context.Context, limit int, excludeBlocked bool) ([]PhraseRecord, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []PhraseRecord
	for _, r := range s.records {
		if excludeBlocked && r.Blocked {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakePhraseStore) insertedPhrases() []insertedPhrase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]insertedPhrase, len(s.inserted))
	copy(out, s.inserted)
	return out
}

type fakePlayers map[string]Player

func (f fakePlayers) ResolvePlayer(_ context.Context, entityID string) (Player, bool, error) {
	p, ok := f[entityID]
	return p, ok, nil
}

func testCatalog() *radio.Catalog {
	return radio.NewCatalog(";", []radio.Channel{
		{ID: "common", Name: "Common", KeyCode: "c"},
		{ID: "engineering", Name: "Engineering", KeyCode: "e"},
	})
}

func newTestEngine(rng Rand) (*Engine, *recordingTx) {
	tx := &recordingTx{failOn: map[string]bool{}}
	return NewEngine(testCatalog(), tx, rng, zap.NewNop()), tx
}

// eagerLearner accepts every structurally valid phrase immediately.
func eagerLearner(capacity int) *MemorySpec {
	return &MemorySpec{
		Capacity: capacity,
		Learner: Learner{
			Chance:    1,
			MinLength: 1,
			MaxLength: 100,
		},
	}
}
