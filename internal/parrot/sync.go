package parrot

import (
	"context"
	"sync"
	"time"

	"github.com/nidhogg/polly/internal/metrics"
	"go.uber.org/zap"
)

// RefreshResult carries phrases fetched for one parrot back to the tick
// loop.
type RefreshResult struct {
	AgentID string
	// Gen is the registration the refresh was started for. A parrot removed
	// and registered again under the same id gets a new generation.
	Gen     uint64
	Phrases []string
	Err     error
}

// Syncer moves phrases between parrot memories and the durable store. All
// store calls run on their own goroutine; refresh results are handed back
// through Results and applied by the engine on a later tick.
type Syncer struct {
	store    PhraseStore
	players  PlayerResolver
	timeout  time.Duration
	results  chan RefreshResult
	inflight map[string]uint64
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
	mu       sync.Mutex
	done     chan struct{}
	closed   sync.Once
	logger   *zap.Logger
	audit    *zap.Logger
}

// NewSyncer creates a syncer. timeout bounds every store call.
func NewSyncer(store PhraseStore, players PlayerResolver, timeout time.Duration, logger *zap.Logger) *Syncer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Syncer{
		store:    store,
		players:  players,
		timeout:  timeout,
		results:  make(chan RefreshResult, 64),
		inflight: make(map[string]uint64),
		done:     make(chan struct{}),
		logger:   logger,
		audit:    logger.Named("audit"),
	}
}

// SetMetrics attaches collectors.
func (s *Syncer) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Results delivers finished refreshes.
func (s *Syncer) Results() <-chan RefreshResult { return s.results }

// Refresh starts fetching up to limit unblocked phrases for generation gen
// of agentID. It returns false if a refresh for that same registration is
// still outstanding.
func (s *Syncer) Refresh(agentID string, gen uint64, limit int) bool {
	s.mu.Lock()
	if g, ok := s.inflight[agentID]; ok && g == gen {
		s.mu.Unlock()
		return false
	}
	s.inflight[agentID] = gen
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		res := RefreshResult{AgentID: agentID, Gen: gen}
		records, err := s.store.QueryPhrases(ctx, limit, true)
		if err != nil {
			res.Err = err
		} else {
			res.Phrases = make([]string, 0, len(records))
			for _, r := range records {
				res.Phrases = append(res.Phrases, r.Text)
			}
		}

		s.mu.Lock()
		if s.inflight[agentID] == gen {
			delete(s.inflight, agentID)
		}
		s.mu.Unlock()

		select {
		case s.results <- res:
		case <-s.done:
		}
	}()
	return true
}

// Publish persists a learned phrase if its source passes the provenance
// gate. It never blocks the caller and failures are only logged.
func (s *Syncer) Publish(agentID, phrase, source string, round int, minPlaytime time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		player, ok, err := s.players.ResolvePlayer(ctx, source)
		if err != nil {
			s.metrics.Published(metrics.OutcomeFailed)
			s.logger.Warn("resolve phrase source failed",
				zap.String("agent", agentID),
				zap.String("source", source),
				zap.Error(err))
			return
		}
		if !ok {
			s.metrics.Published(metrics.OutcomeSkipped)
			s.logger.Debug("phrase source is not a player",
				zap.String("agent", agentID),
				zap.String("source", source))
			return
		}
		if player.Playtime < minPlaytime {
			s.metrics.Published(metrics.OutcomeSkipped)
			s.logger.Debug("phrase source below playtime threshold",
				zap.String("agent", agentID),
				zap.String("player", player.UserID.String()),
				zap.Duration("playtime", player.Playtime))
			return
		}

		s.audit.Info("parrot saving phrase to durable memory",
			zap.String("agent", agentID),
			zap.String("phrase", phrase),
			zap.String("player", player.UserID.String()),
			zap.Int("round", round))

		if err := s.store.InsertPhrase(ctx, phrase, player.UserID, round); err != nil {
			s.metrics.Published(metrics.OutcomeFailed)
			s.logger.Warn("save phrase failed",
				zap.String("agent", agentID),
				zap.Error(err))
			return
		}
		s.metrics.Published(metrics.OutcomeOK)
	}()
}

// Wait blocks until every outstanding store call has finished. Refresh
// results must be drained concurrently if more than the buffer size are
// pending.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// Close stops delivering refresh results and waits for outstanding store
// calls. Results nobody consumed are discarded.
func (s *Syncer) Close() {
	s.closed.Do(func() { close(s.done) })
	s.wg.Wait()
}
