package parrot

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/memory"
	"github.com/nidhogg/polly/internal/metrics"
	"github.com/nidhogg/polly/internal/radio"
	"go.uber.org/zap"
)

// Engine owns every registered parrot and its capabilities. A capability a
// parrot lacks simply has no entry in the corresponding map. All state is
// guarded by mu; the world clock drives OnTick while event sources call the
// On* methods from their own goroutines.
type Engine struct {
	parrots   map[string]*Parrot
	order     []string
	memories  map[string]*memory.Memory
	learners  map[string]*Learner
	listeners map[string]*Listener
	speakers  map[string]*Speaker
	radios    map[string]*radio.Radio
	durables  map[string]*Durable
	gens      map[string]uint64
	nextGen   uint64

	catalog     *radio.Catalog
	tx          Transmitter
	syncer      *Syncer
	metrics     *metrics.Metrics
	rng         Rand
	round       int
	emitTimeout time.Duration

	mu     sync.Mutex
	logger *zap.Logger
	audit  *zap.Logger
}

// NewEngine creates an engine that speaks through tx.
func NewEngine(catalog *radio.Catalog, tx Transmitter, rng Rand, logger *zap.Logger) *Engine {
	return &Engine{
		parrots:     make(map[string]*Parrot),
		memories:    make(map[string]*memory.Memory),
		learners:    make(map[string]*Learner),
		listeners:   make(map[string]*Listener),
		speakers:    make(map[string]*Speaker),
		radios:      make(map[string]*radio.Radio),
		durables:    make(map[string]*Durable),
		gens:        make(map[string]uint64),
		catalog:     catalog,
		tx:          tx,
		rng:         rng,
		emitTimeout: 5 * time.Second,
		logger:      logger,
		audit:       logger.Named("audit"),
	}
}

// SetSyncer enables durable memory. Without a syncer durable capabilities
// are inert.
func (e *Engine) SetSyncer(s *Syncer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncer = s
}

// SetMetrics attaches collectors.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// SetEmitTimeout bounds each transmitter call.
func (e *Engine) SetEmitTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d > 0 {
		e.emitTimeout = d
	}
}

// SetRound records the id of the round in progress. Phrases published to
// the durable store are tagged with it.
func (e *Engine) SetRound(round int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round = round
	e.logger.Info("round started", zap.Int("round", round))
}

// Round returns the current round id.
func (e *Engine) Round() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}

// Register adds a parrot. An empty id gets a fresh uuid; registering an id
// twice replaces the previous parrot entirely.
func (e *Engine) Register(spec Spec) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if spec.ID == "" {
		spec.ID = uuid.New().String()
	}
	id := spec.ID
	if _, exists := e.parrots[id]; exists {
		e.removeLocked(id)
	}

	e.parrots[id] = &Parrot{ID: id, Name: spec.Name}
	e.order = append(e.order, id)
	e.nextGen++
	e.gens[id] = e.nextGen

	if spec.Memory != nil {
		e.memories[id] = memory.New(spec.Memory.Capacity)
		l := spec.Memory.Learner
		e.learners[id] = &l
		e.metrics.MemoryFill(id, 0)
	}
	if spec.Listener != nil {
		l := *spec.Listener
		e.listeners[id] = &l
	}
	if spec.Speaker != nil {
		s := *spec.Speaker
		e.speakers[id] = &s
	}
	if spec.Radio != nil {
		r := radio.New(spec.Radio.AttemptChance)
		for _, d := range spec.Radio.Devices {
			r.Equip(d)
		}
		e.radios[id] = r
	}
	if spec.Durable != nil {
		d := *spec.Durable
		e.durables[id] = &d
	}

	e.logger.Info("registered parrot",
		zap.String("id", id),
		zap.String("name", spec.Name),
		zap.Bool("memory", spec.Memory != nil),
		zap.Bool("speaker", spec.Speaker != nil),
		zap.Bool("radio", spec.Radio != nil),
		zap.Bool("durable", spec.Durable != nil))
	return id
}

// Remove unregisters a parrot and all of its capabilities.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.parrots[id]; !ok {
		return false
	}
	e.removeLocked(id)
	e.logger.Info("removed parrot", zap.String("id", id))
	return true
}

func (e *Engine) removeLocked(id string) {
	delete(e.parrots, id)
	delete(e.memories, id)
	delete(e.learners, id)
	delete(e.listeners, id)
	delete(e.speakers, id)
	delete(e.radios, id)
	delete(e.durables, id)
	delete(e.gens, id)
	for i, o := range e.order {
		if o == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.metrics.ForgetParrot(id)
}

// SetIncapacitated records whether a parrot is unconscious. Incapacitated
// parrots neither learn nor speak.
func (e *Engine) SetIncapacitated(id string, down bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.parrots[id]
	if !ok {
		return fmt.Errorf("set incapacitated %s: %w", id, ErrParrotNotFound)
	}
	p.Incapacitated = down
	return nil
}

// OnPhraseHeard offers a phrase to one parrot and returns the gate's
// verdict.
func (e *Engine) OnPhraseHeard(id string, h Heard, now time.Time) (Reason, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.parrots[id]; !ok {
		return NoMemory, fmt.Errorf("hear %s: %w", id, ErrParrotNotFound)
	}
	return e.hearLocked(id, h, now), nil
}

// Overhear offers a phrase to every parrot able to hear it: listeners for
// local speech, radios tuned to the channel for radio speech. It returns
// the number of parrots that learned the phrase.
func (e *Engine) Overhear(h Heard, now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	learned := 0
	for _, id := range e.order {
		if !e.canHearLocked(id, h) {
			continue
		}
		if e.hearLocked(id, h, now) == Accepted {
			learned++
		}
	}
	return learned
}

func (e *Engine) canHearLocked(id string, h Heard) bool {
	if h.Channel == "" {
		_, ok := e.listeners[id]
		return ok
	}
	r, ok := e.radios[id]
	return ok && r.Channels().Has(h.Channel)
}

func (e *Engine) hearLocked(id string, h Heard, now time.Time) Reason {
	if !e.canHearLocked(id, h) {
		e.metrics.LearnVerdict(NotListening.String())
		return NotListening
	}

	p := e.parrots[id]
	in := LearnInput{
		Self:           id,
		Source:         h.Source,
		SourceIsParrot: h.SourceIsParrot || e.isParrotLocked(h.Source),
		Incapacitated:  p.Incapacitated,
		Text:           h.Text,
		Now:            now,
	}
	if l, ok := e.listeners[id]; ok {
		in.IgnoreParrots = l.IgnoreParrots
	}

	phrase, reason := Evaluate(e.learners[id], in, e.rng)
	e.metrics.LearnVerdict(reason.String())
	if reason != Accepted {
		e.logger.Debug("phrase not learned",
			zap.String("agent", id),
			zap.String("reason", reason.String()))
		return reason
	}

	e.learnLocked(id, phrase, h.Source, now)
	return Accepted
}

// isParrotLocked reports whether an entity is itself a registered speaker.
func (e *Engine) isParrotLocked(entityID string) bool {
	_, ok := e.speakers[entityID]
	return ok
}

// learnLocked commits an accepted phrase to memory.
func (e *Engine) learnLocked(id, phrase, source string, now time.Time) {
	mem := e.memories[id]

	// A parrot that has never learned anything should not blurt out its
	// first phrase the moment it hears it.
	if mem.Empty() {
		if s, ok := e.speakers[id]; ok {
			s.ResetInterval(now, e.rng)
		}
	}

	e.audit.Info("parrot learned phrase",
		zap.String("agent", id),
		zap.String("phrase", phrase),
		zap.String("source", source))

	if d, ok := e.durables[id]; ok && e.syncer != nil {
		e.syncer.Publish(id, phrase, source, e.round, d.MinSourcePlaytime)
	}

	mem.Insert(phrase, e.rng)
	e.metrics.MemoryFill(id, mem.Count())
}

// OnDeviceEquipped tracks a broadcast device worn by a parrot.
func (e *Engine) OnDeviceEquipped(id string, d radio.Device) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.radioLocked(id)
	if err != nil {
		return fmt.Errorf("equip %s on %s: %w", d.ID, id, err)
	}
	if r.Equip(d) {
		e.logger.Debug("radio device equipped",
			zap.String("agent", id),
			zap.String("device", d.ID),
			zap.Strings("channels", r.Channels().Sorted()))
	}
	return nil
}

// OnDeviceUnequipped forgets a device. Unknown devices are ignored.
func (e *Engine) OnDeviceUnequipped(id, deviceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.radioLocked(id)
	if err != nil {
		return fmt.Errorf("unequip %s on %s: %w", deviceID, id, err)
	}
	if r.Unequip(deviceID) {
		e.logger.Debug("radio device unequipped",
			zap.String("agent", id),
			zap.String("device", deviceID),
			zap.Strings("channels", r.Channels().Sorted()))
	}
	return nil
}

func (e *Engine) radioLocked(id string) (*radio.Radio, error) {
	if _, ok := e.parrots[id]; !ok {
		return nil, ErrParrotNotFound
	}
	r, ok := e.radios[id]
	if !ok {
		return nil, ErrNoCapability
	}
	return r, nil
}

// OnTick implements world.ClockListener. It applies finished refreshes,
// lets every due speaker attempt one emission and starts due refreshes, in
// registration order.
func (e *Engine) OnTick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drainRefreshesLocked(now)

	for _, id := range e.order {
		s, ok := e.speakers[id]
		if !ok {
			continue
		}
		mem, ok := e.memories[id]
		if !ok {
			continue
		}
		if !s.Advance(now, e.rng) {
			continue
		}
		e.speakLocked(id, mem)
	}

	if e.syncer == nil {
		return
	}
	for _, id := range e.order {
		d, ok := e.durables[id]
		if !ok {
			continue
		}
		mem, ok := e.memories[id]
		if !ok {
			continue
		}
		if now.Before(d.NextRefresh) {
			continue
		}
		if !e.syncer.Refresh(id, e.gens[id], mem.Capacity()) {
			e.logger.Debug("durable refresh still in flight", zap.String("agent", id))
		}
		d.NextRefresh = d.NextRefresh.Add(d.RefreshInterval)
		if d.NextRefresh.Before(now) {
			d.NextRefresh = now.Add(d.RefreshInterval)
		}
	}
}

// drainRefreshesLocked merges every refresh result that has arrived.
// Results started for an earlier registration of the id are dropped, as are
// results for a parrot that lost its memory or durable capability.
func (e *Engine) drainRefreshesLocked(now time.Time) {
	if e.syncer == nil {
		return
	}
	for {
		select {
		case res := <-e.syncer.Results():
			e.applyRefreshLocked(res, now)
		default:
			return
		}
	}
}

func (e *Engine) applyRefreshLocked(res RefreshResult, now time.Time) {
	if res.Err != nil {
		e.metrics.Refreshed(metrics.OutcomeFailed)
		e.logger.Warn("durable refresh failed",
			zap.String("agent", res.AgentID),
			zap.Error(res.Err))
		return
	}
	mem, hasMem := e.memories[res.AgentID]
	_, hasDurable := e.durables[res.AgentID]
	if !hasMem || !hasDurable || e.gens[res.AgentID] != res.Gen {
		e.metrics.Refreshed(metrics.OutcomeAbandoned)
		e.logger.Debug("durable refresh abandoned",
			zap.String("agent", res.AgentID))
		return
	}

	wasEmpty := mem.Merge(res.Phrases)
	if wasEmpty && !mem.Empty() {
		if s, ok := e.speakers[res.AgentID]; ok {
			s.ResetInterval(now, e.rng)
		}
	}
	e.metrics.Refreshed(metrics.OutcomeOK)
	e.metrics.MemoryFill(res.AgentID, mem.Count())
	e.logger.Debug("durable refresh merged",
		zap.String("agent", res.AgentID),
		zap.Int("fetched", len(res.Phrases)),
		zap.Int("count", mem.Count()))
}
