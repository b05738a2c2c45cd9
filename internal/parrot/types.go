package parrot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/radio"
)

var (
	// ErrParrotNotFound is returned for operations on an unregistered id.
	ErrParrotNotFound = errors.New("parrot not found")
	// ErrNoCapability is returned when a parrot lacks the capability an
	// operation needs, e.g. equipping a device on a parrot without a radio.
	ErrNoCapability = errors.New("parrot lacks capability")
	// errNoChannels is the radio failure when no device provides a channel.
	errNoChannels = errors.New("no radio channels reachable")
)

// Parrot is the identity record every registered agent has.
type Parrot struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Incapacitated bool   `json:"incapacitated"`
}

// Listener lets a parrot overhear local speech.
type Listener struct {
	// IgnoreParrots drops phrases spoken by other parrots so accents and
	// echoes do not snowball.
	IgnoreParrots bool `json:"ignore_parrots"`
}

// Durable gives a parrot a memory that survives rounds.
type Durable struct {
	// MinSourcePlaytime is the provenance gate: only players with at least
	// this much overall playtime get their phrases persisted.
	MinSourcePlaytime time.Duration `json:"min_source_playtime"`
	RefreshInterval   time.Duration `json:"refresh_interval"`
	NextRefresh       time.Time     `json:"next_refresh"`
}

// MemorySpec configures the phrase memory and its learning gate.
type MemorySpec struct {
	Capacity int
	Learner  Learner
}

// RadioSpec configures radio speech and the devices worn at spawn.
type RadioSpec struct {
	AttemptChance float64
	Devices       []radio.Device
}

// Spec describes a parrot to register. Nil sections mean the parrot does
// not have that capability.
type Spec struct {
	ID       string
	Name     string
	Memory   *MemorySpec
	Listener *Listener
	Speaker  *Speaker
	Radio    *RadioSpec
	Durable  *Durable
}

// Heard is a phrase that reached a parrot's ears.
type Heard struct {
	// Source is the entity id of the speaker.
	Source string `json:"source"`
	// SourceIsParrot marks speech from another parroting entity.
	SourceIsParrot bool   `json:"source_is_parrot"`
	Text           string `json:"text"`
	// Channel is the radio channel the phrase arrived on; empty for local
	// speech.
	Channel string `json:"channel,omitempty"`
}

// Emission is a phrase handed to the transmission collaborator.
type Emission struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	// Text already carries the radio marker when Channel is set.
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
	Whisper bool   `json:"whisper"`
}

// Transmitter delivers emitted phrases to listeners. A non-nil error means
// the phrase was not delivered.
type Transmitter interface {
	Emit(ctx context.Context, e Emission) error
}

// PhraseRecord is a row of the durable phrase log.
type PhraseRecord struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Source    uuid.UUID `json:"source"`
	Round     int       `json:"round"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// PhraseStore is the durable phrase log used by the syncer.
type PhraseStore interface {
	InsertPhrase(ctx context.Context, text string, source uuid.UUID, round int) error
	QueryPhrases(ctx context.Context, limit int, excludeBlocked bool) ([]PhraseRecord, error)
}

// Player is a tracked, player-controlled identity.
type Player struct {
	UserID   uuid.UUID     `json:"user_id"`
	Name     string        `json:"name"`
	Playtime time.Duration `json:"playtime"`
}

// PlayerResolver maps a speaking entity to the player controlling it. ok is
// false for unowned or ambient sources.
type PlayerResolver interface {
	ResolvePlayer(ctx context.Context, entityID string) (p Player, ok bool, err error)
}
