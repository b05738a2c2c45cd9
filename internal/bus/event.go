package bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/radio"
)

// Event types sent by the game server.
const (
	EventHeard          = "heard"
	EventEquipped       = "equipped"
	EventUnequipped     = "unequipped"
	EventIncapacitated  = "incapacitated"
	EventRoundStarted   = "round_started"
	EventPlayerAttached = "player_attached"
	EventPlayerDetached = "player_detached"
	EventPlaytime       = "playtime"
)

// Event is one world notification. Which fields are set depends on Type.
type Event struct {
	Type string `json:"type"`
	// Agent targets one parrot. Heard events without it are offered to
	// every parrot in earshot.
	Agent string `json:"agent,omitempty"`

	Source         string `json:"source,omitempty"`
	SourceIsParrot bool   `json:"source_is_parrot,omitempty"`
	Text           string `json:"text,omitempty"`
	Channel        string `json:"channel,omitempty"`

	Device   *radio.Device `json:"device,omitempty"`
	DeviceID string        `json:"device_id,omitempty"`

	Incapacitated bool `json:"incapacitated,omitempty"`
	Round         int  `json:"round,omitempty"`

	Entity        string    `json:"entity,omitempty"`
	UserID        uuid.UUID `json:"user_id,omitempty"`
	Name          string    `json:"name,omitempty"`
	PlayedSeconds int64     `json:"played_seconds,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
