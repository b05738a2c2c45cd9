package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/nidhogg/polly/internal/parrot"
	"github.com/nidhogg/polly/internal/radio"
)

// ParrotConfig defines one parrot. Omitted sections leave the parrot
// without that capability.
type ParrotConfig struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Memory   *MemoryConfig   `json:"memory,omitempty"`
	Listener *ListenerConfig `json:"listener,omitempty"`
	Speaker  *SpeakerConfig  `json:"speaker,omitempty"`
	Radio    *RadioConfig    `json:"radio,omitempty"`
	Durable  *DurableParrot  `json:"durable,omitempty"`
}

type MemoryConfig struct {
	Capacity      *int      `json:"capacity,omitempty"`
	LearnCooldown *Duration `json:"learn_cooldown,omitempty"`
	LearnChance   *float64  `json:"learn_chance,omitempty"`
	MinLength     int       `json:"min_length"`
	MaxLength     int       `json:"max_length"`
}

type ListenerConfig struct {
	IgnoreParrots bool `json:"ignore_parrots"`
}

type SpeakerConfig struct {
	MinInterval Duration `json:"min_interval"`
	MaxInterval Duration `json:"max_interval"`
}

type RadioConfig struct {
	AttemptChance float64        `json:"attempt_chance"`
	Devices       []DeviceConfig `json:"devices"`
}

type DeviceConfig struct {
	ID       string   `json:"id"`
	Channels []string `json:"channels"`
}

type DurableParrot struct {
	MinSourcePlaytime Duration `json:"min_source_playtime"`
	RefreshInterval   Duration `json:"refresh_interval"`
}

func (p *ParrotConfig) applyDefaults() {
	if m := p.Memory; m != nil {
		if m.Capacity == nil {
			capacity := 50
			m.Capacity = &capacity
		}
		if m.LearnCooldown == nil {
			cooldown := Duration(time.Minute)
			m.LearnCooldown = &cooldown
		}
		if m.LearnChance == nil {
			chance := 0.4
			m.LearnChance = &chance
		}
		if m.MinLength == 0 {
			m.MinLength = 4
		}
		if m.MaxLength == 0 {
			m.MaxLength = 120
		}
	}
	if s := p.Speaker; s != nil {
		if s.MinInterval == 0 {
			s.MinInterval = Duration(time.Minute)
		}
		if s.MaxInterval == 0 {
			s.MaxInterval = Duration(5 * time.Minute)
		}
	}
	if d := p.Durable; d != nil && d.RefreshInterval == 0 {
		d.RefreshInterval = Duration(10 * time.Minute)
	}
}

func (p ParrotConfig) validate(channels map[string]bool) error {
	if m := p.Memory; m != nil {
		if m.Capacity != nil && *m.Capacity < 1 {
			return fmt.Errorf("memory.capacity must be at least 1, got %d", *m.Capacity)
		}
		if m.MinLength > m.MaxLength {
			return fmt.Errorf("memory.min_length %d exceeds max_length %d", m.MinLength, m.MaxLength)
		}
		if m.LearnChance != nil && !isProbability(*m.LearnChance) {
			return fmt.Errorf("memory.learn_chance %v outside [0,1]", *m.LearnChance)
		}
		if m.LearnCooldown != nil && *m.LearnCooldown < 0 {
			return errors.New("memory.learn_cooldown is negative")
		}
	}
	if s := p.Speaker; s != nil {
		if s.MinInterval <= 0 || s.MinInterval > s.MaxInterval {
			return fmt.Errorf("speaker interval [%v, %v] is invalid", s.MinInterval.Std(), s.MaxInterval.Std())
		}
	}
	if r := p.Radio; r != nil {
		if !isProbability(r.AttemptChance) {
			return fmt.Errorf("radio.attempt_chance %v outside [0,1]", r.AttemptChance)
		}
		for _, d := range r.Devices {
			for _, ch := range d.Channels {
				if !channels[ch] {
					return fmt.Errorf("radio device %s: unknown channel %q", d.ID, ch)
				}
			}
		}
	}
	if d := p.Durable; d != nil {
		if p.Memory == nil {
			return errors.New("durable memory requires a memory section")
		}
		if d.RefreshInterval <= 0 {
			return errors.New("durable.refresh_interval must be positive")
		}
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

// Spec converts the definition into an engine registration. Timers start
// at now so freshly spawned parrots neither speak nor refresh at once.
func (p ParrotConfig) Spec(now time.Time) parrot.Spec {
	spec := parrot.Spec{ID: p.ID, Name: p.Name}
	if m := p.Memory; m != nil {
		chance := 0.0
		if m.LearnChance != nil {
			chance = *m.LearnChance
		}
		capacity := 1
		if m.Capacity != nil {
			capacity = *m.Capacity
		}
		var cooldown time.Duration
		if m.LearnCooldown != nil {
			cooldown = m.LearnCooldown.Std()
		}
		spec.Memory = &parrot.MemorySpec{
			Capacity: capacity,
			Learner: parrot.Learner{
				Cooldown:  cooldown,
				Chance:    chance,
				MinLength: m.MinLength,
				MaxLength: m.MaxLength,
			},
		}
	}
	if l := p.Listener; l != nil {
		spec.Listener = &parrot.Listener{IgnoreParrots: l.IgnoreParrots}
	}
	if s := p.Speaker; s != nil {
		spec.Speaker = &parrot.Speaker{
			MinInterval: s.MinInterval.Std(),
			MaxInterval: s.MaxInterval.Std(),
			NextSpeak:   now.Add(s.MinInterval.Std()),
		}
	}
	if r := p.Radio; r != nil {
		rs := &parrot.RadioSpec{AttemptChance: r.AttemptChance}
		for _, d := range r.Devices {
			rs.Devices = append(rs.Devices, radio.Device{ID: d.ID, Channels: radio.NewChannelSet(d.Channels...)})
		}
		spec.Radio = rs
	}
	if d := p.Durable; d != nil {
		spec.Durable = &parrot.Durable{
			MinSourcePlaytime: d.MinSourcePlaytime.Std(),
			RefreshInterval:   d.RefreshInterval.Std(),
			NextRefresh:       now,
		}
	}
	return spec
}
