package parrot

import (
	"time"
)

// Snapshot is a read-only view of one parrot for inspection surfaces.
type Snapshot struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Incapacitated bool       `json:"incapacitated"`
	Capacity      int        `json:"capacity,omitempty"`
	Phrases       []string   `json:"phrases,omitempty"`
	Listening     bool       `json:"listening"`
	NextLearn     *time.Time `json:"next_learn,omitempty"`
	NextSpeak     *time.Time `json:"next_speak,omitempty"`
	Channels      []string   `json:"channels,omitempty"`
	Devices       []string   `json:"devices,omitempty"`
	NextRefresh   *time.Time `json:"next_refresh,omitempty"`
	Durable       bool       `json:"durable"`
}

// Get returns a snapshot of one parrot.
func (e *Engine) Get(id string) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.parrots[id]; !ok {
		return Snapshot{}, false
	}
	return e.snapshotLocked(id), true
}

// List returns snapshots of all parrots in registration order.
func (e *Engine) List() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Snapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.snapshotLocked(id))
	}
	return out
}

// Phrases returns a copy of a parrot's memory in slot order.
func (e *Engine) Phrases(id string) ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mem, ok := e.memories[id]
	if !ok {
		return nil, false
	}
	return mem.Entries(), true
}

func (e *Engine) snapshotLocked(id string) Snapshot {
	p := e.parrots[id]
	s := Snapshot{
		ID:            p.ID,
		Name:          p.Name,
		Incapacitated: p.Incapacitated,
	}
	if mem, ok := e.memories[id]; ok {
		s.Capacity = mem.Capacity()
		s.Phrases = mem.Entries()
	}
	if l, ok := e.learners[id]; ok {
		t := l.NextLearn
		s.NextLearn = &t
	}
	_, s.Listening = e.listeners[id]
	if sp, ok := e.speakers[id]; ok {
		t := sp.NextSpeak
		s.NextSpeak = &t
	}
	if r, ok := e.radios[id]; ok {
		s.Channels = r.Channels().Sorted()
		s.Devices = r.DeviceIDs()
	}
	if d, ok := e.durables[id]; ok {
		t := d.NextRefresh
		s.NextRefresh = &t
		s.Durable = true
	}
	return s
}
