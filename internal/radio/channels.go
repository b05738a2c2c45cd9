package radio

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownChannel is returned when a channel id is not in the catalog.
var ErrUnknownChannel = errors.New("unknown radio channel")

// Channel is a broadcast medium. KeyCode is what a speaker types after the
// radio prefix to address the channel.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	KeyCode string `json:"key"`
}

// Catalog holds every known channel and the radio prefix character.
type Catalog struct {
	prefix   string
	channels map[string]Channel
	byKey    map[string]string
}

// NewCatalog builds a catalog. Later duplicates override earlier ones.
func NewCatalog(prefix string, channels []Channel) *Catalog {
	c := &Catalog{
		prefix:   prefix,
		channels: make(map[string]Channel, len(channels)),
		byKey:    make(map[string]string, len(channels)),
	}
	for _, ch := range channels {
		c.channels[ch.ID] = ch
		c.byKey[ch.KeyCode] = ch.ID
	}
	return c
}

// List returns every channel ordered by id.
func (c *Catalog) List() []Channel {
	out := make([]Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Parse splits a marked phrase like ";e hello" into its channel id and
// text. ok is false for unmarked text or an unknown key.
func (c *Catalog) Parse(text string) (channel, rest string, ok bool) {
	if c.prefix == "" || !strings.HasPrefix(text, c.prefix) {
		return "", text, false
	}
	body := strings.TrimPrefix(text, c.prefix)
	key, rest, found := strings.Cut(body, " ")
	if !found {
		return "", text, false
	}
	id, known := c.byKey[key]
	if !known {
		return "", text, false
	}
	return id, strings.TrimSpace(rest), true
}

// Get returns the channel with the given id.
func (c *Catalog) Get(id string) (Channel, bool) {
	ch, ok := c.channels[id]
	return ch, ok
}

// Marker returns the text prepended to a phrase spoken on channel id,
// e.g. ";e ".
func (c *Catalog) Marker(id string) (string, error) {
	ch, ok := c.channels[id]
	if !ok {
		return "", fmt.Errorf("marker for %q: %w", id, ErrUnknownChannel)
	}
	return c.prefix + ch.KeyCode + " ", nil
}

// ChannelSet is an unordered set of channel ids.
type ChannelSet map[string]struct{}

// NewChannelSet returns a set containing ids.
func NewChannelSet(ids ...string) ChannelSet {
	s := make(ChannelSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s ChannelSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union adds every id of other to s.
func (s ChannelSet) Union(other ChannelSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Clear removes all ids.
func (s ChannelSet) Clear() {
	for id := range s {
		delete(s, id)
	}
}

// Sorted returns the ids in lexical order.
func (s ChannelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s ChannelSet) Clone() ChannelSet {
	out := make(ChannelSet, len(s))
	out.Union(s)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s ChannelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of ids.
func (s *ChannelSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("decode channel set: %w", err)
	}
	*s = NewChannelSet(ids...)
	return nil
}
