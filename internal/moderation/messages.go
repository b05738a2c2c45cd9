package moderation

import (
	"encoding/json"
	"fmt"
)

// Message types exchanged with a moderation view.
const (
	TypeRefresh      = "refresh"
	TypeBlockChange  = "block_change"
	TypeFilterChange = "filter_change"
)

// Message is a request from the view. Only the fields of its type are set.
type Message struct {
	Type    string  `json:"type"`
	ID      int64   `json:"id,omitempty"`
	Blocked bool    `json:"blocked,omitempty"`
	Filter  *Filter `json:"filter,omitempty"`
}

// RefreshMsg asks for the current page.
func RefreshMsg() Message { return Message{Type: TypeRefresh} }

// BlockChangeMsg toggles the blocked flag of one entry.
func BlockChangeMsg(id int64, blocked bool) Message {
	return Message{Type: TypeBlockChange, ID: id, Blocked: blocked}
}

// FilterChangeMsg replaces the active filter.
func FilterChangeMsg(f Filter) Message {
	return Message{Type: TypeFilterChange, Filter: &f}
}

// DecodeMessage parses and checks a view request.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode moderation message: %w", err)
	}
	switch m.Type {
	case TypeRefresh, TypeBlockChange:
	case TypeFilterChange:
		if m.Filter == nil {
			return Message{}, fmt.Errorf("decode moderation message: filter_change without filter")
		}
	default:
		return Message{}, fmt.Errorf("decode moderation message: unknown type %q", m.Type)
	}
	return m, nil
}

// State is pushed to the view after every change.
type State struct {
	Filter  Filter  `json:"filter"`
	Entries []Entry `json:"entries"`
}
