// Package moderation lets privileged operators review the durable phrase
// log and block phrases from being relearned.
package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the operator lacks moderator rights.
var ErrForbidden = errors.New("moderator privilege required")

// Entry is one durable phrase as shown to moderators.
type Entry struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	Round      int       `json:"round"`
	SourceName string    `json:"source_name"`
	Source     uuid.UUID `json:"source"`
	Blocked    bool      `json:"blocked"`
}

// Filter is the operator-controlled view predicate.
type Filter struct {
	ShowBlocked bool   `json:"show_blocked"`
	ShowOld     bool   `json:"show_old"`
	Contains    string `json:"contains"`
}

// Query is a filter resolved against the clock, ready for the backend.
type Query struct {
	IncludeBlocked bool
	// Since hides entries created before it. Zero means no lower bound.
	Since    time.Time
	Contains string
	Limit    int
}

// Backend reads and mutates the durable phrase log.
type Backend interface {
	ListPhrases(ctx context.Context, q Query) ([]Entry, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) error
}

// Authorizer decides whether an operator may moderate.
type Authorizer interface {
	IsModerator(operator string) bool
}

// Moderators is an Authorizer backed by a fixed list of operator ids.
type Moderators map[string]struct{}

// NewModerators builds the list.
func NewModerators(ids ...string) Moderators {
	m := make(Moderators, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func (m Moderators) IsModerator(operator string) bool {
	_, ok := m[operator]
	return ok
}

// Resolve turns the filter into a backend query. When old entries are
// hidden, only those newer than now-horizon are returned.
func (f Filter) Resolve(now time.Time, horizon time.Duration, limit int) Query {
	q := Query{
		IncludeBlocked: f.ShowBlocked,
		Contains:       f.Contains,
		Limit:          limit,
	}
	if !f.ShowOld && horizon > 0 {
		q.Since = now.Add(-horizon)
	}
	return q
}
