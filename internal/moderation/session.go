package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session is one operator's open moderation view. It keeps the active
// filter and the last page server-side.
type Session struct {
	operator string
	svc      *Service

	mu      sync.Mutex
	filter  Filter
	entries []Entry
}

// Service opens sessions against a backend.
type Service struct {
	backend Backend
	auth    Authorizer
	horizon time.Duration
	limit   int
	now     func() time.Time
	logger  *zap.Logger
	audit   *zap.Logger
}

// NewService creates a moderation service. horizon bounds the view when
// old entries are hidden; limit caps each page.
func NewService(backend Backend, auth Authorizer, horizon time.Duration, limit int, logger *zap.Logger) *Service {
	if limit <= 0 {
		limit = 200
	}
	return &Service{
		backend: backend,
		auth:    auth,
		horizon: horizon,
		limit:   limit,
		now:     time.Now,
		logger:  logger,
		audit:   logger.Named("audit"),
	}
}

// Open starts a session for operator. Non-moderators get ErrForbidden.
func (s *Service) Open(operator string) (*Session, error) {
	if !s.auth.IsModerator(operator) {
		return nil, fmt.Errorf("open moderation for %s: %w", operator, ErrForbidden)
	}
	return &Session{operator: operator, svc: s}, nil
}

// Handle applies one view request and returns the state to push back.
// Every request re-checks privilege so revoked moderators are cut off.
func (ss *Session) Handle(ctx context.Context, msg Message) (State, error) {
	if !ss.svc.auth.IsModerator(ss.operator) {
		return State{}, fmt.Errorf("handle %s for %s: %w", msg.Type, ss.operator, ErrForbidden)
	}

	switch msg.Type {
	case TypeRefresh:
	case TypeBlockChange:
		if err := ss.svc.backend.SetBlocked(ctx, msg.ID, msg.Blocked); err != nil {
			return State{}, fmt.Errorf("set block %d: %w", msg.ID, err)
		}
		ss.svc.audit.Info("moderator changed phrase block",
			zap.String("operator", ss.operator),
			zap.Int64("phrase", msg.ID),
			zap.Bool("blocked", msg.Blocked))
	case TypeFilterChange:
		if msg.Filter == nil {
			return State{}, fmt.Errorf("filter change without filter")
		}
		ss.mu.Lock()
		ss.filter = *msg.Filter
		ss.mu.Unlock()
	default:
		return State{}, fmt.Errorf("unknown moderation message %q", msg.Type)
	}
	return ss.refresh(ctx)
}

func (ss *Session) refresh(ctx context.Context) (State, error) {
	ss.mu.Lock()
	filter := ss.filter
	ss.mu.Unlock()

	q := filter.Resolve(ss.svc.now(), ss.svc.horizon, ss.svc.limit)
	entries, err := ss.svc.backend.ListPhrases(ctx, q)
	if err != nil {
		return State{}, fmt.Errorf("list phrases: %w", err)
	}

	ss.mu.Lock()
	ss.entries = entries
	ss.mu.Unlock()

	ss.svc.logger.Debug("moderation view refreshed",
		zap.String("operator", ss.operator),
		zap.Int("entries", len(entries)))
	return State{Filter: filter, Entries: entries}, nil
}

// State returns the last pushed state without querying the backend.
func (ss *Session) State() State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]Entry, len(ss.entries))
	copy(out, ss.entries)
	return State{Filter: ss.filter, Entries: out}
}

// Sessions tracks open sessions by operator so stateless transports (HTTP,
// chat commands) can reuse one across requests.
type Sessions struct {
	svc *Service
	mu  sync.Mutex
	all map[string]*Session
}

// NewSessions wraps svc.
func NewSessions(svc *Service) *Sessions {
	return &Sessions{svc: svc, all: make(map[string]*Session)}
}

// Get returns the operator's session, opening it on first use.
func (s *Sessions) Get(operator string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.all[operator]; ok {
		return ss, nil
	}
	ss, err := s.svc.Open(operator)
	if err != nil {
		return nil, err
	}
	s.all[operator] = ss
	return ss, nil
}

// Close forgets the operator's session.
func (s *Sessions) Close(operator string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.all, operator)
}
