package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const restOutboxSize = 100

// RESTAdapter implements GatewayAdapter over plain HTTP. Messages posted to
// it are heard by the parrots; what they say is kept in a per-channel
// outbox that clients poll.
type RESTAdapter struct {
	handler MessageHandler
	outbox  map[string][]*OutboundMessage
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRESTAdapter creates a REST gateway adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		outbox: make(map[string][]*OutboundMessage),
		logger: logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

// Send appends a message to the channel's outbox, dropping the oldest
// entry once it is full.
func (a *RESTAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	box := append(a.outbox[msg.ChannelID], msg)
	if len(box) > restOutboxSize {
		box = box[len(box)-restOutboxSize:]
	}
	a.outbox[msg.ChannelID] = box
	return nil
}

// Drain returns and clears up to limit pending messages of a channel.
func (a *RESTAdapter) Drain(channelID string, limit int) []*OutboundMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	box := a.outbox[channelID]
	if limit <= 0 || limit > len(box) {
		limit = len(box)
	}
	out := box[:limit:limit]
	a.outbox[channelID] = box[limit:]
	return out
}

// Routes returns a chi router with REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", a.handleMessage)
	r.Get("/channels/{channelID}/messages", a.handleDrain)
	return r
}

// handleMessage accepts an inbound chat line.
func (a *RESTAdapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channel_id"`
		UserID    string `json:"user_id"`
		UserName  string `json:"user_name"`
		Content   string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, `{"error":"content is required"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.New().String()
	}

	msg := &InboundMessage{
		Platform:  "rest",
		ChannelID: req.ChannelID,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Content:   req.Content,
		Timestamp: time.Now(),
		ReplyTo:   req.ChannelID,
	}
	if a.handler != nil {
		a.handler(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(msg)
}

// handleDrain returns pending outbound messages for a channel.
func (a *RESTAdapter) handleDrain(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs := a.Drain(chi.URLParam(r, "channelID"), limit)
	if msgs == nil {
		msgs = []*OutboundMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}
