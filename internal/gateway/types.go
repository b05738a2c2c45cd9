package gateway

import (
	"context"
	"time"
)

// GatewayAdapter defines the interface for chat platform adapters.
type GatewayAdapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) error
	OnMessage(handler MessageHandler)
	Close() error
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized message from any platform.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// OutboundMessage is a message sent to a specific platform channel.
type OutboundMessage struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	AgentID   string `json:"agent_id,omitempty"`
	Content   string `json:"content"`
	// Whisper marks radio speech. Adapters render it subdued.
	Whisper bool   `json:"whisper,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// Persona is how a parrot appears on a chat platform.
type Persona struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url,omitempty"`
	Emoji   string `json:"emoji,omitempty"` // fallback if no icon_url, e.g. ":parrot:"
}

// AdapterStatus describes the connection state of a platform adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Details     string     `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// statusReporter is implemented by adapters that track their connection.
type statusReporter interface {
	Status() AdapterStatus
}
