package router

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/polly/internal/command"
	"github.com/nidhogg/polly/internal/gateway"
	"github.com/nidhogg/polly/internal/parrot"
	"github.com/nidhogg/polly/internal/radio"
	"go.uber.org/zap"
)

// Engine is the part of *parrot.Engine the router drives.
type Engine interface {
	OnPhraseHeard(id string, h parrot.Heard, now time.Time) (parrot.Reason, error)
	Overhear(h parrot.Heard, now time.Time) int
	OnDeviceEquipped(id string, d radio.Device) error
	OnDeviceUnequipped(id, deviceID string) error
	SetIncapacitated(id string, down bool) error
	SetRound(round int)
}

// Presence tracks entity ownership and playtime.
type Presence interface {
	Attach(ctx context.Context, entityID string, userID uuid.UUID, name string) error
	Detach(ctx context.Context, entityID string) error
	AddPlaytime(ctx context.Context, userID uuid.UUID, played time.Duration) (time.Duration, error)
}

// PlayerNames remembers display names for the moderation view.
type PlayerNames interface {
	UpsertPlayer(ctx context.Context, userID uuid.UUID, name string) error
}

// Sender delivers command replies.
type Sender interface {
	Send(ctx context.Context, msg *gateway.OutboundMessage) error
}

// Clock supplies the world time phrases are heard at.
type Clock interface {
	Now() time.Time
}

// MessageRouter routes chat messages and world events to the parrot engine.
type MessageRouter struct {
	engine   Engine
	presence Presence
	names    PlayerNames
	sender   Sender
	commands *command.Registry
	routes   *gateway.Routes
	catalog  *radio.Catalog
	clock    Clock
	logger   *zap.Logger
}

// Deps bundles the router's collaborators. Presence and Names may be nil
// when the deployment has no redis or postgres.
type Deps struct {
	Engine   Engine
	Presence Presence
	Names    PlayerNames
	Sender   Sender
	Commands *command.Registry
	Routes   *gateway.Routes
	Catalog  *radio.Catalog
	Clock    Clock
}

// New creates a new MessageRouter.
func New(d Deps, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		engine:   d.Engine,
		presence: d.Presence,
		names:    d.Names,
		sender:   d.Sender,
		commands: d.Commands,
		routes:   d.Routes,
		catalog:  d.Catalog,
		clock:    d.Clock,
		logger:   logger,
	}
}

// Handle routes an inbound chat message. Slash commands are dispatched;
// anything said in a bridged channel is overheard by the parrots.
// Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx := context.Background()
	mr.logger.Debug("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	if command.IsCommand(msg.Content) && mr.commands != nil {
		cc := &command.CommandContext{
			Platform:  msg.Platform,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			UserName:  msg.UserName,
		}
		result, err := mr.commands.Dispatch(ctx, msg.Content, cc)
		if err != nil {
			mr.logger.Error("command dispatch error", zap.Error(err))
			mr.sendReply(ctx, msg, "Command error: "+err.Error())
			return
		}
		mr.sendReply(ctx, msg, result.Content)
		return
	}

	channel, ok := mr.routes.Source(msg.Platform, msg.ChannelID)
	if !ok {
		return
	}
	h := parrot.Heard{
		Source:  msg.Platform + ":" + msg.UserID,
		Text:    msg.Content,
		Channel: channel,
	}
	// Typing a radio marker in local chat talks over the radio.
	if channel == "" && mr.catalog != nil {
		if radioChannel, rest, ok := mr.catalog.Parse(msg.Content); ok {
			h.Channel = radioChannel
			h.Text = rest
		}
	}
	learned := mr.engine.Overhear(h, mr.clock.Now())
	if learned > 0 {
		mr.logger.Debug("parrots learned chat line",
			zap.String("source", h.Source),
			zap.Int("parrots", learned))
	}
}

func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	if mr.sender == nil {
		return
	}
	err := mr.sender.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}
