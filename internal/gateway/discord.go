package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// discordMaxContent is Discord's message length limit in characters.
const discordMaxContent = 2000

// discordWebhook is a parsed webhook URL.
type discordWebhook struct {
	id    string
	token string
}

// DiscordAdapter bridges Discord channels. Parrots speak through channel
// webhooks when one is configured so each parrot shows under its own name.
type DiscordAdapter struct {
	token       string
	session     *discordgo.Session
	handler     MessageHandler
	personas    map[string]*Persona       // parrot id -> persona
	webhooks    map[string]discordWebhook // channel id -> webhook
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter.
func NewDiscordAdapter(token string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:    token,
		personas: make(map[string]*Persona),
		webhooks: make(map[string]discordWebhook),
		logger:   logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

// SetPersona registers a parrot's display persona.
func (a *DiscordAdapter) SetPersona(agentID string, persona *Persona) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.personas[agentID] = persona
}

// SetWebhook registers the webhook parrots use to speak in a channel. The
// URL has the form https://discord.com/api/webhooks/<id>/<token>; malformed
// URLs are logged and ignored.
func (a *DiscordAdapter) SetWebhook(channelID, webhookURL string) {
	wh, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		a.logger.Warn("ignoring discord webhook",
			zap.String("channel", channelID),
			zap.Error(err))
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.webhooks[channelID] = wh
}

func parseDiscordWebhook(raw string) (discordWebhook, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return discordWebhook{}, fmt.Errorf("parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return discordWebhook{id: parts[i+1], token: parts[i+2]}, nil
		}
	}
	return discordWebhook{}, fmt.Errorf("parse webhook url: no webhook id/token in %q", u.Path)
}

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.setError(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	session.AddHandler(a.onMessageCreate)

	if err := session.Open(); err != nil {
		a.setError(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	a.mu.Lock()
	a.session = session
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	guilds := len(session.State.Guilds)
	if guilds == 0 {
		a.logger.Warn("discord bot not added to any server, invite it first")
	}
	a.logger.Info("discord adapter connected",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", guilds))
	return nil
}

func (a *DiscordAdapter) setError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	a.lastError = msg
}

// onMessageCreate turns a Discord message into an inbound line. Bot and
// webhook messages are dropped: webhook messages are the parrots' own
// speech and must not be overheard again.
func (a *DiscordAdapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.WebhookID != "" {
		return
	}
	if a.handler == nil || m.Content == "" {
		return
	}
	name := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	a.handler(&InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  name,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReplyTo:   m.ChannelID,
	})
}

// Send posts a line to a channel. Parrot speech goes through the
// channel's webhook under the parrot's persona when possible, otherwise as
// a bot message prefixed with the parrot's name. Radio whispers render in
// italics.
func (a *DiscordAdapter) Send(ctx context.Context, msg *OutboundMessage) error {
	a.mu.RLock()
	session := a.session
	wh, hasWebhook := a.webhooks[msg.ChannelID]
	persona, hasPersona := a.personas[msg.AgentID]
	a.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("discord send: not connected")
	}

	content := msg.Content
	if msg.Whisper {
		content = "*" + content + "*"
	}

	if hasWebhook && hasPersona {
		params := &discordgo.WebhookParams{
			Content:   truncateRunes(content, discordMaxContent),
			Username:  persona.Name,
			AvatarURL: persona.IconURL,
		}
		if _, err := session.WebhookExecute(wh.id, wh.token, false, params, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord webhook execute: %w", err)
		}
		return nil
	}

	if hasPersona {
		content = fmt.Sprintf("**[%s]** %s", persona.Name, content)
	}
	if _, err := session.ChannelMessageSend(msg.ChannelID, truncateRunes(content, discordMaxContent), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	a.mu.Lock()
	session := a.session
	a.session = nil
	a.connected = false
	a.mu.Unlock()
	if session != nil {
		return session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected && a.session != nil && a.session.State != nil {
		t := a.connectedAt
		s.ConnectedAt = &t
		s.Details = fmt.Sprintf("bot=%s, guilds=%d, webhooks=%d, personas=%d",
			a.session.State.User.Username, len(a.session.State.Guilds), len(a.webhooks), len(a.personas))
	}
	return s
}
