package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/slackutilsx"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

// slackEntities undoes the escaping Slack applies to message text so
// parrots learn what people actually typed.
var slackEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">")

// SlackAdapter bridges Slack channels over Socket Mode.
type SlackAdapter struct {
	client      *slack.Client
	socket      *socketmode.Client
	handler     MessageHandler
	personas    map[string]*Persona // parrot id -> persona
	users       map[string]string   // user id -> display name
	cancel      context.CancelFunc
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &SlackAdapter{
		client:   client,
		socket:   socketmode.New(client, socketmode.OptionLog(zap.NewStdLog(logger))),
		personas: make(map[string]*Persona),
		users:    make(map[string]string),
		logger:   logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnMessage(h MessageHandler) { a.handler = h }

// SetPersona registers a parrot's display persona.
func (a *SlackAdapter) SetPersona(agentID string, persona *Persona) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.personas[agentID] = persona
}

// Connect starts the Socket Mode loop in the background. Connection state
// is tracked from the socket's own events.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("slack socket mode error", zap.Error(err))
			a.setState(false, err.Error())
		}
	}()
	a.logger.Info("slack adapter starting socket mode")
	return nil
}

func (a *SlackAdapter) setState(connected bool, lastError string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if connected && !a.connected {
		a.connectedAt = time.Now()
	}
	a.connected = connected
	a.lastError = lastError
}

func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(evt)
		}
	}
}

func (a *SlackAdapter) processEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.setState(true, "")
		a.logger.Info("slack adapter connected")
	case socketmode.EventTypeConnectionError:
		a.setState(false, fmt.Sprintf("%v", evt.Data))
	case socketmode.EventTypeEventsAPI:
		eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		if evt.Request != nil {
			a.socket.Ack(*evt.Request)
		}
		if eventsAPI.Type != slackevents.CallbackEvent {
			return
		}
		if inner, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			a.handleSlackMessage(inner)
		}
	}
}

// handleSlackMessage forwards plain user messages. Bot posts (including the
// parrots' own speech), edits, joins and other subtypes are not speech.
func (a *SlackAdapter) handleSlackMessage(ev *slackevents.MessageEvent) {
	if a.handler == nil || ev.BotID != "" || ev.SubType != "" || ev.User == "" {
		return
	}
	text := slackEntities.Replace(ev.Text)
	if strings.TrimSpace(text) == "" {
		return
	}
	a.handler(&InboundMessage{
		Platform:  "slack",
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  a.userName(ev.User),
		Content:   text,
		Timestamp: time.Now(),
		ReplyTo:   ev.ThreadTimeStamp,
	})
}

// userName resolves and caches a member's display name. Lookups that fail
// fall back to the raw user id.
func (a *SlackAdapter) userName(userID string) string {
	a.mu.RLock()
	name, ok := a.users[userID]
	a.mu.RUnlock()
	if ok {
		return name
	}

	name = userID
	if u, err := a.client.GetUserInfo(userID); err == nil {
		name = u.Profile.DisplayName
		if name == "" {
			name = u.RealName
		}
	} else {
		a.logger.Debug("slack user lookup failed", zap.String("user", userID), zap.Error(err))
	}
	a.mu.Lock()
	a.users[userID] = name
	a.mu.Unlock()
	return name
}

// Send posts a line under the parrot's persona. Text is escaped so learned
// phrases cannot ping users or channels; whispers render in italics.
func (a *SlackAdapter) Send(ctx context.Context, msg *OutboundMessage) error {
	text := slackutilsx.EscapeMessage(msg.Content)
	if msg.Whisper {
		text = "_" + text + "_"
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if msg.ReplyTo != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
	}
	opts = append(opts, a.personaOpts(msg.AgentID)...)

	if _, _, err := a.client.PostMessageContext(ctx, msg.ChannelID, opts...); err != nil {
		a.logger.Error("slack send failed",
			zap.String("channel", msg.ChannelID), zap.Error(err))
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func (a *SlackAdapter) personaOpts(agentID string) []slack.MsgOption {
	if agentID == "" {
		return nil
	}
	a.mu.RLock()
	p, ok := a.personas[agentID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	opts := []slack.MsgOption{slack.MsgOptionUsername(p.Name)}
	switch {
	case p.IconURL != "":
		opts = append(opts, slack.MsgOptionIconURL(p.IconURL))
	case p.Emoji != "":
		opts = append(opts, slack.MsgOptionIconEmoji(p.Emoji))
	}
	return opts
}

// Close stops the socket loop.
func (a *SlackAdapter) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.connected = false
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{Platform: "slack", Connected: a.connected, Error: a.lastError}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		s.Details = fmt.Sprintf("personas=%d", len(a.personas))
	}
	return s
}
