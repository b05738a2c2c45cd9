package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nidhogg/polly/internal/parrot"
	"go.uber.org/zap"
)

type fakeAdapter struct {
	platform string
	handler  MessageHandler
	sent     []*OutboundMessage
	personas map[string]*Persona
	fail     bool
	dialErr  error
	dialed   bool
}

func (f *fakeAdapter) Platform() string                 { return f.platform }
func (f *fakeAdapter) Connect(context.Context) error    { f.dialed = true; return f.dialErr }
func (f *fakeAdapter) OnMessage(h MessageHandler)       { f.handler = h }
func (f *fakeAdapter) Close() error                     { return nil }
func (f *fakeAdapter) SetPersona(id string, p *Persona) { f.personas[id] = p }
func (f *fakeAdapter) Send(_ context.Context, m *OutboundMessage) error {
	if f.fail {
		return errors.New("platform unavailable")
	}
	f.sent = append(f.sent, m)
	return nil
}

func newFake(platform string) *fakeAdapter {
	return &fakeAdapter{platform: platform, personas: map[string]*Persona{}}
}

func TestTransmitterRoutesChannels(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	discord := newFake("discord")
	gw.Register(discord)

	tx := NewTransmitter(gw, NewRoutes([]Route{
		{Channel: "", Platform: "discord", ChannelID: "bar"},
		{Channel: "engineering", Platform: "discord", ChannelID: "engi"},
	}))
	var _ parrot.Transmitter = tx

	if err := tx.Emit(context.Background(), parrot.Emission{AgentID: "polly", Text: "hello"}); err != nil {
		t.Fatalf("local emit: %v", err)
	}
	if err := tx.Emit(context.Background(), parrot.Emission{AgentID: "polly", Text: ";e hi", Channel: "engineering", Whisper: true}); err != nil {
		t.Fatalf("radio emit: %v", err)
	}
	if len(discord.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(discord.sent))
	}
	if discord.sent[0].ChannelID != "bar" || discord.sent[0].AgentID != "polly" {
		t.Errorf("local message = %+v", discord.sent[0])
	}
	if discord.sent[1].ChannelID != "engi" || !discord.sent[1].Whisper {
		t.Errorf("radio message = %+v", discord.sent[1])
	}
}

func TestTransmitterUnroutedChannel(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.Register(newFake("discord"))
	tx := NewTransmitter(gw, NewRoutes(nil))

	err := tx.Emit(context.Background(), parrot.Emission{Text: "x", Channel: "security"})
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("got %v, want ErrNoRoute", err)
	}
}

func TestTransmitterPlatformFailure(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	f := newFake("discord")
	f.fail = true
	gw.Register(f)
	tx := NewTransmitter(gw, NewRoutes([]Route{{Platform: "discord", ChannelID: "bar"}}))

	if err := tx.Emit(context.Background(), parrot.Emission{Text: "x"}); err == nil {
		t.Fatal("expected platform error")
	}

	tx = NewTransmitter(gw, NewRoutes([]Route{{Platform: "irc", ChannelID: "#bar"}}))
	if err := tx.Emit(context.Background(), parrot.Emission{Text: "x"}); err == nil {
		t.Fatal("expected missing adapter error")
	}
}

func TestRoutesSource(t *testing.T) {
	r := NewRoutes([]Route{{Channel: "common", Platform: "slack", ChannelID: "C1"}})
	if ch, ok := r.Source("slack", "C1"); !ok || ch != "common" {
		t.Errorf("got %q/%v", ch, ok)
	}
	if _, ok := r.Source("discord", "C1"); ok {
		t.Error("platform must be part of the key")
	}
}

func TestGatewayDispatchAndPersona(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	f := newFake("slack")
	gw.Register(f)

	var got *InboundMessage
	gw.SetHandler(func(m *InboundMessage) { got = m })
	f.handler(&InboundMessage{Platform: "slack", Content: "hi"})
	if got == nil || got.Content != "hi" {
		t.Fatalf("handler got %+v", got)
	}

	gw.SetPersona("polly", &Persona{Name: "Polly"})
	if f.personas["polly"] == nil {
		t.Error("persona not forwarded")
	}

	status := gw.StatusAll()
	if len(status) != 1 || status[0].Platform != "slack" || !status[0].Connected {
		t.Errorf("status = %+v", status)
	}
}

func TestRESTAdapter(t *testing.T) {
	a := NewRESTAdapter(zap.NewNop())
	var heard []*InboundMessage
	a.OnMessage(func(m *InboundMessage) { heard = append(heard, m) })
	srv := httptest.NewServer(a.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message", "application/json",
		strings.NewReader(`{"channel_id":"bar","user_id":"u1","user_name":"Alice","content":"hello polly"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(heard) != 1 || heard[0].ChannelID != "bar" || heard[0].UserName != "Alice" {
		t.Fatalf("heard = %+v", heard)
	}

	resp, _ = http.Post(srv.URL+"/message", "application/json", strings.NewReader(`{"channel_id":"bar"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty content status = %d", resp.StatusCode)
	}

	a.Send(context.Background(), &OutboundMessage{Platform: "rest", ChannelID: "bar", AgentID: "polly", Content: "hello polly"})
	resp, err = http.Get(srv.URL + "/channels/bar/messages")
	if err != nil {
		t.Fatal(err)
	}
	var msgs []OutboundMessage
	json.NewDecoder(resp.Body).Decode(&msgs)
	resp.Body.Close()
	if len(msgs) != 1 || msgs[0].Content != "hello polly" {
		t.Fatalf("outbox = %+v", msgs)
	}
	if left := a.Drain("bar", 0); len(left) != 0 {
		t.Errorf("outbox not drained: %d left", len(left))
	}
}

func TestRESTOutboxBounded(t *testing.T) {
	a := NewRESTAdapter(zap.NewNop())
	for i := 0; i < restOutboxSize+10; i++ {
		a.Send(context.Background(), &OutboundMessage{ChannelID: "c", Content: "x"})
	}
	if n := len(a.Drain("c", 0)); n != restOutboxSize {
		t.Errorf("outbox holds %d, want %d", n, restOutboxSize)
	}
}

func TestConnectAllKeepsGoingAfterFailure(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	discord := newFake("discord")
	discord.dialErr = errors.New("bad token")
	slack := newFake("slack")
	gw.Register(discord)
	gw.Register(slack)

	err := gw.ConnectAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connect discord") {
		t.Fatalf("err = %v", err)
	}
	if !slack.dialed {
		t.Error("slack was not connected after discord failed")
	}
	if got := strings.Join(gw.Adapters(), ","); got != "discord,slack" {
		t.Errorf("adapters = %s", got)
	}
}

func TestPersonaReachesLateAdapters(t *testing.T) {
	gw := NewGateway(zap.NewNop())
	gw.SetPersona("polly", &Persona{Name: "Polly"})
	late := newFake("slack")
	gw.Register(late)
	if late.personas["polly"] == nil || late.personas["polly"].Name != "Polly" {
		t.Errorf("late adapter personas = %v", late.personas)
	}
}
